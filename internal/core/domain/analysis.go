package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// AnalysisSchemaVersion tags persisted analysis and comparison records.
// Bump it only for additive changes; every field stays optional.
const AnalysisSchemaVersion = 1

const DegradedParseMessage = "Failed to parse JSON"

// Text is a string field filled from untrusted model output. Numbers and
// booleans are accepted and kept in their JSON spelling; null becomes "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	switch string(data) {
	case "true", "false":
		*t = Text(data)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err == nil {
		*t = Text(data)
		return nil
	}
	// Objects and arrays are flattened to their compact JSON text.
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}
	*t = Text(compact.String())
	return nil
}

func (t Text) String() string { return string(t) }

// TextList is a list of Text that also accepts a single scalar value.
type TextList []Text

func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] != '[' {
		var single Text
		if err := single.UnmarshalJSON(data); err != nil {
			return err
		}
		if single == "" {
			*l = nil
			return nil
		}
		*l = TextList{single}
		return nil
	}
	var items []Text
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = TextList(items)
	return nil
}

type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non-compliant"
	ComplianceNeedsReview  ComplianceStatus = "needs-review"
	ComplianceUnknown      ComplianceStatus = "unknown"
)

// UnmarshalJSON folds free-form model spellings onto the four known states.
func (c *ComplianceStatus) UnmarshalJSON(data []byte) error {
	var raw Text
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = ParseComplianceStatus(string(raw))
	return nil
}

func ParseComplianceStatus(s string) ComplianceStatus {
	normalized := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case "compliant":
		return ComplianceCompliant
	case "non-compliant", "noncompliant", "not-compliant":
		return ComplianceNonCompliant
	case "needs-review", "review", "needs-reviewing", "partial":
		return ComplianceNeedsReview
	default:
		return ComplianceUnknown
	}
}

type Dimensions struct {
	TotalArea Text `json:"totalArea,omitempty"`
	Length    Text `json:"length,omitempty"`
	Width     Text `json:"width,omitempty"`
	Height    Text `json:"height,omitempty"`
}

type Room struct {
	Name       Text `json:"name,omitempty"`
	Area       Text `json:"area,omitempty"`
	Dimensions Text `json:"dimensions,omitempty"`
}

type Material struct {
	Type           Text `json:"type,omitempty"`
	Quantity       Text `json:"quantity,omitempty"`
	Specifications Text `json:"specifications,omitempty"`
}

type Compliance struct {
	Status ComplianceStatus `json:"status,omitempty"`
	Issues TextList         `json:"issues,omitempty"`
}

type CostBreakdown struct {
	Materials Text `json:"materials,omitempty"`
	Labor     Text `json:"labor,omitempty"`
	Other     Text `json:"other,omitempty"`
}

type CostEstimate struct {
	Range     Text           `json:"range,omitempty"`
	Breakdown *CostBreakdown `json:"breakdown,omitempty"`
}

type Measurements struct {
	Dimensions   []string `json:"dimensions"`
	Areas        []string `json:"areas"`
	Measurements []string `json:"measurements"`
}

// Empty reports whether none of the pattern families matched.
func (m Measurements) Empty() bool {
	return len(m.Dimensions) == 0 && len(m.Areas) == 0 && len(m.Measurements) == 0
}

type OCRExtracted struct {
	Text         string       `json:"text"`
	Measurements Measurements `json:"measurements"`
}

type StructuredAnalysis struct {
	SchemaVersion int           `json:"schemaVersion,omitempty"`
	Dimensions    *Dimensions   `json:"dimensions,omitempty"`
	Rooms         []Room        `json:"rooms,omitempty"`
	Materials     []Material    `json:"materials,omitempty"`
	Features      TextList      `json:"features,omitempty"`
	Compliance    *Compliance   `json:"compliance,omitempty"`
	CostEstimate  *CostEstimate `json:"costEstimate,omitempty"`
	Summary       Text          `json:"summary"`
	OCRExtracted  *OCRExtracted `json:"ocrExtracted,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Degraded reports whether the record is the parse-failure fallback.
func (a *StructuredAnalysis) Degraded() bool {
	return a.Error != ""
}

func DegradedAnalysis(raw string) StructuredAnalysis {
	return StructuredAnalysis{
		SchemaVersion: AnalysisSchemaVersion,
		Summary:       Text(raw),
		Error:         DegradedParseMessage,
	}
}
