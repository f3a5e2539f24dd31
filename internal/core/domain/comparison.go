package domain

import (
	"strings"
	"time"
)

type ComparisonDifferences struct {
	Dimensions Text `json:"dimensions,omitempty"`
	Materials  Text `json:"materials,omitempty"`
	Features   Text `json:"features,omitempty"`
}

type ComparisonResult struct {
	SchemaVersion   int                    `json:"schemaVersion,omitempty"`
	Differences     *ComparisonDifferences `json:"differences,omitempty"`
	Similarities    TextList               `json:"similarities,omitempty"`
	Recommendations TextList               `json:"recommendations,omitempty"`
	Summary         Text                   `json:"summary"`
	Error           string                 `json:"error,omitempty"`
}

func DegradedComparison(raw string) ComparisonResult {
	return ComparisonResult{
		SchemaVersion: AnalysisSchemaVersion,
		Summary:       Text(raw),
		Error:         DegradedParseMessage,
	}
}

// Comparison is an immutable record. DocumentAID and DocumentBID keep call order.
type Comparison struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	DocumentAID string           `json:"documentId1"`
	DocumentBID string           `json:"documentId2"`
	Result      ComparisonResult `json:"result"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// PairKey identifies a document pair regardless of argument order.
func PairKey(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
