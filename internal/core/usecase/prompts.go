package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

const (
	analysisOCRLimit   = 1000
	mergedOCRLimit     = 500
	chatOCRLimit       = 2000
	comparisonOCRLimit = 500
	chatHistoryTurns   = 6
)

const analysisResponseFormat = `{
  "dimensions": {
    "totalArea": "X sq ft",
    "length": "X ft",
    "width": "X ft",
    "height": "X ft"
  },
  "rooms": [
    {"name": "Room Name", "area": "X sq ft", "dimensions": "X x Y ft"}
  ],
  "materials": [
    {"type": "Material Type", "quantity": "X", "specifications": "Details"}
  ],
  "features": ["Feature 1", "Feature 2"],
  "compliance": {
    "status": "compliant/non-compliant/needs-review",
    "issues": ["Issue 1", "Issue 2"]
  },
  "costEstimate": {
    "range": "$X - $Y",
    "breakdown": {
      "materials": "$X",
      "labor": "$X",
      "other": "$X"
    }
  },
  "summary": "Brief summary of the blueprint"
}`

const comparisonResponseFormat = `{
  "differences": {
    "dimensions": "Detailed difference in dimensions",
    "materials": "Detailed difference in materials",
    "features": "Detailed difference in features"
  },
  "similarities": ["Similarity 1", "Similarity 2"],
  "recommendations": ["Recommendation 1", "Recommendation 2"],
  "summary": "Overall comparison summary"
}`

const comparisonSystemPrompt = "You are an expert blueprint comparison analyst. You compare architectural drawings, identify differences, similarities, and provide professional recommendations. Return only valid JSON."

const searchSystemPrompt = "You are a search assistant specialized in architectural blueprints. Analyze search queries and match them to relevant blueprints based on their analysis data. Return only valid JSON."

const chatPersona = `You are an expert architect and construction analyst with deep knowledge of:
- Building codes and compliance standards (IBC, NFPA, ADA)
- Construction materials and specifications
- Architectural drawings and CAD files
- Structural engineering principles
- Cost estimation and project planning

Analyze building blueprints, CAD drawings, and architectural plans with precision. Provide detailed, accurate answers about dimensions, materials, design elements, and construction details. Be specific, professional, and cite measurements when available.`

func buildAnalysisPrompt(ocrContext string) string {
	return "Analyze this blueprint and extract structured data in JSON format." + ocrContext +
		"\n\nReturn ONLY valid JSON with this exact structure:\n" + analysisResponseFormat
}

// buildAnalysisOCRContext returns "" when there is no OCR text, so the
// extraction prompt carries no OCR block at all.
func buildAnalysisOCRContext(text string, measurements domain.Measurements) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "\n\nIMPORTANT: The following text was extracted from this blueprint using OCR:\n" +
		truncateRunes(text, analysisOCRLimit) +
		"\n\nDetected measurements: " + compactJSON(measurements) +
		"\n\nUse this OCR data to enhance your analysis accuracy."
}

func buildChatOCRContext(text string, measurements domain.Measurements) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "IMPORTANT CONTEXT - Text extracted from this blueprint using OCR:\n" +
		truncateRunes(text, chatOCRLimit) +
		"\n\nDetected measurements: " + compactJSON(measurements) +
		"\n\nUse this OCR-extracted text and measurements to provide more accurate answers. Cross-reference the visual analysis with this text data."
}

func buildChatSystemPrompt(ocrContext string, history []domain.Turn) string {
	var b strings.Builder
	b.WriteString(chatPersona)
	if ocrContext != "" {
		b.WriteString("\n\n")
		b.WriteString(ocrContext)
	}
	if rendered := renderHistory(history); rendered != "" {
		b.WriteString("\n\nPrevious conversation context:\n")
		b.WriteString(rendered)
	}
	return b.String()
}

func renderHistory(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case domain.RoleUser:
			lines = append(lines, "User: "+turn.Content)
		case domain.RoleAssistant:
			lines = append(lines, "Assistant: "+turn.Content)
		}
	}
	return strings.Join(lines, "\n\n")
}

func buildComparisonPrompt(first, second *domain.Document, ocrFirst, ocrSecond string) string {
	var ocrContext string
	if ocrFirst != "" || ocrSecond != "" {
		ocrContext = "\n\nOCR-EXTRACTED TEXT:\nBlueprint 1 Text: " + truncateRunes(ocrFirst, comparisonOCRLimit) +
			"\nBlueprint 2 Text: " + truncateRunes(ocrSecond, comparisonOCRLimit) +
			"\n\nUse this OCR data to enhance comparison accuracy."
	}

	return fmt.Sprintf(`Compare these two blueprints and provide a detailed comparison in JSON format.

Blueprint 1: %s
Analysis Data: %s

Blueprint 2: %s
Analysis Data: %s
%s

Analyze both blueprints visually and compare:
1. Dimensions and areas
2. Materials and specifications
3. Features and design elements
4. Compliance status
5. Cost estimates

Return JSON in this exact format:
%s`,
		first.Filename, indentedAnalysis(first.Analysis),
		second.Filename, indentedAnalysis(second.Analysis),
		ocrContext,
		comparisonResponseFormat,
	)
}

func buildSearchPrompt(query string, candidates []domain.Document) string {
	entries := make([]string, 0, len(candidates))
	for i := range candidates {
		doc := &candidates[i]
		entries = append(entries, fmt.Sprintf("ID: %s, Filename: %s, Analysis: %s", doc.ID, doc.Filename, analysisJSON(doc.Analysis)))
	}

	return fmt.Sprintf(`You are a blueprint search assistant. Given a search query and a list of blueprints with their analysis data, return a JSON array of relevant blueprint IDs ranked by relevance.

Search Query: %q

Blueprints:
%s

Return JSON in this format:
{
  "results": [
    {"documentId": "id", "relevance": 0.95, "reason": "Why this blueprint matches"}
  ]
}`, query, strings.Join(entries, "\n\n"))
}

func indentedAnalysis(analysis *domain.StructuredAnalysis) string {
	if analysis == nil {
		return "{}"
	}
	raw, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func analysisJSON(analysis *domain.StructuredAnalysis) string {
	if analysis == nil {
		return "{}"
	}
	return compactJSON(analysis)
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
