// Package measure pulls raw measurement hints out of OCR text.
package measure

import (
	"regexp"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

var (
	dimensionPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ft|feet|'|m|meter|cm|inch|")`)
	areaPattern        = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:sq\s*ft|sqft|square\s*feet|m²|sq\s*m)`)
	measurementPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*(?:ft|m)`)
)

// Extract returns matched substrings as-is. Units are not normalized.
func Extract(text string) domain.Measurements {
	return domain.Measurements{
		Dimensions:   findAll(dimensionPattern, text),
		Areas:        findAll(areaPattern, text),
		Measurements: findAll(measurementPattern, text),
	}
}

func findAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
