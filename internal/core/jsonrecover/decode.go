// Package jsonrecover decodes JSON out of free-text model responses.
package jsonrecover

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// Tier names which recovery step produced the value.
type Tier string

const (
	TierFencedJSON Tier = "fenced_json"
	TierFenced     Tier = "fenced"
	TierRaw        Tier = "raw"
	TierDegraded   Tier = "degraded"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fencedPattern     = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// Decode tries a ```json fence, then any ``` fence, then the whole response.
// When every tier fails it returns TierDegraded and an error wrapping
// domain.ErrParseRecoveryExhausted; callers are expected to degrade, not fail.
func Decode[T any](raw string) (T, Tier, error) {
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		if out, err := decodeCandidate[T](m[1]); err == nil {
			return out, TierFencedJSON, nil
		}
	}
	if m := fencedPattern.FindStringSubmatch(raw); m != nil {
		if out, err := decodeCandidate[T](m[1]); err == nil {
			return out, TierFenced, nil
		}
	}

	out, err := decodeCandidate[T](raw)
	if err == nil {
		return out, TierRaw, nil
	}

	var zero T
	return zero, TierDegraded, domain.WrapError(domain.ErrParseRecoveryExhausted, "decode model response", err)
}

func decodeCandidate[T any](candidate string) (T, error) {
	var out T
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return out, fmt.Errorf("empty candidate")
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return out, fmt.Errorf("candidate is not a json object or array")
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	if err := decoder.Decode(&out); err != nil {
		var zero T
		return zero, err
	}
	if decoder.More() {
		var zero T
		return zero, fmt.Errorf("trailing data after json value")
	}
	return out, nil
}
