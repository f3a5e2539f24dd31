// Package ocr holds OCR backends shared helpers.
package ocr

import (
	"context"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// Disabled is wired when no OCR backend is configured.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Extract(context.Context, []byte, string) domain.OCRResult {
	return domain.EmptyOCRResult()
}
