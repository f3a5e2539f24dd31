// Package pdftext reads the embedded text layer of vector PDFs.
package pdftext

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// Extractor only handles PDFs; raster inputs yield an empty result.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Available() bool { return true }

func (e *Extractor) Extract(_ context.Context, data []byte, contentType string) domain.OCRResult {
	result := domain.EmptyOCRResult()
	if !looksLikePDF(data, contentType) {
		return result
	}

	text, err := readPlainText(data)
	if err != nil {
		e.logger.Warn("ocr_backend_failed",
			"call", "pdf_text_layer",
			"error", domain.WrapError(domain.ErrOCRBackend, "read pdf text", err),
		)
		return result
	}

	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			result.Blocks = append(result.Blocks, l)
		}
	}
	result.Text = strings.Join(result.Blocks, "\n")
	return result
}

func readPlainText(data []byte) (text string, err error) {
	// The reader panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = errMalformedPDF
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func looksLikePDF(data []byte, contentType string) bool {
	if domain.DetectMediaKind(contentType, "") == domain.MediaPDF {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
