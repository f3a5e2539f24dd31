package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

const (
	ocrOutcomeOK      = "ok"
	ocrOutcomeEmpty   = "empty"
	ocrOutcomeCached  = "cached"
	ocrOutcomeSkipped = "skipped"
)

// OCRCache returns a document's OCR text, running the extractor at most once
// per document. A cached non-empty value is never recomputed.
type OCRCache struct {
	repo      ports.DocumentRepository
	fetcher   ports.BlobFetcher
	extractor ports.TextExtractor
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewOCRCache(
	repo ports.DocumentRepository,
	fetcher ports.BlobFetcher,
	extractor ports.TextExtractor,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *OCRCache {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRCache{
		repo:      repo,
		fetcher:   fetcher,
		extractor: extractor,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ensure never fails: every OCR or fetch problem yields "".
// doc is updated in place when new text is cached.
func (c *OCRCache) Ensure(ctx context.Context, doc *domain.Document) string {
	if doc.HasOCRText() {
		c.metrics.ObserveOCR(ocrOutcomeCached)
		return doc.OCRText
	}
	if c.extractor == nil || !c.extractor.Available() {
		c.metrics.ObserveOCR(ocrOutcomeSkipped)
		return ""
	}

	data, contentType, err := c.fetcher.Fetch(ctx, doc.StorageURL)
	if err != nil {
		c.logger.Warn("ocr_fetch_failed", "document_id", doc.ID, "error", err)
		c.metrics.ObserveOCR(ocrOutcomeEmpty)
		return ""
	}
	if contentType == "" {
		contentType = doc.ContentType
	}

	result := c.extractor.Extract(ctx, data, contentType)
	text := strings.TrimSpace(result.Text)
	if text == "" {
		c.metrics.ObserveOCR(ocrOutcomeEmpty)
		return ""
	}

	at := c.now()
	if err := c.repo.SaveOCRText(ctx, doc.ID, text, at); err != nil {
		c.logger.Warn("ocr_cache_write_failed", "document_id", doc.ID, "error", err)
	} else {
		doc.OCRText = text
		doc.OCRExtractedAt = &at
	}
	c.metrics.ObserveOCR(ocrOutcomeOK)
	return text
}
