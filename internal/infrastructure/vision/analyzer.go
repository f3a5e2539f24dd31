// Package vision submits normalized blueprint images to a vision backend.
package vision

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

// Metrics is the optional observer of backend calls.
type Metrics interface {
	ObserveVisionCall(backend, outcome string, duration time.Duration)
	ObserveNormalizedPages(n int)
}

type Client struct {
	fetcher    ports.BlobFetcher
	normalizer ports.FormatNormalizer
	backend    ports.VisionBackend
	metrics    Metrics
	logger     *slog.Logger
}

// New builds a client. A nil backend is allowed; every call then fails with
// domain.ErrAnalysisBackend.
func New(fetcher ports.BlobFetcher, normalizer ports.FormatNormalizer, backend ports.VisionBackend, metrics Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		fetcher:    fetcher,
		normalizer: normalizer,
		backend:    backend,
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *Client) Analyze(ctx context.Context, documentURL, userPrompt, systemPrompt string) (string, error) {
	if c.backend == nil {
		return "", domain.WrapError(domain.ErrAnalysisBackend, "vision analyze", errors.New("no vision backend configured"))
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = domain.ArchitectPersona
	}

	data, contentType, err := c.fetcher.Fetch(ctx, documentURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrAnalysisBackend, "vision fetch document", err)
	}

	normalized, err := c.normalizer.Normalize(ctx, data, contentType, documentURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrAnalysisBackend, "vision normalize document", err)
	}
	if c.metrics != nil {
		c.metrics.ObserveNormalizedPages(len(normalized.Images))
	}
	if normalized.CAD != nil {
		c.logger.Warn("vision_cad_without_images", "url", documentURL)
	}

	start := time.Now()
	text, err := c.backend.Generate(ctx, domain.VisionRequest{
		SystemPrompt: systemPrompt,
		Prompt:       userPrompt,
		Images:       normalized.Images,
	})
	c.observe(start, err)
	if err != nil {
		c.logger.Error("vision_call_failed", "backend", c.backend.Name(), "images", len(normalized.Images), "error", err)
		return "", domain.WrapError(domain.ErrAnalysisBackend, "vision generate", err)
	}

	c.logger.Debug("vision_call_completed",
		"backend", c.backend.Name(),
		"images", len(normalized.Images),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveVisionCall(c.backend.Name(), outcome, time.Since(start))
}
