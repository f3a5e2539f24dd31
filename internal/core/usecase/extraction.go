package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/jsonrecover"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

// StructuredExtractionService asks the vision model for a JSON analysis and
// parses it with fence/raw recovery. Only backend failures are returned.
type StructuredExtractionService struct {
	vision  ports.VisionAnalyzer
	metrics ports.PipelineMetrics
	logger  *slog.Logger
}

func NewStructuredExtractionService(vision ports.VisionAnalyzer, metrics ports.PipelineMetrics, logger *slog.Logger) *StructuredExtractionService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredExtractionService{vision: vision, metrics: metrics, logger: logger}
}

func (s *StructuredExtractionService) Extract(ctx context.Context, documentURL, ocrContext string) (domain.StructuredAnalysis, error) {
	raw, err := s.vision.Analyze(ctx, documentURL, buildAnalysisPrompt(ocrContext), "")
	if err != nil {
		return domain.StructuredAnalysis{}, err
	}

	analysis, ok := decodeModelJSON[domain.StructuredAnalysis](raw, s.metrics, s.logger, "analysis")
	if !ok {
		analysis = domain.DegradedAnalysis(raw)
	}
	analysis.SchemaVersion = domain.AnalysisSchemaVersion
	return analysis, nil
}

// decodeModelJSON runs jsonrecover and records the tier. ok is false when
// every tier failed and the caller should build its degraded record.
func decodeModelJSON[T any](raw string, metrics ports.PipelineMetrics, logger *slog.Logger, kind string) (T, bool) {
	out, tier, err := jsonrecover.Decode[T](raw)
	metrics.ObserveParse(string(tier))
	if err != nil {
		logger.Warn("model_response_unparsed", "kind", kind, "response_len", len(raw), "error", err)
		return out, false
	}
	return out, true
}

type noopMetrics struct{}

func (noopMetrics) ObserveOCR(string)      {}
func (noopMetrics) ObserveParse(string)    {}
func (noopMetrics) ObserveAnalysis(string) {}
func (noopMetrics) ObserveReconciled(int)  {}
