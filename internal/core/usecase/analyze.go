package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/measure"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

const defaultAnalysisStaleAfter = 15 * time.Minute

const (
	analysisOutcomeCompleted  = "completed"
	analysisOutcomeDegraded   = "degraded"
	analysisOutcomeFailed     = "failed"
	analysisOutcomeBusy       = "in_progress"
	analysisOutcomeSuperseded = "superseded"
)

type AnalyzeDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.StructuredExtractor
	ocr        *OCRCache
	indexer    *AnalysisIndexer
	metrics    ports.PipelineMetrics
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewAnalyzeDocumentUseCase wires the pipeline. indexer may be nil when the
// search prefilter is disabled.
func NewAnalyzeDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.StructuredExtractor,
	ocr *OCRCache,
	indexer *AnalysisIndexer,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
	staleAfter time.Duration,
) *AnalyzeDocumentUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if staleAfter <= 0 {
		staleAfter = defaultAnalysisStaleAfter
	}
	return &AnalyzeDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		ocr:        ocr,
		indexer:    indexer,
		metrics:    metrics,
		logger:     logger,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, ownerID, documentID string) (*domain.StructuredAnalysis, error) {
	doc, err := loadOwnedDocument(ctx, uc.repo, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	return uc.run(ctx, doc, false)
}

// AnalyzeUploaded is the worker entry point. Redelivered events for
// documents that already completed are acknowledged without a new model call.
func (uc *AnalyzeDocumentUseCase) AnalyzeUploaded(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Status == domain.StatusCompleted {
		uc.logger.Info("analysis_already_completed", "document_id", doc.ID)
		return nil
	}
	_, err = uc.run(ctx, doc, true)
	if errors.Is(err, domain.ErrAnalysisInProgress) {
		uc.logger.Info("analysis_in_progress_skipped", "document_id", doc.ID)
		return nil
	}
	return err
}

func (uc *AnalyzeDocumentUseCase) run(ctx context.Context, doc *domain.Document, auto bool) (*domain.StructuredAnalysis, error) {
	// Postgres keeps microseconds; the run token must compare equal after a round trip.
	startedAt := uc.now().Truncate(time.Microsecond)
	if doc.Status == domain.StatusAnalyzing && !doc.AnalysisStale(startedAt, uc.staleAfter) {
		uc.metrics.ObserveAnalysis(analysisOutcomeBusy)
		return nil, domain.WrapError(domain.ErrAnalysisInProgress, "analyze document", fmt.Errorf("document %s started at %s", doc.ID, doc.AnalysisStartedAt.Format(time.RFC3339)))
	}

	if err := uc.repo.MarkAnalyzing(ctx, doc.ID, startedAt, startedAt.Add(-uc.staleAfter), auto); err != nil {
		if errors.Is(err, domain.ErrAnalysisInProgress) {
			uc.metrics.ObserveAnalysis(analysisOutcomeBusy)
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "set status=analyzing", err)
	}

	analysis, err := uc.extract(ctx, doc)
	if err != nil {
		return nil, uc.fail(ctx, doc.ID, startedAt, err)
	}

	if err := uc.repo.SaveAnalysis(ctx, doc.ID, startedAt, analysis, uc.now()); err != nil {
		if errors.Is(err, domain.ErrAnalysisSuperseded) {
			uc.metrics.ObserveAnalysis(analysisOutcomeSuperseded)
			uc.logger.Warn("analysis_superseded", "document_id", doc.ID, "stage", "save")
			return nil, err
		}
		return nil, uc.fail(ctx, doc.ID, startedAt, domain.WrapError(domain.ErrPersistence, "save analysis", err))
	}

	outcome := analysisOutcomeCompleted
	if analysis.Degraded() {
		outcome = analysisOutcomeDegraded
	}
	uc.metrics.ObserveAnalysis(outcome)
	uc.logger.Info("analysis_completed",
		"document_id", doc.ID,
		"auto", auto,
		"degraded", analysis.Degraded(),
		"duration_ms", uc.now().Sub(startedAt).Milliseconds(),
	)

	if uc.indexer != nil {
		if err := uc.indexer.Index(ctx, doc, analysis); err != nil {
			uc.logger.Warn("analysis_index_failed", "document_id", doc.ID, "error", err)
		}
	}

	return &analysis, nil
}

func (uc *AnalyzeDocumentUseCase) extract(ctx context.Context, doc *domain.Document) (domain.StructuredAnalysis, error) {
	ocrText := uc.ocr.Ensure(ctx, doc)
	measurements := measure.Extract(ocrText)

	analysis, err := uc.extractor.Extract(ctx, doc.StorageURL, buildAnalysisOCRContext(ocrText, measurements))
	if err != nil {
		return domain.StructuredAnalysis{}, fmt.Errorf("extract structured analysis: %w", err)
	}

	if len(measurements.Dimensions) > 0 || len(measurements.Areas) > 0 {
		if analysis.Dimensions == nil {
			analysis.Dimensions = &domain.Dimensions{}
		}
		analysis.OCRExtracted = &domain.OCRExtracted{
			Text:         truncateRunes(ocrText, mergedOCRLimit),
			Measurements: measurements,
		}
	}
	return analysis, nil
}

// fail marks the run failed on a context detached from ctx so a timed
// out request still leaves a terminal status. A newer run is never
// overwritten.
func (uc *AnalyzeDocumentUseCase) fail(ctx context.Context, documentID string, runStartedAt time.Time, cause error) error {
	uc.metrics.ObserveAnalysis(analysisOutcomeFailed)
	uc.logger.Error("analysis_failed", "document_id", documentID, "error", cause)

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	failErr := uc.repo.MarkFailed(markCtx, documentID, runStartedAt, cause.Error(), uc.now())
	switch {
	case failErr == nil:
	case errors.Is(failErr, domain.ErrAnalysisSuperseded):
		uc.logger.Warn("analysis_superseded", "document_id", documentID, "stage", "mark_failed")
	default:
		return fmt.Errorf("%w; mark failed status: %v", cause, failErr)
	}
	return cause
}
