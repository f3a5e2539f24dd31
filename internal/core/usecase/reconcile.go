package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

const staleAnalysisMessage = "analysis timed out"

type ReconcileAnalysesUseCase struct {
	repo       ports.DocumentRepository
	staleAfter time.Duration
	metrics    ports.PipelineMetrics
	logger     *slog.Logger
	now        func() time.Time
}

func NewReconcileAnalysesUseCase(repo ports.DocumentRepository, staleAfter time.Duration, metrics ports.PipelineMetrics, logger *slog.Logger) *ReconcileAnalysesUseCase {
	if staleAfter <= 0 {
		staleAfter = defaultAnalysisStaleAfter
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileAnalysesUseCase{
		repo:       repo,
		staleAfter: staleAfter,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileStale fails every document stuck in analyzing past the stale
// window. It keeps going after a single failed update.
func (uc *ReconcileAnalysesUseCase) ReconcileStale(ctx context.Context) (int, error) {
	now := uc.now()
	cutoff := now.Add(-uc.staleAfter)
	ids, err := uc.repo.ListStaleAnalyzing(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale analyses: %w", err)
	}

	reconciled := 0
	var firstErr error
	for _, id := range ids {
		updated, err := uc.repo.FailStale(ctx, id, cutoff, staleAnalysisMessage, now)
		if err != nil {
			uc.logger.Error("reconcile_mark_failed_error", "document_id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("mark stale document %s failed: %w", id, err)
			}
			continue
		}
		if !updated {
			// Finished or restarted since the listing.
			uc.logger.Info("reconcile_skipped_active", "document_id", id)
			continue
		}
		reconciled++
		uc.logger.Warn("analysis_reconciled", "document_id", id)
	}

	uc.metrics.ObserveReconciled(reconciled)
	return reconciled, firstErr
}
