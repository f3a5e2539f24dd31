package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

type CompareUseCase struct {
	documents   ports.DocumentRepository
	comparisons ports.ComparisonRepository
	vision      ports.VisionAnalyzer
	ocr         *OCRCache
	metrics     ports.PipelineMetrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewCompareUseCase(
	documents ports.DocumentRepository,
	comparisons ports.ComparisonRepository,
	vision ports.VisionAnalyzer,
	ocr *OCRCache,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *CompareUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareUseCase{
		documents:   documents,
		comparisons: comparisons,
		vision:      vision,
		ocr:         ocr,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Compare sends one request carrying the first document's image; the second
// document enters the prompt through its analysis and OCR text.
func (uc *CompareUseCase) Compare(ctx context.Context, userID, documentAID, documentBID string) (*domain.ComparisonResult, error) {
	first, second, err := uc.loadPair(ctx, userID, documentAID, documentBID)
	if err != nil {
		return nil, err
	}

	ocrFirst := uc.ocr.Ensure(ctx, first)
	ocrSecond := uc.ocr.Ensure(ctx, second)

	raw, err := uc.vision.Analyze(ctx, first.StorageURL, buildComparisonPrompt(first, second, ocrFirst, ocrSecond), comparisonSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate comparison: %w", err)
	}

	result, ok := decodeModelJSON[domain.ComparisonResult](raw, uc.metrics, uc.logger, "comparison")
	if !ok {
		result = domain.DegradedComparison(raw)
	}
	result.SchemaVersion = domain.AnalysisSchemaVersion

	record := &domain.Comparison{
		ID:          uuid.NewString(),
		UserID:      userID,
		DocumentAID: first.ID,
		DocumentBID: second.ID,
		Result:      result,
		CreatedAt:   uc.now(),
	}
	if err := uc.comparisons.Append(ctx, record); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "save comparison", err)
	}

	uc.logger.Info("comparison_saved", "comparison_id", record.ID, "document_a", first.ID, "document_b", second.ID)
	return &result, nil
}

// History lists stored comparisons for the pair in either order, oldest first.
func (uc *CompareUseCase) History(ctx context.Context, userID, documentAID, documentBID string) ([]domain.Comparison, error) {
	a, b, err := validatePair(documentAID, documentBID)
	if err != nil {
		return nil, err
	}
	items, err := uc.comparisons.ListByPair(ctx, userID, a, b)
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	return items, nil
}

func (uc *CompareUseCase) loadPair(ctx context.Context, userID, documentAID, documentBID string) (*domain.Document, *domain.Document, error) {
	a, b, err := validatePair(documentAID, documentBID)
	if err != nil {
		return nil, nil, err
	}
	first, err := loadOwnedDocument(ctx, uc.documents, userID, a)
	if err != nil {
		return nil, nil, err
	}
	second, err := loadOwnedDocument(ctx, uc.documents, userID, b)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func validatePair(documentAID, documentBID string) (string, string, error) {
	a, b := strings.TrimSpace(documentAID), strings.TrimSpace(documentBID)
	if a == "" || b == "" {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "compare", errors.New("both document ids are required"))
	}
	if a == b {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "compare", errors.New("document ids must differ"))
	}
	return a, b, nil
}
