package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

type SearchUseCase struct {
	documents ports.DocumentRepository
	vision    ports.VisionAnalyzer
	prefilter *AnalysisIndexer
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
}

// NewSearchUseCase builds the searcher. prefilter may be nil, in which case
// every analyzed document is a candidate.
func NewSearchUseCase(
	documents ports.DocumentRepository,
	vision ports.VisionAnalyzer,
	prefilter *AnalysisIndexer,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *SearchUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		documents: documents,
		vision:    vision,
		prefilter: prefilter,
		metrics:   metrics,
		logger:    logger,
	}
}

type rankedHit struct {
	DocumentID  domain.Text `json:"documentId"`
	BlueprintID domain.Text `json:"blueprintId"`
	Relevance   domain.Text `json:"relevance"`
	Reason      domain.Text `json:"reason"`
}

type rankedResults struct {
	Results []rankedHit `json:"results"`
}

func (uc *SearchUseCase) Search(ctx context.Context, userID, query string) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}

	candidates, err := uc.documents.ListAnalyzedByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list analyzed documents: %w", err)
	}
	if len(candidates) == 0 {
		return []domain.SearchHit{}, nil
	}
	candidates = uc.narrow(ctx, userID, query, candidates)

	raw, err := uc.vision.Analyze(ctx, candidates[0].StorageURL, buildSearchPrompt(query, candidates), searchSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate search ranking: %w", err)
	}

	parsed, ok := decodeModelJSON[rankedResults](raw, uc.metrics, uc.logger, "search")
	if !ok {
		return []domain.SearchHit{}, nil
	}
	return resolveHits(parsed.Results, candidates), nil
}

// narrow keeps the vector prefilter's documents in rank order. Any prefilter
// problem falls back to the full candidate list.
func (uc *SearchUseCase) narrow(ctx context.Context, userID, query string, candidates []domain.Document) []domain.Document {
	if uc.prefilter == nil {
		return candidates
	}
	ids, err := uc.prefilter.Candidates(ctx, userID, query)
	if err != nil || len(ids) == 0 {
		logPrefilterFallback(uc.logger, userID, err)
		return candidates
	}

	byID := make(map[string]domain.Document, len(candidates))
	for _, doc := range candidates {
		byID[doc.ID] = doc
	}
	narrowed := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			narrowed = append(narrowed, doc)
		}
	}
	if len(narrowed) == 0 {
		logPrefilterFallback(uc.logger, userID, nil)
		return candidates
	}
	return narrowed
}

// resolveHits drops ids the model invented and duplicates, then orders by relevance.
func resolveHits(ranked []rankedHit, candidates []domain.Document) []domain.SearchHit {
	byID := make(map[string]*domain.Document, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	seen := make(map[string]struct{}, len(ranked))
	hits := make([]domain.SearchHit, 0, len(ranked))
	for _, item := range ranked {
		id := strings.TrimSpace(item.DocumentID.String())
		if id == "" {
			id = strings.TrimSpace(item.BlueprintID.String())
		}
		doc, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		hits = append(hits, domain.SearchHit{
			DocumentID: id,
			Filename:   doc.Filename,
			Relevance:  parseRelevance(item.Relevance.String()),
			Reason:     item.Reason,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevance > hits[j].Relevance
	})
	return hits
}

func parseRelevance(raw string) float64 {
	raw = strings.TrimSpace(raw)
	percent := strings.HasSuffix(raw, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return 0
	}
	// Bare values in (1, 2) are read as an overshoot of the 0..1 scale, not
	// as a percentage: 1.5 clamps to 1.
	if percent || v >= 2 && v <= 100 {
		v /= 100
	}
	return domain.ClampRelevance(v)
}
