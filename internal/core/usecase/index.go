package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

const defaultPrefilterTopK = 20

// AnalysisIndexer embeds completed analyses so search can narrow its candidates.
type AnalysisIndexer struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	vectors  ports.VectorStore
	topK     int
}

func NewAnalysisIndexer(chunker ports.Chunker, embedder ports.Embedder, vectors ports.VectorStore, topK int) *AnalysisIndexer {
	if topK <= 0 {
		topK = defaultPrefilterTopK
	}
	return &AnalysisIndexer{chunker: chunker, embedder: embedder, vectors: vectors, topK: topK}
}

func (ix *AnalysisIndexer) Index(ctx context.Context, doc *domain.Document, analysis domain.StructuredAnalysis) error {
	chunks := ix.chunker.Split(indexText(doc, analysis))
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	items := make([]domain.IndexChunk, 0, len(chunks))
	for i, text := range chunks {
		items = append(items, domain.IndexChunk{
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Index:      i,
			Text:       text,
		})
	}
	if err := ix.vectors.ReplaceDocumentChunks(ctx, items, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

// Candidates returns owner document ids ranked by vector similarity, deduplicated.
func (ix *AnalysisIndexer) Candidates(ctx context.Context, ownerID, query string) ([]string, error) {
	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ids, err := ix.vectors.SearchDocuments(ctx, ownerID, vector, ix.topK)
	if err != nil {
		return nil, fmt.Errorf("search vector db: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func indexText(doc *domain.Document, analysis domain.StructuredAnalysis) string {
	parts := []string{doc.Filename, analysis.Summary.String()}
	for _, feature := range analysis.Features {
		parts = append(parts, feature.String())
	}
	for _, room := range analysis.Rooms {
		parts = append(parts, strings.TrimSpace(room.Name.String()+" "+room.Area.String()))
	}
	for _, material := range analysis.Materials {
		parts = append(parts, strings.TrimSpace(material.Type.String()+" "+material.Specifications.String()))
	}
	if analysis.Compliance != nil {
		parts = append(parts, string(analysis.Compliance.Status))
		for _, issue := range analysis.Compliance.Issues {
			parts = append(parts, issue.String())
		}
	}
	if doc.OCRText != "" {
		parts = append(parts, doc.OCRText)
	}

	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func logPrefilterFallback(logger *slog.Logger, ownerID string, err error) {
	if err != nil {
		logger.Warn("search_prefilter_failed", "owner_id", ownerID, "error", err)
		return
	}
	logger.Debug("search_prefilter_empty", "owner_id", ownerID)
}
