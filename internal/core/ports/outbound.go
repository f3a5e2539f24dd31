package ports

import (
	"context"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)
	ListAnalyzedByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)
	// SaveOCRText stores text only when the cache is still empty.
	SaveOCRText(ctx context.Context, id, text string, at time.Time) error
	// MarkAnalyzing claims the document for a run started at startedAt. A run
	// still analyzing since staleBefore or later keeps it and the call fails
	// with domain.ErrAnalysisInProgress.
	MarkAnalyzing(ctx context.Context, id string, startedAt, staleBefore time.Time, auto bool) error
	// SaveAnalysis and MarkFailed only finish the run that started at
	// runStartedAt; otherwise they fail with domain.ErrAnalysisSuperseded.
	SaveAnalysis(ctx context.Context, id string, runStartedAt time.Time, analysis domain.StructuredAnalysis, at time.Time) error
	MarkFailed(ctx context.Context, id string, runStartedAt time.Time, errMessage string, at time.Time) error
	ListStaleAnalyzing(ctx context.Context, startedBefore time.Time) ([]string, error)
	// FailStale fails id only if it is still analyzing since before startedBefore.
	FailStale(ctx context.Context, id string, startedBefore time.Time, errMessage string, at time.Time) (bool, error)
}

// ConversationRepository stores whole conversation logs.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	// Save inserts a new log (Version 0) or replaces an existing one whose stored
	// version equals Version. A stale version yields domain.ErrVersionConflict.
	Save(ctx context.Context, conv *domain.Conversation) error
}

// ComparisonRepository appends comparison records.
type ComparisonRepository interface {
	Append(ctx context.Context, cmp *domain.Comparison) error
	ListByPair(ctx context.Context, userID, documentAID, documentBID string) ([]domain.Comparison, error)
}

// BlobStore keeps uploaded source files and returns a retrievable URL.
type BlobStore interface {
	Put(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error)
}

// BlobFetcher retrieves source bytes by URL.
type BlobFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// FormatNormalizer turns a source file into vision-ready images.
type FormatNormalizer interface {
	Normalize(ctx context.Context, data []byte, contentType, name string) (domain.NormalizedDocument, error)
}

// TextExtractor is the optional OCR stage. Extract never fails; backend
// errors come back as an empty result.
type TextExtractor interface {
	Available() bool
	Extract(ctx context.Context, data []byte, contentType string) domain.OCRResult
}

// VisionBackend sends one multi-part request to a vision-capable model.
type VisionBackend interface {
	Name() string
	Generate(ctx context.Context, req domain.VisionRequest) (string, error)
}

// VisionAnalyzer fetches, normalizes and submits a document with a prompt.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, documentURL, userPrompt, systemPrompt string) (string, error)
}

// StructuredExtractor produces a StructuredAnalysis for a document.
type StructuredExtractor interface {
	Extract(ctx context.Context, documentURL, ocrContext string) (domain.StructuredAnalysis, error)
}

// Embedder builds vectors for index chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into embeddable pieces.
type Chunker interface {
	Split(text string) []string
}

// VectorStore indexes analysis chunks and returns matching document ids.
type VectorStore interface {
	ReplaceDocumentChunks(ctx context.Context, chunks []domain.IndexChunk, vectors [][]float32) error
	SearchDocuments(ctx context.Context, ownerID string, queryVector []float32, limit int) ([]string, error)
}

// PipelineMetrics observes pipeline outcomes. Implementations must be safe for concurrent use.
type PipelineMetrics interface {
	ObserveOCR(outcome string)
	ObserveParse(tier string)
	ObserveAnalysis(outcome string)
	ObserveReconciled(n int)
}
