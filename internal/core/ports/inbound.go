package ports

import (
	"context"
	"io"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// DocumentUploader is the inbound contract for storing a new blueprint.
type DocumentUploader interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetDocument(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error)
}

// DocumentAnalyzer runs the structured extraction pipeline for one document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, ownerID, documentID string) (*domain.StructuredAnalysis, error)
	AnalyzeUploaded(ctx context.Context, documentID string) error
}

// DocumentChat is the inbound contract for conversations about a document.
type DocumentChat interface {
	Converse(ctx context.Context, userID, documentID, message, conversationID string) (*domain.ChatReply, error)
	GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
}

// DocumentComparer compares two analyzed documents.
type DocumentComparer interface {
	Compare(ctx context.Context, userID, documentAID, documentBID string) (*domain.ComparisonResult, error)
	History(ctx context.Context, userID, documentAID, documentBID string) ([]domain.Comparison, error)
}

// DocumentSearcher ranks a user's analyzed documents against a free-text query.
type DocumentSearcher interface {
	Search(ctx context.Context, userID, query string) ([]domain.SearchHit, error)
}

// AnalysisReconciler fails analyses stranded in the analyzing state.
type AnalysisReconciler interface {
	ReconcileStale(ctx context.Context) (int, error)
}
