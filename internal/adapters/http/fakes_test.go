package httpadapter

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/config"
	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

var fixedTime = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func sampleDocument(id, owner string) *domain.Document {
	return &domain.Document{
		ID:          id,
		OwnerID:     owner,
		Filename:    "plan.pdf",
		ContentType: "application/pdf",
		MediaKind:   domain.MediaPDF,
		StorageURL:  "file:///data/" + id + "_plan.pdf",
		Status:      domain.StatusPending,
		CreatedAt:   fixedTime,
		UpdatedAt:   fixedTime,
	}
}

type uploaderFake struct {
	ownerID     string
	filename    string
	contentType string
	body        string
	err         error
}

func (f *uploaderFake) Upload(_ context.Context, ownerID, filename, contentType string, body io.Reader) (*domain.Document, error) {
	f.ownerID, f.filename, f.contentType = ownerID, filename, contentType
	raw, _ := io.ReadAll(body)
	f.body = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return sampleDocument("doc-1", ownerID), nil
}

type readerFake struct {
	err error
}

func (f readerFake) GetDocument(_ context.Context, ownerID, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return sampleDocument(id, ownerID), nil
}

func (f readerFake) ListDocuments(_ context.Context, ownerID string) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Document{*sampleDocument("doc-1", ownerID)}, nil
}

type analyzerFake struct {
	ownerID string
	err     error
}

func (f *analyzerFake) Analyze(_ context.Context, ownerID, _ string) (*domain.StructuredAnalysis, error) {
	f.ownerID = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StructuredAnalysis{
		SchemaVersion: 1,
		Summary:       "Two-storey office",
		Features:      domain.TextList{"elevator"},
		Compliance:    &domain.Compliance{Status: domain.ComplianceNeedsReview},
	}, nil
}

func (f *analyzerFake) AnalyzeUploaded(context.Context, string) error { return nil }

type chatFake struct {
	err error
}

func (f chatFake) Converse(_ context.Context, _, _, message, conversationID string) (*domain.ChatReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	if conversationID == "" {
		conversationID = "conv-1"
	}
	return &domain.ChatReply{Message: "re: " + message, ConversationID: conversationID}, nil
}

func (f chatFake) GetConversation(_ context.Context, userID, id string) (*domain.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	conv := &domain.Conversation{ID: id, DocumentID: "doc-1", UserID: userID, Version: 1, CreatedAt: fixedTime}
	conv.AppendExchange("how big?", "", "180 m2", fixedTime)
	return conv, nil
}

type comparerFake struct {
	historyArgs [2]string
	err         error
}

func (f *comparerFake) Compare(context.Context, string, string, string) (*domain.ComparisonResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ComparisonResult{SchemaVersion: 1, Summary: "similar", Similarities: domain.TextList{"roof"}}, nil
}

func (f *comparerFake) History(_ context.Context, userID, a, b string) ([]domain.Comparison, error) {
	f.historyArgs = [2]string{a, b}
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Comparison{{
		ID: "cmp-1", UserID: userID, DocumentAID: a, DocumentBID: b,
		Result:    domain.ComparisonResult{SchemaVersion: 1, Summary: "similar"},
		CreatedAt: fixedTime,
	}}, nil
}

type searcherFake struct {
	err error
}

func (f searcherFake) Search(context.Context, string, string) ([]domain.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.SearchHit{{DocumentID: "doc-1", Filename: "plan.pdf", Relevance: 0.8, Reason: "has elevator"}}, nil
}

func defaultServices() Services {
	return Services{
		Uploader: &uploaderFake{},
		Reader:   readerFake{},
		Analyzer: &analyzerFake{},
		Chat:     chatFake{},
		Comparer: &comparerFake{},
		Searcher: searcherFake{},
	}
}

func devConfig() config.Config {
	return config.Config{AuthDevUser: "dev-user", MaxUploadBytes: 1 << 20}
}
