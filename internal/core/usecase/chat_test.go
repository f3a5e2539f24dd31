package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

func newChatFixture(ocr *textExtractorFake, vision *visionFake) (*ChatUseCase, *conversationRepoFake, *documentRepoFake) {
	docs := newDocumentRepoFake(ownedDoc("doc-1", "u1"), ownedDoc("doc-2", "u1"))
	convs := newConversationRepoFake()
	cache := NewOCRCache(docs, &fetcherFake{}, ocr, nil, nil)
	return NewChatUseCase(docs, convs, vision, cache, nil), convs, docs
}

func TestConverseAccumulatesAlternatingTurns(t *testing.T) {
	vision := &visionFake{}
	uc, convs, _ := newChatFixture(&textExtractorFake{}, vision)

	const exchanges = 5
	conversationID := ""
	for i := 0; i < exchanges; i++ {
		vision.replies = []string{fmt.Sprintf("answer %d", i)}
		reply, err := uc.Converse(context.Background(), "u1", "doc-1", fmt.Sprintf("question %d", i), conversationID)
		if err != nil {
			t.Fatalf("Converse() exchange %d error = %v", i, err)
		}
		if conversationID != "" && reply.ConversationID != conversationID {
			t.Fatalf("expected conversation id to be stable")
		}
		conversationID = reply.ConversationID
	}

	conv := convs.convs[conversationID]
	if len(conv.Turns) != 2*exchanges {
		t.Fatalf("expected %d turns, got %d", 2*exchanges, len(conv.Turns))
	}
	for i, turn := range conv.Turns {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d: expected %s, got %s", i, want, turn.Role)
		}
	}
	if conv.Turns[0].ImageURL != "file:///blobs/doc-1.png" {
		t.Fatalf("expected user turn to reference the document image, got %q", conv.Turns[0].ImageURL)
	}
	if conv.Version != exchanges {
		t.Fatalf("expected version %d, got %d", exchanges, conv.Version)
	}

	last := vision.calls[len(vision.calls)-1]
	if last.prompt != "question 4" {
		t.Fatalf("expected user message as prompt, got %q", last.prompt)
	}
	if strings.Contains(last.systemPrompt, "question 0") {
		t.Fatalf("expected history limited to the last 3 exchanges")
	}
	if !strings.Contains(last.systemPrompt, "User: question 1\n\nAssistant: answer 1") {
		t.Fatalf("expected recent history in system prompt, got %q", last.systemPrompt)
	}
}

func TestConverseBackendFailurePersistsNothing(t *testing.T) {
	vision := &visionFake{err: domain.WrapError(domain.ErrAnalysisBackend, "vision generate", errors.New("down"))}
	uc, convs, _ := newChatFixture(&textExtractorFake{}, vision)

	_, err := uc.Converse(context.Background(), "u1", "doc-1", "hello", "")
	if !errors.Is(err, domain.ErrAnalysisBackend) {
		t.Fatalf("expected ErrAnalysisBackend, got %v", err)
	}
	if convs.saves != 0 || len(convs.convs) != 0 {
		t.Fatalf("expected no persisted conversation")
	}
}

func TestConverseIncludesOCRContext(t *testing.T) {
	vision := &visionFake{replies: []string{"ok"}}
	ocr := &textExtractorFake{available: true, text: "GARAGE 24 x 24 ft"}
	uc, _, docs := newChatFixture(ocr, vision)

	if _, err := uc.Converse(context.Background(), "u1", "doc-1", "How big is the garage?", ""); err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if !strings.Contains(vision.calls[0].systemPrompt, "IMPORTANT CONTEXT - Text extracted from this blueprint using OCR:\nGARAGE 24 x 24 ft") {
		t.Fatalf("expected OCR context, got %q", vision.calls[0].systemPrompt)
	}
	stored, _ := docs.GetByID(context.Background(), "doc-1")
	if stored.OCRText != "GARAGE 24 x 24 ft" {
		t.Fatalf("expected OCR text cached on document")
	}
}

func TestConverseRejectsForeignOrMismatchedConversation(t *testing.T) {
	vision := &visionFake{replies: []string{"ok"}}
	uc, convs, _ := newChatFixture(&textExtractorFake{}, vision)

	reply, err := uc.Converse(context.Background(), "u1", "doc-1", "first", "")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}

	_, err = uc.Converse(context.Background(), "u1", "doc-2", "other doc", reply.ConversationID)
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for other document, got %v", err)
	}

	conv := convs.convs[reply.ConversationID]
	conv.UserID = "someone-else"
	convs.convs[reply.ConversationID] = conv
	_, err = uc.GetConversation(context.Background(), "u1", reply.ConversationID)
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for foreign user, got %v", err)
	}
}

func TestConverseStartsNewConversationForUnknownID(t *testing.T) {
	vision := &visionFake{replies: []string{"about 120 m2"}}
	uc, convs, _ := newChatFixture(&textExtractorFake{}, vision)

	reply, err := uc.Converse(context.Background(), "u1", "doc-1", "what is the area?", "stale-id-from-client")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if reply.ConversationID == "" || reply.ConversationID == "stale-id-from-client" {
		t.Fatalf("expected a fresh conversation id, got %q", reply.ConversationID)
	}
	if len(vision.calls) != 1 {
		t.Fatalf("expected one vision call, got %d", len(vision.calls))
	}
	conv, ok := convs.convs[reply.ConversationID]
	if !ok {
		t.Fatalf("expected new conversation to be saved")
	}
	if conv.UserID != "u1" || conv.DocumentID != "doc-1" || len(conv.Turns) != 2 || conv.Version != 1 {
		t.Fatalf("unexpected new conversation %+v", conv)
	}
	if _, exists := convs.convs["stale-id-from-client"]; exists {
		t.Fatalf("expected the unknown id not to be adopted")
	}
}

func TestConverseHidesOtherUsersConversation(t *testing.T) {
	vision := &visionFake{replies: []string{"ok"}}
	uc, convs, _ := newChatFixture(&textExtractorFake{}, vision)

	reply, err := uc.Converse(context.Background(), "u1", "doc-1", "first", "")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	conv := convs.convs[reply.ConversationID]
	conv.UserID = "someone-else"
	convs.convs[reply.ConversationID] = conv

	_, err = uc.Converse(context.Background(), "u1", "doc-1", "second", reply.ConversationID)
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for foreign conversation, got %v", err)
	}
	if convs.saves != 1 {
		t.Fatalf("expected no save for foreign conversation, got %d saves", convs.saves)
	}
}

func TestConverseSurfacesVersionConflict(t *testing.T) {
	vision := &visionFake{replies: []string{"ok"}}
	uc, convs, _ := newChatFixture(&textExtractorFake{}, vision)

	reply, err := uc.Converse(context.Background(), "u1", "doc-1", "first", "")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	convs.saveErr = domain.ErrVersionConflict

	_, err = uc.Converse(context.Background(), "u1", "doc-1", "second", reply.ConversationID)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestConverseRequiresMessage(t *testing.T) {
	uc, _, _ := newChatFixture(&textExtractorFake{}, &visionFake{})

	_, err := uc.Converse(context.Background(), "u1", "doc-1", "   ", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
