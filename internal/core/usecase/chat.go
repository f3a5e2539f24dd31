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
	"github.com/kirillkom/blueprint-assistant/internal/core/measure"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

type ChatUseCase struct {
	documents     ports.DocumentRepository
	conversations ports.ConversationRepository
	vision        ports.VisionAnalyzer
	ocr           *OCRCache
	logger        *slog.Logger
	now           func() time.Time
}

func NewChatUseCase(
	documents ports.DocumentRepository,
	conversations ports.ConversationRepository,
	vision ports.VisionAnalyzer,
	ocr *OCRCache,
	logger *slog.Logger,
) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		documents:     documents,
		conversations: conversations,
		vision:        vision,
		ocr:           ocr,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Converse runs one exchange. Nothing is persisted when the model call fails;
// a concurrent write to the same conversation yields domain.ErrVersionConflict.
func (uc *ChatUseCase) Converse(ctx context.Context, userID, documentID, message, conversationID string) (*domain.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}

	doc, err := loadOwnedDocument(ctx, uc.documents, userID, documentID)
	if err != nil {
		return nil, err
	}

	conv, err := uc.loadOrStart(ctx, userID, doc.ID, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}

	ocrText := uc.ocr.Ensure(ctx, doc)
	systemPrompt := buildChatSystemPrompt(
		buildChatOCRContext(ocrText, measure.Extract(ocrText)),
		conv.RecentTurns(chatHistoryTurns),
	)

	reply, err := uc.vision.Analyze(ctx, doc.StorageURL, message, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate chat reply: %w", err)
	}

	conv.AppendExchange(message, doc.StorageURL, reply, uc.now())
	if err := uc.conversations.Save(ctx, conv); err != nil {
		if domain.IsKind(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "save conversation", err)
	}

	uc.logger.Info("chat_exchange_saved",
		"document_id", doc.ID,
		"conversation_id", conv.ID,
		"turns", len(conv.Turns),
	)
	return &domain.ChatReply{Message: reply, ConversationID: conv.ID}, nil
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get conversation", errors.New("conversation id is required"))
	}
	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("conversation %s", conversationID))
	}
	return conv, nil
}

// loadOrStart resumes conversationID or starts a new conversation under a
// fresh id when it is empty or unknown. Conversations of another user or
// another document stay hidden as not found.
func (uc *ChatUseCase) loadOrStart(ctx context.Context, userID, documentID, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return uc.newConversation(userID, documentID), nil
	}

	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if domain.IsKind(err, domain.ErrConversationNotFound) {
		uc.logger.Info("chat_conversation_restarted", "document_id", documentID, "stale_conversation_id", conversationID)
		return uc.newConversation(userID, documentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "load conversation", fmt.Errorf("conversation %s", conversationID))
	}
	if conv.DocumentID != documentID {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "load conversation", fmt.Errorf("conversation %s does not belong to document %s", conversationID, documentID))
	}
	return conv, nil
}

func (uc *ChatUseCase) newConversation(userID, documentID string) *domain.Conversation {
	now := uc.now()
	return &domain.Conversation{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     userID,
		Turns:      []domain.Turn{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
