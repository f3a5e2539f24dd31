package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, user_id, turns, version, created_at, updated_at
FROM conversations
WHERE id = $1
`, id)

	var conv domain.Conversation
	var turnsRaw []byte
	if err := row.Scan(&conv.ID, &conv.DocumentID, &conv.UserID, &turnsRaw, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if err := json.Unmarshal(turnsRaw, &conv.Turns); err != nil {
		return nil, fmt.Errorf("unmarshal turns: %w", err)
	}
	return &conv, nil
}

// Save replaces the whole turn log. The write only lands when the stored
// version still equals conv.Version; on success conv.Version is advanced.
func (r *ConversationRepository) Save(ctx context.Context, conv *domain.Conversation) error {
	turns := conv.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}

	var res sql.Result
	if conv.IsNew() {
		res, err = r.db.ExecContext(ctx, `
INSERT INTO conversations (id, document_id, user_id, turns, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,1,$5,$6)
ON CONFLICT (id) DO NOTHING
`, conv.ID, conv.DocumentID, conv.UserID, turnsJSON, conv.CreatedAt, conv.UpdatedAt)
	} else {
		res, err = r.db.ExecContext(ctx, `
UPDATE conversations
SET turns = $2, version = version + 1, updated_at = $3
WHERE id = $1 AND version = $4
`, conv.ID, turnsJSON, conv.UpdatedAt, conv.Version)
	}
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	if err := ensureAffected(res, domain.ErrVersionConflict, "save conversation", conv.ID); err != nil {
		return err
	}
	conv.Version++
	return nil
}
