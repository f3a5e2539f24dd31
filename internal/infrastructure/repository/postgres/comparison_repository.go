package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

type ComparisonRepository struct {
	db *sql.DB
}

func NewComparisonRepository(db *sql.DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// Append never updates: every comparison is a new row keyed by the unordered pair.
func (r *ComparisonRepository) Append(ctx context.Context, cmp *domain.Comparison) error {
	payload, err := json.Marshal(cmp.Result)
	if err != nil {
		return fmt.Errorf("marshal comparison: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO comparisons (id, user_id, document_a_id, document_b_id, pair_key, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, cmp.ID, cmp.UserID, cmp.DocumentAID, cmp.DocumentBID, domain.PairKey(cmp.DocumentAID, cmp.DocumentBID), payload, cmp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comparison: %w", err)
	}
	return nil
}

func (r *ComparisonRepository) ListByPair(ctx context.Context, userID, documentAID, documentBID string) ([]domain.Comparison, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, document_a_id, document_b_id, result, created_at
FROM comparisons
WHERE user_id = $1 AND pair_key = $2
ORDER BY created_at ASC
`, userID, domain.PairKey(documentAID, documentBID))
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Comparison, 0)
	for rows.Next() {
		var cmp domain.Comparison
		var raw []byte
		if err := rows.Scan(&cmp.ID, &cmp.UserID, &cmp.DocumentAID, &cmp.DocumentBID, &raw, &cmp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		if err := json.Unmarshal(raw, &cmp.Result); err != nil {
			return nil, fmt.Errorf("unmarshal comparison: %w", err)
		}
		out = append(out, cmp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}
	return out, nil
}
