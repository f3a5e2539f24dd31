package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

func TestComparisonLookupIsOrderIndependent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewComparisonRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO comparisons").
		WithArgs("cmp-1", "u1", "doc-b", "doc-a", "doc-a:doc-b", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, user_id, document_a_id, document_b_id, result, created_at").
		WithArgs("u1", "doc-a:doc-b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "document_a_id", "document_b_id", "result", "created_at"}).
			AddRow("cmp-1", "u1", "doc-b", "doc-a", []byte(`{"schemaVersion":1,"summary":"close","similarities":["roof"]}`), now))

	err = repo.Append(context.Background(), &domain.Comparison{
		ID: "cmp-1", UserID: "u1", DocumentAID: "doc-b", DocumentBID: "doc-a",
		Result:    domain.ComparisonResult{SchemaVersion: 1, Summary: "close"},
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	items, err := repo.ListByPair(context.Background(), "u1", "doc-a", "doc-b")
	if err != nil {
		t.Fatalf("ListByPair() error = %v", err)
	}
	if len(items) != 1 || items[0].DocumentAID != "doc-b" || items[0].Result.Similarities[0] != "roof" {
		t.Fatalf("unexpected items %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
