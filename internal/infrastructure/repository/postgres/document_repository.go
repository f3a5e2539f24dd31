package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

const documentColumns = `id, owner_id, filename, content_type, media_kind, storage_url, ocr_text, ocr_extracted_at,
	analysis, status, analyzed, auto_analyzed, analysis_started_at, error_message, created_at, updated_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, owner_id, filename, content_type, media_kind, storage_url, status, analyzed, auto_analyzed, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.OwnerID, doc.Filename, doc.ContentType, string(doc.MediaKind), doc.StorageURL,
		string(doc.Status), doc.Analyzed, doc.AutoAnalyzed, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM documents WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *DocumentRepository) ListAnalyzedByOwner(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM documents
WHERE owner_id = $1 AND analyzed = TRUE AND analysis IS NOT NULL
ORDER BY created_at DESC`, ownerID)
}

func (r *DocumentRepository) list(ctx context.Context, query, ownerID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// SaveOCRText writes only into an empty cache, so a populated value is final.
func (r *DocumentRepository) SaveOCRText(ctx context.Context, id, text string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET ocr_text = $2, ocr_extracted_at = $3, updated_at = $3
WHERE id = $1 AND (ocr_text IS NULL OR ocr_text = '')
`, id, text, at)
	if err != nil {
		return fmt.Errorf("save ocr text: %w", err)
	}
	return nil
}

// MarkAnalyzing is a compare-and-set: only a document that is not analyzing,
// or whose run started before staleBefore, is claimed.
func (r *DocumentRepository) MarkAnalyzing(ctx context.Context, id string, startedAt, staleBefore time.Time, auto bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, analysis_started_at = $3, auto_analyzed = auto_analyzed OR $4, error_message = '', updated_at = $3
WHERE id = $1
	AND (status <> $2 OR analysis_started_at IS NULL OR analysis_started_at < $5)
`, id, string(domain.StatusAnalyzing), startedAt, auto, staleBefore)
	if err != nil {
		return fmt.Errorf("mark analyzing: %w", err)
	}
	return ensureAffected(res, domain.ErrAnalysisInProgress, "mark analyzing", id)
}

func (r *DocumentRepository) SaveAnalysis(ctx context.Context, id string, runStartedAt time.Time, analysis domain.StructuredAnalysis, at time.Time) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET analysis = $2, status = $3, analyzed = TRUE, error_message = '', updated_at = $4
WHERE id = $1 AND status = $5 AND analysis_started_at = $6
`, id, payload, string(domain.StatusCompleted), at, string(domain.StatusAnalyzing), runStartedAt)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return ensureAffected(res, domain.ErrAnalysisSuperseded, "save analysis", id)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, runStartedAt time.Time, errMessage string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1 AND status = $5 AND analysis_started_at = $6
`, id, string(domain.StatusFailed), errMessage, at, string(domain.StatusAnalyzing), runStartedAt)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return ensureAffected(res, domain.ErrAnalysisSuperseded, "mark failed", id)
}

// FailStale re-checks the stale predicate in the update, so a run that
// finished or restarted after listing is left alone.
func (r *DocumentRepository) FailStale(ctx context.Context, id string, startedBefore time.Time, errMessage string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1 AND status = $5 AND (analysis_started_at IS NULL OR analysis_started_at < $6)
`, id, string(domain.StatusFailed), errMessage, at, string(domain.StatusAnalyzing), startedBefore)
	if err != nil {
		return false, fmt.Errorf("fail stale analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail stale analysis rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) ListStaleAnalyzing(ctx context.Context, startedBefore time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM documents
WHERE status = $1 AND (analysis_started_at IS NULL OR analysis_started_at < $2)
ORDER BY analysis_started_at NULLS FIRST
`, string(domain.StatusAnalyzing), startedBefore)
	if err != nil {
		return nil, fmt.Errorf("list stale analyzing: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale ids: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc         domain.Document
		ocrText     sql.NullString
		ocrAt       sql.NullTime
		analysisRaw []byte
		mediaKind   string
		status      string
		startedAt   sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.ContentType, &mediaKind, &doc.StorageURL,
		&ocrText, &ocrAt, &analysisRaw, &status, &doc.Analyzed, &doc.AutoAnalyzed, &startedAt,
		&doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}

	doc.MediaKind = domain.MediaKind(mediaKind)
	doc.Status = domain.AnalysisStatus(status)
	doc.OCRText = ocrText.String
	if ocrAt.Valid {
		at := ocrAt.Time
		doc.OCRExtractedAt = &at
	}
	if startedAt.Valid {
		at := startedAt.Time
		doc.AnalysisStartedAt = &at
	}
	if len(analysisRaw) > 0 {
		var analysis domain.StructuredAnalysis
		if err := json.Unmarshal(analysisRaw, &analysis); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal analysis: %w", err)
		}
		doc.Analysis = &analysis
	}
	return doc, nil
}
