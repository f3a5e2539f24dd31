package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

const DefaultMaxUploadBytes int64 = 50 << 20

var allowedUploadExtensions = map[string]struct{}{
	"pdf": {}, "png": {}, "jpg": {}, "jpeg": {}, "webp": {}, "gif": {}, "dwg": {}, "dxf": {},
}

var allowedUploadTypes = map[string]struct{}{
	"application/pdf":   {},
	"image/png":         {},
	"image/jpeg":        {},
	"image/jpg":         {},
	"image/webp":        {},
	"image/gif":         {},
	"application/acad":  {},
	"application/x-dwg": {},
	"image/vnd.dwg":     {},
	"image/vnd.dxf":     {},
}

type UploadDocumentUseCase struct {
	repo     ports.DocumentRepository
	blobs    ports.BlobStore
	queue    ports.MessageQueue
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadDocumentUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	queue ports.MessageQueue,
	maxBytes int64,
	logger *slog.Logger,
) *UploadDocumentUseCase {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadDocumentUseCase{
		repo:     repo,
		blobs:    blobs,
		queue:    queue,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload stores the file, records a pending document and announces it.
// A failed publish leaves the document pending for manual analysis.
func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	ownerID, filename, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "upload document", errors.New("owner id is required"))
	}
	if !uploadAllowed(filename, contentType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("invalid file type. Allowed: PDF, PNG, JPG, WEBP, GIF, DWG, DXF"))
	}

	data, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file is empty"))
	}

	id := uuid.NewString()
	storageName := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	url, err := uc.blobs.Put(ctx, ownerID, storageName, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("save to blob storage: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: contentType,
		MediaKind:   domain.DetectMediaKind(contentType, filename),
		StorageURL:  url,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "create document metadata", err)
	}

	if uc.queue != nil {
		if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
			uc.logger.Warn("upload_event_publish_failed", "document_id", doc.ID, "error", err)
		}
	}

	uc.logger.Info("document_uploaded", "document_id", doc.ID, "media_kind", doc.MediaKind, "bytes", len(data))
	return doc, nil
}

func uploadAllowed(filename, contentType string) bool {
	if _, ok := allowedUploadExtensions[domain.Extension(filename)]; ok {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	_, ok := allowedUploadTypes[ct]
	return ok
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "blueprint.bin"
	}
	return base
}
