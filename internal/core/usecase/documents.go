package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

type DocumentQueryUseCase struct {
	repo ports.DocumentRepository
}

func NewDocumentQueryUseCase(repo ports.DocumentRepository) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{repo: repo}
}

func (uc *DocumentQueryUseCase) GetDocument(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	return loadOwnedDocument(ctx, uc.repo, ownerID, documentID)
}

func (uc *DocumentQueryUseCase) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "list documents", fmt.Errorf("owner id is required"))
	}
	docs, err := uc.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// loadOwnedDocument hides documents of other users behind ErrDocumentNotFound.
func loadOwnedDocument(ctx context.Context, repo ports.DocumentRepository, ownerID, documentID string) (*domain.Document, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load document", fmt.Errorf("document id is required"))
	}
	doc, err := repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "load document", fmt.Errorf("document %s", documentID))
	}
	return doc, nil
}
