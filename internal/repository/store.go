package repository

import (
	"context"
	"errors"

	"github.com/RishiKendai/paperlit/internal/models"
)

// ErrNotFound is returned when a document does not exist or belongs to another user.
var ErrNotFound = errors.New("document not found")

// DocumentStore persists uploaded documents and their originality results.
// Every lookup is scoped to the owning user.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	// Update replaces the stored document with the same ID and owner.
	Update(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, userID, documentID string) (*models.Document, error)
	// ListByUser returns the user's documents, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Document, error)
	Delete(ctx context.Context, userID, documentID string) error
}
