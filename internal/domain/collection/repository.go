package collection

import (
	"context"

	"github.com/google/uuid"
)

// Repository abstracts collection persistence. It does not remove a
// collection's documents or chunks; CascadeDeleter below does that.
type Repository interface {
	Create(ctx context.Context, c Collection) (Collection, error)
	Get(ctx context.Context, id uuid.UUID, ownerID int64) (Collection, bool, error)
	GetByName(ctx context.Context, ownerID int64, name string) (Collection, bool, error)
	List(ctx context.Context, ownerID int64) ([]Collection, error)
	Update(ctx context.Context, c Collection) (Collection, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID int64) error
}

// CascadeDeleter is implemented by the ingestion store so collection
// deletion can remove dependent documents and chunks explicitly, rather
// than relying on an ON DELETE CASCADE foreign key.
type CascadeDeleter interface {
	DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error
}
