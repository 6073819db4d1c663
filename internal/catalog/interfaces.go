package catalog

import (
	"context"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/pagination"
)

// ProductRepository defines the persistence surface for the catalog.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Product, error)
	Save(ctx context.Context, product *models.Product) (*models.Product, error)
}

// Uploader stores product images and serves back their public URL.
type Uploader interface {
	Save(folder, originalName string, r io.Reader) (string, error)
	Remove(publicURL string) error
}
