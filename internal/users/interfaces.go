package users

import (
	"context"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/pagination"
)

// UserRepository defines the persistence surface for the user directory.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.User, error)
	ListActive(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.User, error)
	Save(ctx context.Context, user *models.User) (*models.User, error)
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

// Uploader stores avatar images and serves back their public URL.
type Uploader interface {
	Save(folder, originalName string, r io.Reader) (string, error)
	Remove(publicURL string) error
}
