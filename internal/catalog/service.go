package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/enums"
	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"
	"github.com/vitorbmulford/bsf-api/pkg/pagination"
)

const imageFolder = "produtos"

// CreateProductInput carries the fields accepted when listing a product.
type CreateProductInput struct {
	Name        string
	Price       decimal.Decimal
	PromoPrice  *decimal.Decimal
	Description string
	ImageURL    string
	Stock       int
	Category    *string
}

// UpdateProductInput carries partial updates. Nil fields are left untouched.
type UpdateProductInput struct {
	Name        *string
	Price       *decimal.Decimal
	PromoPrice  *decimal.Decimal
	ClearPromo  bool
	Description *string
	Stock       *int
	Category    *string
}

// Page is one window of the active catalog listing.
type Page struct {
	Items      []models.Product
	NextCursor string
}

// Service exposes the product catalog.
type Service interface {
	List(ctx context.Context, params pagination.Params) (*Page, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdateImage(ctx context.Context, id uuid.UUID, filename string, file io.Reader) (*models.Product, error)
}

type service struct {
	repo     ProductRepository
	uploader Uploader
}

// NewService wires the catalog with its dependencies. The uploader is
// optional; without it image updates are rejected.
func NewService(repo ProductRepository, uploader Uploader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, uploader: uploader}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListActive(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find product")
	}
	return product, nil
}

func (s *service) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find product")
	}
	return product, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validatePricing(input.Price, input.PromoPrice); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	product := &models.Product{
		Name:        input.Name,
		Price:       input.Price,
		PromoPrice:  input.PromoPrice,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Stock:       input.Stock,
		Category:    input.Category,
		Status:      enums.ProductStatusActive,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.ClearPromo {
		product.PromoPrice = nil
	} else if input.PromoPrice != nil {
		product.PromoPrice = input.PromoPrice
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.Category != nil {
		product.Category = input.Category
	}

	if err := validatePricing(product.Price, product.PromoPrice); err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return saved, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if product.Status == enums.ProductStatusInactive {
		return nil
	}

	product.Status = enums.ProductStatusInactive
	if _, err := s.repo.Save(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: deactivate product")
	}
	return nil
}

func (s *service) UpdateImage(ctx context.Context, id uuid.UUID, filename string, file io.Reader) (*models.Product, error) {
	if s.uploader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image uploads are disabled")
	}

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.uploader.Save(imageFolder, filename, file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage: save product image")
	}

	previous := product.ImageURL
	product.ImageURL = url
	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product image")
	}
	if previous != "" && previous != url {
		_ = s.uploader.Remove(previous)
	}
	return saved, nil
}

func validatePricing(price decimal.Decimal, promo *decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if promo != nil {
		if !promo.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "promotional price must be positive")
		}
		if promo.GreaterThanOrEqual(price) {
			return pkgerrors.New(pkgerrors.CodeValidation, "promotional price must be below the list price")
		}
	}
	return nil
}
