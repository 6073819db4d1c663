package catalog

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/enums"
	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"
	"github.com/vitorbmulford/bsf-api/pkg/pagination"
)

type fakeProductRepo struct {
	products map[uuid.UUID]*models.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[uuid.UUID]*models.Product{}}
}

func (f *fakeProductRepo) WithTx(tx *gorm.DB) ProductRepository { return f }

func (f *fakeProductRepo) Create(_ context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) FindActiveByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok || p.Status != enums.ProductStatusActive {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) ListActive(_ context.Context, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	var rows []models.Product
	for _, p := range f.products {
		if p.Status != enums.ProductStatusActive {
			continue
		}
		rows = append(rows, *p)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID.String() > rows[j].ID.String()
	})
	if cursor != nil {
		var filtered []models.Product
		for _, p := range rows {
			if p.CreatedAt.Before(cursor.CreatedAt) ||
				(p.CreatedAt.Equal(cursor.CreatedAt) && p.ID.String() < cursor.ID.String()) {
				filtered = append(filtered, p)
			}
		}
		rows = filtered
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeProductRepo) Save(_ context.Context, product *models.Product) (*models.Product, error) {
	f.products[product.ID] = product
	return product, nil
}

type fakeUploader struct {
	saved   []string
	removed []string
}

func (f *fakeUploader) Save(folder, originalName string, _ io.Reader) (string, error) {
	url := "/uploads/" + folder + "/" + originalName
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeUploader) Remove(publicURL string) error {
	f.removed = append(f.removed, publicURL)
	return nil
}

func newCatalogService(t *testing.T) (Service, *fakeProductRepo, *fakeUploader) {
	t.Helper()
	repo := newFakeProductRepo()
	uploader := &fakeUploader{}
	svc, err := NewService(repo, uploader)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, uploader
}

func mustCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	return typed.Code()
}

func validInput() CreateProductInput {
	return CreateProductInput{
		Name:        "Boné BSF",
		Price:       decimal.RequireFromString("49.90"),
		Description: "Boné bordado",
		ImageURL:    "/uploads/produtos/bone.png",
		Stock:       3,
	}
}

func TestCreateProduct(t *testing.T) {
	svc, repo, _ := newCatalogService(t)

	product, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if product.Status != enums.ProductStatusActive {
		t.Fatalf("expected active product, got %s", product.Status)
	}
	if len(repo.products) != 1 {
		t.Fatalf("expected 1 stored product, got %d", len(repo.products))
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, _ := newCatalogService(t)
	ctx := context.Background()

	bad := validInput()
	bad.Price = decimal.Zero
	if _, err := svc.Create(ctx, bad); mustCode(t, err) != pkgerrors.CodeValidation {
		t.Fatal("expected validation error for zero price")
	}

	bad = validInput()
	promo := decimal.RequireFromString("60.00")
	bad.PromoPrice = &promo
	if _, err := svc.Create(ctx, bad); mustCode(t, err) != pkgerrors.CodeValidation {
		t.Fatal("expected validation error for promo above list price")
	}

	bad = validInput()
	bad.Stock = -1
	if _, err := svc.Create(ctx, bad); mustCode(t, err) != pkgerrors.CodeValidation {
		t.Fatal("expected validation error for negative stock")
	}
}

func TestListPaginatesWithCursor(t *testing.T) {
	svc, repo, _ := newCatalogService(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		repo.products[uuid.New()] = &models.Product{
			ID:        uuid.New(),
			Name:      "Produto",
			Price:     decimal.RequireFromString("10.00"),
			Status:    enums.ProductStatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}

	first, err := svc.List(ctx, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first.Items))
	}
	if first.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}

	second, err := svc.List(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(second.Items))
	}
	for _, a := range first.Items {
		for _, b := range second.Items {
			if a.ID == b.ID {
				t.Fatalf("pages overlap on %s", a.ID)
			}
		}
	}

	third, err := svc.List(ctx, pagination.Params{Limit: 2, Cursor: second.NextCursor})
	if err != nil {
		t.Fatalf("list third page: %v", err)
	}
	if len(third.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(third.Items))
	}
	if third.NextCursor != "" {
		t.Fatal("expected the cursor to be exhausted")
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, _, _ := newCatalogService(t)

	_, err := svc.List(context.Background(), pagination.Params{Cursor: "???"})
	if mustCode(t, err) != pkgerrors.CodeValidation {
		t.Fatal("expected validation error")
	}
}

func TestListSkipsInactive(t *testing.T) {
	svc, repo, _ := newCatalogService(t)
	id := uuid.New()
	repo.products[id] = &models.Product{
		ID:        id,
		Price:     decimal.RequireFromString("10.00"),
		Status:    enums.ProductStatusInactive,
		CreatedAt: time.Now(),
	}

	page, err := svc.List(context.Background(), pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("inactive product should be hidden, got %d items", len(page.Items))
	}
}

func TestUpdateProduct(t *testing.T) {
	svc, _, _ := newCatalogService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Boné BSF Premium"
	price := decimal.RequireFromString("79.90")
	promo := decimal.RequireFromString("59.90")
	updated, err := svc.Update(ctx, product.ID, UpdateProductInput{
		Name:       &name,
		Price:      &price,
		PromoPrice: &promo,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("expected updated name, got %s", updated.Name)
	}
	if updated.PromoPrice == nil || !updated.PromoPrice.Equal(promo) {
		t.Fatal("expected promo price to be set")
	}

	cleared, err := svc.Update(ctx, product.ID, UpdateProductInput{ClearPromo: true})
	if err != nil {
		t.Fatalf("clear promo: %v", err)
	}
	if cleared.PromoPrice != nil {
		t.Fatal("expected promo price to be cleared")
	}
}

func TestUpdateUnknownProduct(t *testing.T) {
	svc, _, _ := newCatalogService(t)

	_, err := svc.Update(context.Background(), uuid.New(), UpdateProductInput{})
	if mustCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatal("expected not found")
	}
}

func TestDeactivateHidesProduct(t *testing.T) {
	svc, _, _ := newCatalogService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Deactivate(ctx, product.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	// Idempotent.
	if err := svc.Deactivate(ctx, product.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}

	if _, err := svc.FindActiveByID(ctx, product.ID); mustCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatal("deactivated product should not resolve as active")
	}
	if _, err := svc.GetByID(ctx, product.ID); err != nil {
		t.Fatalf("admin lookup should still work: %v", err)
	}
}

func TestUpdateImageReplacesPrevious(t *testing.T) {
	svc, _, uploader := newCatalogService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateImage(ctx, product.ID, "novo.png", bytes.NewReader([]byte("img")))
	if err != nil {
		t.Fatalf("update image: %v", err)
	}
	if updated.ImageURL != "/uploads/produtos/novo.png" {
		t.Fatalf("unexpected image url %s", updated.ImageURL)
	}
	if len(uploader.removed) != 1 || uploader.removed[0] != "/uploads/produtos/bone.png" {
		t.Fatalf("expected previous image removal, got %v", uploader.removed)
	}
}

func TestUpdateImageWithoutUploader(t *testing.T) {
	repo := newFakeProductRepo()
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.UpdateImage(context.Background(), uuid.New(), "x.png", bytes.NewReader(nil))
	if mustCode(t, err) != pkgerrors.CodeValidation {
		t.Fatal("expected validation error when uploads are disabled")
	}
}
