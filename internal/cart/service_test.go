package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/enums"
	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"
)

type fakeRepo struct {
	carts []*models.Cart
	items []*models.CartItem

	cartCreateErr  error
	itemCreateErr  error
	cartCreateHook func(*fakeRepo)
	itemCreateHook func(*fakeRepo)

	inTx    bool
	aborted bool
}

func (f *fakeRepo) WithTx(tx *gorm.DB) CartRepository { return f }

// stmtErr mirrors Postgres rejecting every statement after a failed one
// until the transaction ends.
func (f *fakeRepo) stmtErr() error {
	if f.inTx && f.aborted {
		return errors.New("ERROR: current transaction is aborted, commands ignored until end of transaction block (SQLSTATE 25P02)")
	}
	return nil
}

func (f *fakeRepo) FindOpenByUser(_ context.Context, userID uuid.UUID) (*models.Cart, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	for _, c := range f.carts {
		if c.UserID == userID && c.Status == enums.CartStatusOpen {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) Create(_ context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	if f.cartCreateHook != nil {
		f.cartCreateHook(f)
		f.cartCreateHook = nil
	}
	if f.cartCreateErr != nil {
		err := f.cartCreateErr
		f.cartCreateErr = nil
		if f.inTx {
			f.aborted = true
		}
		return nil, err
	}
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	f.carts = append(f.carts, cart)
	return cart, nil
}

func (f *fakeRepo) FindItem(_ context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	for _, it := range f.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindItemByID(_ context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	for _, it := range f.items {
		if it.CartID == cartID && it.ID == itemID {
			return it, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateItem(_ context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	if f.itemCreateHook != nil {
		f.itemCreateHook(f)
		f.itemCreateHook = nil
	}
	if f.itemCreateErr != nil {
		err := f.itemCreateErr
		f.itemCreateErr = nil
		if f.inTx {
			f.aborted = true
		}
		return nil, err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeRepo) SaveItem(_ context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	for _, it := range f.items {
		if it.ID == item.ID {
			*it = *item
			return it, nil
		}
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeRepo) ListItems(_ context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	if err := f.stmtErr(); err != nil {
		return nil, err
	}
	var out []models.CartItem
	for _, it := range f.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) (int64, error) {
	if err := f.stmtErr(); err != nil {
		return 0, err
	}
	for i, it := range f.items {
		if it.CartID == cartID && it.ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeRepo) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	if err := f.stmtErr(); err != nil {
		return err
	}
	var kept []*models.CartItem
	for _, it := range f.items {
		if it.CartID != cartID {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeRepo) SumSubtotals(_ context.Context, cartID uuid.UUID) (decimal.Decimal, error) {
	if err := f.stmtErr(); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, it := range f.items {
		if it.CartID == cartID {
			total = total.Add(it.Subtotal)
		}
	}
	return total, nil
}

func (f *fakeRepo) UpdateTotal(_ context.Context, cartID uuid.UUID, total decimal.Decimal) error {
	if err := f.stmtErr(); err != nil {
		return err
	}
	for _, c := range f.carts {
		if c.ID == cartID {
			c.Total = total
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeTxRunner struct {
	repo *fakeRepo
}

func (f fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	if f.repo == nil {
		return fn(nil)
	}
	f.repo.inTx = true
	f.repo.aborted = false
	defer func() {
		f.repo.inTx = false
		f.repo.aborted = false
	}()
	return fn(nil)
}

type fakeUsers struct {
	active map[uuid.UUID]bool
}

func (f *fakeUsers) ExistsActive(_ context.Context, userID uuid.UUID) (bool, error) {
	return f.active[userID], nil
}

type fakeCatalog struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeCatalog) FindActiveByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok || p.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

type fixture struct {
	svc     Service
	repo    *fakeRepo
	users   *fakeUsers
	catalog *fakeCatalog
	userID  uuid.UUID
	product *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userID := uuid.New()
	product := &models.Product{
		ID:     uuid.New(),
		Name:   "Camiseta BSF",
		Price:  decimal.RequireFromString("59.90"),
		Stock:  10,
		Status: enums.ProductStatusActive,
	}
	repo := &fakeRepo{}
	users := &fakeUsers{active: map[uuid.UUID]bool{userID: true}}
	catalog := &fakeCatalog{products: map[uuid.UUID]*models.Product{product.ID: product}}
	svc, err := NewService(repo, fakeTxRunner{repo: repo}, users, catalog)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, repo: repo, users: users, catalog: catalog, userID: userID, product: product}
}

func errCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	return typed.Code()
}

func TestNewServiceValidatesDeps(t *testing.T) {
	if _, err := NewService(nil, fakeTxRunner{}, &fakeUsers{}, &fakeCatalog{}); err == nil {
		t.Fatal("expected error for nil repo")
	}
	if _, err := NewService(&fakeRepo{}, nil, &fakeUsers{}, &fakeCatalog{}); err == nil {
		t.Fatal("expected error for nil db client")
	}
	if _, err := NewService(&fakeRepo{}, fakeTxRunner{}, nil, &fakeCatalog{}); err == nil {
		t.Fatal("expected error for nil user directory")
	}
	if _, err := NewService(&fakeRepo{}, fakeTxRunner{}, &fakeUsers{}, nil); err == nil {
		t.Fatal("expected error for nil catalog")
	}
}

func TestGetOrCreateCartCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateCart(ctx, f.userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.Status != enums.CartStatusOpen {
		t.Fatalf("expected open cart, got %s", first.Status)
	}

	second, err := f.svc.GetOrCreateCart(ctx, f.userID)
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same cart, got %s and %s", first.ID, second.ID)
	}
	if len(f.repo.carts) != 1 {
		t.Fatalf("expected a single cart, got %d", len(f.repo.carts))
	}
}

func TestGetOrCreateCartRejectsUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetOrCreateCart(context.Background(), uuid.New())
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}

func TestGetOrCreateCartReloadsAfterRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var winner *models.Cart
	f.repo.cartCreateErr = errors.New(`duplicate key value violates unique constraint "ux_carts_user_open"`)
	f.repo.cartCreateHook = func(r *fakeRepo) {
		winner = &models.Cart{ID: uuid.New(), UserID: f.userID, Status: enums.CartStatusOpen, Total: decimal.Zero}
		r.carts = append(r.carts, winner)
	}

	cart, err := f.svc.GetOrCreateCart(ctx, f.userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if cart.ID != winner.ID {
		t.Fatalf("expected the concurrent winner's cart, got %s", cart.ID)
	}
	if len(f.repo.carts) != 1 {
		t.Fatalf("expected a single cart, got %d", len(f.repo.carts))
	}
}

func TestAddItemFreezesUnitPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if !item.UnitPrice.Equal(decimal.RequireFromString("59.90")) {
		t.Fatalf("unexpected unit price %s", item.UnitPrice)
	}
	if !item.Subtotal.Equal(decimal.RequireFromString("119.80")) {
		t.Fatalf("unexpected subtotal %s", item.Subtotal)
	}

	// Catalog price changes must not touch existing lines.
	f.product.Price = decimal.RequireFromString("99.90")
	items, err := f.svc.ListItems(ctx, f.userID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if !items[0].UnitPrice.Equal(decimal.RequireFromString("59.90")) {
		t.Fatalf("unit price should stay frozen, got %s", items[0].UnitPrice)
	}
}

func TestAddItemUsesPromoPrice(t *testing.T) {
	f := newFixture(t)
	promo := decimal.RequireFromString("39.90")
	f.product.PromoPrice = &promo

	item, err := f.svc.AddItem(context.Background(), f.userID, f.product.ID, 1)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if !item.UnitPrice.Equal(promo) {
		t.Fatalf("expected promo price, got %s", item.UnitPrice)
	}
}

func TestAddItemMergesQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	item, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if item.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", item.Quantity)
	}
	if !item.Subtotal.Equal(decimal.RequireFromString("299.50")) {
		t.Fatalf("unexpected subtotal %s", item.Subtotal)
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("expected a single line, got %d", len(f.repo.items))
	}

	cart, _ := f.svc.GetOrCreateCart(ctx, f.userID)
	if !cart.Total.Equal(decimal.RequireFromString("299.50")) {
		t.Fatalf("expected total 299.50, got %s", cart.Total)
	}
}

func TestAddItemMergesAfterInsertRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.svc.GetOrCreateCart(ctx, f.userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	f.repo.itemCreateErr = errors.New(`duplicate key value violates unique constraint "ux_cart_items_cart_product"`)
	f.repo.itemCreateHook = func(r *fakeRepo) {
		r.items = append(r.items, &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: f.product.ID,
			Quantity:  1,
			UnitPrice: f.product.Price,
			Subtotal:  f.product.Price,
		})
	}

	item, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", item.Quantity)
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("expected a single line, got %d", len(f.repo.items))
	}
}

func TestAddItemRecoversFromCartInsertRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The losing insert aborts the surrounding transaction, so the
	// winner's cart only becomes visible on the retry.
	var winner *models.Cart
	f.repo.cartCreateErr = errors.New(`duplicate key value violates unique constraint "ux_carts_user_open"`)
	f.repo.cartCreateHook = func(r *fakeRepo) {
		winner = &models.Cart{ID: uuid.New(), UserID: f.userID, Status: enums.CartStatusOpen, Total: decimal.Zero}
		r.carts = append(r.carts, winner)
	}

	item, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.CartID != winner.ID {
		t.Fatalf("expected the item on the winner's cart, got %s", item.CartID)
	}
	if len(f.repo.carts) != 1 {
		t.Fatalf("expected a single cart, got %d", len(f.repo.carts))
	}
	if !winner.Total.Equal(decimal.RequireFromString("119.80")) {
		t.Fatalf("expected total 119.80, got %s", winner.Total)
	}
}

func TestAddItemValidatesQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddItem(context.Background(), f.userID, f.product.ID, 0)
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddItem(context.Background(), f.userID, uuid.New(), 1)
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}

func TestAddItemInactiveProduct(t *testing.T) {
	f := newFixture(t)
	f.product.Status = enums.ProductStatusInactive

	_, err := f.svc.AddItem(context.Background(), f.userID, f.product.ID, 1)
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}

func TestUpdateQuantityRecalculates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 1)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	result, err := f.svc.UpdateQuantity(ctx, f.userID, item.ID, 4)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if result.Removed {
		t.Fatal("line should not be removed")
	}
	if result.Item.Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", result.Item.Quantity)
	}
	if !result.Item.Subtotal.Equal(decimal.RequireFromString("239.60")) {
		t.Fatalf("unexpected subtotal %s", result.Item.Subtotal)
	}

	cart, _ := f.svc.GetOrCreateCart(ctx, f.userID)
	if !cart.Total.Equal(decimal.RequireFromString("239.60")) {
		t.Fatalf("expected total 239.60, got %s", cart.Total)
	}
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	result, err := f.svc.UpdateQuantity(ctx, f.userID, item.ID, 0)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if !result.Removed {
		t.Fatal("expected removal")
	}
	if len(f.repo.items) != 0 {
		t.Fatalf("expected no lines, got %d", len(f.repo.items))
	}

	cart, _ := f.svc.GetOrCreateCart(ctx, f.userID)
	if !cart.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", cart.Total)
	}
}

func TestUpdateQuantityUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateQuantity(context.Background(), f.userID, uuid.New(), 2)
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}

func TestRemoveItemUnknown(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RemoveItem(context.Background(), f.userID, uuid.New())
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}

func TestRemoveItemScopedToOwnCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherID := uuid.New()
	f.users.active[otherID] = true
	foreign, err := f.svc.AddItem(ctx, otherID, f.product.ID, 2)
	if err != nil {
		t.Fatalf("add item for other user: %v", err)
	}

	err = f.svc.RemoveItem(ctx, f.userID, foreign.ID)
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}

	items, err := f.svc.ListItems(ctx, otherID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].ID != foreign.ID {
		t.Fatalf("other user's line should survive, got %d lines", len(items))
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", items[0].Quantity)
	}
}

func TestClearCartResetsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, f.userID, f.product.ID, 3); err != nil {
		t.Fatalf("add item: %v", err)
	}

	if err := f.svc.ClearCart(ctx, f.userID); err != nil {
		t.Fatalf("clear cart: %v", err)
	}
	if len(f.repo.items) != 0 {
		t.Fatalf("expected no lines, got %d", len(f.repo.items))
	}

	cart, _ := f.svc.GetOrCreateCart(ctx, f.userID)
	if !cart.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", cart.Total)
	}
}

func TestClearCartAlreadyEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.ClearCart(ctx, f.userID); err != nil {
		t.Fatalf("clear empty cart: %v", err)
	}

	cart, err := f.svc.GetOrCreateCart(ctx, f.userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if !cart.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", cart.Total)
	}
	if len(f.repo.items) != 0 {
		t.Fatalf("expected no lines, got %d", len(f.repo.items))
	}
}
