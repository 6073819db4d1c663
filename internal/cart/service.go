package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/enums"
	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"

	dbpkg "github.com/vitorbmulford/bsf-api/pkg/db"
)

// Service exposes the cart engine. Every operation is scoped to the
// caller's open cart, which is created on demand.
type Service interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*UpdateResult, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// UpdateResult reports the outcome of a quantity update. When the new
// quantity drops to zero or below the line is removed instead.
type UpdateResult struct {
	Removed bool
	Item    *models.CartItem
}

type service struct {
	repo    CartRepository
	db      txRunner
	users   UserDirectory
	catalog ProductCatalog
}

// NewService wires the cart engine with its dependencies.
func NewService(repo CartRepository, db txRunner, users UserDirectory, catalog ProductCatalog) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	return &service{repo: repo, db: db, users: users, catalog: catalog}, nil
}

func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.getOrCreate(ctx, s.repo, userID)
	if err != nil && raceLost(err) {
		cart, err = s.getOrCreate(ctx, s.repo, userID)
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create cart")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.catalog.FindActiveByID(ctx, productID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog: find product")
	}

	var item *models.CartItem
	err = s.runTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.getOrCreate(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		item, err = s.upsertItem(ctx, txRepo, cart.ID, product, quantity)
		if err != nil {
			return err
		}

		return s.recomputeTotal(ctx, txRepo, cart.ID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: add cart item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	cart, err := s.getOrCreate(ctx, s.repo, userID)
	if err != nil && raceLost(err) {
		cart, err = s.getOrCreate(ctx, s.repo, userID)
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find open cart")
	}

	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart items")
	}
	return items, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*UpdateResult, error) {
	if quantity <= 0 {
		if err := s.RemoveItem(ctx, userID, itemID); err != nil {
			return nil, err
		}
		return &UpdateResult{Removed: true}, nil
	}

	var result *UpdateResult
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.getOrCreate(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		item, err := txRepo.FindItemByID(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find cart item")
		}

		item.Quantity = quantity
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
		if _, err := txRepo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
		}

		if err := s.recomputeTotal(ctx, txRepo, cart.ID); err != nil {
			return err
		}

		result = &UpdateResult{Item: item}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.getOrCreate(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		rows, err := txRepo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		return s.recomputeTotal(ctx, txRepo, cart.ID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: remove cart item")
	}
	return nil
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.getOrCreate(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		if err := txRepo.DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart items")
		}
		if err := txRepo.UpdateTotal(ctx, cart.ID, decimal.Zero); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reset cart total")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	return nil
}

// runTx runs fn in its own transaction, retrying once when a concurrent
// request wins an insert race on one of the cart unique indexes. Postgres
// marks the whole transaction aborted after the failed insert, so the
// loser cannot read inside it; the fresh attempt sees the winner's
// committed row and merges instead of inserting.
func (s *service) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithTx(ctx, fn)
	if err != nil && raceLost(err) {
		err = s.db.WithTx(ctx, fn)
	}
	return err
}

// raceLost reports whether the error is a losing insert on the open-cart
// or cart-line unique index.
func raceLost(err error) bool {
	return dbpkg.IsUniqueViolation(err, "ux_carts_user_open") ||
		dbpkg.IsUniqueViolation(err, "ux_cart_items_cart_product")
}

// getOrCreate resolves the user's open cart, creating one when missing.
// A create losing the race on the open-cart unique index is returned
// unwrapped so the caller can retry outside the aborted transaction.
func (s *service) getOrCreate(ctx context.Context, r CartRepository, userID uuid.UUID) (*models.Cart, error) {
	active, err := s.users.ExistsActive(ctx, userID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "users: check account")
	}
	if !active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	cart, err := r.FindOpenByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find open cart")
	}

	cart, err = r.Create(ctx, &models.Cart{
		UserID: userID,
		Status: enums.CartStatusOpen,
		Total:  decimal.Zero,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_carts_user_open") {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create cart")
	}
	return cart, nil
}

// upsertItem adds a line for the product, merging quantities into an
// existing line. The unit price is frozen at insert time. A losing
// insert on the per-product unique index is returned unwrapped so the
// transaction can be retried.
func (s *service) upsertItem(ctx context.Context, r CartRepository, cartID uuid.UUID, product *models.Product, quantity int) (*models.CartItem, error) {
	existing, err := r.FindItem(ctx, cartID, product.ID)
	if err == nil {
		return s.mergeItem(ctx, r, existing, quantity)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find cart item")
	}

	unit := product.EffectivePrice()
	item := &models.CartItem{
		CartID:    cartID,
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: unit,
		Subtotal:  unit.Mul(decimal.NewFromInt(int64(quantity))),
	}
	created, err := r.CreateItem(ctx, item)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_cart_items_cart_product") {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert cart item")
	}
	return created, nil
}

func (s *service) mergeItem(ctx context.Context, r CartRepository, item *models.CartItem, quantity int) (*models.CartItem, error) {
	item.Quantity += quantity
	item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	saved, err := r.SaveItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: merge cart item")
	}
	return saved, nil
}

func (s *service) recomputeTotal(ctx context.Context, r CartRepository, cartID uuid.UUID) error {
	total, err := r.SumSubtotals(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sum cart subtotals")
	}
	if err := r.UpdateTotal(ctx, cartID, total); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart total")
	}
	return nil
}
