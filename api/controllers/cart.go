package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitorbmulford/bsf-api/api/responses"
	"github.com/vitorbmulford/bsf-api/api/validators"
	cartsvc "github.com/vitorbmulford/bsf-api/internal/cart"
	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/logger"
)

type addItemRequest struct {
	ProdutoID  uuid.UUID `json:"produtoId" validate:"required"`
	Quantidade int       `json:"quantidade" validate:"required,min=1"`
}

type updateQuantityRequest struct {
	Quantidade int `json:"quantidade"`
}

type cartItemResponse struct {
	ID            uuid.UUID        `json:"id"`
	ProdutoID     uuid.UUID        `json:"produtoId"`
	Quantidade    int              `json:"quantidade"`
	PrecoUnitario decimal.Decimal  `json:"precoUnitario"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Produto       *productResponse `json:"produto,omitempty"`
}

type cartResponse struct {
	ID        uuid.UUID          `json:"id"`
	UsuarioID uuid.UUID          `json:"usuarioId"`
	Status    string             `json:"status"`
	Total     decimal.Decimal    `json:"total"`
	Itens     []cartItemResponse `json:"itens"`
}

func newCartItemResponse(item *models.CartItem) cartItemResponse {
	out := cartItemResponse{
		ID:            item.ID,
		ProdutoID:     item.ProductID,
		Quantidade:    item.Quantity,
		PrecoUnitario: item.UnitPrice,
		Subtotal:      item.Subtotal,
	}
	if item.Product != nil {
		product := newProductResponse(item.Product)
		out.Produto = &product
	}
	return out
}

func newCartResponse(cart *models.Cart, items []models.CartItem) cartResponse {
	out := cartResponse{
		ID:        cart.ID,
		UsuarioID: cart.UserID,
		Status:    cart.Status.String(),
		Total:     cart.Total,
		Itens:     make([]cartItemResponse, 0, len(items)),
	}
	for i := range items {
		out.Itens = append(out.Itens, newCartItemResponse(&items[i]))
	}
	return out
}

// CartFetch returns the caller's open cart, creating it on first access.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.GetOrCreateCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListItems(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart, items))
	}
}

// CartAddItem adds a product to the caller's cart, merging repeat products.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AddItem(r.Context(), userID, payload.ProdutoID, payload.Quantidade)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCartItemResponse(item))
	}
}

// CartUpdateItem sets the quantity of a line. Zero or less removes it.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateQuantity(r.Context(), userID, itemID, payload.Quantidade)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.Removed {
			responses.WriteSuccess(w, map[string]string{"status": "removed"})
			return
		}
		responses.WriteSuccess(w, newCartItemResponse(result.Item))
	}
}

// CartRemoveItem deletes a line from the caller's cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), userID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// CartClear empties the caller's cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ClearCart(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
