package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitorbmulford/bsf-api/api/responses"
	"github.com/vitorbmulford/bsf-api/api/validators"
	"github.com/vitorbmulford/bsf-api/internal/catalog"
	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/logger"
)

type createProductRequest struct {
	Nome             string           `json:"nome" validate:"required,max=160"`
	Preco            decimal.Decimal  `json:"preco" validate:"required"`
	PrecoPromocional *decimal.Decimal `json:"precoPromocional"`
	Descricao        string           `json:"descricao" validate:"required"`
	ImagemURL        string           `json:"imagemUrl"`
	Estoque          int              `json:"estoque" validate:"gte=0"`
	Categoria        *string          `json:"categoria" validate:"omitempty,max=80"`
}

type updateProductRequest struct {
	Nome             *string          `json:"nome" validate:"omitempty,max=160"`
	Preco            *decimal.Decimal `json:"preco"`
	PrecoPromocional *decimal.Decimal `json:"precoPromocional"`
	LimparPromocao   bool             `json:"limparPromocao"`
	Descricao        *string          `json:"descricao"`
	Estoque          *int             `json:"estoque" validate:"omitempty,gte=0"`
	Categoria        *string          `json:"categoria" validate:"omitempty,max=80"`
}

type productResponse struct {
	ID               uuid.UUID        `json:"id"`
	Nome             string           `json:"nome"`
	Preco            decimal.Decimal  `json:"preco"`
	PrecoPromocional *decimal.Decimal `json:"precoPromocional,omitempty"`
	Descricao        string           `json:"descricao"`
	ImagemURL        string           `json:"imagemUrl"`
	Estoque          int              `json:"estoque"`
	Categoria        *string          `json:"categoria,omitempty"`
	Status           string           `json:"status"`
	CriadoEm         time.Time        `json:"criadoEm"`
	AtualizadoEm     time.Time        `json:"atualizadoEm"`
}

type productListResponse struct {
	Items      []productResponse `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func newProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:               p.ID,
		Nome:             p.Name,
		Preco:            p.Price,
		PrecoPromocional: p.PromoPrice,
		Descricao:        p.Description,
		ImagemURL:        p.ImageURL,
		Estoque:          p.Stock,
		Categoria:        p.Category,
		Status:           p.Status.String(),
		CriadoEm:         p.CreatedAt,
		AtualizadoEm:     p.UpdatedAt,
	}
}

// ProductList returns a page of the active catalog.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := productListResponse{Items: make([]productResponse, 0, len(page.Items)), NextCursor: page.NextCursor}
		for i := range page.Items {
			out.Items = append(out.Items, newProductResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ProductFetch returns a single active product by id.
func ProductFetch(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.FindActiveByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// ProductCreate lists a new product in the catalog.
func ProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), catalog.CreateProductInput{
			Name:        validators.SanitizeString(payload.Nome, 160),
			Price:       payload.Preco,
			PromoPrice:  payload.PrecoPromocional,
			Description: validators.SanitizeString(payload.Descricao, 0),
			ImageURL:    payload.ImagemURL,
			Stock:       payload.Estoque,
			Category:    sanitizeOptional(payload.Categoria, 80),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// ProductUpdate applies partial catalog changes.
func ProductUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, catalog.UpdateProductInput{
			Name:        sanitizeOptional(payload.Nome, 160),
			Price:       payload.Preco,
			PromoPrice:  payload.PrecoPromocional,
			ClearPromo:  payload.LimparPromocao,
			Description: sanitizeOptional(payload.Descricao, 0),
			Stock:       payload.Estoque,
			Category:    sanitizeOptional(payload.Categoria, 80),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// ProductDelete removes the product from the public catalog.
func ProductDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ProductImageUpload stores a new product image sent as multipart form data.
func ProductImageUpload(svc catalog.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		file, header, err := openUploadedFile(r, maxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		product, err := svc.UpdateImage(r.Context(), id, header.Filename, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}
