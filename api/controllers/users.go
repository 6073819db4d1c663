package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vitorbmulford/bsf-api/api/middleware"
	"github.com/vitorbmulford/bsf-api/api/responses"
	"github.com/vitorbmulford/bsf-api/api/validators"
	userssvc "github.com/vitorbmulford/bsf-api/internal/users"
	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"
	"github.com/vitorbmulford/bsf-api/pkg/logger"
	"github.com/vitorbmulford/bsf-api/pkg/pagination"
)

type registerRequest struct {
	Nome     string  `json:"nome" validate:"required,max=120"`
	Email    string  `json:"email" validate:"required,email"`
	Senha    string  `json:"senha" validate:"required,min=6"`
	Telefone *string `json:"telefone" validate:"omitempty,max=20"`
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Senha string `json:"senha" validate:"required"`
}

type updateUserRequest struct {
	Nome     *string `json:"nome" validate:"omitempty,max=120"`
	Telefone *string `json:"telefone" validate:"omitempty,max=20"`
}

type changePasswordRequest struct {
	SenhaAtual           string `json:"senhaAtual" validate:"required"`
	NovaSenha            string `json:"novaSenha" validate:"required,min=6"`
	ConfirmacaoNovaSenha string `json:"confirmacaoNovaSenha" validate:"required,eqfield=NovaSenha"`
}

type userResponse struct {
	ID           uuid.UUID `json:"id"`
	Tipo         string    `json:"tipo"`
	Nome         string    `json:"nome"`
	Telefone     *string   `json:"telefone,omitempty"`
	Email        string    `json:"email"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	CriadoEm     time.Time `json:"criadoEm"`
	AtualizadoEm time.Time `json:"atualizadoEm"`
}

type loginResponse struct {
	Token    string       `json:"token"`
	ExpiraEm time.Time    `json:"expiraEm"`
	Usuario  userResponse `json:"usuario"`
}

type userListResponse struct {
	Items      []userResponse `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Tipo:         u.Type.String(),
		Nome:         u.Name,
		Telefone:     u.Phone,
		Email:        u.Email,
		AvatarURL:    u.AvatarURL,
		CriadoEm:     u.CreatedAt,
		AtualizadoEm: u.UpdatedAt,
	}
}

func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id in context")
	}
	return id, nil
}

func sanitizeOptional(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	clean := validators.SanitizeString(*value, maxLen)
	return &clean
}

func paginationParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}

// UserRegister creates an account and returns the public profile.
func UserRegister(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), userssvc.RegisterInput{
			Name:     validators.SanitizeString(payload.Nome, 120),
			Email:    payload.Email,
			Password: payload.Senha,
			Phone:    sanitizeOptional(payload.Telefone, 20),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newUserResponse(user))
	}
}

// UserLogin exchanges credentials for an access token.
func UserLogin(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), payload.Email, payload.Senha)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			Token:    result.Token,
			ExpiraEm: result.ExpiresAt,
			Usuario:  newUserResponse(result.User),
		})
	}
}

// UserFetch returns the profile for the id in the route.
func UserFetch(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newUserResponse(user))
	}
}

// UserFetchByEmail resolves an active account from the email query parameter.
func UserFetchByEmail(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.GetByEmail(r.Context(), r.URL.Query().Get("email"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newUserResponse(user))
	}
}

// UserList returns a page of active accounts.
func UserList(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		out := userListResponse{Items: make([]userResponse, 0, len(page.Items)), NextCursor: page.NextCursor}
		for i := range page.Items {
			out.Items = append(out.Items, newUserResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// UserUpdate applies partial profile changes.
func UserUpdate(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Update(r.Context(), id, userssvc.UpdateUserInput{
			Name:  sanitizeOptional(payload.Nome, 120),
			Phone: sanitizeOptional(payload.Telefone, 20),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newUserResponse(user))
	}
}

// UserChangePassword replaces the password after checking the current one.
func UserChangePassword(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changePasswordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), id, payload.SenhaAtual, payload.NovaSenha); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "password updated"})
	}
}

// UserAvatarUpload stores a new avatar image sent as multipart form data.
func UserAvatarUpload(svc userssvc.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
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

		user, err := svc.UpdateAvatar(r.Context(), id, header.Filename, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newUserResponse(user))
	}
}

// UserDelete deactivates the account.
func UserDelete(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
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
