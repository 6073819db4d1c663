package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitorbmulford/bsf-api/pkg/auth"
	"github.com/vitorbmulford/bsf-api/pkg/config"
	"github.com/vitorbmulford/bsf-api/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, userType enums.UserType) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Type:   userType,
		Email:  "user@example.com",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID, enums.UserTypeCustomer)

	var captured struct {
		user     string
		userType string
	}
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.userType = UserTypeFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user id %s in context, got %q", userID, captured.user)
	}
	if captured.userType != string(enums.UserTypeCustomer) {
		t.Fatalf("expected customer type got %s", captured.userType)
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin(nil)(next)

	req := httptest.NewRequest(http.MethodDelete, "/produtos/x", nil)
	req = req.WithContext(WithUserType(req.Context(), string(enums.UserTypeCustomer)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("customer should be forbidden, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/produtos/x", nil)
	req = req.WithContext(WithUserType(req.Context(), string(enums.UserTypeAdmin)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("admin should pass, got %d", resp.Code)
	}
}

func TestRequireSelfOrAdmin(t *testing.T) {
	selfID := uuid.New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireSelfOrAdmin("id", nil)(next)

	serve := func(targetID string, userID string, userType enums.UserType) int {
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", targetID)
		req := httptest.NewRequest(http.MethodPut, "/usuarios/"+targetID, nil)
		ctx := WithUserID(req.Context(), userID)
		ctx = WithUserType(ctx, string(userType))
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req.WithContext(ctx))
		return resp.Code
	}

	if code := serve(selfID.String(), selfID.String(), enums.UserTypeCustomer); code != http.StatusOK {
		t.Fatalf("self access should pass, got %d", code)
	}
	if code := serve(uuid.NewString(), selfID.String(), enums.UserTypeCustomer); code != http.StatusForbidden {
		t.Fatalf("other user should be forbidden, got %d", code)
	}
	if code := serve(uuid.NewString(), selfID.String(), enums.UserTypeAdmin); code != http.StatusOK {
		t.Fatalf("admin should pass, got %d", code)
	}
}
