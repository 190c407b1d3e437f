package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

func renderError(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body map[string]any
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), decodeErr)
	}
	return rec.Code, body
}

func TestErrorHandler_StatusTable(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  int
		label string
	}{
		{"no token", domain.ErrNoToken, http.StatusForbidden, "No token provided"},
		{"expired", fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrExpiredToken), http.StatusForbidden, "Unauthorized"},
		{"invalid token", fmt.Errorf("resolve identity: %w: missing email", domain.ErrInvalidToken), http.StatusForbidden, "Unauthorized"},
		{"bare expired", domain.ErrExpiredToken, http.StatusForbidden, "Unauthorized"},
		{"forbidden", fmt.Errorf("%w: account disabled", domain.ErrForbidden), http.StatusForbidden, "Insufficient permissions"},
		{"validation", fmt.Errorf("update role: %w: role must be one of", domain.ErrValidation), http.StatusBadRequest, "Validation failed"},
		{"not found", fmt.Errorf("profile: %w", domain.ErrNotFound), http.StatusNotFound, "Not found"},
		{"conflict", domain.ErrIdentityConflict, http.StatusConflict, "Conflict"},
		{"provider down", fmt.Errorf("%w: dial tcp", domain.ErrProviderUnavailable), http.StatusInternalServerError, "Internal server error"},
		{"directory down", fmt.Errorf("resolve: %w", domain.ErrDirectoryUnavailable), http.StatusInternalServerError, "Internal server error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "Method Not Allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := renderError(t, tt.err)
			if code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, code)
			}
			if body["error"] != tt.label {
				t.Fatalf("expected error %q, got %v", tt.label, body["error"])
			}
		})
	}
}

func TestErrorHandler_UnauthorizedMessageNamesCause(t *testing.T) {
	_, body := renderError(t, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrExpiredToken))
	if body["message"] != "token expired" {
		t.Fatalf("expected expiry message, got %v", body["message"])
	}
	_, body = renderError(t, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrInvalidToken))
	if body["message"] != "invalid token" {
		t.Fatalf("expected invalid message, got %v", body["message"])
	}
}

func TestErrorHandler_RoleErrorListsRequiredRoles(t *testing.T) {
	code, body := renderError(t, &domain.RoleError{
		Role:          domain.RoleReadOnly,
		RequiredRoles: []domain.Role{domain.RoleSalesRep, domain.RoleManager},
	})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	roles, ok := body["requiredRoles"].([]any)
	if !ok || len(roles) != 2 || roles[0] != "sales_rep" || roles[1] != "manager" {
		t.Fatalf("unexpected requiredRoles: %v", body["requiredRoles"])
	}
}

func TestErrorHandler_ValidationDetailOnly(t *testing.T) {
	_, body := renderError(t, fmt.Errorf("create lead: %w: email is required", domain.ErrValidation))
	if body["message"] != "email is required" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestErrorHandler_DoesNotLeakInternals(t *testing.T) {
	_, body := renderError(t, errors.New("mongo: connection refused at 10.0.0.3"))
	if _, ok := body["message"]; ok {
		t.Fatalf("internal error leaked: %v", body)
	}
}
