package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/pipelinecrm/leadhub/internal/api/handler"
	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

func newRoleContext(role domain.Role) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	handler.SetIdentity(c, domain.Identity{SubjectID: "uid-1", Role: role, IsActive: true})
	return c
}

func TestRequireRoles_Allows(t *testing.T) {
	c := newRoleContext(domain.RoleManager)

	called := false
	err := RequireRoles(domain.RoleSalesRep, domain.RoleManager)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)

	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
}

func TestRequireRoles_Forbids(t *testing.T) {
	c := newRoleContext(domain.RoleReadOnly)

	err := RequireRoles(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})(c)

	var re *domain.RoleError
	if !errors.As(err, &re) {
		t.Fatalf("expected RoleError, got %v", err)
	}
	if len(re.RequiredRoles) != 1 || re.RequiredRoles[0] != domain.RoleAdmin {
		t.Fatalf("unexpected required roles %v", re.RequiredRoles)
	}
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("role error should unwrap to ErrForbidden")
	}
}

func TestRequireRoles_WithoutAuthenticate(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequireRoles(domain.RoleAdmin)(func(echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}
