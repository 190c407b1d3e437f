package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/pipelinecrm/leadhub/internal/api/handler"
	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

// RequireRoles admits callers holding any of roles. It must run after
// Authenticate.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	required := append([]domain.Role(nil), roles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := handler.CurrentIdentity(c)
			if err != nil {
				return err
			}
			if !id.HasRole(required...) {
				metrics.AuthFailuresTotal.WithLabelValues("http", "forbidden").Inc()
				return &domain.RoleError{Role: id.Role, RequiredRoles: required}
			}
			return next(c)
		}
	}
}
