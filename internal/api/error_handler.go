package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error         string        `json:"error"`
	Message       string        `json:"message,omitempty"`
	RequiredRoles []domain.Role `json:"requiredRoles,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders {"error", "message"?, "requiredRoles"?}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var re *domain.RoleError
	if errors.As(err, &re) {
		return http.StatusForbidden, errorResponse{
			Error:         "Insufficient permissions",
			RequiredRoles: re.RequiredRoles,
		}
	}

	switch {
	case errors.Is(err, domain.ErrNoToken):
		return http.StatusForbidden, errorResponse{Error: "No token provided"}
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusForbidden, errorResponse{Error: "Unauthorized", Message: unauthorizedMessage(err)}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "Insufficient permissions", Message: detail(err, domain.ErrForbidden)}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: "Validation failed", Message: detail(err, domain.ErrValidation)}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Not found"}
	case errors.Is(err, domain.ErrIdentityConflict):
		return http.StatusConflict, errorResponse{Error: "Conflict", Message: domain.ErrIdentityConflict.Error()}
	}

	// Provider or directory outage, or anything unexpected: log the real
	// cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, domain.ErrExpiredToken) {
		return "token expired"
	}
	return "invalid token"
}

// detail returns the text that follows the sentinel in a wrapped error, so
// "create lead: validation failed: email is required" yields
// "email is required". Store and wrapper prefixes never reach the client.
func detail(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return ""
}
