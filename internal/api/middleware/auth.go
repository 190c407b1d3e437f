package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/api/handler"
	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

// Authenticate verifies the bearer token, resolves the local identity and
// stores it on the context. Nothing is written to the directory unless the
// token verified.
func Authenticate(verifier ports.TokenVerifier, resolver ports.IdentityResolver, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				metrics.AuthFailuresTotal.WithLabelValues("http", "no_token").Inc()
				return domain.ErrNoToken
			}

			ctx := c.Request().Context()
			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("http", metrics.AuthFailureReason(err)).Inc()
				if errors.Is(err, domain.ErrProviderUnavailable) {
					return err
				}
				log.Debug().Err(err).Str("path", c.Path()).Msg("token rejected")
				return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
			}

			identity, err := resolver.Resolve(ctx, claims)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("http", metrics.AuthFailureReason(err)).Inc()
				return rejectedClaims(err)
			}
			if !identity.IsActive {
				metrics.AuthFailuresTotal.WithLabelValues("http", "forbidden").Inc()
				return fmt.Errorf("%w: account disabled", domain.ErrForbidden)
			}

			handler.SetIdentity(c, identity)
			return next(c)
		}
	}
}

// rejectedClaims marks a resolver's token complaint (for example a verified
// token without an email) as an authentication failure.
func rejectedClaims(err error) error {
	if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrExpiredToken) {
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return err
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
