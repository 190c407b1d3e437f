package ports

import (
	"context"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// TokenVerifier checks a bearer token against the external identity
// provider. Failures are domain.ErrInvalidToken, domain.ErrExpiredToken or
// domain.ErrProviderUnavailable, and only the last one is worth retrying.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Claims, error)
}
