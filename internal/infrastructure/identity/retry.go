package identity

import (
	"context"
	"errors"
	"time"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

// RetryVerifier retries a verification exactly once when the provider was
// unavailable. Invalid and expired tokens are returned immediately.
type RetryVerifier struct {
	next    ports.TokenVerifier
	backoff time.Duration
}

func NewRetryVerifier(next ports.TokenVerifier, backoff time.Duration) *RetryVerifier {
	return &RetryVerifier{next: next, backoff: backoff}
}

func (v *RetryVerifier) Verify(ctx context.Context, token string) (domain.Claims, error) {
	claims, err := v.next.Verify(ctx, token)
	if err == nil || !errors.Is(err, domain.ErrProviderUnavailable) {
		return claims, err
	}

	if v.backoff > 0 {
		t := time.NewTimer(v.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.Claims{}, err
		case <-t.C:
		}
	}
	return v.next.Verify(ctx, token)
}
