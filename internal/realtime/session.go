package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

// Session is an authenticated connection. Identity is the snapshot taken at
// handshake; the session ends when TokenExpiry passes.
type Session struct {
	ConnectionID string
	Identity     domain.Identity
	TokenExpiry  time.Time
}

// SessionAuthenticator admits a connection exactly once, at handshake.
type SessionAuthenticator struct {
	verifier ports.TokenVerifier
	resolver ports.IdentityResolver
	log      zerolog.Logger
}

func NewSessionAuthenticator(verifier ports.TokenVerifier, resolver ports.IdentityResolver, log zerolog.Logger) *SessionAuthenticator {
	return &SessionAuthenticator{verifier: verifier, resolver: resolver, log: log}
}

// Authenticate verifies the handshake token and resolves the caller.
// Errors follow the HTTP gate: ErrNoToken, ErrUnauthorized wrapping the
// verifier cause, ErrProviderUnavailable, directory errors, or ErrForbidden
// for a disabled account.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, p HandshakePayload) (Session, error) {
	token := strings.TrimSpace(p.Auth.Token)
	if token == "" {
		return Session{}, a.fail(domain.ErrNoToken)
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return Session{}, a.fail(err)
		}
		return Session{}, a.fail(fmt.Errorf("%w: %w", domain.ErrUnauthorized, err))
	}

	identity, err := a.resolver.Resolve(ctx, claims)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrExpiredToken) {
			err = fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return Session{}, a.fail(err)
	}
	if !identity.IsActive {
		return Session{}, a.fail(fmt.Errorf("%w: account disabled", domain.ErrForbidden))
	}

	return Session{
		ConnectionID: uuid.NewString(),
		Identity:     identity,
		TokenExpiry:  claims.Expiry,
	}, nil
}

func (a *SessionAuthenticator) fail(err error) error {
	reason := metrics.AuthFailureReason(err)
	metrics.AuthFailuresTotal.WithLabelValues("realtime", reason).Inc()
	a.log.Debug().Err(err).Str("reason", reason).Msg("handshake rejected")
	return err
}
