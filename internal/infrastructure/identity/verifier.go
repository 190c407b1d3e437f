// Package identity adapts the external identity provider to
// ports.TokenVerifier.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// idTokenClaims is the subset of a provider ID token we read.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func (c *idTokenClaims) toDomain() (domain.Claims, error) {
	if c.Subject == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}
	out := domain.Claims{SubjectID: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		out.Expiry = c.ExpiresAt.UTC()
	}
	return out, nil
}

// JWKSConfig configures a JWKSVerifier.
type JWKSConfig struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// JWKSVerifier verifies asymmetric ID tokens (RS256/ES256) against the
// provider's published key set.
type JWKSVerifier struct {
	keys   *KeySet
	parser *jwt.Parser
}

func NewJWKSVerifier(keys *KeySet, cfg JWKSConfig) *JWKSVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWKSVerifier{keys: keys, parser: jwt.NewParser(opts...)}
}

func (v *JWKSVerifier) Verify(ctx context.Context, token string) (domain.Claims, error) {
	var claims idTokenClaims
	_, err := v.parser.ParseWithClaims(strings.TrimSpace(token), &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", domain.ErrInvalidToken)
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return domain.Claims{}, classify(err)
	}
	return claims.toDomain()
}

// HMACVerifier verifies HS256 tokens signed with a shared secret. It stands
// in for the provider in local development and tests.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewHMACVerifier(secret string, issuer, audience string) *HMACVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &HMACVerifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (domain.Claims, error) {
	var claims idTokenClaims
	_, err := v.parser.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return domain.Claims{}, classify(err)
	}
	return claims.toDomain()
}

// classify maps parser failures onto the verifier error contract. Provider
// outages surface through the key lookup and are kept as they are.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrExpiredToken, err)
	case errors.Is(err, domain.ErrInvalidToken):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
}
