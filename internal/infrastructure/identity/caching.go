package identity

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

// ClaimsCache abstracts the verified-claims store (Redis).
type ClaimsCache interface {
	Get(ctx context.Context, digest string) (domain.Claims, bool, error)
	Set(ctx context.Context, digest string, claims domain.Claims, ttl time.Duration) error
}

// CachingVerifier remembers successful verifications until the token
// expires or maxTTL passes, whichever is first. Failures are never cached,
// and a cache outage falls through to the wrapped verifier.
type CachingVerifier struct {
	next   ports.TokenVerifier
	cache  ClaimsCache
	maxTTL time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func NewCachingVerifier(next ports.TokenVerifier, cache ClaimsCache, maxTTL time.Duration, log zerolog.Logger) *CachingVerifier {
	return &CachingVerifier{
		next:   next,
		cache:  cache,
		maxTTL: maxTTL,
		log:    log.With().Str("component", "token_cache").Logger(),
		now:    time.Now,
	}
}

func (v *CachingVerifier) Verify(ctx context.Context, token string) (domain.Claims, error) {
	digest := tokenDigest(token)
	now := v.now()

	cached, ok, err := v.cache.Get(ctx, digest)
	switch {
	case err != nil:
		metrics.TokenCacheTotal.WithLabelValues("error").Inc()
		v.log.Warn().Err(err).Msg("claims cache lookup failed")
	case ok && !cached.Expired(now) && cached.SubjectID != "":
		metrics.TokenCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.TokenCacheTotal.WithLabelValues("miss").Inc()
	}

	claims, err := v.next.Verify(ctx, token)
	if err != nil {
		return domain.Claims{}, err
	}

	ttl := v.maxTTL
	if !claims.Expiry.IsZero() {
		if left := claims.Expiry.Sub(now); left < ttl {
			ttl = left
		}
	}
	if err := v.cache.Set(ctx, digest, claims, ttl); err != nil {
		v.log.Warn().Err(err).Msg("claims cache store failed")
	}
	return claims, nil
}

// tokenDigest keys the cache without keeping bearer tokens in Redis.
func tokenDigest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
