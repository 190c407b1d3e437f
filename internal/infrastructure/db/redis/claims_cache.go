package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const claimsKeyPrefix = "claims:"

// ClaimsCache stores verified token claims keyed by token digest.
// Key format: claims:<hex digest>
type ClaimsCache struct {
	client *redis.Client
}

// NewClaimsCache creates a ClaimsCache wrapping the given Redis client.
func NewClaimsCache(client *redis.Client) *ClaimsCache {
	return &ClaimsCache{client: client}
}

type cachedClaims struct {
	Sub string `json:"sub"`
	Em  string `json:"em"`
	Exp int64  `json:"exp"`
}

// Get returns the cached claims for digest. ok is false on a miss.
func (c *ClaimsCache) Get(ctx context.Context, digest string) (domain.Claims, bool, error) {
	raw, err := c.client.Get(ctx, claimsKeyPrefix+digest).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Claims{}, false, nil
	}
	if err != nil {
		return domain.Claims{}, false, fmt.Errorf("claims cache get: %w", err)
	}

	var cc cachedClaims
	if err := json.Unmarshal(raw, &cc); err != nil {
		return domain.Claims{}, false, fmt.Errorf("claims cache decode: %w", err)
	}

	claims := domain.Claims{SubjectID: cc.Sub, Email: cc.Em}
	if cc.Exp > 0 {
		claims.Expiry = time.Unix(cc.Exp, 0).UTC()
	}
	return claims, true, nil
}

// Set stores claims for ttl. A non-positive ttl is a no-op.
func (c *ClaimsCache) Set(ctx context.Context, digest string, claims domain.Claims, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	cc := cachedClaims{Sub: claims.SubjectID, Em: claims.Email}
	if !claims.Expiry.IsZero() {
		cc.Exp = claims.Expiry.Unix()
	}
	raw, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("claims cache encode: %w", err)
	}

	return c.client.Set(ctx, claimsKeyPrefix+digest, raw, ttl).Err()
}
