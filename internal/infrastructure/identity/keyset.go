package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const (
	defaultKeySetTTL = time.Hour
	// minRefreshInterval bounds how often an unknown kid can force a fetch.
	minRefreshInterval = 30 * time.Second
)

// KeySet caches the provider's JSON Web Key Set.
type KeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	keys    jose.JSONWebKeySet
	fetched time.Time

	refreshMu sync.Mutex
}

// NewKeySet returns a KeySet for url. A non-positive ttl uses one hour.
func NewKeySet(url string, ttl time.Duration, client *http.Client, log zerolog.Logger) *KeySet {
	if ttl <= 0 {
		ttl = defaultKeySetTTL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{url: url, client: client, ttl: ttl, log: log, now: time.Now}
}

// Key returns the public key for kid. A fetch failure with no cached key is
// domain.ErrProviderUnavailable; a kid the provider does not publish is
// domain.ErrInvalidToken.
func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	key, found, fresh := k.lookup(kid)
	if found && fresh {
		return key, nil
	}

	if err := k.refresh(ctx, !found); err != nil {
		if found {
			k.log.Warn().Err(err).Str("kid", kid).Msg("jwks refresh failed, using cached key")
			return key, nil
		}
		return nil, err
	}

	key, found, _ = k.lookup(kid)
	if !found {
		return nil, fmt.Errorf("%w: unknown key id %q", domain.ErrInvalidToken, kid)
	}
	return key, nil
}

func (k *KeySet) lookup(kid string) (key any, found, fresh bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	fresh = k.now().Sub(k.fetched) < k.ttl
	for _, jwk := range k.keys.Key(kid) {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		return jwk.Key, true, fresh
	}
	return nil, false, fresh
}

// refresh fetches the key set unless another caller just did. unknownKid
// marks a refresh triggered by a kid we have never seen; those are limited
// to one per minRefreshInterval.
func (k *KeySet) refresh(ctx context.Context, unknownKid bool) error {
	k.refreshMu.Lock()
	defer k.refreshMu.Unlock()

	k.mu.RLock()
	since := k.now().Sub(k.fetched)
	hasKeys := len(k.keys.Keys) > 0
	k.mu.RUnlock()

	if hasKeys && since < k.ttl && (!unknownKid || since < minRefreshInterval) {
		return nil
	}

	set, err := k.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	k.mu.Lock()
	k.keys = set
	k.fetched = k.now()
	k.mu.Unlock()

	k.log.Debug().Int("keys", len(set.Keys)).Msg("jwks refreshed")
	return nil
}

func (k *KeySet) fetch(ctx context.Context) (jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("build jwks request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("decode jwks: %w", err)
	}
	return set, nil
}
