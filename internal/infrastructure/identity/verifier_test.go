package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const (
	testIssuer   = "https://securetoken.google.com/leadhub-test"
	testAudience = "leadhub-test"
)

type jwksFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
	hits   atomic.Int32
	down   atomic.Bool
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &jwksFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "k1",
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) verifier() *JWKSVerifier {
	keys := NewKeySet(f.server.URL, time.Hour, f.server.Client(), zerolog.Nop())
	return NewJWKSVerifier(keys, JWKSConfig{Issuer: testIssuer, Audience: testAudience})
}

func (f *jwksFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validClaims(exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "firebase-uid-1",
		"email": "rep@example.com",
		"iss":   testIssuer,
		"aud":   testAudience,
		"iat":   time.Now().Add(-time.Minute).Unix(),
		"exp":   exp.Unix(),
	}
}

func TestJWKSVerifier_Valid(t *testing.T) {
	f := newJWKSFixture(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	claims, err := f.verifier().Verify(context.Background(), f.sign(t, "k1", validClaims(exp)))
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid-1", claims.SubjectID)
	assert.Equal(t, "rep@example.com", claims.Email)
	assert.True(t, claims.Expiry.Equal(exp))
}

func TestJWKSVerifier_Expired(t *testing.T) {
	f := newJWKSFixture(t)
	c := validClaims(time.Now().Add(-time.Minute))
	c["iat"] = time.Now().Add(-time.Hour).Unix()

	_, err := f.verifier().Verify(context.Background(), f.sign(t, "k1", c))
	require.ErrorIs(t, err, domain.ErrExpiredToken)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken)
}

func TestJWKSVerifier_Invalid(t *testing.T) {
	f := newJWKSFixture(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims(time.Now().Add(time.Hour)))
	forged.Header["kid"] = "k1"
	forgedToken, err := forged.SignedString(other)
	require.NoError(t, err)

	wrongAud := validClaims(time.Now().Add(time.Hour))
	wrongAud["aud"] = "someone-else"

	noSub := validClaims(time.Now().Add(time.Hour))
	delete(noSub, "sub")

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(time.Now().Add(time.Hour)))
	hs.Header["kid"] = "k1"
	hsToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":         "not-a-jwt",
		"bad signature":   forgedToken,
		"wrong audience":  f.sign(t, "k1", wrongAud),
		"missing subject": f.sign(t, "k1", noSub),
		"unknown kid":     f.sign(t, "k9", validClaims(time.Now().Add(time.Hour))),
		"hmac algorithm":  hsToken,
	}
	v := f.verifier()
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			require.ErrorIs(t, err, domain.ErrInvalidToken)
			assert.NotErrorIs(t, err, domain.ErrProviderUnavailable)
		})
	}
}

func TestJWKSVerifier_ProviderDown(t *testing.T) {
	f := newJWKSFixture(t)
	f.down.Store(true)

	_, err := f.verifier().Verify(context.Background(), f.sign(t, "k1", validClaims(time.Now().Add(time.Hour))))
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken)
}

func TestKeySet_CachesAndLimitsUnknownKidRefresh(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier()
	ctx := context.Background()

	tok := f.sign(t, "k1", validClaims(time.Now().Add(time.Hour)))
	for i := 0; i < 3; i++ {
		_, err := v.Verify(ctx, tok)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.hits.Load(), "key set should be fetched once")

	for i := 0; i < 3; i++ {
		_, err := v.Verify(ctx, f.sign(t, "rotated", validClaims(time.Now().Add(time.Hour))))
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	}
	assert.Equal(t, int32(1), f.hits.Load(), "unknown kids must not refetch inside the refresh interval")
}

func TestKeySet_StaleKeyServedWhenProviderDown(t *testing.T) {
	f := newJWKSFixture(t)
	keys := NewKeySet(f.server.URL, time.Minute, f.server.Client(), zerolog.Nop())
	v := NewJWKSVerifier(keys, JWKSConfig{Issuer: testIssuer, Audience: testAudience})
	ctx := context.Background()
	tok := f.sign(t, "k1", validClaims(time.Now().Add(time.Hour)))

	_, err := v.Verify(ctx, tok)
	require.NoError(t, err)

	f.down.Store(true)
	keys.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = v.Verify(ctx, tok)
	require.NoError(t, err)
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("dev-secret", "", "")
	ctx := context.Background()

	sign := func(secret string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1", "email": "u1@example.com", "exp": exp.Unix(),
		})
		s, err := tok.SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	claims, err := v.Verify(ctx, sign("dev-secret", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.SubjectID)

	_, err = v.Verify(ctx, sign("dev-secret", time.Now().Add(-time.Hour)))
	require.ErrorIs(t, err, domain.ErrExpiredToken)

	_, err = v.Verify(ctx, sign("other", time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
