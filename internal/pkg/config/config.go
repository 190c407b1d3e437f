package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	IdentityModeJWKS = "jwks"
	IdentityModeHMAC = "hmac"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Identity IdentityConfig
	Realtime RealtimeConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=leadhub"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IdentityConfig selects how bearer tokens are verified. jwks is the
// production mode; hmac signs with a shared secret for local work.
type IdentityConfig struct {
	Mode           string        `env:"IDP_MODE,         default=jwks"`
	JWKSURL        string        `env:"IDP_JWKS_URL"`
	Issuer         string        `env:"IDP_ISSUER"`
	Audience       string        `env:"IDP_AUDIENCE"`
	HMACSecret     string        `env:"IDP_HMAC_SECRET"`
	Leeway         time.Duration `env:"IDP_LEEWAY,       default=30s"`
	JWKSCacheTTL   time.Duration `env:"JWKS_CACHE_TTL,   default=1h"`
	ClaimsCacheTTL time.Duration `env:"CLAIMS_CACHE_TTL, default=5m"`
	RetryBackoff   time.Duration `env:"IDP_RETRY_BACKOFF, default=200ms"`
}

type RealtimeConfig struct {
	AllowedOrigins   []string      `env:"REALTIME_ALLOWED_ORIGINS"`
	HandshakeTimeout time.Duration `env:"REALTIME_HANDSHAKE_TIMEOUT, default=10s"`
	Workers          int           `env:"REALTIME_WORKERS,           default=8"`
	SendBuffer       int           `env:"REALTIME_SEND_BUFFER,       default=64"`
	FrameRate        float64       `env:"REALTIME_FRAME_RATE,        default=20"`
	FrameBurst       int           `env:"REALTIME_FRAME_BURST,       default=40"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), nil)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom processes the environment (or lookuper, when non-nil) and
// validates the result.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	ec := &envconfig.Config{Target: &cfg, Lookuper: lookuper}
	if lookuper == nil {
		ec.Lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, ec); err != nil {
		return nil, err
	}
	cfg.Identity.Mode = strings.ToLower(strings.TrimSpace(cfg.Identity.Mode))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Identity.Mode) {
	case IdentityModeJWKS:
		if c.Identity.JWKSURL == "" {
			errs = append(errs, errors.New("IDP_JWKS_URL is required when IDP_MODE=jwks"))
		}
		if c.Identity.Audience == "" {
			errs = append(errs, errors.New("IDP_AUDIENCE is required when IDP_MODE=jwks"))
		}
	case IdentityModeHMAC:
		if c.Identity.HMACSecret == "" {
			errs = append(errs, errors.New("IDP_HMAC_SECRET is required when IDP_MODE=hmac"))
		}
		if c.IsProduction() {
			errs = append(errs, errors.New("IDP_MODE=hmac is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDP_MODE %q", c.Identity.Mode))
	}

	if c.Identity.ClaimsCacheTTL < 0 {
		errs = append(errs, errors.New("CLAIMS_CACHE_TTL must not be negative"))
	}
	if c.Realtime.Workers <= 0 {
		errs = append(errs, errors.New("REALTIME_WORKERS must be positive"))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("REALTIME_SEND_BUFFER must be positive"))
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("REALTIME_HANDSHAKE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
