// Command server runs the LeadHub HTTP API and real-time rooms.
//
// @title                       LeadHub API
// @version                     1.0
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/api"
	"github.com/pipelinecrm/leadhub/internal/api/handler"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
	"github.com/pipelinecrm/leadhub/internal/core/service"
	mongodb "github.com/pipelinecrm/leadhub/internal/infrastructure/db/mongo"
	redisdb "github.com/pipelinecrm/leadhub/internal/infrastructure/db/redis"
	"github.com/pipelinecrm/leadhub/internal/infrastructure/identity"
	"github.com/pipelinecrm/leadhub/internal/pkg/config"
	"github.com/pipelinecrm/leadhub/internal/realtime"
	"github.com/pipelinecrm/leadhub/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "leadhub",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	verifier := newVerifier(cfg.Identity, redisdb.NewClaimsCache(rdb), log)

	users := service.NewIdentityService(mongodb.NewUserDirectory(db), log)
	leads := service.NewLeadService(mongodb.NewLeadRepository(db), log)
	chat := service.NewChatService(mongodb.NewMessageStore(db), log)

	dispatcher := realtime.NewDispatcher(cfg.Realtime.Workers, logger.Component(log, "dispatcher"))
	defer dispatcher.Stop()
	broker := realtime.NewRoomBroker(chat, dispatcher, logger.Component(log, "broker"))
	ws := realtime.NewServer(
		realtime.NewSessionAuthenticator(verifier, users, logger.Component(log, "session")),
		broker,
		realtime.ServerConfig{
			AllowedOrigins:   cfg.Realtime.AllowedOrigins,
			HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
			SendBuffer:       cfg.Realtime.SendBuffer,
			FrameRate:        cfg.Realtime.FrameRate,
			FrameBurst:       cfg.Realtime.FrameBurst,
		},
		logger.Component(log, "realtime"),
	)

	e := api.NewRouter(api.Deps{
		Log:      logger.Component(log, "http"),
		Verifier: verifier,
		Users:    users,
		Leads:    leads,
		Health: map[string]handler.Check{
			"mongodb": handler.MongoCheck(db),
			"redis":   handler.RedisCheck(rdb),
		},
		Realtime:    ws,
		CORSOrigins: cfg.Realtime.AllowedOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("idp_mode", cfg.Identity.Mode).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	broker.Close()
	return e.Shutdown(sctx)
}

// newVerifier assembles the token check chain: provider verification, then
// the Redis claims cache, then one retry on provider outages.
func newVerifier(cfg config.IdentityConfig, cache identity.ClaimsCache, log zerolog.Logger) ports.TokenVerifier {
	var base ports.TokenVerifier
	switch cfg.Mode {
	case config.IdentityModeHMAC:
		log.Warn().Msg("verifying tokens with a shared HMAC secret")
		base = identity.NewHMACVerifier(cfg.HMACSecret, cfg.Issuer, cfg.Audience)
	default:
		keys := identity.NewKeySet(cfg.JWKSURL, cfg.JWKSCacheTTL, nil, logger.Component(log, "jwks"))
		base = identity.NewJWKSVerifier(keys, identity.JWKSConfig{
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
			Leeway:   cfg.Leeway,
		})
	}

	var v ports.TokenVerifier = base
	if cfg.ClaimsCacheTTL > 0 {
		v = identity.NewCachingVerifier(v, cache, cfg.ClaimsCacheTTL, log)
	}
	return identity.NewRetryVerifier(v, cfg.RetryBackoff)
}
