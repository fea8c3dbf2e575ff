package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/lendingLedger/pkg/cache"
	"github.com/mcclellann/lendingLedger/pkg/config"
	"github.com/mcclellann/lendingLedger/pkg/ledger"
	"github.com/mcclellann/lendingLedger/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, quit); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server exited")
}

// run serves until quit fires or the listener fails. Everything it opens is
// closed before it returns, including on startup errors.
func run(cfg *config.Config, quit <-chan os.Signal) error {
	storage, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storage.Close()

	if cfg.SeedCustomers {
		added, err := store.SeedCustomers(context.Background(), storage, store.DefaultCustomers)
		if err != nil {
			return fmt.Errorf("failed to seed customers: %w", err)
		}
		if added > 0 {
			log.Info().Int("count", added).Msg("Sample customers added")
		}
	}

	viewCache, closeCache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer closeCache()

	rateLimiter := NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer rateLimiter.Stop()

	var opts []ledger.Option
	if cfg.CacheTTL > 0 {
		opts = append(opts, ledger.WithCache(viewCache, cfg.CacheTTL))
	}
	l := ledger.NewLedger(storage, opts...)
	server := NewServer(storage, l, rateLimiter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.handler(cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-quit:
		log.Info().Msg("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}

func openStorage(cfg *config.Config) (store.Storage, error) {
	if cfg.DatabasePath == "" {
		log.Warn().Msg("DATABASE_PATH is empty, keeping loans in memory")
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.DatabasePath)
}

func openCache(cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Connected to redis")
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}, nil
}
