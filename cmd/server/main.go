package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"goldpos/backend/internal/cache"
	"goldpos/backend/internal/config"
	"goldpos/backend/internal/httpapi"
	"goldpos/backend/internal/logger"
	"goldpos/backend/internal/redisstore"
	"goldpos/backend/internal/service"
	"goldpos/backend/internal/store"
	"goldpos/backend/internal/store/memory"
	pgstore "goldpos/backend/internal/store/postgres"
	"goldpos/backend/internal/valuation"
)

const ledgerLockWait = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = logg.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logg.Fatal("invalid security configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logg.Warn("shop timezone unavailable, using UTC", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logg.Fatal("postgres migration failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logg.Info("repository: postgres")
	} else {
		if cfg.IsProduction() {
			logg.Warn("running production without DATABASE_URL; data will not survive a restart")
		}
		mem, err := memory.NewSeeded(logg.Named("memory"))
		if err != nil {
			logg.Fatal("seed in-memory repository", zap.Error(err))
		}
		repo = mem
		logg.Info("repository: in-memory")
	}

	cutoffHour := cfg.BusinessDayCutoffHour
	opts := service.Options{
		Valuation: valuation.Config{
			DeductionPerGram: cfg.DeductionPerGram,
			FallbackRate:     cfg.FallbackRate,
		},
		Location:     loc,
		CutoffHour:   &cutoffHour,
		RateCacheTTL: cfg.RateCacheTTL(),
		Logger:       logg.Named("service"),
	}

	if cfg.RedisAddr != "" {
		client := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			logg.Warn("redis unavailable, using repository counter and in-process ledger lock", zap.Error(err))
		} else {
			opts.Counter = redisstore.NewCounter(client)
			opts.Locker = redisstore.NewLocker(client, cfg.LedgerLockTTL(), ledgerLockWait, logg.Named("redislock"))
			opts.RateCache = cache.NewRedisRateCache(client)
			closers = append(closers, client.Close)
			logg.Info("coordination: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logg.Info("coordination: local")
	}

	svc := service.New(repo, opts)
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, logg.Named("auth"))
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logg.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logg.Info("gold shop backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logg.Error("close error", zap.Error(err))
		}
	}

	logg.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.IsProduction() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name the frontend origin in production")
	}
	return nil
}
