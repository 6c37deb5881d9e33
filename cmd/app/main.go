package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adtrack/internal/cache"
	"adtrack/internal/config"
	"adtrack/internal/httpserver"
	"adtrack/internal/logging"
	"adtrack/internal/metrics"
	"adtrack/internal/meta"
	"adtrack/internal/repo"
	"adtrack/internal/wa"
	"adtrack/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting adtrack", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := repo.New(ctx, cfg.DatabaseURL, cfg.DBSchema, repo.PoolConfig{
		MaxConns:       cfg.DBMaxConns,
		IdleTimeout:    cfg.DBIdleTimeout,
		ConnectTimeout: cfg.DBConnectTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated", "schema", cfg.DBSchema)

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	deps := httpserver.Dependencies{
		Store:  repository,
		Redis:  redisClient,
		Config: cfg,
	}

	if cfg.MetaConfigured() {
		metaClient := meta.New(meta.Config{
			AccessToken: cfg.MetaAccessToken,
			AdAccountID: cfg.MetaAdAccountID,
		}, logger, metricRegistry, redisClient)
		deps.Meta = metaClient
		deps.MetaSync = meta.NewSyncer(metaClient, repository, logger, metricRegistry)
	} else {
		logger.Warn("ads platform credentials absent, budget and sync endpoints disabled")
	}

	if cfg.MetaAccessToken != "" {
		waClient := wa.New(wa.Config{AccessToken: cfg.MetaAccessToken}, logger, metricRegistry)
		deps.WAClient = waClient
		if cfg.WhatsAppConfigured() {
			deps.WASync = wa.NewSyncer(waClient, repository, cfg.WhatsAppPhoneNumberIDs, logger, metricRegistry)
		} else {
			logger.Warn("messaging platform not fully configured, messaging sync disabled")
		}
	}

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, deps)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
