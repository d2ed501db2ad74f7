// Package main provides the chitalishte query engine API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chitalishte-ai/query-engine/internal/cache"
	"github.com/chitalishte-ai/query-engine/internal/config"
	"github.com/chitalishte-ai/query-engine/internal/engine"
	"github.com/chitalishte-ai/query-engine/internal/llm"
	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/routing"
	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
	"github.com/chitalishte-ai/query-engine/internal/storage"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting chitalishte API")

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load schema catalog")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	cacheClient := openCache(cfg, logger)
	defer cacheClient.Close()

	pipeline, router := buildPipeline(cfg, logger, catalog, db, cacheClient)

	handler := NewRouter(logger, cfg, pipeline, router, catalog, db)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

func loadCatalog(cfg *config.Config) (*sqlguard.SchemaCatalog, error) {
	if cfg.Catalog.Path != "" {
		return sqlguard.LoadCatalog(cfg.Catalog.Path)
	}
	return sqlguard.DefaultCatalog(), nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return storage.Open(storage.OpenConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
}

// openCache prefers Redis when configured and falls back to the in-memory
// cache if Redis is unreachable.
func openCache(cfg *config.Config, logger *observability.Logger) cache.Client {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err == nil {
			return client
		}
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries)
}

// buildPipeline wires the answer pipeline. Without an API key the router
// runs with the degraded rule-only classifier and SQL generation is
// disabled.
func buildPipeline(
	cfg *config.Config,
	logger *observability.Logger,
	catalog *sqlguard.SchemaCatalog,
	db *sql.DB,
	cacheClient cache.Client,
) (*engine.Pipeline, *routing.HybridRouter) {
	var model routing.Classifier
	var generator engine.SQLGenerator

	client, err := llm.NewClient(llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		ClassifierModel: cfg.LLM.ClassifierModel,
		SQLModel:        cfg.LLM.SQLModel,
		Timeout:         cfg.LLM.Timeout,
	}, logger)
	switch {
	case err == nil:
		model = llm.NewIntentClassifier(client)
		generator = llm.NewSQLGenerator(client, catalog)
	case errors.Is(err, llm.ErrNoAPIKey):
		logger.Warn().Msg("No LLM API key, running with rule-only classification")
		model = routing.NewDegradedClassifier()
	default:
		logger.Fatal().Err(err).Msg("Failed to create LLM client")
	}

	router := routing.NewHybridRouter(logger, routing.NewKeywordIntentClassifier(), model)

	executor := storage.NewExecutor(db, logger, cfg.Pipeline.MaxRows, cfg.Pipeline.QueryTimeout)
	retriever := engine.NewKeywordRetriever(storage.NewChitalishteRepository(db))

	pipeline := engine.NewPipeline(logger, router, generator, executor, retriever, catalog, cacheClient, engine.Config{
		CacheResults: cfg.Pipeline.CacheResults,
		CacheTTL:     cfg.Cache.TTL,
	})

	return pipeline, router
}
