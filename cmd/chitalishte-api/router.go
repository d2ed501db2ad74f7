// Package main provides the API router setup.
package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/chitalishte-ai/query-engine/cmd/chitalishte-api/handlers"
	"github.com/chitalishte-ai/query-engine/cmd/chitalishte-api/middleware"
	"github.com/chitalishte-ai/query-engine/internal/config"
	"github.com/chitalishte-ai/query-engine/internal/engine"
	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/routing"
	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(
	logger *observability.Logger,
	cfg *config.Config,
	pipeline *engine.Pipeline,
	intentRouter *routing.HybridRouter,
	catalog *sqlguard.SchemaCatalog,
	db *sql.DB,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"chitalishte-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	queryHandler := handlers.NewQueryHandler(logger, pipeline)
	routingHandler := handlers.NewRoutingHandler(logger, intentRouter)
	sqlCheckHandler := handlers.NewSQLCheckHandler(logger, catalog)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{
			Enabled: cfg.Auth.Enabled,
			Token:   cfg.Auth.Token,
		}))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/query", queryHandler.Query)
		})

		r.Route("/routing", func(r chi.Router) {
			r.Post("/classify", routingHandler.Classify)
		})

		r.Route("/sql", func(r chi.Router) {
			r.Post("/check", sqlCheckHandler.Check)
		})
	})

	return r
}
