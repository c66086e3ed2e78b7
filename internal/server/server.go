package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jcortez/winsmith/internal/audit"
	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/db"
	"github.com/jcortez/winsmith/internal/drafter"
	"github.com/jcortez/winsmith/internal/entry"
	"github.com/jcortez/winsmith/internal/llm"
	"github.com/jcortez/winsmith/internal/refine"
	"github.com/jcortez/winsmith/internal/statement"
)

// Server is the winsmith HTTP API server.
type Server struct {
	cfg        config.ServerConfig
	db         *db.DB
	router     chi.Router
	httpServer *http.Server
}

// New wires all feature packages onto a single router.
func New(cfg *config.Config, database *db.DB, provider llm.Provider) *Server {
	s := &Server{
		cfg: cfg.Server,
		db:  database,
	}

	entries := entry.NewStore(database)
	statements := statement.NewStore(database)
	sessions := refine.NewStore(database)
	auditStore := audit.NewStore(database)

	orch := refine.NewOrchestrator(cfg.Refine, statements, sessions, provider, cfg.Model, auditStore)
	drft := drafter.New(cfg.Refine, entries, statements, sessions, provider, cfg.Model, auditStore)

	r := s.buildRouter()
	entry.RegisterRoutes(r, entries, auditStore)
	statement.RegisterRoutes(r, statements)
	drafter.RegisterRoutes(r, drft)
	refine.RegisterRoutes(r, orch)
	audit.RegisterRoutes(r, auditStore)

	s.router = r
	return s
}

// buildRouter creates and configures the chi router with middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The compare pipeline makes three generation calls back to back, so
	// the request timeout must cover three per-call timeouts.
	r.Use(middleware.Timeout(300 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("winsmith server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
