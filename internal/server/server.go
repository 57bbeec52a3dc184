// Package server implements the Admin/Status Surface (C15): a small
// read-mostly chi router exposing health, the current consolidated
// snapshot, journal statistics/export, the latest trading decisions, and
// an advisor model override — the operational visibility surface named in
// SPEC_FULL.md §4.15, bound to API_PORT.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/domain"
)

// SnapshotView is the consolidated read-view returned by GET /api/snapshot.
type SnapshotView struct {
	Account   domain.AccountState            `json:"account"`
	Snapshots map[string]domain.MarketSnapshot `json:"snapshots"`
	Positions []domain.Position              `json:"positions"`
}

// Dependencies is the narrow set of callbacks the server reads from; each
// is backed by a live component (store, journal, decision history) owned
// elsewhere. Handlers never hold a component reference directly so this
// package stays testable against plain closures.
type Dependencies struct {
	Snapshot        func() SnapshotView
	JournalStats    func() (map[domain.JournalTag]domain.JournalStats, error)
	ExportJournal   func(ctx context.Context) (string, error)
	LatestDecisions func() []domain.TradingDecision
	Models          *ModelOverride
}

// Config holds server configuration.
type Config struct {
	Port    int
	Log     zerolog.Logger
	Deps    Dependencies
	DevMode bool
}

// Server is the HTTP admin surface.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	deps   Dependencies
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		deps:   cfg.Deps,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/journal/stats", s.handleJournalStats)
		r.Post("/journal/export", s.handleJournalExport)
		r.Post("/advisor/model", s.handleSetModel)
		r.Get("/decisions/latest", s.handleLatestDecisions)
	})
}

// Start starts the HTTP server. It blocks until the server stops; callers
// run it in its own goroutine and use Shutdown to stop it.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting admin surface")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down admin surface")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
