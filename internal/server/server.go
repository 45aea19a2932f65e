// Package server exposes the oracle's runtime state over a small HTTP API:
// ledger health, current market regime, the latest performance report, and
// host-level system stats.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/internal/ledger"
	"github.com/pojakpijak/H-5N1P3R/internal/regime"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// ReportCache holds the most recent performance report for the API.
type ReportCache struct {
	mu     sync.RWMutex
	report *domain.PerformanceReport
}

// Set replaces the cached report.
func (c *ReportCache) Set(r domain.PerformanceReport) {
	c.mu.Lock()
	c.report = &r
	c.mu.Unlock()
}

// Get returns the cached report, nil when none was produced yet.
func (c *ReportCache) Get() *domain.PerformanceReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Config holds server configuration.
type Config struct {
	Addr    string
	Log     zerolog.Logger
	Storage ledger.Storage
	Regimes *regime.State
	Reports *ReportCache
}

// Server is the status HTTP server.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	storage     ledger.Storage
	regimes     *regime.State
	reports     *ReportCache
	startupTime time.Time
}

// New creates the status server.
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         logger.Component(cfg.Log, "server"),
		storage:     cfg.Storage,
		regimes:     cfg.Regimes,
		reports:     cfg.Reports,
		startupTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/regime", s.handleRegime)
		r.Get("/performance", s.handlePerformance)
		r.Get("/system", s.handleSystem)
	})
}

// Start starts the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting status server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down status server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree; used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.storage.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(s.startupTime).Seconds()),
	})
}

func (s *Server) handleRegime(w http.ResponseWriter, _ *http.Request) {
	current := s.regimes.Current()
	params := regime.ParametersFor(current)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"regime":     current,
		"parameters": params,
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, _ *http.Request) {
	report := s.reports.Get()
	if report == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"available": false,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": true,
		"report":    report,
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]interface{}{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		payload["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory_percent"] = vm.UsedPercent
		payload["memory_used_mb"] = vm.Used / 1024 / 1024
		payload["memory_total_mb"] = vm.Total / 1024 / 1024
	}

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
