package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adtrack/internal/cache"
	"adtrack/internal/config"
	"adtrack/internal/metrics"
	"adtrack/internal/meta"
	"adtrack/internal/repo"
	"adtrack/internal/wa"
	"adtrack/internal/web"
)

// Dependencies exposes core dependencies to the handlers. Meta, MetaSync,
// WAClient and WASync are nil when their credentials are absent; the
// affected endpoints then answer 503.
type Dependencies struct {
	Store    repo.Store
	Redis    *cache.Redis
	Meta     *meta.Client
	MetaSync *meta.Syncer
	WAClient *wa.Client
	WASync   *wa.Syncer
	Config   config.Config
}

// Server wraps an http.Server with the dashboard API routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	syncGate   syncGate
}

// New creates the HTTP server listening on addr.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies) *Server {
	s := &Server{
		logger:  logger.With("component", "http"),
		metrics: metricRegistry,
		deps:    deps,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "x-ingestion-key"},
		MaxAge:         300,
	}))
	r.Use(noStore)

	r.Get("/connection-test", s.handleConnectionTest)
	r.Post("/ingest", s.handleIngest)
	r.Get("/leads", s.handleLeads)
	r.Get("/budget", s.handleBudget)
	r.Get("/insights", s.handleInsights)
	r.Get("/insights/detail", s.handleInsightDetail)
	r.Post("/sync-now", s.handleSyncNow)
	r.Post("/sync", s.handleSyncDisabled)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/metrics/daily", s.handleMetricsDaily)
	r.Post("/whatsapp/sync", s.handleWhatsAppSync)
	r.Get("/whatsapp/test", s.handleWhatsAppTest)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/internal/metrics", promhttp.Handler())

	r.Handle("/*", web.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// noStore disables HTTP caching on every response; the dashboard polls and
// must never see a stale cached body.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, max-age=0")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
