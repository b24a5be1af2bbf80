package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dockevents/internal/models"
	"dockevents/internal/notifier"
)

type Counters interface {
	List(ctx context.Context) ([]models.Counter, error)
	Reset(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes health, metrics and the rate-limit counters. counters is
// nil when no limit is configured.
type Server struct {
	counters Counters
	docker   Pinger
	notify   notifier.Notifier
	appName  string
	log      *slog.Logger
}

func NewServer(counters Counters, docker Pinger, notify notifier.Notifier, appName string, logger *slog.Logger) *Server {
	return &Server{counters: counters, docker: docker, notify: notify, appName: appName, log: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/counters", s.handleCounters)
		r.Delete("/counters", s.handleResetCounters)
		r.Delete("/counters/{key}", s.handleResetCounters)
		r.Post("/test-notification", s.handleTestNotification)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.counters != nil {
		if err := s.counters.Ping(r.Context()); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
	}
	if err := s.docker.Ping(r.Context()); err != nil {
		http.Error(w, "docker not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	if s.counters == nil {
		writeJSON(w, []models.Counter{})
		return
	}
	counters, err := s.counters.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if counters == nil {
		counters = []models.Counter{}
	}
	writeJSON(w, counters)
}

func (s *Server) handleResetCounters(w http.ResponseWriter, r *http.Request) {
	if s.counters == nil {
		http.Error(w, "rate limiting is disabled", http.StatusConflict)
		return
	}
	key := chi.URLParam(r, "key")
	n, err := s.counters.Reset(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("counters reset", "key", key, "deleted", n)
	writeJSON(w, map[string]any{"key": key, "deleted": n})
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.Send(r.Context(), s.appName, "Test notification: delivery is working"); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
