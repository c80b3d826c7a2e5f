// Package http exposes the service's health, metrics, and read-only query
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/osint-monitor/internal/analytics"
	"github.com/couchcryptid/osint-monitor/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// EventQuerier reads stored events for the query endpoints.
type EventQuerier interface {
	QueryEvents(ctx context.Context, domainFilter string, since time.Time, minPriority int) ([]domain.Event, error)
}

// Analyzer computes spike and situation rankings over queried events.
type Analyzer interface {
	DetectSpikes(events []domain.Event, p analytics.SpikeParams) []analytics.Spike
	ActiveSituations(events []domain.Event, topN int) []analytics.Situation
}

// Server exposes health, readiness, metrics, and event query HTTP endpoints.
type Server struct {
	httpServer *http.Server
	store      EventQuerier
	analyzer   Analyzer
	now        func() time.Time
	logger     *slog.Logger
}

// NewServer wires /healthz, /readyz, /metrics, and the query routes.
func NewServer(addr string, ready ReadinessChecker, store EventQuerier, analyzer Analyzer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:    store,
		analyzer: analyzer,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /spikes", s.handleSpikes)
	mux.HandleFunc("GET /situations", s.handleSituations)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleEvents serves GET /events?domain=&hours=&min_priority=.
// An empty result is a 200 with an empty array.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, ok := s.queryWindow(w, r)
	if !ok {
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleSpikes serves GET /spikes?domain=&top= over the detector's lookback
// window.
func (s *Server) handleSpikes(w http.ResponseWriter, r *http.Request) {
	params := analytics.DefaultSpikeParams()
	top, err := queryInt(r, "top", params.TopN)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	params.TopN = top

	since := s.now().AddDate(0, 0, -params.LookbackDays)
	events, err := s.store.QueryEvents(r.Context(), r.URL.Query().Get("domain"), since, 0)
	if err != nil {
		s.logger.Error("query events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	spikes := s.analyzer.DetectSpikes(events, params)
	if spikes == nil {
		spikes = []analytics.Spike{}
	}
	writeJSON(w, http.StatusOK, spikes)
}

// handleSituations serves GET /situations?domain=&hours=&top=.
func (s *Server) handleSituations(w http.ResponseWriter, r *http.Request) {
	top, err := queryInt(r, "top", 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	events, ok := s.queryWindow(w, r)
	if !ok {
		return
	}

	situations := s.analyzer.ActiveSituations(events, top)
	if situations == nil {
		situations = []analytics.Situation{}
	}
	writeJSON(w, http.StatusOK, situations)
}

// queryWindow runs the common domain/hours/min_priority query. The bool is
// false when a response has already been written.
func (s *Server) queryWindow(w http.ResponseWriter, r *http.Request) ([]domain.Event, bool) {
	hours, err := queryInt(r, "hours", 168)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	minPriority, err := queryInt(r, "min_priority", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}

	since := s.now().Add(-time.Duration(hours) * time.Hour)
	events, err := s.store.QueryEvents(r.Context(), r.URL.Query().Get("domain"), since, minPriority)
	if err != nil {
		s.logger.Error("query events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return nil, false
	}
	return events, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
