// Package api serves the hub's HTTP surface: full-text search, alert
// queries, statistics, term management, the live websocket view, and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"acars_hub/internal/alerts"
	"acars_hub/internal/metrics"
	"acars_hub/internal/storage"
)

// Server is the HTTP front end. It runs as a suture service.
type Server struct {
	addr    string
	store   *storage.Store
	matcher *alerts.Matcher
	hub     *WSHub
	log     *zap.Logger
}

func NewServer(addr string, store *storage.Store, matcher *alerts.Matcher, hub *WSHub, log *zap.Logger) *Server {
	return &Server{addr: addr, store: store, matcher: matcher, hub: hub, log: log}
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/alerts", s.handleAlerts)
	r.Get("/api/stats", s.handleStats)
	r.Post("/api/alerts/terms", s.handleSetTerms)
	r.Post("/api/alerts/reset", s.handleResetAlerts)
	r.Get("/ws", s.hub.handleWS)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve runs the HTTP server until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("http server listening", zap.String("addr", s.addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// searchParams are the query parameters accepted as search fields.
var searchParams = []string{
	"msg_time", "depa", "dsta", "text", "tail", "flight", "icao", "freq", "label",
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	metrics.SearchRequests.Inc()

	fields := make(map[string]string)
	for _, name := range searchParams {
		if v := r.URL.Query().Get(name); v != "" {
			fields[name] = v
		}
	}
	page := queryInt(r, "page", 0)

	start := time.Now()
	rows, total, err := s.store.Search(fields, page)
	if err != nil {
		s.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":    rows,
		"total":      total,
		"page":       page,
		"page_size":  storage.PageSize,
		"query_time": time.Since(start).Seconds(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := storage.AlertQuery{
		Text:   splitList(r.URL.Query().Get("text")),
		ICAO:   splitList(r.URL.Query().Get("icao")),
		Tail:   splitList(r.URL.Query().Get("tail")),
		Flight: splitList(r.URL.Query().Get("flight")),
	}
	// Bare requests page through the configured terms.
	if len(q.Text)+len(q.ICAO)+len(q.Tail)+len(q.Flight) == 0 {
		q.Text = s.matcher.Terms()
	}
	page := queryInt(r, "page", 0)

	hits, total, err := s.store.SearchAlerts(q, page)
	if err != nil {
		s.log.Error("alert search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "alert search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   hits,
		"total":     total,
		"page":      page,
		"page_size": storage.PageSize,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counters, err := s.store.GetCounters()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	freqs, err := s.store.FrequencyCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	levels, err := s.store.LevelCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	alertCounts, err := s.store.AlertCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rowCount, err := s.store.RowCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	size, err := s.store.DatabaseSize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"counters":     counters,
		"frequencies":  freqs,
		"levels":       levels,
		"alert_counts": alertCounts,
		"messages":     rowCount,
		"size_bytes":   size,
	})
}

// termsRequest is the wholesale term-replacement payload.
type termsRequest struct {
	Terms       []string `json:"terms"`
	IgnoreTerms []string `json:"ignore_terms"`
}

func (s *Server) handleSetTerms(w http.ResponseWriter, r *http.Request) {
	var req termsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	if err := s.store.SetAlertTerms(req.Terms); err != nil {
		s.log.Error("set alert terms failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "term update failed")
		return
	}
	if err := s.store.SetIgnoreTerms(req.IgnoreTerms); err != nil {
		s.log.Error("set ignore terms failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "term update failed")
		return
	}
	s.matcher.SetTerms(req.Terms, req.IgnoreTerms)

	counts, err := s.store.AlertCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alert_counts": counts})
}

func (s *Server) handleResetAlerts(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetAlertCounts(); err != nil {
		s.log.Error("alert reset failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
