package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"aeroclaim/internal/domain/flight"
	"aeroclaim/internal/metrics"
	"aeroclaim/internal/services/flightcache"
	quotasvc "aeroclaim/internal/services/quota"
	"aeroclaim/internal/services/verification"
	"aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// ServerConfig contains configuration for the admin HTTP server
type ServerConfig struct {
	Addr         string
	ServiceName  string
	ProviderName string
}

// SearchAnalytics reports aggregate search behavior. Backed by the
// ClickHouse event sink in production.
type SearchAnalytics interface {
	TopRoutes(ctx context.Context, from, to time.Time, limit int) (map[string]uint64, error)
	CacheHitRate(ctx context.Context, from, to time.Time) (float64, error)
}

// Server exposes the operational surface: quota status, cache invalidation,
// health and metrics. It is meant to sit behind the internal network only.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures the admin HTTP server. analytics may be
// nil when no event sink is configured.
func NewServer(cfg ServerConfig, verifier *verification.Service, quota *quotasvc.Service, cache *flightcache.Service, analytics SearchAnalytics, log *logger.Logger) *Server {
	h := &handlers{
		verifier:    verifier,
		quota:       quota,
		cache:       cache,
		analytics:   analytics,
		provider:    cfg.ProviderName,
		serviceName: cfg.ServiceName,
		log:         log.With("component", "admin_api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/verify", h.handleVerify)
	mux.HandleFunc("/api/search", h.handleSearch)
	mux.HandleFunc("/api/airports", h.handleAirportSearch)
	mux.HandleFunc("/admin/quota", h.handleQuota)
	mux.HandleFunc("/admin/search/stats", h.handleSearchStats)
	mux.HandleFunc("/admin/cache/flight-status/clear", h.handleClearFlightStatus)

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests. Blocks until the server is
// stopped or fails.
func (s *Server) Start() error {
	s.log.Infof("Starting admin HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping admin HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("Admin HTTP server stopped")
	return nil
}

type handlers struct {
	verifier    *verification.Service
	quota       *quotasvc.Service
	cache       *flightcache.Service
	analytics   SearchAnalytics
	provider    string
	serviceName string
	log         *logger.Logger
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": h.serviceName,
		"status":  "ok",
	})
}

type verifyRequest struct {
	FlightNumber  string `json:"flight_number"`
	FlightDate    string `json:"flight_date"`
	DepartureIATA string `json:"departure_iata,omitempty"`
	ArrivalIATA   string `json:"arrival_iata,omitempty"`
	Incident      string `json:"incident,omitempty"`
	ClaimID       string `json:"claim_id,omitempty"`
	Refresh       bool   `json:"refresh,omitempty"`
}

// handleVerify runs the verify-and-enrich workflow for a single flight
func (h *handlers) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.FlightDate)
	if err != nil {
		http.Error(w, "flight_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var claimID *uuid.UUID
	if req.ClaimID != "" {
		id, err := uuid.Parse(req.ClaimID)
		if err != nil {
			http.Error(w, "claim_id must be a UUID", http.StatusBadRequest)
			return
		}
		claimID = &id
	}

	result, err := h.verifier.VerifyFlight(r.Context(), flight.Identity{
		FlightNumber:  req.FlightNumber,
		FlightDate:    date,
		DepartureIATA: req.DepartureIATA,
		ArrivalIATA:   req.ArrivalIATA,
		Incident:      flight.IncidentType(req.Incident),
	}, claimID, req.Refresh)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Errorf("Verification failed: %v", err)
		http.Error(w, "verification failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSearch runs the route search workflow
func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var userID *uuid.UUID
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "user_id must be a UUID", http.StatusBadRequest)
			return
		}
		userID = &id
	}

	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	result, err := h.verifier.SearchRoute(r.Context(), q.Get("from"), q.Get("to"), date, q.Get("time"), userID, refresh)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Errorf("Route search failed: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleAirportSearch finds airports by free-text term
func (h *handlers) handleAirportSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	result, err := h.verifier.SearchAirports(r.Context(), r.URL.Query().Get("q"), refresh)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Errorf("Airport search failed: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleQuota reports the current period plus usage aggregates
func (h *handlers) handleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.quota.UsageStats(r.Context(), h.provider, 30)
	if err != nil {
		h.log.Errorf("Quota stats query failed: %v", err)
		http.Error(w, "failed to load quota status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":        stats.Period.Provider,
		"period_start":    stats.Period.PeriodStart,
		"period_end":      stats.Period.PeriodEnd,
		"credits_allowed": stats.Period.CreditsAllowed,
		"credits_used":    stats.Period.CreditsUsed,
		"usage_percent":   stats.Period.UsagePercent(),
		"exceeded":        stats.Period.Exceeded,
		"daily":           stats.Daily,
		"top_endpoints":   stats.TopEndpoints,
	})
}

// handleSearchStats reports the most searched routes and the cache hit rate
// over the requested window (default 30 days)
func (h *handlers) handleSearchStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.analytics == nil {
		http.Error(w, "search analytics not configured", http.StatusServiceUnavailable)
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	routes, err := h.analytics.TopRoutes(r.Context(), from, to, 10)
	if err != nil {
		h.log.Errorf("Top routes query failed: %v", err)
		http.Error(w, "failed to load search stats", http.StatusInternalServerError)
		return
	}

	hitRate, err := h.analytics.CacheHitRate(r.Context(), from, to)
	if err != nil {
		h.log.Errorf("Cache hit rate query failed: %v", err)
		http.Error(w, "failed to load search stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":           from,
		"to":             to,
		"top_routes":     routes,
		"cache_hit_rate": hitRate,
	})
}

// handleClearFlightStatus drops every cached flight status. Used after a
// provider data incident so the next lookups fetch fresh state.
func (h *handlers) handleClearFlightStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.cache.ClearFlightStatus(r.Context())
	if err != nil {
		h.log.Errorf("Flight status cache clear failed: %v", err)
		http.Error(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": count,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
