package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/marinemon/internal/config"
	"github.com/hazz-dev/marinemon/internal/coordinator"
	"github.com/hazz-dev/marinemon/internal/health"
	"github.com/hazz-dev/marinemon/internal/marine"
	"github.com/hazz-dev/marinemon/internal/storage"
)

// ServerStore defines the storage queries the server needs.
type ServerStore interface {
	AllLatest(ctx context.Context) ([]storage.Fetch, error)
	LatestFetch(ctx context.Context, location string) (*storage.Fetch, error)
	LocationHistory(ctx context.Context, location string, limit, offset int) ([]storage.Fetch, int, error)
	FreshRatePercent(ctx context.Context, location string, last int) (float64, error)
	RecentHealthEvents(ctx context.Context, limit int) ([]storage.HealthEvent, error)
}

// HealthMonitor is the slice of the monitor exposed over HTTP.
type HealthMonitor interface {
	CurrentSnapshot() health.Snapshot
	TriggerManualCheck(ctx context.Context) health.Snapshot
}

// Server holds the chi router and its dependencies.
type Server struct {
	store        ServerStore
	monitor      HealthMonitor
	locations    []config.Location
	coordinators map[string]*coordinator.Coordinator
	router       chi.Router
	logger       *slog.Logger
}

// New creates a new Server and registers all routes. coordinators is keyed
// by location name.
func New(store ServerStore, monitor HealthMonitor, locations []config.Location, coordinators map[string]*coordinator.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:        store,
		monitor:      monitor,
		locations:    locations,
		coordinators: coordinators,
		router:       chi.NewRouter(),
		logger:       logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/upstream", s.handleUpstream)
	r.Post("/api/upstream/check", s.handleManualCheck)
	r.Get("/api/locations", s.handleListLocations)
	r.Get("/api/locations/{name}", s.handleGetLocation)
	r.Get("/api/locations/{name}/history", s.handleGetLocationHistory)
	r.Get("/api/events", s.handleEvents)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Location helpers ---

// pathParam returns the named route parameter with URL escaping undone,
// so location names containing spaces resolve correctly.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (s *Server) locationIndex() map[string]config.Location {
	idx := make(map[string]config.Location, len(s.locations))
	for _, loc := range s.locations {
		idx[loc.Name] = loc
	}
	return idx
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type upstreamResponse struct {
	Status               string     `json:"status"`
	SuccessRate          float64    `json:"success_rate"`
	AvgResponseMs        int64      `json:"avg_response_ms"`
	LastSuccess          *time.Time `json:"last_success"`
	LastFailure          *time.Time `json:"last_failure"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	TotalChecks          int64      `json:"total_checks"`
}

func upstreamFromSnapshot(snap health.Snapshot) upstreamResponse {
	resp := upstreamResponse{
		Status:               string(snap.Status),
		SuccessRate:          snap.SuccessRate,
		AvgResponseMs:        snap.AvgResponseTime.Milliseconds(),
		ConsecutiveFailures:  snap.ConsecutiveFailures,
		ConsecutiveSuccesses: snap.ConsecutiveSuccesses,
		TotalChecks:          snap.TotalChecks,
	}
	if !snap.LastSuccess.IsZero() {
		t := snap.LastSuccess
		resp.LastSuccess = &t
	}
	if !snap.LastFailure.IsZero() {
		t := snap.LastFailure
		resp.LastFailure = &t
	}
	return resp
}

func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, upstreamFromSnapshot(s.monitor.CurrentSnapshot()))
}

func (s *Server) handleManualCheck(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.TriggerManualCheck(r.Context())
	writeJSON(w, http.StatusOK, upstreamFromSnapshot(snap))
}

type locationDetail struct {
	Name         string     `json:"name"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Source       string     `json:"source"`
	ResponseMs   int64      `json:"response_ms"`
	FreshRatePct float64    `json:"fresh_rate_percent"`
	LastFetched  *time.Time `json:"last_fetched"`
	Error        string     `json:"error,omitempty"`
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.AllLatest(r.Context())
	if err != nil {
		s.logger.Error("AllLatest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	byLocation := make(map[string]storage.Fetch, len(latest))
	for _, f := range latest {
		byLocation[f.Location] = f
	}

	details := make([]locationDetail, 0, len(s.locations))
	for _, loc := range s.locations {
		d := locationDetail{
			Name:      loc.Name,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Source:    "none",
		}
		if f, ok := byLocation[loc.Name]; ok {
			d.Source = f.Source
			d.ResponseMs = f.ResponseMs
			d.Error = f.Error
			t := f.FetchedAt
			d.LastFetched = &t
			pct, err := s.store.FreshRatePercent(r.Context(), loc.Name, 100)
			if err != nil {
				s.logger.Error("FreshRatePercent", "location", loc.Name, "error", err)
			}
			d.FreshRatePct = pct
		}
		details = append(details, d)
	}

	writeJSON(w, http.StatusOK, details)
}

type locationResponse struct {
	locationDetail
	Attributes    map[string]any  `json:"attributes"`
	RecentFetches []storage.Fetch `json:"recent_fetches"`
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	idx := s.locationIndex()
	loc, ok := idx[name]
	if !ok {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	latest, err := s.store.LatestFetch(r.Context(), name)
	if err != nil {
		s.logger.Error("LatestFetch", "location", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	history, _, err := s.store.LocationHistory(r.Context(), name, 10, 0)
	if err != nil {
		s.logger.Error("LocationHistory", "location", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pct, err := s.store.FreshRatePercent(r.Context(), name, 100)
	if err != nil {
		s.logger.Error("FreshRatePercent", "location", name, "error", err)
	}

	d := locationDetail{
		Name:         loc.Name,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Source:       "none",
		FreshRatePct: pct,
	}
	if latest != nil {
		d.Source = latest.Source
		d.ResponseMs = latest.ResponseMs
		d.Error = latest.Error
		t := latest.FetchedAt
		d.LastFetched = &t
	}

	resp := locationResponse{
		locationDetail: d,
		RecentFetches:  history,
	}
	if c, ok := s.coordinators[name]; ok {
		if cached := c.Last(); cached != nil {
			resp.Attributes = marine.CurrentAttributes(loc, cached.Data, s.monitor.CurrentSnapshot())
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	Fetches []storage.Fetch `json:"fetches"`
	Total   int             `json:"total"`
}

func (s *Server) handleGetLocationHistory(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	idx := s.locationIndex()
	if _, ok := idx[name]; !ok {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	fetches, total, err := s.store.LocationHistory(r.Context(), name, limit, offset)
	if err != nil {
		s.logger.Error("LocationHistory", "location", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Fetches: fetches,
		Total:   total,
	})
}

type healthEventItem struct {
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.RecentHealthEvents(r.Context(), 50)
	if err != nil {
		s.logger.Error("RecentHealthEvents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]healthEventItem, 0, len(events))
	for _, e := range events {
		items = append(items, healthEventItem{
			OldStatus:  e.OldStatus,
			NewStatus:  e.NewStatus,
			OccurredAt: e.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
