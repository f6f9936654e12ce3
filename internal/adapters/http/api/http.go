// Package api exposes the matching service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error)
	ListMatches(ctx context.Context, projectID int64, minScore float64, limit int) ([]model.TopMatch, error)
	Breakdown(ctx context.Context, projectID, vendorID int64) (matching.Breakdown, error)
	RunRefresh(ctx context.Context) (model.RefreshSummary, error)
	RunSweep(ctx context.Context) (model.SweepResult, error)
	GetStats(ctx context.Context) (model.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	health  *HealthHandler
	stats   *StatsHandler
	matches *MatchesHandler
	admin   *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		health:  NewHealthHandler(),
		stats:   NewStatsHandler(deps),
		matches: NewMatchesHandler(deps, defaultMaxLimit),
		admin:   NewAdminHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.health.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleStats, "stats"))

	mux.HandleFunc("POST /projects/{id}/matches/rebuild", MetricsMiddleware(s.matches.HandleRebuild, "rebuild"))
	mux.HandleFunc("GET /projects/{id}/matches", MetricsMiddleware(s.matches.HandleList, "matches"))
	mux.HandleFunc("GET /projects/{id}/matches/{vendorId}/breakdown", MetricsMiddleware(s.matches.HandleBreakdown, "breakdown"))

	mux.HandleFunc("POST /admin/refresh", MetricsMiddleware(s.admin.HandleRefresh, "refresh"))
	mux.HandleFunc("POST /admin/sla/sweep", MetricsMiddleware(s.admin.HandleSweep, "sla_sweep"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps the kind of err onto a status code and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// pathID reads a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
