package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
)

const defaultMaxLimit = 100

// MatchesDependencies defines the match operations used by MatchesHandler.
type MatchesDependencies interface {
	RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error)
	ListMatches(ctx context.Context, projectID int64, minScore float64, limit int) ([]model.TopMatch, error)
	Breakdown(ctx context.Context, projectID, vendorID int64) (matching.Breakdown, error)
}

// MatchesHandler serves the per-project match routes.
type MatchesHandler struct {
	deps     MatchesDependencies
	maxLimit int
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchesDependencies, maxLimit int) *MatchesHandler {
	return &MatchesHandler{deps: deps, maxLimit: maxLimit}
}

// HandleRebuild handles POST /projects/{id}/matches/rebuild.
func (h *MatchesHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	const op = "api.rebuild_matches"
	id, ok := pathID(r, "id")
	if !ok {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	res, err := h.deps.RebuildMatches(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleList handles GET /projects/{id}/matches?limit=N&min_score=S.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_matches"
	id, ok := pathID(r, "id")
	if !ok {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}

	q := r.URL.Query()
	limit := h.maxLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	var minScore float64
	if s := q.Get("min_score"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		minScore = f
	}

	ms, err := h.deps.ListMatches(r.Context(), id, minScore, limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if ms == nil {
		ms = []model.TopMatch{}
	}
	writeJSON(w, http.StatusOK, ms)
}

// HandleBreakdown handles GET /projects/{id}/matches/{vendorId}/breakdown.
func (h *MatchesHandler) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	const op = "api.match_breakdown"
	projectID, ok := pathID(r, "id")
	if !ok {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	vendorID, ok := pathID(r, "vendorId")
	if !ok {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	b, err := h.deps.Breakdown(r.Context(), projectID, vendorID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, b)
}
