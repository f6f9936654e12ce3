package api

import (
	"context"
	"net/http"

	"github.com/okian/xpand/internal/domain/model"
)

// AdminDependencies defines the manual triggers.
type AdminDependencies interface {
	RunRefresh(ctx context.Context) (model.RefreshSummary, error)
	RunSweep(ctx context.Context) (model.SweepResult, error)
}

// AdminHandler serves the manual batch triggers.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleRefresh handles POST /admin/refresh. The run is detached from the
// request so a client disconnect does not cancel it.
func (h *AdminHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_refresh"
	sum, err := h.deps.RunRefresh(context.WithoutCancel(r.Context()))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleSweep handles POST /admin/sla/sweep.
func (h *AdminHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_sla_sweep"
	res, err := h.deps.RunSweep(context.WithoutCancel(r.Context()))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
