package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/internal/domain/scoring"
)

// Breakdown explains how a vendor scores for a project right now.
type Breakdown struct {
	ProjectID        int64             `json:"project_id"`
	VendorID         int64             `json:"vendor_id"`
	VendorName       string            `json:"vendor_name"`
	Eligible         bool              `json:"eligible"`
	MatchingServices []string          `json:"matching_services"`
	Score            scoring.Breakdown `json:"score"`
	PersistedScore   *float64          `json:"persisted_score,omitempty"`
}

// ListMatches returns the project's matches best first, keeping those scoring
// at least minScore, capped at limit when limit > 0.
func (e *Engine) ListMatches(ctx context.Context, projectID int64, minScore float64, limit int) ([]model.TopMatch, error) {
	if _, err := e.project(ctx, projectID); err != nil {
		return nil, err
	}

	all, err := e.matches.MatchesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list matches of project %d: %w", projectID, err)
	}
	kept := all[:0]
	for _, m := range all {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}
	return TopMatches(kept, limit), nil
}

// Breakdown scores vendorID against projectID with the current facts and
// reports the persisted score alongside when a match exists.
func (e *Engine) Breakdown(ctx context.Context, projectID, vendorID int64) (Breakdown, error) {
	project, err := e.project(ctx, projectID)
	if err != nil {
		return Breakdown{}, err
	}
	vendor, err := e.vendors.Vendor(ctx, vendorID)
	if errors.Is(err, model.ErrNotFound) {
		return Breakdown{}, fmt.Errorf("%w: %d", ErrVendorNotFound, vendorID)
	}
	if err != nil {
		return Breakdown{}, fmt.Errorf("load vendor %d: %w", vendorID, err)
	}

	shared := make([]string, 0, len(project.RequiredServices))
	for _, svc := range project.RequiredServices {
		if slices.Contains(vendor.Services, svc) {
			shared = append(shared, svc)
		}
	}

	b := Breakdown{
		ProjectID:        projectID,
		VendorID:         vendorID,
		VendorName:       vendor.Name,
		Eligible:         vendor.Active && len(shared) > 0 && slices.Contains(vendor.Countries, project.Country),
		MatchingServices: shared,
		Score: e.calc.Breakdown(scoring.Input{
			ServicesOverlap:  len(shared),
			Rating:           vendor.Rating,
			ResponseSLAHours: vendor.ResponseSLAHours,
		}),
	}

	m, ok, err := e.matches.FindMatch(ctx, projectID, vendorID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("find match: %w", err)
	}
	if ok {
		score := m.Score
		b.PersistedScore = &score
	}
	return b, nil
}

func (e *Engine) project(ctx context.Context, id int64) (model.Project, error) {
	p, err := e.projects.Project(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Project{}, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("load project %d: %w", id, err)
	}
	return p, nil
}
