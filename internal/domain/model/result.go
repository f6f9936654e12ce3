package model

import "time"

// MatchOutcome classifies what a rebuild did with one candidate.
type MatchOutcome string

// Rebuild outcomes per candidate.
const (
	OutcomeCreated   MatchOutcome = "created"
	OutcomeUpdated   MatchOutcome = "updated"
	OutcomeUnchanged MatchOutcome = "unchanged"
)

// TopMatch is one entry of the ranked match list returned by a rebuild.
type TopMatch struct {
	MatchID   int64     `json:"match_id"`
	VendorID  int64     `json:"vendor_id"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RebuildResult is the outcome of re-evaluating all candidates of one project.
type RebuildResult struct {
	ProjectID    int64      `json:"project_id"`
	Created      int        `json:"created"`
	Updated      int        `json:"updated"`
	TotalMatches int        `json:"total_matches"`
	TopMatches   []TopMatch `json:"top_matches"`
	Notified     bool       `json:"notified"`
}

// SweepResult aggregates one SLA sweep.
type SweepResult struct {
	RunID        string `json:"run_id"`
	Checked      int    `json:"checked"`
	Breached     int    `json:"breached"`
	NewlyFlagged int    `json:"newly_flagged"`
	Notified     int    `json:"notified"`
	Failed       int    `json:"failed"`
}

// RefreshSummary aggregates one full matching refresh run.
type RefreshSummary struct {
	RunID     string        `json:"run_id"`
	Projects  int           `json:"projects"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Duration  time.Duration `json:"duration"`
	Sweep     *SweepResult  `json:"sweep,omitempty"`
}

// Stats is a point-in-time count of the stored entities.
type Stats struct {
	Projects       int64 `json:"projects"`
	ActiveProjects int64 `json:"active_projects"`
	Vendors        int64 `json:"vendors"`
	ActiveVendors  int64 `json:"active_vendors"`
	Matches        int64 `json:"matches"`
	FlaggedVendors int64 `json:"flagged_vendors"`
}
