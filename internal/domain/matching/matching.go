// Package matching keeps the persisted matches of a project consistent with
// the current project and vendor facts.
//
// A rebuild discovers candidate vendors, scores them, and upserts one match
// per (project, vendor) pair. Repeating a rebuild over unchanged data
// creates and updates nothing; it only refreshes the update timestamps.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/internal/domain/scoring"
	"github.com/okian/xpand/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/okian/xpand/internal/domain/matching"

// ProjectDirectory reads project snapshots.
type ProjectDirectory interface {
	ActiveProjectIDs(ctx context.Context) ([]int64, error)
	// Project returns model.ErrNotFound for unknown ids.
	Project(ctx context.Context, id int64) (model.Project, error)
}

// VendorDirectory reads vendor snapshots and discovers candidates.
type VendorDirectory interface {
	CandidateVendors(ctx context.Context, country string, services []string) ([]model.Candidate, error)
	// Vendor returns model.ErrNotFound for unknown ids.
	Vendor(ctx context.Context, id int64) (model.Vendor, error)
}

// MatchRepository persists matches keyed by (project, vendor).
type MatchRepository interface {
	FindMatch(ctx context.Context, projectID, vendorID int64) (model.Match, bool, error)
	CreateMatch(ctx context.Context, m model.Match) (model.Match, error)
	UpdateMatch(ctx context.Context, id int64, score float64, at time.Time) error
	TouchMatch(ctx context.Context, id int64, at time.Time) error
	MatchesByProject(ctx context.Context, projectID int64) ([]model.Match, error)
}

// Notifier receives newly created matches. Failures never fail a rebuild.
type Notifier interface {
	NotifyNewMatches(ctx context.Context, email string, project model.Project, matches []model.ScoredVendor) error
}

// Locker grants exclusive access to a key. release must always be called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Config carries the scoring weights and the size of the top list.
type Config struct {
	Weights scoring.Weights
	TopN    int
}

// Engine rebuilds the matches of one project at a time.
type Engine struct {
	projects ProjectDirectory
	vendors  VendorDirectory
	matches  MatchRepository
	notifier Notifier
	locker   Locker
	calc     *scoring.Calculator
	topN     int

	now    func() time.Time
	log    logger.Logger
	tracer trace.Tracer
}

// New constructs an engine. Weights and TopN come from cfg only.
func New(cfg Config, projects ProjectDirectory, vendors VendorDirectory, matches MatchRepository, notifier Notifier, opts ...Option) (*Engine, error) {
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("%w: top n %d", ErrInvalidConfig, cfg.TopN)
	}
	calc, err := scoring.NewCalculator(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	e := &Engine{
		projects: projects,
		vendors:  vendors,
		matches:  matches,
		notifier: notifier,
		locker:   noLock{},
		calc:     calc,
		topN:     cfg.TopN,
		now:      time.Now,
		log:      logger.GetOrNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("matching")
	return e, nil
}

// Calculator exposes the engine's score calculator.
func (e *Engine) Calculator() *scoring.Calculator {
	return e.calc
}

// noLock is the default locker: a single instance needs no coordination.
type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func lockKey(projectID int64) string {
	return fmt.Sprintf("project:%d", projectID)
}
