// Package app wires the matching engine, the SLA monitor and the refresh
// worker pool into the operations exposed by the HTTP API and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/xpand/internal/adapters/mq/queue"
	"github.com/okian/xpand/internal/adapters/mq/worker"
	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	"github.com/okian/xpand/pkg/metrics"
)

const defaultWorkerCount = 4

// Matcher rebuilds and reads project matches.
type Matcher interface {
	RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error)
	ListMatches(ctx context.Context, projectID int64, minScore float64, limit int) ([]model.TopMatch, error)
	Breakdown(ctx context.Context, projectID, vendorID int64) (matching.Breakdown, error)
}

// Sweeper runs one SLA sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (model.SweepResult, error)
}

// Catalog enumerates projects and counts stored entities.
type Catalog interface {
	ActiveProjectIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Service implements the API dependencies for the matching system.
type Service struct {
	matcher Matcher
	sweeper Sweeper
	catalog Catalog

	workerCount int
	refreshing  atomic.Bool

	now    func() time.Time
	logger logger.Logger
}

// New constructs a Service.
func New(matcher Matcher, sweeper Sweeper, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		matcher:     matcher,
		sweeper:     sweeper,
		catalog:     catalog,
		workerCount: defaultWorkerCount,
		now:         time.Now,
		logger:      logger.GetOrNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("app")
	return s
}

// RebuildMatches re-evaluates one project on demand.
func (s *Service) RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error) {
	return s.matcher.RebuildMatches(ctx, projectID)
}

// ListMatches returns the persisted matches of a project, best first.
func (s *Service) ListMatches(ctx context.Context, projectID int64, minScore float64, limit int) ([]model.TopMatch, error) {
	return s.matcher.ListMatches(ctx, projectID, minScore, limit)
}

// Breakdown explains the current score of a vendor for a project.
func (s *Service) Breakdown(ctx context.Context, projectID, vendorID int64) (matching.Breakdown, error) {
	return s.matcher.Breakdown(ctx, projectID, vendorID)
}

// RunSweep runs the SLA sweep on its own.
func (s *Service) RunSweep(ctx context.Context) (model.SweepResult, error) {
	return s.sweeper.Sweep(ctx)
}

// GetStats returns entity counts for monitoring.
func (s *Service) GetStats(ctx context.Context) (model.Stats, error) {
	return s.catalog.Stats(ctx)
}

// RunRefresh rebuilds every active project through a bounded worker pool and
// then sweeps SLAs. A failed project is logged and counted; the rest of the
// batch goes on. Cancelling ctx stops new projects from starting, lets the
// ones in flight finish, and skips the sweep.
func (s *Service) RunRefresh(ctx context.Context) (model.RefreshSummary, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return model.RefreshSummary{}, ErrRefreshRunning
	}
	defer s.refreshing.Store(false)

	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	start := s.now()
	summary := model.RefreshSummary{RunID: runID}

	ids, err := s.catalog.ActiveProjectIDs(ctx)
	if err != nil {
		metrics.RecordRefreshRun("error", s.now().Sub(start).Seconds())
		s.logger.Error(ctx, "refresh could not list projects", logger.Error(err))
		return summary, fmt.Errorf("%w: list projects: %w", ErrRefreshFailed, err)
	}
	summary.Projects = len(ids)
	s.logger.Info(ctx, "refresh started",
		logger.Int("projects", len(ids)),
		logger.Int("workers", s.workerCount),
	)

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(ids) + 1))
	for _, id := range ids {
		q.Enqueue(ctx, queue.Job{ProjectID: id})
	}
	_ = q.Close()

	pool := worker.NewPool(s.workerCount, q, s.matcher, worker.WithLogger(s.logger.Named("refresh")))
	sum := pool.Run(ctx)

	summary.Succeeded = sum.Succeeded
	summary.Failed = sum.Failed
	summary.Created = sum.Created
	summary.Updated = sum.Updated
	summary.Skipped = summary.Projects - sum.Processed

	if ctxErr := ctx.Err(); ctxErr != nil {
		summary.Duration = s.now().Sub(start)
		metrics.RecordRefreshRun("canceled", summary.Duration.Seconds())
		s.logger.Warn(ctx, "refresh canceled, sla sweep skipped",
			logger.Int("processed", sum.Processed),
			logger.Int("skipped", summary.Skipped),
		)
		return summary, fmt.Errorf("%w: %w", ErrRefreshCanceled, ctxErr)
	}

	result := "ok"
	sweep, err := s.sweeper.Sweep(ctx)
	if err != nil {
		result = "partial"
		s.logger.Error(ctx, "refresh sla sweep failed", logger.Error(err))
	} else {
		summary.Sweep = &sweep
	}
	if summary.Failed > 0 {
		result = "partial"
	}

	summary.Duration = s.now().Sub(start)
	metrics.RecordRefreshRun(result, summary.Duration.Seconds())
	if result == "ok" {
		metrics.UpdateRefreshLastSuccess(s.now().Unix())
	}

	s.logger.Info(ctx, "refresh finished",
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
		logger.Int("created", summary.Created),
		logger.Int("updated", summary.Updated),
		logger.Duration("took", summary.Duration),
	)
	for _, f := range sum.Failures {
		s.logger.Warn(ctx, "project left for next refresh",
			logger.Int64("project_id", f.ProjectID),
			logger.Bool("lock_busy", errors.Is(f.Err, matching.ErrLockNotObtained)),
			logger.Error(f.Err),
		)
	}
	return summary, nil
}
