// Package scheduler fires registered jobs on fixed intervals.
//
// The runner owns timing and overlap only. What a job does is up to its
// handler.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/xpand/pkg/logger"
	"github.com/okian/xpand/pkg/metrics"
)

// Handler is the work behind a job.
type Handler func(ctx context.Context) error

// Job is a recurring trigger. A firing while the previous run is still
// going is skipped.
type Job struct {
	Name     string
	Interval time.Duration
	Handler  Handler
}

type entry struct {
	job     Job
	running atomic.Bool
}

// Runner fires jobs, one ticker each.
type Runner struct {
	mu      sync.Mutex
	entries []*entry
	started bool
	wg      sync.WaitGroup
	logger  logger.Logger
}

// New creates a runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger: logger.GetOrNop().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a job. Jobs must be registered before Start.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Handler == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, job.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	for _, e := range r.entries {
		if e.job.Name == job.Name {
			return fmt.Errorf("%w: %s", ErrDuplicate, job.Name)
		}
	}
	r.entries = append(r.entries, &entry{job: job})
	return nil
}

// Start launches one goroutine per job. They stop when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	r.started = true

	for _, e := range r.entries {
		r.wg.Add(1)
		go r.loop(ctx, e)
		r.logger.Info(ctx, "job scheduled",
			logger.String("job", e.job.Name),
			logger.Duration("interval", e.job.Interval),
		)
	}
	return nil
}

// Wait blocks until every job loop and in-flight run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, e *entry) {
	defer r.wg.Done()

	ticker := time.NewTicker(e.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fire(ctx, e)
		}
	}
}

// fire starts the handler in the background unless a run is in progress.
func (r *Runner) fire(ctx context.Context, e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		metrics.RecordSchedulerSkipped(e.job.Name)
		r.logger.Warn(ctx, "previous run still in progress, skipping",
			logger.String("job", e.job.Name),
		)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer e.running.Store(false)
		r.run(ctx, e.job)
	}()
}

func (r *Runner) run(ctx context.Context, job Job) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "job panicked",
				logger.String("job", job.Name),
				logger.Any("panic", rec),
			)
		}
	}()

	if err := job.Handler(ctx); err != nil {
		r.logger.Error(ctx, "job failed",
			logger.String("job", job.Name),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
		return
	}
	r.logger.Info(ctx, "job finished",
		logger.String("job", job.Name),
		logger.Duration("took", time.Since(start)),
	)
}
