// Package worker drains refresh jobs with bounded parallelism.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/xpand/internal/adapters/mq/queue"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	"github.com/okian/xpand/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount = 4
)

// ErrPanic marks a rebuild that panicked.
var ErrPanic = errors.New("rebuild panicked")

// Rebuilder re-evaluates all candidates of one project.
type Rebuilder interface {
	RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Failure records one project that could not be rebuilt.
type Failure struct {
	ProjectID int64
	Err       error
}

// Summary aggregates what a pool did during one Run.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Created   int
	Updated   int
	Failures  []Failure
}

func (s *Summary) add(res model.RebuildResult, err error, projectID int64) {
	s.Processed++
	if err != nil {
		s.Failed++
		s.Failures = append(s.Failures, Failure{ProjectID: projectID, Err: err})
		return
	}
	s.Succeeded++
	s.Created += res.Created
	s.Updated += res.Updated
}

// InMemoryWorker rebuilds projects read off a shared job channel.
type InMemoryWorker struct {
	rebuilder Rebuilder
	name      string
	logger    logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(rebuilder Rebuilder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		rebuilder: rebuilder,
		name:      "worker",
		logger:    logger.GetOrNop().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run processes jobs until the channel is closed and returns what it did.
// Each job runs on a context detached from ctx's cancellation so a project in
// progress always finishes; ctx only stops the channel from yielding more.
func (w *InMemoryWorker) Run(ctx context.Context, jobs <-chan queue.Job) Summary {
	var sum Summary
	for job := range jobs {
		res, err := w.Process(context.WithoutCancel(ctx), job)
		sum.add(res, err, job.ProjectID)
	}
	return sum
}

// Process rebuilds a single project.
func (w *InMemoryWorker) Process(ctx context.Context, job queue.Job) (res model.RebuildResult, err error) {
	metrics.UpdateRefreshInFlight(1)
	defer metrics.UpdateRefreshInFlight(-1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: project %d: %v", ErrPanic, job.ProjectID, r)
		}
		if err != nil {
			metrics.RecordRefreshProject("error")
			w.logger.Error(ctx, "project rebuild failed",
				logger.Int64("project_id", job.ProjectID),
				logger.String("op", "rebuild_matches"),
				logger.Error(err),
			)
			return
		}
		metrics.RecordRefreshProject("ok")
	}()

	res, err = w.rebuilder.RebuildMatches(ctx, job.ProjectID)
	if err != nil {
		return res, fmt.Errorf("project %d: %w", job.ProjectID, err)
	}
	w.logger.Debug(ctx, "project rebuilt",
		logger.Int64("project_id", job.ProjectID),
		logger.Int("created", res.Created),
		logger.Int("updated", res.Updated),
		logger.Duration("queued_for", time.Since(job.EnqueuedAt)),
	)
	return res, nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A count below one falls back to the
// default, capped at the number of CPUs times two.
func NewPool(workerCount int, q Queue, rebuilder Rebuilder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = min(defaultWorkerCount, runtime.NumCPU()*2)
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.GetOrNop().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(rebuilder, wopts...)
	}

	metrics.UpdateRefreshWorkers(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Run blocks until every worker has drained the queue or ctx is done.
func (p *Pool) Run(ctx context.Context) Summary {
	jobs := p.queue.Dequeue(ctx)

	var (
		mu    sync.Mutex
		total Summary
		wg    sync.WaitGroup
	)
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *InMemoryWorker) {
			defer wg.Done()
			s := w.Run(ctx, jobs)
			mu.Lock()
			total.Processed += s.Processed
			total.Succeeded += s.Succeeded
			total.Failed += s.Failed
			total.Created += s.Created
			total.Updated += s.Updated
			total.Failures = append(total.Failures, s.Failures...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	p.logger.Debug(ctx, "pool drained",
		logger.Int("processed", total.Processed),
		logger.Int("failed", total.Failed),
	)
	return total
}
