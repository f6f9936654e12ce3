package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/xpand/internal/adapters/mq/queue"
	"github.com/okian/xpand/internal/adapters/mq/worker"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockRebuilder struct {
	mu      sync.Mutex
	seen    []int64
	errors  map[int64]error
	panics  map[int64]bool
	delay   time.Duration
	active  atomic.Int32
	peak    atomic.Int32
	ctxErrs []error
}

func newMockRebuilder() *mockRebuilder {
	return &mockRebuilder{
		errors: make(map[int64]error),
		panics: make(map[int64]bool),
	}
}

func (m *mockRebuilder) RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.seen = append(m.seen, projectID)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	err := m.errors[projectID]
	p := m.panics[projectID]
	m.mu.Unlock()

	if p {
		panic("boom")
	}
	if err != nil {
		return model.RebuildResult{}, err
	}
	return model.RebuildResult{ProjectID: projectID, Created: 2, Updated: 1}, nil
}

func (m *mockRebuilder) processed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func fill(ids ...int64) *queue.InMemoryQueue {
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(ids) + 1))
	for _, id := range ids {
		q.Enqueue(context.Background(), queue.Job{ProjectID: id})
	}
	_ = q.Close()
	return q
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker", t, func() {
		rb := newMockRebuilder()
		w := worker.NewInMemoryWorker(rb,
			worker.WithName("test-worker"),
			worker.WithLogger(logger.NewNop()),
		)
		ctx := context.Background()

		convey.Convey("When processing a job", func() {
			res, err := w.Process(ctx, queue.Job{ProjectID: 7, EnqueuedAt: time.Now()})

			convey.Convey("Then the rebuild result is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.ProjectID, convey.ShouldEqual, 7)
				convey.So(res.Created, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the rebuild fails", func() {
			cause := errors.New("db down")
			rb.errors[3] = cause
			_, err := w.Process(ctx, queue.Job{ProjectID: 3})

			convey.Convey("Then the error names the project and wraps the cause", func() {
				convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "project 3")
			})
		})

		convey.Convey("When the rebuild panics", func() {
			rb.panics[4] = true
			var err error
			convey.So(func() { _, err = w.Process(ctx, queue.Job{ProjectID: 4}) }, convey.ShouldNotPanic)

			convey.Convey("Then the panic becomes an error", func() {
				convey.So(errors.Is(err, worker.ErrPanic), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When running over a closed queue", func() {
			q := fill(1, 2, 3)
			sum := w.Run(ctx, q.Dequeue(ctx))

			convey.Convey("Then every job is processed before Run returns", func() {
				convey.So(sum.Processed, convey.ShouldEqual, 3)
				convey.So(sum.Succeeded, convey.ShouldEqual, 3)
				convey.So(sum.Created, convey.ShouldEqual, 6)
				convey.So(sum.Updated, convey.ShouldEqual, 3)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		rb := newMockRebuilder()
		ctx := context.Background()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, fill(), rb)

			convey.Convey("Then it falls back to a default size", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When one project out of several fails", func() {
			rb.errors[2] = errors.New("lock busy")
			rb.panics[4] = true
			pool := worker.NewPool(3, fill(1, 2, 3, 4, 5), rb, worker.WithLogger(logger.NewNop()))

			sum := pool.Run(ctx)

			convey.Convey("Then the others still succeed", func() {
				convey.So(sum.Processed, convey.ShouldEqual, 5)
				convey.So(sum.Succeeded, convey.ShouldEqual, 3)
				convey.So(sum.Failed, convey.ShouldEqual, 2)
				convey.So(sum.Created, convey.ShouldEqual, 6)
				convey.So(len(sum.Failures), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When draining many jobs", func() {
			ids := make([]int64, 40)
			for i := range ids {
				ids[i] = int64(i + 1)
			}
			rb.delay = 2 * time.Millisecond
			pool := worker.NewPool(4, fill(ids...), rb, worker.WithLogger(logger.NewNop()))

			sum := pool.Run(ctx)

			convey.Convey("Then parallelism never exceeds the pool size", func() {
				convey.So(sum.Processed, convey.ShouldEqual, 40)
				convey.So(rb.peak.Load(), convey.ShouldBeLessThanOrEqualTo, 4)
				convey.So(rb.peak.Load(), convey.ShouldBeGreaterThan, 1)
			})
		})

		convey.Convey("When the run context is cancelled mid-run", func() {
			ids := make([]int64, 50)
			for i := range ids {
				ids[i] = int64(i + 1)
			}
			rb.delay = 10 * time.Millisecond
			runCtx, cancel := context.WithCancel(ctx)
			pool := worker.NewPool(2, fill(ids...), rb, worker.WithLogger(logger.NewNop()))

			go func() {
				time.Sleep(25 * time.Millisecond)
				cancel()
			}()
			sum := pool.Run(runCtx)

			convey.Convey("Then in-flight projects finish and the rest are left", func() {
				convey.So(sum.Processed, convey.ShouldBeLessThan, 50)
				convey.So(sum.Processed, convey.ShouldEqual, rb.processed())
				convey.So(sum.Failed, convey.ShouldEqual, 0)
				for _, e := range rb.ctxErrs {
					convey.So(e, convey.ShouldBeNil)
				}
			})
		})
	})
}
