package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/xpand/internal/app"
	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeMatcher struct {
	mu      sync.Mutex
	fail    map[int64]error
	delay   time.Duration
	rebuilt []int64
	runIDs  []string
}

func (m *fakeMatcher) RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilt = append(m.rebuilt, projectID)
	m.runIDs = append(m.runIDs, logger.RunID(ctx))
	if err := m.fail[projectID]; err != nil {
		return model.RebuildResult{}, err
	}
	return model.RebuildResult{ProjectID: projectID, Created: 1, Updated: 1}, nil
}

func (m *fakeMatcher) ListMatches(context.Context, int64, float64, int) ([]model.TopMatch, error) {
	return []model.TopMatch{{MatchID: 1, VendorID: 2, Score: 7}}, nil
}

func (m *fakeMatcher) Breakdown(_ context.Context, projectID, vendorID int64) (matching.Breakdown, error) {
	return matching.Breakdown{ProjectID: projectID, VendorID: vendorID}, nil
}

type fakeSweeper struct {
	calls int
	runID string
	err   error
}

func (s *fakeSweeper) Sweep(ctx context.Context) (model.SweepResult, error) {
	s.calls++
	s.runID = logger.RunID(ctx)
	if s.err != nil {
		return model.SweepResult{}, s.err
	}
	return model.SweepResult{RunID: s.runID, Checked: 3}, nil
}

type fakeCatalog struct {
	ids []int64
	err error
}

func (c fakeCatalog) ActiveProjectIDs(context.Context) ([]int64, error) { return c.ids, c.err }

func (c fakeCatalog) Stats(context.Context) (model.Stats, error) {
	return model.Stats{Projects: int64(len(c.ids))}, nil
}

func TestRunRefresh(t *testing.T) {
	Convey("Given a service over fakes", t, func() {
		ctx := context.Background()
		matcher := &fakeMatcher{fail: map[int64]error{}}
		sweeper := &fakeSweeper{}
		catalog := fakeCatalog{ids: []int64{1, 2, 3, 4}}
		opts := []app.Option{app.WithWorkerCount(2), app.WithLogger(logger.NewNop())}

		Convey("When every project rebuilds", func() {
			svc := app.New(matcher, sweeper, catalog, opts...)
			sum, err := svc.RunRefresh(ctx)

			Convey("Then the summary counts them and the sweep runs after", func() {
				So(err, ShouldBeNil)
				So(sum.RunID, ShouldNotBeEmpty)
				So(sum.Projects, ShouldEqual, 4)
				So(sum.Succeeded, ShouldEqual, 4)
				So(sum.Created, ShouldEqual, 4)
				So(sum.Updated, ShouldEqual, 4)
				So(sum.Skipped, ShouldEqual, 0)
				So(sweeper.calls, ShouldEqual, 1)
				So(sum.Sweep, ShouldNotBeNil)
				So(sum.Sweep.Checked, ShouldEqual, 3)
			})

			Convey("Then every log line of the run shares its id", func() {
				So(sweeper.runID, ShouldEqual, sum.RunID)
				for _, id := range matcher.runIDs {
					So(id, ShouldEqual, sum.RunID)
				}
			})
		})

		Convey("When one project fails", func() {
			matcher.fail[2] = errors.New("deadlock")
			svc := app.New(matcher, sweeper, catalog, opts...)
			sum, err := svc.RunRefresh(ctx)

			Convey("Then the rest of the batch still completes", func() {
				So(err, ShouldBeNil)
				So(sum.Succeeded, ShouldEqual, 3)
				So(sum.Failed, ShouldEqual, 1)
				So(len(matcher.rebuilt), ShouldEqual, 4)
				So(sweeper.calls, ShouldEqual, 1)
			})
		})

		Convey("When listing projects fails", func() {
			catalog.err = errors.New("db gone")
			svc := app.New(matcher, sweeper, catalog, opts...)
			_, err := svc.RunRefresh(ctx)

			Convey("Then the run fails without sweeping", func() {
				So(errors.Is(err, app.ErrRefreshFailed), ShouldBeTrue)
				So(sweeper.calls, ShouldEqual, 0)
			})
		})

		Convey("When the sweep fails", func() {
			sweeper.err = errors.New("sweep broke")
			svc := app.New(matcher, sweeper, catalog, opts...)
			sum, err := svc.RunRefresh(ctx)

			Convey("Then the rebuilds still count", func() {
				So(err, ShouldBeNil)
				So(sum.Succeeded, ShouldEqual, 4)
				So(sum.Sweep, ShouldBeNil)
			})
		})

		Convey("When the run is canceled mid-batch", func() {
			ids := make([]int64, 30)
			for i := range ids {
				ids[i] = int64(i + 1)
			}
			catalog.ids = ids
			matcher.delay = 10 * time.Millisecond
			svc := app.New(matcher, sweeper, catalog, opts...)

			runCtx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(25 * time.Millisecond)
				cancel()
			}()
			sum, err := svc.RunRefresh(runCtx)

			Convey("Then unstarted projects are skipped and the sweep does not run", func() {
				So(errors.Is(err, app.ErrRefreshCanceled), ShouldBeTrue)
				So(sum.Skipped, ShouldBeGreaterThan, 0)
				So(sum.Succeeded+sum.Failed+sum.Skipped, ShouldEqual, 30)
				So(sum.Failed, ShouldEqual, 0)
				So(sweeper.calls, ShouldEqual, 0)
			})
		})

		Convey("When a refresh is already running", func() {
			matcher.delay = 30 * time.Millisecond
			svc := app.New(matcher, sweeper, catalog, opts...)
			done := make(chan error)
			go func() {
				_, err := svc.RunRefresh(ctx)
				done <- err
			}()
			time.Sleep(5 * time.Millisecond)
			_, err := svc.RunRefresh(ctx)

			Convey("Then the second call is refused", func() {
				So(errors.Is(err, app.ErrRefreshRunning), ShouldBeTrue)
				So(<-done, ShouldBeNil)
			})
		})
	})
}

func TestPassThrough(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		sweeper := &fakeSweeper{}
		svc := app.New(&fakeMatcher{}, sweeper, fakeCatalog{ids: []int64{1, 2}}, app.WithLogger(logger.NewNop()))

		Convey("Then reads and the standalone sweep reach their backends", func() {
			ms, err := svc.ListMatches(ctx, 1, 0, 10)
			So(err, ShouldBeNil)
			So(len(ms), ShouldEqual, 1)

			b, err := svc.Breakdown(ctx, 1, 2)
			So(err, ShouldBeNil)
			So(b.VendorID, ShouldEqual, 2)

			st, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(st.Projects, ShouldEqual, 2)

			res, err := svc.RunSweep(ctx)
			So(err, ShouldBeNil)
			So(res.Checked, ShouldEqual, 3)
			So(sweeper.calls, ShouldEqual, 1)
		})
	})
}
