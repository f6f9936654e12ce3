package app_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/okian/xpand/internal/adapters/notify"
	"github.com/okian/xpand/internal/adapters/repository"
	"github.com/okian/xpand/internal/app"
	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/internal/domain/scoring"
	"github.com/okian/xpand/internal/domain/sla"
	"github.com/okian/xpand/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// countingNotifier records what the engine and the monitor announce.
type countingNotifier struct {
	mu       sync.Mutex
	newMatch map[int64]int
	expired  []int64
}

func (n *countingNotifier) NotifyNewMatches(_ context.Context, _ string, p model.Project, ms []model.ScoredVendor) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newMatch[p.ID] += len(ms)
	return nil
}

func (n *countingNotifier) NotifySLAExpired(_ context.Context, vendorID int64, _ model.SLABreach) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, vendorID)
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func seed(ctx context.Context, s repository.Store) []model.Project {
	c1, err := s.SaveClient(ctx, model.Client{CompanyName: "TechStart Inc", ContactEmail: "founder@techstart.com"})
	So(err, ShouldBeNil)
	c2, err := s.SaveClient(ctx, model.Client{CompanyName: "GlobalCorp Ltd", ContactEmail: "admin@globalcorp.com"})
	So(err, ShouldBeNil)

	var projects []model.Project
	for _, p := range []model.Project{
		{ClientID: c1.ID, Country: "DE", RequiredServices: []string{"legal", "payroll"}, Status: model.ProjectActive},
		{ClientID: c2.ID, Country: "US", RequiredServices: []string{"legal"}, Status: model.ProjectActive},
		{ClientID: c2.ID, Country: "DE", RequiredServices: []string{"payroll"}, Status: model.ProjectPaused},
	} {
		saved, err := s.SaveProject(ctx, p)
		So(err, ShouldBeNil)
		projects = append(projects, saved)
	}

	for _, v := range []model.Vendor{
		{Name: "Euro Legal Services", Active: true, Rating: 4, ResponseSLAHours: 12, Services: []string{"legal", "payroll"}, Countries: []string{"DE"}},
		{Name: "Berlin Payroll", Active: true, Rating: 3, ResponseSLAHours: 48, Services: []string{"payroll"}, Countries: []string{"DE"}},
		{Name: "US Legal Partners", Active: true, Rating: 5, ResponseSLAHours: 24, Services: []string{"legal"}, Countries: []string{"US"}},
	} {
		_, err := s.SaveVendor(ctx, v)
		So(err, ShouldBeNil)
	}
	return projects
}

func runEndToEnd(t *testing.T, name string, open func(t *testing.T) repository.Store) {
	Convey("Given "+name+" with seeded projects and vendors", t, func() {
		ctx := context.Background()
		store := open(t)
		projects := seed(ctx, store)

		clk := &clock{t: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
		notes := &countingNotifier{newMatch: map[int64]int{}}
		log := logger.NewNop()
		fanout := notify.Multi{notes}

		engine, err := matching.New(
			matching.Config{Weights: scoring.DefaultWeights(), TopN: 3},
			store, store, store, fanout,
			matching.WithClock(clk.Now),
			matching.WithLogger(log),
		)
		So(err, ShouldBeNil)
		monitor := sla.New(store, fanout, sla.WithClock(clk.Now), sla.WithLogger(log))
		svc := app.New(engine, monitor, store, app.WithWorkerCount(2), app.WithLogger(log), app.WithClock(clk.Now))

		Convey("When the first refresh runs", func() {
			sum, err := svc.RunRefresh(ctx)

			Convey("Then active projects get matched and paused ones are left out", func() {
				So(err, ShouldBeNil)
				So(sum.Projects, ShouldEqual, 2)
				So(sum.Succeeded, ShouldEqual, 2)
				So(sum.Created, ShouldEqual, 3)
				So(sum.Updated, ShouldEqual, 0)
				So(notes.newMatch[projects[0].ID], ShouldEqual, 2)
				So(notes.newMatch[projects[1].ID], ShouldEqual, 1)
				So(notes.newMatch[projects[2].ID], ShouldEqual, 0)
				So(sum.Sweep, ShouldNotBeNil)
				So(sum.Sweep.NewlyFlagged, ShouldEqual, 0)
			})

			Convey("Then the best DE match is the vendor covering both services", func() {
				ms, err := svc.ListMatches(ctx, projects[0].ID, 0, 0)
				So(err, ShouldBeNil)
				So(len(ms), ShouldEqual, 2)
				So(ms[0].Score, ShouldEqual, 9)
				So(ms[1].Score, ShouldEqual, 5)
			})

			Convey("And a day later the next refresh flags the slow responders", func() {
				clk.Advance(25 * time.Hour)
				sum2, err := svc.RunRefresh(ctx)

				So(err, ShouldBeNil)
				So(sum2.Created, ShouldEqual, 0)
				So(sum2.Updated, ShouldEqual, 0)
				So(sum2.Sweep.NewlyFlagged, ShouldEqual, 2)
				So(len(notes.expired), ShouldEqual, 2)

				st, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(st.Matches, ShouldEqual, 3)
				So(st.FlaggedVendors, ShouldEqual, 2)

				Convey("And a further sweep does not announce them again", func() {
					res, err := svc.RunSweep(ctx)
					So(err, ShouldBeNil)
					So(res.NewlyFlagged, ShouldEqual, 0)
					So(len(notes.expired), ShouldEqual, 2)
				})
			})
		})
	})
}

func TestEndToEndMemory(t *testing.T) {
	runEndToEnd(t, "a memory store", func(*testing.T) repository.Store { return repository.NewMemoryStore() })
}

func TestEndToEndSQLite(t *testing.T) {
	runEndToEnd(t, "a sqlite store", func(t *testing.T) repository.Store {
		s, err := repository.Open(sqlite.Open(filepath.Join(t.TempDir(), "e2e.db")), repository.WithMaxOpenConns(1))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		if err := s.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
