package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/xpand/internal/adapters/http/api"
	"github.com/okian/xpand/internal/adapters/repository"
	"github.com/okian/xpand/internal/app"
	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	matches    []model.TopMatch
	rebuildErr error
	listErr    error
	refreshErr error
	statsErr   error

	lastMinScore float64
	lastLimit    int
	refreshCtx   context.Context
}

func (m *mockDependencies) RebuildMatches(_ context.Context, projectID int64) (model.RebuildResult, error) {
	if m.rebuildErr != nil {
		return model.RebuildResult{}, m.rebuildErr
	}
	return model.RebuildResult{ProjectID: projectID, Created: 2, TotalMatches: 2, TopMatches: m.matches}, nil
}

func (m *mockDependencies) ListMatches(_ context.Context, projectID int64, minScore float64, limit int) ([]model.TopMatch, error) {
	m.lastMinScore, m.lastLimit = minScore, limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if projectID == 404 {
		return nil, fmt.Errorf("%w: %d", matching.ErrProjectNotFound, projectID)
	}
	return m.matches, nil
}

func (m *mockDependencies) Breakdown(_ context.Context, projectID, vendorID int64) (matching.Breakdown, error) {
	if vendorID == 404 {
		return matching.Breakdown{}, fmt.Errorf("%w: %d", matching.ErrVendorNotFound, vendorID)
	}
	return matching.Breakdown{ProjectID: projectID, VendorID: vendorID, Eligible: true}, nil
}

func (m *mockDependencies) RunRefresh(ctx context.Context) (model.RefreshSummary, error) {
	m.refreshCtx = ctx
	if m.refreshErr != nil {
		return model.RefreshSummary{}, m.refreshErr
	}
	return model.RefreshSummary{RunID: "run-1", Projects: 3, Succeeded: 3}, nil
}

func (m *mockDependencies) RunSweep(context.Context) (model.SweepResult, error) {
	return model.SweepResult{RunID: "run-2", Checked: 5, NewlyFlagged: 1}, nil
}

func (m *mockDependencies) GetStats(context.Context) (model.Stats, error) {
	if m.statsErr != nil {
		return model.Stats{}, m.statsErr
	}
	return model.Stats{Projects: 3, Matches: 7}, nil
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{matches: []model.TopMatch{
			{MatchID: 1, VendorID: 10, Score: 9},
			{MatchID: 2, VendorID: 11, Score: 5},
		}}
		h := api.NewServer(deps, api.WithMaxLimit(50)).Handler()

		Convey("When hitting the health endpoint", func() {
			w := serve(h, http.MethodGet, "/healthz")

			Convey("Then it reports ok as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When scraping metrics", func() {
			serve(h, http.MethodGet, "/healthz")
			w := serve(h, http.MethodGet, "/metrics")

			Convey("Then the prometheus registry is exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
			})
		})

		Convey("When reading stats", func() {
			w := serve(h, http.MethodGet, "/stats")

			Convey("Then the counts are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var st model.Stats
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.Matches, ShouldEqual, 7)
			})
		})

		Convey("When stats fail", func() {
			deps.statsErr = errors.New("db down")
			w := serve(h, http.MethodGet, "/stats")

			Convey("Then it is a server error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When rebuilding a project", func() {
			w := serve(h, http.MethodPost, "/projects/7/matches/rebuild")

			Convey("Then the rebuild result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res model.RebuildResult
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.ProjectID, ShouldEqual, 7)
				So(len(res.TopMatches), ShouldEqual, 2)
			})
		})

		Convey("When rebuilding with GET", func() {
			w := serve(h, http.MethodGet, "/projects/7/matches/rebuild")

			Convey("Then the route does not allow it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When rebuilding an unknown project", func() {
			deps.rebuildErr = fmt.Errorf("%w: 9", matching.ErrProjectNotFound)
			w := serve(h, http.MethodPost, "/projects/9/matches/rebuild")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, "api.rebuild_matches")
			})
		})

		Convey("When a rebuild is already running elsewhere", func() {
			deps.rebuildErr = fmt.Errorf("%w: project 9", matching.ErrLockNotObtained)
			w := serve(h, http.MethodPost, "/projects/9/matches/rebuild")

			Convey("Then it is a conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When the rebuild hits a duplicate match", func() {
			deps.rebuildErr = fmt.Errorf("%w: project 9: create_match: %w", matching.ErrRebuildFailed, repository.ErrDuplicateMatch)
			w := serve(h, http.MethodPost, "/projects/9/matches/rebuild")

			Convey("Then it is a server error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "internal_error")
			})
		})

		Convey("When the rebuild fails in the store", func() {
			deps.rebuildErr = fmt.Errorf("%w: project 9: find_candidates: timeout", matching.ErrRebuildFailed)
			w := serve(h, http.MethodPost, "/projects/9/matches/rebuild")

			Convey("Then it is a server error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When the project id is not a number", func() {
			w := serve(h, http.MethodPost, "/projects/abc/matches/rebuild")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When listing matches with filters", func() {
			w := serve(h, http.MethodGet, "/projects/7/matches?limit=5&min_score=4.5")

			Convey("Then the filters reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 5)
				So(deps.lastMinScore, ShouldEqual, 4.5)
				var ms []model.TopMatch
				So(json.Unmarshal(w.Body.Bytes(), &ms), ShouldBeNil)
				So(len(ms), ShouldEqual, 2)
			})
		})

		Convey("When listing without a limit", func() {
			w := serve(h, http.MethodGet, "/projects/7/matches")

			Convey("Then the configured maximum applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 50)
			})
		})

		Convey("When listing a project with no matches", func() {
			deps.matches = nil
			w := serve(h, http.MethodGet, "/projects/7/matches")

			Convey("Then an empty array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, "[]\n")
			})
		})

		Convey("When the limit is invalid or too large", func() {
			So(serve(h, http.MethodGet, "/projects/7/matches?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(h, http.MethodGet, "/projects/7/matches?limit=x").Code, ShouldEqual, http.StatusBadRequest)
			w := serve(h, http.MethodGet, "/projects/7/matches?limit=51")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("When min_score is invalid", func() {
			So(serve(h, http.MethodGet, "/projects/7/matches?min_score=-1").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(h, http.MethodGet, "/projects/7/matches?min_score=high").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing an unknown project", func() {
			w := serve(h, http.MethodGet, "/projects/404/matches")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When asking for a breakdown", func() {
			w := serve(h, http.MethodGet, "/projects/7/matches/10/breakdown")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var b matching.Breakdown
				So(json.Unmarshal(w.Body.Bytes(), &b), ShouldBeNil)
				So(b.VendorID, ShouldEqual, 10)
				So(b.Eligible, ShouldBeTrue)
			})
		})

		Convey("When asking for a breakdown of an unknown vendor", func() {
			So(serve(h, http.MethodGet, "/projects/7/matches/404/breakdown").Code, ShouldEqual, http.StatusNotFound)
			So(serve(h, http.MethodGet, "/projects/7/matches/0/breakdown").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When triggering a refresh", func() {
			w := serve(h, http.MethodPost, "/admin/refresh")

			Convey("Then the summary is returned on a detached context", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"run_id":"run-1"`)
				So(deps.refreshCtx.Done(), ShouldBeNil)
			})
		})

		Convey("When a refresh is already running", func() {
			deps.refreshErr = app.ErrRefreshRunning
			w := serve(h, http.MethodPost, "/admin/refresh")

			Convey("Then it is a conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When triggering a sweep", func() {
			w := serve(h, http.MethodPost, "/admin/sla/sweep")

			Convey("Then the sweep result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res model.SweepResult
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.NewlyFlagged, ShouldEqual, 1)
			})
		})

		Convey("When hitting an unknown route", func() {
			So(serve(h, http.MethodGet, "/unknown").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes both unwrap", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")

			So(errors.Is(api.NewKind("api.op", api.ErrNotFound), api.ErrNotFound), ShouldBeTrue)
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
		})

		Convey("Then service errors are classified by kind", func() {
			notFound := api.Wrap("api.op", fmt.Errorf("%w: 3", matching.ErrProjectNotFound))
			So(errors.Is(notFound, api.ErrNotFound), ShouldBeTrue)
			So(errors.Is(notFound, matching.ErrProjectNotFound), ShouldBeTrue)

			So(errors.Is(api.Wrap("api.op", app.ErrRefreshRunning), api.ErrConflict), ShouldBeTrue)
			So(errors.Is(api.Wrap("api.op", matching.ErrLockNotObtained), api.ErrConflict), ShouldBeTrue)

			dup := api.Wrap("api.op", repository.ErrDuplicateMatch)
			So(errors.Is(dup, api.ErrConflict), ShouldBeFalse)
			So(errors.Is(dup, api.ErrNotFound), ShouldBeFalse)
		})
	})
}
