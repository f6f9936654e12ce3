package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/internal/domain/scoring"
	"github.com/okian/xpand/pkg/logger"
	"github.com/okian/xpand/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RebuildMatches re-evaluates every candidate vendor of a project and
// upserts its match. A missing project yields ErrProjectNotFound; any store
// failure aborts the rebuild with ErrRebuildFailed. Matches already written
// in the aborted pass stay; the next rebuild converges them.
func (e *Engine) RebuildMatches(ctx context.Context, projectID int64) (model.RebuildResult, error) {
	ctx, span := e.tracer.Start(ctx, "matching.RebuildMatches",
		trace.WithAttributes(attribute.Int64("project.id", projectID)))
	defer span.End()

	start := time.Now()
	res, err := e.rebuild(ctx, projectID)
	metrics.RecordRebuild(rebuildResultLabel(err), float64(time.Since(start).Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.RebuildResult{}, err
	}
	span.SetAttributes(
		attribute.Int("matches.created", res.Created),
		attribute.Int("matches.updated", res.Updated),
		attribute.Bool("notified", res.Notified),
	)
	return res, nil
}

func (e *Engine) rebuild(ctx context.Context, projectID int64) (model.RebuildResult, error) {
	release, err := e.locker.Acquire(ctx, lockKey(projectID))
	if err != nil {
		return model.RebuildResult{}, fmt.Errorf("%w: project %d: %w", ErrLockNotObtained, projectID, err)
	}
	defer release()

	project, err := e.projects.Project(ctx, projectID)
	if errors.Is(err, model.ErrNotFound) {
		return model.RebuildResult{}, fmt.Errorf("%w: %d", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return model.RebuildResult{}, e.fail(ctx, projectID, "load_project", 0, err)
	}

	candidates, err := e.vendors.CandidateVendors(ctx, project.Country, project.RequiredServices)
	if err != nil {
		return model.RebuildResult{}, e.fail(ctx, projectID, "find_candidates", 0, err)
	}
	metrics.RecordCandidates(len(candidates))

	res := model.RebuildResult{ProjectID: projectID}
	var created []model.ScoredVendor
	now := e.now()

	for _, c := range candidates {
		score := e.calc.Score(scoring.Input{
			ServicesOverlap:  c.ServicesOverlap,
			Rating:           c.Rating,
			ResponseSLAHours: c.ResponseSLAHours,
		})

		outcome, err := e.upsert(ctx, projectID, c.VendorID, score, now)
		if err != nil {
			return model.RebuildResult{}, e.fail(ctx, projectID, "upsert_match", c.VendorID, err)
		}
		metrics.RecordMatchOutcome(string(outcome))

		switch outcome {
		case model.OutcomeCreated:
			res.Created++
			created = append(created, model.ScoredVendor{
				VendorID:        c.VendorID,
				VendorName:      c.VendorName,
				Score:           score,
				ServicesOverlap: c.ServicesOverlap,
			})
		case model.OutcomeUpdated:
			res.Updated++
		}
	}

	all, err := e.matches.MatchesByProject(ctx, projectID)
	if err != nil {
		return model.RebuildResult{}, e.fail(ctx, projectID, "list_matches", 0, err)
	}
	res.TotalMatches = len(all)
	res.TopMatches = TopMatches(all, e.topN)

	if len(created) > 0 {
		res.Notified = e.notify(ctx, project, created)
	}

	e.log.Debug(ctx, "project matches rebuilt",
		logger.Int64("project_id", projectID),
		logger.Int("candidates", len(candidates)),
		logger.Int("created", res.Created),
		logger.Int("updated", res.Updated),
		logger.Bool("notified", res.Notified))
	return res, nil
}

// upsert writes one candidate's score and classifies what happened.
func (e *Engine) upsert(ctx context.Context, projectID, vendorID int64, score float64, now time.Time) (model.MatchOutcome, error) {
	existing, ok, err := e.matches.FindMatch(ctx, projectID, vendorID)
	if err != nil {
		return "", fmt.Errorf("find: %w", err)
	}

	if !ok {
		_, err := e.matches.CreateMatch(ctx, model.Match{
			ProjectID: projectID,
			VendorID:  vendorID,
			Score:     score,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return "", fmt.Errorf("create: %w", err)
		}
		return model.OutcomeCreated, nil
	}

	if !scoring.Equal(existing.Score, score) {
		if err := e.matches.UpdateMatch(ctx, existing.ID, score, now); err != nil {
			return "", fmt.Errorf("update: %w", err)
		}
		return model.OutcomeUpdated, nil
	}

	if err := e.matches.TouchMatch(ctx, existing.ID, now); err != nil {
		return "", fmt.Errorf("touch: %w", err)
	}
	return model.OutcomeUnchanged, nil
}

// notify reports newly created matches, best score first.
func (e *Engine) notify(ctx context.Context, project model.Project, created []model.ScoredVendor) bool {
	sort.SliceStable(created, func(i, j int) bool { return created[i].Score > created[j].Score })

	if err := e.notifier.NotifyNewMatches(ctx, project.ClientEmail, project, created); err != nil {
		metrics.RecordNotification("new_matches", "error")
		e.log.Warn(ctx, "new matches notification failed",
			logger.Int64("project_id", project.ID),
			logger.Int("matches", len(created)),
			logger.Error(err))
		return false
	}
	metrics.RecordNotification("new_matches", "ok")
	return true
}

func (e *Engine) fail(ctx context.Context, projectID int64, op string, vendorID int64, cause error) error {
	fields := []logger.Field{
		logger.Int64("project_id", projectID),
		logger.String("op", op),
		logger.Error(cause),
	}
	if vendorID != 0 {
		fields = append(fields, logger.Int64("vendor_id", vendorID))
	}
	e.log.Error(ctx, "rebuild failed", fields...)
	return fmt.Errorf("%w: project %d: %s: %w", ErrRebuildFailed, projectID, op, cause)
}

func rebuildResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProjectNotFound):
		return "not_found"
	case errors.Is(err, ErrLockNotObtained):
		return "locked"
	default:
		return "error"
	}
}
