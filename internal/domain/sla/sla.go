// Package sla flags vendors whose matches have aged past their committed
// response time.
//
// Match age is the breach signal: there is no "vendor responded" event, so a
// match older than the vendor's response SLA counts as a breach. The flag is
// vendor level, raised once and never cleared here.
package sla

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/xpand/internal/domain/dedupe"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	"github.com/okian/xpand/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/okian/xpand/internal/domain/sla"

// Store lists matches of active vendors and keeps vendor health.
type Store interface {
	ActiveVendorMatches(ctx context.Context) ([]model.VendorMatch, error)
	VendorHealth(ctx context.Context, vendorID int64) (model.VendorHealth, bool, error)
	SaveVendorHealth(ctx context.Context, h model.VendorHealth) error
}

// Notifier receives newly flagged vendors. Failures never fail a sweep.
type Notifier interface {
	NotifySLAExpired(ctx context.Context, vendorID int64, breach model.SLABreach) error
}

// Monitor runs SLA sweeps. Sweeps on one Monitor are serialized so a vendor
// is never read as unflagged by two sweeps at once.
type Monitor struct {
	store    Store
	notifier Notifier

	mu sync.Mutex

	now    func() time.Time
	log    logger.Logger
	tracer trace.Tracer
}

// New constructs a monitor.
func New(store Store, notifier Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      logger.GetOrNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named("sla")
	return m
}

// Sweep evaluates every match of an active vendor once. A vendor is handled
// at most once per sweep, on its first breaching match. Per-vendor failures
// are logged and counted; only a failure to list the matches fails the sweep.
// A call made while another sweep runs waits for it to finish.
func (m *Monitor) Sweep(ctx context.Context) (model.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	ctx, span := m.tracer.Start(ctx, "sla.Sweep", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordSLASweepLatency(float64(time.Since(start).Milliseconds())) }()

	res := model.SweepResult{RunID: runID}
	matches, err := m.store.ActiveVendorMatches(ctx)
	if err != nil {
		metrics.RecordSLASweepError()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.log.Error(ctx, "sla sweep could not list matches", logger.Error(err))
		return res, fmt.Errorf("%w: %w", ErrSweepFailed, err)
	}

	now := m.now()
	handled := dedupe.NewInMemoryDeduper()

	for _, vm := range matches {
		res.Checked++
		metrics.RecordSLACheck()

		elapsed := now.Sub(vm.CreatedAt).Hours()
		if elapsed <= float64(vm.ResponseSLAHours) {
			continue
		}
		key := strconv.FormatInt(vm.VendorID, 10)
		if handled.SeenAndRecord(ctx, key) {
			continue
		}
		res.Breached++
		metrics.RecordSLABreach()

		flagged, notified, err := m.flag(ctx, vm, elapsed, now)
		if err != nil {
			// Let a later match of the same vendor retry.
			handled.Unrecord(ctx, key)
			res.Failed++
			metrics.RecordSLASweepError()
			m.log.Error(ctx, "sla check failed",
				logger.Int64("vendor_id", vm.VendorID),
				logger.Int64("match_id", vm.ID),
				logger.Error(err))
			continue
		}
		if flagged {
			res.NewlyFlagged++
			metrics.RecordSLAFlagged()
		}
		if notified {
			res.Notified++
		}
	}

	span.SetAttributes(
		attribute.Int("matches.checked", res.Checked),
		attribute.Int("vendors.handled", handled.Size()),
		attribute.Int("vendors.flagged", res.NewlyFlagged),
		attribute.Int("vendors.failed", res.Failed),
	)
	m.log.Info(ctx, "sla sweep finished",
		logger.Int("checked", res.Checked),
		logger.Int("breached", res.Breached),
		logger.Int("newly_flagged", res.NewlyFlagged),
		logger.Int("notified", res.Notified),
		logger.Int("failed", res.Failed))
	return res, nil
}

// flag loads or creates the vendor's health record, raises the flag the
// first time, and refreshes the check time. A notification failure leaves
// the vendor flagged; the breach is not announced again.
func (m *Monitor) flag(ctx context.Context, vm model.VendorMatch, elapsed float64, now time.Time) (flagged, notified bool, err error) {
	h, ok, err := m.store.VendorHealth(ctx, vm.VendorID)
	if err != nil {
		return false, false, fmt.Errorf("load vendor health: %w", err)
	}
	if !ok {
		h = model.VendorHealth{VendorID: vm.VendorID}
	}

	flagged = !h.SLAExpired
	h.SLAExpired = true
	h.LastCheckedAt = now
	if err := m.store.SaveVendorHealth(ctx, h); err != nil {
		return false, false, fmt.Errorf("save vendor health: %w", err)
	}
	if !flagged {
		return false, false, nil
	}

	breach := model.SLABreach{
		MatchID:          vm.ID,
		ProjectID:        vm.ProjectID,
		ResponseSLAHours: vm.ResponseSLAHours,
		HoursElapsed:     elapsed,
		DetectedAt:       now,
	}
	if err := m.notifier.NotifySLAExpired(ctx, vm.VendorID, breach); err != nil {
		metrics.RecordNotification("sla_expired", "error")
		m.log.Warn(ctx, "sla expired notification failed",
			logger.Int64("vendor_id", vm.VendorID),
			logger.Error(err))
		return true, false, nil
	}
	metrics.RecordNotification("sla_expired", "ok")
	return true, true, nil
}
