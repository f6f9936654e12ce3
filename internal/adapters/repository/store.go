// Package repository persists clients, projects, vendors, matches and vendor
// health, and answers the directory queries the matching engine and the SLA
// monitor are built on.
//
// Two implementations share one contract: MemoryStore for tests and local
// runs, GormStore for MySQL (and SQLite in tests).
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/metrics"
)

// Store provides read/write access to the matching state.
type Store interface {
	// SaveClient inserts a client (ID == 0) or replaces an existing one.
	SaveClient(ctx context.Context, c model.Client) (model.Client, error)
	// SaveProject inserts or replaces a project and its required services.
	SaveProject(ctx context.Context, p model.Project) (model.Project, error)
	// SaveVendor inserts or replaces a vendor. Rating must be within 0..5
	// and the response SLA positive, otherwise ErrInvalidVendor.
	SaveVendor(ctx context.Context, v model.Vendor) (model.Vendor, error)

	// ActiveProjectIDs lists ids of projects in the active state, ascending.
	ActiveProjectIDs(ctx context.Context) ([]int64, error)
	// Project returns a project snapshot or ErrNotFound.
	Project(ctx context.Context, id int64) (model.Project, error)

	// CandidateVendors returns active vendors supporting country that offer
	// at least one of services, with the overlap count, ordered by vendor id.
	CandidateVendors(ctx context.Context, country string, services []string) ([]model.Candidate, error)
	// Vendor returns a vendor snapshot or ErrNotFound.
	Vendor(ctx context.Context, id int64) (model.Vendor, error)

	// FindMatch looks up the match of a (project, vendor) pair.
	FindMatch(ctx context.Context, projectID, vendorID int64) (model.Match, bool, error)
	// CreateMatch inserts a new match and returns it with its id assigned.
	// A second match for the same pair fails with ErrDuplicateMatch.
	CreateMatch(ctx context.Context, m model.Match) (model.Match, error)
	// UpdateMatch sets a new score and update time.
	UpdateMatch(ctx context.Context, id int64, score float64, at time.Time) error
	// TouchMatch sets the update time only.
	TouchMatch(ctx context.Context, id int64, at time.Time) error
	// MatchesByProject returns every match of a project in insertion order.
	MatchesByProject(ctx context.Context, projectID int64) ([]model.Match, error)
	// ActiveVendorMatches returns all matches whose vendor is active.
	ActiveVendorMatches(ctx context.Context) ([]model.VendorMatch, error)

	// VendorHealth returns the health record of a vendor and whether it exists.
	VendorHealth(ctx context.Context, vendorID int64) (model.VendorHealth, bool, error)
	// SaveVendorHealth inserts or updates the health record keyed by vendor id.
	SaveVendorHealth(ctx context.Context, h model.VendorHealth) error

	// Stats counts stored entities.
	Stats(ctx context.Context) (model.Stats, error)

	Close() error
}

var validate = validator.New()

func validateVendor(v model.Vendor) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVendor, err)
	}
	return nil
}

func validateProject(p model.Project) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}
	return nil
}

func validateClient(c model.Client) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidClient, err)
	}
	return nil
}

// normalizeTags lower-cases, trims and dedupes service tags, sorted.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// normalizeCountries upper-cases and dedupes country codes, sorted.
func normalizeCountries(codes []string) []string {
	out := normalizeTags(codes)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}

// observe records latency and errors for a store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordRepositoryError(op)
	}
}
