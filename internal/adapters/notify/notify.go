// Package notify delivers new-match and SLA-breach notifications.
//
// Delivery is best-effort: callers log and count failures but never abort
// a rebuild or a sweep because of them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/xpand/internal/domain/model"
)

// Notifier is the delivery contract shared by all channels.
type Notifier interface {
	NotifyNewMatches(ctx context.Context, email string, project model.Project, matches []model.ScoredVendor) error
	NotifySLAExpired(ctx context.Context, vendorID int64, breach model.SLABreach) error
}

// ErrNoRecipient is returned when a new-match notification has no address.
var ErrNoRecipient = errors.New("notification has no recipient")

// NewMatchesSubject is the subject line of the new-match email.
const NewMatchesSubject = "New vendor matches for your project"

// RenderNewMatches renders the plain-text body of the new-match email.
func RenderNewMatches(project model.Project, matches []model.ScoredVendor) string {
	name := project.ClientName
	if name == "" {
		name = "Client"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "We found %d new vendor matches for your project (%d, country=%s).\n\n",
		len(matches), project.ID, project.Country)
	b.WriteString("Top matches:\n")
	for _, m := range matches {
		fmt.Fprintf(&b, " - Vendor ID %d (score: %s)\n", m.VendorID, formatScore(m.Score))
	}
	b.WriteString("\nBest regards,\nXpand Team")
	return b.String()
}

func formatScore(s float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", s), "0"), ".")
}

// Multi fans a notification out to several channels. Every channel is
// attempted; the joined error reports the ones that failed.
type Multi []Notifier

// NotifyNewMatches implements Notifier.
func (m Multi) NotifyNewMatches(ctx context.Context, email string, project model.Project, matches []model.ScoredVendor) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyNewMatches(ctx, email, project, matches); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifySLAExpired implements Notifier.
func (m Multi) NotifySLAExpired(ctx context.Context, vendorID int64, breach model.SLABreach) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySLAExpired(ctx, vendorID, breach); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
