package notify

import (
	"context"
	"fmt"

	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
)

// LogNotifier writes notifications to the service log. It stands in for a
// mail gateway in local runs and keeps an audit line next to other channels.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a notifier writing to log.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.GetOrNop()
	}
	return &LogNotifier{log: log.Named("notify")}
}

// NotifyNewMatches implements Notifier.
func (n *LogNotifier) NotifyNewMatches(ctx context.Context, email string, project model.Project, matches []model.ScoredVendor) error {
	if email == "" {
		return fmt.Errorf("%w: project %d", ErrNoRecipient, project.ID)
	}
	n.log.Info(ctx, "sending new matches email",
		logger.String("to", email),
		logger.Int64("project_id", project.ID),
		logger.Int("matches", len(matches)))
	n.log.Debug(ctx, "email content",
		logger.String("subject", NewMatchesSubject),
		logger.String("body", RenderNewMatches(project, matches)))
	return nil
}

// NotifySLAExpired implements Notifier.
func (n *LogNotifier) NotifySLAExpired(ctx context.Context, vendorID int64, breach model.SLABreach) error {
	n.log.Warn(ctx, "vendor sla expired",
		logger.Int64("vendor_id", vendorID),
		logger.Int64("match_id", breach.MatchID),
		logger.Int64("project_id", breach.ProjectID),
		logger.Int("response_sla_hours", breach.ResponseSLAHours),
		logger.Float64("hours_elapsed", breach.HoursElapsed))
	return nil
}
