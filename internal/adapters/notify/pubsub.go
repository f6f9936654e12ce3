package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/okian/xpand/internal/domain/model"
)

// Envelope kinds carried in the "kind" message attribute.
const (
	KindNewMatches = "new_matches"
	KindSLAExpired = "sla_expired"
)

// Envelope is the JSON payload published for a downstream mailer.
type Envelope struct {
	Kind      string               `json:"kind"`
	To        string               `json:"to,omitempty"`
	Subject   string               `json:"subject,omitempty"`
	Body      string               `json:"body,omitempty"`
	ProjectID int64                `json:"project_id,omitempty"`
	Country   string               `json:"country,omitempty"`
	Matches   []model.ScoredVendor `json:"matches,omitempty"`
	VendorID  int64                `json:"vendor_id,omitempty"`
	Breach    *model.SLABreach     `json:"breach,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// PubSubNotifier publishes envelopes to a Cloud Pub/Sub topic and waits for
// the server acknowledgement.
type PubSubNotifier struct {
	topic   *pubsub.Topic
	timeout time.Duration
	now     func() time.Time
}

// NewPubSubNotifier publishes to topicID on client.
func NewPubSubNotifier(client *pubsub.Client, topicID string) *PubSubNotifier {
	return &PubSubNotifier{
		topic:   client.Topic(topicID),
		timeout: 10 * time.Second,
		now:     time.Now,
	}
}

// NotifyNewMatches implements Notifier.
func (n *PubSubNotifier) NotifyNewMatches(ctx context.Context, email string, project model.Project, matches []model.ScoredVendor) error {
	if email == "" {
		return fmt.Errorf("%w: project %d", ErrNoRecipient, project.ID)
	}
	return n.publish(ctx, Envelope{
		Kind:      KindNewMatches,
		To:        email,
		Subject:   NewMatchesSubject,
		Body:      RenderNewMatches(project, matches),
		ProjectID: project.ID,
		Country:   project.Country,
		Matches:   matches,
	})
}

// NotifySLAExpired implements Notifier.
func (n *PubSubNotifier) NotifySLAExpired(ctx context.Context, vendorID int64, breach model.SLABreach) error {
	return n.publish(ctx, Envelope{
		Kind:      KindSLAExpired,
		ProjectID: breach.ProjectID,
		VendorID:  vendorID,
		Breach:    &breach,
	})
}

func (n *PubSubNotifier) publish(ctx context.Context, env Envelope) error {
	env.CreatedAt = n.now().UTC()
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	res := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":       env.Kind,
			"project_id": strconv.FormatInt(env.ProjectID, 10),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", env.Kind, err)
	}
	return nil
}

// Stop flushes pending messages and stops the topic's publish goroutines.
func (n *PubSubNotifier) Stop() {
	n.topic.Stop()
}
