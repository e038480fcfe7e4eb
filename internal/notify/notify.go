// Package notify implements the best-effort job-completion event (§10.6):
// when configured, StartMediaInliner publishes one message carrying job id,
// reference counts, and duration on successful drain. Grounded in the
// teacher's internal/publisher Publish(ctx, topic, payload) interface.
package notify

import (
	"context"
	"time"
)

// Publisher is the shape the teacher's pubsub and memory publishers both
// satisfy.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Completion is the payload published on successful drain.
type Completion struct {
	JobID     string        `json:"job_id"`
	Fetched   int           `json:"fetched"`
	Cached    int           `json:"cached"`
	Failed    int           `json:"failed"`
	Rewritten int           `json:"rewritten"`
	Duration  time.Duration `json:"duration_ns"`
}

// Notifier publishes Completion events to a configured topic. The zero
// value (nil Publisher) is the default opt-out no-op.
type Notifier struct {
	publisher Publisher
	topic     string
}

// New builds a Notifier. A nil publisher makes every Notify call a no-op,
// matching §10.6's "opt-in" default.
func New(publisher Publisher, topic string) *Notifier {
	return &Notifier{publisher: publisher, topic: topic}
}

// Notify publishes c to the configured topic, returning any publish error
// to the caller so it can be logged; a nil publisher returns nil
// immediately.
func (n *Notifier) Notify(ctx context.Context, c Completion) error {
	if n == nil || n.publisher == nil {
		return nil
	}
	_, err := n.publisher.Publish(ctx, n.topic, c)
	return err
}
