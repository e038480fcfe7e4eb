// Package pubsub implements notify.Publisher over Google Cloud Pub/Sub,
// grounded on the teacher's internal/publisher/pubsub.Publisher, adapted to
// the v1 Topic API (this module does not carry the teacher's OpenTelemetry
// tracing stack; see DESIGN.md).
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Publisher wraps a Pub/Sub topic handle.
type Publisher struct {
	topic *pubsub.Topic
}

// New builds a Publisher over an already-resolved topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals payload to JSON and publishes it, ignoring the topic
// argument (the Publisher is already bound to one topic at construction,
// matching the teacher's one-topic-per-publisher shape).
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}
