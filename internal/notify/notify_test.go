package notify

import (
	"context"
	"testing"

	"github.com/JakeFAU/media-inliner/internal/notify/memory"
)

func TestNotifyPublishesCompletionWhenConfigured(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	n := New(pub, "media-inliner-jobs")

	err := n.Notify(context.Background(), Completion{JobID: "job-1", Fetched: 3, Rewritten: 2})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	msgs := pub.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(msgs))
	}
	if msgs[0].Topic != "media-inliner-jobs" {
		t.Fatalf("expected topic to pass through, got %q", msgs[0].Topic)
	}
	c, ok := msgs[0].Payload.(Completion)
	if !ok || c.JobID != "job-1" {
		t.Fatalf("expected completion payload round-trip, got %+v", msgs[0].Payload)
	}
}

func TestNotifyIsNoopWithoutPublisher(t *testing.T) {
	t.Parallel()

	n := New(nil, "")
	if err := n.Notify(context.Background(), Completion{JobID: "job-2"}); err != nil {
		t.Fatalf("expected no-op Notify to succeed, got error: %v", err)
	}
}
