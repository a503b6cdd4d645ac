package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"loom/internal/shared/events"
)

type fakeStore struct {
	pending   []Message
	listErr   error
	published []string
	markErr   error
}

func (s *fakeStore) ListPendingOutbox(_ context.Context, limit int) ([]Message, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.published = append(s.published, outboxID)
	return nil
}

type fakePublisher struct {
	topics     []string
	publishErr error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _ events.Envelope) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.topics = append(p.topics, topic)
	return nil
}

func envelopePayload(t *testing.T, eventType string) []byte {
	t.Helper()
	payload, err := json.Marshal(events.Envelope{
		EventID:       "evt-1",
		EventType:     eventType,
		SourceService: "consensus-engine",
		GameID:        "game-1",
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

func TestRelayPublishesAndMarksPending(t *testing.T) {
	store := &fakeStore{pending: []Message{
		{ID: "out-1", EventType: "proposal.opened", Payload: envelopePayload(t, "proposal.opened"), Status: "pending"},
		{ID: "out-2", EventType: "proposal.resolved", Payload: envelopePayload(t, "proposal.resolved"), Status: "pending"},
	}}
	publisher := &fakePublisher{}

	relay := Relay{Store: store, Publisher: publisher, Service: "consensus-engine", BatchSize: 10}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if len(publisher.topics) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.topics))
	}
	if publisher.topics[0] != "proposal.opened" || publisher.topics[1] != "proposal.resolved" {
		t.Fatalf("unexpected topics: %v", publisher.topics)
	}
	if len(store.published) != 2 || store.published[0] != "out-1" || store.published[1] != "out-2" {
		t.Fatalf("unexpected marked rows: %v", store.published)
	}
}

func TestRelayFallsBackToRowEventType(t *testing.T) {
	store := &fakeStore{pending: []Message{
		{ID: "out-1", EventType: "beat.submitted", Payload: envelopePayload(t, ""), Status: "pending"},
	}}
	publisher := &fakePublisher{}

	relay := Relay{Store: store, Publisher: publisher, Service: "beat-service"}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if len(publisher.topics) != 1 || publisher.topics[0] != "beat.submitted" {
		t.Fatalf("expected fallback to row event type, got %v", publisher.topics)
	}
}

func TestRelayStopsOnPublishFailure(t *testing.T) {
	busDown := errors.New("bus unavailable")
	store := &fakeStore{pending: []Message{
		{ID: "out-1", EventType: "proposal.opened", Payload: envelopePayload(t, "proposal.opened"), Status: "pending"},
	}}
	publisher := &fakePublisher{publishErr: busDown}

	relay := Relay{Store: store, Publisher: publisher, Service: "consensus-engine"}
	if err := relay.RunOnce(context.Background()); !errors.Is(err, busDown) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(store.published) != 0 {
		t.Fatalf("failed publish must not mark rows, marked %v", store.published)
	}
}

func TestRelayRejectsMalformedPayload(t *testing.T) {
	store := &fakeStore{pending: []Message{
		{ID: "out-1", EventType: "proposal.opened", Payload: []byte("{not json"), Status: "pending"},
	}}
	publisher := &fakePublisher{}

	relay := Relay{Store: store, Publisher: publisher, Service: "consensus-engine"}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
	if len(publisher.topics) != 0 {
		t.Fatalf("malformed row must not publish, got %v", publisher.topics)
	}
}

func TestRelayEmptyOutboxIsQuiet(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}

	relay := Relay{Store: store, Publisher: publisher, Service: "game-service"}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(publisher.topics) != 0 {
		t.Fatalf("expected no publishes, got %v", publisher.topics)
	}
}
