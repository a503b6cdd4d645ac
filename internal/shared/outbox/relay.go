package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"loom/internal/shared/events"
)

// Store drains one service's outbox table.
type Store interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]Message, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// Publisher hands envelopes to the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, envelope events.Envelope) error
}

// Relay publishes persisted outbox records to the event bus. One relay
// instance runs per service outbox; Service names the source in logs.
type Relay struct {
	Store     Store
	Publisher Publisher
	Service   string
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending rows and marks each row
// published only after the bus accepts it. It stops on the first failure
// so the poll loop can reprocess remaining rows safely.
func (r Relay) RunOnce(ctx context.Context) error {
	logger := r.logger()
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Store.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list failed",
			"event", "outbox_list_failed",
			"module", "internal/shared/outbox",
			"layer", "worker",
			"service", r.Service,
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, row := range pending {
		var envelope events.Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			logger.Error("outbox decode failed",
				"event", "outbox_decode_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"service", r.Service,
				"outbox_id", row.ID,
				"error", err.Error(),
			)
			return err
		}
		topic := envelope.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "outbox_publish_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"service", r.Service,
				"outbox_id", row.ID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Store.MarkOutboxPublished(ctx, row.ID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "outbox_mark_published_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"service", r.Service,
				"outbox_id", row.ID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("outbox relay cycle completed",
		"event", "outbox_relay_completed",
		"module", "internal/shared/outbox",
		"layer", "worker",
		"service", r.Service,
		"published_count", len(pending),
	)
	return nil
}

func (r Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
