package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "loom/contexts/narrative/beat-service/application"
	"loom/contexts/narrative/beat-service/application/commands"
	"loom/internal/shared/events"
)

type resolvedPayload struct {
	Kind        string `json:"kind"`
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	Status      string `json:"status"`
}

// ResolvedConsumer reacts to proposal.resolved events from the consensus
// engine and folds beat_approval and challenge_resolution outcomes into
// beats promptly, rather than waiting for the next read.
type ResolvedConsumer struct {
	Beats  commands.BeatUseCase
	Logger *slog.Logger
}

// Handle processes one proposal.resolved envelope. Unrelated kinds are
// skipped; reconciliation is idempotent so redelivery is harmless.
func (c ResolvedConsumer) Handle(ctx context.Context, envelope events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	raw, err := json.Marshal(envelope.Payload)
	if err != nil {
		return err
	}
	var payload resolvedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}

	var beatID string
	switch payload.Kind {
	case "beat_approval":
		beatID = payload.SubjectID
	case "challenge_resolution":
		challenge, err := c.Beats.Beats.GetChallenge(ctx, payload.SubjectID)
		if err != nil {
			return err
		}
		beatID = challenge.BeatID
	default:
		return nil
	}

	beat, err := c.Beats.ReconcileBeat(ctx, beatID)
	if err != nil {
		logger.Error("resolved event reconciliation failed",
			"event", "beat_resolved_consume_failed",
			"module", "narrative/beat-service",
			"layer", "worker",
			"beat_id", beatID,
			"kind", payload.Kind,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("resolved event applied",
		"event", "beat_resolved_consumed",
		"module", "narrative/beat-service",
		"layer", "worker",
		"beat_id", beat.BeatID,
		"kind", payload.Kind,
		"status", string(beat.Status),
	)
	return nil
}
