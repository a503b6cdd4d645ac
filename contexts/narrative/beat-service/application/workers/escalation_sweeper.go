package workers

import (
	"context"
	"log/slog"
	"time"

	application "loom/contexts/narrative/beat-service/application"
	"loom/contexts/narrative/beat-service/application/commands"
	"loom/contexts/narrative/beat-service/ports"
)

// EscalationSweeper opens challenge_resolution ballots for challenges that
// sat open past their game's silence window while nobody read the beat.
// Correctness never depends on it; reads escalate due challenges too.
type EscalationSweeper struct {
	Beats     ports.BeatRepository
	Escalator commands.BeatUseCase
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce escalates one bounded batch of due challenges. Escalation is
// idempotent, so racing a concurrent API request is harmless.
func (s EscalationSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = 50
	}

	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	due, err := s.Beats.ListDueOpenChallenges(ctx, now, limit)
	if err != nil {
		logger.Error("challenge scan failed",
			"event", "beat_challenge_scan_failed",
			"module", "narrative/beat-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	escalated := 0
	for _, challenge := range due {
		updated, err := s.Escalator.EscalateChallengeIfDue(ctx, challenge.ChallengeID)
		if err != nil {
			logger.Error("challenge escalation failed",
				"event", "beat_challenge_escalation_failed",
				"module", "narrative/beat-service",
				"layer", "worker",
				"challenge_id", challenge.ChallengeID,
				"error", err.Error(),
			)
			return err
		}
		if updated.EscalationProposalID != "" {
			escalated++
		}
	}

	if escalated > 0 {
		logger.Info("challenge sweep completed",
			"event", "beat_challenge_sweep_completed",
			"module", "narrative/beat-service",
			"layer", "worker",
			"scanned", len(due),
			"escalated", escalated,
		)
	}
	return nil
}
