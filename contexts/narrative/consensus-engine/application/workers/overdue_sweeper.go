package workers

import (
	"context"
	"log/slog"
	"time"

	application "loom/contexts/narrative/consensus-engine/application"
	"loom/contexts/narrative/consensus-engine/application/commands"
	"loom/contexts/narrative/consensus-engine/ports"
)

// OverdueSweeper resolves proposals whose silence timer expired while no
// request touched them. It exists to surface auto-approvals promptly as
// events; correctness never depends on it because every read and write path
// resolves due proposals itself.
type OverdueSweeper struct {
	Proposals ports.ProposalRepository
	Resolver  commands.ProposalUseCase
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce resolves one bounded batch of due proposals. Resolution is
// idempotent, so racing a concurrent API request is harmless.
func (s OverdueSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = 50
	}

	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	due, err := s.Proposals.ListDueOpenProposals(ctx, now, limit)
	if err != nil {
		logger.Error("overdue scan failed",
			"event", "consensus_overdue_scan_failed",
			"module", "narrative/consensus-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	resolvedCount := 0
	for _, proposal := range due {
		resolved, err := s.Resolver.ResolveIfDue(ctx, proposal.ProposalID)
		if err != nil {
			logger.Error("overdue resolution failed",
				"event", "consensus_overdue_resolution_failed",
				"module", "narrative/consensus-engine",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
				"error", err.Error(),
			)
			return err
		}
		if !resolved.Open() {
			resolvedCount++
		}
	}

	if resolvedCount > 0 {
		logger.Info("overdue sweep completed",
			"event", "consensus_overdue_sweep_completed",
			"module", "narrative/consensus-engine",
			"layer", "worker",
			"scanned", len(due),
			"resolved", resolvedCount,
		)
	}
	return nil
}
