package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "loom/contexts/narrative/consensus-engine/application"
	"loom/contexts/narrative/consensus-engine/domain/entities"
	domainerrors "loom/contexts/narrative/consensus-engine/domain/errors"
	"loom/contexts/narrative/consensus-engine/ports"
)

// OpenProposalCommand opens a group decision on a subject.
type OpenProposalCommand struct {
	GameID      string
	Kind        entities.ProposalKind
	SubjectType string
	SubjectID   string
	ProposerID  string
	AIRationale string
	// SuggestedDelta carries the AI suggestion for delta ballots. It is
	// recorded on the proposal so resolution falls back to the value the
	// table saw when the ballot opened.
	SuggestedDelta *int
	// SystemOpened marks proposals the engine opens on behalf of a
	// lifecycle event (tension adjustments, challenge escalations). These
	// skip the proposer's implicit ballot and the membership check on the
	// proposer.
	SystemOpened bool
}

type OpenProposalResult struct {
	Proposal entities.Proposal
	// Resolved is set when the proposal reached a terminal status inside
	// the opening transaction, e.g. a solo game where the implicit yes
	// already meets the threshold.
	Resolved bool
}

// CastVoteCommand records or overwrites one member's choice.
type CastVoteCommand struct {
	ProposalID string
	VoterID    string
	Choice     entities.VoteChoice
}

type CastVoteResult struct {
	Vote     entities.Vote
	Proposal entities.Proposal
}

// ProposalUseCase orchestrates the proposal lifecycle: open with implicit
// consent, vote upserts, lazy silence-timer resolution, and tie-broken
// plurality for delta ballots.
type ProposalUseCase struct {
	Proposals  ports.ProposalRepository
	Membership ports.MembershipSource
	Settings   ports.GameSettingsSource
	Suggester  ports.DeltaSuggester
	Outbox     ports.OutboxWriter
	Tx         ports.TxRunner
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

// Open creates a proposal, records the proposer's implicit yes on majority
// ballots, and evaluates immediately so solo games resolve in the same
// call. At most one open proposal may exist per (kind, subject).
func (uc ProposalUseCase) Open(ctx context.Context, cmd OpenProposalCommand) (OpenProposalResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.GameID) == "" ||
		strings.TrimSpace(cmd.SubjectID) == "" ||
		strings.TrimSpace(cmd.ProposerID) == "" ||
		!cmd.Kind.Valid() {
		logger.Warn("proposal open validation failed",
			"event", "consensus_proposal_open_validation_failed",
			"module", "narrative/consensus-engine",
			"layer", "application",
			"game_id", strings.TrimSpace(cmd.GameID),
			"kind", string(cmd.Kind),
			"subject_id", strings.TrimSpace(cmd.SubjectID),
		)
		return OpenProposalResult{}, domainerrors.ErrInvalidProposalInput
	}

	if !cmd.SystemOpened {
		member, err := uc.Membership.IsActiveMember(ctx, cmd.GameID, cmd.ProposerID)
		if err != nil {
			return OpenProposalResult{}, err
		}
		if !member {
			return OpenProposalResult{}, domainerrors.ErrNotGameMember
		}
	}

	if _, exists, err := uc.Proposals.GetOpenProposalBySubject(ctx, cmd.Kind, cmd.SubjectID); err != nil {
		return OpenProposalResult{}, err
	} else if exists {
		return OpenProposalResult{}, domainerrors.ErrOpenProposalExists
	}

	settings, err := uc.Settings.GetConsensusSettings(ctx, cmd.GameID)
	if err != nil {
		return OpenProposalResult{}, err
	}

	now := uc.now()
	proposalID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return OpenProposalResult{}, err
	}
	proposal := entities.Proposal{
		ProposalID:   proposalID,
		GameID:       strings.TrimSpace(cmd.GameID),
		Kind:         cmd.Kind,
		Status:       entities.ProposalStatusOpen,
		ProposerID:   strings.TrimSpace(cmd.ProposerID),
		SubjectType:  strings.TrimSpace(cmd.SubjectType),
		SubjectID:    strings.TrimSpace(cmd.SubjectID),
		OpenedAt:     now,
		SilenceTimer: settings.SilenceTimer,
		AIRationale:  strings.TrimSpace(cmd.AIRationale),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cmd.SuggestedDelta != nil && cmd.Kind.Ballot() == entities.BallotDelta {
		suggested := clampDelta(*cmd.SuggestedDelta)
		proposal.SuggestedDelta = &suggested
	}
	// Proposal, implicit vote and outbox rows commit together; a failure
	// in any of them rolls the open back as a unit.
	var resolved bool
	txErr := uc.inTx(ctx, func(ctx context.Context) error {
		if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
			// A racing open on the same subject loses on the partial unique
			// index and surfaces as the same benign conflict.
			if errors.Is(err, domainerrors.ErrConflict) {
				return domainerrors.ErrOpenProposalExists
			}
			return err
		}

		if !cmd.SystemOpened && cmd.Kind.Ballot() == entities.BallotMajority {
			voteID, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			implicit := entities.Vote{
				VoteID:     voteID,
				ProposalID: proposal.ProposalID,
				VoterID:    proposal.ProposerID,
				Choice:     entities.ChoiceYes,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := uc.Proposals.SaveVote(ctx, implicit); err != nil {
				return err
			}
		}

		if err := uc.appendProposalEvent(ctx, "proposal.opened", proposal, now, map[string]any{
			"deadline_at": proposal.Deadline().Format(time.RFC3339),
		}); err != nil {
			return err
		}
		if err := uc.appendProposalEvent(ctx, "vote.required", proposal, now, nil); err != nil {
			return err
		}

		var err error
		var resolvedProposal entities.Proposal
		resolved, resolvedProposal, err = uc.evaluate(ctx, proposal, false)
		if err != nil {
			return err
		}
		if resolved {
			proposal = resolvedProposal
		}
		return nil
	})
	if txErr != nil {
		return OpenProposalResult{}, txErr
	}

	logger.Info("proposal opened",
		"event", "consensus_proposal_opened",
		"module", "narrative/consensus-engine",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"game_id", proposal.GameID,
		"kind", string(proposal.Kind),
		"subject_id", proposal.SubjectID,
	)
	return OpenProposalResult{Proposal: proposal, Resolved: resolved}, nil
}

// CastVote upserts a member's choice and re-evaluates the proposal. A vote
// against an expired proposal first resolves it and then fails with
// ErrProposalNotOpen. Suggest-modification restarts the silence window.
func (uc ProposalUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ProposalID) == "" || strings.TrimSpace(cmd.VoterID) == "" {
		return CastVoteResult{}, domainerrors.ErrInvalidProposalInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, cmd.ProposalID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !proposal.Open() {
		return CastVoteResult{}, domainerrors.ErrProposalNotOpen
	}

	now := uc.now()
	if proposal.Due(now) {
		if _, _, err := uc.evaluate(ctx, proposal, false); err != nil {
			return CastVoteResult{}, err
		}
		return CastVoteResult{}, domainerrors.ErrProposalNotOpen
	}

	if !cmd.Choice.ValidFor(proposal.Kind) {
		logger.Warn("vote choice rejected",
			"event", "consensus_vote_choice_rejected",
			"module", "narrative/consensus-engine",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"voter_id", strings.TrimSpace(cmd.VoterID),
			"choice", string(cmd.Choice),
		)
		return CastVoteResult{}, domainerrors.ErrInvalidChoice
	}

	member, err := uc.Membership.IsActiveMember(ctx, proposal.GameID, cmd.VoterID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !member {
		return CastVoteResult{}, domainerrors.ErrNotGameMember
	}

	// Vote upsert, window restart and outbox rows commit together, with
	// the re-evaluation reading counts inside the same transaction.
	var vote entities.Vote
	txErr := uc.inTx(ctx, func(ctx context.Context) error {
		var found bool
		var err error
		vote, found, err = uc.Proposals.GetVoteByIdentity(ctx, proposal.ProposalID, cmd.VoterID)
		if err != nil {
			return err
		}
		if found {
			vote.Choice = cmd.Choice
			vote.UpdatedAt = now
		} else {
			voteID, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			vote = entities.Vote{
				VoteID:     voteID,
				ProposalID: proposal.ProposalID,
				VoterID:    strings.TrimSpace(cmd.VoterID),
				Choice:     cmd.Choice,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
		}
		if err := uc.Proposals.SaveVote(ctx, vote); err != nil {
			// A concurrent insert for the same (proposal, voter) pair loses
			// on the unique index and surfaces as the benign conflict
			// sentinel.
			return err
		}

		if cmd.Choice == entities.ChoiceSuggestModify {
			proposal.OpenedAt = now
			proposal.UpdatedAt = now
			if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
				return err
			}
			logger.Info("silence window restarted",
				"event", "consensus_silence_window_restarted",
				"module", "narrative/consensus-engine",
				"layer", "application",
				"proposal_id", proposal.ProposalID,
				"voter_id", vote.VoterID,
			)
		}

		if err := uc.appendProposalEvent(ctx, "vote.cast", proposal, now, map[string]any{
			"voter_id": vote.VoterID,
			"choice":   string(vote.Choice),
		}); err != nil {
			return err
		}

		resolved, resolvedProposal, err := uc.evaluate(ctx, proposal, false)
		if err != nil {
			return err
		}
		if resolved {
			proposal = resolvedProposal
		}
		return nil
	})
	if txErr != nil {
		return CastVoteResult{}, txErr
	}

	logger.Info("vote cast",
		"event", "consensus_vote_cast",
		"module", "narrative/consensus-engine",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"voter_id", vote.VoterID,
		"choice", string(vote.Choice),
	)
	return CastVoteResult{Vote: vote, Proposal: proposal}, nil
}

// ResolveIfDue applies the timer rules to one proposal. It is idempotent:
// terminal proposals are returned unchanged and concurrent resolvers agree
// on the outcome because evaluation is deterministic.
func (uc ProposalUseCase) ResolveIfDue(ctx context.Context, proposalID string) (entities.Proposal, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	if !proposal.Open() {
		return proposal, nil
	}
	resolved, resolvedProposal, err := uc.evaluate(ctx, proposal, false)
	if err != nil {
		return entities.Proposal{}, err
	}
	if resolved {
		return resolvedProposal, nil
	}
	return proposal, nil
}

// ForceResolve settles a proposal from the current tally regardless of the
// timer. Delta ballots settle on plurality plus tie-break; majority
// ballots settle as if the deadline had passed.
func (uc ProposalUseCase) ForceResolve(ctx context.Context, proposalID string) (entities.Proposal, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	if !proposal.Open() {
		return proposal, nil
	}
	resolved, resolvedProposal, err := uc.evaluate(ctx, proposal, true)
	if err != nil {
		return entities.Proposal{}, err
	}
	if resolved {
		return resolvedProposal, nil
	}
	return proposal, nil
}

// evaluate runs the deterministic resolution rules against the current
// tally and persists a terminal status when one is reached.
func (uc ProposalUseCase) evaluate(ctx context.Context, proposal entities.Proposal, force bool) (bool, entities.Proposal, error) {
	now := uc.now()
	if force && proposal.Kind.Ballot() == entities.BallotMajority {
		// Treat a forced majority resolution as an expired timer.
		now = proposal.Deadline()
	}

	votes, err := uc.Proposals.ListVotesByProposal(ctx, proposal.ProposalID)
	if err != nil {
		return false, entities.Proposal{}, err
	}
	eligibleIDs, err := uc.Membership.ListActiveMemberIDs(ctx, proposal.GameID)
	if err != nil {
		return false, entities.Proposal{}, err
	}
	tally := entities.NewTally(votes, eligibleIDs)

	switch proposal.Kind.Ballot() {
	case entities.BallotDelta:
		outcome := tally.EvaluateDelta(now, proposal.Deadline(), force)
		if !outcome.Resolved {
			return false, entities.Proposal{}, nil
		}
		winner := uc.resolveDeltaWinner(ctx, proposal, votes, outcome.Leaders)
		return uc.finalize(ctx, proposal, entities.ProposalStatusApproved, outcome.Cause, &winner, tally)
	default:
		outcome := tally.EvaluateMajority(now, proposal.Deadline())
		if !outcome.Resolved {
			return false, entities.Proposal{}, nil
		}
		return uc.finalize(ctx, proposal, outcome.Status, outcome.Cause, nil, tally)
	}
}

func (uc ProposalUseCase) resolveDeltaWinner(
	ctx context.Context,
	proposal entities.Proposal,
	votes []entities.Vote,
	leaders []int,
) int {
	logger := application.ResolveLogger(uc.Logger)

	var proposerDelta *int
	for _, vote := range votes {
		if vote.VoterID != proposal.ProposerID {
			continue
		}
		if delta, ok := vote.Choice.Delta(); ok {
			proposerDelta = &delta
		}
	}

	policy := entities.TieBreakRandom
	if settings, err := uc.Settings.GetConsensusSettings(ctx, proposal.GameID); err == nil {
		policy = settings.TieBreakPolicy
	}

	if winner, ok := entities.BreakDeltaTie(policy, leaders, proposerDelta, proposal.ProposalID); ok {
		return winner
	}

	// No votes, or the proposer policy could not break the tie: fall back
	// to the suggestion recorded when the ballot opened, snapped onto the
	// tied set when one exists. A fresh suggester call is the last resort
	// for proposals opened without one.
	suggested := 0
	switch {
	case proposal.SuggestedDelta != nil:
		suggested = *proposal.SuggestedDelta
	case uc.Suggester != nil:
		suggested, _ = uc.Suggester.SuggestDelta(ctx, proposal.GameID, proposal.SubjectID)
	}
	winner := entities.ClosestDelta(leaders, clampDelta(suggested))
	logger.Info("delta tie broken by suggestion",
		"event", "consensus_delta_ai_fallback",
		"module", "narrative/consensus-engine",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"suggested_delta", suggested,
		"winning_delta", winner,
	)
	return winner
}

func (uc ProposalUseCase) finalize(
	ctx context.Context,
	proposal entities.Proposal,
	status entities.ProposalStatus,
	cause string,
	winningDelta *int,
	tally entities.Tally,
) (bool, entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	proposal.Status = status
	proposal.ResolutionCause = cause
	proposal.ResolvedAt = &now
	proposal.WinningDelta = winningDelta
	proposal.UpdatedAt = now
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return false, entities.Proposal{}, err
	}

	data := map[string]any{
		"cause":     cause,
		"yes":       tally.Yes,
		"no":        tally.No,
		"suggest":   tally.Suggest,
		"eligible":  tally.Eligible,
		"threshold": tally.Threshold(),
	}
	if winningDelta != nil {
		data["winning_delta"] = *winningDelta
	}
	if err := uc.appendProposalEvent(ctx, "proposal.resolved", proposal, now, data); err != nil {
		return false, entities.Proposal{}, err
	}

	logger.Info("proposal resolved",
		"event", "consensus_proposal_resolved",
		"module", "narrative/consensus-engine",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"game_id", proposal.GameID,
		"kind", string(proposal.Kind),
		"status", string(proposal.Status),
		"cause", cause,
	)
	return true, proposal, nil
}

func (uc ProposalUseCase) appendProposalEvent(
	ctx context.Context,
	eventType string,
	proposal entities.Proposal,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, newProposalEnvelope(eventID, eventType, proposal, occurredAt, data))
}

// inTx runs fn in one store transaction when a runner is wired and
// directly otherwise.
func (uc ProposalUseCase) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if uc.Tx == nil {
		return fn(ctx)
	}
	return uc.Tx.WithinTx(ctx, fn)
}

func (uc ProposalUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func clampDelta(delta int) int {
	if delta < -1 {
		return -1
	}
	if delta > 1 {
		return 1
	}
	return delta
}
