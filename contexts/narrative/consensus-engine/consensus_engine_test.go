package consensusengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"loom/contexts/narrative/consensus-engine/application/commands"
	"loom/contexts/narrative/consensus-engine/application/workers"
	"loom/contexts/narrative/consensus-engine/domain/entities"
	domainerrors "loom/contexts/narrative/consensus-engine/domain/errors"
	"loom/contexts/narrative/consensus-engine/ports"
)

func newTestModule(t *testing.T, memberIDs []string) Module {
	t.Helper()
	module := NewInMemoryModule(nil)
	module.Store.SetMembers("game-1", memberIDs)
	module.Store.SetSettings("game-1", ports.ConsensusSettings{
		SilenceTimer:   24 * time.Hour,
		TieBreakPolicy: entities.TieBreakRandom,
	})
	module.Store.SetNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return module
}

func openBeatProposal(t *testing.T, module Module, proposer string) entities.Proposal {
	t.Helper()
	result, err := module.Proposals.Open(context.Background(), commands.OpenProposalCommand{
		GameID:      "game-1",
		Kind:        entities.KindBeatApproval,
		SubjectType: "beat",
		SubjectID:   "beat-1",
		ProposerID:  proposer,
	})
	if err != nil {
		t.Fatalf("open proposal failed: %v", err)
	}
	return result.Proposal
}

func TestProposerImplicitYesResolvesSoloGame(t *testing.T) {
	module := newTestModule(t, []string{"alice"})
	proposal := openBeatProposal(t, module, "alice")
	if proposal.Status != entities.ProposalStatusApproved {
		t.Fatalf("solo proposal status %s, want approved", proposal.Status)
	}
	if proposal.ResolutionCause != entities.CauseMajorityReached {
		t.Fatalf("cause %s, want majority_reached", proposal.ResolutionCause)
	}
}

func TestTwoPlayerGameNeedsBothYes(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob"})
	proposal := openBeatProposal(t, module, "alice")
	if !proposal.Open() {
		t.Fatalf("proposal resolved with one of two yes votes")
	}

	result, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceYes,
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if result.Proposal.Status != entities.ProposalStatusApproved {
		t.Fatalf("status %s after both yes, want approved", result.Proposal.Status)
	}
}

func TestThreePlayerMajorityApproves(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openBeatProposal(t, module, "alice")

	result, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceYes,
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if result.Proposal.Status != entities.ProposalStatusApproved {
		t.Fatalf("two of three yes should approve, got %s", result.Proposal.Status)
	}
	if result.Proposal.ResolutionCause != entities.CauseMajorityReached {
		t.Fatalf("cause %s, want majority_reached", result.Proposal.ResolutionCause)
	}
}

func TestEarlyRejectionWhenYesUnreachable(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openBeatProposal(t, module, "alice")

	// Two no votes out of three make the threshold of two unreachable.
	if _, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceNo,
	}); err != nil {
		t.Fatalf("first no failed: %v", err)
	}
	result, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "carol",
		Choice:     entities.ChoiceNo,
	})
	if err != nil {
		t.Fatalf("second no failed: %v", err)
	}
	if result.Proposal.Status != entities.ProposalStatusRejected {
		t.Fatalf("status %s, want rejected", result.Proposal.Status)
	}
	if result.Proposal.ResolutionCause != entities.CauseMajorityUnreachable {
		t.Fatalf("cause %s, want majority_unreachable", result.Proposal.ResolutionCause)
	}
}

func TestSilenceExpiryAutoApprovesOnRead(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openBeatProposal(t, module, "alice")

	module.Store.Advance(25 * time.Hour)
	resolved, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != entities.ProposalStatusApproved {
		t.Fatalf("status %s after silence window, want approved", resolved.Status)
	}
	if resolved.ResolutionCause != entities.CauseSilenceConsent {
		t.Fatalf("cause %s, want silence_consent", resolved.ResolutionCause)
	}

	found := false
	for _, eventType := range module.Store.OutboxEventTypes() {
		if eventType == "proposal.resolved" {
			found = true
		}
	}
	if !found {
		t.Fatalf("auto-approval emitted no proposal.resolved event")
	}
}

func TestResolutionIsIdempotent(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob"})
	proposal := openBeatProposal(t, module, "alice")
	module.Store.Advance(48 * time.Hour)

	first, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if first.Status != second.Status || first.ResolutionCause != second.ResolutionCause {
		t.Fatalf("repeated resolution diverged: %s/%s vs %s/%s",
			first.Status, first.ResolutionCause, second.Status, second.ResolutionCause)
	}
	resolvedEvents := 0
	for _, eventType := range module.Store.OutboxEventTypes() {
		if eventType == "proposal.resolved" {
			resolvedEvents++
		}
	}
	if resolvedEvents != 1 {
		t.Fatalf("resolution emitted %d proposal.resolved events, want 1", resolvedEvents)
	}
}

func TestVoteOnExpiredProposalResolvesFirst(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openBeatProposal(t, module, "alice")
	module.Store.Advance(25 * time.Hour)

	_, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceNo,
	})
	if !errors.Is(err, domainerrors.ErrProposalNotOpen) {
		t.Fatalf("got %v, want proposal not open", err)
	}
	resolved, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != entities.ProposalStatusApproved {
		t.Fatalf("expired proposal status %s, want approved", resolved.Status)
	}
}

func TestSuggestModificationRestartsSilenceWindow(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openBeatProposal(t, module, "alice")
	openedAt := proposal.OpenedAt

	module.Store.Advance(20 * time.Hour)
	result, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceSuggestModify,
	})
	if err != nil {
		t.Fatalf("suggest vote failed: %v", err)
	}
	if !result.Proposal.OpenedAt.After(openedAt) {
		t.Fatalf("opened_at not pushed forward by suggest_modification")
	}

	// The original deadline passes, but the reset keeps the proposal open.
	module.Store.Advance(5 * time.Hour)
	resolved, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !resolved.Open() {
		t.Fatalf("proposal resolved before the restarted window expired")
	}
}

func TestDuplicateOpenProposalRejected(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	openBeatProposal(t, module, "alice")

	_, err := module.Proposals.Open(context.Background(), commands.OpenProposalCommand{
		GameID:      "game-1",
		Kind:        entities.KindBeatApproval,
		SubjectType: "beat",
		SubjectID:   "beat-1",
		ProposerID:  "bob",
	})
	if !errors.Is(err, domainerrors.ErrOpenProposalExists) {
		t.Fatalf("got %v, want open proposal exists", err)
	}
}

func TestNonMemberCannotVote(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob"})
	proposal := openBeatProposal(t, module, "alice")

	_, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "mallory",
		Choice:     entities.ChoiceYes,
	})
	if !errors.Is(err, domainerrors.ErrNotGameMember) {
		t.Fatalf("got %v, want not a game member", err)
	}
}

func TestDeltaChoiceRejectedOnMajorityBallot(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob"})
	proposal := openBeatProposal(t, module, "alice")

	_, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceDeltaUp,
	})
	if !errors.Is(err, domainerrors.ErrInvalidChoice) {
		t.Fatalf("got %v, want invalid choice", err)
	}
}

func openTensionProposal(t *testing.T, module Module) entities.Proposal {
	t.Helper()
	result, err := module.Proposals.Open(context.Background(), commands.OpenProposalCommand{
		GameID:       "game-1",
		Kind:         entities.KindTensionAdjustment,
		SubjectType:  "scene",
		SubjectID:    "scene-1",
		ProposerID:   "alice",
		SystemOpened: true,
	})
	if err != nil {
		t.Fatalf("open tension proposal failed: %v", err)
	}
	return result.Proposal
}

func TestDeltaPluralityResolvesOnFullParticipation(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openTensionProposal(t, module)

	votes := map[string]entities.VoteChoice{
		"alice": entities.ChoiceDeltaUp,
		"bob":   entities.ChoiceDeltaUp,
		"carol": entities.ChoiceDeltaHold,
	}
	var last commands.CastVoteResult
	for voter, choice := range votes {
		result, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
			ProposalID: proposal.ProposalID,
			VoterID:    voter,
			Choice:     choice,
		})
		if err != nil {
			t.Fatalf("vote by %s failed: %v", voter, err)
		}
		last = result
	}
	if last.Proposal.Open() {
		t.Fatalf("delta ballot still open after full participation")
	}
	if last.Proposal.WinningDelta == nil || *last.Proposal.WinningDelta != 1 {
		t.Fatalf("winning delta %v, want +1", last.Proposal.WinningDelta)
	}
	if last.Proposal.ResolutionCause != entities.CauseFullParticipation {
		t.Fatalf("cause %s, want full_participation", last.Proposal.ResolutionCause)
	}
}

func TestDeltaTieProposerPolicy(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob"})
	module.Store.SetSettings("game-1", ports.ConsensusSettings{
		SilenceTimer:   24 * time.Hour,
		TieBreakPolicy: entities.TieBreakProposer,
	})
	proposal := openTensionProposal(t, module)

	if _, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "alice",
		Choice:     entities.ChoiceDeltaDown,
	}); err != nil {
		t.Fatalf("proposer vote failed: %v", err)
	}
	result, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceDeltaUp,
	})
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if result.Proposal.WinningDelta == nil || *result.Proposal.WinningDelta != -1 {
		t.Fatalf("winning delta %v, want proposer's -1", result.Proposal.WinningDelta)
	}
}

func TestDeltaZeroVotesFallsBackToSuggestion(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	module.Store.SetDeltaSuggestion(1, "rising stakes")
	proposal := openTensionProposal(t, module)

	module.Store.Advance(25 * time.Hour)
	resolved, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.WinningDelta == nil || *resolved.WinningDelta != 1 {
		t.Fatalf("winning delta %v, want suggested +1", resolved.WinningDelta)
	}
	if resolved.ResolutionCause != entities.CauseTimerExpired {
		t.Fatalf("cause %s, want timer_expired", resolved.ResolutionCause)
	}
}

func TestDeltaFallbackPrefersDeltaRecordedAtOpen(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	one := 1
	result, err := module.Proposals.Open(context.Background(), commands.OpenProposalCommand{
		GameID:         "game-1",
		Kind:           entities.KindTensionAdjustment,
		SubjectType:    "scene",
		SubjectID:      "scene-1",
		ProposerID:     "alice",
		SuggestedDelta: &one,
		SystemOpened:   true,
	})
	if err != nil {
		t.Fatalf("open tension proposal failed: %v", err)
	}
	if result.Proposal.SuggestedDelta == nil || *result.Proposal.SuggestedDelta != 1 {
		t.Fatalf("suggested delta %v not recorded on the proposal", result.Proposal.SuggestedDelta)
	}

	// The live suggestion drifts before resolution; the recorded one wins.
	module.Store.SetDeltaSuggestion(-1, "cooling off")
	resolved, err := module.Proposals.ForceResolve(context.Background(), result.Proposal.ProposalID)
	if err != nil {
		t.Fatalf("force resolve failed: %v", err)
	}
	if resolved.WinningDelta == nil || *resolved.WinningDelta != 1 {
		t.Fatalf("winning delta %v, want the +1 recorded at open", resolved.WinningDelta)
	}
}

func TestForceResolveSettlesDeltaBeforeDeadline(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openTensionProposal(t, module)

	if _, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceDeltaHold,
	}); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	resolved, err := module.Proposals.ForceResolve(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("force resolve failed: %v", err)
	}
	if resolved.Open() {
		t.Fatalf("force resolve left the proposal open")
	}
	if resolved.WinningDelta == nil || *resolved.WinningDelta != 0 {
		t.Fatalf("winning delta %v, want 0", resolved.WinningDelta)
	}
}

func TestOverdueSweeperResolvesExpiredProposals(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol"})
	proposal := openBeatProposal(t, module, "alice")
	module.Store.Advance(25 * time.Hour)

	sweeper := workers.OverdueSweeper{
		Proposals: module.Store,
		Resolver:  module.Proposals,
		Clock:     module.Store,
	}
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	resolved, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if resolved.Open() {
		t.Fatalf("sweeper left the expired proposal open")
	}
}

func TestEligibilityFollowsCurrentRoster(t *testing.T) {
	module := newTestModule(t, []string{"alice", "bob", "carol", "dave"})
	proposal := openBeatProposal(t, module, "alice")

	if _, err := module.Proposals.CastVote(context.Background(), commands.CastVoteCommand{
		ProposalID: proposal.ProposalID,
		VoterID:    "bob",
		Choice:     entities.ChoiceYes,
	}); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	// Two members leave; the threshold drops to two, which is already met.
	module.Store.SetMembers("game-1", []string{"alice", "bob"})
	resolved, err := module.Proposals.ResolveIfDue(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != entities.ProposalStatusApproved {
		t.Fatalf("status %s after roster shrink, want approved", resolved.Status)
	}
}
