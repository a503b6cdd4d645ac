package beatservice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loom/contexts/narrative/beat-service/application/commands"
	"loom/contexts/narrative/beat-service/application/workers"
	"loom/contexts/narrative/beat-service/domain/entities"
	domainerrors "loom/contexts/narrative/beat-service/domain/errors"
	"loom/contexts/narrative/beat-service/ports"
)

func newTestModule() Module {
	module := NewInMemoryModule(nil)
	module.Store.SetNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	module.Store.SetSceneInfo("scene-1", ports.SceneInfo{GameID: "game-1", Status: "active", Tension: 5})
	module.Store.SetGameInfo("game-1", ports.GameInfo{
		Status:                "active",
		SignificanceThreshold: "flag_obvious",
		SilenceTimer:          12 * time.Hour,
	})
	return module
}

func majorPtr() *entities.BeatSignificance {
	major := entities.SignificanceMajor
	return &major
}

func narrativeEvents(text string) []commands.EventInput {
	return []commands.EventInput{{Type: entities.EventNarrative, Text: text}}
}

func submitBeat(t *testing.T, module Module, override *entities.BeatSignificance, events []commands.EventInput) entities.Beat {
	t.Helper()
	beat, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:              "scene-1",
		AuthorID:             "alice",
		SignificanceOverride: override,
		Events:               events,
	})
	if err != nil {
		t.Fatalf("submit beat failed: %v", err)
	}
	return beat
}

// canonBeat submits a major beat and approves its ballot.
func canonBeat(t *testing.T, module Module) entities.Beat {
	t.Helper()
	beat := submitBeat(t, module, majorPtr(), narrativeEvents("The gate gives way."))
	module.Store.SetProposalOutcome("beat_approval", beat.BeatID, ports.ProposalOutcome{
		ProposalID: "p-beat", Status: "approved", Resolved: true,
	})
	beat, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if beat.Status != entities.BeatStatusCanon {
		t.Fatalf("beat status %s after approval, want canon", beat.Status)
	}
	return beat
}

func TestMinorBeatIsCanonImmediately(t *testing.T) {
	module := newTestModule()
	beat := submitBeat(t, module, nil, narrativeEvents("Rain on the canal."))
	if beat.Significance != entities.SignificanceMinor {
		t.Fatalf("significance %s with default classifier, want minor", beat.Significance)
	}
	if beat.Status != entities.BeatStatusCanon {
		t.Fatalf("minor beat status %s, want canon", beat.Status)
	}
	if _, found, _ := module.Store.ResolvedOutcome(context.Background(), "beat_approval", beat.BeatID); found {
		t.Fatalf("minor beat opened an approval ballot")
	}
}

func TestMajorBeatWaitsOnApproval(t *testing.T) {
	module := newTestModule()
	beat := submitBeat(t, module, majorPtr(), narrativeEvents("The gate gives way."))
	if beat.Status != entities.BeatStatusProposed {
		t.Fatalf("major beat status %s with open ballot, want proposed", beat.Status)
	}

	module.Store.SetProposalOutcome("beat_approval", beat.BeatID, ports.ProposalOutcome{
		ProposalID: "p-1", Status: "approved", Resolved: true,
	})
	beat, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if beat.Status != entities.BeatStatusCanon {
		t.Fatalf("beat status %s after approval, want canon", beat.Status)
	}
}

func TestRejectedApprovalMarksBeatRejected(t *testing.T) {
	module := newTestModule()
	beat := submitBeat(t, module, majorPtr(), narrativeEvents("A dubious claim."))
	module.Store.SetProposalOutcome("beat_approval", beat.BeatID, ports.ProposalOutcome{
		ProposalID: "p-1", Status: "rejected", Resolved: true,
	})
	beat, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if beat.Status != entities.BeatStatusRejected {
		t.Fatalf("beat status %s after rejection, want rejected", beat.Status)
	}
}

func TestClassifierSuggestionDrivesSignificance(t *testing.T) {
	module := newTestModule()
	module.Store.SetSignificance("major", "a named character dies")
	beat := submitBeat(t, module, nil, narrativeEvents("Odel drowns."))
	if beat.Significance != entities.SignificanceMajor {
		t.Fatalf("significance %s with major suggestion, want major", beat.Significance)
	}
	if beat.Status != entities.BeatStatusProposed {
		t.Fatalf("AI-major beat status %s, want proposed", beat.Status)
	}
}

func TestExceptionalFortuneForcesMajor(t *testing.T) {
	module := newTestModule()
	module.Store.SetFortuneOutcome("exceptional_yes")
	beat := submitBeat(t, module, nil, []commands.EventInput{
		{Type: entities.EventNarrative, Text: "She asks the river for passage."},
		{Type: entities.EventFortuneRoll, Odds: "unlikely"},
	})
	if beat.Significance != entities.SignificanceMajor {
		t.Fatalf("significance %s after exceptional outcome, want major", beat.Significance)
	}
	if beat.Status != entities.BeatStatusProposed {
		t.Fatalf("forced-major beat status %s, want proposed", beat.Status)
	}
	if beat.Events[1].Outcome != "exceptional_yes" {
		t.Fatalf("fortune event outcome %q, want exceptional_yes", beat.Events[1].Outcome)
	}
}

func TestRollEventsAreResolvedAtSubmit(t *testing.T) {
	module := newTestModule()
	module.Store.SetDiceTotal(11)
	beat := submitBeat(t, module, nil, []commands.EventInput{
		{Type: entities.EventNarrative, Text: "He throws the bones."},
		{Type: entities.EventRoll, Notation: "2d6"},
	})
	if beat.Events[1].Total != 11 {
		t.Fatalf("roll total %d, want server-side 11", beat.Events[1].Total)
	}
	if beat.Events[1].Notation != "2d6" {
		t.Fatalf("roll notation %q, want 2d6", beat.Events[1].Notation)
	}
}

func TestSubmitRequiresActiveScene(t *testing.T) {
	module := newTestModule()
	module.Store.SetSceneInfo("scene-2", ports.SceneInfo{GameID: "game-1", Status: "complete", Tension: 5})
	_, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:  "scene-2",
		AuthorID: "alice",
		Events:   narrativeEvents("Too late."),
	})
	if !errors.Is(err, domainerrors.ErrSceneNotActive) {
		t.Fatalf("submit to complete scene got %v, want scene not active", err)
	}
}

func TestSubmitRequiresMembership(t *testing.T) {
	module := newTestModule()
	module.Store.SetMembers("game-1", "alice")
	_, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:  "scene-1",
		AuthorID: "mallory",
		Events:   narrativeEvents("An outsider writes."),
	})
	if !errors.Is(err, domainerrors.ErrNotGameMember) {
		t.Fatalf("non-member submission got %v, want not game member", err)
	}
}

func TestSubmitRejectsOversizedProse(t *testing.T) {
	module := newTestModule()
	oversized := strings.Repeat("a", entities.MaxProseLength+1)
	_, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:  "scene-1",
		AuthorID: "alice",
		Events:   narrativeEvents(oversized),
	})
	if !errors.Is(err, domainerrors.ErrInvalidBeatInput) {
		t.Fatalf("oversized narrative got %v, want invalid beat input", err)
	}

	// Exactly at the cap is fine.
	beat := submitBeat(t, module, nil, narrativeEvents(strings.Repeat("a", entities.MaxProseLength)))
	if beat.Status != entities.BeatStatusCanon {
		t.Fatalf("cap-length beat status %s, want canon", beat.Status)
	}
}

func TestFileChallengeMovesBeatToChallenged(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)

	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}
	if challenge.Status != entities.ChallengeStatusOpen {
		t.Fatalf("challenge status %s, want open", challenge.Status)
	}

	beat, err = module.Queries.GetBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("get beat failed: %v", err)
	}
	if beat.Status != entities.BeatStatusChallenged {
		t.Fatalf("beat status %s after challenge, want challenged", beat.Status)
	}

	// Only one open challenge per beat.
	_, err = module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "carol",
		Reason:       "me too",
	})
	if !errors.Is(err, domainerrors.ErrBeatNotCanon) {
		t.Fatalf("second challenge got %v, want beat not canon", err)
	}
}

func TestDismissChallengeIsAuthorOnly(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}

	if _, err := module.Beats.DismissChallenge(context.Background(), challenge.ChallengeID, "bob"); !errors.Is(err, domainerrors.ErrNotBeatAuthor) {
		t.Fatalf("challenger dismissal got %v, want not beat author", err)
	}

	dismissed, err := module.Beats.DismissChallenge(context.Background(), challenge.ChallengeID, "alice")
	if err != nil {
		t.Fatalf("author dismissal failed: %v", err)
	}
	if dismissed.Status != entities.ChallengeStatusDismissed {
		t.Fatalf("challenge status %s, want dismissed", dismissed.Status)
	}
	beat, err = module.Queries.GetBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("get beat failed: %v", err)
	}
	if beat.Status != entities.BeatStatusCanon {
		t.Fatalf("beat status %s after dismissal, want canon", beat.Status)
	}
}

func TestAcceptChallengeCreatesForcedMajorRevision(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}

	revision, err := module.Beats.AcceptChallenge(context.Background(), commands.AcceptChallengeCommand{
		ChallengeID:   challenge.ChallengeID,
		ActorID:       "alice",
		RevisedEvents: narrativeEvents("The gate holds, but the hinge screams."),
	})
	if err != nil {
		t.Fatalf("accept challenge failed: %v", err)
	}
	if revision.Significance != entities.SignificanceMajor {
		t.Fatalf("revision significance %s, want forced major", revision.Significance)
	}
	if revision.Status != entities.BeatStatusProposed {
		t.Fatalf("revision status %s, want proposed", revision.Status)
	}
	if revision.RevisesBeatID != beat.BeatID || revision.Version != beat.Version+1 {
		t.Fatalf("revision lineage %q v%d, want %q v%d",
			revision.RevisesBeatID, revision.Version, beat.BeatID, beat.Version+1)
	}

	original, err := module.Queries.GetBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("get beat failed: %v", err)
	}
	if original.Status != entities.BeatStatusRevised {
		t.Fatalf("original beat status %s, want revised", original.Status)
	}
}

func TestChallengeEscalatesAfterSilenceWindow(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}

	// Inside the window nothing escalates.
	if _, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	current, err := module.Queries.GetChallenge(context.Background(), challenge.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge failed: %v", err)
	}
	if current.EscalationProposalID != "" {
		t.Fatalf("challenge escalated before the silence window")
	}

	module.Store.Advance(13 * time.Hour)
	if _, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	current, err = module.Queries.GetChallenge(context.Background(), challenge.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge failed: %v", err)
	}
	if current.EscalationProposalID == "" {
		t.Fatalf("overdue challenge did not escalate")
	}

	// Approved resolution: the beat stands, challenge dismissed.
	module.Store.SetProposalOutcome("challenge_resolution", challenge.ChallengeID, ports.ProposalOutcome{
		ProposalID: current.EscalationProposalID, Status: "approved", Resolved: true,
	})
	beat, err = module.Beats.ReconcileBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if beat.Status != entities.BeatStatusCanon {
		t.Fatalf("beat status %s after approved resolution, want canon", beat.Status)
	}
	current, err = module.Queries.GetChallenge(context.Background(), challenge.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge failed: %v", err)
	}
	if current.Status != entities.ChallengeStatusDismissed {
		t.Fatalf("challenge status %s, want dismissed", current.Status)
	}
}

func TestRejectedResolutionAcceptsChallenge(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}
	module.Store.Advance(13 * time.Hour)
	if _, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	module.Store.SetProposalOutcome("challenge_resolution", challenge.ChallengeID, ports.ProposalOutcome{
		ProposalID: "p-res", Status: "rejected", Resolved: true,
	})

	beat, err = module.Beats.ReconcileBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if beat.Status != entities.BeatStatusRevised {
		t.Fatalf("beat status %s after rejected resolution, want revised", beat.Status)
	}
	current, err := module.Queries.GetChallenge(context.Background(), challenge.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge failed: %v", err)
	}
	if current.Status != entities.ChallengeStatusAccepted {
		t.Fatalf("challenge status %s, want accepted", current.Status)
	}
}

// revisedBeat runs a challenge through a rejected escalation ballot so
// the beat lands in revised.
func revisedBeat(t *testing.T, module Module) entities.Beat {
	t.Helper()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}
	module.Store.Advance(13 * time.Hour)
	if _, err := module.Beats.ReconcileBeat(context.Background(), beat.BeatID); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	module.Store.SetProposalOutcome("challenge_resolution", challenge.ChallengeID, ports.ProposalOutcome{
		ProposalID: "p-res", Status: "rejected", Resolved: true,
	})
	beat, err = module.Beats.ReconcileBeat(context.Background(), beat.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if beat.Status != entities.BeatStatusRevised {
		t.Fatalf("beat status %s, want revised", beat.Status)
	}
	return beat
}

func TestRevisionResubmissionAfterLostEscalation(t *testing.T) {
	module := newTestModule()
	old := revisedBeat(t, module)

	minor := entities.SignificanceMinor
	revision, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:              "scene-1",
		AuthorID:             "alice",
		RevisesBeatID:        old.BeatID,
		SignificanceOverride: &minor,
		Events:               narrativeEvents("The gate holds, but its hinges scream."),
	})
	if err != nil {
		t.Fatalf("revision submit failed: %v", err)
	}
	if revision.Significance != entities.SignificanceMajor {
		t.Fatalf("revision significance %s despite minor override, want forced major", revision.Significance)
	}
	if revision.Status != entities.BeatStatusProposed {
		t.Fatalf("revision status %s, want proposed pending approval", revision.Status)
	}
	if revision.RevisesBeatID != old.BeatID || revision.Version != old.Version+1 {
		t.Fatalf("revision lineage %q v%d, want %q v%d",
			revision.RevisesBeatID, revision.Version, old.BeatID, old.Version+1)
	}
	if _, found, _ := module.Store.ResolvedOutcome(context.Background(), "beat_approval", revision.BeatID); found {
		t.Fatalf("revision ballot already resolved")
	}

	module.Store.SetProposalOutcome("beat_approval", revision.BeatID, ports.ProposalOutcome{
		ProposalID: "p-rev", Status: "approved", Resolved: true,
	})
	revision, err = module.Beats.ReconcileBeat(context.Background(), revision.BeatID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if revision.Status != entities.BeatStatusCanon {
		t.Fatalf("revision status %s after approval, want canon", revision.Status)
	}
}

func TestRevisionRequiresRevisedAncestor(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)

	_, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:       "scene-1",
		AuthorID:      "alice",
		RevisesBeatID: beat.BeatID,
		Events:        narrativeEvents("An uninvited rewrite."),
	})
	if !errors.Is(err, domainerrors.ErrBeatNotRevised) {
		t.Fatalf("got %v, want beat not awaiting revision", err)
	}
}

func TestRevisionIsAuthorOnly(t *testing.T) {
	module := newTestModule()
	old := revisedBeat(t, module)

	_, err := module.Beats.SubmitBeat(context.Background(), commands.SubmitBeatCommand{
		SceneID:       "scene-1",
		AuthorID:      "bob",
		RevisesBeatID: old.BeatID,
		Events:        narrativeEvents("Bob rewrites Alice's scene."),
	})
	if !errors.Is(err, domainerrors.ErrNotBeatAuthor) {
		t.Fatalf("got %v, want not beat author", err)
	}
}

func TestEscalationSweeperEscalatesDueChallenges(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}
	module.Store.Advance(13 * time.Hour)

	sweeper := workers.EscalationSweeper{
		Beats:     module.Store,
		Escalator: module.Beats,
		Clock:     module.Store,
	}
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	current, err := module.Queries.GetChallenge(context.Background(), challenge.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge failed: %v", err)
	}
	if current.EscalationProposalID == "" {
		t.Fatalf("sweeper left the due challenge unescalated")
	}
}

func TestCommentsOnlyWhileOpenButStayReadable(t *testing.T) {
	module := newTestModule()
	beat := canonBeat(t, module)
	challenge, err := module.Beats.FileChallenge(context.Background(), commands.FileChallengeCommand{
		BeatID:       beat.BeatID,
		ChallengerID: "bob",
		Reason:       "contradicts the sealed gate",
	})
	if err != nil {
		t.Fatalf("file challenge failed: %v", err)
	}
	if _, err := module.Beats.AddComment(context.Background(), challenge.ChallengeID, "carol", "the hinge was broken in act one"); err != nil {
		t.Fatalf("add comment failed: %v", err)
	}

	if _, err := module.Beats.DismissChallenge(context.Background(), challenge.ChallengeID, "alice"); err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}
	if _, err := module.Beats.AddComment(context.Background(), challenge.ChallengeID, "carol", "too late"); !errors.Is(err, domainerrors.ErrChallengeNotOpen) {
		t.Fatalf("comment on closed challenge got %v, want challenge not open", err)
	}

	comments, err := module.Queries.ListComments(context.Background(), challenge.ChallengeID)
	if err != nil {
		t.Fatalf("list comments failed: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("comment history length %d after closure, want 1", len(comments))
	}
}
