package pacingservice

import (
	"context"
	"errors"
	"testing"

	"loom/contexts/narrative/pacing-service/application/commands"
	"loom/contexts/narrative/pacing-service/domain/entities"
	domainerrors "loom/contexts/narrative/pacing-service/domain/errors"
	"loom/contexts/narrative/pacing-service/ports"
)

func intPtr(v int) *int { return &v }

func approved() ports.ProposalOutcome {
	return ports.ProposalOutcome{ProposalID: "p-approved", Status: "approved", Resolved: true}
}

// activeAct seeds an act whose act_create ballot already approved.
func activeAct(t *testing.T, module Module, gameID string) entities.Act {
	t.Helper()
	act, _, err := module.Pacing.ProposeAct(context.Background(), commands.ProposeActCommand{
		GameID:          gameID,
		ProposerID:      "alice",
		GuidingQuestion: "What does the flood leave behind?",
	})
	if err != nil {
		t.Fatalf("propose act failed: %v", err)
	}
	module.Store.SetProposalOutcome("act_create", act.ActID, approved())
	act, err = module.Pacing.ReconcileAct(context.Background(), act.ActID)
	if err != nil {
		t.Fatalf("reconcile act failed: %v", err)
	}
	if act.Status != entities.ActStatusActive {
		t.Fatalf("seeded act status %s, want active", act.Status)
	}
	return act
}

func activeScene(t *testing.T, module Module, actID string, tension *int) entities.Scene {
	t.Helper()
	scene, _, err := module.Pacing.ProposeScene(context.Background(), commands.ProposeSceneCommand{
		ActID:           actID,
		ProposerID:      "alice",
		GuidingQuestion: "Who opens the gate?",
		Location:        "the sluice house",
		Tension:         tension,
	})
	if err != nil {
		t.Fatalf("propose scene failed: %v", err)
	}
	module.Store.SetProposalOutcome("scene_create", scene.SceneID, approved())
	scene, err = module.Pacing.ReconcileScene(context.Background(), scene.SceneID)
	if err != nil {
		t.Fatalf("reconcile scene failed: %v", err)
	}
	if scene.Status != entities.SceneStatusActive {
		t.Fatalf("seeded scene status %s, want active", scene.Status)
	}
	return scene
}

func completeScene(t *testing.T, module Module, sceneID string) entities.Scene {
	t.Helper()
	module.Store.SetProposalOutcome("scene_complete", sceneID, approved())
	scene, err := module.Pacing.ReconcileScene(context.Background(), sceneID)
	if err != nil {
		t.Fatalf("reconcile scene failed: %v", err)
	}
	if scene.Status != entities.SceneStatusComplete {
		t.Fatalf("scene status %s, want complete", scene.Status)
	}
	return scene
}

func TestActLifecycleRunsThroughProposals(t *testing.T) {
	module := NewInMemoryModule(nil)
	act, outcome, err := module.Pacing.ProposeAct(context.Background(), commands.ProposeActCommand{
		GameID:          "game-1",
		ProposerID:      "alice",
		GuidingQuestion: "What does the flood leave behind?",
	})
	if err != nil {
		t.Fatalf("propose act failed: %v", err)
	}
	if act.Status != entities.ActStatusProposed {
		t.Fatalf("act status %s with open ballot, want proposed", act.Status)
	}
	if outcome.ProposalID == "" {
		t.Fatalf("propose act opened no ballot")
	}
	if act.Order != 1 {
		t.Fatalf("first act order %d, want 1", act.Order)
	}

	module.Store.SetProposalOutcome("act_create", act.ActID, approved())
	act, err = module.Pacing.ReconcileAct(context.Background(), act.ActID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if act.Status != entities.ActStatusActive {
		t.Fatalf("act status %s after approval, want active", act.Status)
	}

	module.Store.SetProposalOutcome("act_complete", act.ActID, approved())
	act, _, err = module.Pacing.ProposeCompleteAct(context.Background(), act.ActID, "alice")
	if err != nil {
		t.Fatalf("complete act failed: %v", err)
	}
	if act.Status != entities.ActStatusComplete {
		t.Fatalf("act status %s after approved completion, want complete", act.Status)
	}
}

func TestProposeActRequiresActiveGame(t *testing.T) {
	module := NewInMemoryModule(nil)
	module.Store.SetGameInfo("game-1", ports.GameInfo{Status: "setup", StartingTension: 5, TensionVotingMode: "group_vote"})
	_, _, err := module.Pacing.ProposeAct(context.Background(), commands.ProposeActCommand{
		GameID:          "game-1",
		ProposerID:      "alice",
		GuidingQuestion: "Too early?",
	})
	if !errors.Is(err, domainerrors.ErrGameNotActive) {
		t.Fatalf("propose in setup game got %v, want game not active", err)
	}
}

func TestFirstSceneDefaultsToStartingTension(t *testing.T) {
	module := NewInMemoryModule(nil)
	module.Store.SetGameInfo("game-1", ports.GameInfo{Status: "active", StartingTension: 3, TensionVotingMode: "group_vote"})
	act := activeAct(t, module, "game-1")

	scene, _, err := module.Pacing.ProposeScene(context.Background(), commands.ProposeSceneCommand{
		ActID:           act.ActID,
		ProposerID:      "alice",
		GuidingQuestion: "Who opens the gate?",
	})
	if err != nil {
		t.Fatalf("propose scene failed: %v", err)
	}
	if scene.Tension != 3 {
		t.Fatalf("first scene tension %d, want starting tension 3", scene.Tension)
	}
}

func TestSceneTensionOverrideIsValidated(t *testing.T) {
	module := NewInMemoryModule(nil)
	act := activeAct(t, module, "game-1")

	_, _, err := module.Pacing.ProposeScene(context.Background(), commands.ProposeSceneCommand{
		ActID:           act.ActID,
		ProposerID:      "alice",
		GuidingQuestion: "Too tense?",
		Tension:         intPtr(12),
	})
	if !errors.Is(err, domainerrors.ErrInvalidTension) {
		t.Fatalf("tension 12 got %v, want invalid tension", err)
	}
}

func TestSceneCompletionOpensTensionAdjustment(t *testing.T) {
	module := NewInMemoryModule(nil)
	module.Store.SetDeltaSuggestion(1, "raise the stakes")
	act := activeAct(t, module, "game-1")
	scene := activeScene(t, module, act.ActID, intPtr(5))

	scene = completeScene(t, module, scene.SceneID)
	if scene.TensionCarryForward != nil {
		t.Fatalf("carry-forward settled before the adjustment resolved")
	}

	_, found, err := module.Store.ForceResolve(context.Background(), "tension_adjustment", scene.SceneID)
	if err != nil || !found {
		t.Fatalf("no tension adjustment ballot was opened (found=%v err=%v)", found, err)
	}
	if delta, ok := module.Store.OpenedDelta("tension_adjustment", scene.SceneID); !ok || delta != 1 {
		t.Fatalf("ballot opened with suggested delta %d (recorded=%v), want 1", delta, ok)
	}
}

func TestResolvedAdjustmentWritesCarryForwardOnce(t *testing.T) {
	module := NewInMemoryModule(nil)
	act := activeAct(t, module, "game-1")
	scene := activeScene(t, module, act.ActID, intPtr(5))
	scene = completeScene(t, module, scene.SceneID)

	module.Store.SetProposalOutcome("tension_adjustment", scene.SceneID, ports.ProposalOutcome{
		ProposalID:   "p-tension",
		Status:       "approved",
		Resolved:     true,
		WinningDelta: intPtr(1),
	})
	scene, err := module.Pacing.ReconcileScene(context.Background(), scene.SceneID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if scene.TensionCarryForward == nil || *scene.TensionCarryForward != 6 {
		t.Fatalf("carry-forward %v after +1 on tension 5, want 6", scene.TensionCarryForward)
	}

	// Another reconcile must not rewrite the settled carry-forward.
	if _, err := module.Pacing.ReconcileScene(context.Background(), scene.SceneID); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	count := 0
	for _, eventType := range module.Store.OutboxEventTypes() {
		if eventType == "tension.adjusted" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("tension.adjusted emitted %d times, want exactly 1", count)
	}
}

func TestNextSceneInheritsCarryForward(t *testing.T) {
	module := NewInMemoryModule(nil)
	act := activeAct(t, module, "game-1")
	scene := activeScene(t, module, act.ActID, intPtr(5))
	scene = completeScene(t, module, scene.SceneID)
	module.Store.SetProposalOutcome("tension_adjustment", scene.SceneID, ports.ProposalOutcome{
		ProposalID:   "p-tension",
		Status:       "approved",
		Resolved:     true,
		WinningDelta: intPtr(-1),
	})

	next, _, err := module.Pacing.ProposeScene(context.Background(), commands.ProposeSceneCommand{
		ActID:           act.ActID,
		ProposerID:      "alice",
		GuidingQuestion: "What calms down?",
	})
	if err != nil {
		t.Fatalf("propose next scene failed: %v", err)
	}
	if next.Tension != 4 {
		t.Fatalf("next scene tension %d after -1 carry, want 4", next.Tension)
	}
}

func TestProposingSceneForceResolvesOpenAdjustment(t *testing.T) {
	module := NewInMemoryModule(nil)
	act := activeAct(t, module, "game-1")
	scene := activeScene(t, module, act.ActID, intPtr(5))
	scene = completeScene(t, module, scene.SceneID)

	// The adjustment ballot is still open; proposing the next scene must
	// force it to settle before seeding the default tension.
	next, _, err := module.Pacing.ProposeScene(context.Background(), commands.ProposeSceneCommand{
		ActID:           act.ActID,
		ProposerID:      "alice",
		GuidingQuestion: "What now?",
	})
	if err != nil {
		t.Fatalf("propose next scene failed: %v", err)
	}
	settled, err := module.Pacing.ReconcileScene(context.Background(), scene.SceneID)
	if err != nil {
		t.Fatalf("reconcile completed scene failed: %v", err)
	}
	if settled.TensionCarryForward == nil {
		t.Fatalf("force-resolve left the carry-forward unsettled")
	}
	if next.Tension != *settled.TensionCarryForward {
		t.Fatalf("next scene tension %d, want settled carry-forward %d", next.Tension, *settled.TensionCarryForward)
	}
}

func TestAIAutoModeAppliesDeltaWithoutBallot(t *testing.T) {
	module := NewInMemoryModule(nil)
	module.Store.SetGameInfo("game-1", ports.GameInfo{Status: "active", StartingTension: 5, TensionVotingMode: "ai_auto"})
	module.Store.SetDeltaSuggestion(1, "the water keeps rising")
	act := activeAct(t, module, "game-1")
	scene := activeScene(t, module, act.ActID, intPtr(5))

	scene = completeScene(t, module, scene.SceneID)
	if scene.TensionCarryForward == nil || *scene.TensionCarryForward != 6 {
		t.Fatalf("ai_auto carry-forward %v, want 6", scene.TensionCarryForward)
	}
	if _, found, err := module.Store.ResolvedOutcome(context.Background(), "tension_adjustment", scene.SceneID); err != nil || found {
		t.Fatalf("ai_auto completion opened a ballot anyway (found=%v err=%v)", found, err)
	}
}

func TestCarryForwardClampsToScale(t *testing.T) {
	module := NewInMemoryModule(nil)
	module.Store.SetGameInfo("game-1", ports.GameInfo{Status: "active", StartingTension: 9, TensionVotingMode: "ai_auto"})
	module.Store.SetDeltaSuggestion(1, "already at the ceiling")
	act := activeAct(t, module, "game-1")
	scene := activeScene(t, module, act.ActID, intPtr(9))

	scene = completeScene(t, module, scene.SceneID)
	if scene.TensionCarryForward == nil || *scene.TensionCarryForward != 9 {
		t.Fatalf("carry-forward %v above TensionMax, want clamped 9", scene.TensionCarryForward)
	}
}

func TestCompleteActBlocksOnUnfinishedScenes(t *testing.T) {
	module := NewInMemoryModule(nil)
	act := activeAct(t, module, "game-1")
	activeScene(t, module, act.ActID, intPtr(5))

	_, _, err := module.Pacing.ProposeCompleteAct(context.Background(), act.ActID, "alice")
	if !errors.Is(err, domainerrors.ErrScenesStillOpen) {
		t.Fatalf("complete act with active scene got %v, want scenes still open", err)
	}
}

func TestProposeSceneRequiresActiveAct(t *testing.T) {
	module := NewInMemoryModule(nil)
	act, _, err := module.Pacing.ProposeAct(context.Background(), commands.ProposeActCommand{
		GameID:          "game-1",
		ProposerID:      "alice",
		GuidingQuestion: "Still proposed",
	})
	if err != nil {
		t.Fatalf("propose act failed: %v", err)
	}
	_, _, err = module.Pacing.ProposeScene(context.Background(), commands.ProposeSceneCommand{
		ActID:           act.ActID,
		ProposerID:      "alice",
		GuidingQuestion: "Too early",
	})
	if !errors.Is(err, domainerrors.ErrActNotActive) {
		t.Fatalf("scene in proposed act got %v, want act not active", err)
	}
}
