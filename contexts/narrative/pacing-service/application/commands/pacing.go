package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"loom/contexts/narrative/pacing-service/application"
	"loom/contexts/narrative/pacing-service/domain/entities"
	domainerrors "loom/contexts/narrative/pacing-service/domain/errors"
	"loom/contexts/narrative/pacing-service/ports"
	"loom/internal/shared/events"
)

const (
	kindActCreate         = "act_create"
	kindActComplete       = "act_complete"
	kindSceneCreate       = "scene_create"
	kindSceneComplete     = "scene_complete"
	kindTensionAdjustment = "tension_adjustment"

	statusApproved = "approved"
	statusRejected = "rejected"

	votingModeAIAuto = "ai_auto"
)

type ProposeActCommand struct {
	GameID          string
	ProposerID      string
	GuidingQuestion string
}

type ProposeSceneCommand struct {
	ActID           string
	ProposerID      string
	GuidingQuestion string
	Location        string
	// Tension overrides the default when set; must be on the 1..9 scale.
	Tension *int
}

// PacingUseCase drives act and scene lifecycles. Structural transitions are
// never applied directly: each opens a consensus proposal, and reconcile
// methods fold resolved outcomes back into the entities on every touch.
type PacingUseCase struct {
	Pacing    ports.PacingRepository
	Engine    ports.ProposalEngine
	Games     ports.GameSource
	Suggester ports.DeltaSuggester
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// ProposeAct records a proposed act and opens its act_create ballot.
func (uc PacingUseCase) ProposeAct(ctx context.Context, cmd ProposeActCommand) (entities.Act, ports.ProposalOutcome, error) {
	if strings.TrimSpace(cmd.GameID) == "" ||
		strings.TrimSpace(cmd.ProposerID) == "" ||
		strings.TrimSpace(cmd.GuidingQuestion) == "" {
		return entities.Act{}, ports.ProposalOutcome{}, domainerrors.ErrInvalidPacingInput
	}
	info, err := uc.Games.GetGameInfo(ctx, cmd.GameID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	if info.Status != "active" {
		return entities.Act{}, ports.ProposalOutcome{}, domainerrors.ErrGameNotActive
	}

	existing, err := uc.Pacing.ListActsByGame(ctx, cmd.GameID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	actID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	now := uc.now()
	act := entities.Act{
		ActID:           actID,
		GameID:          strings.TrimSpace(cmd.GameID),
		GuidingQuestion: strings.TrimSpace(cmd.GuidingQuestion),
		Status:          entities.ActStatusProposed,
		Order:           len(existing) + 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.Pacing.SaveAct(ctx, act); err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	outcome, err := uc.Engine.OpenProposal(ctx, act.GameID, kindActCreate, "act", act.ActID, cmd.ProposerID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	if err := uc.appendActEvent(ctx, "act.proposed", act, now, map[string]any{
		"proposal_id": outcome.ProposalID,
		"proposer_id": strings.TrimSpace(cmd.ProposerID),
	}); err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	application.ResolveLogger(uc.Logger).Info("act proposed",
		"event", "pacing_act_proposed",
		"module", "narrative/pacing-service",
		"layer", "application",
		"game_id", act.GameID,
		"act_id", act.ActID,
		"proposal_id", outcome.ProposalID,
	)
	act, err = uc.ReconcileAct(ctx, act.ActID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	return act, outcome, nil
}

// ProposeCompleteAct opens the act_complete ballot for an active act with no
// unfinished scenes.
func (uc PacingUseCase) ProposeCompleteAct(ctx context.Context, actID string, proposerID string) (entities.Act, ports.ProposalOutcome, error) {
	act, err := uc.ReconcileAct(ctx, actID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	if act.Status != entities.ActStatusActive {
		return entities.Act{}, ports.ProposalOutcome{}, domainerrors.ErrActNotActive
	}
	scenes, err := uc.Pacing.ListScenesByAct(ctx, act.ActID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	for _, scene := range scenes {
		if scene.Status != entities.SceneStatusComplete {
			return entities.Act{}, ports.ProposalOutcome{}, domainerrors.ErrScenesStillOpen
		}
	}
	outcome, err := uc.Engine.OpenProposal(ctx, act.GameID, kindActComplete, "act", act.ActID, proposerID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	act, err = uc.ReconcileAct(ctx, act.ActID)
	if err != nil {
		return entities.Act{}, ports.ProposalOutcome{}, err
	}
	return act, outcome, nil
}

// ReconcileAct folds resolved act proposals into the act's status. Safe to
// call on every read.
func (uc PacingUseCase) ReconcileAct(ctx context.Context, actID string) (entities.Act, error) {
	act, err := uc.Pacing.GetAct(ctx, actID)
	if err != nil {
		return entities.Act{}, err
	}
	switch act.Status {
	case entities.ActStatusProposed:
		outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindActCreate, act.ActID)
		if err != nil {
			return entities.Act{}, err
		}
		if found && outcome.Status == statusApproved {
			act, err = uc.transitionAct(ctx, act, entities.ActStatusActive, "act.activated")
			if err != nil {
				return entities.Act{}, err
			}
		}
	case entities.ActStatusActive:
		outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindActComplete, act.ActID)
		if err != nil {
			return entities.Act{}, err
		}
		if found && outcome.Status == statusApproved {
			act, err = uc.transitionAct(ctx, act, entities.ActStatusComplete, "act.completed")
			if err != nil {
				return entities.Act{}, err
			}
		}
	}
	return act, nil
}

// ProposeScene records a proposed scene inside an active act and opens its
// scene_create ballot. Any still-open tension adjustment from the previous
// scene is force-resolved first so the default tension is settled.
func (uc PacingUseCase) ProposeScene(ctx context.Context, cmd ProposeSceneCommand) (entities.Scene, ports.ProposalOutcome, error) {
	if strings.TrimSpace(cmd.ActID) == "" ||
		strings.TrimSpace(cmd.ProposerID) == "" ||
		strings.TrimSpace(cmd.GuidingQuestion) == "" {
		return entities.Scene{}, ports.ProposalOutcome{}, domainerrors.ErrInvalidPacingInput
	}
	act, err := uc.ReconcileAct(ctx, strings.TrimSpace(cmd.ActID))
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	if act.Status != entities.ActStatusActive {
		return entities.Scene{}, ports.ProposalOutcome{}, domainerrors.ErrActNotActive
	}

	tension, err := uc.settleDefaultTension(ctx, act.GameID)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	if cmd.Tension != nil {
		if !entities.ValidTension(*cmd.Tension) {
			return entities.Scene{}, ports.ProposalOutcome{}, domainerrors.ErrInvalidTension
		}
		tension = *cmd.Tension
	}

	sceneID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	now := uc.now()
	scene := entities.Scene{
		SceneID:         sceneID,
		ActID:           act.ActID,
		GameID:          act.GameID,
		GuidingQuestion: strings.TrimSpace(cmd.GuidingQuestion),
		Location:        strings.TrimSpace(cmd.Location),
		Status:          entities.SceneStatusProposed,
		Tension:         tension,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.Pacing.SaveScene(ctx, scene); err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	outcome, err := uc.Engine.OpenProposal(ctx, scene.GameID, kindSceneCreate, "scene", scene.SceneID, cmd.ProposerID)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	if err := uc.appendSceneEvent(ctx, "scene.proposed", scene, now, map[string]any{
		"proposal_id": outcome.ProposalID,
		"proposer_id": strings.TrimSpace(cmd.ProposerID),
	}); err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	application.ResolveLogger(uc.Logger).Info("scene proposed",
		"event", "pacing_scene_proposed",
		"module", "narrative/pacing-service",
		"layer", "application",
		"game_id", scene.GameID,
		"scene_id", scene.SceneID,
		"tension", scene.Tension,
		"proposal_id", outcome.ProposalID,
	)
	scene, err = uc.ReconcileScene(ctx, scene.SceneID)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	return scene, outcome, nil
}

// ProposeCompleteScene opens the scene_complete ballot for an active scene.
func (uc PacingUseCase) ProposeCompleteScene(ctx context.Context, sceneID string, proposerID string) (entities.Scene, ports.ProposalOutcome, error) {
	scene, err := uc.ReconcileScene(ctx, sceneID)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	if scene.Status != entities.SceneStatusActive {
		return entities.Scene{}, ports.ProposalOutcome{}, domainerrors.ErrSceneNotActive
	}
	outcome, err := uc.Engine.OpenProposal(ctx, scene.GameID, kindSceneComplete, "scene", scene.SceneID, proposerID)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	scene, err = uc.ReconcileScene(ctx, scene.SceneID)
	if err != nil {
		return entities.Scene{}, ports.ProposalOutcome{}, err
	}
	return scene, outcome, nil
}

// ReconcileScene folds resolved scene proposals into the scene. Completion
// kicks off the tension adjustment; a completed scene with an unsettled
// carry-forward picks up its resolved delta here.
func (uc PacingUseCase) ReconcileScene(ctx context.Context, sceneID string) (entities.Scene, error) {
	scene, err := uc.Pacing.GetScene(ctx, sceneID)
	if err != nil {
		return entities.Scene{}, err
	}
	switch scene.Status {
	case entities.SceneStatusProposed:
		outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindSceneCreate, scene.SceneID)
		if err != nil {
			return entities.Scene{}, err
		}
		if found && outcome.Status == statusApproved {
			scene, err = uc.transitionScene(ctx, scene, entities.SceneStatusActive, "scene.activated", nil)
			if err != nil {
				return entities.Scene{}, err
			}
		}
	case entities.SceneStatusActive:
		outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindSceneComplete, scene.SceneID)
		if err != nil {
			return entities.Scene{}, err
		}
		if found && outcome.Status == statusApproved {
			scene, err = uc.completeScene(ctx, scene)
			if err != nil {
				return entities.Scene{}, err
			}
		}
	case entities.SceneStatusComplete:
		if scene.TensionCarryForward == nil {
			scene, err = uc.applyTensionOutcome(ctx, scene)
			if err != nil {
				return entities.Scene{}, err
			}
		}
	}
	return scene, nil
}

// completeScene marks the scene complete and starts the tension loop: in
// ai_auto games the suggested delta is applied on the spot, otherwise a
// system-opened tension_adjustment ballot goes to the table.
func (uc PacingUseCase) completeScene(ctx context.Context, scene entities.Scene) (entities.Scene, error) {
	scene, err := uc.transitionScene(ctx, scene, entities.SceneStatusComplete, "scene.completed", nil)
	if err != nil {
		return entities.Scene{}, err
	}
	info, err := uc.Games.GetGameInfo(ctx, scene.GameID)
	if err != nil {
		return entities.Scene{}, err
	}
	delta, rationale := 0, ""
	if uc.Suggester != nil {
		delta, rationale = uc.Suggester.SuggestDelta(ctx, scene.GameID, scene.SceneID)
	}
	if info.TensionVotingMode == votingModeAIAuto {
		return uc.writeCarryForward(ctx, scene, clampDelta(delta), "ai_auto")
	}
	if _, err := uc.Engine.OpenSystemProposal(ctx, scene.GameID, kindTensionAdjustment, "scene", scene.SceneID, rationale, clampDelta(delta)); err != nil {
		return entities.Scene{}, err
	}
	application.ResolveLogger(uc.Logger).Info("tension adjustment opened",
		"event", "pacing_tension_adjustment_opened",
		"module", "narrative/pacing-service",
		"layer", "application",
		"game_id", scene.GameID,
		"scene_id", scene.SceneID,
		"suggested_delta", delta,
	)
	return scene, nil
}

// applyTensionOutcome writes the carry-forward once the scene's adjustment
// ballot has settled.
func (uc PacingUseCase) applyTensionOutcome(ctx context.Context, scene entities.Scene) (entities.Scene, error) {
	outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindTensionAdjustment, scene.SceneID)
	if err != nil {
		return entities.Scene{}, err
	}
	if !found {
		return scene, nil
	}
	delta := 0
	if outcome.WinningDelta != nil {
		delta = *outcome.WinningDelta
	}
	return uc.writeCarryForward(ctx, scene, clampDelta(delta), "group_vote")
}

func (uc PacingUseCase) writeCarryForward(ctx context.Context, scene entities.Scene, delta int, via string) (entities.Scene, error) {
	carry := entities.ClampTension(scene.Tension + delta)
	now := uc.now()
	scene.TensionCarryForward = &carry
	scene.UpdatedAt = now
	if err := uc.Pacing.SaveScene(ctx, scene); err != nil {
		return entities.Scene{}, err
	}
	if err := uc.appendSceneEvent(ctx, "tension.adjusted", scene, now, map[string]any{
		"delta":         delta,
		"carry_forward": carry,
		"via":           via,
	}); err != nil {
		return entities.Scene{}, err
	}
	application.ResolveLogger(uc.Logger).Info("tension carry-forward settled",
		"event", "pacing_tension_settled",
		"module", "narrative/pacing-service",
		"layer", "application",
		"game_id", scene.GameID,
		"scene_id", scene.SceneID,
		"delta", delta,
		"carry_forward", carry,
		"via", via,
	)
	return scene, nil
}

// settleDefaultTension force-resolves any open adjustment on the latest
// completed scene and returns the next scene's default tension: that
// scene's carry-forward, else the game's starting tension.
func (uc PacingUseCase) settleDefaultTension(ctx context.Context, gameID string) (int, error) {
	info, err := uc.Games.GetGameInfo(ctx, gameID)
	if err != nil {
		return 0, err
	}
	fallback := info.StartingTension
	if !entities.ValidTension(fallback) {
		fallback = 5
	}
	latest, found, err := uc.Pacing.LatestCompletedScene(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if !found {
		return fallback, nil
	}
	if latest.TensionCarryForward == nil {
		if _, _, err := uc.Engine.ForceResolve(ctx, kindTensionAdjustment, latest.SceneID); err != nil {
			return 0, err
		}
		latest, err = uc.applyTensionOutcome(ctx, latest)
		if err != nil {
			return 0, err
		}
	}
	if latest.TensionCarryForward != nil {
		return *latest.TensionCarryForward, nil
	}
	return fallback, nil
}

func (uc PacingUseCase) transitionAct(ctx context.Context, act entities.Act, to entities.ActStatus, eventType string) (entities.Act, error) {
	now := uc.now()
	act.Status = to
	act.UpdatedAt = now
	if err := uc.Pacing.SaveAct(ctx, act); err != nil {
		return entities.Act{}, err
	}
	if err := uc.appendActEvent(ctx, eventType, act, now, nil); err != nil {
		return entities.Act{}, err
	}
	return act, nil
}

func (uc PacingUseCase) transitionScene(ctx context.Context, scene entities.Scene, to entities.SceneStatus, eventType string, data map[string]any) (entities.Scene, error) {
	now := uc.now()
	scene.Status = to
	scene.UpdatedAt = now
	if err := uc.Pacing.SaveScene(ctx, scene); err != nil {
		return entities.Scene{}, err
	}
	if err := uc.appendSceneEvent(ctx, eventType, scene, now, data); err != nil {
		return entities.Scene{}, err
	}
	return scene, nil
}

func (uc PacingUseCase) appendActEvent(
	ctx context.Context,
	eventType string,
	act entities.Act,
	occurredAt time.Time,
	data map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"act_id":  act.ActID,
		"game_id": act.GameID,
		"status":  string(act.Status),
		"order":   act.Order,
	}
	for key, value := range data {
		payload[key] = value
	}
	return uc.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "pacing-service",
		OccurredAtUTC:  occurredAt.UTC(),
		GameID:         act.GameID,
		EntityType:     "act",
		EntityID:       act.ActID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

func (uc PacingUseCase) appendSceneEvent(
	ctx context.Context,
	eventType string,
	scene entities.Scene,
	occurredAt time.Time,
	data map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"scene_id": scene.SceneID,
		"act_id":   scene.ActID,
		"game_id":  scene.GameID,
		"status":   string(scene.Status),
		"tension":  scene.Tension,
	}
	for key, value := range data {
		payload[key] = value
	}
	return uc.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "pacing-service",
		OccurredAtUTC:  occurredAt.UTC(),
		GameID:         scene.GameID,
		EntityType:     "scene",
		EntityID:       scene.SceneID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

func (uc PacingUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
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
