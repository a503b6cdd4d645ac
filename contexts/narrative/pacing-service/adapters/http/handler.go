package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"loom/contexts/narrative/pacing-service/application/commands"
	"loom/contexts/narrative/pacing-service/application/queries"
	"loom/contexts/narrative/pacing-service/domain/entities"
	httptransport "loom/contexts/narrative/pacing-service/transport/http"
)

type Handler struct {
	Pacing  commands.PacingUseCase
	Queries queries.PacingQueryUseCase
	Logger  *slog.Logger
}

func (h Handler) ProposeActHandler(
	ctx context.Context,
	userID string,
	req httptransport.ProposeActRequest,
) (httptransport.ActResponse, error) {
	act, outcome, err := h.Pacing.ProposeAct(ctx, commands.ProposeActCommand{
		GameID:          req.GameID,
		ProposerID:      userID,
		GuidingQuestion: req.GuidingQuestion,
	})
	if err != nil {
		return httptransport.ActResponse{}, err
	}
	body := actBody(act)
	body.ProposalID = outcome.ProposalID
	return body, nil
}

func (h Handler) CompleteActHandler(ctx context.Context, actID string, userID string) (httptransport.ActResponse, error) {
	act, outcome, err := h.Pacing.ProposeCompleteAct(ctx, actID, userID)
	if err != nil {
		return httptransport.ActResponse{}, err
	}
	body := actBody(act)
	body.ProposalID = outcome.ProposalID
	return body, nil
}

// GetActHandler reconciles resolved act proposals before reading, so a
// silence-approved act_create shows the act as active.
func (h Handler) GetActHandler(ctx context.Context, actID string) (httptransport.ActResponse, error) {
	act, err := h.Pacing.ReconcileAct(ctx, actID)
	if err != nil {
		return httptransport.ActResponse{}, err
	}
	return actBody(act), nil
}

func (h Handler) ListActsHandler(ctx context.Context, gameID string) (httptransport.ActListResponse, error) {
	acts, err := h.Queries.ListActs(ctx, gameID)
	if err != nil {
		return httptransport.ActListResponse{}, err
	}
	response := httptransport.ActListResponse{Acts: make([]httptransport.ActResponse, 0, len(acts))}
	for _, act := range acts {
		reconciled, err := h.Pacing.ReconcileAct(ctx, act.ActID)
		if err != nil {
			return httptransport.ActListResponse{}, err
		}
		response.Acts = append(response.Acts, actBody(reconciled))
	}
	return response, nil
}

func (h Handler) ProposeSceneHandler(
	ctx context.Context,
	userID string,
	req httptransport.ProposeSceneRequest,
) (httptransport.SceneResponse, error) {
	scene, outcome, err := h.Pacing.ProposeScene(ctx, commands.ProposeSceneCommand{
		ActID:           req.ActID,
		ProposerID:      userID,
		GuidingQuestion: req.GuidingQuestion,
		Location:        req.Location,
		Tension:         req.Tension,
	})
	if err != nil {
		return httptransport.SceneResponse{}, err
	}
	body := sceneBody(scene)
	body.ProposalID = outcome.ProposalID
	return body, nil
}

func (h Handler) CompleteSceneHandler(ctx context.Context, sceneID string, userID string) (httptransport.SceneResponse, error) {
	scene, outcome, err := h.Pacing.ProposeCompleteScene(ctx, sceneID, userID)
	if err != nil {
		return httptransport.SceneResponse{}, err
	}
	body := sceneBody(scene)
	body.ProposalID = outcome.ProposalID
	return body, nil
}

func (h Handler) GetSceneHandler(ctx context.Context, sceneID string) (httptransport.SceneResponse, error) {
	scene, err := h.Pacing.ReconcileScene(ctx, sceneID)
	if err != nil {
		return httptransport.SceneResponse{}, err
	}
	return sceneBody(scene), nil
}

func (h Handler) ListScenesHandler(ctx context.Context, actID string) (httptransport.SceneListResponse, error) {
	scenes, err := h.Queries.ListScenes(ctx, actID)
	if err != nil {
		return httptransport.SceneListResponse{}, err
	}
	response := httptransport.SceneListResponse{Scenes: make([]httptransport.SceneResponse, 0, len(scenes))}
	for _, scene := range scenes {
		reconciled, err := h.Pacing.ReconcileScene(ctx, scene.SceneID)
		if err != nil {
			return httptransport.SceneListResponse{}, err
		}
		response.Scenes = append(response.Scenes, sceneBody(reconciled))
	}
	return response, nil
}

func actBody(act entities.Act) httptransport.ActResponse {
	return httptransport.ActResponse{
		ActID:           act.ActID,
		GameID:          act.GameID,
		GuidingQuestion: act.GuidingQuestion,
		Status:          string(act.Status),
		Order:           act.Order,
		CreatedAt:       act.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       act.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func sceneBody(scene entities.Scene) httptransport.SceneResponse {
	return httptransport.SceneResponse{
		SceneID:             scene.SceneID,
		ActID:               scene.ActID,
		GameID:              scene.GameID,
		GuidingQuestion:     scene.GuidingQuestion,
		Location:            scene.Location,
		Status:              string(scene.Status),
		Tension:             scene.Tension,
		TensionCarryForward: scene.TensionCarryForward,
		CreatedAt:           scene.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           scene.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
