package queries

import (
	"context"

	"loom/contexts/narrative/pacing-service/domain/entities"
	"loom/contexts/narrative/pacing-service/ports"
)

// PacingQueryUseCase serves plain reads. Handlers reconcile through the
// command side before reading so statuses reflect settled proposals.
type PacingQueryUseCase struct {
	Pacing ports.PacingRepository
}

func (uc PacingQueryUseCase) GetAct(ctx context.Context, actID string) (entities.Act, error) {
	return uc.Pacing.GetAct(ctx, actID)
}

func (uc PacingQueryUseCase) ListActs(ctx context.Context, gameID string) ([]entities.Act, error) {
	return uc.Pacing.ListActsByGame(ctx, gameID)
}

func (uc PacingQueryUseCase) GetScene(ctx context.Context, sceneID string) (entities.Scene, error) {
	return uc.Pacing.GetScene(ctx, sceneID)
}

func (uc PacingQueryUseCase) ListScenes(ctx context.Context, actID string) ([]entities.Scene, error) {
	return uc.Pacing.ListScenesByAct(ctx, actID)
}
