package queries

import (
	"context"

	"loom/contexts/narrative/beat-service/domain/entities"
	"loom/contexts/narrative/beat-service/ports"
)

// BeatQueryUseCase serves plain reads. Handlers reconcile through the
// command side before reading so statuses reflect settled ballots.
type BeatQueryUseCase struct {
	Beats ports.BeatRepository
}

func (uc BeatQueryUseCase) GetBeat(ctx context.Context, beatID string) (entities.Beat, error) {
	return uc.Beats.GetBeat(ctx, beatID)
}

func (uc BeatQueryUseCase) ListBeats(ctx context.Context, sceneID string) ([]entities.Beat, error) {
	return uc.Beats.ListBeatsByScene(ctx, sceneID)
}

func (uc BeatQueryUseCase) GetChallenge(ctx context.Context, challengeID string) (entities.Challenge, error) {
	return uc.Beats.GetChallenge(ctx, challengeID)
}

func (uc BeatQueryUseCase) ListChallenges(ctx context.Context, beatID string) ([]entities.Challenge, error) {
	return uc.Beats.ListChallengesByBeat(ctx, beatID)
}

func (uc BeatQueryUseCase) ListComments(ctx context.Context, challengeID string) ([]entities.Comment, error) {
	return uc.Beats.ListCommentsByChallenge(ctx, challengeID)
}
