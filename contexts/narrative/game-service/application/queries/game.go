package queries

import (
	"context"

	"loom/contexts/narrative/game-service/domain/entities"
	"loom/contexts/narrative/game-service/ports"
)

type GameQueryUseCase struct {
	Games ports.GameRepository
}

func (uc GameQueryUseCase) Get(ctx context.Context, gameID string) (entities.Game, error) {
	return uc.Games.GetGame(ctx, gameID)
}

func (uc GameQueryUseCase) Members(ctx context.Context, gameID string) ([]entities.GameMember, error) {
	return uc.Games.ListMembers(ctx, gameID)
}

// ActiveMemberIDs serves the consensus engine's eligibility reads.
func (uc GameQueryUseCase) ActiveMemberIDs(ctx context.Context, gameID string) ([]string, error) {
	members, err := uc.Games.ListMembers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.UserID)
	}
	return ids, nil
}

func (uc GameQueryUseCase) IsActiveMember(ctx context.Context, gameID string, userID string) (bool, error) {
	_, found, err := uc.Games.GetMemberByUser(ctx, gameID, userID)
	return found, err
}
