package httpadapter

import (
	"context"
	"log/slog"

	"loom/contexts/narrative/game-service/application/commands"
	"loom/contexts/narrative/game-service/application/queries"
	"loom/contexts/narrative/game-service/domain/entities"
	httptransport "loom/contexts/narrative/game-service/transport/http"
)

type Handler struct {
	Games   commands.GameUseCase
	Queries queries.GameQueryUseCase
	Logger  *slog.Logger
}

func (h Handler) CreateGameHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateGameRequest,
) (httptransport.GameResponse, error) {
	settings := entities.Settings{}
	if req.Settings != nil {
		settings = settingsFromBody(*req.Settings)
	}
	game, err := h.Games.CreateGame(ctx, commands.CreateGameCommand{
		Name:      req.Name,
		Pitch:     req.Pitch,
		CreatorID: userID,
		Settings:  settings,
	})
	if err != nil {
		return httptransport.GameResponse{}, err
	}
	return gameBody(game), nil
}

// GetGameHandler reconciles resolved activation proposals before reading,
// so a silence-approved readiness ballot shows the game as active.
func (h Handler) GetGameHandler(ctx context.Context, gameID string) (httptransport.GameResponse, error) {
	game, err := h.Games.ReconcileStatus(ctx, gameID)
	if err != nil {
		return httptransport.GameResponse{}, err
	}
	return gameBody(game), nil
}

func (h Handler) UpdateSettingsHandler(
	ctx context.Context,
	gameID string,
	userID string,
	req httptransport.UpdateSettingsRequest,
) (httptransport.GameResponse, error) {
	game, err := h.Games.UpdateSettings(ctx, commands.UpdateSettingsCommand{
		GameID:   gameID,
		ActorID:  userID,
		Settings: settingsFromBody(req.Settings),
	})
	if err != nil {
		return httptransport.GameResponse{}, err
	}
	return gameBody(game), nil
}

func (h Handler) ListMembersHandler(ctx context.Context, gameID string) (httptransport.MemberListResponse, error) {
	members, err := h.Queries.Members(ctx, gameID)
	if err != nil {
		return httptransport.MemberListResponse{}, err
	}
	resp := httptransport.MemberListResponse{Items: make([]httptransport.MemberBody, 0, len(members))}
	for _, member := range members {
		resp.Items = append(resp.Items, httptransport.MemberBody{
			UserID: member.UserID,
			Role:   string(member.Role),
		})
	}
	return resp, nil
}

func (h Handler) CreateInvitationHandler(ctx context.Context, gameID string, userID string) (httptransport.InvitationResponse, error) {
	invitation, err := h.Games.CreateInvitation(ctx, gameID, userID)
	if err != nil {
		return httptransport.InvitationResponse{}, err
	}
	return httptransport.InvitationResponse{
		InvitationID: invitation.InvitationID,
		GameID:       invitation.GameID,
		Token:        invitation.Token,
		Active:       invitation.Active,
	}, nil
}

func (h Handler) RedeemInvitationHandler(
	ctx context.Context,
	userID string,
	req httptransport.RedeemInvitationRequest,
) (httptransport.MemberBody, error) {
	member, err := h.Games.RedeemInvitation(ctx, req.Token, userID)
	if err != nil {
		return httptransport.MemberBody{}, err
	}
	return httptransport.MemberBody{UserID: member.UserID, Role: string(member.Role)}, nil
}

func (h Handler) LeaveGameHandler(ctx context.Context, gameID string, userID string) error {
	return h.Games.LeaveGame(ctx, gameID, userID)
}

func (h Handler) ProposeReadyToPlayHandler(ctx context.Context, gameID string, userID string) (httptransport.ProposalRefResponse, error) {
	game, outcome, err := h.Games.ProposeReadyToPlay(ctx, gameID, userID)
	if err != nil {
		return httptransport.ProposalRefResponse{}, err
	}
	return httptransport.ProposalRefResponse{
		ProposalID: outcome.ProposalID,
		Status:     outcome.Status,
		GameStatus: string(game.Status),
	}, nil
}

func (h Handler) ProposeWorldDocApprovalHandler(ctx context.Context, gameID string, userID string) (httptransport.ProposalRefResponse, error) {
	game, outcome, err := h.Games.ProposeWorldDocApproval(ctx, gameID, userID)
	if err != nil {
		return httptransport.ProposalRefResponse{}, err
	}
	return httptransport.ProposalRefResponse{
		ProposalID: outcome.ProposalID,
		Status:     outcome.Status,
		GameStatus: string(game.Status),
	}, nil
}

func settingsFromBody(body httptransport.SettingsBody) entities.Settings {
	return entities.Settings{
		SilenceTimerHours:     body.SilenceTimerHours,
		TieBreakMethod:        entities.TieBreakMethod(body.TieBreakMethod),
		SignificanceThreshold: entities.SignificanceThreshold(body.SignificanceThreshold),
		TensionVotingMode:     entities.TensionVotingMode(body.TensionVotingMode),
		StartingTension:       body.StartingTension,
	}
}

func gameBody(game entities.Game) httptransport.GameResponse {
	return httptransport.GameResponse{
		GameID: game.GameID,
		Name:   game.Name,
		Pitch:  game.Pitch,
		Status: string(game.Status),
		Settings: httptransport.SettingsBody{
			SilenceTimerHours:     game.Settings.SilenceTimerHours,
			TieBreakMethod:        string(game.Settings.TieBreakMethod),
			SignificanceThreshold: string(game.Settings.SignificanceThreshold),
			TensionVotingMode:     string(game.Settings.TensionVotingMode),
			StartingTension:       game.Settings.StartingTension,
		},
	}
}
