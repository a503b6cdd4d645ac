package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "loom/contexts/narrative/game-service/application"
	"loom/contexts/narrative/game-service/domain/entities"
	domainerrors "loom/contexts/narrative/game-service/domain/errors"
	"loom/contexts/narrative/game-service/ports"
	"loom/internal/shared/events"
)

type CreateGameCommand struct {
	Name      string
	Pitch     string
	CreatorID string
	Settings  entities.Settings
}

type UpdateSettingsCommand struct {
	GameID   string
	ActorID  string
	Settings entities.Settings
}

// GameUseCase orchestrates the game aggregate: creation, settings,
// invitations, roster changes, and the readiness proposals that flip a
// game from setup to active.
type GameUseCase struct {
	Games  ports.GameRepository
	Engine ports.ProposalEngine
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Tokens ports.TokenGenerator
	Logger *slog.Logger
}

// CreateGame creates the aggregate in setup status and seats the creator
// as organizer.
func (uc GameUseCase) CreateGame(ctx context.Context, cmd CreateGameCommand) (entities.Game, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.CreatorID) == "" {
		return entities.Game{}, domainerrors.ErrInvalidGameInput
	}
	settings := cmd.Settings.Normalize()
	if !settings.Valid() {
		return entities.Game{}, domainerrors.ErrInvalidGameInput
	}

	now := uc.now()
	gameID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Game{}, err
	}
	game := entities.Game{
		GameID:    gameID,
		Name:      strings.TrimSpace(cmd.Name),
		Pitch:     strings.TrimSpace(cmd.Pitch),
		Status:    entities.GameStatusSetup,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Games.SaveGame(ctx, game); err != nil {
		return entities.Game{}, err
	}

	memberID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Game{}, err
	}
	organizer := entities.GameMember{
		MemberID:  memberID,
		GameID:    game.GameID,
		UserID:    strings.TrimSpace(cmd.CreatorID),
		Role:      entities.RoleOrganizer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Games.SaveMember(ctx, organizer); err != nil {
		return entities.Game{}, err
	}

	if err := uc.appendGameEvent(ctx, "game.created", game, now, map[string]any{
		"organizer_id": organizer.UserID,
	}); err != nil {
		return entities.Game{}, err
	}

	logger.Info("game created",
		"event", "game_created",
		"module", "narrative/game-service",
		"layer", "application",
		"game_id", game.GameID,
		"organizer_id", organizer.UserID,
	)
	return game, nil
}

// UpdateSettings replaces the consensus settings. Organizer only.
func (uc GameUseCase) UpdateSettings(ctx context.Context, cmd UpdateSettingsCommand) (entities.Game, error) {
	game, err := uc.Games.GetGame(ctx, cmd.GameID)
	if err != nil {
		return entities.Game{}, err
	}
	if err := uc.requireOrganizer(ctx, game.GameID, cmd.ActorID); err != nil {
		return entities.Game{}, err
	}
	settings := cmd.Settings.Normalize()
	if !settings.Valid() {
		return entities.Game{}, domainerrors.ErrInvalidGameInput
	}
	game.Settings = settings
	game.UpdatedAt = uc.now()
	if err := uc.Games.SaveGame(ctx, game); err != nil {
		return entities.Game{}, err
	}
	return game, nil
}

// CreateInvitation mints a single-use join token. Organizer only.
func (uc GameUseCase) CreateInvitation(ctx context.Context, gameID string, actorID string) (entities.Invitation, error) {
	game, err := uc.Games.GetGame(ctx, gameID)
	if err != nil {
		return entities.Invitation{}, err
	}
	if err := uc.requireOrganizer(ctx, game.GameID, actorID); err != nil {
		return entities.Invitation{}, err
	}

	now := uc.now()
	invitationID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Invitation{}, err
	}
	token, err := uc.Tokens.NewToken(ctx)
	if err != nil {
		return entities.Invitation{}, err
	}
	invitation := entities.Invitation{
		InvitationID: invitationID,
		GameID:       game.GameID,
		Token:        token,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.Games.SaveInvitation(ctx, invitation); err != nil {
		return entities.Invitation{}, err
	}
	return invitation, nil
}

// RedeemInvitation seats a new player. The repository runs the check/act
// sequence in one transaction; a concurrent redemption of the same token
// or a racing fifth join loses cleanly.
func (uc GameUseCase) RedeemInvitation(ctx context.Context, token string, userID string) (entities.GameMember, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(token) == "" || strings.TrimSpace(userID) == "" {
		return entities.GameMember{}, domainerrors.ErrInvalidGameInput
	}

	now := uc.now()
	memberID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.GameMember{}, err
	}
	member, err := uc.Games.RedeemInvitation(ctx, strings.TrimSpace(token), entities.GameMember{
		MemberID:  memberID,
		UserID:    strings.TrimSpace(userID),
		Role:      entities.RolePlayer,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return entities.GameMember{}, err
	}

	game, err := uc.Games.GetGame(ctx, member.GameID)
	if err == nil {
		if appendErr := uc.appendGameEvent(ctx, "member.joined", game, now, map[string]any{
			"user_id": member.UserID,
		}); appendErr != nil {
			return entities.GameMember{}, appendErr
		}
	}

	logger.Info("invitation redeemed",
		"event", "game_invitation_redeemed",
		"module", "narrative/game-service",
		"layer", "application",
		"game_id", member.GameID,
		"user_id", member.UserID,
	)
	return member, nil
}

// LeaveGame removes a member from the roster. Eligibility for open
// proposals shrinks immediately because the engine re-reads the roster at
// every evaluation.
func (uc GameUseCase) LeaveGame(ctx context.Context, gameID string, userID string) error {
	member, found, err := uc.Games.GetMemberByUser(ctx, gameID, userID)
	if err != nil {
		return err
	}
	if !found {
		return domainerrors.ErrNotGameMember
	}
	if err := uc.Games.DeleteMember(ctx, gameID, userID); err != nil {
		return err
	}
	game, err := uc.Games.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	return uc.appendGameEvent(ctx, "member.left", game, uc.now(), map[string]any{
		"user_id": member.UserID,
	})
}

// ProposeReadyToPlay opens the readiness ballot. In a solo game the
// proposer's implicit yes resolves it immediately and the game activates
// in the same call.
func (uc GameUseCase) ProposeReadyToPlay(ctx context.Context, gameID string, proposerID string) (entities.Game, ports.ProposalOutcome, error) {
	return uc.proposeActivation(ctx, gameID, proposerID, "ready_to_play")
}

// ProposeWorldDocApproval opens the world-document ballot; approval also
// activates a setup game.
func (uc GameUseCase) ProposeWorldDocApproval(ctx context.Context, gameID string, proposerID string) (entities.Game, ports.ProposalOutcome, error) {
	return uc.proposeActivation(ctx, gameID, proposerID, "world_doc_approval")
}

func (uc GameUseCase) proposeActivation(ctx context.Context, gameID string, proposerID string, kind string) (entities.Game, ports.ProposalOutcome, error) {
	game, err := uc.Games.GetGame(ctx, gameID)
	if err != nil {
		return entities.Game{}, ports.ProposalOutcome{}, err
	}
	if game.Status != entities.GameStatusSetup {
		return entities.Game{}, ports.ProposalOutcome{}, domainerrors.ErrConflict
	}
	outcome, err := uc.Engine.OpenProposal(ctx, game.GameID, kind, "game", game.GameID, proposerID)
	if err != nil {
		return entities.Game{}, ports.ProposalOutcome{}, err
	}
	game, err = uc.ReconcileStatus(ctx, game.GameID)
	if err != nil {
		return entities.Game{}, ports.ProposalOutcome{}, err
	}
	return game, outcome, nil
}

// ReconcileStatus applies any resolved activation proposal to a setup
// game. Read paths call this so an approval reached by silence shows up
// without a round trip through the worker.
func (uc GameUseCase) ReconcileStatus(ctx context.Context, gameID string) (entities.Game, error) {
	game, err := uc.Games.GetGame(ctx, gameID)
	if err != nil {
		return entities.Game{}, err
	}
	if game.Status != entities.GameStatusSetup {
		return game, nil
	}
	for _, kind := range []string{"ready_to_play", "world_doc_approval"} {
		outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kind, game.GameID)
		if err != nil {
			return entities.Game{}, err
		}
		if !found || !outcome.Resolved || outcome.Status != "approved" {
			continue
		}
		now := uc.now()
		game.Status = entities.GameStatusActive
		game.UpdatedAt = now
		if err := uc.Games.SaveGame(ctx, game); err != nil {
			return entities.Game{}, err
		}
		if err := uc.appendGameEvent(ctx, "game.activated", game, now, map[string]any{
			"via": kind,
		}); err != nil {
			return entities.Game{}, err
		}
		application.ResolveLogger(uc.Logger).Info("game activated",
			"event", "game_activated",
			"module", "narrative/game-service",
			"layer", "application",
			"game_id", game.GameID,
			"via", kind,
		)
		break
	}
	return game, nil
}

func (uc GameUseCase) requireOrganizer(ctx context.Context, gameID string, actorID string) error {
	member, found, err := uc.Games.GetMemberByUser(ctx, gameID, actorID)
	if err != nil {
		return err
	}
	if !found {
		return domainerrors.ErrNotGameMember
	}
	if member.Role != entities.RoleOrganizer {
		return domainerrors.ErrNotOrganizer
	}
	return nil
}

func (uc GameUseCase) appendGameEvent(
	ctx context.Context,
	eventType string,
	game entities.Game,
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
		"game_id":     game.GameID,
		"status":      string(game.Status),
		"occurred_at": occurredAt.UTC().Format(time.RFC3339),
	}
	for key, value := range data {
		payload[key] = value
	}
	return uc.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "game-service",
		OccurredAtUTC:  occurredAt.UTC(),
		GameID:         game.GameID,
		EntityType:     "game",
		EntityID:       game.GameID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

func (uc GameUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
