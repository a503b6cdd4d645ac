package gameservice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"loom/contexts/narrative/game-service/application/commands"
	"loom/contexts/narrative/game-service/domain/entities"
	domainerrors "loom/contexts/narrative/game-service/domain/errors"
	"loom/contexts/narrative/game-service/ports"
)

func createGame(t *testing.T, module Module, creator string) entities.Game {
	t.Helper()
	game, err := module.Games.CreateGame(context.Background(), commands.CreateGameCommand{
		Name:      "The Drowned Coast",
		CreatorID: creator,
	})
	if err != nil {
		t.Fatalf("create game failed: %v", err)
	}
	return game
}

func TestCreateGameSeatsOrganizerWithDefaults(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	if game.Status != entities.GameStatusSetup {
		t.Fatalf("new game status %s, want setup", game.Status)
	}
	if game.Settings.SilenceTimerHours != entities.DefaultSilenceTimerHours {
		t.Fatalf("silence timer %d, want default %d",
			game.Settings.SilenceTimerHours, entities.DefaultSilenceTimerHours)
	}
	if game.Settings.StartingTension != entities.DefaultStartingTension {
		t.Fatalf("starting tension %d, want %d",
			game.Settings.StartingTension, entities.DefaultStartingTension)
	}

	members, err := module.Queries.Members(context.Background(), game.GameID)
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "alice" || members[0].Role != entities.RoleOrganizer {
		t.Fatalf("unexpected roster after creation: %+v", members)
	}
}

func TestInvitationRedemptionIsSingleUse(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	invitation, err := module.Games.CreateInvitation(context.Background(), game.GameID, "alice")
	if err != nil {
		t.Fatalf("create invitation failed: %v", err)
	}

	member, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, "bob")
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if member.Role != entities.RolePlayer {
		t.Fatalf("joined role %s, want player", member.Role)
	}

	if _, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, "carol"); !errors.Is(err, domainerrors.ErrInvitationInactive) {
		t.Fatalf("second redemption got %v, want invitation inactive", err)
	}
}

func TestInvitationRedemptionEnforcesMemberCap(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	for i := 0; i < entities.MaxMembers-1; i++ {
		invitation, err := module.Games.CreateInvitation(context.Background(), game.GameID, "alice")
		if err != nil {
			t.Fatalf("create invitation failed: %v", err)
		}
		if _, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, fmt.Sprintf("player-%d", i)); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}

	invitation, err := module.Games.CreateInvitation(context.Background(), game.GameID, "alice")
	if err != nil {
		t.Fatalf("create invitation failed: %v", err)
	}
	if _, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, "one-too-many"); !errors.Is(err, domainerrors.ErrGameFull) {
		t.Fatalf("sixth join got %v, want game full", err)
	}
}

func TestDuplicateJoinIsBenignConflict(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	invitation, err := module.Games.CreateInvitation(context.Background(), game.GameID, "alice")
	if err != nil {
		t.Fatalf("create invitation failed: %v", err)
	}
	if _, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, "alice"); !errors.Is(err, domainerrors.ErrAlreadyMember) {
		t.Fatalf("organizer rejoin got %v, want already member", err)
	}
}

func TestOnlyOrganizerManagesSettingsAndInvitations(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	invitation, err := module.Games.CreateInvitation(context.Background(), game.GameID, "alice")
	if err != nil {
		t.Fatalf("create invitation failed: %v", err)
	}
	if _, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, "bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if _, err := module.Games.CreateInvitation(context.Background(), game.GameID, "bob"); !errors.Is(err, domainerrors.ErrNotOrganizer) {
		t.Fatalf("player invitation got %v, want not organizer", err)
	}
	_, err = module.Games.UpdateSettings(context.Background(), commands.UpdateSettingsCommand{
		GameID:  game.GameID,
		ActorID: "bob",
		Settings: entities.Settings{
			SilenceTimerHours: 6,
		},
	})
	if !errors.Is(err, domainerrors.ErrNotOrganizer) {
		t.Fatalf("player settings update got %v, want not organizer", err)
	}
}

func TestReadyToPlayApprovalActivatesGame(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	module.Store.SetProposalOutcome("ready_to_play", game.GameID, ports.ProposalOutcome{
		ProposalID: "proposal-1",
		Status:     "approved",
		Resolved:   true,
	})

	updated, outcome, err := module.Games.ProposeReadyToPlay(context.Background(), game.GameID, "alice")
	if err != nil {
		t.Fatalf("propose ready to play failed: %v", err)
	}
	if outcome.ProposalID != "proposal-1" {
		t.Fatalf("outcome proposal %s, want proposal-1", outcome.ProposalID)
	}
	if updated.Status != entities.GameStatusActive {
		t.Fatalf("game status %s after approved readiness, want active", updated.Status)
	}

	activated := false
	for _, eventType := range module.Store.OutboxEventTypes() {
		if eventType == "game.activated" {
			activated = true
		}
	}
	if !activated {
		t.Fatalf("activation emitted no game.activated event")
	}
}

func TestReconcileLeavesSetupGameWhenBallotStillOpen(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	if _, _, err := module.Games.ProposeReadyToPlay(context.Background(), game.GameID, "alice"); err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	reconciled, err := module.Games.ReconcileStatus(context.Background(), game.GameID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if reconciled.Status != entities.GameStatusSetup {
		t.Fatalf("game status %s with open ballot, want setup", reconciled.Status)
	}
}

func TestLeaveGameRemovesMember(t *testing.T) {
	module := NewInMemoryModule(nil)
	game := createGame(t, module, "alice")

	invitation, err := module.Games.CreateInvitation(context.Background(), game.GameID, "alice")
	if err != nil {
		t.Fatalf("create invitation failed: %v", err)
	}
	if _, err := module.Games.RedeemInvitation(context.Background(), invitation.Token, "bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := module.Games.LeaveGame(context.Background(), game.GameID, "bob"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	ids, err := module.Queries.ActiveMemberIDs(context.Background(), game.GameID)
	if err != nil {
		t.Fatalf("member ids failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("roster after leave: %v", ids)
	}
}
