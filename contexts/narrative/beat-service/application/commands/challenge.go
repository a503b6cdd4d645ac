package commands

import (
	"context"
	"strings"
	"time"

	"loom/contexts/narrative/beat-service/application"
	"loom/contexts/narrative/beat-service/domain/entities"
	domainerrors "loom/contexts/narrative/beat-service/domain/errors"
	"loom/internal/shared/events"
)

type FileChallengeCommand struct {
	BeatID       string
	ChallengerID string
	Reason       string
}

type AcceptChallengeCommand struct {
	ChallengeID string
	ActorID     string
	// RevisedEvents form the replacement beat, submitted forced major.
	RevisedEvents []EventInput
}

// FileChallenge disputes a canon beat. The beat moves to challenged and the
// table discusses; past the silence window the challenge escalates to a
// challenge_resolution ballot.
func (uc BeatUseCase) FileChallenge(ctx context.Context, cmd FileChallengeCommand) (entities.Challenge, error) {
	if strings.TrimSpace(cmd.BeatID) == "" ||
		strings.TrimSpace(cmd.ChallengerID) == "" ||
		strings.TrimSpace(cmd.Reason) == "" {
		return entities.Challenge{}, domainerrors.ErrInvalidBeatInput
	}
	beat, err := uc.ReconcileBeat(ctx, strings.TrimSpace(cmd.BeatID))
	if err != nil {
		return entities.Challenge{}, err
	}
	if beat.Status != entities.BeatStatusCanon {
		return entities.Challenge{}, domainerrors.ErrBeatNotCanon
	}
	if err := uc.requireMember(ctx, beat.GameID, cmd.ChallengerID); err != nil {
		return entities.Challenge{}, err
	}
	if _, open, err := uc.Beats.GetOpenChallengeByBeat(ctx, beat.BeatID); err != nil {
		return entities.Challenge{}, err
	} else if open {
		return entities.Challenge{}, domainerrors.ErrOpenChallengeExists
	}

	challengeID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Challenge{}, err
	}
	info, err := uc.Games.GetGameInfo(ctx, beat.GameID)
	if err != nil {
		return entities.Challenge{}, err
	}
	now := uc.now()
	challenge := entities.Challenge{
		ChallengeID:  challengeID,
		BeatID:       beat.BeatID,
		GameID:       beat.GameID,
		ChallengerID: strings.TrimSpace(cmd.ChallengerID),
		Reason:       strings.TrimSpace(cmd.Reason),
		Status:       entities.ChallengeStatusOpen,
		OpenedAt:     now,
		DueAt:        now.Add(info.SilenceTimer),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.Beats.SaveChallenge(ctx, challenge); err != nil {
		return entities.Challenge{}, err
	}
	if _, err := uc.transitionBeat(ctx, beat, entities.BeatStatusChallenged, "beat.challenged"); err != nil {
		return entities.Challenge{}, err
	}
	if err := uc.appendChallengeEvent(ctx, "challenge.filed", challenge, now, map[string]any{
		"reason": challenge.Reason,
	}); err != nil {
		return entities.Challenge{}, err
	}
	application.ResolveLogger(uc.Logger).Info("challenge filed",
		"event", "beat_challenge_filed",
		"module", "narrative/beat-service",
		"layer", "application",
		"game_id", challenge.GameID,
		"beat_id", challenge.BeatID,
		"challenge_id", challenge.ChallengeID,
	)
	return challenge, nil
}

// AcceptChallenge concedes the dispute: the old beat is marked revised and
// the replacement is submitted as a new version, forced major. Author only.
func (uc BeatUseCase) AcceptChallenge(ctx context.Context, cmd AcceptChallengeCommand) (entities.Beat, error) {
	challenge, beat, err := uc.openChallengeAndBeat(ctx, cmd.ChallengeID)
	if err != nil {
		return entities.Beat{}, err
	}
	if strings.TrimSpace(cmd.ActorID) != beat.AuthorID {
		return entities.Beat{}, domainerrors.ErrNotBeatAuthor
	}
	if len(cmd.RevisedEvents) == 0 {
		return entities.Beat{}, domainerrors.ErrInvalidBeatInput
	}
	scene, err := uc.Scenes.GetSceneInfo(ctx, beat.SceneID)
	if err != nil {
		return entities.Beat{}, err
	}
	resolved, _, err := uc.resolveEvents(ctx, scene, cmd.RevisedEvents)
	if err != nil {
		return entities.Beat{}, err
	}

	now := uc.now()
	challenge.Status = entities.ChallengeStatusAccepted
	challenge.ResolvedAt = &now
	challenge.UpdatedAt = now
	if err := uc.Beats.SaveChallenge(ctx, challenge); err != nil {
		return entities.Beat{}, err
	}
	if _, err := uc.transitionBeat(ctx, beat, entities.BeatStatusRevised, "beat.revised"); err != nil {
		return entities.Beat{}, err
	}
	if err := uc.appendChallengeEvent(ctx, "challenge.accepted", challenge, now, nil); err != nil {
		return entities.Beat{}, err
	}

	revisionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Beat{}, err
	}
	revision := entities.Beat{
		BeatID:        revisionID,
		SceneID:       beat.SceneID,
		GameID:        beat.GameID,
		AuthorID:      beat.AuthorID,
		Significance:  entities.SignificanceMajor,
		SignRationale: "challenge revision",
		Status:        entities.BeatStatusProposed,
		Events:        resolved,
		Version:       beat.Version + 1,
		RevisesBeatID: beat.BeatID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.Beats.SaveBeat(ctx, revision); err != nil {
		return entities.Beat{}, err
	}
	if err := uc.appendBeatEvent(ctx, "beat.submitted", revision, now, map[string]any{
		"revises_beat_id": beat.BeatID,
	}); err != nil {
		return entities.Beat{}, err
	}
	if _, err := uc.Engine.OpenProposal(ctx, revision.GameID, kindBeatApproval, "beat", revision.BeatID, revision.AuthorID); err != nil {
		return entities.Beat{}, err
	}
	application.ResolveLogger(uc.Logger).Info("challenge accepted",
		"event", "beat_challenge_accepted",
		"module", "narrative/beat-service",
		"layer", "application",
		"game_id", beat.GameID,
		"beat_id", beat.BeatID,
		"challenge_id", challenge.ChallengeID,
		"revision_beat_id", revision.BeatID,
	)
	return uc.ReconcileBeat(ctx, revision.BeatID)
}

// DismissChallenge rejects the dispute and restores the beat to canon.
// Author only.
func (uc BeatUseCase) DismissChallenge(ctx context.Context, challengeID string, actorID string) (entities.Challenge, error) {
	challenge, beat, err := uc.openChallengeAndBeat(ctx, challengeID)
	if err != nil {
		return entities.Challenge{}, err
	}
	if strings.TrimSpace(actorID) != beat.AuthorID {
		return entities.Challenge{}, domainerrors.ErrNotBeatAuthor
	}
	return uc.closeChallengeBeatStands(ctx, challenge, beat, entities.ChallengeStatusDismissed, "challenge.dismissed")
}

// AddComment appends a discussion entry to an open challenge.
func (uc BeatUseCase) AddComment(ctx context.Context, challengeID string, authorID string, text string) (entities.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return entities.Comment{}, domainerrors.ErrInvalidBeatInput
	}
	challenge, err := uc.Beats.GetChallenge(ctx, strings.TrimSpace(challengeID))
	if err != nil {
		return entities.Comment{}, err
	}
	if !challenge.Open() {
		return entities.Comment{}, domainerrors.ErrChallengeNotOpen
	}
	if err := uc.requireMember(ctx, challenge.GameID, authorID); err != nil {
		return entities.Comment{}, err
	}
	commentID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Comment{}, err
	}
	comment := entities.Comment{
		CommentID:   commentID,
		ChallengeID: challenge.ChallengeID,
		AuthorID:    strings.TrimSpace(authorID),
		Text:        strings.TrimSpace(text),
		CreatedAt:   uc.now(),
	}
	if err := uc.Beats.SaveComment(ctx, comment); err != nil {
		return entities.Comment{}, err
	}
	return comment, nil
}

// EscalateChallengeIfDue opens the challenge_resolution ballot once the
// challenge has sat open past the game's silence window. Idempotent.
func (uc BeatUseCase) EscalateChallengeIfDue(ctx context.Context, challengeID string) (entities.Challenge, error) {
	challenge, err := uc.Beats.GetChallenge(ctx, strings.TrimSpace(challengeID))
	if err != nil {
		return entities.Challenge{}, err
	}
	if !challenge.Open() || challenge.EscalationProposalID != "" {
		return challenge, nil
	}
	if uc.now().Before(challenge.DueAt) {
		return challenge, nil
	}
	outcome, err := uc.Engine.OpenSystemProposal(ctx, challenge.GameID, kindChallengeResolution, "challenge", challenge.ChallengeID, challenge.Reason)
	if err != nil {
		return entities.Challenge{}, err
	}
	now := uc.now()
	challenge.EscalationProposalID = outcome.ProposalID
	challenge.UpdatedAt = now
	if err := uc.Beats.SaveChallenge(ctx, challenge); err != nil {
		return entities.Challenge{}, err
	}
	if err := uc.appendChallengeEvent(ctx, "challenge.escalated", challenge, now, map[string]any{
		"proposal_id": outcome.ProposalID,
	}); err != nil {
		return entities.Challenge{}, err
	}
	application.ResolveLogger(uc.Logger).Info("challenge escalated",
		"event", "beat_challenge_escalated",
		"module", "narrative/beat-service",
		"layer", "application",
		"game_id", challenge.GameID,
		"challenge_id", challenge.ChallengeID,
		"proposal_id", outcome.ProposalID,
	)
	return challenge, nil
}

// reconcileChallengedBeat escalates a due challenge and folds a resolved
// challenge_resolution ballot back: approved means the beat stands,
// rejected means the challenge is accepted and the beat goes to revised for
// the author to resubmit.
func (uc BeatUseCase) reconcileChallengedBeat(ctx context.Context, beat entities.Beat) (entities.Beat, error) {
	challenge, open, err := uc.Beats.GetOpenChallengeByBeat(ctx, beat.BeatID)
	if err != nil {
		return entities.Beat{}, err
	}
	if !open {
		return beat, nil
	}
	challenge, err = uc.EscalateChallengeIfDue(ctx, challenge.ChallengeID)
	if err != nil {
		return entities.Beat{}, err
	}
	if challenge.EscalationProposalID == "" {
		return beat, nil
	}
	outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindChallengeResolution, challenge.ChallengeID)
	if err != nil {
		return entities.Beat{}, err
	}
	if !found {
		return beat, nil
	}
	switch outcome.Status {
	case statusApproved:
		_, err := uc.closeChallengeBeatStands(ctx, challenge, beat, entities.ChallengeStatusDismissed, "challenge.dismissed")
		if err != nil {
			return entities.Beat{}, err
		}
		return uc.Beats.GetBeat(ctx, beat.BeatID)
	case statusRejected:
		now := uc.now()
		challenge.Status = entities.ChallengeStatusAccepted
		challenge.ResolvedAt = &now
		challenge.UpdatedAt = now
		if err := uc.Beats.SaveChallenge(ctx, challenge); err != nil {
			return entities.Beat{}, err
		}
		if err := uc.appendChallengeEvent(ctx, "challenge.accepted", challenge, now, map[string]any{
			"via": "consensus",
		}); err != nil {
			return entities.Beat{}, err
		}
		return uc.transitionBeat(ctx, beat, entities.BeatStatusRevised, "beat.revised")
	}
	return beat, nil
}

func (uc BeatUseCase) closeChallengeBeatStands(
	ctx context.Context,
	challenge entities.Challenge,
	beat entities.Beat,
	to entities.ChallengeStatus,
	eventType string,
) (entities.Challenge, error) {
	now := uc.now()
	challenge.Status = to
	challenge.ResolvedAt = &now
	challenge.UpdatedAt = now
	if err := uc.Beats.SaveChallenge(ctx, challenge); err != nil {
		return entities.Challenge{}, err
	}
	if _, err := uc.transitionBeat(ctx, beat, entities.BeatStatusCanon, "beat.canon"); err != nil {
		return entities.Challenge{}, err
	}
	if err := uc.appendChallengeEvent(ctx, eventType, challenge, now, nil); err != nil {
		return entities.Challenge{}, err
	}
	return challenge, nil
}

func (uc BeatUseCase) openChallengeAndBeat(ctx context.Context, challengeID string) (entities.Challenge, entities.Beat, error) {
	challenge, err := uc.Beats.GetChallenge(ctx, strings.TrimSpace(challengeID))
	if err != nil {
		return entities.Challenge{}, entities.Beat{}, err
	}
	if !challenge.Open() {
		return entities.Challenge{}, entities.Beat{}, domainerrors.ErrChallengeNotOpen
	}
	beat, err := uc.Beats.GetBeat(ctx, challenge.BeatID)
	if err != nil {
		return entities.Challenge{}, entities.Beat{}, err
	}
	return challenge, beat, nil
}

func (uc BeatUseCase) appendChallengeEvent(
	ctx context.Context,
	eventType string,
	challenge entities.Challenge,
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
		"challenge_id":  challenge.ChallengeID,
		"beat_id":       challenge.BeatID,
		"game_id":       challenge.GameID,
		"challenger_id": challenge.ChallengerID,
		"status":        string(challenge.Status),
	}
	for key, value := range data {
		payload[key] = value
	}
	return uc.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "beat-service",
		OccurredAtUTC:  occurredAt.UTC(),
		GameID:         challenge.GameID,
		EntityType:     "challenge",
		EntityID:       challenge.ChallengeID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}
