package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"loom/contexts/narrative/beat-service/application"
	"loom/contexts/narrative/beat-service/domain/entities"
	domainerrors "loom/contexts/narrative/beat-service/domain/errors"
	"loom/contexts/narrative/beat-service/ports"
	"loom/internal/shared/events"
)

const (
	kindBeatApproval        = "beat_approval"
	kindChallengeResolution = "challenge_resolution"

	statusApproved = "approved"
	statusRejected = "rejected"
)

// EventInput is one unresolved event in a submission. Roll and fortune_roll
// entries are resolved server-side before the beat is stored.
type EventInput struct {
	Type     entities.BeatEventType
	Text     string
	Notation string
	Odds     string
}

type SubmitBeatCommand struct {
	SceneID  string
	AuthorID string
	// RevisesBeatID resubmits the replacement for a beat parked in revised
	// after a lost challenge. The revision is forced major and goes back to
	// the table for approval regardless of any override.
	RevisesBeatID string
	// SignificanceOverride skips the AI suggestion when set. An exceptional
	// fortune outcome still forces major.
	SignificanceOverride *entities.BeatSignificance
	Events               []EventInput
}

// BeatUseCase drives beat submission, approval reconciliation and the
// challenge lifecycle.
type BeatUseCase struct {
	Beats      ports.BeatRepository
	Scenes     ports.SceneSource
	Games      ports.GameSource
	Members    ports.MembershipSource
	Classifier ports.SignificanceClassifier
	Roller     ports.Roller
	Engine     ports.ProposalEngine
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

// SubmitBeat resolves the submission's rolls, settles significance and
// stores the beat: minor beats land canon immediately, major beats go to a
// beat_approval ballot.
func (uc BeatUseCase) SubmitBeat(ctx context.Context, cmd SubmitBeatCommand) (entities.Beat, error) {
	if strings.TrimSpace(cmd.SceneID) == "" ||
		strings.TrimSpace(cmd.AuthorID) == "" ||
		len(cmd.Events) == 0 {
		return entities.Beat{}, domainerrors.ErrInvalidBeatInput
	}
	scene, err := uc.Scenes.GetSceneInfo(ctx, strings.TrimSpace(cmd.SceneID))
	if err != nil {
		return entities.Beat{}, err
	}
	if scene.Status != "active" {
		return entities.Beat{}, domainerrors.ErrSceneNotActive
	}
	if err := uc.requireMember(ctx, scene.GameID, cmd.AuthorID); err != nil {
		return entities.Beat{}, err
	}

	resolved, exceptional, err := uc.resolveEvents(ctx, scene, cmd.Events)
	if err != nil {
		return entities.Beat{}, err
	}

	version := 1
	revisesBeatID := strings.TrimSpace(cmd.RevisesBeatID)
	if revisesBeatID != "" {
		ancestor, err := uc.Beats.GetBeat(ctx, revisesBeatID)
		if err != nil {
			return entities.Beat{}, err
		}
		if ancestor.AuthorID != strings.TrimSpace(cmd.AuthorID) {
			return entities.Beat{}, domainerrors.ErrNotBeatAuthor
		}
		if ancestor.SceneID != strings.TrimSpace(cmd.SceneID) {
			return entities.Beat{}, domainerrors.ErrInvalidBeatInput
		}
		if ancestor.Status != entities.BeatStatusRevised {
			return entities.Beat{}, domainerrors.ErrBeatNotRevised
		}
		version = ancestor.Version + 1
	}

	significance, rationale := entities.SignificanceMajor, "challenge revision"
	if revisesBeatID == "" {
		significance, rationale, err = uc.settleSignificance(ctx, scene.GameID, cmd.SignificanceOverride, resolved, exceptional)
		if err != nil {
			return entities.Beat{}, err
		}
	}

	beatID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Beat{}, err
	}
	now := uc.now()
	beat := entities.Beat{
		BeatID:        beatID,
		SceneID:       strings.TrimSpace(cmd.SceneID),
		GameID:        scene.GameID,
		AuthorID:      strings.TrimSpace(cmd.AuthorID),
		Significance:  significance,
		SignRationale: rationale,
		Status:        entities.BeatStatusProposed,
		Events:        resolved,
		Version:       version,
		RevisesBeatID: revisesBeatID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if significance == entities.SignificanceMinor {
		beat.Status = entities.BeatStatusCanon
	}
	if err := uc.Beats.SaveBeat(ctx, beat); err != nil {
		return entities.Beat{}, err
	}
	var submitData map[string]any
	if revisesBeatID != "" {
		submitData = map[string]any{"revises_beat_id": revisesBeatID}
	}
	if err := uc.appendBeatEvent(ctx, "beat.submitted", beat, now, submitData); err != nil {
		return entities.Beat{}, err
	}

	var proposalID string
	if beat.Status == entities.BeatStatusProposed {
		outcome, err := uc.Engine.OpenProposal(ctx, beat.GameID, kindBeatApproval, "beat", beat.BeatID, beat.AuthorID)
		if err != nil {
			return entities.Beat{}, err
		}
		proposalID = outcome.ProposalID
	} else if err := uc.appendBeatEvent(ctx, "beat.canon", beat, now, nil); err != nil {
		return entities.Beat{}, err
	}

	application.ResolveLogger(uc.Logger).Info("beat submitted",
		"event", "beat_submitted",
		"module", "narrative/beat-service",
		"layer", "application",
		"game_id", beat.GameID,
		"scene_id", beat.SceneID,
		"beat_id", beat.BeatID,
		"significance", string(beat.Significance),
		"status", string(beat.Status),
		"proposal_id", proposalID,
	)
	if beat.Status == entities.BeatStatusProposed {
		return uc.ReconcileBeat(ctx, beat.BeatID)
	}
	return beat, nil
}

// ReconcileBeat folds resolved ballots into the beat: approval outcomes for
// proposed beats, escalation and resolution outcomes for challenged ones.
// Safe to call on every read.
func (uc BeatUseCase) ReconcileBeat(ctx context.Context, beatID string) (entities.Beat, error) {
	beat, err := uc.Beats.GetBeat(ctx, beatID)
	if err != nil {
		return entities.Beat{}, err
	}
	switch beat.Status {
	case entities.BeatStatusProposed:
		outcome, found, err := uc.Engine.ResolvedOutcome(ctx, kindBeatApproval, beat.BeatID)
		if err != nil {
			return entities.Beat{}, err
		}
		if !found {
			return beat, nil
		}
		switch outcome.Status {
		case statusApproved:
			return uc.transitionBeat(ctx, beat, entities.BeatStatusCanon, "beat.canon")
		case statusRejected:
			return uc.transitionBeat(ctx, beat, entities.BeatStatusRejected, "beat.rejected")
		}
	case entities.BeatStatusChallenged:
		return uc.reconcileChallengedBeat(ctx, beat)
	}
	return beat, nil
}

// resolveEvents validates entries and rolls dice and fortune draws.
// Reports whether any fortune outcome came up exceptional.
func (uc BeatUseCase) resolveEvents(ctx context.Context, scene ports.SceneInfo, inputs []EventInput) ([]entities.BeatEvent, bool, error) {
	resolved := make([]entities.BeatEvent, 0, len(inputs))
	exceptional := false
	for _, input := range inputs {
		if !input.Type.Valid() {
			return nil, false, domainerrors.ErrInvalidBeatInput
		}
		event := entities.BeatEvent{Type: input.Type, Text: strings.TrimSpace(input.Text)}
		switch input.Type {
		case entities.EventNarrative, entities.EventOOC:
			if event.Text == "" || utf8.RuneCountInString(event.Text) > entities.MaxProseLength {
				return nil, false, domainerrors.ErrInvalidBeatInput
			}
		case entities.EventRoll:
			result, err := uc.Roller.RollDice(ctx, input.Notation)
			if err != nil {
				return nil, false, err
			}
			event.Notation = result.Notation
			event.Rolls = result.Rolls
			event.Total = result.Total
		case entities.EventFortuneRoll:
			result, err := uc.Roller.RollFortune(ctx, input.Odds, scene.Tension)
			if err != nil {
				return nil, false, err
			}
			event.Odds = result.Odds
			event.Tension = result.Tension
			event.Outcome = result.Outcome
			if result.Exceptional {
				exceptional = true
			}
		}
		resolved = append(resolved, event)
	}
	return resolved, exceptional, nil
}

func (uc BeatUseCase) settleSignificance(
	ctx context.Context,
	gameID string,
	override *entities.BeatSignificance,
	resolved []entities.BeatEvent,
	exceptional bool,
) (entities.BeatSignificance, string, error) {
	if exceptional {
		return entities.SignificanceMajor, "exceptional fortune outcome", nil
	}
	if override != nil {
		if !override.Valid() {
			return "", "", domainerrors.ErrInvalidBeatInput
		}
		return *override, "author override", nil
	}
	significance, rationale := entities.SignificanceMinor, ""
	if uc.Classifier != nil {
		info, err := uc.Games.GetGameInfo(ctx, gameID)
		if err != nil {
			return "", "", err
		}
		suggested, why := uc.Classifier.Classify(ctx, gameID, info.SignificanceThreshold, narrativeText(resolved))
		if entities.BeatSignificance(suggested).Valid() {
			significance, rationale = entities.BeatSignificance(suggested), why
		}
	}
	return significance, rationale, nil
}

func narrativeText(resolved []entities.BeatEvent) string {
	parts := make([]string, 0, len(resolved))
	for _, event := range resolved {
		if event.Type == entities.EventNarrative && event.Text != "" {
			parts = append(parts, event.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (uc BeatUseCase) transitionBeat(ctx context.Context, beat entities.Beat, to entities.BeatStatus, eventType string) (entities.Beat, error) {
	now := uc.now()
	beat.Status = to
	beat.UpdatedAt = now
	if err := uc.Beats.SaveBeat(ctx, beat); err != nil {
		return entities.Beat{}, err
	}
	if err := uc.appendBeatEvent(ctx, eventType, beat, now, nil); err != nil {
		return entities.Beat{}, err
	}
	return beat, nil
}

func (uc BeatUseCase) requireMember(ctx context.Context, gameID string, userID string) error {
	member, err := uc.Members.IsActiveMember(ctx, gameID, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if !member {
		return domainerrors.ErrNotGameMember
	}
	return nil
}

func (uc BeatUseCase) appendBeatEvent(
	ctx context.Context,
	eventType string,
	beat entities.Beat,
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
		"beat_id":      beat.BeatID,
		"scene_id":     beat.SceneID,
		"game_id":      beat.GameID,
		"author_id":    beat.AuthorID,
		"significance": string(beat.Significance),
		"status":       string(beat.Status),
	}
	for key, value := range data {
		payload[key] = value
	}
	return uc.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "beat-service",
		OccurredAtUTC:  occurredAt.UTC(),
		GameID:         beat.GameID,
		EntityType:     "beat",
		EntityID:       beat.BeatID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

func (uc BeatUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
