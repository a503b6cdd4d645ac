package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"loom/contexts/narrative/beat-service/application/commands"
	"loom/contexts/narrative/beat-service/application/queries"
	"loom/contexts/narrative/beat-service/domain/entities"
	httptransport "loom/contexts/narrative/beat-service/transport/http"
)

type Handler struct {
	Beats   commands.BeatUseCase
	Queries queries.BeatQueryUseCase
	Logger  *slog.Logger
}

func (h Handler) SubmitBeatHandler(
	ctx context.Context,
	userID string,
	req httptransport.SubmitBeatRequest,
) (httptransport.BeatResponse, error) {
	cmd := commands.SubmitBeatCommand{
		SceneID:       req.SceneID,
		AuthorID:      userID,
		RevisesBeatID: req.RevisesBeatID,
		Events:        eventInputs(req.Events),
	}
	if req.Significance != "" {
		significance := entities.BeatSignificance(req.Significance)
		cmd.SignificanceOverride = &significance
	}
	beat, err := h.Beats.SubmitBeat(ctx, cmd)
	if err != nil {
		return httptransport.BeatResponse{}, err
	}
	return beatBody(beat), nil
}

// GetBeatHandler reconciles resolved ballots before reading, so a
// silence-approved beat shows as canon and a due challenge escalates.
func (h Handler) GetBeatHandler(ctx context.Context, beatID string) (httptransport.BeatResponse, error) {
	beat, err := h.Beats.ReconcileBeat(ctx, beatID)
	if err != nil {
		return httptransport.BeatResponse{}, err
	}
	return beatBody(beat), nil
}

func (h Handler) ListBeatsHandler(ctx context.Context, sceneID string) (httptransport.BeatListResponse, error) {
	beats, err := h.Queries.ListBeats(ctx, sceneID)
	if err != nil {
		return httptransport.BeatListResponse{}, err
	}
	response := httptransport.BeatListResponse{Beats: make([]httptransport.BeatResponse, 0, len(beats))}
	for _, beat := range beats {
		reconciled, err := h.Beats.ReconcileBeat(ctx, beat.BeatID)
		if err != nil {
			return httptransport.BeatListResponse{}, err
		}
		response.Beats = append(response.Beats, beatBody(reconciled))
	}
	return response, nil
}

func (h Handler) FileChallengeHandler(
	ctx context.Context,
	beatID string,
	userID string,
	req httptransport.FileChallengeRequest,
) (httptransport.ChallengeResponse, error) {
	challenge, err := h.Beats.FileChallenge(ctx, commands.FileChallengeCommand{
		BeatID:       beatID,
		ChallengerID: userID,
		Reason:       req.Reason,
	})
	if err != nil {
		return httptransport.ChallengeResponse{}, err
	}
	return challengeBody(challenge), nil
}

func (h Handler) AcceptChallengeHandler(
	ctx context.Context,
	challengeID string,
	userID string,
	req httptransport.AcceptChallengeRequest,
) (httptransport.BeatResponse, error) {
	beat, err := h.Beats.AcceptChallenge(ctx, commands.AcceptChallengeCommand{
		ChallengeID:   challengeID,
		ActorID:       userID,
		RevisedEvents: eventInputs(req.Events),
	})
	if err != nil {
		return httptransport.BeatResponse{}, err
	}
	return beatBody(beat), nil
}

func (h Handler) DismissChallengeHandler(ctx context.Context, challengeID string, userID string) (httptransport.ChallengeResponse, error) {
	challenge, err := h.Beats.DismissChallenge(ctx, challengeID, userID)
	if err != nil {
		return httptransport.ChallengeResponse{}, err
	}
	return challengeBody(challenge), nil
}

func (h Handler) GetChallengeHandler(ctx context.Context, challengeID string) (httptransport.ChallengeResponse, error) {
	challenge, err := h.Queries.GetChallenge(ctx, challengeID)
	if err != nil {
		return httptransport.ChallengeResponse{}, err
	}
	// Escalation and resolution ride on the beat's reconcile path.
	if _, err := h.Beats.ReconcileBeat(ctx, challenge.BeatID); err != nil {
		return httptransport.ChallengeResponse{}, err
	}
	challenge, err = h.Queries.GetChallenge(ctx, challengeID)
	if err != nil {
		return httptransport.ChallengeResponse{}, err
	}
	return challengeBody(challenge), nil
}

func (h Handler) AddCommentHandler(
	ctx context.Context,
	challengeID string,
	userID string,
	req httptransport.AddCommentRequest,
) (httptransport.CommentBody, error) {
	comment, err := h.Beats.AddComment(ctx, challengeID, userID, req.Text)
	if err != nil {
		return httptransport.CommentBody{}, err
	}
	return commentBody(comment), nil
}

func (h Handler) ListCommentsHandler(ctx context.Context, challengeID string) (httptransport.CommentListResponse, error) {
	comments, err := h.Queries.ListComments(ctx, challengeID)
	if err != nil {
		return httptransport.CommentListResponse{}, err
	}
	response := httptransport.CommentListResponse{Comments: make([]httptransport.CommentBody, 0, len(comments))}
	for _, comment := range comments {
		response.Comments = append(response.Comments, commentBody(comment))
	}
	return response, nil
}

func eventInputs(bodies []httptransport.EventBody) []commands.EventInput {
	inputs := make([]commands.EventInput, 0, len(bodies))
	for _, body := range bodies {
		inputs = append(inputs, commands.EventInput{
			Type:     entities.BeatEventType(body.Type),
			Text:     body.Text,
			Notation: body.Notation,
			Odds:     body.Odds,
		})
	}
	return inputs
}

func beatBody(beat entities.Beat) httptransport.BeatResponse {
	eventBodies := make([]httptransport.EventBody, 0, len(beat.Events))
	for _, event := range beat.Events {
		eventBodies = append(eventBodies, httptransport.EventBody{
			Type:     string(event.Type),
			Text:     event.Text,
			Notation: event.Notation,
			Rolls:    event.Rolls,
			Total:    event.Total,
			Odds:     event.Odds,
			Tension:  event.Tension,
			Outcome:  event.Outcome,
		})
	}
	return httptransport.BeatResponse{
		BeatID:        beat.BeatID,
		SceneID:       beat.SceneID,
		GameID:        beat.GameID,
		AuthorID:      beat.AuthorID,
		Significance:  string(beat.Significance),
		Status:        string(beat.Status),
		Events:        eventBodies,
		Version:       beat.Version,
		RevisesBeatID: beat.RevisesBeatID,
		CreatedAt:     beat.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     beat.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func challengeBody(challenge entities.Challenge) httptransport.ChallengeResponse {
	body := httptransport.ChallengeResponse{
		ChallengeID:  challenge.ChallengeID,
		BeatID:       challenge.BeatID,
		GameID:       challenge.GameID,
		ChallengerID: challenge.ChallengerID,
		Reason:       challenge.Reason,
		Status:       string(challenge.Status),
		OpenedAt:     challenge.OpenedAt.UTC().Format(time.RFC3339),
	}
	if challenge.ResolvedAt != nil {
		body.ResolvedAt = challenge.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return body
}

func commentBody(comment entities.Comment) httptransport.CommentBody {
	return httptransport.CommentBody{
		CommentID: comment.CommentID,
		AuthorID:  comment.AuthorID,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt.UTC().Format(time.RFC3339),
	}
}
