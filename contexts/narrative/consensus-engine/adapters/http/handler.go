package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"loom/contexts/narrative/consensus-engine/application/commands"
	"loom/contexts/narrative/consensus-engine/application/queries"
	"loom/contexts/narrative/consensus-engine/domain/entities"
	httptransport "loom/contexts/narrative/consensus-engine/transport/http"
)

type Handler struct {
	Proposals commands.ProposalUseCase
	Queries   queries.ProposalQueryUseCase
	Logger    *slog.Logger
}

func (h Handler) OpenProposalHandler(
	ctx context.Context,
	userID string,
	req httptransport.OpenProposalRequest,
) (httptransport.ProposalResponse, error) {
	result, err := h.Proposals.Open(ctx, commands.OpenProposalCommand{
		GameID:      req.GameID,
		Kind:        entities.ProposalKind(req.Kind),
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		ProposerID:  userID,
		AIRationale: req.Rationale,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return h.proposalView(ctx, result.Proposal.ProposalID)
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	proposalID string,
	userID string,
	req httptransport.CastVoteRequest,
) (httptransport.ProposalResponse, error) {
	_, err := h.Proposals.CastVote(ctx, commands.CastVoteCommand{
		ProposalID: proposalID,
		VoterID:    userID,
		Choice:     entities.VoteChoice(req.Choice),
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return h.proposalView(ctx, proposalID)
}

// GetProposalHandler resolves a due silence timer before reading, so an
// expired proposal is reported with its terminal status on first sight.
func (h Handler) GetProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	if _, err := h.Proposals.ResolveIfDue(ctx, proposalID); err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return h.proposalView(ctx, proposalID)
}

func (h Handler) ListOpenProposalsHandler(ctx context.Context, gameID string) (httptransport.ProposalListResponse, error) {
	open, err := h.Queries.ListOpenByGame(ctx, gameID)
	if err != nil {
		return httptransport.ProposalListResponse{}, err
	}
	resp := httptransport.ProposalListResponse{Items: make([]httptransport.ProposalResponse, 0, len(open))}
	for _, proposal := range open {
		// Lazy resolution may retire entries mid-listing.
		resolved, err := h.Proposals.ResolveIfDue(ctx, proposal.ProposalID)
		if err != nil {
			return httptransport.ProposalListResponse{}, err
		}
		if !resolved.Open() {
			continue
		}
		view, err := h.proposalView(ctx, proposal.ProposalID)
		if err != nil {
			return httptransport.ProposalListResponse{}, err
		}
		resp.Items = append(resp.Items, view)
	}
	return resp, nil
}

func (h Handler) proposalView(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	view, err := h.Queries.Get(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	votes := make([]httptransport.VoteBody, 0, len(view.Votes))
	for _, vote := range view.Votes {
		votes = append(votes, httptransport.VoteBody{VoterID: vote.VoterID, Choice: string(vote.Choice)})
	}
	return httptransport.ProposalResponse{
		ProposalID:      view.Proposal.ProposalID,
		GameID:          view.Proposal.GameID,
		Kind:            string(view.Proposal.Kind),
		Status:          string(view.Proposal.Status),
		ProposerID:      view.Proposal.ProposerID,
		SubjectType:     view.Proposal.SubjectType,
		SubjectID:       view.Proposal.SubjectID,
		OpenedAt:        view.Proposal.OpenedAt.UTC().Format(time.RFC3339),
		DeadlineAt:      view.Deadline.UTC().Format(time.RFC3339),
		Rationale:       view.Proposal.AIRationale,
		SuggestedDelta:  view.Proposal.SuggestedDelta,
		ResolutionCause: view.Proposal.ResolutionCause,
		WinningDelta:    view.Proposal.WinningDelta,
		Tally: httptransport.TallyBody{
			Yes:       view.Tally.Yes,
			No:        view.Tally.No,
			Suggest:   view.Tally.Suggest,
			Eligible:  view.Tally.Eligible,
			Threshold: view.Threshold,
		},
		Votes: votes,
	}, nil
}
