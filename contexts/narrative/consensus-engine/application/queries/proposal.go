package queries

import (
	"context"
	"time"

	"loom/contexts/narrative/consensus-engine/domain/entities"
	"loom/contexts/narrative/consensus-engine/ports"
)

// ProposalView is a proposal together with its live tally against the
// current roster.
type ProposalView struct {
	Proposal  entities.Proposal
	Votes     []entities.Vote
	Tally     entities.Tally
	Threshold int
	Deadline  time.Time
}

// ProposalQueryUseCase serves read models. Callers that need timer
// correctness resolve through the command use case first; reads themselves
// never mutate.
type ProposalQueryUseCase struct {
	Proposals  ports.ProposalRepository
	Membership ports.MembershipSource
}

func (uc ProposalQueryUseCase) Get(ctx context.Context, proposalID string) (ProposalView, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return ProposalView{}, err
	}
	votes, err := uc.Proposals.ListVotesByProposal(ctx, proposal.ProposalID)
	if err != nil {
		return ProposalView{}, err
	}
	eligibleIDs, err := uc.Membership.ListActiveMemberIDs(ctx, proposal.GameID)
	if err != nil {
		return ProposalView{}, err
	}
	tally := entities.NewTally(votes, eligibleIDs)
	return ProposalView{
		Proposal:  proposal,
		Votes:     votes,
		Tally:     tally,
		Threshold: tally.Threshold(),
		Deadline:  proposal.Deadline(),
	}, nil
}

// LatestBySubject returns the most recently opened proposal of a kind for
// a subject, open or terminal.
func (uc ProposalQueryUseCase) LatestBySubject(
	ctx context.Context,
	kind entities.ProposalKind,
	subjectID string,
) (entities.Proposal, bool, error) {
	return uc.Proposals.GetLatestProposalBySubject(ctx, kind, subjectID)
}

// OpenBySubject returns the single open proposal of a kind for a subject,
// when one exists.
func (uc ProposalQueryUseCase) OpenBySubject(
	ctx context.Context,
	kind entities.ProposalKind,
	subjectID string,
) (entities.Proposal, bool, error) {
	return uc.Proposals.GetOpenProposalBySubject(ctx, kind, subjectID)
}

func (uc ProposalQueryUseCase) ListOpenByGame(ctx context.Context, gameID string) ([]entities.Proposal, error) {
	return uc.Proposals.ListOpenProposalsByGame(ctx, gameID)
}
