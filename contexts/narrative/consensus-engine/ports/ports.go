package ports

import (
	"context"
	"time"

	"loom/contexts/narrative/consensus-engine/domain/entities"
	"loom/internal/shared/events"
)

type ProposalRepository interface {
	SaveProposal(ctx context.Context, proposal entities.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error)
	GetOpenProposalBySubject(ctx context.Context, kind entities.ProposalKind, subjectID string) (entities.Proposal, bool, error)
	GetLatestProposalBySubject(ctx context.Context, kind entities.ProposalKind, subjectID string) (entities.Proposal, bool, error)
	ListOpenProposalsByGame(ctx context.Context, gameID string) ([]entities.Proposal, error)
	ListDueOpenProposals(ctx context.Context, now time.Time, limit int) ([]entities.Proposal, error)

	SaveVote(ctx context.Context, vote entities.Vote) error
	GetVoteByIdentity(ctx context.Context, proposalID string, voterID string) (entities.Vote, bool, error)
	ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error)
}

// TxRunner runs fn inside one store transaction. Repository calls made
// with the context fn receives join that transaction, so a proposal, its
// implicit vote and its outbox rows commit or roll back together.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MembershipSource answers roster questions against the current membership,
// so eligibility always reflects joins and departures since the proposal
// opened.
type MembershipSource interface {
	ListActiveMemberIDs(ctx context.Context, gameID string) ([]string, error)
	IsActiveMember(ctx context.Context, gameID string, userID string) (bool, error)
}

// ConsensusSettings is the per-game slice of settings the engine needs.
type ConsensusSettings struct {
	SilenceTimer   time.Duration
	TieBreakPolicy entities.TieBreakPolicy
}

type GameSettingsSource interface {
	GetConsensusSettings(ctx context.Context, gameID string) (ConsensusSettings, error)
}

// DeltaSuggester produces the AI fallback delta for tied or voteless
// tension ballots. Implementations must degrade to (0, "") on failure
// rather than blocking resolution.
type DeltaSuggester interface {
	SuggestDelta(ctx context.Context, gameID string, subjectID string) (int, string)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
