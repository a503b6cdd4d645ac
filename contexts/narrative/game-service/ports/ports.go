package ports

import (
	"context"
	"time"

	"loom/contexts/narrative/game-service/domain/entities"
	"loom/internal/shared/events"
)

type GameRepository interface {
	SaveGame(ctx context.Context, game entities.Game) error
	GetGame(ctx context.Context, gameID string) (entities.Game, error)

	SaveMember(ctx context.Context, member entities.GameMember) error
	DeleteMember(ctx context.Context, gameID string, userID string) error
	GetMemberByUser(ctx context.Context, gameID string, userID string) (entities.GameMember, bool, error)
	ListMembers(ctx context.Context, gameID string) ([]entities.GameMember, error)

	SaveInvitation(ctx context.Context, invitation entities.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (entities.Invitation, bool, error)

	// RedeemInvitation runs the whole check/act sequence in one store
	// transaction: re-read the invitation's active flag and the member
	// count, insert the member, and mark the token used. Losing a race is
	// reported with the domain conflict sentinels, never a partial write.
	RedeemInvitation(ctx context.Context, token string, member entities.GameMember) (entities.GameMember, error)
}

// ProposalOutcome is the engine's answer about one proposal.
type ProposalOutcome struct {
	ProposalID string
	Status     string
	Resolved   bool
}

// ProposalEngine is the game-side view of the consensus engine. The
// composition root adapts the consensus module onto it.
type ProposalEngine interface {
	OpenProposal(ctx context.Context, gameID, kind, subjectType, subjectID, proposerID string) (ProposalOutcome, error)
	// ResolvedOutcome reports the latest terminal proposal of the kind for
	// the subject, resolving a due silence timer first.
	ResolvedOutcome(ctx context.Context, kind string, subjectID string) (ProposalOutcome, bool, error)
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

// TokenGenerator mints invitation tokens.
type TokenGenerator interface {
	NewToken(ctx context.Context) (string, error)
}
