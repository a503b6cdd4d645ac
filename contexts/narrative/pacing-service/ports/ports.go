package ports

import (
	"context"
	"time"

	"loom/contexts/narrative/pacing-service/domain/entities"
	"loom/internal/shared/events"
)

// PacingRepository persists acts and scenes.
type PacingRepository interface {
	SaveAct(ctx context.Context, act entities.Act) error
	GetAct(ctx context.Context, actID string) (entities.Act, error)
	ListActsByGame(ctx context.Context, gameID string) ([]entities.Act, error)

	SaveScene(ctx context.Context, scene entities.Scene) error
	GetScene(ctx context.Context, sceneID string) (entities.Scene, error)
	ListScenesByAct(ctx context.Context, actID string) ([]entities.Scene, error)
	// LatestCompletedScene returns the most recently completed scene of the
	// game, used to seed the next scene's tension.
	LatestCompletedScene(ctx context.Context, gameID string) (entities.Scene, bool, error)
}

// ProposalOutcome is the pacing-facing view of a consensus proposal.
type ProposalOutcome struct {
	ProposalID   string
	Status       string
	Resolved     bool
	WinningDelta *int
}

// ProposalEngine is the slice of the consensus engine pacing needs. Every
// structural transition runs through it.
type ProposalEngine interface {
	OpenProposal(
		ctx context.Context,
		gameID string,
		kind string,
		subjectType string,
		subjectID string,
		proposerID string,
	) (ProposalOutcome, error)
	// OpenSystemProposal opens a ballot on behalf of a lifecycle event,
	// with no proposer implicit vote. Used for tension adjustments; the
	// suggested delta is recorded on the ballot as its fallback outcome.
	OpenSystemProposal(
		ctx context.Context,
		gameID string,
		kind string,
		subjectType string,
		subjectID string,
		rationale string,
		suggestedDelta int,
	) (ProposalOutcome, error)
	// ResolvedOutcome reports the latest terminal proposal of the kind for
	// the subject, if any.
	ResolvedOutcome(ctx context.Context, kind string, subjectID string) (ProposalOutcome, bool, error)
	// ForceResolve settles the open proposal of the kind for the subject
	// with whatever ballots are in. Reports false when none is open or
	// terminal.
	ForceResolve(ctx context.Context, kind string, subjectID string) (ProposalOutcome, bool, error)
}

// GameInfo is the slice of game state pacing depends on.
type GameInfo struct {
	Status            string
	StartingTension   int
	TensionVotingMode string
}

type GameSource interface {
	GetGameInfo(ctx context.Context, gameID string) (GameInfo, error)
}

// DeltaSuggester proposes a tension shift for a freshly completed scene.
// Implementations must degrade to a neutral suggestion rather than fail.
type DeltaSuggester interface {
	SuggestDelta(ctx context.Context, gameID string, sceneID string) (delta int, rationale string)
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
