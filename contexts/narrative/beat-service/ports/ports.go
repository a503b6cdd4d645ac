package ports

import (
	"context"
	"time"

	"loom/contexts/narrative/beat-service/domain/entities"
	"loom/internal/shared/events"
)

// BeatRepository persists beats, challenges and challenge comments.
type BeatRepository interface {
	SaveBeat(ctx context.Context, beat entities.Beat) error
	GetBeat(ctx context.Context, beatID string) (entities.Beat, error)
	ListBeatsByScene(ctx context.Context, sceneID string) ([]entities.Beat, error)

	SaveChallenge(ctx context.Context, challenge entities.Challenge) error
	GetChallenge(ctx context.Context, challengeID string) (entities.Challenge, error)
	GetOpenChallengeByBeat(ctx context.Context, beatID string) (entities.Challenge, bool, error)
	ListChallengesByBeat(ctx context.Context, beatID string) ([]entities.Challenge, error)
	// ListDueOpenChallenges returns unescalated open challenges whose
	// silence window expired at or before now.
	ListDueOpenChallenges(ctx context.Context, now time.Time, limit int) ([]entities.Challenge, error)

	SaveComment(ctx context.Context, comment entities.Comment) error
	ListCommentsByChallenge(ctx context.Context, challengeID string) ([]entities.Comment, error)
}

// SceneInfo is the slice of scene state beats depend on.
type SceneInfo struct {
	GameID  string
	Status  string
	Tension int
}

type SceneSource interface {
	GetSceneInfo(ctx context.Context, sceneID string) (SceneInfo, error)
}

// GameInfo carries the game settings beats depend on.
type GameInfo struct {
	Status                string
	SignificanceThreshold string
	SilenceTimer          time.Duration
}

type GameSource interface {
	GetGameInfo(ctx context.Context, gameID string) (GameInfo, error)
}

type MembershipSource interface {
	IsActiveMember(ctx context.Context, gameID string, userID string) (bool, error)
}

// SignificanceClassifier suggests a significance for a submitted beat.
// Implementations must degrade to minor rather than fail.
type SignificanceClassifier interface {
	Classify(ctx context.Context, gameID string, threshold string, text string) (significance string, rationale string)
}

// DiceResult is a resolved XdY+Z roll.
type DiceResult struct {
	Notation string
	Rolls    []int
	Total    int
}

// FortuneResult is a resolved fortune roll.
type FortuneResult struct {
	Odds        string
	Tension     int
	Outcome     string
	Exceptional bool
}

// Roller resolves roll and fortune_roll events at submit time.
type Roller interface {
	RollDice(ctx context.Context, notation string) (DiceResult, error)
	RollFortune(ctx context.Context, odds string, tension int) (FortuneResult, error)
}

// ProposalOutcome is the beat-facing view of a consensus proposal.
type ProposalOutcome struct {
	ProposalID string
	Status     string
	Resolved   bool
}

// ProposalEngine is the slice of the consensus engine beats need.
type ProposalEngine interface {
	OpenProposal(
		ctx context.Context,
		gameID string,
		kind string,
		subjectType string,
		subjectID string,
		proposerID string,
	) (ProposalOutcome, error)
	// OpenSystemProposal opens a ballot on behalf of a lifecycle event.
	// Used for challenge escalation.
	OpenSystemProposal(
		ctx context.Context,
		gameID string,
		kind string,
		subjectType string,
		subjectID string,
		rationale string,
	) (ProposalOutcome, error)
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
