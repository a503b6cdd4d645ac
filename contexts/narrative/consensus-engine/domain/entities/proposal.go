package entities

import "time"

type ProposalKind string

const (
	KindBeatApproval        ProposalKind = "beat_approval"
	KindActCreate           ProposalKind = "act_create"
	KindSceneCreate         ProposalKind = "scene_create"
	KindSceneComplete       ProposalKind = "scene_complete"
	KindActComplete         ProposalKind = "act_complete"
	KindWorldDocApproval    ProposalKind = "world_doc_approval"
	KindReadyToPlay         ProposalKind = "ready_to_play"
	KindChallengeResolution ProposalKind = "challenge_resolution"
	KindTensionAdjustment   ProposalKind = "tension_adjustment"
)

// Ballot distinguishes the two voting models: yes/no majority and
// plurality over a small delta set.
type Ballot string

const (
	BallotMajority Ballot = "majority"
	BallotDelta    Ballot = "delta"
)

func (k ProposalKind) Valid() bool {
	switch k {
	case KindBeatApproval, KindActCreate, KindSceneCreate, KindSceneComplete,
		KindActComplete, KindWorldDocApproval, KindReadyToPlay,
		KindChallengeResolution, KindTensionAdjustment:
		return true
	default:
		return false
	}
}

func (k ProposalKind) Ballot() Ballot {
	if k == KindTensionAdjustment {
		return BallotDelta
	}
	return BallotMajority
}

type ProposalStatus string

const (
	ProposalStatusOpen     ProposalStatus = "open"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Resolution causes recorded on terminal proposals and carried on
// proposal.resolved events.
const (
	CauseMajorityReached     = "majority_reached"
	CauseMajorityUnreachable = "majority_unreachable"
	CauseSilenceConsent      = "silence_consent"
	CauseFullParticipation   = "full_participation"
	CauseTimerExpired        = "timer_expired"
	CauseForced              = "forced"
)

// Proposal is one pending group decision. At most one open proposal may
// exist per (kind, subject); terminal proposals are immutable.
type Proposal struct {
	ProposalID   string
	GameID       string
	Kind         ProposalKind
	Status       ProposalStatus
	ProposerID   string
	SubjectType  string
	SubjectID    string
	OpenedAt     time.Time
	SilenceTimer time.Duration
	AIRationale  string
	// SuggestedDelta is recorded at open time on delta ballots and serves
	// as the fallback winner when votes cannot settle the outcome.
	SuggestedDelta *int

	ResolvedAt      *time.Time
	ResolutionCause string
	// WinningDelta is set only on resolved delta-ballot proposals.
	WinningDelta *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Proposal) Open() bool {
	return p.Status == ProposalStatusOpen
}

// Deadline is the silence-consent expiry instant. Suggest-modification
// votes push OpenedAt forward, which moves the deadline with it.
func (p Proposal) Deadline() time.Time {
	return p.OpenedAt.Add(p.SilenceTimer)
}

func (p Proposal) Due(now time.Time) bool {
	return p.Open() && !now.Before(p.Deadline())
}
