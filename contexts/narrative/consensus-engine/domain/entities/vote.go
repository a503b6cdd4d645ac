package entities

import "time"

type VoteChoice string

const (
	ChoiceYes           VoteChoice = "yes"
	ChoiceNo            VoteChoice = "no"
	ChoiceSuggestModify VoteChoice = "suggest_modification"
	ChoiceDeltaUp       VoteChoice = "delta_up"
	ChoiceDeltaHold     VoteChoice = "delta_hold"
	ChoiceDeltaDown     VoteChoice = "delta_down"
)

// ValidFor reports whether the choice belongs to the kind's ballot.
func (c VoteChoice) ValidFor(kind ProposalKind) bool {
	switch kind.Ballot() {
	case BallotDelta:
		return c == ChoiceDeltaUp || c == ChoiceDeltaHold || c == ChoiceDeltaDown
	default:
		return c == ChoiceYes || c == ChoiceNo || c == ChoiceSuggestModify
	}
}

// Delta maps a delta-ballot choice onto its tension shift.
func (c VoteChoice) Delta() (int, bool) {
	switch c {
	case ChoiceDeltaUp:
		return 1, true
	case ChoiceDeltaHold:
		return 0, true
	case ChoiceDeltaDown:
		return -1, true
	default:
		return 0, false
	}
}

// ChoiceForDelta is the inverse of Delta for -1, 0 and +1.
func ChoiceForDelta(delta int) (VoteChoice, bool) {
	switch delta {
	case 1:
		return ChoiceDeltaUp, true
	case 0:
		return ChoiceDeltaHold, true
	case -1:
		return ChoiceDeltaDown, true
	default:
		return "", false
	}
}

// Vote is one member's current choice on a proposal. Resubmission
// overwrites; uniqueness is per (proposal, voter).
type Vote struct {
	VoteID     string
	ProposalID string
	VoterID    string
	Choice     VoteChoice
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
