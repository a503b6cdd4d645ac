package entities

import (
	"hash/fnv"
	"sort"
	"time"
)

// Tally is a point-in-time count of the votes on one proposal, restricted
// to currently eligible members.
type Tally struct {
	Yes     int
	No      int
	Suggest int
	// Deltas counts delta-ballot choices keyed by shift (-1, 0, +1).
	Deltas   map[int]int
	Eligible int
}

// NewTally counts votes from eligible voters only. Votes from members who
// have since left the game are dropped, so eligibility is always evaluated
// against the current roster.
func NewTally(votes []Vote, eligibleIDs []string) Tally {
	eligible := make(map[string]struct{}, len(eligibleIDs))
	for _, id := range eligibleIDs {
		eligible[id] = struct{}{}
	}

	tally := Tally{Deltas: make(map[int]int), Eligible: len(eligible)}
	for _, vote := range votes {
		if _, ok := eligible[vote.VoterID]; !ok {
			continue
		}
		switch vote.Choice {
		case ChoiceYes:
			tally.Yes++
		case ChoiceNo:
			tally.No++
		case ChoiceSuggestModify:
			tally.Suggest++
		default:
			if delta, ok := vote.Choice.Delta(); ok {
				tally.Deltas[delta]++
			}
		}
	}
	return tally
}

// Threshold is the yes-vote count required for approval: strictly more
// than half of the eligible members.
func (t Tally) Threshold() int {
	return t.Eligible/2 + 1
}

func (t Tally) Participation() int {
	total := t.Yes + t.No + t.Suggest
	for _, count := range t.Deltas {
		total += count
	}
	return total
}

// MajorityOutcome is the result of evaluating a majority-ballot proposal.
type MajorityOutcome struct {
	Resolved bool
	Status   ProposalStatus
	Cause    string
}

// EvaluateMajority applies the majority rules at an instant:
//
//   - approve as soon as yes meets the threshold;
//   - reject as soon as yes can no longer reach it, treating every member
//     who has not voted no as a potential yes;
//   - at the deadline, silence is consent unless no already meets the
//     threshold.
func (t Tally) EvaluateMajority(now time.Time, deadline time.Time) MajorityOutcome {
	threshold := t.Threshold()
	if t.Yes >= threshold {
		return MajorityOutcome{Resolved: true, Status: ProposalStatusApproved, Cause: CauseMajorityReached}
	}
	if t.Eligible-t.No < threshold {
		return MajorityOutcome{Resolved: true, Status: ProposalStatusRejected, Cause: CauseMajorityUnreachable}
	}
	if !now.Before(deadline) {
		if t.No >= threshold {
			return MajorityOutcome{Resolved: true, Status: ProposalStatusRejected, Cause: CauseTimerExpired}
		}
		return MajorityOutcome{Resolved: true, Status: ProposalStatusApproved, Cause: CauseSilenceConsent}
	}
	return MajorityOutcome{}
}

// DeltaOutcome is the result of evaluating a delta-ballot proposal.
type DeltaOutcome struct {
	Resolved bool
	Cause    string
	// Leaders holds the most-voted deltas in ascending order. Empty when
	// nobody has voted; a single element means no tie-break is needed.
	Leaders []int
}

// EvaluateDelta resolves a plurality ballot on full participation, timer
// expiry, or when force is set. The winner among tied leaders is chosen by
// the tie-break resolver, not here.
func (t Tally) EvaluateDelta(now time.Time, deadline time.Time, force bool) DeltaOutcome {
	cause := ""
	switch {
	case t.Eligible <= 1:
		// A solo game has nobody left to wait for.
		cause = CauseFullParticipation
	case t.Participation() >= t.Eligible:
		cause = CauseFullParticipation
	case !now.Before(deadline):
		cause = CauseTimerExpired
	case force:
		cause = CauseForced
	default:
		return DeltaOutcome{}
	}

	best := 0
	for _, count := range t.Deltas {
		if count > best {
			best = count
		}
	}
	leaders := make([]int, 0, len(t.Deltas))
	for delta, count := range t.Deltas {
		if count == best && best > 0 {
			leaders = append(leaders, delta)
		}
	}
	sort.Ints(leaders)
	return DeltaOutcome{Resolved: true, Cause: cause, Leaders: leaders}
}

type TieBreakPolicy string

const (
	TieBreakRandom   TieBreakPolicy = "random"
	TieBreakProposer TieBreakPolicy = "proposer"
)

// BreakDeltaTie picks a winner among tied leaders. The proposer policy
// honors the proposer's own choice when it is among the tied; the random
// policy draws deterministically from the proposal ID so that replicas and
// retries agree. A false second return means the caller must fall back to
// the AI-suggested delta.
func BreakDeltaTie(policy TieBreakPolicy, leaders []int, proposerDelta *int, proposalID string) (int, bool) {
	if len(leaders) == 0 {
		return 0, false
	}
	if len(leaders) == 1 {
		return leaders[0], true
	}
	switch policy {
	case TieBreakProposer:
		if proposerDelta != nil {
			for _, delta := range leaders {
				if delta == *proposerDelta {
					return delta, true
				}
			}
		}
		return 0, false
	default:
		h := fnv.New64a()
		h.Write([]byte(proposalID))
		return leaders[int(h.Sum64()%uint64(len(leaders)))], true
	}
}

// ClosestDelta snaps a suggested delta onto the candidate set, preferring
// the smaller shift when two candidates are equally close.
func ClosestDelta(candidates []int, target int) int {
	if len(candidates) == 0 {
		return target
	}
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		bd := abs(candidate - target)
		cd := abs(best - target)
		if bd < cd || (bd == cd && abs(candidate) < abs(best)) {
			best = candidate
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
