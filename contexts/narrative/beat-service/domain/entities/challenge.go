package entities

import "time"

type ChallengeStatus string

const (
	ChallengeStatusOpen      ChallengeStatus = "open"
	ChallengeStatusAccepted  ChallengeStatus = "accepted"
	ChallengeStatusDismissed ChallengeStatus = "dismissed"
)

// Challenge disputes a canon beat. At most one open challenge per beat;
// resolved challenges and their comments stay readable forever.
type Challenge struct {
	ChallengeID  string
	BeatID       string
	GameID       string
	ChallengerID string
	Reason       string
	Status       ChallengeStatus
	// EscalationProposalID is set once the challenge sits open past the
	// game's silence window and a challenge_resolution ballot opens.
	EscalationProposalID string
	OpenedAt             time.Time
	// DueAt snapshots opened-at plus the game's silence window; past it an
	// open challenge escalates.
	DueAt time.Time
	ResolvedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Open reports whether the challenge is still undecided.
func (c Challenge) Open() bool {
	return c.Status == ChallengeStatusOpen
}

// Comment is one discussion entry on a challenge.
type Comment struct {
	CommentID   string
	ChallengeID string
	AuthorID    string
	Text        string
	CreatedAt   time.Time
}
