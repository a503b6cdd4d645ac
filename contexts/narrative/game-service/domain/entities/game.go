package entities

import "time"

type GameStatus string

const (
	GameStatusSetup    GameStatus = "setup"
	GameStatusActive   GameStatus = "active"
	GameStatusPaused   GameStatus = "paused"
	GameStatusArchived GameStatus = "archived"
)

type MemberRole string

const (
	RoleOrganizer MemberRole = "organizer"
	RolePlayer    MemberRole = "player"
)

type TieBreakMethod string

const (
	TieBreakRandom   TieBreakMethod = "random"
	TieBreakProposer TieBreakMethod = "proposer"
)

type SignificanceThreshold string

const (
	ThresholdFlagMost    SignificanceThreshold = "flag_most"
	ThresholdFlagObvious SignificanceThreshold = "flag_obvious"
	ThresholdMinimal     SignificanceThreshold = "minimal"
)

type TensionVotingMode string

const (
	TensionVotingGroup  TensionVotingMode = "group_vote"
	TensionVotingAIAuto TensionVotingMode = "ai_auto"
)

// MaxMembers caps the roster. Redemption re-checks the count inside its
// transaction, so concurrent joins cannot exceed it.
const MaxMembers = 5

const (
	DefaultSilenceTimerHours = 12
	DefaultStartingTension   = 5
)

// Settings are the per-game knobs consumed by the consensus and pacing
// engines.
type Settings struct {
	SilenceTimerHours     int
	TieBreakMethod        TieBreakMethod
	SignificanceThreshold SignificanceThreshold
	TensionVotingMode     TensionVotingMode
	StartingTension       int
}

// Normalize fills zero values with the defaults.
func (s Settings) Normalize() Settings {
	if s.SilenceTimerHours <= 0 {
		s.SilenceTimerHours = DefaultSilenceTimerHours
	}
	if s.TieBreakMethod == "" {
		s.TieBreakMethod = TieBreakRandom
	}
	if s.SignificanceThreshold == "" {
		s.SignificanceThreshold = ThresholdFlagObvious
	}
	if s.TensionVotingMode == "" {
		s.TensionVotingMode = TensionVotingGroup
	}
	if s.StartingTension < 1 || s.StartingTension > 9 {
		s.StartingTension = DefaultStartingTension
	}
	return s
}

func (s Settings) Valid() bool {
	switch s.TieBreakMethod {
	case TieBreakRandom, TieBreakProposer:
	default:
		return false
	}
	switch s.SignificanceThreshold {
	case ThresholdFlagMost, ThresholdFlagObvious, ThresholdMinimal:
	default:
		return false
	}
	switch s.TensionVotingMode {
	case TensionVotingGroup, TensionVotingAIAuto:
	default:
		return false
	}
	return s.SilenceTimerHours > 0 && s.StartingTension >= 1 && s.StartingTension <= 9
}

type Game struct {
	GameID    string
	Name      string
	Pitch     string
	Status    GameStatus
	Settings  Settings
	CreatedAt time.Time
	UpdatedAt time.Time
}

type GameMember struct {
	MemberID  string
	GameID    string
	UserID    string
	Role      MemberRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invitation is a single-use join token.
type Invitation struct {
	InvitationID string
	GameID       string
	Token        string
	Active       bool
	UsedByID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
