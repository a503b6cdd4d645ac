package entities

import "time"

type BeatSignificance string

const (
	SignificanceMinor BeatSignificance = "minor"
	SignificanceMajor BeatSignificance = "major"
)

func (s BeatSignificance) Valid() bool {
	return s == SignificanceMinor || s == SignificanceMajor
}

type BeatStatus string

const (
	BeatStatusProposed   BeatStatus = "proposed"
	BeatStatusCanon      BeatStatus = "canon"
	BeatStatusChallenged BeatStatus = "challenged"
	BeatStatusRevised    BeatStatus = "revised"
	BeatStatusRejected   BeatStatus = "rejected"
)

type BeatEventType string

const (
	EventNarrative   BeatEventType = "narrative"
	EventOOC         BeatEventType = "ooc"
	EventRoll        BeatEventType = "roll"
	EventFortuneRoll BeatEventType = "fortune_roll"
)

func (t BeatEventType) Valid() bool {
	switch t {
	case EventNarrative, EventOOC, EventRoll, EventFortuneRoll:
		return true
	}
	return false
}

// MaxProseLength caps narrative and OOC text, in characters.
const MaxProseLength = 10000

// BeatEvent is one ordered entry inside a beat. Roll and fortune_roll
// entries carry their server-side results; a beat never stores an
// unresolved roll.
type BeatEvent struct {
	Type BeatEventType `json:"type"`
	Text string        `json:"text,omitempty"`

	// Roll fields.
	Notation string `json:"notation,omitempty"`
	Rolls    []int  `json:"rolls,omitempty"`
	Total    int    `json:"total,omitempty"`

	// Fortune roll fields.
	Odds    string `json:"odds,omitempty"`
	Tension int    `json:"tension,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// Beat is one unit of narrative. Revisions are new beats: accepting a
// challenge marks the old beat revised and submits a replacement carrying
// RevisesBeatID, forced major.
type Beat struct {
	BeatID        string
	SceneID       string
	GameID        string
	AuthorID      string
	Significance  BeatSignificance
	SignRationale string
	Status        BeatStatus
	Events        []BeatEvent
	Version       int
	RevisesBeatID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
