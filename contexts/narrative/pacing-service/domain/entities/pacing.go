package entities

import "time"

type ActStatus string

const (
	ActStatusProposed ActStatus = "proposed"
	ActStatusActive   ActStatus = "active"
	ActStatusComplete ActStatus = "complete"
)

type SceneStatus string

const (
	SceneStatusProposed SceneStatus = "proposed"
	SceneStatusActive   SceneStatus = "active"
	SceneStatusComplete SceneStatus = "complete"
)

const (
	TensionMin = 1
	TensionMax = 9
)

// ValidTension reports whether v sits on the 1..9 scale.
func ValidTension(v int) bool {
	return v >= TensionMin && v <= TensionMax
}

// ClampTension pins v onto the 1..9 scale.
func ClampTension(v int) int {
	if v < TensionMin {
		return TensionMin
	}
	if v > TensionMax {
		return TensionMax
	}
	return v
}

// Act is an ordered chapter of a game.
type Act struct {
	ActID           string
	GameID          string
	GuidingQuestion string
	Status          ActStatus
	Order           int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Scene is one framed situation inside an act. Tension is locked the moment
// the scene activates; the tension-adjustment loop only ever writes the
// carry-forward of a completed scene.
type Scene struct {
	SceneID         string
	ActID           string
	GameID          string
	GuidingQuestion string
	Location        string
	Status          SceneStatus
	Tension         int
	// TensionCarryForward is the resolved tension for whatever scene comes
	// next. Nil until the scene's tension adjustment settles; written once.
	TensionCarryForward *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
