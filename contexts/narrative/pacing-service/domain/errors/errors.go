package errors

import "errors"

var (
	ErrInvalidPacingInput = errors.New("invalid pacing input")
	ErrActNotFound        = errors.New("act not found")
	ErrSceneNotFound      = errors.New("scene not found")
	ErrActNotActive       = errors.New("act is not active")
	ErrSceneNotActive     = errors.New("scene is not active")
	ErrGameNotActive      = errors.New("game is not active")
	ErrScenesStillOpen    = errors.New("act has unfinished scenes")
	ErrInvalidTension     = errors.New("tension outside 1..9")
	ErrConflict           = errors.New("conflicting concurrent update")
)
