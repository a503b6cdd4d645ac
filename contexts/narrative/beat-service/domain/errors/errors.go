package errors

import "errors"

var (
	ErrInvalidBeatInput    = errors.New("invalid beat input")
	ErrBeatNotFound        = errors.New("beat not found")
	ErrBeatNotCanon        = errors.New("beat is not canon")
	ErrBeatNotRevised      = errors.New("beat is not awaiting revision")
	ErrSceneNotActive      = errors.New("scene is not active")
	ErrNotGameMember       = errors.New("user is not an active game member")
	ErrNotBeatAuthor       = errors.New("only the beat author may do this")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrChallengeNotOpen    = errors.New("challenge is not open")
	ErrOpenChallengeExists = errors.New("beat already has an open challenge")
	ErrConflict            = errors.New("conflicting concurrent update")
)
