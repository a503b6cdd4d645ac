package errors

import "errors"

var (
	ErrInvalidOdds         = errors.New("invalid fortune roll odds")
	ErrInvalidTension      = errors.New("tension must be between 1 and 9")
	ErrInvalidDiceNotation = errors.New("invalid dice notation")
	ErrTooManyDice         = errors.New("too many dice (max 100)")
	ErrTooManySides        = errors.New("too many sides (max 1000)")
)
