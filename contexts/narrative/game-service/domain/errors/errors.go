package errors

import "errors"

var (
	ErrInvalidGameInput   = errors.New("invalid game input")
	ErrGameNotFound       = errors.New("game not found")
	ErrNotGameMember      = errors.New("user is not a member of this game")
	ErrNotOrganizer       = errors.New("only the organizer may do this")
	ErrGameFull           = errors.New("game has reached the member cap")
	ErrAlreadyMember      = errors.New("user is already a member of this game")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationInactive = errors.New("invitation has already been used or revoked")
	ErrConflict           = errors.New("game conflict")
)
