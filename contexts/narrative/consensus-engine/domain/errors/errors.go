package errors

import "errors"

var (
	ErrInvalidProposalInput = errors.New("invalid proposal input")
	ErrProposalNotFound     = errors.New("proposal not found")
	ErrProposalNotOpen      = errors.New("proposal is no longer open")
	ErrOpenProposalExists   = errors.New("an open proposal already exists for this subject")
	ErrInvalidChoice        = errors.New("vote choice is not valid for this proposal kind")
	ErrNotGameMember        = errors.New("user is not an active member of this game")
	ErrVoteNotFound         = errors.New("vote not found")
	ErrConflict             = errors.New("proposal conflict")
)
