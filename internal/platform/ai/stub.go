package ai

import (
	"context"
	"errors"
)

var errEmptyCompletion = errors.New("completion returned no choices")

// Stub is the adapter used when AI suggestions are disabled: every beat is
// suggested minor and every tension ballot falls back to a zero delta.
type Stub struct{}

func (Stub) Classify(_ context.Context, _ string, _ string, _ string) (string, string) {
	return "minor", "ai suggestions disabled"
}

func (Stub) SuggestDelta(_ context.Context, _ string, _ string) (int, string) {
	return 0, "ai suggestions disabled"
}
