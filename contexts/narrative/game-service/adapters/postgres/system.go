package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemClock provides wall-clock time for production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator issues random identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// UUIDTokenGenerator issues invitation tokens. Tokens are bearer
// credentials, so they use the same entropy as identifiers.
type UUIDTokenGenerator struct{}

func (UUIDTokenGenerator) NewToken(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
