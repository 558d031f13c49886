package core

import (
	"context"

	"github.com/dkeye/Arena/internal/domain"
)

// Frame is a raw binary payload (one JSON message on the wire).
type Frame []byte

// SessionID identifies a single connection. One per accepted socket.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// TokenVerifier resolves a bearer credential to a user id.
// Implemented by internal/auth; joins fail closed on any error.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// SpaceLookup is the only contract the realtime core has with the
// space-persistence collaborator.
type SpaceLookup interface {
	Space(ctx context.Context, id domain.SpaceID) (*domain.Space, error)
}
