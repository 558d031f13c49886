package core

import "errors"

// Errors local to one connection are reported on that connection's
// reply channel and never interrupt other sessions in the room.
var (
	// ErrAuth means the bearer credential is invalid or expired.
	// The connection carrying it must be closed.
	ErrAuth = errors.New("invalid credential")

	// ErrSpaceNotFound means a join referenced an unknown space.
	ErrSpaceNotFound = errors.New("space not found")

	// ErrInvalidMove is a movement policy violation. Corrected via a
	// movement-rejected reply, never a hard failure.
	ErrInvalidMove = errors.New("invalid move")

	// ErrAlreadyJoined reports a second join on a joined session.
	ErrAlreadyJoined = errors.New("session already joined")

	// ErrSessionClosed reports an operation on a destroyed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrBackpressure means a recipient's send buffer was full and the
	// frame was dropped for that recipient only.
	ErrBackpressure = errors.New("backpressure")

	// ErrConnClosed means the underlying socket is gone.
	ErrConnClosed = errors.New("connection closed")
)
