package sfu

import "errors"

// Signaling that references a stale or foreign id answers with one of
// these on the request's reply channel; none of them crash the room.
var (
	ErrBadRoomID         = errors.New("bad room id")
	ErrRoomExists        = errors.New("room already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomNotReady      = errors.New("room router not ready")
	ErrPeerExists        = errors.New("peer already joined")
	ErrPeerNotFound      = errors.New("peer not found")
	ErrTransportNotFound = errors.New("transport not found")
	ErrProducerNotFound  = errors.New("producer not found")
	ErrCannotConsume     = errors.New("cannot consume producer")
)
