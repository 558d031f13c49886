package domain

type (
	// RoomID identifies a conferencing room on the SFU side. Presence
	// rooms are keyed by SpaceID; the two namespaces are independent.
	RoomID string
)
