package presence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Arena/internal/domain"
)

// Wire format on the space socket: {"type": "...", "payload": {...}}.
// One variant per message kind so an unrecognized frame is an explicit
// decode error, not a silent nil payload downstream.

var ErrUnknownMessage = errors.New("unknown message type")

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound is a client-to-server message on the space socket.
type Inbound interface{ inbound() }

type Join struct {
	Token   string         `json:"token"`
	SpaceID domain.SpaceID `json:"spaceId"`
}

type Move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (Join) inbound() {}
func (Move) inbound() {}

func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad frame: %w", err)
	}
	switch env.Type {
	case "join":
		var m Join
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("bad join payload: %w", err)
		}
		return m, nil
	case "move":
		var m Move
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("bad move payload: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// Outbound is a server-to-client message on the space socket.
type Outbound interface{ kind() string }

// UserState is one occupant's id and position, as seen by others.
type UserState struct {
	UserID domain.UserID `json:"userId"`
	X      int           `json:"x"`
	Y      int           `json:"y"`
}

// SpaceJoined is the reply to the joiner: its spawn point plus the
// room's current occupants, excluding itself.
type SpaceJoined struct {
	Spawn domain.Position `json:"spawn"`
	Users []UserState     `json:"users"`
}

// UserJoined announces a new occupant to the rest of the room.
type UserJoined UserState

// MoveEcho confirms an accepted move to the mover.
type MoveEcho struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Movement announces an accepted move to the rest of the room.
type Movement UserState

// MovementRejected carries the mover's last-known-good coordinates.
type MovementRejected struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UserLeft announces a departure to the rest of the room.
type UserLeft struct {
	UserID domain.UserID `json:"userId"`
}

func (SpaceJoined) kind() string { return "space-joined" }
func (UserJoined) kind() string { return "user-joined" }
func (MoveEcho) kind() string { return "move" }
func (Movement) kind() string { return "movement" }
func (MovementRejected) kind() string { return "movement-rejected" }
func (UserLeft) kind() string { return "user-left" }

func EncodeOutbound(m Outbound) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}{Type: m.kind(), Payload: payload})
}
