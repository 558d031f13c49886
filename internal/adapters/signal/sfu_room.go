package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/sfu"
)

var errRateLimited = errors.New("room creation rate limited")

func (ctl *SfuWSController) createRoom(ctx context.Context, cl *sfuClient, data []byte) (any, error) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.New("bad payload")
		}
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(cl.sid) {
		return nil, errRateLimited
	}

	if p.RoomID == "" {
		p.RoomID = uuid.NewString()
	}
	room, err := ctl.Rooms.CreateRoom(ctx, domain.RoomID(p.RoomID))
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", "signal.sfu").Str("sid", string(cl.sid)).
		Str("room", string(room.ID())).Msg("room created")
	return struct {
		RoomID domain.RoomID `json:"roomId"`
	}{RoomID: room.ID()}, nil
}

func (ctl *SfuWSController) join(cl *sfuClient, data []byte) (any, error) {
	if cl.joined {
		return nil, errors.New("already joined a room")
	}
	var p struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("bad payload")
	}
	if err := domain.ValidDisplayName(p.Name); err != nil {
		return nil, err
	}

	room, err := ctl.Rooms.Room(domain.RoomID(p.RoomID))
	if err != nil {
		return nil, err
	}
	if err := room.AddPeer(sfu.NewPeer(cl.sid, p.Name, cl)); err != nil {
		return nil, err
	}
	cl.roomID = room.ID()
	cl.joined = true

	log.Info().Str("module", "signal.sfu").Str("sid", string(cl.sid)).
		Str("room", string(room.ID())).Str("name", p.Name).Msg("join")
	return struct {
		RoomID domain.RoomID  `json:"roomId"`
		Peers  []sfu.PeerInfo `json:"peers"`
	}{RoomID: room.ID(), Peers: room.Roster()}, nil
}

func (ctl *SfuWSController) exitRoom(cl *sfuClient) (any, error) {
	if !cl.joined {
		return nil, errNotJoined
	}
	log.Info().Str("module", "signal.sfu").Str("sid", string(cl.sid)).
		Str("room", string(cl.roomID)).Msg("exit room")
	ctl.Rooms.Leave(cl.roomID, cl.sid)
	cl.joined = false
	cl.roomID = ""
	return struct{}{}, nil
}
