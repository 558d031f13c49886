// Package presence implements the position-sync layer: a process-wide
// room directory keyed by space id and a per-connection session state
// machine. Everything lives in memory; room state does not survive a
// restart.
package presence

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

// Directory is the registry mapping space id -> sessions. One instance
// per process, constructed in main and injected into sessions.
type Directory struct {
	mu     sync.RWMutex
	rooms  map[domain.SpaceID]map[core.SessionID]*Session
	policy Policy
}

func NewDirectory(policy Policy) *Directory {
	return &Directory{
		rooms:  make(map[domain.SpaceID]map[core.SessionID]*Session),
		policy: policy,
	}
}

func (d *Directory) Add(spaceID domain.SpaceID, s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[spaceID]
	if !ok {
		room = make(map[core.SessionID]*Session)
		d.rooms[spaceID] = room
	}
	room[s.ID()] = s
	log.Info().Str("module", "presence.directory").Str("space", string(spaceID)).
		Str("sid", string(s.ID())).Msg("session added")
}

// Remove is a no-op when the room or session is absent, so teardown
// stays idempotent. The room entry is pruned on last leave.
func (d *Directory) Remove(spaceID domain.SpaceID, sid core.SessionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[spaceID]
	if !ok {
		return
	}
	delete(room, sid)
	if len(room) == 0 {
		delete(d.rooms, spaceID)
	}
	log.Info().Str("module", "presence.directory").Str("space", string(spaceID)).
		Str("sid", string(sid)).Msg("session removed")
}

// PublishResult reports delivery stats and backpressure victims.
type PublishResult struct {
	SentTo  int
	Dropped []*Session
}

// Broadcast fans msg out to every session in the room except exclude.
// Delivery is fire-and-forget; a full send buffer drops the frame for
// that recipient only and hands the session to the policy.
func (d *Directory) Broadcast(spaceID domain.SpaceID, exclude core.SessionID, msg Outbound) PublishResult {
	data, err := EncodeOutbound(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "presence.directory").Msg("broadcast encode")
		return PublishResult{}
	}

	d.mu.RLock()
	members := make([]*Session, 0, len(d.rooms[spaceID]))
	for sid, s := range d.rooms[spaceID] {
		if sid != exclude {
			members = append(members, s)
		}
	}
	d.mu.RUnlock()

	res := PublishResult{}
	for _, s := range members {
		if err := s.conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SentTo++
	}

	for _, slow := range res.Dropped {
		if d.policy != nil && d.policy.OnBackpressure(slow) == KickSession {
			log.Warn().Str("module", "presence.directory").Str("sid", string(slow.ID())).
				Msg("kicking slow session")
			slow.conn.Close()
		}
	}
	return res
}

// Snapshot lists the room's occupants excluding the given session.
func (d *Directory) Snapshot(spaceID domain.SpaceID, exclude core.SessionID) []UserState {
	d.mu.RLock()
	members := make([]*Session, 0, len(d.rooms[spaceID]))
	for sid, s := range d.rooms[spaceID] {
		if sid != exclude {
			members = append(members, s)
		}
	}
	d.mu.RUnlock()

	out := make([]UserState, 0, len(members))
	for _, s := range members {
		out = append(out, s.State())
	}
	return out
}

type RoomInfo struct {
	SpaceID domain.SpaceID `json:"spaceId"`
	Count   int            `json:"count"`
}

func (d *Directory) Rooms() []RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RoomInfo, 0, len(d.rooms))
	for id, room := range d.rooms {
		out = append(out, RoomInfo{SpaceID: id, Count: len(room)})
	}
	return out
}
