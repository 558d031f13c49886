package sfu

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/media"
)

// Manager owns the conferencing-room map. One instance per process,
// constructed in main and injected into the signaling adapter.
type Manager struct {
	pool *media.WorkerPool
	opts media.TransportOptions

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewManager(pool *media.WorkerPool, opts media.TransportOptions) *Manager {
	return &Manager{
		pool:  pool,
		opts:  opts,
		rooms: make(map[domain.RoomID]*Room),
	}
}

// CreateRoom builds a room on the next worker in cyclic order.
func (m *Manager) CreateRoom(ctx context.Context, id domain.RoomID) (*Room, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrBadRoomID)
	}
	m.mu.RLock()
	_, exists := m.rooms[id]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}

	worker, err := m.pool.Next()
	if err != nil {
		return nil, err
	}
	room, err := newRoom(ctx, id, worker, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another connection may have created it while the router was
	// being built; the first one wins and the spare router is dropped.
	if _, exists := m.rooms[id]; exists {
		room.close()
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}
	m.rooms[id] = room
	log.Info().Str("module", "sfu.manager").Str("room", string(id)).Msg("room created")
	return room, nil
}

func (m *Manager) Room(id domain.RoomID) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// Leave removes the peer from the room and deletes the room once its
// peer map is empty. Idempotent on both counts.
func (m *Manager) Leave(roomID domain.RoomID, peerID core.SessionID) {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	room.RemovePeer(peerID)

	if room.PeerCount() > 0 {
		return
	}
	m.mu.Lock()
	// Re-check under the write lock: a join may have landed between
	// the count read and here.
	if current, ok := m.rooms[roomID]; ok && current == room && room.PeerCount() == 0 {
		delete(m.rooms, roomID)
		m.mu.Unlock()
		room.close()
		return
	}
	m.mu.Unlock()
}

type RoomInfo struct {
	ID        domain.RoomID `json:"id"`
	PeerCount int           `json:"peerCount"`
}

func (m *Manager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, room := range m.rooms {
		out = append(out, RoomInfo{ID: id, PeerCount: room.PeerCount()})
	}
	return out
}
