package presence

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

type sessionState int

const (
	stateUnjoined sessionState = iota
	stateJoined
	stateClosed
)

// Session is one connected client on the space socket. It is mutated
// only by messages arriving on that connection, but its position is
// read by other sessions' broadcasts, hence the mutex.
type Session struct {
	id       core.SessionID
	conn     core.SignalConnection
	dir      *Directory
	verifier core.TokenVerifier
	spaces   core.SpaceLookup

	mu      sync.Mutex
	state   sessionState
	userID  domain.UserID
	spaceID domain.SpaceID
	width   int
	height  int
	pos     domain.Position
}

func NewSession(id core.SessionID, conn core.SignalConnection, dir *Directory, verifier core.TokenVerifier, spaces core.SpaceLookup) *Session {
	return &Session{
		id:       id,
		conn:     conn,
		dir:      dir,
		verifier: verifier,
		spaces:   spaces,
	}
}

func (s *Session) ID() core.SessionID { return s.id }

// State reports the session's occupant view for room snapshots.
func (s *Session) State() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UserState{UserID: s.userID, X: s.pos.X, Y: s.pos.Y}
}

// Join verifies the credential, resolves the target space, assigns a
// spawn point and registers the session in the directory. Any failure
// is terminal for the connection: the caller must close it.
func (s *Session) Join(ctx context.Context, m Join) error {
	s.mu.Lock()
	switch s.state {
	case stateJoined:
		s.mu.Unlock()
		return core.ErrAlreadyJoined
	case stateClosed:
		s.mu.Unlock()
		return core.ErrSessionClosed
	}
	s.mu.Unlock()

	userID, err := s.verifier.Verify(m.Token)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	space, err := s.spaces.Space(ctx, m.SpaceID)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}

	// Verification and lookup yield; the connection may have died in
	// the meantime, so the state is checked again before committing.
	s.mu.Lock()
	if s.state != stateUnjoined {
		s.mu.Unlock()
		return core.ErrSessionClosed
	}
	s.state = stateJoined
	s.userID = userID
	s.spaceID = space.ID
	s.width = space.Width
	s.height = space.Height
	s.pos = domain.Position{X: rand.Intn(space.Width), Y: rand.Intn(space.Height)}
	spawn := s.pos
	s.mu.Unlock()

	s.dir.Add(space.ID, s)

	s.send(SpaceJoined{Spawn: spawn, Users: s.dir.Snapshot(space.ID, s.id)})
	s.dir.Broadcast(space.ID, s.id, UserJoined{UserID: userID, X: spawn.X, Y: spawn.Y})

	log.Info().Str("module", "presence.session").Str("sid", string(s.id)).
		Str("user", string(userID)).Str("space", string(space.ID)).
		Int("x", spawn.X).Int("y", spawn.Y).Msg("joined space")
	return nil
}

// Move validates the requested step and either commits and announces
// it, or answers with the last-known-good coordinates. Rejections are
// sent on every invalid request, even repeated ones.
func (s *Session) Move(m Move) error {
	s.mu.Lock()
	if s.state != stateJoined {
		s.mu.Unlock()
		return core.ErrSessionClosed
	}

	if !s.validMove(m.X, m.Y) {
		last := s.pos
		s.mu.Unlock()
		s.send(MovementRejected{X: last.X, Y: last.Y})
		return core.ErrInvalidMove
	}

	s.pos = domain.Position{X: m.X, Y: m.Y}
	userID, spaceID := s.userID, s.spaceID
	s.mu.Unlock()

	s.send(MoveEcho{X: m.X, Y: m.Y})
	s.dir.Broadcast(spaceID, s.id, Movement{UserID: userID, X: m.X, Y: m.Y})
	return nil
}

// validMove holds s.mu. A move is a single unit step on exactly one
// axis that lands strictly inside the space boundary.
func (s *Session) validMove(x, y int) bool {
	if x <= 0 || y <= 0 || x >= s.width || y >= s.height {
		return false
	}
	dx := abs(s.pos.X - x)
	dy := abs(s.pos.Y - y)
	return (dx == 1 && dy == 0) || (dx == 0 && dy == 1)
}

// Destroy transitions the session to its terminal state, announces the
// departure and deregisters. Safe to call more than once; only the
// first call has any effect.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	wasJoined := s.state == stateJoined
	userID, spaceID := s.userID, s.spaceID
	s.state = stateClosed
	s.mu.Unlock()

	if wasJoined {
		s.dir.Broadcast(spaceID, s.id, UserLeft{UserID: userID})
		s.dir.Remove(spaceID, s.id)
	}
	log.Info().Str("module", "presence.session").Str("sid", string(s.id)).Msg("session destroyed")
}

func (s *Session) send(msg Outbound) {
	data, err := EncodeOutbound(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "presence.session").Msg("encode")
		return
	}
	if err := s.conn.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "presence.session").Str("sid", string(s.id)).Msg("send dropped")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
