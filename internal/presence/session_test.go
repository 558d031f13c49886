package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/spaces"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) typed(t *testing.T, kind string) []json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		var env struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		if env.Type == kind {
			out = append(out, env.Payload)
		}
	}
	return out
}

type fakeVerifier map[string]domain.UserID

func (v fakeVerifier) Verify(token string) (domain.UserID, error) {
	id, ok := v[token]
	if !ok {
		return "", core.ErrAuth
	}
	return id, nil
}

type fixture struct {
	dir      *Directory
	store    *spaces.Store
	verifier fakeVerifier
	space    *domain.Space
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := spaces.NewStore()
	space, err := store.Create("office", 800, 600)
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	return &fixture{
		dir:      NewDirectory(KickSlowPolicy{}),
		store:    store,
		verifier: fakeVerifier{"tok-a": "user-a", "tok-b": "user-b"},
		space:    space,
	}
}

func (f *fixture) join(t *testing.T, sid core.SessionID, token string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	s := NewSession(sid, conn, f.dir, f.verifier, f.store)
	if err := s.Join(context.Background(), Join{Token: token, SpaceID: f.space.ID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	return s, conn
}

func spawnOf(t *testing.T, conn *fakeConn) (SpaceJoined, bool) {
	t.Helper()
	payloads := conn.typed(t, "space-joined")
	if len(payloads) == 0 {
		return SpaceJoined{}, false
	}
	var sj SpaceJoined
	if err := json.Unmarshal(payloads[0], &sj); err != nil {
		t.Fatalf("space-joined payload: %v", err)
	}
	return sj, true
}

func TestJoinFirstOccupant(t *testing.T) {
	f := newFixture(t)
	_, conn := f.join(t, "sid-a", "tok-a")

	sj, ok := spawnOf(t, conn)
	if !ok {
		t.Fatal("no space-joined reply")
	}
	if sj.Spawn.X < 0 || sj.Spawn.X >= f.space.Width || sj.Spawn.Y < 0 || sj.Spawn.Y >= f.space.Height {
		t.Fatalf("spawn %+v out of bounds %dx%d", sj.Spawn, f.space.Width, f.space.Height)
	}
	if len(sj.Users) != 0 {
		t.Fatalf("first joiner sees %d users, want 0", len(sj.Users))
	}
}

func TestJoinAnnouncesToRoomOnly(t *testing.T) {
	f := newFixture(t)
	_, connA := f.join(t, "sid-a", "tok-a")
	_, connB := f.join(t, "sid-b", "tok-b")

	if got := connA.typed(t, "user-joined"); len(got) != 1 {
		t.Fatalf("existing occupant got %d user-joined, want 1", len(got))
	}
	// Joiner never receives its own announcement.
	if got := connB.typed(t, "user-joined"); len(got) != 0 {
		t.Fatalf("joiner got %d user-joined, want 0", len(got))
	}
	sj, _ := spawnOf(t, connB)
	if len(sj.Users) != 1 || sj.Users[0].UserID != "user-a" {
		t.Fatalf("joiner roster = %+v, want [user-a]", sj.Users)
	}
}

func TestJoinFailures(t *testing.T) {
	f := newFixture(t)

	t.Run("bad token", func(t *testing.T) {
		s := NewSession("sid-x", &fakeConn{}, f.dir, f.verifier, f.store)
		err := s.Join(context.Background(), Join{Token: "nope", SpaceID: f.space.ID})
		if !errors.Is(err, core.ErrAuth) {
			t.Fatalf("err = %v, want core.ErrAuth", err)
		}
	})
	t.Run("unknown space", func(t *testing.T) {
		s := NewSession("sid-x", &fakeConn{}, f.dir, f.verifier, f.store)
		err := s.Join(context.Background(), Join{Token: "tok-a", SpaceID: "missing"})
		if !errors.Is(err, core.ErrSpaceNotFound) {
			t.Fatalf("err = %v, want core.ErrSpaceNotFound", err)
		}
	})
	t.Run("double join", func(t *testing.T) {
		s, _ := f.join(t, "sid-dj", "tok-a")
		err := s.Join(context.Background(), Join{Token: "tok-a", SpaceID: f.space.ID})
		if !errors.Is(err, core.ErrAlreadyJoined) {
			t.Fatalf("err = %v, want core.ErrAlreadyJoined", err)
		}
	})
	t.Run("join after destroy", func(t *testing.T) {
		s := NewSession("sid-d", &fakeConn{}, f.dir, f.verifier, f.store)
		s.Destroy()
		err := s.Join(context.Background(), Join{Token: "tok-a", SpaceID: f.space.ID})
		if !errors.Is(err, core.ErrSessionClosed) {
			t.Fatalf("err = %v, want core.ErrSessionClosed", err)
		}
	})
}

func TestMoveRules(t *testing.T) {
	f := newFixture(t)
	s, conn := f.join(t, "sid-a", "tok-a")
	_, connB := f.join(t, "sid-b", "tok-b")

	sj, _ := spawnOf(t, conn)
	x, y := sj.Spawn.X, sj.Spawn.Y
	// Park the session away from the walls so unit steps stay legal.
	s.mu.Lock()
	s.pos = domain.Position{X: 10, Y: 10}
	s.mu.Unlock()
	x, y = 10, 10

	if err := s.Move(Move{X: x + 1, Y: y}); err != nil {
		t.Fatalf("unit step east: %v", err)
	}
	if got := conn.typed(t, "move"); len(got) != 1 {
		t.Fatalf("mover got %d move echoes, want 1", len(got))
	}
	if got := connB.typed(t, "movement"); len(got) != 1 {
		t.Fatalf("peer got %d movement events, want 1", len(got))
	}

	rejected := []struct {
		name string
		to   domain.Position
	}{
		{"diagonal", domain.Position{X: x + 2, Y: y + 1}},
		{"teleport", domain.Position{X: x + 5, Y: y}},
		{"zero move", domain.Position{X: x + 1, Y: y}},
		{"negative", domain.Position{X: -1, Y: y}},
		{"zero edge", domain.Position{X: 0, Y: y}},
		{"past width", domain.Position{X: f.space.Width, Y: y}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Move(Move{X: tt.to.X, Y: tt.to.Y}); !errors.Is(err, core.ErrInvalidMove) {
				t.Fatalf("err = %v, want core.ErrInvalidMove", err)
			}
		})
	}

	// Every rejection answers with the unchanged position.
	rej := conn.typed(t, "movement-rejected")
	if len(rej) != len(rejected) {
		t.Fatalf("got %d rejections, want %d", len(rej), len(rejected))
	}
	for _, p := range rej {
		var mr MovementRejected
		if err := json.Unmarshal(p, &mr); err != nil {
			t.Fatalf("rejection payload: %v", err)
		}
		if mr.X != x+1 || mr.Y != y {
			t.Fatalf("rejection carries (%d,%d), want (%d,%d)", mr.X, mr.Y, x+1, y)
		}
	}
	// No broadcast happened for the invalid attempts.
	if got := connB.typed(t, "movement"); len(got) != 1 {
		t.Fatalf("peer got %d movement events after rejections, want 1", len(got))
	}
}

func TestDestroyIdempotent(t *testing.T) {
	f := newFixture(t)
	s, _ := f.join(t, "sid-a", "tok-a")
	_, connB := f.join(t, "sid-b", "tok-b")

	s.Destroy()
	s.Destroy()

	if got := connB.typed(t, "user-left"); len(got) != 1 {
		t.Fatalf("peer got %d user-left, want 1", len(got))
	}
	if rooms := f.dir.Rooms(); len(rooms) != 1 || rooms[0].Count != 1 {
		t.Fatalf("rooms = %+v, want one room with one occupant", rooms)
	}
}

func TestDirectoryPrunesEmptyRooms(t *testing.T) {
	f := newFixture(t)
	s, _ := f.join(t, "sid-a", "tok-a")
	s.Destroy()
	if rooms := f.dir.Rooms(); len(rooms) != 0 {
		t.Fatalf("rooms = %+v, want none after last leave", rooms)
	}
	// Removing again must stay a no-op.
	f.dir.Remove(f.space.ID, "sid-a")
}

func TestBroadcastKicksSlowSession(t *testing.T) {
	f := newFixture(t)
	_, slowConn := f.join(t, "sid-a", "tok-a")
	slowConn.mu.Lock()
	slowConn.full = true
	slowConn.mu.Unlock()

	f.join(t, "sid-b", "tok-b")

	slowConn.mu.Lock()
	closed := slowConn.closed
	slowConn.mu.Unlock()
	if !closed {
		t.Fatal("slow session was not kicked")
	}
}

func TestDecodeInbound(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"join","payload":{"token":"t","spaceId":"s"}}`))
	if err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if j, ok := in.(Join); !ok || j.Token != "t" || j.SpaceID != "s" {
		t.Fatalf("decoded %+v, want Join{t s}", in)
	}

	if _, err := DecodeInbound([]byte(`{"type":"dance","payload":{}}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("err = %v, want ErrUnknownMessage", err)
	}
	if _, err := DecodeInbound([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}
