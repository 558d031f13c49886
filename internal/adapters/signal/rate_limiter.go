package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Arena/internal/core"
)

// CreateRoomLimiter is a sliding-window limiter keyed by client
// session, guarding room creation against spam.
type CreateRoomLimiter struct {
	mu       sync.Mutex
	history  map[core.SessionID][]time.Time
	limit    int
	interval time.Duration

	now func() time.Time
}

func NewCreateRoomLimiter(limit int, interval time.Duration) *CreateRoomLimiter {
	return &CreateRoomLimiter{
		history:  make(map[core.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *CreateRoomLimiter) Allow(sid core.SessionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]

	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[sid] = fresh

	return true
}
