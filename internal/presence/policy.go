package presence

// BackpressureAction decides what happens to a session whose send
// buffer was full during a broadcast fan-out.
type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickSession
)

type Policy interface {
	OnBackpressure(s *Session) BackpressureAction
}

// KickSlowPolicy drops the whole session. Broadcast is fire-and-forget
// with a bounded buffer; a connection that cannot drain it is treated
// as dead rather than allowed to accumulate frames.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackpressure(*Session) BackpressureAction { return KickSession }
