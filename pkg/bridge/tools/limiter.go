package tools

// DefaultMaxRoundTrips bounds model-to-tool round trips within one user turn.
const DefaultMaxRoundTrips = 3

// TurnLimiter counts tool round trips per user turn. Owned by the call's
// dispatch loop, so no locking.
type TurnLimiter struct {
	max  int
	used int
}

func NewTurnLimiter(max int) *TurnLimiter {
	if max <= 0 {
		max = DefaultMaxRoundTrips
	}
	return &TurnLimiter{max: max}
}

// Allow consumes one round trip. Once it returns false the turn's tool
// budget is spent and the caller must report a terminal result instead of
// executing the tool.
func (l *TurnLimiter) Allow() bool {
	if l.used >= l.max {
		return false
	}
	l.used++
	return true
}

// Reset starts a fresh user turn.
func (l *TurnLimiter) Reset() {
	l.used = 0
}

func (l *TurnLimiter) Used() int {
	return l.used
}

func (l *TurnLimiter) Max() int {
	return l.max
}
