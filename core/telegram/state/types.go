package state

import "time"

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and temporary data for a user.
// Values returned by Manager.Get are snapshots; mutate through the Manager.
type Session struct {
	State     State
	TempData  map[string]any
	StartedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the session holds a non-idle state.
func (s Session) Active() bool {
	return s.State != "" && s.State != StateIdle
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Get returns a snapshot of the user's session, or an idle one.
	Get(userID int64) Session
	// Start replaces any existing session with a fresh one in state st and
	// returns the state that was discarded (StateIdle when none).
	Start(userID int64, st State) State
	// SetState moves the user to st, creating the session when needed.
	SetState(userID int64, st State)
	GetState(userID int64) State
	// SetTemp stores per-session data; it is discarded with the session.
	SetTemp(userID int64, key string, value any)
	GetTemp(userID int64, key string) (any, bool)
	GetTempString(userID int64, key string) (string, bool)
	// Clear removes the session and reports whether one was active.
	Clear(userID int64) bool
	InProgress(userID int64) bool
	// Sweep drops expired sessions and returns how many were removed.
	Sweep() int
}

// Options configures the in-memory manager.
type Options struct {
	// TTL expires sessions idle for longer than this; zero disables expiry.
	TTL time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
	// OnExpire is invoked (outside the lock) for every session dropped by expiry.
	OnExpire func(userID int64, st State)
}
