package state

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/m3rciful/gatebot/core/logger"
)

type memoryManager struct {
	opts Options

	mu       sync.Mutex
	sessions map[int64]*Session
}

type dropped struct {
	userID int64
	state  State
}

// NewMemoryManager constructs an in-memory Manager. Sessions are lost on restart.
func NewMemoryManager(opts Options) Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &memoryManager{opts: opts, sessions: make(map[int64]*Session)}
}

// with runs fn under the lock on the user's live session, or nil when there is
// none. A session past its TTL is removed first and reported to OnExpire.
func (m *memoryManager) with(userID int64, fn func(now time.Time, s *Session)) {
	now := m.opts.Now()
	var gone []dropped

	m.mu.Lock()
	s := m.sessions[userID]
	if s != nil && m.stale(s, now) {
		gone = append(gone, dropped{userID, s.State})
		delete(m.sessions, userID)
		s = nil
	}
	fn(now, s)
	m.mu.Unlock()

	m.notify(gone)
}

func (m *memoryManager) stale(s *Session, now time.Time) bool {
	return m.opts.TTL > 0 && now.Sub(s.UpdatedAt) > m.opts.TTL
}

// touch returns the live session, creating an idle one when missing. Callers hold the lock.
func (m *memoryManager) touch(userID int64, now time.Time, s *Session) *Session {
	if s == nil {
		s = &Session{State: StateIdle, TempData: map[string]any{}, StartedAt: now}
		m.sessions[userID] = s
	}
	s.UpdatedAt = now
	return s
}

func (m *memoryManager) Get(userID int64) Session {
	out := Session{State: StateIdle, TempData: map[string]any{}}
	m.with(userID, func(_ time.Time, s *Session) {
		if s != nil {
			out = *s
			out.TempData = maps.Clone(s.TempData)
		}
	})
	return out
}

func (m *memoryManager) Start(userID int64, st State) State {
	prev := StateIdle
	m.with(userID, func(now time.Time, s *Session) {
		if s != nil {
			prev = s.State
		}
		m.sessions[userID] = &Session{State: st, TempData: map[string]any{}, StartedAt: now, UpdatedAt: now}
	})
	return prev
}

func (m *memoryManager) SetState(userID int64, st State) {
	m.with(userID, func(now time.Time, s *Session) {
		m.touch(userID, now, s).State = st
	})
}

func (m *memoryManager) GetState(userID int64) State {
	st := StateIdle
	m.with(userID, func(_ time.Time, s *Session) {
		if s != nil {
			st = s.State
		}
	})
	return st
}

func (m *memoryManager) SetTemp(userID int64, key string, value any) {
	m.with(userID, func(now time.Time, s *Session) {
		m.touch(userID, now, s).TempData[key] = value
	})
}

func (m *memoryManager) GetTemp(userID int64, key string) (val any, ok bool) {
	m.with(userID, func(_ time.Time, s *Session) {
		if s != nil {
			val, ok = s.TempData[key]
		}
	})
	return val, ok
}

func (m *memoryManager) GetTempString(userID int64, key string) (string, bool) {
	val, _ := m.GetTemp(userID, key)
	str, ok := val.(string)
	return str, ok
}

func (m *memoryManager) Clear(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok && s.Active()
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

func (m *memoryManager) Sweep() int {
	if m.opts.TTL <= 0 {
		return 0
	}
	now := m.opts.Now()
	var gone []dropped

	m.mu.Lock()
	for id, s := range m.sessions {
		if m.stale(s, now) {
			gone = append(gone, dropped{id, s.State})
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	m.notify(gone)
	return len(gone)
}

func (m *memoryManager) notify(gone []dropped) {
	for _, d := range gone {
		logger.Debug(context.Background(), "tg", "fsm.expired",
			slog.Int64("user_id", d.userID),
			slog.String("state", string(d.state)),
		)
		if m.opts.OnExpire != nil {
			m.opts.OnExpire(d.userID, d.state)
		}
	}
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func RunJanitor(ctx context.Context, mgr Manager, interval time.Duration) {
	if mgr == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mgr.Sweep(); n > 0 {
				logger.Debug(ctx, "tg", "fsm.sweep", slog.String("status", "ok"), slog.Int("count", n))
			}
		}
	}
}
