package viewstate

import (
	"sync"
	"time"
)

type session struct {
	state   State
	touched time.Time
}

// Sessions keeps the latest view state per client session.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessions creates a store that forgets sessions idle for longer than
// ttl. A non-positive ttl keeps sessions forever.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{sessions: make(map[string]*session), ttl: ttl, now: time.Now}
}

// Dispatch applies a to the session's state and returns the result.
func (s *Sessions) Dispatch(id string, a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{state: Initial()}
		s.sessions[id] = sess
	}
	sess.state = Reduce(sess.state, a)
	sess.touched = s.now()
	return sess.state
}

func (s *Sessions) Get(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return State{}, false
	}
	return sess.state, true
}

func (s *Sessions) expired(sess *session) bool {
	return s.ttl > 0 && s.now().Sub(sess.touched) > s.ttl
}

func (s *Sessions) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
		}
	}
}
