package chat

import (
	"sync"
	"time"

	"github.com/rensmac/sparq-chat/internal/domain"
)

// Session holds one identity's live conversation history. The history is
// guarded by the session's own lock, which a turn protocol holds for its
// entire duration, streaming included. lastAccess is guarded by the
// registry's structural lock instead, so the sweeper never has to touch a
// session lock.
type Session struct {
	mu         sync.Mutex
	history    []domain.Turn
	lastAccess time.Time
}

// History returns a copy of the committed history.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.history...)
}

// Restore replaces the session history, used when a client re-syncs a
// previously persisted conversation into the live session.
func (s *Session) Restore(history []domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]domain.Turn(nil), history...)
}

// Registry maps identity keys to live sessions. The registry's own mutex
// protects only the map and the lastAccess stamps; it is never held while
// a session lock is held, which keeps turns for distinct identities fully
// independent.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Resolve returns the session for key, creating an empty one on first
// access, and stamps it as touched now.
func (r *Registry) Resolve(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[key]
	if !ok {
		sess = &Session{}
		r.sessions[key] = sess
	}
	sess.lastAccess = r.now()

	return sess
}

// Discard removes the session for key if present. A turn already holding
// the session's handle finishes against that handle; its next Resolve
// observes a fresh empty session.
func (r *Registry) Discard(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Sweep removes every session idle for longer than maxIdle and reports how
// many were dropped. Only the structural lock is taken: an active turn
// keeps its session alive by having stamped lastAccess at Resolve time.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for key, sess := range r.sessions {
		if sess.lastAccess.Before(cutoff) {
			delete(r.sessions, key)
			removed++
		}
	}

	return removed
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
