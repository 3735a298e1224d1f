package server

import (
	"sync"
	"time"

	"github.com/KeshavPeri/tickle/internal/game"
)

// reapInterval is how often idle sessions are checked for expiry.
const reapInterval = time.Minute

type sessionEntry struct {
	session  *game.Session
	lastSeen time.Time
}

// SessionRegistry holds live game sessions and expires idle ones.
type SessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionRegistry creates a registry that drops sessions idle for longer than ttl.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Add registers a session.
func (r *SessionRegistry) Add(s *game.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID()] = &sessionEntry{session: s, lastSeen: r.now()}
}

// Get returns a session and marks it as seen.
func (r *SessionRegistry) Get(id string) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Remove closes and drops a session.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.session.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reap closes sessions idle for longer than the ttl and returns how many were dropped.
func (r *SessionRegistry) Reap() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*game.Session
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.session)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// StartReaper runs Reap every interval until Stop.
func (r *SessionRegistry) StartReaper(interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				r.Reap()
			}
		}
	}()
}

// Stop ends the reaper and closes every session.
func (r *SessionRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	all := r.entries
	r.entries = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, e := range all {
		e.session.Close()
	}
}
