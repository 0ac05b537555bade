package upload

import (
	"fmt"
	"sync"
	"time"
)

// DefaultRetention is how long a finished session stays available for
// polling.
const DefaultRetention = time.Hour

// Store keeps the sessions of a running server. Sessions are never
// persisted; they disappear with the process or once they expire.
type Store interface {
	Create(creds Credentials) (*Session, error)
	Get(id string) (*Session, error)
}

// MemoryStore is a concurrency-safe in-memory Store implementation. Idle
// sessions older than its retention are evicted on Create.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	retention time.Duration
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithRetention(DefaultRetention)
}

// NewMemoryStoreWithRetention returns a store that evicts sessions idle for
// longer than retention. A non-positive retention uses DefaultRetention.
func NewMemoryStoreWithRetention(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(creds Credentials) (*Session, error) {
	sess := NewSession(creds)

	s.mu.Lock()
	s.evictLocked()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return sess, nil
}

func (s *MemoryStore) evictLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, sess := range s.sessions {
		if since, idle := sess.idleSince(); idle && since.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
