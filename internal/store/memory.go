package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/city-weather/internal/metrics"
	"github.com/i474232898/city-weather/internal/ui"
)

var (
	// ErrNotFound is returned when no session exists for a given id.
	ErrNotFound = errors.New("session not found")
)

// Session is one browser's selector state.
type Session struct {
	ID       string
	Selector *ui.Selector
	LastSeen time.Time
}

// MemoryStore is a concurrency-safe in-memory session store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session id
	data map[string]*Session

	// retention configuration
	maxSessions int           // max number of live sessions
	maxAge      time.Duration // idle time after which Sweep evicts a session

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxSessions or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxSessions int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:        make(map[string]*Session),
		maxSessions: maxSessions,
		maxAge:      maxAge,
		now:         time.Now,
	}
}

// Save stores a session and enforces the session cap by evicting the least
// recently seen sessions.
func (s *MemoryStore) Save(sess *Session) {
	s.mu.Lock()
	sess.LastSeen = s.now()
	s.data[sess.ID] = sess

	var evicted []*Session
	if s.maxSessions > 0 && len(s.data) > s.maxSessions {
		all := make([]*Session, 0, len(s.data))
		for _, other := range s.data {
			if other.ID != sess.ID {
				all = append(all, other)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].LastSeen.Before(all[j].LastSeen) })

		over := len(s.data) - s.maxSessions
		for _, victim := range all[:over] {
			delete(s.data, victim.ID)
			evicted = append(evicted, victim)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.data)))
	s.mu.Unlock()

	closeSessions(evicted, "capacity")
}

// Get returns the session with the given id and marks it as seen.
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.LastSeen = s.now()
	return sess, nil
}

// Delete removes and closes a session.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	sess, ok := s.data[id]
	delete(s.data, id)
	metrics.ActiveSessions.Set(float64(len(s.data)))
	s.mu.Unlock()

	if ok {
		closeSessions([]*Session{sess}, "deleted")
	}
}

// Sweep evicts sessions idle for longer than maxAge and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	if s.maxAge <= 0 {
		return 0
	}

	s.mu.Lock()
	cutoff := s.now().Add(-s.maxAge)
	var evicted []*Session
	for id, sess := range s.data {
		if sess.LastSeen.Before(cutoff) {
			delete(s.data, id)
			evicted = append(evicted, sess)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.data)))
	s.mu.Unlock()

	closeSessions(evicted, "idle")
	return len(evicted)
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close evicts every session.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.data))
	for _, sess := range s.data {
		all = append(all, sess)
	}
	s.data = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	s.mu.Unlock()

	closeSessions(all, "shutdown")
}

// closeSessions must be called without holding the store lock: closing a
// selector waits for its in-flight fetch.
func closeSessions(sessions []*Session, reason string) {
	for _, sess := range sessions {
		if sess.Selector != nil {
			sess.Selector.Close()
		}
		metrics.SessionsEvicted.WithLabelValues(reason).Inc()
	}
}
