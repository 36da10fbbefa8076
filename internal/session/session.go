// Package session tracks per-user preferences and usage counters for the
// bot. Nothing here survives a restart.
package session

import (
	"sync"
	"time"

	"github.com/Raks-kmt/kaishou/internal/domain"
)

// Session is one user's state. Stores hand out copies; the canonical
// value never leaves the store.
type Session struct {
	UserID       int64
	Quality      domain.Quality
	Downloads    int
	LastActivity time.Time
}

// Totals aggregates usage across every live session.
type Totals struct {
	Users     int
	Downloads int
}

// Store keeps per-user sessions.
type Store interface {
	// Touch marks activity and returns the user's session, creating it
	// with defaults on first contact.
	Touch(userID int64) Session
	// Quality returns the user's preference without marking activity.
	Quality(userID int64) domain.Quality
	SetQuality(userID int64, q domain.Quality)
	// RecordDownload increments the user's counter and returns the new
	// value.
	RecordDownload(userID int64) int
	Totals() Totals
}

// MemoryStore is a mutex-guarded in-memory Store. Sessions are never
// evicted.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// ensure returns the live session for userID, creating it if needed.
// Callers must hold the lock.
func (s *MemoryStore) ensure(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{
			UserID:       userID,
			Quality:      domain.DefaultQuality,
			LastActivity: s.now(),
		}
		s.sessions[userID] = sess
	}
	return sess
}

func (s *MemoryStore) Touch(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensure(userID)
	sess.LastActivity = s.now()
	return *sess
}

func (s *MemoryStore) Quality(userID int64) domain.Quality {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess.Quality
	}
	return domain.DefaultQuality
}

func (s *MemoryStore) SetQuality(userID int64, q domain.Quality) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensure(userID)
	sess.Quality = q
	sess.LastActivity = s.now()
}

func (s *MemoryStore) RecordDownload(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensure(userID)
	sess.Downloads++
	sess.LastActivity = s.now()
	return sess.Downloads
}

func (s *MemoryStore) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Totals{Users: len(s.sessions)}
	for _, sess := range s.sessions {
		t.Downloads += sess.Downloads
	}
	return t
}
