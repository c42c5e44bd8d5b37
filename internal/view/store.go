package view

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kartoza/attention-is-key/internal/attention"
)

// ErrSessionNotFound is returned for unknown session ids
var ErrSessionNotFound = errors.New("session not found")

// ReapSchedule is how often idle sessions are looked for
const ReapSchedule = "@every 1m"

// Store holds the live sessions and expires idle ones
type Store struct {
	analyzer attention.Analyzer
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// NewStore creates a session store. Sessions idle for longer than ttl are
// closed by the reaper; a zero ttl disables expiry.
func NewStore(analyzer attention.Analyzer, timeout, ttl time.Duration) *Store {
	return &Store{
		analyzer: analyzer,
		timeout:  timeout,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
		cron:     cron.New(),
	}
}

// Start schedules the idle reaper
func (s *Store) Start() error {
	if s.ttl <= 0 {
		return nil
	}
	if _, err := s.cron.AddFunc(ReapSchedule, func() {
		if n := s.Reap(); n > 0 {
			log.Printf("Expired %d idle session(s)", n)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the reaper and closes every session
func (s *Store) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

// Create opens a new session
func (s *Store) Create() *Session {
	sess := NewSession(uuid.New().String(), s.analyzer, s.timeout)
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a session by id
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete closes and removes a session
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	return nil
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap closes sessions idle for longer than the ttl. Sessions with a
// request in flight are left alone. It returns the number closed.
func (s *Store) Reap() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		last, idle := sess.idleSince()
		if idle && last.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	return len(expired)
}
