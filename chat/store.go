package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"storechat/config"
)

// Store is the explicit process-wide session map. It is created with
// NewStore, passed by reference into the orchestrator, and torn down with
// Close. No ambient singletons, so tests get full isolation.
//
// Idle sessions are garbage-collected by a periodic sweep rather than a
// timer per session. The sweep interval and the idle timeout are two
// independent knobs.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	historyCap int
	timeout    time.Duration
	sweeper    *cron.Cron
}

// NewStore creates the session store and starts the cleanup sweep.
func NewStore(cfg config.SessionConfig) *Store {
	s := &Store{
		sessions:   make(map[string]*Session),
		historyCap: cfg.HistoryCap,
		timeout:    time.Duration(cfg.TimeoutMinutes) * time.Minute,
	}

	s.sweeper = cron.New()
	spec := fmt.Sprintf("@every %dm", cfg.CleanupIntervalMinutes)
	s.sweeper.AddFunc(spec, s.sweep)
	s.sweeper.Start()

	return s
}

// Close stops the cleanup sweep. Sessions are not persisted.
func (s *Store) Close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
}

// getOrCreate returns the session with the given id, creating it lazily.
// An empty id always creates a fresh session.
func (s *Store) getOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	sess := &Session{
		ID:           id,
		LastActivity: time.Now(),
	}
	s.sessions[id] = sess
	return sess
}

// get returns an existing session or nil.
func (s *Store) get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// clear removes a session. Clearing an unknown id is a no-op, so calling it
// twice is safe.
func (s *Store) clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// sweep evicts sessions idle past the timeout.
func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Chat] Swept idle session %s", id)
			}
		}
	}
}

// count returns the number of live sessions.
func (s *Store) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
