package auth

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/fragmede/shelf/internal/cache"
)

// Store is the single source of truth for the authentication state. Every
// mutation updates memory, the transport cookie jar and the persisted mirror
// in one step under the store lock.
type Store struct {
	jar     CookieJar
	persist Persister
	log     *slog.Logger

	mu      sync.RWMutex
	session Session
	// gen counts Clear calls. Work started under one generation must not
	// resurrect a session cleared after it began.
	gen uint64

	// notifyMu serializes observer delivery so observers see mutations in order.
	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[int]func(Session)
	nextObs   int
}

// NewStore creates an empty store.
func NewStore(jar CookieJar, persist Persister, log *slog.Logger) *Store {
	return &Store{
		jar:       jar,
		persist:   persist,
		log:       log,
		observers: make(map[int]func(Session)),
	}
}

// Read returns a copy of the current session.
func (s *Store) Read() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

// Generation returns the current clear generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Replace marks the session authenticated as u and persists it.
func (s *Store) Replace(u User) {
	s.ReplaceIf(s.Generation(), u)
}

// ReplaceIf is Replace, applied only if the store has not been cleared since
// gen was read. It reports whether the replacement happened.
func (s *Store) ReplaceIf(gen uint64, u User) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Info("dropping stale session update", "generation", gen, "current", s.gen)
		return false
	}
	s.session = Session{User: &u, IsAuthenticated: true}
	rec := cache.SessionRecord{
		Profile:       &cache.Profile{ID: u.ID, Username: u.Username, Email: u.Email},
		Authenticated: true,
		Cookies:       s.jar.Cookies(),
	}
	if err := s.persist.SaveSession(rec); err != nil {
		s.log.Error("persisting session", "error", err)
	}
	snap := s.session.clone()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Clear drops the session from memory, the cookie jar and the persisted
// mirror. A reload can never observe an authenticated mirror without cookies.
func (s *Store) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.clearLocked()
}

// ClearIf is Clear, applied only if the store has not been cleared since gen
// was read, so a late negative answer cannot drop a newer session.
func (s *Store) ClearIf(gen uint64) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.clearLocked()
	return true
}

// clearLocked runs with notifyMu and mu held and releases mu.
func (s *Store) clearLocked() {
	wasAuthenticated := s.session.IsAuthenticated
	s.session = Session{}
	s.gen++
	s.jar.ResetCookies()
	if err := s.persist.ClearSession(); err != nil {
		s.log.Error("clearing persisted session", "error", err)
	}
	s.mu.Unlock()

	if wasAuthenticated {
		s.log.Info("session cleared")
	}
	s.notify(Session{})
}

// Restore rehydrates the store from the persisted mirror. An incomplete or
// undecodable mirror is erased instead. If the mirror cannot be read at all
// the store starts empty and the mirror is kept.
func (s *Store) Restore() bool {
	rec, ok, err := s.persist.LoadSession()
	switch {
	case errors.Is(err, cache.ErrCorruptSession):
		s.log.Warn("discarding undecodable persisted session", "error", err)
		s.Clear()
		return false
	case err != nil:
		// Another process may hold the database; leave its mirror alone.
		s.log.Warn("loading persisted session", "error", err)
		return false
	}
	if !ok {
		return false
	}
	if !rec.Authenticated || rec.Profile == nil || len(rec.Cookies) == 0 {
		s.log.Info("discarding incomplete persisted session")
		s.Clear()
		return false
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.jar.SetCookies(rec.Cookies)
	u := User{ID: rec.Profile.ID, Username: rec.Profile.Username, Email: rec.Profile.Email}
	s.session = Session{User: &u, IsAuthenticated: true}
	snap := s.session.clone()
	s.mu.Unlock()

	s.log.Info("session restored", "username", u.Username, "saved_at", rec.SavedAt)
	s.notify(snap)
	return true
}

// Subscribe registers fn to be called after every mutation. The returned
// function removes it.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(snap Session) {
	s.obsMu.Lock()
	fns := make([]func(Session), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}

func (s Session) clone() Session {
	if s.User == nil {
		return Session{}
	}
	u := *s.User
	return Session{User: &u, IsAuthenticated: true}
}
