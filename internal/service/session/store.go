package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/rudeai/innerlog/backend/internal/model/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("session id is required")
)

type entry struct {
	mu      sync.Mutex
	session model.Session
	deleted bool
}

// Store keeps sessions in memory. The map is guarded by an RWMutex and every
// session carries its own mutex so turns for one id are serialised while
// different sessions proceed in parallel.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore bootstraps an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create provisions a new session in the initial state.
func (s *Store) Create(_ context.Context) (model.Session, error) {
	sess := model.New(uuid.NewString(), s.now())

	s.mu.Lock()
	s.entries[sess.ID] = &entry{session: sess}
	s.mu.Unlock()

	return sess.Clone(), nil
}

// Get returns a deep copy of the stored session.
func (s *Store) Get(_ context.Context, id string) (model.Session, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return model.Session{}, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Put inserts or replaces a session wholesale.
func (s *Store) Put(_ context.Context, sess model.Session) error {
	if sess.ID == "" {
		return ErrInvalidSession
	}
	stored := sess.Clone()

	s.mu.Lock()
	e, ok := s.entries[sess.ID]
	if !ok {
		s.entries[sess.ID] = &entry{session: stored}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.session = stored
	e.mu.Unlock()
	return nil
}

// Delete removes a session. Deleting an unknown id reports ErrSessionNotFound.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// ListActive returns copies of every session not in the terminal state,
// oldest first.
func (s *Store) ListActive(_ context.Context) ([]model.Session, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	active := make([]model.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && e.session.Active() {
			active = append(active, e.session.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// Update runs fn against a copy of the session while holding its lock and
// stores the result when fn succeeds. A failing fn leaves the session as it was.
func (s *Store) Update(_ context.Context, id string, fn func(*model.Session) error) (model.Session, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return model.Session{}, ErrSessionNotFound
	}

	working := e.session.Clone()
	if err := fn(&working); err != nil {
		return model.Session{}, err
	}
	working.ID = e.session.ID
	e.session = working
	return working.Clone(), nil
}

// Len reports how many sessions are stored, active or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}
