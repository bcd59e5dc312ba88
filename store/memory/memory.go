// Package memory is an in-process store for fragments, layout positions,
// and session state. It backs tests and the file-based console.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/nathoo/worldweaver/types"
)

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	fragments []types.Fragment
	positions map[string]types.Position
	sessions  map[string]*session
	now       func() time.Time
}

type session struct {
	vars      map[string]any
	snapshot  *types.Snapshot
	updatedAt time.Time
}

// New creates a store holding frags.
func New(frags ...types.Fragment) *Store {
	return &Store{
		fragments: append([]types.Fragment(nil), frags...),
		positions: map[string]types.Position{},
		sessions:  map[string]*session{},
		now:       time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SaveFragments replaces the fragment set.
func (s *Store) SaveFragments(_ context.Context, frags []types.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = append([]types.Fragment(nil), frags...)
	keep := make(map[string]bool, len(frags))
	for _, f := range frags {
		keep[f.ID] = true
	}
	for id := range s.positions {
		if !keep[id] {
			delete(s.positions, id)
		}
	}
	return nil
}

// Fragments returns the fragments with stored positions attached.
func (s *Store) Fragments(context.Context) ([]types.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Fragment, len(s.fragments))
	for i, f := range s.fragments {
		if pos, ok := s.positions[f.ID]; ok {
			f.Position = &pos
		}
		out[i] = f
	}
	return out, nil
}

// UpsertPosition stores the grid cell of a fragment.
func (s *Store) UpsertPosition(_ context.Context, fragmentID string, pos types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[fragmentID] = pos
	return nil
}

// Positions returns every stored position.
func (s *Store) Positions(context.Context) (map[string]types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.positions), nil
}

// SaveVariables stores the plain variables of a session.
func (s *Store) SaveVariables(_ context.Context, sessionID string, vars map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(sessionID)
	sess.vars = maps.Clone(vars)
	if sess.vars == nil {
		sess.vars = map[string]any{}
	}
	return nil
}

// LoadVariables reads the plain variables of a session.
func (s *Store) LoadVariables(_ context.Context, sessionID string) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(sess.vars), true, nil
}

// SaveSnapshot stores the full world state of a session, refreshing its
// variables too.
func (s *Store) SaveSnapshot(_ context.Context, snap types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(snap.SessionID)
	sess.snapshot = &snap
	sess.vars = maps.Clone(snap.Variables)
	if sess.vars == nil {
		sess.vars = map[string]any{}
	}
	return nil
}

// LoadSnapshot reads the full world state of a session.
func (s *Store) LoadSnapshot(_ context.Context, sessionID string) (types.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.snapshot == nil {
		return types.Snapshot{}, false, nil
	}
	return *sess.snapshot, true, nil
}

// DeleteSessionsBefore removes sessions last saved before cutoff.
func (s *Store) DeleteSessionsBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.updatedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(s.sessions, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// session returns the record for id, creating it, and stamps it.
// Callers hold the write lock.
func (s *Store) session(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.updatedAt = s.now()
	return sess
}
