package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nathoo/worldweaver/engine/registry"
)

// Sessions is the live-session registry of one world. Sessions are opened
// on first touch and flushed to the store when they leave.
type Sessions struct {
	world *World
	opts  Options
	reg   *registry.Registry[*Engine]
}

// NewSessions creates a registry of at most size sessions, each dropped
// after ttl without use. Zero values take the registry defaults.
func NewSessions(world *World, opts Options, size int, ttl time.Duration) *Sessions {
	s := &Sessions{world: world, opts: opts}
	regOpts := []registry.Option[*Engine]{
		registry.WithSize[*Engine](size),
		registry.WithTTL[*Engine](ttl),
		registry.WithOnEvict(s.evicted),
	}
	if opts.Logger != nil {
		regOpts = append(regOpts, registry.WithLogger[*Engine](opts.Logger))
	}
	s.reg = registry.New(s.open, regOpts...)
	return s
}

func (s *Sessions) open(ctx context.Context, id string) (*Engine, error) {
	return New(ctx, s.world, id, s.opts)
}

func (s *Sessions) evicted(id string, e *Engine) {
	if err := e.Close(context.Background()); err != nil && s.opts.Logger != nil {
		s.opts.Logger.Warn("flush on evict failed", "session", id, "error", err)
	}
}

// Get returns the engine for id, opening it on first touch.
func (s *Sessions) Get(ctx context.Context, id string) (*Engine, error) {
	e, _, err := s.reg.Get(ctx, id)
	return e, err
}

// Create opens a session under a fresh id.
func (s *Sessions) Create(ctx context.Context) (*Engine, error) {
	_, e, err := s.reg.Create(ctx)
	return e, err
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.reg.Len()
}

// Evict flushes and drops a live session.
func (s *Sessions) Evict(id string) bool {
	return s.reg.Evict(id)
}

// Sweep deletes stored sessions untouched since cutoff and drops any that
// are still live without flushing them back. It returns the deleted ids.
func (s *Sessions) Sweep(ctx context.Context, cutoff time.Time) ([]string, error) {
	if s.opts.Store == nil {
		return nil, nil
	}
	ids, err := s.opts.Store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep sessions: %w", err)
	}
	for _, id := range ids {
		if e, ok := s.reg.Peek(id); ok {
			e.detach()
			s.reg.Evict(id)
		}
	}
	return ids, nil
}

// Close flushes and drops every live session.
func (s *Sessions) Close() {
	s.reg.Close()
}
