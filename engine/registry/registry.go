// Package registry keeps live sessions keyed by id, evicting the least
// recently used and the idle.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nathoo/worldweaver/types"
)

const (
	DefaultSize = 256
	DefaultTTL  = 24 * time.Hour
)

// Factory builds the value for a session id on first touch.
type Factory[T any] func(ctx context.Context, id string) (T, error)

// Registry is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, T]
	factory Factory[T]
	onEvict func(id string, v T)
	logger  *slog.Logger
}

// Option configures a Registry.
type Option[T any] func(*options[T])

type options[T any] struct {
	size    int
	ttl     time.Duration
	onEvict func(id string, v T)
	logger  *slog.Logger
}

// WithSize bounds the number of live sessions.
func WithSize[T any](n int) Option[T] {
	return func(o *options[T]) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithTTL sets how long an untouched session survives.
func WithTTL[T any](d time.Duration) Option[T] {
	return func(o *options[T]) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithOnEvict registers a hook run when a session leaves the registry,
// whether by capacity, expiry, or Evict.
func WithOnEvict[T any](fn func(id string, v T)) Option[T] {
	return func(o *options[T]) { o.onEvict = fn }
}

// WithLogger sets the logger.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(o *options[T]) { o.logger = l }
}

// New creates a registry that builds missing sessions with factory.
func New[T any](factory Factory[T], opts ...Option[T]) *Registry[T] {
	o := options[T]{size: DefaultSize, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry[T]{factory: factory, onEvict: o.onEvict, logger: o.logger}
	r.cache = expirable.NewLRU[string, T](o.size, r.evicted, o.ttl)
	return r
}

func (r *Registry[T]) evicted(id string, v T) {
	r.logger.Debug("session evicted", "session", id)
	if r.onEvict != nil {
		r.onEvict(id, v)
	}
}

// Get returns the session for id, creating it on first touch. created
// reports whether the factory ran.
func (r *Registry[T]) Get(ctx context.Context, id string) (v T, created bool, err error) {
	if id == "" {
		return v, false, fmt.Errorf("empty session id: %w", types.ErrInvalidArgument)
	}
	if v, ok := r.cache.Get(id); ok {
		return v, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(id); ok {
		return v, false, nil
	}
	v, err = r.factory(ctx, id)
	if err != nil {
		return v, false, fmt.Errorf("create session %q: %w", id, err)
	}
	r.cache.Add(id, v)
	r.logger.Debug("session created", "session", id)
	return v, true, nil
}

// Create starts a session under a fresh random id.
func (r *Registry[T]) Create(ctx context.Context) (string, T, error) {
	id := uuid.NewString()
	v, _, err := r.Get(ctx, id)
	return id, v, err
}

// Peek returns a live session without creating it or refreshing its
// recency.
func (r *Registry[T]) Peek(id string) (T, bool) {
	return r.cache.Peek(id)
}

// Evict drops a session, running the eviction hook. It reports whether
// the session was live.
func (r *Registry[T]) Evict(id string) bool {
	return r.cache.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry[T]) Len() int {
	return r.cache.Len()
}

// IDs lists live session ids from oldest to newest.
func (r *Registry[T]) IDs() []string {
	return r.cache.Keys()
}

// Close evicts every session.
func (r *Registry[T]) Close() {
	r.cache.Purge()
}
