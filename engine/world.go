package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/engine/spatial"
	"github.com/nathoo/worldweaver/telemetry"
	"github.com/nathoo/worldweaver/types"
)

// World is the content every session of a game shares: the fragment set
// in authored order and its layout. It is safe for concurrent use.
type World struct {
	Def    types.WorldDef
	Layout *spatial.Layout

	mu        sync.RWMutex
	fragments []types.Fragment
	byID      map[string]int

	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithWorldMetrics records layout placements.
func WithWorldMetrics(m *telemetry.Metrics) WorldOption {
	return func(w *World) { w.metrics = m }
}

// WithWorldLogger sets the logger.
func WithWorldLogger(l *slog.Logger) WorldOption {
	return func(w *World) { w.logger = l }
}

// NewWorld creates an empty world over layout. A nil layout gets a fresh
// one with default settings.
func NewWorld(def types.WorldDef, layout *spatial.Layout, opts ...WorldOption) *World {
	if layout == nil {
		layout = spatial.New()
	}
	w := &World{
		Def:    def,
		Layout: layout,
		byID:   map[string]int{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start returns the location sessions begin at.
func (w *World) Start() string {
	if w.Def.Start == "" {
		return DefaultStart
	}
	return w.Def.Start
}

// Load reads every fragment from src and adds it.
func (w *World) Load(ctx context.Context, src FragmentSource) (int, error) {
	frags, err := src.Fragments(ctx)
	if err != nil {
		return 0, fmt.Errorf("load fragments: %w", err)
	}
	return w.Add(ctx, frags...)
}

// Add registers fragments, replacing any with the same id, adopts their
// stored positions, and places the rest. It returns how many fragments
// were newly placed.
func (w *World) Add(ctx context.Context, frags ...types.Fragment) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, f := range frags {
		if i, ok := w.byID[f.ID]; ok {
			w.fragments[i] = f
			continue
		}
		w.byID[f.ID] = len(w.fragments)
		w.fragments = append(w.fragments, f)
	}

	w.Layout.Load(frags)
	placed, err := w.Layout.PlaceMissing(ctx, frags)
	if err != nil {
		return 0, fmt.Errorf("place fragments: %w", err)
	}
	w.metrics.Placed(placed)
	w.logger.Info("world loaded", "fragments", len(w.fragments), "placed", placed)
	return placed, nil
}

// Relayout discards every position and lays the whole world out again.
func (w *World) Relayout(ctx context.Context) (map[string]types.Position, error) {
	w.mu.RLock()
	frags := append([]types.Fragment(nil), w.fragments...)
	w.mu.RUnlock()

	positions, err := w.Layout.AssignPositions(ctx, frags)
	if err != nil {
		return nil, fmt.Errorf("assign positions: %w", err)
	}
	w.metrics.Placed(len(positions))
	return positions, nil
}

// Fragments returns the fragments in authored order.
func (w *World) Fragments() []types.Fragment {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]types.Fragment(nil), w.fragments...)
}

// Fragment looks a fragment up by id.
func (w *World) Fragment(id string) (types.Fragment, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.byID[id]
	if !ok {
		return types.Fragment{}, false
	}
	return w.fragments[i], true
}

// Len returns the number of fragments.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.fragments)
}

// AtLocation returns the first fragment, in authored order, whose
// requirement names location as a literal.
func (w *World) AtLocation(location string) (types.Fragment, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, f := range w.fragments {
		if loc, ok := rules.LiteralLocation(f.Requires); ok && loc == location {
			return f, true
		}
	}
	return types.Fragment{}, false
}
