package spatial

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// PositionStore persists fragment coordinates.
type PositionStore interface {
	UpsertPosition(ctx context.Context, fragmentID string, pos types.Position) error
}

// Random picks the direction a connected fragment is nudged in.
// *engine.RNG implements it.
type Random interface {
	Intn(n int) int
}

// Layout is the Spatial Layout Engine. Positions are injective: no two
// fragments share a cell. Queries are safe for concurrent use; placement
// passes are serialized.
type Layout struct {
	mu        sync.RWMutex
	positions map[string]types.Position
	occupants map[types.Position]string
	fragments map[string]types.Fragment

	assignMu  sync.Mutex
	mapper    *Mapper
	maxRadius int
	rng       Random
	store     PositionStore
	logger    *slog.Logger
}

// Option configures a Layout.
type Option func(*Layout)

// WithStore persists every placement through s.
func WithStore(s PositionStore) Option {
	return func(l *Layout) { l.store = s }
}

// WithRandom sets the source used for connectivity nudges.
func WithRandom(r Random) Option {
	return func(l *Layout) { l.rng = r }
}

// WithMaxRadius bounds the collision ring search.
func WithMaxRadius(r int) Option {
	return func(l *Layout) {
		if r > 0 {
			l.maxRadius = r
		}
	}
}

// WithMapper replaces the location table.
func WithMapper(m *Mapper) Option {
	return func(l *Layout) { l.mapper = m }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Layout) { l.logger = lg }
}

// New creates an empty, unpositioned layout.
func New(opts ...Option) *Layout {
	l := &Layout{
		positions: map[string]types.Position{},
		occupants: map[types.Position]string{},
		fragments: map[string]types.Fragment{},
		mapper:    NewMapper(DefaultLocations),
		maxRadius: DefaultMaxRadius,
		rng:       rand.New(rand.NewSource(1)),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load registers fragments and adopts the positions they already carry.
// A stored position that collides with an earlier one is dropped and the
// fragment is left for PlaceMissing. It returns the number adopted.
func (l *Layout) Load(frags []types.Fragment) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	adopted := 0
	for _, f := range frags {
		l.fragments[f.ID] = f
		if f.Position == nil {
			continue
		}
		pos := *f.Position
		if other, taken := l.occupants[pos]; taken && other != f.ID {
			l.logger.Warn("stored position collides", "fragment", f.ID, "occupant", other, "x", pos.X, "y", pos.Y)
			continue
		}
		if old, ok := l.positions[f.ID]; ok {
			delete(l.occupants, old)
		}
		l.positions[f.ID] = pos
		l.occupants[pos] = f.ID
		adopted++
	}
	return adopted
}

// AssignPositions discards the current layout and places every fragment
// in two phases: by location name, then by choice connectivity for
// fragments without a literal location. The new layout replaces the old
// one only after every position has been persisted.
func (l *Layout) AssignPositions(ctx context.Context, frags []types.Fragment) (map[string]types.Position, error) {
	l.assignMu.Lock()
	defer l.assignMu.Unlock()

	p := newPlan(nil)
	l.place(p, frags, frags)

	if err := l.persist(ctx, p); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.positions = p.positions
	l.occupants = p.occupants
	l.fragments = make(map[string]types.Fragment, len(frags))
	for _, f := range frags {
		l.fragments[f.ID] = f
	}
	out := copyPositions(l.positions)
	l.mu.Unlock()

	l.logger.Info("layout assigned", "fragments", len(frags), "placed", len(out))
	return out, nil
}

// PlaceMissing registers frags and places those without a position,
// leaving existing placements untouched. It returns how many were placed.
func (l *Layout) PlaceMissing(ctx context.Context, frags []types.Fragment) (int, error) {
	l.assignMu.Lock()
	defer l.assignMu.Unlock()

	l.mu.RLock()
	p := newPlan(l.positions)
	all := make([]types.Fragment, 0, len(l.fragments)+len(frags))
	known := map[string]bool{}
	for _, f := range frags {
		all = append(all, f)
		known[f.ID] = true
	}
	for _, id := range sortedIDs(l.fragments) {
		if !known[id] {
			all = append(all, l.fragments[id])
		}
	}
	l.mu.RUnlock()

	var missing []types.Fragment
	for _, f := range frags {
		if _, ok := p.positions[f.ID]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		l.mu.Lock()
		for _, f := range frags {
			l.fragments[f.ID] = f
		}
		l.mu.Unlock()
		return 0, nil
	}

	l.place(p, missing, all)
	if err := l.persist(ctx, p); err != nil {
		return 0, err
	}

	l.mu.Lock()
	for _, f := range frags {
		l.fragments[f.ID] = f
	}
	for _, id := range p.order {
		pos := p.positions[id]
		l.positions[id] = pos
		l.occupants[pos] = id
	}
	l.mu.Unlock()

	l.logger.Info("placed missing fragments", "count", len(p.order))
	return len(p.order), nil
}

// place lays out frags into p. Location suggestions are computed over
// all registered fragments so that names keep their cells across
// partial passes.
func (l *Layout) place(p *plan, frags, all []types.Fragment) {
	// Phase A: one suggested cell per distinct location name.
	names := map[string]bool{}
	for _, f := range all {
		if loc, ok := rules.LiteralLocation(f.Requires); ok {
			names[NormalizeLocation(loc)] = true
		}
	}
	used := map[types.Position]bool{}
	suggested := make(map[string]types.Position, len(names))
	for _, name := range sortedIDs(names) {
		base, kind := l.mapper.Suggest(name)
		cell := FindFree(base, func(c types.Position) bool { return used[c] }, l.maxRadius)
		used[cell] = true
		suggested[name] = cell
		l.logger.Debug("location suggested", "location", name, "match", kind.String(), "x", cell.X, "y", cell.Y)
	}

	var unplaced []types.Fragment
	for _, f := range frags {
		loc, ok := rules.LiteralLocation(f.Requires)
		if !ok {
			unplaced = append(unplaced, f)
			continue
		}
		p.put(f.ID, FindFree(suggested[NormalizeLocation(loc)], p.occupied, l.maxRadius))
	}

	// Phase B: breadth-first over choice connectivity.
	if len(unplaced) == 0 {
		return
	}
	g := BuildGraph(unplaced)
	origin := types.Position{}

	type pending struct {
		id  string
		pos types.Position
	}
	queue := []pending{{id: g.Start(), pos: origin}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, done := p.positions[next.id]; done {
			continue
		}
		at := FindFree(next.pos, p.occupied, l.maxRadius)
		p.put(next.id, at)
		for _, nb := range g.Edges[next.id] {
			if _, done := p.positions[nb]; done {
				continue
			}
			d := Directions[l.rng.Intn(len(Directions))]
			queue = append(queue, pending{id: nb, pos: Step(at, d)})
		}
	}

	cursor := origin
	for _, id := range g.Order {
		if _, done := p.positions[id]; done {
			continue
		}
		cursor = FindFree(cursor, p.occupied, l.maxRadius)
		p.put(id, cursor)
	}
}

func (l *Layout) persist(ctx context.Context, p *plan) error {
	if l.store == nil {
		return nil
	}
	for _, id := range p.order {
		if err := l.store.UpsertPosition(ctx, id, p.positions[id]); err != nil {
			return fmt.Errorf("persist position of %q: %w", id, err)
		}
	}
	return nil
}

// Position returns the cell of a fragment.
func (l *Layout) Position(id string) (types.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[id]
	return pos, ok
}

// At returns the fragment occupying a cell.
func (l *Layout) At(pos types.Position) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.occupants[pos]
	return id, ok
}

// Len returns the number of placed fragments.
func (l *Layout) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Positions returns a copy of every placement.
func (l *Layout) Positions() map[string]types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyPositions(l.positions)
}

// Neighbor is one compass entry of a navigation query. Fragment is nil
// when the adjacent cell is empty.
type Neighbor struct {
	Direction types.Direction
	Position  types.Position
	Fragment  *types.Fragment
}

// Navigation returns the eight neighbors of a fragment in Directions
// order. An unplaced fragment has eight empty neighbors.
func (l *Layout) Navigation(id string) []Neighbor {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Neighbor, len(Directions))
	self, placed := l.positions[id]
	for i, d := range Directions {
		out[i].Direction = d
		if !placed {
			continue
		}
		cell := Step(self, d)
		out[i].Position = cell
		if nid, ok := l.occupants[cell]; ok {
			f := l.fragments[nid]
			f.Position = &cell
			out[i].Fragment = &f
		}
	}
	return out
}

// Neighbor returns the fragment adjacent to id in the named direction.
// An unknown direction name is an invalid argument.
func (l *Layout) Neighbor(id, direction string) (*types.Fragment, error) {
	d, err := ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	for _, nb := range l.Navigation(id) {
		if nb.Direction.Name == d.Name {
			return nb.Fragment, nil
		}
	}
	return nil, nil
}

// CanMove reports whether a neighbor exists in direction and its
// requirement holds against src.
func (l *Layout) CanMove(id, direction string, src rules.Source) (bool, error) {
	f, err := l.Neighbor(id, direction)
	if err != nil || f == nil {
		return false, err
	}
	return rules.Evaluate(f.Requires, src), nil
}

// plan is a layout under construction.
type plan struct {
	positions map[string]types.Position
	occupants map[types.Position]string
	order     []string
}

func newPlan(existing map[string]types.Position) *plan {
	p := &plan{
		positions: make(map[string]types.Position, len(existing)),
		occupants: make(map[types.Position]string, len(existing)),
	}
	for id, pos := range existing {
		p.positions[id] = pos
		p.occupants[pos] = id
	}
	return p
}

func (p *plan) occupied(pos types.Position) bool {
	_, ok := p.occupants[pos]
	return ok
}

func (p *plan) put(id string, pos types.Position) {
	p.positions[id] = pos
	p.occupants[pos] = id
	p.order = append(p.order, id)
}

func copyPositions(m map[string]types.Position) map[string]types.Position {
	out := make(map[string]types.Position, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
