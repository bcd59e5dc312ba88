// Package state owns a session's mutable world: variables, inventory,
// relationships and environment, plus the change history and the cached
// contextual view derived from them.
//
// A Manager is not safe for concurrent mutation. Callers serialize calls
// against one session.
package state

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

const (
	// DefaultViewTTL bounds how long a contextual view is served from cache
	// when no mutation has happened in between.
	DefaultViewTTL = 30 * time.Second

	// MemoryLimit caps a relationship's memory ring.
	MemoryLimit = 10

	// ExportHistoryLimit caps the change history carried in a snapshot.
	ExportHistoryLimit = 100

	relationshipMin = -100.0
	relationshipMax = 100.0
)

// Manager is the World State Manager for one session.
type Manager struct {
	sessionID     string
	variables     map[string]any
	inventory     map[string]*types.ItemState
	relationships map[string]*types.RelationshipState
	environment   types.Environment
	history       []types.Change

	activeFragment string

	view        map[string]any
	viewExpires time.Time
	viewTTL     time.Duration

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithViewTTL sets the contextual view cache lifetime.
func WithViewTTL(d time.Duration) Option {
	return func(m *Manager) { m.viewTTL = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for mutation tracing.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates an empty world for sessionID with the default environment.
func New(sessionID string, opts ...Option) *Manager {
	m := &Manager{
		sessionID:     sessionID,
		variables:     map[string]any{},
		inventory:     map[string]*types.ItemState{},
		relationships: map[string]*types.RelationshipState{},
		environment:   DefaultEnvironment(),
		viewTTL:       DefaultViewTTL,
		now:           time.Now,
		newID:         uuid.NewString,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultEnvironment returns the environment a new session starts with.
func DefaultEnvironment() types.Environment {
	return types.Environment{
		TimeOfDay:   "morning",
		Weather:     "clear",
		Season:      "spring",
		Temperature: 20,
		DangerLevel: 0,
		NoiseLevel:  0,
		Lighting:    "bright",
		AirQuality:  "fresh",
	}
}

// SessionID returns the session this manager belongs to.
func (m *Manager) SessionID() string { return m.sessionID }

// SetActiveFragment tags subsequent changes with the fragment that caused
// them. An empty id clears the tag.
func (m *Manager) SetActiveFragment(id string) { m.activeFragment = id }

// --- Variables ---

// SetVariable assigns key and records the change. It returns the old value.
func (m *Manager) SetVariable(key string, value any) any {
	old := m.variables[key]
	m.variables[key] = value
	m.record(types.ChangeSet, key, old, value, nil)
	m.logger.Debug("variable set", "session", m.sessionID, "key", key, "old", old, "new", value)
	return old
}

// GetVariable returns the value of key, or def when it is unset.
func (m *Manager) GetVariable(key string, def any) any {
	if v, ok := m.variables[key]; ok {
		return v
	}
	return def
}

// IncrementVariable adds delta to a numeric variable. An unset variable
// counts as 0. A non-numeric current value is an invalid argument.
func (m *Manager) IncrementVariable(key string, delta float64) (float64, error) {
	var current float64
	if v, ok := m.variables[key]; ok && v != nil {
		n, isNum := rules.ToFloat(v)
		if !isNum {
			return 0, fmt.Errorf("increment %q: current value %v is not numeric: %w", key, v, types.ErrInvalidArgument)
		}
		current = n
	}

	next := current + delta
	old := m.variables[key]
	m.variables[key] = next

	kind := types.ChangeIncrement
	if delta < 0 {
		kind = types.ChangeDecrement
	}
	m.record(kind, key, old, next, map[string]any{"delta": delta})
	m.logger.Debug("variable incremented", "session", m.sessionID, "key", key, "delta", delta, "new", next)
	return next, nil
}

// RestoreVariables merges previously persisted variables without
// recording history.
func (m *Manager) RestoreVariables(vars map[string]any) {
	for k, v := range vars {
		m.variables[k] = copyValue(v)
	}
	m.invalidate()
}

// Variables returns a copy of the plain variable map.
func (m *Manager) Variables() map[string]any {
	return copyMap(m.variables)
}

// --- Inventory ---

// AddItem adds qty of an item, merging into an existing entry. It returns
// the resulting item. Adding zero of an item not carried creates no entry.
func (m *Manager) AddItem(id, name string, qty int, props map[string]any) (types.ItemState, error) {
	if qty < 0 {
		return types.ItemState{}, fmt.Errorf("add item %q: negative quantity %d: %w", id, qty, types.ErrInvalidArgument)
	}

	if item, ok := m.inventory[id]; ok {
		old := item.Quantity
		item.Quantity += qty
		m.record(types.ChangeItemAdd, itemKey(id), old, item.Quantity, map[string]any{"added": qty})
		m.logger.Debug("item merged", "session", m.sessionID, "item", id, "quantity", item.Quantity)
		return copyItem(*item), nil
	}
	if qty == 0 {
		return types.ItemState{ID: id, Name: name}, nil
	}

	item := &types.ItemState{
		ID:           id,
		Name:         name,
		Quantity:     qty,
		Condition:    "good",
		Properties:   copyMap(props),
		DiscoveredAt: m.now().UTC(),
	}
	if item.Properties == nil {
		item.Properties = map[string]any{}
	}
	m.inventory[id] = item
	m.record(types.ChangeItemAdd, itemKey(id), nil, qty, map[string]any{"name": name})
	m.logger.Debug("item added", "session", m.sessionID, "item", id, "quantity", qty)
	return copyItem(*item), nil
}

// RemoveItem removes up to qty of an item. Asking for more than is held
// removes everything. The entry is deleted once its quantity reaches zero.
// It reports whether any quantity was removed.
func (m *Manager) RemoveItem(id string, qty int) (bool, error) {
	if qty < 0 {
		return false, fmt.Errorf("remove item %q: negative quantity %d: %w", id, qty, types.ErrInvalidArgument)
	}
	item, ok := m.inventory[id]
	if !ok {
		return false, nil
	}

	removed := min(qty, item.Quantity)
	if removed == 0 {
		return false, nil
	}
	old := item.Quantity
	item.Quantity -= removed
	if item.Quantity <= 0 {
		delete(m.inventory, id)
	}
	m.record(types.ChangeItemRemove, itemKey(id), old, old-removed, map[string]any{"removed": removed})
	m.logger.Debug("item removed", "session", m.sessionID, "item", id, "removed", removed)
	return true, nil
}

// UseItem marks an item as used now and, for consumables, removes one.
func (m *Manager) UseItem(id string) (types.ItemState, error) {
	item, ok := m.inventory[id]
	if !ok {
		return types.ItemState{}, fmt.Errorf("use item %q: not held: %w", id, types.ErrInvalidArgument)
	}
	now := m.now().UTC()
	item.LastUsed = &now
	out := copyItem(*item)
	m.record(types.ChangeItemModify, itemKey(id), nil, now, map[string]any{"field": "last_used"})

	if consumable, _ := item.Properties["consumable"].(bool); consumable {
		if _, err := m.RemoveItem(id, 1); err != nil {
			return out, err
		}
		out.Quantity--
	}
	return out, nil
}

// Inventory returns a copy of every held item, ordered by id.
func (m *Manager) Inventory() []types.ItemState {
	ids := make([]string, 0, len(m.inventory))
	for id := range m.inventory {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]types.ItemState, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyItem(*m.inventory[id]))
	}
	return out
}

// --- Relationships ---

// RelationshipKey returns the canonical key for the pair a, b.
func RelationshipKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// UpdateRelationship applies attribute deltas to the relationship between
// a and b, creating it on first use. Unknown attributes and non-finite
// deltas are ignored. Every scalar is clamped to [-100, 100]. A non-empty
// memory is appended to the relationship's ring of recent memories.
func (m *Manager) UpdateRelationship(a, b string, deltas map[string]float64, memory string) types.RelationshipState {
	key := RelationshipKey(a, b)
	rel, ok := m.relationships[key]
	if !ok {
		first, second := a, b
		if second < first {
			first, second = second, first
		}
		rel = &types.RelationshipState{EntityA: first, EntityB: second, Memories: []string{}}
		m.relationships[key] = rel
	}
	before := copyRelationship(*rel)

	for _, attr := range sortedKeys(deltas) {
		field := relationshipField(rel, attr)
		if field == nil {
			m.logger.Debug("relationship attribute ignored", "session", m.sessionID, "key", key, "attr", attr)
			continue
		}
		if d := deltas[attr]; math.IsNaN(d) || math.IsInf(d, 0) {
			m.logger.Debug("non-finite relationship delta ignored", "session", m.sessionID, "key", key, "attr", attr)
			continue
		}
		*field = clamp(*field+deltas[attr], relationshipMin, relationshipMax)
	}

	now := m.now().UTC()
	rel.LastInteraction = &now
	rel.InteractionCount++

	if memory != "" {
		rel.Memories = append(rel.Memories, memory)
		if over := len(rel.Memories) - MemoryLimit; over > 0 {
			rel.Memories = append([]string(nil), rel.Memories[over:]...)
		}
	}

	ctx := make(map[string]any, len(deltas)+1)
	for k, v := range deltas {
		ctx[k] = v
	}
	if memory != "" {
		ctx["memory"] = memory
	}
	m.record(types.ChangeRelationship, key, before, copyRelationship(*rel), ctx)
	m.logger.Debug("relationship updated", "session", m.sessionID, "key", key, "count", rel.InteractionCount)
	return copyRelationship(*rel)
}

// GetRelationship returns the relationship between a and b, if any.
func (m *Manager) GetRelationship(a, b string) (types.RelationshipState, bool) {
	rel, ok := m.relationships[RelationshipKey(a, b)]
	if !ok {
		return types.RelationshipState{}, false
	}
	return copyRelationship(*rel), true
}

func relationshipField(rel *types.RelationshipState, attr string) *float64 {
	switch attr {
	case "trust":
		return &rel.Trust
	case "fear":
		return &rel.Fear
	case "respect":
		return &rel.Respect
	case "attraction":
		return &rel.Attraction
	case "familiarity":
		return &rel.Familiarity
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// --- Environment ---

// UpdateEnvironment shallow-merges recognized environment fields. Unknown
// keys and values of the wrong type are ignored.
func (m *Manager) UpdateEnvironment(partial map[string]any) {
	before := m.environment
	applied := map[string]any{}

	for _, key := range sortedKeys(partial) {
		if setEnvironmentField(&m.environment, key, partial[key]) {
			applied[key] = partial[key]
			continue
		}
		m.logger.Debug("environment field ignored", "session", m.sessionID, "field", key)
	}
	if len(applied) == 0 {
		return
	}
	m.record(types.ChangeEnvironment, "environment", before, m.environment, applied)
}

// Environment returns the current environment.
func (m *Manager) Environment() types.Environment { return m.environment }

func setEnvironmentField(env *types.Environment, key string, v any) bool {
	switch key {
	case "time_of_day", "weather", "season", "lighting", "air_quality":
		s, ok := v.(string)
		if !ok {
			return false
		}
		switch key {
		case "time_of_day":
			env.TimeOfDay = s
		case "weather":
			env.Weather = s
		case "season":
			env.Season = s
		case "lighting":
			env.Lighting = s
		case "air_quality":
			env.AirQuality = s
		}
		return true

	case "temperature", "danger_level", "noise_level":
		n, ok := rules.ToFloat(v)
		if !ok {
			return false
		}
		switch key {
		case "temperature":
			env.Temperature = int(n)
		case "danger_level":
			env.DangerLevel = int(n)
		case "noise_level":
			env.NoiseLevel = int(n)
		}
		return true
	}
	return false
}

func environmentField(env types.Environment, name string) (any, bool) {
	switch name {
	case "time_of_day":
		return env.TimeOfDay, true
	case "weather":
		return env.Weather, true
	case "season":
		return env.Season, true
	case "temperature":
		return env.Temperature, true
	case "danger_level":
		return env.DangerLevel, true
	case "noise_level":
		return env.NoiseLevel, true
	case "lighting":
		return env.Lighting, true
	case "air_quality":
		return env.AirQuality, true
	}
	return nil, false
}

// --- rules.Source ---

// Variable implements rules.Source.
func (m *Manager) Variable(key string) (any, bool) {
	v, ok := m.variables[key]
	return v, ok
}

// Item implements rules.Source.
func (m *Manager) Item(id string) (types.ItemState, bool) {
	item, ok := m.inventory[id]
	if !ok {
		return types.ItemState{}, false
	}
	return *item, true
}

// Relationship implements rules.Source.
func (m *Manager) Relationship(a, b string) (types.RelationshipState, bool) {
	rel, ok := m.relationships[RelationshipKey(a, b)]
	if !ok {
		return types.RelationshipState{}, false
	}
	return *rel, true
}

// EnvironmentField implements rules.Source.
func (m *Manager) EnvironmentField(name string) (any, bool) {
	return environmentField(m.environment, name)
}

// EvaluateCondition tests a requirement against this session's state.
func (m *Manager) EvaluateCondition(req types.Requirement) bool {
	return rules.Evaluate(req, m)
}

// --- History ---

func (m *Manager) record(kind types.ChangeType, variable string, old, next any, ctx map[string]any) {
	m.history = append(m.history, types.Change{
		ID:         m.newID(),
		Timestamp:  m.now().UTC(),
		Type:       kind,
		Variable:   variable,
		OldValue:   old,
		NewValue:   next,
		Context:    ctx,
		FragmentID: m.activeFragment,
	})
	m.invalidate()
}

// History returns a copy of the full change history, oldest first.
func (m *Manager) History() []types.Change {
	return append([]types.Change(nil), m.history...)
}

func (m *Manager) invalidate() {
	m.view = nil
}

func itemKey(id string) string {
	return "item:" + id
}
