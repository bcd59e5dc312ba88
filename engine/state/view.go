package state

import (
	"maps"
	"sort"
)

// ContextualView returns the variables merged with derived counters:
// inventory and relationship counts, an environment summary and mood
// modifiers. The result is cached for the view TTL and dropped on every
// mutation, so it never reflects state older than the latest write.
func (m *Manager) ContextualView() map[string]any {
	now := m.now()
	if m.view != nil && now.Before(m.viewExpires) {
		return maps.Clone(m.view)
	}

	view := make(map[string]any, len(m.variables)+16)
	for k, v := range m.variables {
		view[k] = v
	}

	total := 0
	items := make([]string, 0, len(m.inventory))
	for id, item := range m.inventory {
		total += item.Quantity
		items = append(items, id)
	}
	sort.Strings(items)

	people := map[string]bool{}
	for _, rel := range m.relationships {
		people[rel.EntityA] = true
		people[rel.EntityB] = true
	}
	known := make([]string, 0, len(people))
	for p := range people {
		known = append(known, p)
	}
	sort.Strings(known)

	derived := map[string]any{
		"inventory_count":     len(m.inventory),
		"total_item_quantity": total,
		"relationship_count":  len(m.relationships),
		"time_of_day":         m.environment.TimeOfDay,
		"weather":             m.environment.Weather,
		"danger_level":        m.environment.DangerLevel,
	}
	for k, v := range derived {
		view["_"+k] = v
		view[k] = v
	}
	view["inventory_items"] = items
	view["known_people"] = known

	for mood, v := range MoodModifiers(m.environment) {
		view["_mood_"+mood] = v
	}

	m.view = view
	m.viewExpires = now.Add(m.viewTTL)
	return maps.Clone(view)
}
