package state

import (
	"time"

	"github.com/nathoo/worldweaver/types"
)

// RecentWindow is how far back Summary counts changes as recent.
const RecentWindow = 5 * time.Minute

// Disposition buckets a relationship by trust + respect + attraction - fear.
func Disposition(rel types.RelationshipState) string {
	total := rel.Trust + rel.Respect + rel.Attraction - rel.Fear
	switch {
	case total > 150:
		return "devoted"
	case total > 100:
		return "friendly"
	case total > 50:
		return "positive"
	case total > -50:
		return "neutral"
	case total > -100:
		return "hostile"
	default:
		return "enemy"
	}
}

// ItemActions lists what can be done with item at location.
func ItemActions(item types.ItemState, location string) []string {
	actions := []string{"examine", "drop"}
	if b, _ := item.Properties["consumable"].(bool); b {
		actions = append(actions, "use")
	}
	if b, _ := item.Properties["equippable"].(bool); b {
		actions = append(actions, "equip")
	}
	if b, _ := item.Properties["craftable"].(bool); b && location == "workshop" {
		actions = append(actions, "craft")
	}
	return actions
}

// CanCombineWith reports whether item lists other, by id or name, in its
// "combinable_with" property.
func CanCombineWith(item, other types.ItemState) bool {
	switch list := item.Properties["combinable_with"].(type) {
	case []string:
		for _, s := range list {
			if s == other.ID || s == other.Name {
				return true
			}
		}
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok && (s == other.ID || s == other.Name) {
				return true
			}
		}
	}
	return false
}

// ItemSummary is one inventory line of a Summary.
type ItemSummary struct {
	ID        string
	Name      string
	Quantity  int
	Condition string
	Actions   []string
}

// RelationshipSummary is one relationship line of a Summary.
type RelationshipSummary struct {
	Key              string
	Disposition      string
	Trust            float64
	Respect          float64
	InteractionCount int
}

// Summary is a read-only digest of a session's world.
type Summary struct {
	SessionID      string
	Variables      map[string]any
	Items          []ItemSummary
	TotalQuantity  int
	Relationships  []RelationshipSummary
	Environment    types.Environment
	Moods          map[string]float64
	RecentChanges  int
	TotalVariables int
}

// Summary builds a digest of the current state.
func (m *Manager) Summary() Summary {
	location, _ := m.variables["location"].(string)

	s := Summary{
		SessionID:      m.sessionID,
		Variables:      copyMap(m.variables),
		Environment:    m.environment,
		Moods:          MoodModifiers(m.environment),
		TotalVariables: len(m.variables),
	}

	for _, item := range m.Inventory() {
		s.TotalQuantity += item.Quantity
		s.Items = append(s.Items, ItemSummary{
			ID:        item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Condition: item.Condition,
			Actions:   ItemActions(item, location),
		})
	}

	for _, key := range sortedKeys(m.relationships) {
		rel := m.relationships[key]
		s.Relationships = append(s.Relationships, RelationshipSummary{
			Key:              key,
			Disposition:      Disposition(*rel),
			Trust:            rel.Trust,
			Respect:          rel.Respect,
			InteractionCount: rel.InteractionCount,
		})
	}

	cutoff := m.now().Add(-RecentWindow)
	for _, c := range m.history {
		if c.Timestamp.After(cutoff) {
			s.RecentChanges++
		}
	}
	return s
}
