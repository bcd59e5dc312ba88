package state

import (
	"github.com/nathoo/worldweaver/types"
)

// ExportState returns a deep copy of the session's world. Only the most
// recent ExportHistoryLimit changes are carried. Timestamps are UTC.
func (m *Manager) ExportState() types.Snapshot {
	snap := types.Snapshot{
		SessionID:     m.sessionID,
		Variables:     copyMap(m.variables),
		Inventory:     make(map[string]types.ItemState, len(m.inventory)),
		Relationships: make(map[string]types.RelationshipState, len(m.relationships)),
		Environment:   m.environment,
		LastUpdated:   m.now().UTC(),
	}
	if snap.Variables == nil {
		snap.Variables = map[string]any{}
	}
	for id, item := range m.inventory {
		snap.Inventory[id] = copyItem(*item)
	}
	for key, rel := range m.relationships {
		snap.Relationships[key] = copyRelationship(*rel)
	}

	history := m.history
	if len(history) > ExportHistoryLimit {
		history = history[len(history)-ExportHistoryLimit:]
	}
	snap.ChangeHistory = make([]types.Change, len(history))
	for i, c := range history {
		c.Timestamp = c.Timestamp.UTC()
		c.Context = copyMap(c.Context)
		snap.ChangeHistory[i] = c
	}
	return snap
}

// ImportState replaces the session's world with snap. The manager keeps its
// own session id when snap carries none.
func (m *Manager) ImportState(snap types.Snapshot) {
	if snap.SessionID != "" {
		m.sessionID = snap.SessionID
	}

	m.variables = copyMap(snap.Variables)
	if m.variables == nil {
		m.variables = map[string]any{}
	}

	m.inventory = make(map[string]*types.ItemState, len(snap.Inventory))
	for id, item := range snap.Inventory {
		it := copyItem(item)
		if it.ID == "" {
			it.ID = id
		}
		if it.Properties == nil {
			it.Properties = map[string]any{}
		}
		it.DiscoveredAt = it.DiscoveredAt.UTC()
		m.inventory[id] = &it
	}

	m.relationships = make(map[string]*types.RelationshipState, len(snap.Relationships))
	for key, rel := range snap.Relationships {
		r := copyRelationship(rel)
		m.relationships[key] = &r
	}

	m.environment = snap.Environment
	if m.environment == (types.Environment{}) {
		m.environment = DefaultEnvironment()
	}

	m.history = make([]types.Change, len(snap.ChangeHistory))
	for i, c := range snap.ChangeHistory {
		c.Timestamp = c.Timestamp.UTC()
		m.history[i] = c
	}

	m.invalidate()
	m.logger.Debug("state imported", "session", m.sessionID,
		"variables", len(m.variables), "items", len(m.inventory), "relationships", len(m.relationships))
}
