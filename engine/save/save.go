// Package save implements JSON and YAML serialization of session state.
package save

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/worldweaver/types"
)

// Version is written into every save.
const Version = "1"

// Format selects the encoding of a save.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks a format from a file extension. Anything other than
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// SaveData is the serializable save format.
type SaveData struct {
	Version        string         `json:"version" yaml:"version"`
	World          string         `json:"world" yaml:"world"`
	RNGSeed        int64          `json:"rng_seed" yaml:"rng_seed"`
	RNGPosition    int64          `json:"rng_position" yaml:"rng_position"`
	ActiveFragment string         `json:"active_fragment,omitempty" yaml:"active_fragment,omitempty"`
	State          types.Snapshot `json:"state" yaml:"state"`
}

// Save serializes data in the given format.
func Save(data SaveData, f Format) ([]byte, error) {
	if data.Version == "" {
		data.Version = Version
	}
	switch f {
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode yaml save: %w", err)
		}
		return out, nil
	default:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json save: %w", err)
		}
		return out, nil
	}
}

// Load deserializes a save. A document starting with '{' is JSON,
// anything else YAML. Timestamps come back in UTC and maps are never nil.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("decode json save: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("decode yaml save: %w", err)
		}
	}
	Normalize(&sd.State)
	return &sd, nil
}

// Normalize fills nil maps and slices and converts every timestamp in a
// snapshot to UTC.
func Normalize(s *types.Snapshot) {
	if s.Variables == nil {
		s.Variables = map[string]any{}
	}
	if s.Inventory == nil {
		s.Inventory = map[string]types.ItemState{}
	}
	if s.Relationships == nil {
		s.Relationships = map[string]types.RelationshipState{}
	}
	if s.ChangeHistory == nil {
		s.ChangeHistory = []types.Change{}
	}
	s.LastUpdated = s.LastUpdated.UTC()

	for id, it := range s.Inventory {
		it.DiscoveredAt = it.DiscoveredAt.UTC()
		if it.LastUsed != nil {
			u := it.LastUsed.UTC()
			it.LastUsed = &u
		}
		s.Inventory[id] = it
	}
	for key, rel := range s.Relationships {
		if rel.LastInteraction != nil {
			u := rel.LastInteraction.UTC()
			rel.LastInteraction = &u
		}
		if rel.Memories == nil {
			rel.Memories = []string{}
		}
		s.Relationships[key] = rel
	}
	for i := range s.ChangeHistory {
		s.ChangeHistory[i].Timestamp = s.ChangeHistory[i].Timestamp.UTC()
	}
}
