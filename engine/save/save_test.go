package save

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/engine/state"
	"github.com/nathoo/worldweaver/types"
)

func testManager() *state.Manager {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	m := state.New("s1",
		state.WithClock(func() time.Time { return clock }),
		state.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	m.SetVariable("location", "cave")
	m.SetVariable("gold", 5)
	m.SetVariable("met_guard", true)
	m.AddItem("torch", "Torch", 2, map[string]any{"consumable": true})
	m.UpdateRelationship("player", "guard", map[string]float64{"trust": 12}, "shared bread")
	m.UpdateEnvironment(map[string]any{"weather": "rainy", "danger_level": 4})
	return m
}

func TestRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name   string
		format Format
	}{
		{"json", FormatJSON},
		{"yaml", FormatYAML},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m := testManager()
			data, err := Save(SaveData{World: "Test World", RNGSeed: 42, RNGPosition: 7, State: m.ExportState()}, tt.format)
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			sd, err := Load(data)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if sd.Version != Version || sd.World != "Test World" {
				t.Errorf("header = %q %q", sd.Version, sd.World)
			}
			if sd.RNGSeed != 42 || sd.RNGPosition != 7 {
				t.Errorf("rng = %d/%d, want 42/7", sd.RNGSeed, sd.RNGPosition)
			}

			restored := state.New("fresh")
			restored.ImportState(sd.State)

			if restored.SessionID() != "s1" {
				t.Errorf("session id = %q, want s1", restored.SessionID())
			}
			if got := restored.GetVariable("location", ""); got != "cave" {
				t.Errorf("location = %v, want cave", got)
			}
			if gold, ok := rules.ToFloat(restored.GetVariable("gold", nil)); !ok || gold != 5 {
				t.Errorf("gold = %v, want 5", restored.GetVariable("gold", nil))
			}
			if restored.GetVariable("met_guard", false) != true {
				t.Error("met_guard lost")
			}
			torch, ok := restored.Item("torch")
			if !ok || torch.Quantity != 2 || torch.Name != "Torch" {
				t.Errorf("torch = %+v %v", torch, ok)
			}
			rel, ok := restored.GetRelationship("guard", "player")
			if !ok || rel.Trust != 12 || len(rel.Memories) != 1 {
				t.Errorf("relationship = %+v %v", rel, ok)
			}
			env := restored.Environment()
			if env.Weather != "rainy" || env.DangerLevel != 4 {
				t.Errorf("environment = %+v", env)
			}
			if len(restored.History()) != len(m.History()) {
				t.Errorf("history = %d entries, want %d", len(restored.History()), len(m.History()))
			}
		})
	}
}

func TestSaveProducesValidJSON(t *testing.T) {
	data, err := Save(SaveData{World: "Test World"}, FormatJSON)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !json.Valid(data) {
		t.Fatal("Save output is not valid JSON")
	}

	var raw map[string]any
	json.Unmarshal(data, &raw)
	if raw["version"] != Version {
		t.Errorf("expected version %q, got %v", Version, raw["version"])
	}
	if raw["world"] != "Test World" {
		t.Errorf("expected world 'Test World', got %v", raw["world"])
	}
}

func TestLoadMissingOptionalFields(t *testing.T) {
	for _, data := range []string{
		`{"version":"1","world":"Test"}`,
		"version: \"1\"\nworld: Test\n",
	} {
		sd, err := Load([]byte(data))
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", data, err)
		}
		if sd.State.Variables == nil || sd.State.Inventory == nil || sd.State.Relationships == nil {
			t.Errorf("Load(%q) left nil maps: %+v", data, sd.State)
		}
		if sd.State.ChangeHistory == nil {
			t.Errorf("Load(%q) left nil history", data)
		}
	}
}

func TestLoadNormalizesToUTC(t *testing.T) {
	data := []byte(`{
		"state": {
			"last_updated": "2026-01-01T03:00:00+03:00",
			"change_history": [{"id": "c1", "timestamp": "2026-01-01T03:00:00+03:00", "type": "set"}],
			"inventory": {"gem": {"id": "gem", "quantity": 1, "discovered_at": "2026-01-01T03:00:00+03:00"}}
		}
	}`)
	sd, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for name, ts := range map[string]time.Time{
		"last_updated": sd.State.LastUpdated,
		"change":       sd.State.ChangeHistory[0].Timestamp,
		"discovered":   sd.State.Inventory["gem"].DiscoveredAt,
	} {
		if ts.Location() != time.UTC || ts.Hour() != 0 {
			t.Errorf("%s = %v, want UTC midnight", name, ts)
		}
	}
	if sd.State.ChangeHistory[0].Type != types.ChangeSet {
		t.Errorf("change type = %q", sd.State.ChangeHistory[0].Type)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load([]byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Load([]byte("version: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"save.json": FormatJSON,
		"save.YAML": FormatYAML,
		"save.yml":  FormatYAML,
		"save":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %v, want %v", path, got, want)
		}
	}
}
