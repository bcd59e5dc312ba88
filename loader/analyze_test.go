package loader

import (
	"reflect"
	"testing"

	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

func TestAnalyze_FullWorld(t *testing.T) {
	pack, err := Load("testdata/full")
	if err != nil {
		t.Fatal(err)
	}
	r := Analyze(pack.Fragments)

	if r.Total != 5 {
		t.Errorf("Total = %d, want 5", r.Total)
	}
	if r.ConnectivityScore != 1.0 {
		t.Errorf("ConnectivityScore = %v, want 1", r.ConnectivityScore)
	}
	if len(r.MissingSetters) != 0 {
		t.Errorf("MissingSetters = %v", r.MissingSetters)
	}
	if !reflect.DeepEqual(r.UnusedSetters, []string{"looked"}) {
		t.Errorf("UnusedSetters = %v, want [looked]", r.UnusedSetters)
	}
	if !reflect.DeepEqual(r.Orphaned, []string{"market", "well"}) {
		t.Errorf("Orphaned = %v, want [market well]", r.Orphaned)
	}
	if r.Danger != (DangerSpread{Medium: 1, High: 1}) {
		t.Errorf("Danger = %+v", r.Danger)
	}

	tunnels := r.Locations["deep_tunnels"]
	if tunnels == nil || !reflect.DeepEqual(tunnels.RequiredBy, []string{"deep"}) ||
		!reflect.DeepEqual(tunnels.TransitionsTo, []string{"entrance"}) {
		t.Errorf("deep_tunnels flow = %+v", tunnels)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	r := Analyze(nil)
	if r.Total != 0 || r.ConnectivityScore != 0 {
		t.Errorf("report = %+v", r)
	}
}

func TestAnalyze_PoorlyConnected(t *testing.T) {
	at := func(id, loc string) types.Fragment {
		return types.Fragment{ID: id, Requires: rules.Compile(map[string]any{"location": loc})}
	}
	gate := at("gate", "yard")
	gate.Choices = []types.Choice{effects.CompileChoice(map[string]any{
		"label": "Enter", "set": map[string]any{"location": "keep"},
	})}

	r := Analyze([]types.Fragment{gate, at("k1", "keep"), at("k2", "keep"), at("k3", "keep")})
	if !reflect.DeepEqual(r.PoorlyConnected, []string{"keep"}) {
		t.Errorf("PoorlyConnected = %v, want [keep]", r.PoorlyConnected)
	}
	if !reflect.DeepEqual(r.Orphaned, []string{"yard"}) {
		t.Errorf("Orphaned = %v, want [yard]", r.Orphaned)
	}
}

func TestDangerSpread(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want DangerSpread
	}{
		{"low", map[string]any{"danger": map[string]any{"lte": 1}}, DangerSpread{Low: 1}},
		{"high", map[string]any{"danger": map[string]any{"gte": 4}}, DangerSpread{High: 1}},
		{"low wins", map[string]any{"danger": map[string]any{"gte": 5, "lte": 0}}, DangerSpread{Low: 1}},
		{"medium", map[string]any{"danger": map[string]any{"gte": 2, "lte": 3}}, DangerSpread{Medium: 1}},
		{"literal ignored", map[string]any{"danger": 5}, DangerSpread{}},
		{"other key ignored", map[string]any{"gold": map[string]any{"gte": 9}}, DangerSpread{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d DangerSpread
			d.add(rules.Compile(tt.raw))
			if d != tt.want {
				t.Errorf("spread = %+v, want %+v", d, tt.want)
			}
		})
	}
}
