package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesPragmas(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var mode string
	if err := db.conn.GetContext(ctx, &mode, "PRAGMA journal_mode"); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var timeout int
	if err := db.conn.GetContext(ctx, &timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatal(err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func testFragments() []types.Fragment {
	return []types.Fragment{
		{
			ID:           "mine",
			Title:        "The Mine",
			TextTemplate: "Dust hangs in the air, {name}.",
			Requires:     rules.Compile(map[string]any{"location": "mine", "danger": map[string]any{"lte": 3}}),
			Choices: []types.Choice{
				effects.CompileChoice(map[string]any{"label": "Dig", "set": map[string]any{"ore": map[string]any{"inc": 1}}}),
			},
			Weight: 2,
		},
		{
			ID:       "camp",
			Title:    "Camp",
			Requires: rules.Compile(nil),
			Weight:   1,
		},
	}
}

func TestFragmentsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveFragments(ctx, testFragments()); err != nil {
		t.Fatalf("SaveFragments: %v", err)
	}
	got, err := db.Fragments(ctx)
	if err != nil {
		t.Fatalf("Fragments: %v", err)
	}
	if len(got) != 2 || got[0].ID != "mine" || got[1].ID != "camp" {
		t.Fatalf("fragments = %+v", got)
	}

	mine := got[0]
	if mine.Weight != 2 || mine.TextTemplate != "Dust hangs in the air, {name}." {
		t.Errorf("mine = %+v", mine)
	}
	if loc, ok := rules.LiteralLocation(mine.Requires); !ok || loc != "mine" {
		t.Errorf("location = %q %v", loc, ok)
	}
	if !rules.Evaluate(mine.Requires, rules.Vars{"location": "mine", "danger": 1}) {
		t.Error("decoded requirement should hold")
	}
	if rules.Evaluate(mine.Requires, rules.Vars{"location": "mine", "danger": 5}) {
		t.Error("decoded requirement should fail on danger 5")
	}
	if len(mine.Choices) != 1 || mine.Choices[0].Label != "Dig" || !mine.Choices[0].Set[0].Delta {
		t.Errorf("choices = %+v", mine.Choices)
	}
	if mine.Position != nil {
		t.Error("no position stored yet")
	}
}

func TestPositions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.SaveFragments(ctx, testFragments())

	if err := db.UpsertPosition(ctx, "mine", types.Position{X: -4, Y: 1}); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}
	if err := db.UpsertPosition(ctx, "mine", types.Position{X: 2, Y: 3}); err != nil {
		t.Fatalf("UpsertPosition again: %v", err)
	}

	all, err := db.Positions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all["mine"] != (types.Position{X: 2, Y: 3}) {
		t.Errorf("positions = %v", all)
	}

	frags, _ := db.Fragments(ctx)
	if frags[0].Position == nil || *frags[0].Position != (types.Position{X: 2, Y: 3}) {
		t.Errorf("mine position = %v", frags[0].Position)
	}

	// Replacing the fragment set drops positions of removed fragments.
	db.SaveFragments(ctx, testFragments()[1:])
	all, _ = db.Positions(ctx)
	if len(all) != 0 {
		t.Errorf("positions after replace = %v", all)
	}
}

func TestVariables(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, found, err := db.LoadVariables(ctx, "s1"); err != nil || found {
		t.Fatalf("LoadVariables on empty db = found %v err %v", found, err)
	}

	if err := db.SaveVariables(ctx, "s1", map[string]any{"gold": 3, "name": "Ana"}); err != nil {
		t.Fatal(err)
	}
	vars, found, err := db.LoadVariables(ctx, "s1")
	if err != nil || !found {
		t.Fatalf("LoadVariables = found %v err %v", found, err)
	}
	if vars["gold"] != float64(3) || vars["name"] != "Ana" {
		t.Errorf("vars = %v", vars)
	}

	if _, found, _ := db.LoadSnapshot(ctx, "s1"); found {
		t.Error("variables-only session should have no snapshot")
	}
}

func TestSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	snap := types.Snapshot{
		SessionID: "s1",
		Variables: map[string]any{"location": "mine"},
		Inventory: map[string]types.ItemState{"pick": {ID: "pick", Name: "Pickaxe", Quantity: 1, Condition: "good"}},
		Relationships: map[string]types.RelationshipState{
			"guard:player": {EntityA: "guard", EntityB: "player", Trust: 10, Memories: []string{}},
		},
		Environment: types.Environment{TimeOfDay: "night", Weather: "stormy"},
		LastUpdated: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	got, found, err := db.LoadSnapshot(ctx, "s1")
	if err != nil || !found {
		t.Fatalf("LoadSnapshot = found %v err %v", found, err)
	}
	if got.Inventory["pick"].Name != "Pickaxe" || got.Relationships["guard:player"].Trust != 10 {
		t.Errorf("snapshot = %+v", got)
	}
	if got.Environment.Weather != "stormy" || !got.LastUpdated.Equal(snap.LastUpdated) {
		t.Errorf("snapshot env/time = %+v %v", got.Environment, got.LastUpdated)
	}

	vars, found, _ := db.LoadVariables(ctx, "s1")
	if !found || vars["location"] != "mine" {
		t.Errorf("snapshot should refresh variables, got %v", vars)
	}
}

func TestDeleteSessionsBefore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.SaveVariables(ctx, "a", nil)
	db.SaveVariables(ctx, "b", nil)

	ids, err := db.DeleteSessionsBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || len(ids) != 0 {
		t.Fatalf("nothing should be stale: %v %v", ids, err)
	}

	ids, err = db.DeleteSessionsBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("deleted = %v", ids)
	}
	if _, found, _ := db.LoadVariables(ctx, "a"); found {
		t.Error("a should be gone")
	}
}
