package memory

import (
	"context"
	"testing"
	"time"

	"github.com/nathoo/worldweaver/types"
)

func TestFragmentsCarryPositions(t *testing.T) {
	ctx := context.Background()
	s := New(types.Fragment{ID: "a"}, types.Fragment{ID: "b"})
	s.UpsertPosition(ctx, "b", types.Position{X: 1, Y: -1})

	frags, err := s.Fragments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if frags[0].Position != nil {
		t.Errorf("a position = %v, want nil", frags[0].Position)
	}
	if frags[1].Position == nil || *frags[1].Position != (types.Position{X: 1, Y: -1}) {
		t.Errorf("b position = %v", frags[1].Position)
	}

	s.SaveFragments(ctx, []types.Fragment{{ID: "a"}})
	if pos, _ := s.Positions(ctx); len(pos) != 0 {
		t.Errorf("positions after replace = %v", pos)
	}
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, found, _ := s.LoadVariables(ctx, "s1"); found {
		t.Fatal("unknown session should not be found")
	}

	vars := map[string]any{"gold": 1}
	s.SaveVariables(ctx, "s1", vars)
	vars["gold"] = 99 // the store keeps its own copy

	got, found, _ := s.LoadVariables(ctx, "s1")
	if !found || got["gold"] != 1 {
		t.Errorf("vars = %v found=%v", got, found)
	}
	if _, found, _ := s.LoadSnapshot(ctx, "s1"); found {
		t.Error("no snapshot saved yet")
	}

	s.SaveSnapshot(ctx, types.Snapshot{SessionID: "s1", Variables: map[string]any{"gold": 2}})
	snap, found, _ := s.LoadSnapshot(ctx, "s1")
	if !found || snap.Variables["gold"] != 2 {
		t.Errorf("snapshot = %+v found=%v", snap, found)
	}
	got, _, _ = s.LoadVariables(ctx, "s1")
	if got["gold"] != 2 {
		t.Errorf("snapshot should refresh variables, got %v", got)
	}
}

func TestDeleteSessionsBefore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New()
	s.SetClock(func() time.Time { return now })
	s.SaveVariables(ctx, "old", nil)
	now = now.Add(48 * time.Hour)
	s.SaveVariables(ctx, "new", nil)

	ids, _ := s.DeleteSessionsBefore(ctx, now.Add(-24*time.Hour))
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("deleted = %v, want [old]", ids)
	}
	if _, found, _ := s.LoadVariables(ctx, "new"); !found {
		t.Error("new session should survive")
	}
}
