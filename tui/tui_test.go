package tui

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/worldweaver/engine"
	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/engine/spatial"
	"github.com/nathoo/worldweaver/types"
)

func TestLocationDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"hall", "Hall"},
		{"great_hall", "Great Hall"},
		{"tunnel_entrance", "Tunnel Entrance"},
		{"deep_tunnels", "Deep Tunnels"},
		{"", ""},
	}
	for _, tt := range tests {
		got := locationDisplayName(tt.id)
		if got != tt.want {
			t.Errorf("locationDisplayName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"You are carrying: Rope (x2), Torch.", kindCarrying},
		{"→ east: Garden", kindExits},
		{"↖ northwest: Attic (blocked)", kindExits},
		{"  1. Walk to the garden", kindChoice},
		{"  12. Wait", kindChoice},
		{"  a. not a choice", kindNarrative},
		{"1. unindented", kindNarrative},
		{"[Session saved to test.json.]", kindSystem},
		{"[trace] Fragment: hall", kindTrace},
		{"You can't go that way.", kindError},
		{"Something went wrong: boom.", kindError},
		{`I don't know how to "dance".`, kindError},
		{"A grand hall with stone walls.", kindNarrative},
		{"Time passes.", kindNarrative},
		{"", kindNarrative},
		{"'Ah, the adventurer. I wondered when they'd send someone competent.'", kindDialogue},
	}
	for _, tt := range tests {
		got := classifyLine(tt.line)
		if got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestContainsQuotedSpeech(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"'Hello, adventurer. Welcome to the castle.'", true},
		{"It's a door.", false},            // short quote segment
		{"No quotes here.", false},         // no quotes at all
		{"'Hi'", false},                    // too short
		{"She says 'the crown is lost forever, you must find it.'", true},
	}
	for _, tt := range tests {
		got := containsQuotedSpeech(tt.line)
		if got != tt.want {
			t.Errorf("containsQuotedSpeech(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 80, "short"},
		{"hello world", 5, "hello\nworld"},
		{"The great hall stretches before you with its vaulted ceiling.", 30,
			"The great hall stretches\nbefore you with its vaulted\nceiling."},
		{"", 80, ""},
		{"one", 80, "one"},
		{"a b c d e", 3, "a b\nc d\ne"},
	}
	for _, tt := range tests {
		got := wordWrap(tt.text, tt.width)
		if got != tt.want {
			t.Errorf("wordWrap(%q, %d) =\n  %q\nwant:\n  %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")
	h.Push("take key")

	prev, ok := h.Prev()
	if !ok || prev != "take key" {
		t.Errorf("expected 'take key', got %q (ok=%v)", prev, ok)
	}

	prev, ok = h.Prev()
	if !ok || prev != "go north" {
		t.Errorf("expected 'go north', got %q (ok=%v)", prev, ok)
	}

	prev, ok = h.Prev()
	if !ok || prev != "look" {
		t.Errorf("expected 'look', got %q (ok=%v)", prev, ok)
	}

	// At oldest, stays there.
	prev, ok = h.Prev()
	if !ok || prev != "look" {
		t.Errorf("expected 'look' at boundary, got %q (ok=%v)", prev, ok)
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")

	h.Prev() // "go north"
	h.Prev() // "look"

	next, ok := h.Next()
	if !ok || next != "go north" {
		t.Errorf("expected 'go north', got %q (ok=%v)", next, ok)
	}

	_, ok = h.Next()
	if ok {
		t.Error("expected false when past newest entry")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	_, ok := h.Prev()
	if ok {
		t.Error("expected false on empty history")
	}
	_, ok = h.Next()
	if ok {
		t.Error("expected false on empty history")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory(2)
	h.Push("a")
	h.Push("b")
	h.Push("c") // "a" evicted

	prev, _ := h.Prev()
	if prev != "c" {
		t.Errorf("expected 'c', got %q", prev)
	}
	prev, _ = h.Prev()
	if prev != "b" {
		t.Errorf("expected 'b', got %q", prev)
	}
	// "a" is gone.
	prev, _ = h.Prev()
	if prev != "b" {
		t.Errorf("expected 'b' at boundary, got %q", prev)
	}
}

func TestHistory_NoDuplicates(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("look") // skipped
	h.Push("look") // skipped

	if len(h.entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(h.entries))
	}
}

func TestHistory_ResetCursor(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")

	h.Prev() // "go north"
	h.ResetCursor()

	// After reset, Prev starts from the end again.
	prev, ok := h.Prev()
	if !ok || prev != "go north" {
		t.Errorf("expected 'go north' after reset, got %q", prev)
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestModel returns a model over a hall with a garden to the east.
func newTestModel(t *testing.T) Model {
	t.Helper()
	ctx := context.Background()
	w := engine.NewWorld(types.WorldDef{
		Title:   "Test World",
		Author:  "Test",
		Version: "1.0",
		Start:   "hall",
		Intro:   "Welcome to the test.",
	}, spatial.New(spatial.WithLogger(quiet)), engine.WithWorldLogger(quiet))
	_, err := w.Add(ctx,
		types.Fragment{
			ID: "hall", Title: "Hall", TextTemplate: "A grand hall.", Weight: 1,
			Requires: rules.Compile(map[string]any{"location": "hall"}),
			Choices: []types.Choice{effects.CompileChoice(map[string]any{
				"label": "Walk to the garden", "set": map[string]any{"location": "garden"},
			})},
			Position: &types.Position{X: 0, Y: 0},
		},
		types.Fragment{
			ID: "garden", Title: "Garden", TextTemplate: "A peaceful garden.", Weight: 1,
			Requires: rules.Compile(map[string]any{"location": "garden"}),
			Position: &types.Position{X: 1, Y: 0},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(ctx, w, "tui-test", engine.Options{Seed: 1, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	m := New(ctx, eng)
	m.saveDir = t.TempDir()
	return m
}

func TestOpeningLines(t *testing.T) {
	m := newTestModel(t)
	joined := strings.Join(m.openingLines(), "\n")
	for _, want := range []string{"Test World v1.0 by Test", "Welcome to the test.", "A grand hall.", "  1. Walk to the garden"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in opening:\n%s", want, joined)
		}
	}
}

func TestResultLines(t *testing.T) {
	res := types.Result{
		Output:  []string{"Dark."},
		Choices: []types.Choice{{Label: "Wait"}, {Label: "Run"}},
	}
	got := strings.Join(resultLines(res), "|")
	if got != "Dark.|  1. Wait|  2. Run" {
		t.Errorf("resultLines = %q", got)
	}
}

func TestHandleMeta_Quit(t *testing.T) {
	m := newTestModel(t)

	_, quit := m.handleMeta("/quit")
	if !quit {
		t.Error("expected quit=true for /quit")
	}

	_, quit = m.handleMeta("/exit")
	if !quit {
		t.Error("expected quit=true for /exit")
	}
}

func TestHandleMeta_SaveAndLoad(t *testing.T) {
	m := newTestModel(t)
	m.openingLines()
	if _, err := m.engine.Choose(m.ctx, 0); err != nil {
		t.Fatal(err)
	}

	output, quit := m.handleMeta("/save test.yaml")
	if quit {
		t.Error("save should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Session saved to test.yaml") {
		t.Fatalf("expected save confirmation, got %v", output)
	}
	if _, err := os.Stat(filepath.Join(m.saveDir, "test.yaml")); err != nil {
		t.Fatalf("save file missing: %v", err)
	}

	output, _ = m.handleMeta("/load test.yaml")
	joined := strings.Join(output, "\n")
	if !strings.Contains(joined, "Session loaded") || !strings.Contains(joined, "A peaceful garden.") {
		t.Errorf("expected load confirmation and garden, got %v", output)
	}
}

func TestHandleMeta_LoadNonexistent(t *testing.T) {
	m := newTestModel(t)

	output, quit := m.handleMeta("/load nonexistent")
	if quit {
		t.Error("load should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Load failed") {
		t.Errorf("expected load failure, got %v", output)
	}
}

func TestHandleMeta_Help(t *testing.T) {
	m := newTestModel(t)

	output, quit := m.handleMeta("/help")
	if quit {
		t.Error("help should not quit")
	}

	joined := strings.Join(output, "\n")
	for _, expected := range []string{"/save", "/load", "/quit", "look", "choose", "exits", "map"} {
		if !strings.Contains(joined, expected) {
			t.Errorf("expected %q in help output", expected)
		}
	}
}

func TestHandleMeta_Trace(t *testing.T) {
	m := newTestModel(t)

	output, _ := m.handleMeta("/trace")
	if !m.trace {
		t.Error("expected trace to be enabled")
	}
	if len(output) == 0 || !strings.Contains(output[0], "enabled") {
		t.Errorf("expected enabled message, got %v", output)
	}

	output, _ = m.handleMeta("/trace")
	if m.trace {
		t.Error("expected trace to be disabled")
	}
	if len(output) == 0 || !strings.Contains(output[0], "disabled") {
		t.Errorf("expected disabled message, got %v", output)
	}
}

func TestHandleMeta_Unknown(t *testing.T) {
	m := newTestModel(t)

	output, quit := m.handleMeta("/bogus")
	if quit {
		t.Error("unknown command should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Unknown command") {
		t.Errorf("expected unknown command message, got %v", output)
	}
}

func TestHandleMeta_State(t *testing.T) {
	m := newTestModel(t)
	m.openingLines()

	output, quit := m.handleMeta("/state")
	if quit {
		t.Error("state should not quit")
	}

	joined := strings.Join(output, "\n")
	for _, want := range []string{"Session: tui-test", "location = hall", "Environment: morning"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in state output:\n%s", want, joined)
		}
	}
}

func TestFormatTrace(t *testing.T) {
	m := newTestModel(t)
	frag := types.Fragment{ID: "hall"}

	tests := []struct {
		res  types.Result
		want string
	}{
		{types.Result{Fragment: &frag, Eligible: 3}, "[trace] Fragment: hall (3 eligible)"},
		{types.Result{NoContent: true}, "[trace] No eligible fragment"},
		{types.Result{Blocked: true}, "[trace] Move blocked"},
		{types.Result{}, ""},
	}
	for _, tt := range tests {
		got := strings.Join(m.formatTrace(tt.res), "|")
		if got != tt.want {
			t.Errorf("formatTrace(%+v) = %q, want %q", tt.res, got, tt.want)
		}
	}
}
