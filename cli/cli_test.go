package cli

import (
	"bytes"
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

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// testWorld returns a two-fragment world: a hall with the garden to the east.
func testWorld(t *testing.T) *engine.World {
	t.Helper()
	hall := types.Fragment{
		ID:           "hall",
		Title:        "Hall",
		TextTemplate: "A grand hall.",
		Weight:       1,
		Requires:     rules.Compile(map[string]any{"location": "hall"}),
		Choices: []types.Choice{effects.CompileChoice(map[string]any{
			"label": "Walk to the garden", "set": map[string]any{"location": "garden"},
		})},
		Position: &types.Position{X: 0, Y: 0},
	}
	garden := types.Fragment{
		ID:           "garden",
		Title:        "Garden",
		TextTemplate: "A peaceful garden.",
		Weight:       1,
		Requires:     rules.Compile(map[string]any{"location": "garden"}),
		Position:     &types.Position{X: 1, Y: 0},
	}

	w := engine.NewWorld(types.WorldDef{
		Title: "Test World",
		Start: "hall",
		Intro: "Welcome to the test.",
	}, spatial.New(spatial.WithLogger(quiet)), engine.WithWorldLogger(quiet))
	if _, err := w.Add(context.Background(), hall, garden); err != nil {
		t.Fatal(err)
	}
	return w
}

func newTestCLI(t *testing.T, input string) (*CLI, *bytes.Buffer) {
	t.Helper()
	eng, err := engine.New(context.Background(), testWorld(t), "cli-test", engine.Options{Seed: 1, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	c := &CLI{
		Engine:  eng,
		In:      strings.NewReader(input),
		Out:     &out,
		SaveDir: t.TempDir(),
	}
	return c, &out
}

func run(t *testing.T, input string) (*CLI, string) {
	t.Helper()
	c, out := newTestCLI(t, input)
	c.Run(context.Background())
	return c, out.String()
}

func TestCLI_IntroAndOpeningFragment(t *testing.T) {
	_, output := run(t, "/quit\n")

	for _, want := range []string{"Welcome to the test.", "A grand hall.", "1. Walk to the garden", "[Goodbye.]"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestCLI_Commands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"choose by number", "choose 1\n", "A peaceful garden."},
		{"bare number", "1\n", "A peaceful garden."},
		{"direction shortcut", "e\n", "A peaceful garden."},
		{"exits", "exits\n", "east: Garden"},
		{"unknown verb", "dance\n", `I don't know how to "dance".`},
		{"bad choice", "choose 9\n", "You can't do that"},
		{"nothing to repeat", "g\n", "Nothing to repeat."},
		{"repeat", "exits\ng\n", "east: Garden"},
		{"unknown meta", "/bogus\n", "Unknown command: /bogus"},
		{"help", "/help\n", "/save [name]"},
		{"state", "/state\n", "[location = hall]"},
		{"trace", "/trace\nlook\n", "[trace] Fragment: hall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output := run(t, tt.input)
			if !strings.Contains(output, tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, output)
			}
		})
	}
}

func TestCLI_RepeatRunsCommandTwice(t *testing.T) {
	_, output := run(t, "exits\ng\n")
	if n := strings.Count(output, "east: Garden"); n != 2 {
		t.Errorf("exits listed %d times, want 2:\n%s", n, output)
	}
}

func TestCLI_CommentsAndEcho(t *testing.T) {
	c, out := newTestCLI(t, "# a comment\nexits\n")
	c.EchoInput = true
	c.Run(context.Background())

	output := out.String()
	if strings.Contains(output, "a comment") {
		t.Error("comment line should be skipped")
	}
	if !strings.Contains(output, "> exits\n") {
		t.Errorf("expected echoed input:\n%s", output)
	}
}

func TestCLI_TraceToggle(t *testing.T) {
	_, output := run(t, "/trace\n/trace\n")
	if !strings.Contains(output, "Trace output enabled.") || !strings.Contains(output, "Trace output disabled.") {
		t.Errorf("expected both toggle messages:\n%s", output)
	}
}

func TestCLI_SaveAndLoad(t *testing.T) {
	for _, name := range []string{"slot", "slot.yaml"} {
		t.Run(name, func(t *testing.T) {
			c, out := newTestCLI(t, "choose 1\n/save "+name+"\n/load "+name+"\n")
			c.Run(context.Background())
			output := out.String()

			file := name
			if filepath.Ext(file) == "" {
				file += ".json"
			}
			if _, err := os.Stat(filepath.Join(c.SaveDir, file)); err != nil {
				t.Fatalf("save file missing: %v", err)
			}
			if !strings.Contains(output, "Session saved to "+file) {
				t.Errorf("expected save confirmation:\n%s", output)
			}
			if !strings.Contains(output, "Session loaded from "+file) {
				t.Errorf("expected load confirmation:\n%s", output)
			}
			if n := strings.Count(output, "A peaceful garden."); n != 2 {
				t.Errorf("garden shown %d times, want 2 (after choose and after load):\n%s", n, output)
			}
		})
	}
}

func TestCLI_LoadMissing(t *testing.T) {
	_, output := run(t, "/load nothing\n")
	if !strings.Contains(output, "Load failed") {
		t.Errorf("expected load failure:\n%s", output)
	}
}
