// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the playtest console.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nathoo/worldweaver/engine"
	"github.com/nathoo/worldweaver/engine/save"
	"github.com/nathoo/worldweaver/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Engine:  eng,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: filepath.Join(home, ".worldweaver", "saves"),
	}
}

// Run starts the session loop. It shows the intro, presents the first
// fragment, then loops: prompt → input → dispatch → output.
func (c *CLI) Run(ctx context.Context) {
	if intro := c.Engine.World.Def.Intro; intro != "" {
		c.printLine(intro)
		c.printLine("")
	}

	res, err := c.Engine.Begin(ctx)
	if err != nil {
		c.printSystem(fmt.Sprintf("Could not start: %v", err))
		return
	}
	c.printResult(res)

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return
			}
			continue
		}

		lower := strings.ToLower(input)
		if lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		result := c.Engine.Step(ctx, input)
		c.printResult(result)
		if c.Trace {
			c.printTrace(result)
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the session should end.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		if err := c.Engine.Flush(ctx); err != nil {
			c.printSystem(fmt.Sprintf("Flush failed: %v", err))
		}
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(ctx, arg)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

// savePath maps a save name to a file. Names without an extension are JSON.
func (c *CLI) savePath(name string) string {
	if name == "" {
		name = "quicksave"
	}
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return filepath.Join(c.SaveDir, name)
}

func (c *CLI) cmdSave(name string) {
	path := c.savePath(name)
	data, err := save.Save(c.Engine.SaveData(), save.FormatFor(path))
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Session saved to %s.", filepath.Base(path)))
}

func (c *CLI) cmdLoad(ctx context.Context, name string) {
	path := c.savePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	sd, err := save.Load(data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	if err := c.Engine.Restore(sd); err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Session loaded from %s.", filepath.Base(path)))
	c.printResult(c.Engine.Step(ctx, "look"))
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]  - Save session (default: quicksave; .yaml for YAML)",
		"  /load [name]  - Load session (default: quicksave)",
		"  /quit         - Exit",
		"  /help         - Show this help",
		"  /state        - Debug: dump current state",
		"  /trace        - Toggle debug trace output",
		"",
		"Commands:",
		"  look (l)           - Show the current fragment again",
		"  next (c)           - Move the story on",
		"  choose <n>         - Take choice n",
		"  go <dir>           - Move (or just type n/s/e/w/ne/nw/se/sw)",
		"  exits              - List neighboring fragments",
		"  map (m)            - Draw the fragment map",
		"  inventory (i)      - Check what you're carrying",
		"  use <item>         - Use an item",
		"  status             - Show variables and relationships",
		"  wait (z)           - Let time pass",
		"  g                  - Repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	s := c.Engine.State.Summary()
	c.printSystem(fmt.Sprintf("Session: %s", s.SessionID))
	keys := make([]string, 0, len(s.Variables))
	for k := range s.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.printSystem(fmt.Sprintf("%s = %v", k, s.Variables[k]))
	}
	if len(s.Items) > 0 {
		names := make([]string, 0, len(s.Items))
		for _, it := range s.Items {
			names = append(names, fmt.Sprintf("%s x%d", it.ID, it.Quantity))
		}
		c.printSystem(fmt.Sprintf("Inventory: %s", strings.Join(names, ", ")))
	}
	env := s.Environment
	c.printSystem(fmt.Sprintf("Environment: %s, %s, danger %d", env.TimeOfDay, env.Weather, env.DangerLevel))
}

func (c *CLI) printTrace(result types.Result) {
	switch {
	case result.Fragment != nil:
		c.printSystem(fmt.Sprintf("[trace] Fragment: %s (%d eligible)", result.Fragment.ID, result.Eligible))
	case result.NoContent:
		c.printSystem("[trace] No eligible fragment")
	}
	if result.Blocked {
		c.printSystem("[trace] Move blocked")
	}
}

func (c *CLI) printResult(result types.Result) {
	for _, line := range result.Output {
		c.printLine(line)
	}
	for i, ch := range result.Choices {
		c.printLine(fmt.Sprintf("  %d. %s", i+1, ch.Label))
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
