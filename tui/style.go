package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/worldweaver/engine/spatial"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleCarrying = lipgloss.NewStyle().
			Bold(true)

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81"))

	styleExits = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindCarrying
	kindChoice
	kindExits
	kindDialogue
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, carryingPrefix):
		return kindCarrying
	case isChoiceLine(line):
		return kindChoice
	case isExitLine(line):
		return kindExits
	case strings.HasPrefix(line, "You can't"),
		strings.HasPrefix(line, "Something went wrong"),
		strings.HasPrefix(line, "I don't know how"):
		return kindError
	case containsQuotedSpeech(line):
		return kindDialogue
	default:
		return kindNarrative
	}
}

// containsQuotedSpeech checks if a line contains NPC dialogue in single quotes.
func containsQuotedSpeech(line string) bool {
	inQuote := false
	quoteLen := 0
	for _, r := range line {
		if r == '\'' {
			if inQuote && quoteLen > 5 {
				return true
			}
			inQuote = !inQuote
			quoteLen = 0
		} else if inQuote {
			quoteLen++
		}
	}
	return false
}

const carryingPrefix = "You are carrying: "

// isChoiceLine matches the numbered choice lines "  1. Label".
func isChoiceLine(line string) bool {
	t := strings.TrimLeft(line, " ")
	if len(t) == len(line) {
		return false
	}
	dot := strings.Index(t, ". ")
	if dot < 1 {
		return false
	}
	for _, r := range t[:dot] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isExitLine matches exit listings, which start with a direction arrow.
func isExitLine(line string) bool {
	for _, d := range spatial.Directions {
		if strings.HasPrefix(line, d.Symbol+" ") {
			return true
		}
	}
	return false
}

// styledCarrying renders "You are carrying: a, b." with item names bold.
func styledCarrying(line string) string {
	if !strings.HasPrefix(line, carryingPrefix) {
		return styleNarrative.Render(line)
	}
	return styleNarrative.Render(carryingPrefix) + styleCarrying.Render(line[len(carryingPrefix):])
}

// styledPlayerInput renders the echoed player input in green with "> " prefix.
func styledPlayerInput(input string) string {
	return stylePlayerInput.Render("> " + input)
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
