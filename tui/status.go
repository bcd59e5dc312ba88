package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// locationDisplayName derives a human-readable name from a location id.
// "great_hall" -> "Great Hall", "tunnel_entrance" -> "Tunnel Entrance".
func locationDisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renderStatusBar produces a full-width inverted status line showing the
// current location, open exits, inventory and danger.
func (m Model) renderStatusBar() string {
	s := m.engine.State.Summary()

	loc, _ := s.Variables["location"].(string)
	if loc == "" {
		loc = m.engine.World.Start()
	}

	var dirs []string
	if exits, err := m.engine.Exits(); err == nil {
		for _, x := range exits {
			if x.Open {
				dirs = append(dirs, x.Direction.Symbol)
			}
		}
	}

	left := fmt.Sprintf(" %s | Exits: %s", locationDisplayName(loc), strings.Join(dirs, " "))
	right := fmt.Sprintf("Danger:%d ", s.Environment.DangerLevel)

	// Show inventory items if they fit, otherwise just count.
	if len(s.Items) > 0 {
		names := make([]string, 0, len(s.Items))
		for _, it := range s.Items {
			name := it.Name
			if name == "" {
				name = it.ID
			}
			names = append(names, name)
		}
		candidate := fmt.Sprintf("Inv: %s | %s", strings.Join(names, ", "), right)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		} else {
			right = fmt.Sprintf("Inv: %d | %s", len(s.Items), right)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
