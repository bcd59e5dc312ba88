package spatial

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/worldweaver/types"
)

const excerptLen = 50

// Bounds is the bounding box of every placed fragment.
type Bounds struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// MapEntry is one placed fragment in MapData.
type MapEntry struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Excerpt  string         `json:"text"`
	Requires map[string]any `json:"requires"`
	Position types.Position `json:"position"`
}

// Map is a renderable snapshot of the layout.
type Map struct {
	Entries []MapEntry `json:"storylets"`
	Bounds  Bounds     `json:"bounds"`
}

// MapData returns every placed fragment ordered by position, row-major.
func (l *Layout) MapData() Map {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m := Map{Entries: make([]MapEntry, 0, len(l.positions))}
	for id, pos := range l.positions {
		f := l.fragments[id]
		m.Entries = append(m.Entries, MapEntry{
			ID:       id,
			Title:    f.Title,
			Excerpt:  excerpt(f.TextTemplate),
			Requires: f.Requires.Raw,
			Position: pos,
		})
	}
	sort.Slice(m.Entries, func(i, j int) bool {
		a, b := m.Entries[i].Position, m.Entries[j].Position
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	m.Bounds = bounds(m.Entries)
	return m
}

// Render draws the layout as an ASCII grid. Each fragment is marked by
// its index modulo 10 and listed in a legend below the grid.
func (l *Layout) Render() string {
	m := l.MapData()
	if len(m.Entries) == 0 {
		return "No locations to display"
	}

	b := m.Bounds
	width, height := b.MaxX-b.MinX+1, b.MaxY-b.MinY+1
	grid := make([][]byte, height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", width))
	}

	legend := make([]string, 0, len(m.Entries))
	for i, e := range m.Entries {
		symbol := byte('0' + i%10)
		grid[e.Position.Y-b.MinY][e.Position.X-b.MinX] = symbol
		name := e.Title
		if name == "" {
			name = e.ID
		}
		legend = append(legend, fmt.Sprintf("%c: %s (%d, %d)", symbol, name, e.Position.X, e.Position.Y))
	}

	var sb strings.Builder
	sb.WriteString("Location Map:\n")
	for _, row := range grid {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Join(legend, "\n"))
	return sb.String()
}

func bounds(entries []MapEntry) Bounds {
	if len(entries) == 0 {
		return Bounds{}
	}
	p := entries[0].Position
	b := Bounds{MinX: p.X, MaxX: p.X, MinY: p.Y, MaxY: p.Y}
	for _, e := range entries[1:] {
		b.MinX = min(b.MinX, e.Position.X)
		b.MaxX = max(b.MaxX, e.Position.X)
		b.MinY = min(b.MinY, e.Position.Y)
		b.MaxY = max(b.MaxY, e.Position.Y)
	}
	return b
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "..."
}
