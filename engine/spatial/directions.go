// Package spatial places fragments on an integer grid and answers
// 8-directional navigation queries over the placement.
package spatial

import (
	"fmt"
	"strings"

	"github.com/nathoo/worldweaver/types"
)

// Directions lists the eight compass moves clockwise from north.
// North is y-1.
var Directions = []types.Direction{
	{Name: "north", DX: 0, DY: -1, Symbol: "↑"},
	{Name: "northeast", DX: 1, DY: -1, Symbol: "↗"},
	{Name: "east", DX: 1, DY: 0, Symbol: "→"},
	{Name: "southeast", DX: 1, DY: 1, Symbol: "↘"},
	{Name: "south", DX: 0, DY: 1, Symbol: "↓"},
	{Name: "southwest", DX: -1, DY: 1, Symbol: "↙"},
	{Name: "west", DX: -1, DY: 0, Symbol: "←"},
	{Name: "northwest", DX: -1, DY: -1, Symbol: "↖"},
}

// ParseDirection looks up a direction by name, ignoring case and
// surrounding space.
func ParseDirection(name string) (types.Direction, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, d := range Directions {
		if d.Name == n {
			return d, nil
		}
	}
	return types.Direction{}, fmt.Errorf("unknown direction %q: %w", name, types.ErrInvalidArgument)
}

// Step returns the cell one move from p in direction d.
func Step(p types.Position, d types.Direction) types.Position {
	return types.Position{X: p.X + d.DX, Y: p.Y + d.DY}
}
