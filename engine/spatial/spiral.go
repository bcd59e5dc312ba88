package spatial

import "github.com/nathoo/worldweaver/types"

// DefaultMaxRadius bounds the ring search in FindFree.
const DefaultMaxRadius = 20

// FindFree returns start if it is free, otherwise the first free cell on
// rings of radius 1..maxRadius-1 around it. Each ring tries the eight compass
// cells first, then the rest of its perimeter. If every ring is full the
// search jumps diagonally in steps of maxRadius until a free cell turns up.
func FindFree(start types.Position, occupied func(types.Position) bool, maxRadius int) types.Position {
	if !occupied(start) {
		return start
	}
	if maxRadius < 2 {
		maxRadius = 2
	}

	for r := 1; r < maxRadius; r++ {
		for _, d := range Directions {
			c := types.Position{X: start.X + d.DX*r, Y: start.Y + d.DY*r}
			if !occupied(c) {
				return c
			}
		}
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if abs(dx) != r && abs(dy) != r {
					continue
				}
				c := types.Position{X: start.X + dx, Y: start.Y + dy}
				if !occupied(c) {
					return c
				}
			}
		}
	}

	step := maxRadius
	for k := 1; ; k++ {
		c := types.Position{X: start.X + k*step, Y: start.Y + k*step}
		if !occupied(c) {
			return c
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
