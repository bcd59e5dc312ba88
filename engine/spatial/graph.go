package spatial

import (
	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// Graph is a directed adjacency list over fragment ids. An edge a -> b
// means some choice on a sets "location" to the value b requires.
type Graph struct {
	Order []string
	Edges map[string][]string
}

// BuildGraph computes the adjacency list for frags. Self-loops are dropped
// and each edge appears once.
func BuildGraph(frags []types.Fragment) Graph {
	g := Graph{
		Order: make([]string, 0, len(frags)),
		Edges: make(map[string][]string, len(frags)),
	}

	byLocation := map[string][]string{}
	for _, f := range frags {
		g.Order = append(g.Order, f.ID)
		g.Edges[f.ID] = nil
		if loc, ok := rules.TargetLocation(f.Requires); ok {
			byLocation[loc] = append(byLocation[loc], f.ID)
		}
	}

	for _, f := range frags {
		seen := map[string]bool{}
		for _, c := range f.Choices {
			loc, ok := effects.SetsLocation(c)
			if !ok {
				continue
			}
			for _, target := range byLocation[loc] {
				if target == f.ID || seen[target] {
					continue
				}
				seen[target] = true
				g.Edges[f.ID] = append(g.Edges[f.ID], target)
			}
		}
	}
	return g
}

// Start returns the node with the most outgoing edges, the first node in
// Order on ties, or "" for an empty graph.
func (g Graph) Start() string {
	best, bestDegree := "", -1
	for _, id := range g.Order {
		if d := len(g.Edges[id]); d > bestDegree {
			best, bestDegree = id, d
		}
	}
	return best
}
