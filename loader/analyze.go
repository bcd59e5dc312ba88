package loader

import (
	"sort"

	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// LocationFlow records, for one location name, the fragments that
// require it and the fragments with a choice leading to it.
type LocationFlow struct {
	RequiredBy    []string
	TransitionsTo []string
}

// DangerSpread buckets fragments by the danger they require.
type DangerSpread struct {
	Low    int
	Medium int
	High   int
}

// Report is a connectivity analysis of a fragment set.
type Report struct {
	Total             int
	VariablesRequired map[string][]string // variable -> fragment ids
	VariablesSet      map[string][]string
	MissingSetters    []string // required but never set by a choice
	UnusedSetters     []string // set by a choice but never required
	Locations         map[string]*LocationFlow
	Orphaned          []string // required locations no choice leads to
	PoorlyConnected   []string // required more than twice as often as reached
	Danger            DangerSpread
	ConnectivityScore float64 // share of required variables some choice sets
}

// Analyze reports how the variables and locations of frags connect.
func Analyze(frags []types.Fragment) Report {
	r := Report{
		Total:             len(frags),
		VariablesRequired: map[string][]string{},
		VariablesSet:      map[string][]string{},
		Locations:         map[string]*LocationFlow{},
	}
	flow := func(loc string) *LocationFlow {
		lf, ok := r.Locations[loc]
		if !ok {
			lf = &LocationFlow{}
			r.Locations[loc] = lf
		}
		return lf
	}

	for _, f := range frags {
		for _, key := range rules.Variables(f.Requires) {
			r.VariablesRequired[key] = append(r.VariablesRequired[key], f.ID)
		}
		if loc, ok := rules.LiteralLocation(f.Requires); ok {
			flow(loc).RequiredBy = append(flow(loc).RequiredBy, f.ID)
		}
		r.Danger.add(f.Requires)

		for _, c := range f.Choices {
			for _, op := range c.Set {
				r.VariablesSet[op.Key] = appendOnce(r.VariablesSet[op.Key], f.ID)
			}
			if loc, ok := effects.SetsLocation(c); ok {
				flow(loc).TransitionsTo = appendOnce(flow(loc).TransitionsTo, f.ID)
			}
		}
	}

	connected := 0
	for key := range r.VariablesRequired {
		if _, ok := r.VariablesSet[key]; ok {
			connected++
		} else {
			r.MissingSetters = append(r.MissingSetters, key)
		}
	}
	for key := range r.VariablesSet {
		if _, ok := r.VariablesRequired[key]; !ok {
			r.UnusedSetters = append(r.UnusedSetters, key)
		}
	}
	r.ConnectivityScore = float64(connected) / float64(max(len(r.VariablesRequired), 1))

	for loc, lf := range r.Locations {
		switch {
		case len(lf.RequiredBy) == 0:
		case len(lf.TransitionsTo) == 0:
			r.Orphaned = append(r.Orphaned, loc)
		case len(lf.RequiredBy) > 2*len(lf.TransitionsTo):
			r.PoorlyConnected = append(r.PoorlyConnected, loc)
		}
	}

	sort.Strings(r.MissingSetters)
	sort.Strings(r.UnusedSetters)
	sort.Strings(r.Orphaned)
	sort.Strings(r.PoorlyConnected)
	return r
}

// add buckets an operator requirement on "danger": lte <= 1 is low,
// otherwise gte >= 4 is high, anything else medium.
func (d *DangerSpread) add(req types.Requirement) {
	for _, c := range req.Clauses {
		if c.Key != "danger" || !c.Test.Operator {
			continue
		}
		var low, high bool
		for _, cmp := range c.Test.Ops {
			if cmp.Target.Kind != types.KindNumber {
				continue
			}
			low = low || cmp.Op == types.OpLte && cmp.Target.Num <= 1
			high = high || cmp.Op == types.OpGte && cmp.Target.Num >= 4
		}
		switch {
		case low:
			d.Low++
		case high:
			d.High++
		default:
			d.Medium++
		}
	}
}

func appendOnce(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}
