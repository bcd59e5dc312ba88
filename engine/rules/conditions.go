// Package rules evaluates fragment requirements against world state.
package rules

import (
	"github.com/nathoo/worldweaver/types"
)

// Source is the read-only view of world state that requirements are
// tested against. *state.Manager implements it; Vars adapts a plain map.
type Source interface {
	Variable(key string) (any, bool)
	Item(id string) (types.ItemState, bool)
	Relationship(a, b string) (types.RelationshipState, bool)
	EnvironmentField(name string) (any, bool)
}

// Vars adapts a bare variable map to Source. Item, relationship and
// environment lookups always miss.
type Vars map[string]any

func (v Vars) Variable(key string) (any, bool) {
	val, ok := v[key]
	return val, ok
}

func (Vars) Item(string) (types.ItemState, bool) { return types.ItemState{}, false }

func (Vars) Relationship(string, string) (types.RelationshipState, bool) {
	return types.RelationshipState{}, false
}

func (Vars) EnvironmentField(string) (any, bool) { return nil, false }

// Location sentinels that match any current location.
var anyLocation = map[string]bool{
	"any_realm":    true,
	"any_location": true,
	"anywhere":     true,
}

// Location values accepted by the "in_vessel" sentinel.
var vesselLocations = map[string]bool{
	"start":  true,
	"vessel": true,
	"ship":   true,
	"craft":  true,
}

// Evaluate returns true if every clause of req holds (AND logic).
// An empty requirement is vacuously true. Evaluate never fails.
func Evaluate(req types.Requirement, src Source) bool {
	for _, c := range req.Clauses {
		if !EvalClause(c, src) {
			return false
		}
	}
	return true
}

// EvaluateRaw compiles and evaluates an authored requirement mapping.
func EvaluateRaw(raw map[string]any, src Source) bool {
	return Evaluate(Compile(raw), src)
}

// EvalClause evaluates a single requirement clause.
func EvalClause(c types.Clause, src Source) bool {
	switch c.Kind {
	case types.ClauseLocation:
		v, ok := src.Variable(locationKey)
		return evalLocation(c.Test, ValueOf(v), ok)

	case types.ClauseItem:
		item, ok := src.Item(c.ItemID)
		if c.Attrs == nil {
			return ok == Truthy(c.Test.Literal)
		}
		if !ok {
			return false
		}
		for name, t := range c.Attrs {
			switch name {
			case "quantity":
				if !evalTest(t, ValueOf(item.Quantity), true, true) {
					return false
				}
			case "condition":
				if !evalTest(t, ValueOf(item.Condition), true, false) {
					return false
				}
			}
		}
		return true

	case types.ClauseRelationship:
		rel, ok := src.Relationship(c.EntityA, c.EntityB)
		if c.Attrs == nil {
			return ok == Truthy(c.Test.Literal)
		}
		if !ok {
			return false
		}
		for name, t := range c.Attrs {
			if !evalTest(t, ValueOf(RelationshipAttr(rel, name)), true, false) {
				return false
			}
		}
		return true

	case types.ClauseEnvironment:
		if c.Attrs == nil {
			return true
		}
		for name, t := range c.Attrs {
			v, ok := src.EnvironmentField(name)
			if !evalTest(t, ValueOf(v), ok, false) {
				return false
			}
		}
		return true

	default:
		v, ok := src.Variable(c.Key)
		return evalTest(c.Test, ValueOf(v), ok, true)
	}
}

// RelationshipAttr reads a named numeric attribute of a relationship.
// Unknown names read as zero.
func RelationshipAttr(rel types.RelationshipState, name string) float64 {
	switch name {
	case "trust":
		return rel.Trust
	case "fear":
		return rel.Fear
	case "respect":
		return rel.Respect
	case "attraction":
		return rel.Attraction
	case "familiarity":
		return rel.Familiarity
	case "interaction_count":
		return float64(rel.InteractionCount)
	default:
		return 0
	}
}

func evalLocation(test types.Test, have types.Value, present bool) bool {
	if test.Operator {
		return evalOps(test.Ops, have, present)
	}
	want := test.Literal
	if want.Kind == types.KindString {
		if anyLocation[want.Str] {
			return true
		}
		if want.Str == "in_vessel" {
			return present && have.Kind == types.KindString && vesselLocations[have.Str]
		}
	}
	return present && Equal(have, want)
}

// evalTest checks have against a literal or operator-object. When
// numericFloor is set, a numeric literal means "at least"; otherwise a
// literal is an equality test.
func evalTest(test types.Test, have types.Value, present bool, numericFloor bool) bool {
	if test.Operator {
		return evalOps(test.Ops, have, present)
	}
	want := test.Literal
	if !present {
		have = types.Value{Kind: types.KindNull}
	}
	if numericFloor && want.Kind == types.KindNumber && have.Kind == types.KindNumber {
		return have.Num >= want.Num
	}
	return Equal(have, want)
}

func evalOps(ops []types.Comparison, have types.Value, present bool) bool {
	if !present {
		have = types.Value{Kind: types.KindNull}
	}
	for _, cmp := range ops {
		if !evalOp(cmp, have) {
			return false
		}
	}
	return true
}

func evalOp(cmp types.Comparison, have types.Value) bool {
	switch cmp.Op {
	case types.OpEq:
		return Equal(have, cmp.Target)
	case types.OpNe:
		return !Equal(have, cmp.Target)
	}

	order, ok := compare(have, cmp.Target)
	if !ok {
		return false
	}
	switch cmp.Op {
	case types.OpGte:
		return order >= 0
	case types.OpGt:
		return order > 0
	case types.OpLte:
		return order <= 0
	case types.OpLt:
		return order < 0
	}
	return true
}
