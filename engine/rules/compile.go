package rules

import (
	"strings"

	"github.com/nathoo/worldweaver/types"
)

const (
	itemPrefix         = "item:"
	relationshipPrefix = "relationship:"
	locationKey        = "location"
	environmentKey     = "environment"
)

var knownOps = map[string]types.Op{
	"gte": types.OpGte,
	"gt":  types.OpGt,
	"lte": types.OpLte,
	"lt":  types.OpLt,
	"eq":  types.OpEq,
	"ne":  types.OpNe,
}

// Compile decodes an authored requirement mapping into its typed form.
// Keys are classified once here so evaluation never re-parses strings.
// Compile never fails: malformed entries degrade to plain variable lookups.
func Compile(raw map[string]any) types.Requirement {
	req := types.Requirement{Raw: raw}
	for _, key := range sortedKeys(raw) {
		req.Clauses = append(req.Clauses, compileClause(key, raw[key]))
	}
	return req
}

func compileClause(key string, v any) types.Clause {
	c := types.Clause{Key: key, Kind: types.ClauseVariable}

	switch {
	case key == locationKey:
		c.Kind = types.ClauseLocation
		c.Test = CompileTest(v)
		return c

	case key == environmentKey:
		c.Kind = types.ClauseEnvironment

	case strings.HasPrefix(key, itemPrefix) && len(key) > len(itemPrefix):
		c.Kind = types.ClauseItem
		c.ItemID = key[len(itemPrefix):]

	case strings.HasPrefix(key, relationshipPrefix):
		parts := strings.Split(key, ":")
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			c.Test = CompileTest(v)
			return c
		}
		c.Kind = types.ClauseRelationship
		c.EntityA, c.EntityB = parts[1], parts[2]

	default:
		c.Test = CompileTest(v)
		return c
	}

	attrs, ok := asMap(v)
	if !ok {
		c.Test = types.Test{Literal: ValueOf(v)}
		return c
	}
	c.Attrs = make(map[string]types.Test, len(attrs))
	for name, av := range attrs {
		c.Attrs[name] = CompileTest(av)
	}
	return c
}

// CompileTest decodes a requirement value. Any mapping is an
// operator-object; anything else is a literal.
func CompileTest(v any) types.Test {
	m, ok := asMap(v)
	if !ok {
		return types.Test{Literal: ValueOf(v)}
	}
	t := types.Test{Operator: true}
	for _, name := range sortedKeys(m) {
		op, known := knownOps[name]
		if !known {
			t.Unknown = append(t.Unknown, name)
			continue
		}
		t.Ops = append(t.Ops, types.Comparison{Op: op, Target: ValueOf(m[name])})
	}
	return t
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// LiteralLocation returns the location a requirement names as a literal
// string, the form the layout engine clusters on.
func LiteralLocation(req types.Requirement) (string, bool) {
	for _, c := range req.Clauses {
		if c.Kind != types.ClauseLocation || c.Test.Operator {
			continue
		}
		if c.Test.Literal.Kind == types.KindString {
			return c.Test.Literal.Str, true
		}
	}
	return "", false
}

// TargetLocation returns the location a requirement pins, either as a
// literal string or through an eq operator.
func TargetLocation(req types.Requirement) (string, bool) {
	if loc, ok := LiteralLocation(req); ok {
		return loc, true
	}
	for _, c := range req.Clauses {
		if c.Kind != types.ClauseLocation || !c.Test.Operator {
			continue
		}
		for _, cmp := range c.Test.Ops {
			if cmp.Op == types.OpEq && cmp.Target.Kind == types.KindString {
				return cmp.Target.Str, true
			}
		}
	}
	return "", false
}

// Variables lists the plain variable keys a requirement reads,
// including "location".
func Variables(req types.Requirement) []string {
	var out []string
	for _, c := range req.Clauses {
		if c.Kind == types.ClauseVariable || c.Kind == types.ClauseLocation {
			out = append(out, c.Key)
		}
	}
	return out
}

// UnknownOperators lists operator names in req that evaluation ignores.
func UnknownOperators(req types.Requirement) []string {
	var out []string
	add := func(t types.Test) {
		out = append(out, t.Unknown...)
	}
	for _, c := range req.Clauses {
		add(c.Test)
		for _, name := range sortedKeys(c.Attrs) {
			add(c.Attrs[name])
		}
	}
	return out
}

// EntryRequirement drops the location clauses of req, leaving what a
// visitor arriving from a neighboring cell must satisfy.
func EntryRequirement(req types.Requirement) types.Requirement {
	out := types.Requirement{}
	for _, c := range req.Clauses {
		if c.Kind != types.ClauseLocation {
			out.Clauses = append(out.Clauses, c)
		}
	}
	if req.Raw != nil {
		out.Raw = make(map[string]any, len(req.Raw))
		for k, v := range req.Raw {
			if k != locationKey {
				out.Raw[k] = v
			}
		}
	}
	return out
}
