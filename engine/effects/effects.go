// Package effects applies choice set-operations to world state and renders
// fragment text against it.
package effects

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// DefaultChoiceLabel is used when a choice carries no label.
const DefaultChoiceLabel = "Continue"

// Target is the mutation surface a choice is applied to. *state.Manager
// implements it.
type Target interface {
	SetVariable(key string, value any) any
	IncrementVariable(key string, delta float64) (float64, error)
}

// CompileChoice normalizes an authored choice. Both "label" and "text" name
// the label; both "set" and "set_vars" carry the set-operations.
func CompileChoice(raw map[string]any) types.Choice {
	c := types.Choice{Label: DefaultChoiceLabel, Raw: raw}
	if s, ok := raw["label"].(string); ok && s != "" {
		c.Label = s
	} else if s, ok := raw["text"].(string); ok && s != "" {
		c.Label = s
	}

	set, ok := raw["set"].(map[string]any)
	if !ok {
		set, _ = raw["set_vars"].(map[string]any)
	}
	c.Set = Compile(set)
	return c
}

// Compile decodes a set-operation map. A value that is a mapping carrying
// "inc" or "dec" becomes a delta of inc - dec; anything else is assigned.
// Operations are ordered by key.
func Compile(raw map[string]any) []types.SetOp {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ops := make([]types.SetOp, 0, len(keys))
	for _, k := range keys {
		v := raw[k]
		m, isMap := v.(map[string]any)
		if isMap {
			inc, hasInc := rules.ToFloat(m["inc"])
			dec, hasDec := rules.ToFloat(m["dec"])
			if hasInc || hasDec {
				ops = append(ops, types.SetOp{Key: k, Delta: true, Amount: inc - dec})
				continue
			}
		}
		ops = append(ops, types.SetOp{Key: k, Literal: v})
	}
	return ops
}

// Apply runs ops against t in order. A failing operation does not stop the
// rest; all failures are returned joined.
func Apply(t Target, ops []types.SetOp) error {
	var errs []error
	for _, op := range ops {
		if !op.Delta {
			t.SetVariable(op.Key, op.Literal)
			continue
		}
		if _, err := t.IncrementVariable(op.Key, op.Amount); err != nil {
			errs = append(errs, fmt.Errorf("apply %q: %w", op.Key, err))
		}
	}
	return errors.Join(errs...)
}

// SetsLocation returns the location a choice assigns, if it assigns one
// as a string literal.
func SetsLocation(c types.Choice) (string, bool) {
	for _, op := range c.Set {
		if op.Key != "location" || op.Delta {
			continue
		}
		if s, ok := op.Literal.(string); ok {
			return s, true
		}
	}
	return "", false
}

// Render replaces {key} placeholders in text with values from vars.
// Unknown placeholders are left as written.
func Render(text string, vars map[string]any) string {
	if !strings.Contains(text, "{") {
		return text
	}
	var b strings.Builder
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			break
		}
		end += open
		key := text[open+1 : end]
		b.WriteString(text[:open])
		if v, ok := vars[key]; ok && key != "" {
			b.WriteString(formatValue(v))
		} else {
			b.WriteString(text[open : end+1])
		}
		text = text[end+1:]
	}
	b.WriteString(text)
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case []string:
		return strings.Join(x, ", ")
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprintf("%v", v)
}
