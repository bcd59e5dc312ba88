package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// DefaultWeight is the weight of a fragment that declares none.
const DefaultWeight = 1.0

// rawFragment holds a fragment table before compilation.
type rawFragment struct {
	id    string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Sequential integer keys from 1 make an array.
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// compile converts collected Lua definitions into the pack.
func compile(coll *collector, pack *Pack) error {
	if coll.world != nil {
		pack.World = compileWorld(coll.world)
	}
	for _, raw := range coll.fragments {
		m, _ := toGoValue(raw.table).(map[string]any)
		if m == nil {
			// An empty Fragment "id" {} is still a fragment.
			m = map[string]any{}
		}
		m["id"] = raw.id
		f, err := Decode(m)
		if err != nil {
			return err
		}
		pack.Fragments = append(pack.Fragments, f)
	}
	return nil
}

func compileWorld(tbl *lua.LTable) types.WorldDef {
	return types.WorldDef{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
		Start:   getString(tbl, "start"),
	}
}

// Decode builds a fragment from its authored mapping. It accepts the keys
// id, title, text (or text_template), requires, choices, weight and
// position. Choices accept both {label, set} and {text, set_vars}.
func Decode(raw map[string]any) (types.Fragment, error) {
	id, err := decodeID(raw["id"])
	if err != nil {
		return types.Fragment{}, err
	}

	f := types.Fragment{
		ID:     id,
		Title:  stringField(raw, "title"),
		Weight: DefaultWeight,
	}
	f.TextTemplate = stringField(raw, "text")
	if f.TextTemplate == "" {
		f.TextTemplate = stringField(raw, "text_template")
	}

	if w, ok := raw["weight"]; ok && w != nil {
		n, isNum := rules.ToFloat(w)
		if !isNum {
			return types.Fragment{}, fmt.Errorf("fragment %q: weight %v is not a number", id, w)
		}
		f.Weight = n
	}

	switch req := raw["requires"].(type) {
	case nil:
		f.Requires = rules.Compile(nil)
	case map[string]any:
		f.Requires = rules.Compile(req)
	default:
		return types.Fragment{}, fmt.Errorf("fragment %q: requires must be a mapping, got %T", id, req)
	}

	switch choices := raw["choices"].(type) {
	case nil:
	case map[string]any:
		// An empty Lua table decodes as a mapping.
		if len(choices) > 0 {
			return types.Fragment{}, fmt.Errorf("fragment %q: choices must be a list", id)
		}
	case []any:
		for i, c := range choices {
			m, ok := c.(map[string]any)
			if !ok {
				return types.Fragment{}, fmt.Errorf("fragment %q: choice %d must be a mapping, got %T", id, i+1, c)
			}
			f.Choices = append(f.Choices, effects.CompileChoice(m))
		}
	default:
		return types.Fragment{}, fmt.Errorf("fragment %q: choices must be a list, got %T", id, choices)
	}

	if pos, ok := raw["position"].(map[string]any); ok {
		x, okX := rules.ToFloat(pos["x"])
		y, okY := rules.ToFloat(pos["y"])
		if !okX || !okY {
			return types.Fragment{}, fmt.Errorf("fragment %q: position needs numeric x and y", id)
		}
		f.Position = &types.Position{X: int(x), Y: int(y)}
	}
	return f, nil
}

func decodeID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) != "" {
			return id, nil
		}
	case int:
		return strconv.Itoa(id), nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("fragment has no id (got %v)", v)
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// decodeDocument parses a JSON or YAML data file into generic values.
func decodeDocument(data []byte, ext string) (any, error) {
	var doc any
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// mergeDocument adds a data file's fragments to the pack. A document is
// either a list of fragments or a mapping with an optional world header
// and a fragments (or storylets) list.
func mergeDocument(pack *Pack, doc any) error {
	var list []any
	switch d := doc.(type) {
	case []any:
		list = d
	case map[string]any:
		if w, ok := d["world"].(map[string]any); ok {
			mergeWorld(&pack.World, w)
		}
		items, ok := d["fragments"]
		if !ok {
			items = d["storylets"]
		}
		if items != nil {
			l, ok := items.([]any)
			if !ok {
				return fmt.Errorf("fragments must be a list, got %T", items)
			}
			list = l
		}
	default:
		return fmt.Errorf("expected a list or mapping, got %T", doc)
	}

	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("fragment %d must be a mapping, got %T", i+1, item)
		}
		f, err := Decode(m)
		if err != nil {
			return err
		}
		pack.Fragments = append(pack.Fragments, f)
	}
	return nil
}

// mergeWorld fills empty header fields from a data file.
func mergeWorld(def *types.WorldDef, w map[string]any) {
	fields := []struct {
		dst *string
		key string
	}{
		{&def.Title, "title"},
		{&def.Author, "author"},
		{&def.Version, "version"},
		{&def.Intro, "intro"},
		{&def.Start, "start"},
	}
	for _, f := range fields {
		if *f.dst == "" {
			*f.dst = stringField(w, f.key)
		}
	}
}
