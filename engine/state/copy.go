package state

import (
	"sort"

	"github.com/nathoo/worldweaver/types"
)

// copyValue deep-copies the map and slice shapes produced by the loaders
// and decoders. Other values are returned as-is.
func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyItem(it types.ItemState) types.ItemState {
	it.Properties = copyMap(it.Properties)
	if it.LastUsed != nil {
		t := *it.LastUsed
		it.LastUsed = &t
	}
	return it
}

func copyRelationship(r types.RelationshipState) types.RelationshipState {
	r.Memories = append([]string{}, r.Memories...)
	if r.LastInteraction != nil {
		t := *r.LastInteraction
		r.LastInteraction = &t
	}
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
