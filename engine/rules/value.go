package rules

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/nathoo/worldweaver/types"
)

// ValueOf wraps a Go value read from state or content into a types.Value.
// Integers and floats of every width become KindNumber.
func ValueOf(v any) types.Value {
	switch x := v.(type) {
	case nil:
		return types.Value{Kind: types.KindNull}
	case types.Value:
		return x
	case bool:
		return types.Value{Kind: types.KindBool, Bool: x, Raw: x}
	case string:
		return types.Value{Kind: types.KindString, Str: x, Raw: x}
	case int:
		return number(float64(x), v)
	case int8:
		return number(float64(x), v)
	case int16:
		return number(float64(x), v)
	case int32:
		return number(float64(x), v)
	case int64:
		return number(float64(x), v)
	case uint:
		return number(float64(x), v)
	case uint8:
		return number(float64(x), v)
	case uint16:
		return number(float64(x), v)
	case uint32:
		return number(float64(x), v)
	case uint64:
		return number(float64(x), v)
	case float32:
		return number(float64(x), v)
	case float64:
		return number(x, v)
	case []any:
		return types.Value{Kind: types.KindList, Raw: x}
	case map[string]any:
		return types.Value{Kind: types.KindMap, Raw: x}
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return types.Value{Kind: types.KindList, Raw: v}
	case reflect.Map:
		return types.Value{Kind: types.KindMap, Raw: v}
	default:
		s := fmt.Sprint(v)
		return types.Value{Kind: types.KindString, Str: s, Raw: s}
	}
}

func number(f float64, raw any) types.Value {
	return types.Value{Kind: types.KindNumber, Num: f, Raw: raw}
}

// ToFloat reports the numeric value of v, if it has one.
func ToFloat(v any) (float64, bool) {
	val := ValueOf(v)
	if val.Kind != types.KindNumber {
		return 0, false
	}
	return val.Num, true
}

// Truthy reports whether v counts as true in a literal existence test.
func Truthy(v types.Value) bool {
	switch v.Kind {
	case types.KindBool:
		return v.Bool
	case types.KindNumber:
		return v.Num != 0
	case types.KindString:
		return v.Str != ""
	case types.KindList, types.KindMap:
		return reflect.ValueOf(v.Raw).Len() > 0
	default:
		return false
	}
}

// Equal compares two values. Numbers compare by magnitude regardless of
// their Go width; lists and maps compare element by element.
func Equal(a, b types.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case types.KindNull:
		return true
	case types.KindBool:
		return a.Bool == b.Bool
	case types.KindNumber:
		return a.Num == b.Num
	case types.KindString:
		return a.Str == b.Str
	case types.KindList:
		return equalList(reflect.ValueOf(a.Raw), reflect.ValueOf(b.Raw))
	case types.KindMap:
		return equalMap(reflect.ValueOf(a.Raw), reflect.ValueOf(b.Raw))
	}
	return false
}

func equalList(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !Equal(ValueOf(a.Index(i).Interface()), ValueOf(b.Index(i).Interface())) {
			return false
		}
	}
	return true
}

func equalMap(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	iter := a.MapRange()
	for iter.Next() {
		key := iter.Key()
		if key.Type() != b.Type().Key() {
			return false
		}
		other := b.MapIndex(key)
		if !other.IsValid() {
			return false
		}
		if !Equal(ValueOf(iter.Value().Interface()), ValueOf(other.Interface())) {
			return false
		}
	}
	return true
}

// compare orders two values. Only number/number and string/string pairs
// are ordered; anything else reports ok=false.
func compare(a, b types.Value) (int, bool) {
	switch {
	case a.Kind == types.KindNumber && b.Kind == types.KindNumber:
		switch {
		case a.Num < b.Num:
			return -1, true
		case a.Num > b.Num:
			return 1, true
		}
		return 0, true
	case a.Kind == types.KindString && b.Kind == types.KindString:
		return strings.Compare(a.Str, b.Str), true
	}
	return 0, false
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
