// Package layering merges and clones section payloads. Payloads are the
// loosely typed map[string]any / []any trees produced by JSON decoding and by
// the section engine, so the helpers here operate on those shapes directly and
// fall back to reflection for typed maps and slices.
package layering

import "reflect"

// MergeLayers composes payloads ordered from strongest to weakest, returning a
// new map that keeps explicit values from stronger layers while filling any
// missing keys from weaker ones. Inputs are never mutated.
func MergeLayers(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return nil
	}
	merged := CloneMap(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = Merge(layers[i], merged)
	}
	return merged
}

// Merge overlays strong onto weak. Nested maps merge key by key; every other
// value (including slices) from strong replaces the weak value wholesale. A
// nil strong value counts as absent.
func Merge(strong, weak map[string]any) map[string]any {
	if strong == nil && weak == nil {
		return nil
	}
	out := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		out[key] = Clone(value)
	}
	for key, value := range strong {
		if value == nil {
			continue
		}
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := out[key].(map[string]any)
		if strongIsMap && weakIsMap {
			out[key] = Merge(strongMap, weakMap)
			continue
		}
		out[key] = Clone(value)
	}
	return out
}

// CloneMap deep copies a payload map.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = Clone(value)
	}
	return dst
}

// Clone deep copies value. Scalars are returned as-is.
func Clone(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		return CloneMap(typed)
	case []any:
		if typed == nil {
			return []any(nil)
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []map[string]any:
		if typed == nil {
			return []map[string]any(nil)
		}
		out := make([]map[string]any, len(typed))
		for i, item := range typed {
			out[i] = CloneMap(item)
		}
		return out
	case string, bool, int, int64, float64:
		return typed
	default:
		cloned := cloneValue(reflect.ValueOf(value))
		if !cloned.IsValid() {
			return nil
		}
		return cloned.Interface()
	}
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		// Structs (time.Time among them) copy by value.
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
