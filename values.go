package intake

import (
	"strings"

	"github.com/goliatone/go-intake/layering"
)

// Values is a read-only view of section state handed to conditions and
// refinements. Field names are the flat (possibly dotted) declared names.
type Values struct {
	fields      map[string]any
	collections map[string][]map[string]any
}

// NewValues builds a Values view; mostly useful for testing conditions.
func NewValues(fields map[string]any, collections map[string][]map[string]any) Values {
	return Values{fields: fields, collections: collections}
}

func (v Values) Get(name string) any {
	return v.fields[name]
}

// Entries returns the entries of a collection in order.
func (v Values) Entries(collection string) []map[string]any {
	return v.collections[collection]
}

func (v Values) Count(collection string) int {
	return len(v.collections[collection])
}

// Snapshot renders the values as nested maps for expression engines:
// dotted names become nested objects and collections become lists of entry
// objects. Every declared name is present, absent values as nil.
func (v Values) Snapshot() map[string]any {
	out := make(map[string]any, len(v.fields)+len(v.collections))
	for name, value := range v.fields {
		setPath(out, name, layering.Clone(value))
	}
	for name, entries := range v.collections {
		list := make([]any, len(entries))
		for i, entry := range entries {
			nested := map[string]any{}
			for key, value := range entry {
				setPath(nested, key, layering.Clone(value))
			}
			list[i] = nested
		}
		out[name] = list
	}
	return out
}

// setPath stores value at a dotted path, creating intermediate maps. An
// existing non-map value on the way is replaced.
func setPath(target map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := target
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// getPath reads a dotted path from nested maps.
func getPath(source map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = source
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func rootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
