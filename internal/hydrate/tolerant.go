package hydrate

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Shape is the subset of a section definition the tolerant decoder needs.
// Field names may be dotted to address nested payload objects.
type Shape struct {
	Fields      []string
	Collections []CollectionShape
}

type CollectionShape struct {
	Name   string
	Fields []string
	Max    int
}

// Section is a tolerantly decoded subsection payload.
type Section struct {
	// Fields holds values for declared fields present in the payload.
	Fields map[string]any
	// Collections holds declared collections present in the payload. Each
	// entry keeps declared fields only.
	Collections map[string][]map[string]any
	// Dropped lists payload paths the shape does not declare. Entry keys are
	// reported as "<collection>[].<key>".
	Dropped []string
	// Truncated maps collection names to the number of entries cut.
	Truncated map[string]int
}

// Tolerant returns a decode function that maps payloads onto shape.
func Tolerant(shape Shape) DecodeFunc[Section] {
	return func(_ Context, payload map[string]any) (Section, error) {
		return decodeTolerant(shape, payload), nil
	}
}

// NewSectionDecoder is the decoder used to resume sections from the store.
func NewSectionDecoder(shape Shape, opts ...DecoderOption[Section]) *Decoder[Section] {
	return NewDecoder(Tolerant(shape), opts...)
}

// Report returns a post-hook that hands fn whatever the tolerant decode
// discarded. fn is not called for clean payloads.
func Report(fn func(ctx Context, dropped []string, truncated map[string]int)) PostHook[Section] {
	return func(ctx Context, decoded *Section) error {
		if len(decoded.Dropped) > 0 || len(decoded.Truncated) > 0 {
			fn(ctx, decoded.Dropped, decoded.Truncated)
		}
		return nil
	}
}

func decodeTolerant(shape Shape, payload map[string]any) Section {
	out := Section{
		Fields:      map[string]any{},
		Collections: map[string][]map[string]any{},
		Truncated:   map[string]int{},
	}
	consumed := map[string]bool{}

	for _, name := range shape.Fields {
		if value, ok := lookup(payload, name); ok {
			out.Fields[name] = normalize(value)
			consumed[name] = true
		}
	}

	for _, coll := range shape.Collections {
		raw, ok := payload[coll.Name]
		if !ok {
			continue
		}
		consumed[coll.Name] = true
		items := asList(raw)
		if coll.Max > 0 && len(items) > coll.Max {
			out.Truncated[coll.Name] = len(items) - coll.Max
			items = items[:coll.Max]
		}
		entries := make([]map[string]any, 0, len(items))
		dropped := map[string]bool{}
		for _, item := range items {
			source, ok := item.(map[string]any)
			if !ok {
				dropped[coll.Name+"[]"] = true
				continue
			}
			entry := map[string]any{}
			used := map[string]bool{}
			for _, field := range coll.Fields {
				if value, ok := lookup(source, field); ok {
					entry[field] = normalize(value)
					used[field] = true
				}
			}
			for _, path := range leafPaths(source, "") {
				if !covered(path, used) {
					dropped[coll.Name+"[]."+path] = true
				}
			}
			entries = append(entries, entry)
		}
		for path := range dropped {
			out.Dropped = append(out.Dropped, path)
		}
		out.Collections[coll.Name] = entries
	}

	for _, path := range leafPaths(payload, "") {
		if covered(path, consumed) {
			continue
		}
		out.Dropped = append(out.Dropped, path)
	}
	sort.Strings(out.Dropped)
	if len(out.Truncated) == 0 {
		out.Truncated = nil
	}
	return out
}

func lookup(source map[string]any, path string) (any, bool) {
	var current any = source
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// leafPaths lists dotted paths to non-map values. Empty maps count as leaves.
func leafPaths(source map[string]any, prefix string) []string {
	var paths []string
	for key, value := range source {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			paths = append(paths, leafPaths(nested, path)...)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// covered reports whether path or one of its ancestors was consumed.
func covered(path string, consumed map[string]bool) bool {
	for {
		if consumed[path] {
			return true
		}
		i := strings.LastIndexByte(path, '.')
		if i < 0 {
			return false
		}
		path = path[:i]
	}
}

func asList(value any) []any {
	switch typed := value.(type) {
	case []any:
		return typed
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	}
	return nil
}

// normalize turns json.Number into float64 so restored values compare like
// freshly entered ones.
func normalize(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalize(item)
		}
		return out
	}
	return value
}
