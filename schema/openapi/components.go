package openapi

import (
	"fmt"
	"regexp"
	"sort"
)

// componentRegistry publishes object and array schemas under
// #/components/schemas. A node is published when it is pinned (the section
// payload) or when the same structure appears more than once.
type componentRegistry struct {
	byDigest map[string]*component
	names    map[string]struct{}
}

type component struct {
	name   string
	schema map[string]any
	uses   int
	pinned bool
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		byDigest: map[string]*component{},
		names:    map[string]struct{}{},
	}
}

// reference records a use of node and returns its $ref once it is
// published, or "" while it should stay inline.
func (r *componentRegistry) reference(hint string, node *schemaNode, pin bool) string {
	if node == nil {
		return ""
	}
	digest := node.Digest()
	if digest == "" {
		return ""
	}
	entry, ok := r.byDigest[digest]
	if !ok {
		entry = &component{name: r.claim(hint)}
		r.byDigest[digest] = entry
	}
	entry.uses++
	entry.pinned = entry.pinned || pin
	if !entry.published() {
		return ""
	}
	if entry.schema == nil {
		entry.schema = node.inlineOpenAPI()
	}
	return "#/components/schemas/" + entry.name
}

func (c *component) published() bool { return c.pinned || c.uses >= 2 }

func (r *componentRegistry) claim(hint string) string {
	base := sanitizeComponentName(hint)
	if base == "" {
		base = "Schema"
	}
	name := base
	for i := 1; ; i++ {
		if _, taken := r.names[name]; !taken {
			r.names[name] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
}

func (r *componentRegistry) schemas() map[string]any {
	out := map[string]any{}
	entries := make([]*component, 0, len(r.byDigest))
	for _, entry := range r.byDigest {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	for _, entry := range entries {
		if !entry.published() {
			continue
		}
		if entry.schema == nil {
			entry.schema = map[string]any{}
		}
		out[entry.name] = entry.schema
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var unsafeComponentChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// sanitizeComponentName keeps [A-Za-z0-9_], trims underscores and avoids a
// leading digit.
func sanitizeComponentName(name string) string {
	name = unsafeComponentChars.ReplaceAllString(name, "_")
	start, end := 0, len(name)
	for start < end && name[start] == '_' {
		start++
	}
	for end > start && name[end-1] == '_' {
		end--
	}
	name = name[start:end]
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
