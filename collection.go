package intake

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/goliatone/go-intake/layering"
)

// DefaultMaxEntries caps a collection when its descriptor sets no maximum.
const DefaultMaxEntries = 5

// CollectionDescriptor declares a repeating group of sub-fields.
type CollectionDescriptor struct {
	Name   string            `json:"name"`
	Label  string            `json:"label,omitempty"`
	Max    int               `json:"max"`
	Fields []FieldDescriptor `json:"fields"`
	// Toggle names a boolean field of the section that governs the
	// collection. Switching it off clears every entry; switching it on
	// with no entries appends one default entry.
	Toggle string `json:"toggle,omitempty"`
	// Initial is the number of default entries a fresh section starts with.
	Initial int `json:"initial,omitempty"`
}

// Entry is one collection element. ID is stable for the entry's lifetime and
// independent of its position.
type Entry struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// Collection is an ordered, bounded list of entries.
type Collection struct {
	name   string
	max    int
	schema *Schema
	newID  func() string
	order  []string
	values map[string]map[string]any
}

// NewCollection builds an empty collection for desc. newID may be nil, in
// which case random UUIDs are used.
func NewCollection(desc CollectionDescriptor, newID func() string) (*Collection, error) {
	schema, err := NewSchema(desc.Fields...)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", desc.Name, err)
	}
	return newCollection(desc, schema, newID), nil
}

func newCollection(desc CollectionDescriptor, schema *Schema, newID func() string) *Collection {
	limit := desc.Max
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Collection{
		name:   desc.Name,
		max:    limit,
		schema: schema,
		newID:  newID,
		values: map[string]map[string]any{},
	}
}

func (c *Collection) Name() string { return c.name }
func (c *Collection) Max() int     { return c.max }
func (c *Collection) Len() int     { return len(c.order) }

// Full reports whether Append would be rejected.
func (c *Collection) Full() bool { return len(c.order) >= c.max }

// Append adds an entry initialised from the schema defaults overlaid with
// defaults. At the maximum it does nothing and returns ok == false.
func (c *Collection) Append(defaults map[string]any) (id string, ok bool) {
	if c.Full() {
		return "", false
	}
	values := layering.Merge(defaults, c.schema.Defaults())
	if values == nil {
		values = map[string]any{}
	}
	id = c.newID()
	for _, taken := c.values[id]; taken; _, taken = c.values[id] {
		id = c.newID()
	}
	c.order = append(c.order, id)
	c.values[id] = values
	return id, true
}

// Remove deletes the entry with id. Unknown ids are ignored.
func (c *Collection) Remove(id string) bool {
	if _, ok := c.values[id]; !ok {
		return false
	}
	delete(c.values, id)
	c.order = slices.DeleteFunc(c.order, func(candidate string) bool { return candidate == id })
	return true
}

// Clear removes every entry.
func (c *Collection) Clear() {
	c.order = nil
	c.values = map[string]map[string]any{}
}

// Reindex returns detached entries in insertion order minus removals.
func (c *Collection) Reindex() []Entry {
	entries := make([]Entry, len(c.order))
	for i, id := range c.order {
		entries[i] = Entry{ID: id, Values: layering.CloneMap(c.values[id])}
	}
	return entries
}

func (c *Collection) Entry(id string) (Entry, bool) {
	values, ok := c.values[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{ID: id, Values: layering.CloneMap(values)}, true
}

// Set assigns one entry field.
func (c *Collection) Set(id, field string, value any) error {
	values, ok := c.values[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownEntry, c.name, id)
	}
	if !c.schema.Has(field) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, c.name, field)
	}
	values[field] = layering.Clone(value)
	return nil
}

// Schema returns the entry schema.
func (c *Collection) Schema() *Schema { return c.schema }

func (c *Collection) clone() *Collection {
	out := &Collection{
		name:   c.name,
		max:    c.max,
		schema: c.schema,
		newID:  c.newID,
		order:  slices.Clone(c.order),
		values: make(map[string]map[string]any, len(c.values)),
	}
	for id, values := range c.values {
		out.values[id] = layering.CloneMap(values)
	}
	return out
}

func (c *Collection) entryValues() []map[string]any {
	out := make([]map[string]any, len(c.order))
	for i, id := range c.order {
		out[i] = c.values[id]
	}
	return out
}

// EntryPath is the validation path of an entry field.
func EntryPath(collection, id, field string) string {
	return collection + "." + id + "." + field
}
