package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	intake "github.com/goliatone/go-intake"
)

// schemaNode is an intermediate JSON-Schema node built from a section.
type schemaNode struct {
	Type       string
	Format     string
	Properties map[string]*schemaNode
	Required   []string
	Items      *schemaNode
	Enum       []any
	Default    any
	MaxItems   *int
	formgen    map[string]string
	visibility map[string]string
	describe   map[string]any
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

// buildSectionNode renders the payload object saved for section. Dotted
// field names become nested objects and collections become arrays.
func buildSectionNode(section *intake.Section) *schemaNode {
	root := newObjectNode()
	deps := section.Rules().Dependencies()
	for _, field := range section.Schema().Fields() {
		node := fieldNode(field)
		if dependsOn := deps[field.Name]; len(dependsOn) > 0 {
			node.ensureVisibility()["dependsOn"] = strings.Join(dependsOn, ",")
			if field.Required {
				node.ensureVisibility()["requiredWhenActive"] = "true"
			}
			field.Required = false
		}
		insert(root, field.Name, node, field.Required)
	}
	for _, desc := range section.Collections() {
		_, entrySchema, err := section.Collection(desc.Name)
		if err != nil {
			continue
		}
		items := newObjectNode()
		for _, field := range entrySchema.Fields() {
			insert(items, field.Name, fieldNode(field), field.Required)
		}
		limit := desc.Max
		node := &schemaNode{Type: "array", Items: items, MaxItems: &limit}
		if desc.Label != "" {
			node.ensureFormgen()["label"] = desc.Label
		}
		node.ensureFormgen()["widget"] = "repeater"
		if desc.Toggle != "" {
			node.ensureVisibility()["toggle"] = desc.Toggle
		}
		if dependsOn := deps[desc.Name]; len(dependsOn) > 0 {
			node.ensureVisibility()["dependsOn"] = strings.Join(dependsOn, ",")
		}
		root.Properties[desc.Name] = node
	}
	return root
}

func fieldNode(field intake.FieldDescriptor) *schemaNode {
	node := &schemaNode{Default: field.Default}
	formgen := node.ensureFormgen()
	switch field.Type {
	case intake.FieldNumber:
		node.Type = "number"
		formgen["widget"] = "number"
	case intake.FieldBoolean:
		node.Type = "boolean"
		formgen["widget"] = "checkbox"
	case intake.FieldDate:
		node.Type = "string"
		node.Format = "date"
		formgen["widget"] = "date"
	case intake.FieldEnum:
		node.Type = "string"
		for _, value := range field.Enum {
			node.Enum = append(node.Enum, value)
		}
		formgen["widget"] = "select"
	default:
		node.Type = "string"
		formgen["widget"] = "text"
	}
	if field.Label != "" {
		formgen["label"] = field.Label
	}
	if len(field.Describe) > 0 {
		node.describe = make(map[string]any, len(field.Describe))
		for key, value := range field.Describe {
			node.describe[key] = value
		}
	}
	return node
}

// insert places node at a dotted path under parent.
func insert(parent *schemaNode, path string, node *schemaNode, required bool) {
	parts := strings.Split(path, ".")
	current := parent
	for _, part := range parts[:len(parts)-1] {
		next, ok := current.Properties[part]
		if !ok || next.Type != "object" {
			next = newObjectNode()
			current.Properties[part] = next
		}
		current = next
	}
	leaf := parts[len(parts)-1]
	current.Properties[leaf] = node
	if required {
		current.Required = append(current.Required, leaf)
	}
}

func (n *schemaNode) ensureFormgen() map[string]string {
	if n.formgen == nil {
		n.formgen = map[string]string{}
	}
	return n.formgen
}

func (n *schemaNode) ensureVisibility() map[string]string {
	if n.visibility == nil {
		n.visibility = map[string]string{}
	}
	return n.visibility
}

// baseMap renders the scalar keywords of the node.
func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.MaxItems != nil {
		result["maxItems"] = *n.MaxItems
	}
	keys := make([]string, 0, len(n.describe))
	for key := range n.describe {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		result[key] = n.describe[key]
	}
	if len(n.formgen) > 0 {
		result["x-formgen"] = orderedStringMap(n.formgen)
	}
	if len(n.visibility) > 0 {
		result["x-visibility"] = orderedStringMap(n.visibility)
	}
	return result
}

// inlineOpenAPI renders the node and its children without references.
func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()
	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range n.propertyNames() {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}
	if len(n.Required) > 0 {
		result["required"] = sortedCopy(n.Required)
	}
	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	return result
}

func (n *schemaNode) propertyNames() []string {
	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Digest identifies structurally equal nodes so they can share a component.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func orderedStringMap(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		if value == "true" || value == "false" {
			out[key] = value == "true"
			continue
		}
		out[key] = value
	}
	return out
}

func sortedCopy(values []string) []string {
	out := append([]string{}, values...)
	sort.Strings(out)
	return out
}
