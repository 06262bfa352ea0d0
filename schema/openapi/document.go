package openapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// sectionDocument renders one section payload tree into an OpenAPI
// document. Repeated object shapes are hoisted into components.
type sectionDocument struct {
	cfg        generatorConfig
	components *componentRegistry
	payload    *schemaNode
}

func newSectionDocument(cfg generatorConfig, components *componentRegistry, payload *schemaNode) *sectionDocument {
	return &sectionDocument{cfg: cfg, components: components, payload: payload}
}

func (d *sectionDocument) render() (map[string]any, error) {
	if d.payload == nil {
		return nil, errors.New("openapi: section payload is empty")
	}

	body := d.requestSchema()
	doc := map[string]any{
		"openapi": d.cfg.openAPIVersion,
		"info":    d.info(),
		"paths": map[string]any{
			d.cfg.operation.Path: map[string]any{
				d.method(): d.operation(body),
			},
		},
	}
	if schemas := d.components.schemas(); schemas != nil {
		doc["components"] = map[string]any{"schemas": schemas}
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// requestSchema publishes the payload as the root component when one is
// configured and inlines it otherwise.
func (d *sectionDocument) requestSchema() map[string]any {
	root := d.cfg.rootComponent
	if root == "" {
		return d.schemaFor(d.payload, "Payload")
	}
	ref := d.components.reference(root, d.payload, true)
	d.visitChildren(root, d.payload)
	return map[string]any{"$ref": ref}
}

func (d *sectionDocument) info() map[string]any {
	info := map[string]any{
		"title":   d.cfg.info.Title,
		"version": d.cfg.info.Version,
	}
	if d.cfg.info.Description != "" {
		info["description"] = d.cfg.info.Description
	}
	return info
}

func (d *sectionDocument) method() string {
	if method := strings.ToLower(d.cfg.operation.Method); method != "" {
		return method
	}
	return "put"
}

func (d *sectionDocument) operation(body map[string]any) map[string]any {
	id := d.cfg.operation.OperationID
	if id == "" {
		id = d.method() + ":" + d.cfg.operation.Path
	}

	statuses := make([]string, 0, len(d.cfg.responses))
	for status := range d.cfg.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	responses := make(map[string]any, len(statuses))
	for _, status := range statuses {
		responses[status] = map[string]any{"description": d.cfg.responses[status].Description}
	}

	op := map[string]any{
		"operationId": id,
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				d.cfg.contentType: map[string]any{"schema": body},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(d.cfg.operation.Summary); summary != "" {
		op["summary"] = summary
	}
	return op
}

// schemaFor renders node, replacing repeated object and array structures
// with references.
func (d *sectionDocument) schemaFor(node *schemaNode, hint string) map[string]any {
	if node == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if node.Type == "object" || node.Type == "array" {
		if ref := d.components.reference(hint, node, false); ref != "" {
			return map[string]any{"$ref": ref}
		}
	}

	out := node.baseMap()
	if len(node.Properties) > 0 || node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range node.propertyNames() {
			props[key] = d.schemaFor(node.Properties[key], componentName(hint, key))
		}
		out["properties"] = props
	}
	if len(node.Required) > 0 {
		out["required"] = sortedCopy(node.Required)
	}
	if node.Items != nil {
		out["items"] = d.schemaFor(node.Items, componentName(hint, "entry"))
	}
	return out
}

func (d *sectionDocument) visitChildren(hint string, node *schemaNode) {
	for _, key := range node.propertyNames() {
		d.schemaFor(node.Properties[key], componentName(hint, key))
	}
	if node.Items != nil {
		d.schemaFor(node.Items, componentName(hint, "entry"))
	}
}

func componentName(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "Schema"
	}
	return strings.Join(kept, "_")
}

// validateDocument checks the minimal structure every rendered section
// document carries: version, titled info, and one operation per path with
// an id, a request body with content, and responses.
func validateDocument(doc map[string]any) error {
	if doc == nil {
		return errors.New("openapi: document is nil")
	}
	if v, _ := doc["openapi"].(string); v == "" {
		return errors.New("openapi: document missing version string")
	}
	info, _ := doc["info"].(map[string]any)
	for _, key := range []string{"title", "version"} {
		if v, _ := info[key].(string); v == "" {
			return fmt.Errorf("openapi: info.%s must be set", key)
		}
	}
	paths, _ := doc["paths"].(map[string]any)
	if len(paths) == 0 {
		return errors.New("openapi: document must define at least one path")
	}
	for path, raw := range paths {
		item, _ := raw.(map[string]any)
		if len(item) == 0 {
			return fmt.Errorf("openapi: path %q has no operations", path)
		}
		for method, rawOp := range item {
			if err := validateOperation(rawOp); err != nil {
				return fmt.Errorf("openapi: %s %s: %w", method, path, err)
			}
		}
	}
	return nil
}

func validateOperation(raw any) error {
	op, _ := raw.(map[string]any)
	if op == nil {
		return errors.New("operation is not an object")
	}
	if _, ok := op["operationId"].(string); !ok {
		return errors.New("missing operationId")
	}
	body, _ := op["requestBody"].(map[string]any)
	if content, _ := body["content"].(map[string]any); len(content) == 0 {
		return errors.New("requestBody missing content")
	}
	if _, ok := op["responses"].(map[string]any); !ok {
		return errors.New("missing responses")
	}
	return nil
}
