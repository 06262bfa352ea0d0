// Package openapi renders compiled intake sections as OpenAPI 3 documents.
// Each document describes the payload a section saves, with x-formgen
// widget hints and x-visibility metadata naming the fields that gate it.
package openapi

import (
	"errors"

	intake "github.com/goliatone/go-intake"
)

// ErrNilSection is returned when Generate is called without a section.
var ErrNilSection = errors.New("openapi: section is nil")

// Generator implements intake.SchemaGenerator. It is safe for concurrent
// use.
type Generator struct {
	config generatorConfig
}

var _ intake.SchemaGenerator = (*Generator)(nil)

// NewGenerator constructs an OpenAPI schema generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Option wires the OpenAPI generator into a registry.
func Option(opts ...GeneratorOption) intake.Option {
	return intake.WithSchemaGenerator(NewGenerator(opts...))
}

func (g *Generator) Generate(section *intake.Section) (intake.SchemaDocument, error) {
	if section == nil {
		return intake.SchemaDocument{}, ErrNilSection
	}
	cfg := g.config.forSection(section.ID())
	document, err := newSectionDocument(cfg, newComponentRegistry(), buildSectionNode(section)).render()
	if err != nil {
		return intake.SchemaDocument{}, err
	}
	return intake.SchemaDocument{
		Format:   intake.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
