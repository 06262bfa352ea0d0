package intake

import (
	"slices"
)

// SchemaFormat names the shape of a SchemaDocument.
type SchemaFormat string

const (
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	SchemaFormatOpenAPI     SchemaFormat = "openapi"
)

// SchemaDocument is a machine readable description of a section for the
// rendering layer.
type SchemaDocument struct {
	Format   SchemaFormat `json:"format"`
	Document any          `json:"document"`
}

// SchemaGenerator renders a compiled section into a SchemaDocument.
type SchemaGenerator interface {
	Generate(section *Section) (SchemaDocument, error)
}

// PathDescriptor describes one value path of a section payload. Entry
// fields use "<collection>[].<field>".
type PathDescriptor struct {
	Path       string    `json:"path"`
	Type       FieldType `json:"type"`
	Required   bool      `json:"required,omitempty"`
	Enum       []string  `json:"enum,omitempty"`
	Collection string    `json:"collection,omitempty"`
	Max        int       `json:"max,omitempty"`
	// DependsOn lists the names whose values decide whether the path is
	// active. Empty means always active.
	DependsOn []string `json:"dependsOn,omitempty"`
}

// DefaultSchemaGenerator returns the built-in flat descriptor generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(section *Section) (SchemaDocument, error) {
	descriptors := DescribePaths(section)
	if descriptors == nil {
		descriptors = []PathDescriptor{}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

// DescribePaths lists every field and entry field of section in declaration
// order.
func DescribePaths(section *Section) []PathDescriptor {
	if section == nil {
		return nil
	}
	deps := section.rules.Dependencies()
	var out []PathDescriptor
	for _, field := range section.schema.fields {
		out = append(out, PathDescriptor{
			Path:      field.Name,
			Type:      field.Type,
			Required:  field.Required,
			Enum:      slices.Clone(field.Enum),
			DependsOn: slices.Clone(deps[field.Name]),
		})
	}
	for _, coll := range section.collections {
		name := coll.desc.Name
		for _, field := range coll.schema.fields {
			out = append(out, PathDescriptor{
				Path:       joinPath(name+"[]", field.Name),
				Type:       field.Type,
				Required:   field.Required,
				Enum:       slices.Clone(field.Enum),
				Collection: name,
				Max:        coll.desc.Max,
				DependsOn:  slices.Clone(deps[name]),
			})
		}
	}
	return out
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
