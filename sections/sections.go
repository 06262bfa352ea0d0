// Package sections declares the intake sections of the housing application
// and a registry wired with them in their canonical order.
package sections

import (
	intake "github.com/goliatone/go-intake"
)

// Section identifiers in registration order.
const (
	Demographics   = "demographics"
	Vehicles       = "vehicles"
	Children       = "children"
	HousingHistory = "housingHistory"
	Education      = "education"
	Employment     = "employment"
	LifeGoals      = "lifeGoals"
)

// Order lists the section ids in the order the wizard visits them.
var Order = []string{
	Demographics,
	Vehicles,
	Children,
	HousingHistory,
	Education,
	Employment,
	LifeGoals,
}

// Definitions returns fresh definitions for every built-in section. Callers
// may modify the result before building a registry.
func Definitions() []intake.SectionDefinition {
	return []intake.SectionDefinition{
		demographics(),
		vehicles(),
		children(),
		housingHistory(),
		education(),
		employment(),
		lifeGoals(),
	}
}

// DefaultRegistry compiles the built-in sections with opts.
func DefaultRegistry(opts ...intake.Option) (*intake.Registry, error) {
	return intake.NewRegistry(Definitions(), opts...)
}

func text(name, label string) intake.FieldDescriptor {
	return intake.FieldDescriptor{Name: name, Label: label, Type: intake.FieldString}
}

func number(name, label string, min float64) intake.FieldDescriptor {
	return intake.FieldDescriptor{
		Name:     name,
		Label:    label,
		Type:     intake.FieldNumber,
		Checks:   []intake.Check{intake.Min(min, "")},
		Describe: map[string]any{"minimum": min},
	}
}

func flag(name, label string) intake.FieldDescriptor {
	return intake.FieldDescriptor{Name: name, Label: label, Type: intake.FieldBoolean, Default: false}
}

func choice(name, label string, values ...string) intake.FieldDescriptor {
	return intake.FieldDescriptor{Name: name, Label: label, Type: intake.FieldEnum, Enum: values}
}

func yesNo(name, label string) intake.FieldDescriptor {
	return choice(name, label, "yes", "no")
}

// patterned adds a pattern check and records it for schema generation.
func patterned(field intake.FieldDescriptor, expr, message string) intake.FieldDescriptor {
	field.Checks = append(field.Checks, intake.Pattern(expr, message))
	if field.Describe == nil {
		field.Describe = map[string]any{}
	}
	field.Describe["pattern"] = expr
	return field
}

func required(field intake.FieldDescriptor, message string) intake.FieldDescriptor {
	field.Required = true
	field.RequiredMessage = message
	return field
}
