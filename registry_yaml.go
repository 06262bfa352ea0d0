package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

// yamlRegistry is the document accepted by LoadRegistryYAML.
type yamlRegistry struct {
	Sections []yamlSection `yaml:"sections"`
}

type yamlSection struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	Fields      []yamlField      `yaml:"fields"`
	Collections []yamlCollection `yaml:"collections"`
	Rules       []yamlRule       `yaml:"rules"`
	Refinements []yamlRefinement `yaml:"refinements"`
}

type yamlField struct {
	Name            string         `yaml:"name"`
	Label           string         `yaml:"label"`
	Type            FieldType      `yaml:"type"`
	Required        bool           `yaml:"required"`
	RequiredMessage string         `yaml:"required_message"`
	Enum            []string       `yaml:"enum"`
	Default         any            `yaml:"default"`
	Pattern         string         `yaml:"pattern"`
	PatternMessage  string         `yaml:"pattern_message"`
	MinLength       *int           `yaml:"min_length"`
	MaxLength       *int           `yaml:"max_length"`
	Min             *float64       `yaml:"min"`
	Max             *float64       `yaml:"max"`
	RangeMessage    string         `yaml:"range_message"`
	YearRange       *yamlYearRange `yaml:"year_range"`
	NotOneOf        []string       `yaml:"not_one_of"`
	NotOneOfMessage string         `yaml:"not_one_of_message"`
	PastDate        bool           `yaml:"past_date"`
}

type yamlYearRange struct {
	Min     int    `yaml:"min"`
	Ahead   int    `yaml:"ahead"`
	Message string `yaml:"message"`
}

type yamlCollection struct {
	Name    string      `yaml:"name"`
	Label   string      `yaml:"label"`
	Max     int         `yaml:"max"`
	Toggle  string      `yaml:"toggle"`
	Initial int         `yaml:"initial"`
	Fields  []yamlField `yaml:"fields"`
}

type yamlRule struct {
	Name  string        `yaml:"name"`
	When  yamlCondition `yaml:"when"`
	Deps  []string      `yaml:"deps"`
	Show  []string      `yaml:"show"`
	Hide  []string      `yaml:"hide"`
	Width int           `yaml:"width"`
}

// yamlCondition accepts either an expression string or a mapping with one
// of equals, in or truthy.
type yamlCondition struct {
	Field  string   `yaml:"field"`
	Equals *any     `yaml:"equals"`
	In     []any    `yaml:"in"`
	Truthy bool     `yaml:"truthy"`
	Expr   string   `yaml:"expr"`
	Deps   []string `yaml:"deps"`
}

func (c *yamlCondition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Expr = node.Value
		return nil
	}
	type plain yamlCondition
	return node.Decode((*plain)(c))
}

type yamlRefinement struct {
	Name    string `yaml:"name"`
	Anchor  string `yaml:"anchor"`
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
	Expr    string `yaml:"expr"`
}

// LoadRegistryYAML builds a registry from a YAML document. Unknown keys are
// rejected. Expressions compile with the evaluator configured through opts.
func LoadRegistryYAML(data []byte, opts ...Option) (*Registry, error) {
	defs, err := ParseSectionsYAML(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs, opts...)
}

// ParseSectionsYAML decodes section definitions without compiling them.
func ParseSectionsYAML(r io.Reader) ([]SectionDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc yamlRegistry
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty registry document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	defs := make([]SectionDefinition, 0, len(doc.Sections))
	for _, raw := range doc.Sections {
		def, err := raw.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (s yamlSection) definition() (SectionDefinition, error) {
	def := SectionDefinition{ID: s.ID, Title: s.Title}
	for _, raw := range s.Fields {
		field, err := raw.descriptor(s.ID)
		if err != nil {
			return SectionDefinition{}, err
		}
		def.Fields = append(def.Fields, field)
	}
	for _, raw := range s.Collections {
		desc := CollectionDescriptor{
			Name:    raw.Name,
			Label:   raw.Label,
			Max:     raw.Max,
			Toggle:  raw.Toggle,
			Initial: raw.Initial,
		}
		for _, rawField := range raw.Fields {
			field, err := rawField.descriptor(s.ID)
			if err != nil {
				return SectionDefinition{}, err
			}
			desc.Fields = append(desc.Fields, field)
		}
		def.Collections = append(def.Collections, desc)
	}
	for i, raw := range s.Rules {
		rule, err := raw.rule(s.ID, i)
		if err != nil {
			return SectionDefinition{}, err
		}
		def.Rules = append(def.Rules, rule)
	}
	for _, raw := range s.Refinements {
		def.Refinements = append(def.Refinements, Refinement{
			Name:    raw.Name,
			Anchor:  raw.Anchor,
			Code:    raw.Code,
			Message: raw.Message,
			Expr:    raw.Expr,
		})
	}
	return def, nil
}

func (f yamlField) descriptor(section string) (FieldDescriptor, error) {
	field := FieldDescriptor{
		Name:            f.Name,
		Label:           f.Label,
		Type:            f.Type,
		Required:        f.Required,
		RequiredMessage: f.RequiredMessage,
		Enum:            f.Enum,
		Default:         f.Default,
	}
	describe := map[string]any{}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return FieldDescriptor{}, definitionError(section, "field %q pattern: %v", f.Name, err)
		}
		field.Checks = append(field.Checks, Pattern(f.Pattern, f.PatternMessage))
		describe["pattern"] = f.Pattern
	}
	if f.MinLength != nil {
		field.Checks = append(field.Checks, MinLength(*f.MinLength, ""))
		describe["minLength"] = *f.MinLength
	}
	if f.MaxLength != nil {
		field.Checks = append(field.Checks, MaxLength(*f.MaxLength, ""))
		describe["maxLength"] = *f.MaxLength
	}
	if f.Min != nil {
		field.Checks = append(field.Checks, Min(*f.Min, f.RangeMessage))
		describe["minimum"] = *f.Min
	}
	if f.Max != nil {
		field.Checks = append(field.Checks, Max(*f.Max, f.RangeMessage))
		describe["maximum"] = *f.Max
	}
	if f.YearRange != nil {
		field.Checks = append(field.Checks, YearRange(f.YearRange.Min, f.YearRange.Ahead, f.YearRange.Message))
		describe["minimum"] = f.YearRange.Min
	}
	if len(f.NotOneOf) > 0 {
		field.Checks = append(field.Checks, NotOneOf(f.NotOneOf, f.NotOneOfMessage))
		describe["not"] = map[string]any{"enum": f.NotOneOf}
	}
	if f.PastDate {
		field.Checks = append(field.Checks, PastDate(""))
	}
	if len(describe) > 0 {
		field.Describe = describe
	}
	return field, nil
}

func (r yamlRule) rule(section string, i int) (Rule, error) {
	if (len(r.Show) == 0) == (len(r.Hide) == 0) {
		return Rule{}, definitionError(section, "rule %d must list targets under exactly one of show or hide", i)
	}
	when, err := r.When.condition(r.Deps)
	if err != nil {
		return Rule{}, definitionError(section, "rule %d: %v", i, err)
	}
	rule := Rule{Name: r.Name, When: when, Effect: Show, Targets: r.Show, Width: r.Width}
	if len(r.Hide) > 0 {
		rule.Effect = Hide
		rule.Targets = r.Hide
	}
	return rule, nil
}

func (c yamlCondition) condition(ruleDeps []string) (Condition, error) {
	set := 0
	for _, present := range []bool{c.Equals != nil, len(c.In) > 0, c.Truthy, c.Expr != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("when must set exactly one of equals, in, truthy or an expression")
	}
	if c.Expr != "" {
		return Expr(c.Expr, append(append([]string{}, c.Deps...), ruleDeps...)...), nil
	}
	if c.Field == "" {
		return nil, errors.New("when needs a field")
	}
	switch {
	case c.Equals != nil:
		return Equals(c.Field, *c.Equals), nil
	case len(c.In) > 0:
		return In(c.Field, c.In...), nil
	default:
		return Truthy(c.Field), nil
	}
}
