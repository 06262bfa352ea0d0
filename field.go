package intake

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-intake/layering"
)

// FieldType is the semantic type of a field value.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
	FieldEnum    FieldType = "enum"
)

func (t FieldType) valid() bool {
	switch t {
	case FieldString, FieldNumber, FieldDate, FieldBoolean, FieldEnum:
		return true
	}
	return false
}

// DateLayout is the calendar date format accepted for date fields, in
// addition to RFC 3339 timestamps and time.Time values.
const DateLayout = "2006-01-02"

// CheckContext is passed to every field check.
type CheckContext struct {
	Now   time.Time
	Field string
}

// Check is a predicate over one present field value. It returns nil when the
// value passes. Checks never see absent values.
type Check func(ctx CheckContext, value any) *Issue

// FieldDescriptor declares one field. Names may contain dots to nest the
// value in the saved payload ("partner.name" is saved as
// {"partner": {"name": ...}}).
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Enum     []string  `json:"enum,omitempty"`
	Default  any       `json:"default,omitempty"`
	// RequiredMessage replaces the generic "Required" message.
	RequiredMessage string  `json:"requiredMessage,omitempty"`
	Checks          []Check `json:"-"`
	// Describe carries constraint metadata for schema generation (pattern,
	// minimum, maximum). It does not affect validation.
	Describe map[string]any `json:"describe,omitempty"`
}

// FieldResult is the validity of one field.
type FieldResult struct {
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func validResult() FieldResult { return FieldResult{Valid: true} }

func issueResult(issue *Issue) FieldResult {
	return FieldResult{Valid: false, Code: issue.Code, Message: issue.Message}
}

// Schema is an immutable ordered set of field descriptors.
type Schema struct {
	fields []FieldDescriptor
	index  map[string]int
	clock  func() time.Time
}

// NewSchema validates descriptors and builds a schema. Names must be unique
// and enum fields must list their values.
func NewSchema(fields ...FieldDescriptor) (*Schema, error) {
	schema := &Schema{
		fields: make([]FieldDescriptor, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
		clock:  time.Now,
	}
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: field name must not be empty", ErrInvalidDefinition)
		}
		if _, dup := schema.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidDefinition, name)
		}
		if field.Type == "" {
			field.Type = FieldString
		}
		if !field.Type.valid() {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, name, field.Type)
		}
		if field.Type == FieldEnum && len(field.Enum) == 0 {
			return nil, fmt.Errorf("%w: enum field %q lists no values", ErrInvalidDefinition, name)
		}
		field.Name = name
		field.Enum = slices.Clone(field.Enum)
		field.Checks = slices.Clone(field.Checks)
		field.Default = layering.Clone(field.Default)
		schema.index[name] = len(schema.fields)
		schema.fields = append(schema.fields, field)
	}
	return schema, nil
}

func (s *Schema) withClock(clock func() time.Time) *Schema {
	if s != nil && clock != nil {
		s.clock = clock
	}
	return s
}

// Fields returns the descriptors in declaration order.
func (s *Schema) Fields() []FieldDescriptor {
	if s == nil {
		return nil
	}
	return slices.Clone(s.fields)
}

// Names returns field names in declaration order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.fields))
	for i, field := range s.fields {
		names[i] = field.Name
	}
	return names
}

func (s *Schema) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

func (s *Schema) DescribeField(name string) (FieldDescriptor, error) {
	if s != nil {
		if i, ok := s.index[name]; ok {
			return s.fields[i], nil
		}
	}
	return FieldDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// DefaultValue returns a detached copy of the field default, or nil.
func (s *Schema) DefaultValue(name string) any {
	field, err := s.DescribeField(name)
	if err != nil {
		return nil
	}
	return layering.Clone(field.Default)
}

// Defaults returns every field default keyed by name.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, field := range s.fields {
		out[field.Name] = layering.Clone(field.Default)
	}
	return out
}

// Validate checks one field value. Absent values (nil, blank strings) pass
// for optional fields and fail with CodeRequired for required ones. The
// result depends only on the value and the schema clock.
func (s *Schema) Validate(name string, value any) (FieldResult, error) {
	field, err := s.DescribeField(name)
	if err != nil {
		return FieldResult{}, err
	}
	if issue := s.check(field, value); issue != nil {
		return issueResult(issue), nil
	}
	return validResult(), nil
}

func (s *Schema) check(field FieldDescriptor, value any) *Issue {
	if isAbsent(value) {
		if !field.Required {
			return nil
		}
		msg := field.RequiredMessage
		if msg == "" {
			msg = "Required"
		}
		return &Issue{Path: field.Name, Code: CodeRequired, Message: msg}
	}
	if issue := checkType(field, value); issue != nil {
		issue.Path = field.Name
		return issue
	}
	ctx := CheckContext{Now: s.clock(), Field: field.Name}
	for _, check := range field.Checks {
		if check == nil {
			continue
		}
		if issue := check(ctx, value); issue != nil {
			issue.Path = field.Name
			return issue
		}
	}
	return nil
}

func checkType(field FieldDescriptor, value any) *Issue {
	switch field.Type {
	case FieldString:
		if _, ok := value.(string); !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected text"}
		}
	case FieldNumber:
		if _, ok := toFloat(value); !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected a number"}
		}
	case FieldDate:
		if _, ok := toDate(value); !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected a date"}
		}
	case FieldBoolean:
		if _, ok := toBool(value); !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected true or false"}
		}
	case FieldEnum:
		str, ok := value.(string)
		if !ok || !slices.Contains(field.Enum, str) {
			return &Issue{
				Code:    CodeInvalidEnum,
				Message: fmt.Sprintf("Expected one of: %s", strings.Join(field.Enum, ", ")),
			}
		}
	}
	return nil
}

// isAbsent reports nil, blank strings and nil pointers/maps/slices.
func isAbsent(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	}
	return 0, false
}

func toDate(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case string:
		trimmed := strings.TrimSpace(typed)
		if ts, err := time.Parse(DateLayout, trimmed); err == nil {
			return ts, true
		}
		if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func toBool(value any) (bool, bool) {
	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(typed))
		return b, err == nil
	}
	return false, false
}

func countOf(value any) int {
	switch typed := value.(type) {
	case nil:
		return 0
	case []any:
		return len(typed)
	case []map[string]any:
		return len(typed)
	case string:
		return len(typed)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}
