package intake

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 1, 12, 0, 0, 0, time.UTC) }
}

func vehicleYearSchema(t *testing.T, year int) *Schema {
	t.Helper()
	schema, err := NewSchema(FieldDescriptor{
		Name:     "year",
		Required: true,
		Checks: []Check{
			Pattern(`^\d{4}$`, "Year must be 4 digits"),
			YearRange(1900, 1, ""),
		},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return schema.withClock(fixedClock(year))
}

func TestVehicleYearChecks(t *testing.T) {
	schema := vehicleYearSchema(t, 2029)

	cases := []struct {
		value any
		valid bool
		code  string
	}{
		{value: "20999", code: CodePattern},
		{value: "2031", code: CodeTooBig},
		{value: "1899", code: CodeTooSmall},
		{value: "2029", valid: true},
		{value: "2030", valid: true},
		{value: "", code: CodeRequired},
		{value: nil, code: CodeRequired},
	}
	for _, tc := range cases {
		got, err := schema.Validate("year", tc.value)
		if err != nil {
			t.Fatalf("Validate(%v): %v", tc.value, err)
		}
		if got.Valid != tc.valid || got.Code != tc.code {
			t.Fatalf("Validate(%v) = %+v, want valid=%v code=%q", tc.value, got, tc.valid, tc.code)
		}
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	schema := vehicleYearSchema(t, 2029)
	for _, value := range []any{"2031", "20999", "2029", nil, 2031.0, "abcd"} {
		first, _ := schema.Validate("year", value)
		for i := 0; i < 20; i++ {
			again, _ := schema.Validate("year", value)
			if again != first {
				t.Fatalf("Validate(%v) changed from %+v to %+v", value, first, again)
			}
		}
	}
}

func TestOptionalAbsentValuesPass(t *testing.T) {
	schema, err := NewSchema(
		FieldDescriptor{Name: "fullName", Checks: []Check{Pattern(`^[a-zA-Z\s]+$`, "")}},
		FieldDescriptor{Name: "dateOfBirth", Type: FieldDate, Checks: []Check{PastDate("")}},
		FieldDescriptor{Name: "age", Type: FieldNumber, Checks: []Check{Min(0, ""), Max(17, "")}},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	for _, name := range schema.Names() {
		for _, absent := range []any{nil, "", "   "} {
			got, err := schema.Validate(name, absent)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !got.Valid {
				t.Fatalf("optional %s with %q should pass, got %+v", name, absent, got)
			}
		}
	}
}

func TestFieldTypes(t *testing.T) {
	schema, err := NewSchema(
		FieldDescriptor{Name: "age", Type: FieldNumber, Checks: []Check{Min(0, ""), Max(17, "")}},
		FieldDescriptor{Name: "dob", Type: FieldDate, Checks: []Check{PastDate("")}},
		FieldDescriptor{Name: "payRent", Type: FieldBoolean},
		FieldDescriptor{Name: "status", Type: FieldEnum, Enum: []string{"single", "married"}},
		FieldDescriptor{Name: "name"},
		FieldDescriptor{Name: "housing", Checks: []Check{NotOneOf([]string{"auto"}, "Auto-detection is not allowed")}},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	schema.withClock(fixedClock(2024))

	cases := []struct {
		field string
		value any
		code  string
	}{
		{"age", 5, ""},
		{"age", "5", ""},
		{"age", 18, CodeTooBig},
		{"age", -1, CodeTooSmall},
		{"age", "five", CodeInvalidType},
		{"dob", "2019-04-02", ""},
		{"dob", time.Date(2019, 4, 2, 0, 0, 0, 0, time.UTC), ""},
		{"dob", "2030-01-01", CodeTooBig},
		{"dob", "04/02/2019", CodeInvalidType},
		{"payRent", true, ""},
		{"payRent", "false", ""},
		{"payRent", "maybe", CodeInvalidType},
		{"status", "married", ""},
		{"status", "widowed", CodeInvalidEnum},
		{"name", 12, CodeInvalidType},
		{"housing", "auto", CodeNotAllowed},
		{"housing", "rent", ""},
	}
	for _, tc := range cases {
		got, err := schema.Validate(tc.field, tc.value)
		if err != nil {
			t.Fatalf("Validate(%s): %v", tc.field, err)
		}
		if got.Code != tc.code || got.Valid != (tc.code == "") {
			t.Fatalf("Validate(%s, %v) = %+v, want code %q", tc.field, tc.value, got, tc.code)
		}
	}
}

func TestRequiredMessage(t *testing.T) {
	schema, err := NewSchema(FieldDescriptor{Name: "make", Required: true, RequiredMessage: "Make is required"})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	got, _ := schema.Validate("make", " ")
	if got.Valid || got.Message != "Make is required" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestSchemaDescribeAndDefaults(t *testing.T) {
	schema, err := NewSchema(
		FieldDescriptor{Name: "maritalStatus", Type: FieldEnum, Enum: []string{"single", "married"}, Default: "single"},
		FieldDescriptor{Name: "tags", Default: []any{"a"}},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	desc, err := schema.DescribeField("maritalStatus")
	if err != nil || desc.Type != FieldEnum {
		t.Fatalf("DescribeField = %+v, %v", desc, err)
	}
	if _, err := schema.DescribeField("missing"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := schema.Validate("missing", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField from Validate, got %v", err)
	}
	if got := schema.DefaultValue("maritalStatus"); got != "single" {
		t.Fatalf("DefaultValue = %v", got)
	}
	tags := schema.DefaultValue("tags").([]any)
	tags[0] = "mutated"
	if again := schema.DefaultValue("tags").([]any); again[0] != "a" {
		t.Fatalf("DefaultValue leaked a shared slice: %v", again)
	}
}

func TestNewSchemaRejectsBadDescriptors(t *testing.T) {
	cases := [][]FieldDescriptor{
		{{Name: ""}},
		{{Name: "a"}, {Name: "a"}},
		{{Name: "a", Type: "money"}},
		{{Name: "a", Type: FieldEnum}},
	}
	for i, fields := range cases {
		if _, err := NewSchema(fields...); !errors.Is(err, ErrInvalidDefinition) {
			t.Fatalf("case %d: expected ErrInvalidDefinition, got %v", i, err)
		}
	}
}
