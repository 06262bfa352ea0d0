package sections

import (
	intake "github.com/goliatone/go-intake"
)

const (
	namePattern  = `^[a-zA-Z\s]+$`
	ssnPattern   = `^[0-9\-]{4,11}$`
	phonePattern = `^\+?[\d\s\-()]{7,20}$`
	yearPattern  = `^\d{4}$`
)

// NoVehiclesMessage is reported on the vehicles collection when the
// applicant owns vehicles but listed none.
const NoVehiclesMessage = "Please add at least one vehicle or select 'No vehicles'"

var genders = []string{"male", "female", "other"}

func demographics() intake.SectionDefinition {
	partner := []string{"partner.name", "partner.dateOfBirth", "partner.race", "partner.ssn", "partner.gender"}
	return intake.SectionDefinition{
		ID:    Demographics,
		Title: "Demographics",
		Fields: []intake.FieldDescriptor{
			patterned(text("fullName", "Full name"), namePattern, "Name can only contain letters and spaces"),
			{Name: "dateOfBirth", Label: "Date of birth", Type: intake.FieldDate, Checks: []intake.Check{intake.PastDate("")}},
			choice("gender", "Gender", genders...),
			text("race", "Race / Ethnicity"),
			patterned(text("ssn", "SSN"), ssnPattern, "SSN format looks invalid"),
			text("address", "Address"),
			patterned(text("phone", "Phone"), phonePattern, "Phone number looks invalid"),
			{
				Name:    "maritalStatus",
				Label:   "Marital status",
				Type:    intake.FieldEnum,
				Enum:    []string{"single", "married", "not_married", "divorced_separated"},
				Default: "single",
			},
			text("partner.name", "Partner full name"),
			{Name: "partner.dateOfBirth", Label: "Partner date of birth", Type: intake.FieldDate},
			text("partner.race", "Partner race / ethnicity"),
			text("partner.ssn", "Partner SSN"),
			choice("partner.gender", "Partner gender", genders...),
			text("emergencyContact.name", "Emergency contact name"),
			text("emergencyContact.relationship", "Relationship"),
			patterned(text("emergencyContact.phone", "Emergency contact phone"), phonePattern, "Phone number looks invalid"),
		},
		Rules: []intake.Rule{{
			Name:    "partner-details",
			When:    intake.In("maritalStatus", "married", "not_married"),
			Effect:  intake.Show,
			Targets: partner,
		}},
	}
}

func vehicles() intake.SectionDefinition {
	year := required(text("year", "Year"), "Year must be a 4-digit number")
	year = patterned(year, yearPattern, "Year must be a 4-digit number")
	year.Checks = append(year.Checks, intake.YearRange(1900, 1, "Year must be between 1900 and next year"))
	year.Describe["minimum"] = 1900

	return intake.SectionDefinition{
		ID:    Vehicles,
		Title: "Vehicles",
		Fields: []intake.FieldDescriptor{
			{Name: "hasVehicles", Label: "Do you own any vehicles?", Type: intake.FieldBoolean, Default: true},
		},
		Collections: []intake.CollectionDescriptor{{
			Name:    "vehicles",
			Label:   "Vehicle",
			Max:     5,
			Toggle:  "hasVehicles",
			Initial: 1,
			Fields: []intake.FieldDescriptor{
				required(text("make", "Make"), "Vehicle make is required"),
				required(text("model", "Model"), "Vehicle model is required"),
				year,
			},
		}},
		Rules: []intake.Rule{intake.ShowWhen(intake.Truthy("hasVehicles"), "vehicles")},
		Refinements: []intake.Refinement{{
			Name:    "vehicles-listed",
			Anchor:  "vehicles",
			Message: NoVehiclesMessage,
			Check: func(v intake.Values) bool {
				return v.Count("vehicles") > 0
			},
		}},
	}
}

func children() intake.SectionDefinition {
	age := required(number("age", "Age", 0), "")
	age.Checks = append(age.Checks, intake.Max(17, "Children must be under 18"))
	age.Describe["maximum"] = 17

	return intake.SectionDefinition{
		ID:    Children,
		Title: "Children",
		Collections: []intake.CollectionDescriptor{{
			Name:  "children",
			Label: "Child",
			Max:   5,
			Fields: []intake.FieldDescriptor{
				required(text("name", "Name"), ""),
				age,
				{
					Name:     "dateOfBirth",
					Label:    "Date of birth",
					Type:     intake.FieldDate,
					Required: true,
					Checks:   []intake.Check{intake.PastDate("")},
				},
			},
		}},
	}
}
