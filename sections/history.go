package sections

import (
	intake "github.com/goliatone/go-intake"
)

// HousingOptions are the accepted answers for the current housing question.
var HousingOptions = []string{
	"Shelter", "Public Housing", "Section 8", "Subsidized", "Market Rate",
	"Friends", "Relatives", "Car", "Motel", "Other",
}

// AutoHousingMessage rejects the "auto" placeholder answer.
const AutoHousingMessage = "Auto-detection is not allowed. Please select your current housing"

var utilities = []string{"electric", "gas", "cable", "phone", "water"}

func housingHistory() intake.SectionDefinition {
	option := required(text("housingOption", "In what type of housing are you currently residing?"), "Please select your current housing")
	option.Checks = []intake.Check{intake.NotOneOf([]string{"auto"}, AutoHousingMessage)}
	option.Describe = map[string]any{"enum": HousingOptions, "not": map[string]any{"enum": []string{"auto"}}}

	fields := []intake.FieldDescriptor{
		option,
		text("residenceDuration", "How long have you lived there?"),
		flag("payRent", "Do you pay rent?"),
		number("howMuchRent", "How much rent do you pay?", 0),
		text("livingBefore", "Where were you living before?"),
		text("howLongLiveBefore", "How long did you live there?"),
		flag("wereYouRenting", "Were you renting?"),
		number("howMuchRentOld", "How much rent did you pay?", 0),
		flag("beenEvicted", "Have you ever been evicted?"),
		text("whyEvicted", "Why were you evicted?"),
		flag("anyUtilities", "Do you pay any utilities?"),
	}
	var utilityFields []string
	for _, name := range utilities {
		fields = append(fields,
			text(name+"Company", name+" company"),
			number(name+"Price", name+" monthly price", 0),
		)
		utilityFields = append(utilityFields, name+"Company", name+"Price")
	}
	fields = append(fields,
		flag("receivedAssistance", "Have you ever received housing assistance?"),
		text("whatAssistance", "What assistance did you receive?"),
		flag("experiencedHomeless", "Have you ever experienced homelessness?"),
		text("whatHomeless", "Please describe"),
	)

	return intake.SectionDefinition{
		ID:     HousingHistory,
		Title:  "Housing History",
		Fields: fields,
		Rules: []intake.Rule{
			intake.ShowWhen(intake.Truthy("payRent"), "howMuchRent"),
			intake.ShowWhen(intake.Truthy("wereYouRenting"), "howMuchRentOld"),
			intake.ShowWhen(intake.Truthy("beenEvicted"), "whyEvicted"),
			intake.ShowWhen(intake.Truthy("anyUtilities"), utilityFields...),
			intake.ShowWhen(intake.Truthy("receivedAssistance"), "whatAssistance"),
			intake.ShowWhen(intake.Truthy("experiencedHomeless"), "whatHomeless"),
		},
	}
}

// EducationLevels are the answers to the completed education question.
var EducationLevels = []string{"lessThanHS", "ged", "hsGrad", "vocTech", "someCollege", "collegeGrad"}

func education() intake.SectionDefinition {
	year := patterned(text("year", "Year"), yearPattern, "Year must be a 4-digit number")
	year.Checks = append(year.Checks, intake.YearRange(1900, 0, ""))

	levels := make([]any, len(EducationLevels))
	for i, level := range EducationLevels {
		levels[i] = level
	}

	return intake.SectionDefinition{
		ID:    Education,
		Title: "Education",
		Fields: []intake.FieldDescriptor{
			choice("level", "What level of education have you completed?", EducationLevels...),
			text("lastGrade", "Last grade completed"),
			year,
			number("credits", "Credits", 0),
			text("courseStudy", "Course study"),
			text("attendanceYears", "Year(s) of attendance"),
			text("degree", "Degree"),
			yesNo("hasLearningDisability", "Have you been diagnosed as having a learning disability?"),
			yesNo("enrolled", "Are you currently enrolled in an educational program?"),
			text("school", "School or program"),
		},
		Rules: []intake.Rule{
			{
				Name:    "level-answered",
				When:    intake.In("level", levels...),
				Effect:  intake.Hide,
				Targets: []string{"year"},
			},
			{
				Name:    "graduation-year",
				When:    intake.In("level", "ged", "hsGrad", "vocTech", "collegeGrad"),
				Effect:  intake.Show,
				Targets: []string{"year"},
			},
			intake.ShowWhen(intake.Equals("level", "lessThanHS"), "lastGrade"),
			intake.ShowWhen(intake.Equals("level", "someCollege"), "credits", "courseStudy", "attendanceYears"),
			intake.ShowWhen(intake.Equals("level", "collegeGrad"), "degree"),
			intake.ShowWhen(intake.Equals("enrolled", "yes"), "school"),
		},
	}
}

// WorkDays are the weekday keys nested under workDays.
var WorkDays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func employment() intake.SectionDefinition {
	fields := []intake.FieldDescriptor{
		yesNo("employed", "Are you currently employed?"),
		text("currentEmployer", "Current employer"),
		text("position", "Position"),
		{Name: "startDate", Label: "Start date of current position", Type: intake.FieldDate, Checks: []intake.Check{intake.PastDate("")}},
		number("monthlyIncome", "Monthly income", 0),
		number("hoursPerWeek", "Hours per week", 0),
	}
	job := []string{"currentEmployer", "position", "startDate", "monthlyIncome", "hoursPerWeek"}
	for _, day := range WorkDays {
		fields = append(fields, flag("workDays."+day, day))
		job = append(job, "workDays."+day)
	}
	fields = append(fields,
		yesNo("contactEmployer", "May we contact your current employer?"),
		text("employerName", "Employer contact name"),
		patterned(text("employerPhone", "Employer phone"), phonePattern, "Phone number looks invalid"),
		text("childCare", "How are your children cared for while you are at work?"),
	)
	job = append(job, "contactEmployer", "childCare")

	return intake.SectionDefinition{
		ID:     Employment,
		Title:  "Employment",
		Fields: fields,
		Rules: []intake.Rule{
			{Name: "employed", When: intake.Equals("employed", "yes"), Effect: intake.Show, Targets: job},
			{Name: "employer-contact", When: intake.Equals("contactEmployer", "yes"), Effect: intake.Show, Targets: []string{"employerName", "employerPhone"}},
		},
	}
}

func lifeGoals() intake.SectionDefinition {
	return intake.SectionDefinition{
		ID:    LifeGoals,
		Title: "Life Goals",
		Fields: []intake.FieldDescriptor{
			text("sixMonths", "Your goals for the next 6 months"),
			text("twoYears", "Your goals for the next 2 years"),
			text("fiveYears", "Your goals for the next 5 years"),
			text("obstacles", "Obstacles or barriers"),
			text("greatestStrength", "Your greatest strength"),
		},
	}
}
