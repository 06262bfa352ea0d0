package intake

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func housingNames() []string {
	return []string{"payRent", "howMuchRent", "beenEvicted", "whyEvicted", "maritalStatus", "partner.name"}
}

func TestShowRuleGatesTargets(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		ShowWhen(Truthy("payRent"), "howMuchRent"),
		ShowWhen(Truthy("beenEvicted"), "whyEvicted"),
		ShowWhen(In("maritalStatus", "married", "not_married"), "partner.name"),
	}, housingNames())
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	cases := []struct {
		values map[string]any
		active []string
		off    []string
	}{
		{
			values: map[string]any{"payRent": false, "maritalStatus": "single"},
			active: []string{"payRent", "beenEvicted", "maritalStatus"},
			off:    []string{"howMuchRent", "whyEvicted", "partner.name"},
		},
		{
			values: map[string]any{"payRent": true, "beenEvicted": "true", "maritalStatus": "not_married"},
			active: []string{"howMuchRent", "whyEvicted", "partner.name"},
		},
	}
	for i, tc := range cases {
		active, err := rs.ActiveFields(NewValues(tc.values, nil), epoch)
		if err != nil {
			t.Fatalf("case %d: ActiveFields: %v", i, err)
		}
		for _, name := range tc.active {
			if !active.Has(name) {
				t.Fatalf("case %d: expected %s active, got %v", i, name, active.Sorted())
			}
		}
		for _, name := range tc.off {
			if active.Has(name) {
				t.Fatalf("case %d: expected %s inactive, got %v", i, name, active.Sorted())
			}
		}
	}
}

func TestNestedGatingRequiresActiveDependency(t *testing.T) {
	names := []string{"employed", "contactEmployer", "employerName"}
	rs, err := NewRuleSet([]Rule{
		ShowWhen(Equals("employed", "yes"), "contactEmployer"),
		ShowWhen(Equals("contactEmployer", "yes"), "employerName"),
	}, names)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	values := NewValues(map[string]any{"employed": "no", "contactEmployer": "yes"}, nil)
	active, err := rs.ActiveFields(values, epoch)
	if err != nil {
		t.Fatalf("ActiveFields: %v", err)
	}
	if active.Has("contactEmployer") || active.Has("employerName") {
		t.Fatalf("retained answers under an inactive parent must stay inactive, got %v", active.Sorted())
	}

	values = NewValues(map[string]any{"employed": "yes", "contactEmployer": "yes"}, nil)
	active, _ = rs.ActiveFields(values, epoch)
	if !active.Has("employerName") {
		t.Fatalf("expected employerName active, got %v", active.Sorted())
	}
}

func TestNarrowerTriggerWins(t *testing.T) {
	names := []string{"level", "year"}
	rs, err := NewRuleSet([]Rule{
		{Name: "hide-for-non-graduates", When: In("level", "lessThanHS", "someCollege", "ged", "hsGrad"), Effect: Hide, Targets: []string{"year"}},
		{Name: "show-for-ged", When: Equals("level", "ged"), Effect: Show, Targets: []string{"year"}},
	}, names)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	conflicts := rs.Conflicts()
	if len(conflicts) != 1 || conflicts[0].Target != "year" {
		t.Fatalf("expected one documented conflict on year, got %+v", conflicts)
	}

	check := func(level string, want bool) {
		t.Helper()
		active, err := rs.ActiveFields(NewValues(map[string]any{"level": level}, nil), epoch)
		if err != nil {
			t.Fatalf("ActiveFields: %v", err)
		}
		if active.Has("year") != want {
			t.Fatalf("level %s: year active = %v, want %v", level, active.Has("year"), want)
		}
	}
	check("ged", true)
	check("hsGrad", false)
	// Governed by a Show rule that does not apply.
	check("collegeGrad", false)
}

func TestEqualWidthTieGoesToFirstRule(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		HideWhen(Equals("flag", true), "target"),
		ShowWhen(Equals("flag", true), "target"),
	}, []string{"flag", "target"})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	active, _ := rs.ActiveFields(NewValues(map[string]any{"flag": true}, nil), epoch)
	if active.Has("target") {
		t.Fatalf("first declared rule should win a tie")
	}
}

func TestHideOnlyTargetsDefaultActive(t *testing.T) {
	rs, err := NewRuleSet([]Rule{HideWhen(Truthy("anonymous"), "fullName")}, []string{"anonymous", "fullName"})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	active, _ := rs.ActiveFields(NewValues(map[string]any{}, nil), epoch)
	if !active.Has("fullName") {
		t.Fatalf("hide-only target should be active by default")
	}
	active, _ = rs.ActiveFields(NewValues(map[string]any{"anonymous": true}, nil), epoch)
	if active.Has("fullName") {
		t.Fatalf("hide rule should deactivate fullName")
	}
}

func TestRuleSetRejectsInvalidRules(t *testing.T) {
	names := []string{"a", "b"}
	cases := []struct {
		rules []Rule
		want  error
	}{
		{rules: []Rule{ShowWhen(Truthy("missing"), "a")}, want: ErrInvalidDefinition},
		{rules: []Rule{ShowWhen(Truthy("a"), "missing")}, want: ErrInvalidDefinition},
		{rules: []Rule{{When: Truthy("a")}}, want: ErrInvalidDefinition},
		{rules: []Rule{{Targets: []string{"a"}}}, want: ErrInvalidDefinition},
		{rules: []Rule{{When: Truthy("a"), Effect: "toggle", Targets: []string{"b"}}}, want: ErrInvalidDefinition},
		{rules: []Rule{ShowWhen(Truthy("a"), "b"), ShowWhen(Truthy("b"), "a")}, want: ErrRuleCycle},
	}
	for i, tc := range cases {
		if _, err := NewRuleSet(tc.rules, names); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestExpressionConditions(t *testing.T) {
	for _, engine := range []string{EngineExpr, EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			rs, err := NewRuleSet([]Rule{
				ShowWhen(Expr(`hoursPerWeek > 20.0 && employed == "yes"`, "hoursPerWeek", "employed"), "childCare"),
			}, []string{"employed", "hoursPerWeek", "childCare"}, WithEngine(engine))
			if err != nil {
				t.Fatalf("NewRuleSet: %v", err)
			}
			active, err := rs.ActiveFields(NewValues(map[string]any{"employed": "yes", "hoursPerWeek": 30.0}, nil), epoch)
			if err != nil {
				t.Fatalf("ActiveFields: %v", err)
			}
			if !active.Has("childCare") {
				t.Fatalf("expected childCare active, got %v", active.Sorted())
			}
			active, _ = rs.ActiveFields(NewValues(map[string]any{"employed": "yes", "hoursPerWeek": 10.0}, nil), epoch)
			if active.Has("childCare") {
				t.Fatalf("expected childCare inactive")
			}
		})
	}
}

func TestExpressionErrorsLeaveRuleUnapplied(t *testing.T) {
	var logged []EvaluatorLogEvent
	rs, err := NewRuleSet([]Rule{
		ShowWhen(Expr(`hoursPerWeek > 20`, "hoursPerWeek"), "childCare"),
	}, []string{"hoursPerWeek", "childCare"}, WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		logged = append(logged, event)
	})))
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	active, err := rs.ActiveFields(NewValues(map[string]any{"hoursPerWeek": "many"}, nil), epoch)
	if err == nil {
		t.Fatalf("expected an evaluation error")
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != EngineExpr {
		t.Fatalf("expected EvaluationError from expr, got %v", err)
	}
	if active.Has("childCare") {
		t.Fatalf("failing show rule must not activate its target")
	}
	if len(logged) != 1 || logged[0].Err == nil {
		t.Fatalf("expected one logged failed evaluation, got %+v", logged)
	}
}

func TestExprConditionUsesBuiltinFunctions(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		ShowWhen(Expr(`entries(children) >= 2`, "children"), "siblingCare"),
	}, []string{"children", "siblingCare"})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	values := NewValues(nil, map[string][]map[string]any{"children": {{"name": "Sam"}, {"name": "Ada"}}})
	active, err := rs.ActiveFields(values, epoch)
	if err != nil {
		t.Fatalf("ActiveFields: %v", err)
	}
	if !active.Has("siblingCare") {
		t.Fatalf("expected siblingCare active")
	}
}

func TestDependenciesListRuleInputs(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		ShowWhen(Truthy("payRent"), "howMuchRent"),
		HideWhen(Equals("beenEvicted", false), "howMuchRent"),
	}, housingNames())
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	deps := rs.Dependencies()["howMuchRent"]
	if len(deps) != 2 || deps[0] != "payRent" || deps[1] != "beenEvicted" {
		t.Fatalf("unexpected dependencies %v", deps)
	}
	if !rs.Governed("howMuchRent") || rs.Governed("payRent") {
		t.Fatalf("unexpected governed set")
	}
}
