package intake

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"
)

// Trigger widths. A narrower rule (smaller width) wins when rules for the
// same field disagree.
const (
	WidthTruthy = 1 << 16
	WidthExpr   = 1 << 20
)

// Condition is a predicate over section values.
type Condition interface {
	// Deps lists the field or collection names the condition reads.
	Deps() []string
	// Width is the number of trigger values the condition matches.
	Width() int
	Match(values Values, now time.Time) (bool, error)
	String() string
}

type conditionCompiler interface {
	compile(env compileEnv, section string) error
}

// Equals matches when field equals value. Numbers compare by value and a
// string compares equal to a number or boolean with the same text.
func Equals(field string, value any) Condition {
	return inCondition{field: field, values: []any{value}}
}

// In matches when field equals any of values.
func In(field string, values ...any) Condition {
	return inCondition{field: field, values: slices.Clone(values)}
}

type inCondition struct {
	field  string
	values []any
}

func (c inCondition) Deps() []string { return []string{c.field} }
func (c inCondition) Width() int     { return max(len(c.values), 1) }

func (c inCondition) Match(values Values, _ time.Time) (bool, error) {
	current := values.Get(c.field)
	for _, candidate := range c.values {
		if looseEqual(current, candidate) {
			return true, nil
		}
	}
	return false, nil
}

func (c inCondition) String() string {
	if len(c.values) == 1 {
		return fmt.Sprintf("%s == %v", c.field, c.values[0])
	}
	return fmt.Sprintf("%s in %v", c.field, c.values)
}

// Truthy matches booleans that are true, non-zero numbers, and strings other
// than "", "false", "no", "off" and "0".
func Truthy(field string) Condition {
	return truthyCondition{field: field}
}

type truthyCondition struct{ field string }

func (c truthyCondition) Deps() []string { return []string{c.field} }
func (c truthyCondition) Width() int     { return WidthTruthy }
func (c truthyCondition) String() string { return c.field }

func (c truthyCondition) Match(values Values, _ time.Time) (bool, error) {
	return truthy(values.Get(c.field)), nil
}

// Expr matches when expression evaluates to true on the section snapshot.
// deps must name every field the expression reads so nested gating and
// cycle detection see the dependency.
func Expr(expression string, deps ...string) Condition {
	return &exprCondition{expression: expression, deps: slices.Clone(deps)}
}

type exprCondition struct {
	expression string
	deps       []string
	program    *boolProgram
}

func (c *exprCondition) Deps() []string { return c.deps }
func (c *exprCondition) Width() int     { return WidthExpr }
func (c *exprCondition) String() string { return c.expression }

func (c *exprCondition) compile(env compileEnv, section string) error {
	program, err := compileBool(env, section, c.expression)
	if err != nil {
		return err
	}
	c.program = program
	return nil
}

func (c *exprCondition) Match(values Values, now time.Time) (bool, error) {
	if c.program == nil {
		return false, fmt.Errorf("intake: condition %q was not compiled", c.expression)
	}
	return c.program.eval(values.Snapshot(), now)
}

func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "", "false", "no", "off", "0":
			return false
		}
		return true
	}
	if f, ok := toFloat(value); ok {
		return f != 0
	}
	return !isAbsent(value)
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := toBool(b); ok {
			return ab == bb
		}
	}
	if bb, ok := b.(bool); ok {
		if ab, ok := toBool(a); ok {
			return ab == bb
		}
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() && a == b {
		return true
	}
	return stringValue(a) == stringValue(b)
}

// Effect is what a matching rule does to its targets.
type Effect string

const (
	Show Effect = "show"
	Hide Effect = "hide"
)

// Rule controls the visibility of its targets. A field governed by at least
// one Show rule is inactive unless a Show rule applies; a field governed only
// by Hide rules is active unless one applies. A rule applies when every
// dependency is active and its condition matches.
type Rule struct {
	Name    string
	When    Condition
	Effect  Effect
	Targets []string
	// Width overrides When.Width() when positive.
	Width int
}

func ShowWhen(when Condition, targets ...string) Rule {
	return Rule{When: when, Effect: Show, Targets: targets}
}

func HideWhen(when Condition, targets ...string) Rule {
	return Rule{When: when, Effect: Hide, Targets: targets}
}

func (r Rule) width() int {
	if r.Width > 0 {
		return r.Width
	}
	return r.When.Width()
}

// FieldSet is a set of active field and collection names.
type FieldSet map[string]struct{}

func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s FieldSet) add(name string) { s[name] = struct{}{} }

// Sorted returns the names in lexical order.
func (s FieldSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conflict reports a field governed by both Show and Hide rules. It is
// resolved at evaluation time by width, then by declaration order.
type Conflict struct {
	Target string   `json:"target"`
	Rules  []string `json:"rules"`
}

// RuleSet evaluates conditional visibility for one section.
type RuleSet struct {
	section  string
	names    []string
	rules    []Rule
	byTarget map[string][]int
	order    []string
}

// NewRuleSet validates rules against names (the section's fields and
// collections) and orders governed targets so dependencies are decided
// first. Expression conditions compile with the evaluator from opts.
func NewRuleSet(rules []Rule, names []string, opts ...Option) (*RuleSet, error) {
	cfg := applyOptions(opts)
	env, err := cfg.compileEnv(nil)
	if err != nil {
		return nil, err
	}
	return newRuleSet("", rules, names, env)
}

func newRuleSet(section string, rules []Rule, names []string, env compileEnv) (*RuleSet, error) {
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}
	rs := &RuleSet{
		section:  section,
		names:    slices.Clone(names),
		rules:    make([]Rule, 0, len(rules)),
		byTarget: map[string][]int{},
	}
	var targets []string
	for i, rule := range rules {
		if rule.When == nil {
			return nil, definitionError(section, "rule %d has no condition", i)
		}
		if rule.Effect == "" {
			rule.Effect = Show
		}
		if rule.Effect != Show && rule.Effect != Hide {
			return nil, definitionError(section, "rule %d has unknown effect %q", i, rule.Effect)
		}
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule#%d(%s)", i, rule.When)
		}
		if len(rule.Targets) == 0 {
			return nil, definitionError(section, "rule %q has no targets", rule.Name)
		}
		for _, dep := range rule.When.Deps() {
			if !known[dep] {
				return nil, definitionError(section, "rule %q depends on unknown field %q", rule.Name, dep)
			}
		}
		if compiler, ok := rule.When.(conditionCompiler); ok {
			if err := compiler.compile(env, section); err != nil {
				return nil, err
			}
		}
		idx := len(rs.rules)
		rs.rules = append(rs.rules, rule)
		for _, target := range rule.Targets {
			if !known[target] {
				return nil, definitionError(section, "rule %q targets unknown field %q", rule.Name, target)
			}
			if _, seen := rs.byTarget[target]; !seen {
				targets = append(targets, target)
			}
			rs.byTarget[target] = append(rs.byTarget[target], idx)
		}
	}
	order, err := rs.topoOrder(targets)
	if err != nil {
		return nil, err
	}
	rs.order = order
	return rs, nil
}

func (rs *RuleSet) topoOrder(targets []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(targets))
	order := make([]string, 0, len(targets))
	var visit func(target string, path []string) error
	visit = func(target string, path []string) error {
		switch state[target] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: section %q: %s", ErrRuleCycle, rs.section, strings.Join(append(path, target), " -> "))
		}
		state[target] = visiting
		path = append(slices.Clone(path), target)
		for _, idx := range rs.byTarget[target] {
			for _, dep := range rs.rules[idx].When.Deps() {
				if _, governed := rs.byTarget[dep]; governed {
					if err := visit(dep, path); err != nil {
						return err
					}
				}
			}
		}
		state[target] = done
		order = append(order, target)
		return nil
	}
	for _, target := range targets {
		if err := visit(target, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ActiveFields returns the names that are currently active. Evaluation
// errors leave the failing rule unapplied and are returned joined alongside
// the computed set.
func (rs *RuleSet) ActiveFields(values Values, now time.Time) (FieldSet, error) {
	active := make(FieldSet, len(rs.names))
	for _, name := range rs.names {
		if _, governed := rs.byTarget[name]; !governed {
			active.add(name)
		}
	}
	var errs []error
	for _, target := range rs.order {
		on, err := rs.decide(target, active, values, now)
		if err != nil {
			errs = append(errs, err)
		}
		if on {
			active.add(target)
		}
	}
	return active, errors.Join(errs...)
}

func (rs *RuleSet) decide(target string, active FieldSet, values Values, now time.Time) (bool, error) {
	winner := -1
	hasShow := false
	var errs []error
	for _, idx := range rs.byTarget[target] {
		rule := rs.rules[idx]
		if rule.Effect == Show {
			hasShow = true
		}
		if !allActive(rule.When.Deps(), active) {
			continue
		}
		matched, err := rule.When.Match(values, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !matched {
			continue
		}
		if winner == -1 || rule.width() < rs.rules[winner].width() {
			winner = idx
		}
	}
	if winner == -1 {
		return !hasShow, errors.Join(errs...)
	}
	return rs.rules[winner].Effect == Show, errors.Join(errs...)
}

func allActive(deps []string, active FieldSet) bool {
	for _, dep := range deps {
		if !active.Has(dep) {
			return false
		}
	}
	return true
}

// Governed reports whether any rule targets name.
func (rs *RuleSet) Governed(name string) bool {
	_, ok := rs.byTarget[name]
	return ok
}

// Conflicts lists targets governed by both Show and Hide rules.
func (rs *RuleSet) Conflicts() []Conflict {
	var conflicts []Conflict
	for _, target := range rs.order {
		var show, hide bool
		var names []string
		for _, idx := range rs.byTarget[target] {
			rule := rs.rules[idx]
			names = append(names, rule.Name)
			show = show || rule.Effect == Show
			hide = hide || rule.Effect == Hide
		}
		if show && hide {
			conflicts = append(conflicts, Conflict{Target: target, Rules: names})
		}
	}
	return conflicts
}

// Dependencies returns, for each governed target, the names its rules read.
func (rs *RuleSet) Dependencies() map[string][]string {
	out := make(map[string][]string, len(rs.byTarget))
	for target, idxs := range rs.byTarget {
		seen := map[string]bool{}
		for _, idx := range idxs {
			for _, dep := range rs.rules[idx].When.Deps() {
				if !seen[dep] {
					seen[dep] = true
					out[target] = append(out[target], dep)
				}
			}
		}
	}
	return out
}
