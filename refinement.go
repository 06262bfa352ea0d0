package intake

import (
	"time"
)

// Refinement is a section-level rule spanning several fields. A failing
// refinement marks its Anchor invalid. Refinements anchored on an inactive
// field or collection are skipped.
//
// Exactly one of Check or Expr is set. Expr must evaluate to a boolean on
// the section snapshot, true meaning the refinement holds.
type Refinement struct {
	Name    string
	Anchor  string
	Code    string
	Message string
	Check   func(Values) bool
	Expr    string
}

type compiledRefinement struct {
	Refinement
	program *boolProgram
}

func compileRefinement(section string, ref Refinement, known map[string]bool, env compileEnv) (compiledRefinement, error) {
	if ref.Anchor == "" || !known[ref.Anchor] {
		return compiledRefinement{}, definitionError(section, "refinement %q anchors on unknown field %q", ref.Name, ref.Anchor)
	}
	if (ref.Check == nil) == (ref.Expr == "") {
		return compiledRefinement{}, definitionError(section, "refinement %q must set exactly one of Check or Expr", ref.Name)
	}
	if ref.Code == "" {
		ref.Code = CodeAggregateViolation
	}
	if ref.Message == "" {
		ref.Message = "Invalid"
	}
	if ref.Name == "" {
		ref.Name = ref.Anchor
	}
	out := compiledRefinement{Refinement: ref}
	if ref.Expr != "" {
		program, err := compileBool(env, section, ref.Expr)
		if err != nil {
			return compiledRefinement{}, err
		}
		out.program = program
	}
	return out, nil
}

// holds reports whether the refinement passes. Evaluation errors count as a
// failure and are returned for logging.
func (r compiledRefinement) holds(values Values, now time.Time) (bool, error) {
	if r.Check != nil {
		return r.Check(values), nil
	}
	ok, err := r.program.eval(values.Snapshot(), now)
	if err != nil {
		return false, err
	}
	return ok, nil
}
