package intake

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError captures evaluator metadata alongside the originating error.
// Section names the section whose rule or refinement raised it.
type EvaluationError struct {
	Engine  string
	Expr    string
	Section string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("intake: %s evaluator %s section=%s: %v", e.Engine, describeExpression(e.Expr), sectionLabel(e.Section), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func sectionLabel(section string) string {
	if section == "" {
		return "unknown"
	}
	return section
}

var errEmptyExpression = errors.New("expression must not be empty")

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "intake:") {
		return err
	}
	return fmt.Errorf("intake: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches metadata, filling only blanks on an existing
// EvaluationError.
func wrapEvaluationError(engine, expr, section string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Section == "" {
			evalErr.Section = section
		}
		return evalErr
	}
	return &EvaluationError{
		Engine:  engine,
		Expr:    expr,
		Section: section,
		Err:     err,
	}
}
