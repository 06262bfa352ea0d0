package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Expression engines selectable by name.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	ErrUnknownEngine     = errors.New("intake: unknown expression engine")
	ErrEngineUnavailable = errors.New("intake: expression engine not compiled in")
)

// NewEvaluator builds the named engine wired with cache and registry. Either
// may be nil.
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: build with -tags js_eval", ErrEngineUnavailable)
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	default:
		if fmt.Sprintf("%T", e) == "*intake.jsEvaluator" {
			return EngineJS
		}
		return "custom"
	}
}

// boolProgram is a compiled expression that must yield a boolean. It reports
// every run to the evaluator logger.
type boolProgram struct {
	engine  string
	expr    string
	section string
	rule    CompiledRule
	logger  EvaluatorLogger
}

func compileBool(env compileEnv, section, expr string) (*boolProgram, error) {
	rule, err := env.evaluator.Compile(expr, WithVariables(env.variables...))
	if err != nil {
		return nil, wrapEvaluationError(evaluatorEngineName(env.evaluator), expr, section, err)
	}
	return &boolProgram{
		engine:  evaluatorEngineName(env.evaluator),
		expr:    expr,
		section: section,
		rule:    rule,
		logger:  env.logger,
	}, nil
}

func (p *boolProgram) eval(snapshot map[string]any, now time.Time) (bool, error) {
	start := time.Now()
	value, err := p.rule.Evaluate(RuleContext{Snapshot: snapshot, Now: &now, Section: p.section})
	var result bool
	if err == nil {
		var ok bool
		if result, ok = value.(bool); !ok {
			err = fmt.Errorf("expression returned %T, want bool", value)
		}
	}
	err = wrapEvaluationError(p.engine, p.expr, p.section, err)
	p.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   p.engine,
		Expr:     p.expr,
		Section:  p.section,
		Duration: time.Since(start),
		Err:      err,
	})
	return result, err
}

// compileEnv is what section compilation needs to turn expressions into
// programs.
type compileEnv struct {
	evaluator Evaluator
	logger    EvaluatorLogger
	variables []string
}
