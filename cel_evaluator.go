package intake

import (
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Snapshot keys are
// declared as dyn variables, so a program is compiled per distinct key set.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression, snapshotKeys(ctx.Snapshot))
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Section, err)
	}
	activation := ctx.bindings()
	for key, value := range ctx.Snapshot {
		activation[key] = value
	}
	out, _, err := program.program.Eval(activation)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Section, err)
	}
	return out.Value(), nil
}

// Compile parses expression and, when variables are declared through
// WithVariables, type-checks it against them.
func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, errEmptyExpression)
	}
	cfg := applyCompileOptions(opts)
	if len(cfg.variables) > 0 {
		if _, err := e.loadOrCompile(expression, cfg.variables); err != nil {
			return nil, wrapEvaluationError(EngineCEL, expression, "", err)
		}
	} else {
		env, err := e.buildEnv(nil)
		if err != nil {
			return nil, wrapEvaluatorError(EngineCEL, err)
		}
		if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
			return nil, wrapEvaluationError(EngineCEL, expression, "", issues.Err())
		}
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, variables []string) (*celProgram, error) {
	key := EngineCEL + ":" + strings.Join(variables, ",") + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(variables)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(variables []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("section", celgo.StringType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.DynType},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
		)))
	}
	reserved := map[string]bool{"now": true, "args": true, "metadata": true, "section": true}
	for _, name := range variables {
		if reserved[name] {
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expression)
}

func snapshotKeys(snapshot map[string]any) []string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// callBinding backs call(name, arg). Arguments beyond the name arrive as a
// single dyn value; lists are spread into positional arguments.
func (e *celEvaluator) callBinding() functions.FunctionOp {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("intake: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("intake: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, nativeValue(val))
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

// nativeValue converts CEL lists and maps back to plain Go shapes.
func nativeValue(val ref.Val) any {
	switch typed := val.Value().(type) {
	case []ref.Val:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = nativeValue(item)
		}
		return out
	default:
		return typed
	}
}
