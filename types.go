package intake

import (
	"sort"
	"time"
)

// RuleContext carries inputs needed when evaluating an expression.
// Snapshot holds the section values as nested maps; collections appear as
// lists of entry maps.
type RuleContext struct {
	Snapshot map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Section  string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

// bindings are the names every engine exposes next to the snapshot keys.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"section":  ctx.Section,
	}
}

// bindingTypes declares the bindings with typed zero values so engines that
// type-check names resolve them ahead of their own builtins.
func bindingTypes() map[string]any {
	return map[string]any{
		"now":      time.Time{},
		"args":     map[string]any{},
		"metadata": map[string]any{},
		"section":  "",
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	variables []string
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// WithVariables declares the snapshot keys an expression may reference.
// Typed engines (CEL) check the expression against them at compile time;
// dynamic engines ignore the list.
func WithVariables(names ...string) CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.variables = append(cfg.variables, names...)
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	sort.Strings(cfg.variables)
	return cfg
}
