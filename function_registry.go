package intake

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// BuiltinFunctions returns a registry with the helpers section expressions
// rely on: present(v) reports a non-blank value, entries(v) the length of a
// collection (0 for absent), year(now) the calendar year of a time.
func BuiltinFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("present", unary("present", func(v any) (any, error) {
		return !isAbsent(v), nil
	}))
	_ = registry.Register("entries", unary("entries", func(v any) (any, error) {
		return countOf(v), nil
	}))
	_ = registry.Register("year", unary("year", func(v any) (any, error) {
		ts, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("intake: year expects a time, got %T", v)
		}
		return ts.Year(), nil
	}))
	return registry
}

func unary(name string, fn func(any) (any, error)) Function {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("intake: %s expects 1 argument, got %d", name, len(args))
		}
		return fn(args[0])
	}
}

// Merge copies functions from other that are not already registered.
func (r *FunctionRegistry) Merge(other *FunctionRegistry) *FunctionRegistry {
	if r == nil {
		return other.Clone()
	}
	if other == nil {
		return r
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, fn := range other.functions {
		if _, exists := r.functions[name]; !exists {
			r.functions[name] = fn
		}
	}
	return r
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("intake: function %q is nil", name)
	}
	if name == "" {
		return errors.New("intake: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("intake: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, errors.New("intake: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("intake: function %q not registered", name)
	}
	return fn(args...)
}

// bound returns a function that calls name through the registry.
func (r *FunctionRegistry) bound(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) { return r.Call(name, args...) }
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes registry functions to rule expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for rule expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
