package intake

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-intake/internal/hydrate"
	"github.com/goliatone/go-intake/pkg/activity"
)

// NavigationPolicy controls whether forward moves require a valid section.
type NavigationPolicy string

const (
	// NavigationFree lets the user move anywhere regardless of validity.
	NavigationFree NavigationPolicy = "free"
	// NavigationRequireValid blocks forward moves out of an invalid section.
	NavigationRequireValid NavigationPolicy = "require_valid"
)

// Migration rewrites a stored subsection payload before it is hydrated.
type Migration func(section string, payload map[string]any) (map[string]any, error)

// Option configures registries and wizards. Each constructor reads the
// settings it needs and ignores the rest.
type Option func(*config)

type config struct {
	evaluator    Evaluator
	engine       string
	programCache ProgramCache
	functions    *FunctionRegistry
	evalLogger   EvaluatorLogger
	logger       *slog.Logger
	clock        func() time.Time
	newID        func() string
	navigation   NavigationPolicy
	hooks        activity.Hooks
	channel      string
	actorID      string
	tenantID     string
	migrations   map[string][]Migration
	schemas      SchemaGenerator
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = noopEvaluatorLogger{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.navigation == "" {
		cfg.navigation = NavigationFree
	}
	if cfg.schemas == nil {
		cfg.schemas = DefaultSchemaGenerator()
	}
	return cfg
}

// resolveEvaluator returns the configured evaluator, building the named
// engine with the builtin functions merged under any custom ones.
func (cfg config) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	return NewEvaluator(cfg.engine, cfg.programCache, BuiltinFunctions().Merge(cfg.functions))
}

func (cfg config) compileEnv(variables []string) (compileEnv, error) {
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return compileEnv{}, err
	}
	return compileEnv{evaluator: evaluator, logger: cfg.evalLogger, variables: variables}, nil
}

func (cfg config) migrationsFor(section string) []hydrate.PreHook {
	migrations := cfg.migrations[section]
	hooks := make([]hydrate.PreHook, 0, len(migrations))
	for _, migrate := range migrations {
		hooks = append(hooks, func(ctx hydrate.Context, payload map[string]any) (map[string]any, error) {
			return migrate(ctx.Section, payload)
		})
	}
	return hooks
}

// WithEvaluator sets the expression evaluator used by Expr conditions and
// refinements. It takes precedence over WithEngine.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithEngine selects an expression engine by name (expr, cel, js).
func WithEngine(name string) Option {
	return func(cfg *config) {
		cfg.engine = strings.ToLower(strings.TrimSpace(name))
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source used for date checks and expression
// bindings.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		cfg.clock = clock
	}
}

// WithIDGenerator overrides collection entry id generation.
func WithIDGenerator(newID func() string) Option {
	return func(cfg *config) {
		cfg.newID = newID
	}
}

func WithNavigationPolicy(policy NavigationPolicy) Option {
	return func(cfg *config) {
		cfg.navigation = policy
	}
}

// WithActivityHooks attaches hooks notified after saves and record changes.
// Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Clone()
	return func(cfg *config) {
		if len(normalized) == 0 {
			cfg.hooks = nil
			return
		}
		cfg.hooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.channel = channel
	}
}

// WithActor identifies who drives the wizard in emitted events.
func WithActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// WithMigration registers a payload rewrite applied when section is
// hydrated from the store. Migrations run in registration order.
func WithMigration(section string, migrate Migration) Option {
	return func(cfg *config) {
		if migrate == nil {
			return
		}
		if cfg.migrations == nil {
			cfg.migrations = map[string][]Migration{}
		}
		cfg.migrations[section] = append(cfg.migrations[section], migrate)
	}
}

// WithSchemaGenerator sets the generator behind Registry.Schema.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *config) {
		cfg.schemas = generator
	}
}
