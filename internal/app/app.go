// Package app wires configuration into a running intake: record store,
// section registry, wizard and metrics.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	intake "github.com/goliatone/go-intake"
	"github.com/goliatone/go-intake/internal/config"
	"github.com/goliatone/go-intake/pkg/activity"
	"github.com/goliatone/go-intake/pkg/state"
	"github.com/goliatone/go-intake/schema/openapi"
	"github.com/goliatone/go-intake/sections"
)

// App holds the wired components of one intake process.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    state.Store
	Registry *intake.Registry
	Wizard   *intake.Wizard
	// Metrics is nil when metrics are disabled.
	Metrics *prometheus.Registry

	closers []func() error
}

// New builds the store, registry and wizard described by cfg. The returned
// App must be closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	var storeMetrics *state.Metrics
	if cfg.Metrics.Enabled {
		a.Metrics = prometheus.NewRegistry()
		a.Metrics.MustRegister(collectors.NewGoCollector())
		storeMetrics = state.NewMetrics(prometheus.WrapRegistererWithPrefix(metricsPrefix(cfg.Metrics.Namespace), a.Metrics))
	}

	store, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	a.Store = state.Instrument(store, cfg.Store.Backend, storeMetrics)

	registry, err := BuildRegistry(cfg.Wizard, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Registry = registry

	wizard, err := intake.NewWizard(ctx, registry, a.Store,
		intake.WithLogger(logger),
		intake.WithNavigationPolicy(intake.NavigationPolicy(cfg.Wizard.Navigation)),
		intake.WithActivityHooks(activity.Hooks{LogHook(logger)}),
	)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: start wizard: %w", err)
	}
	a.Wizard = wizard

	logger.Info("intake ready",
		slog.String("store", cfg.Store.Backend),
		slog.String("engine", registry.Engine()),
		slog.String("navigation", cfg.Wizard.Navigation),
		slog.Int("sections", registry.Len()),
	)
	return a, nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func metricsPrefix(namespace string) string {
	if namespace == "" || namespace == "intake" {
		return ""
	}
	return namespace + "_"
}

// OpenStore connects the configured backend. The returned func closes it.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (state.Store, func() error, error) {
	noop := func() error { return nil }
	opts := []state.Option{state.WithSubsections(cfg.Subsections...)}

	switch cfg.Backend {
	case config.BackendMemory:
		return state.NewMemoryStore(opts...), noop, nil
	case config.BackendFile:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("app: create store directory: %w", err)
		}
		return state.NewFileStore(cfg.Path, opts...), noop, nil
	case config.BackendRedis:
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("app: parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("app: ping redis: %w", err)
		}
		opts = append(opts, state.WithKey(cfg.RedisKey))
		return state.NewRedisStore(client, opts...), client.Close, nil
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("app: open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("app: ping postgres: %w", err)
		}
		store := state.NewPostgresStore(db, cfg.Table, opts...)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("app: ensure schema: %w", err)
		}
		return store, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: store backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// BuildRegistry compiles the built-in sections, or the YAML registry named
// by cfg.Sections, with the configured rule engine. Collections are capped
// at cfg.MaxEntries.
func BuildRegistry(cfg config.WizardConfig, logger *slog.Logger) (*intake.Registry, error) {
	opts := []intake.Option{
		intake.WithEngine(cfg.RuleEngine),
		intake.WithLogger(logger),
		intake.WithEvaluatorLogger(intake.SlogEvaluatorLogger(logger)),
		openapi.Option(),
	}

	var defs []intake.SectionDefinition
	if cfg.Sections != "" {
		f, err := os.Open(cfg.Sections)
		if err != nil {
			return nil, fmt.Errorf("app: open sections: %w", err)
		}
		defer f.Close()
		if defs, err = intake.ParseSectionsYAML(f); err != nil {
			return nil, err
		}
	} else {
		defs = sections.Definitions()
	}
	capEntries(defs, cfg.MaxEntries)

	registry, err := intake.NewRegistry(defs, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: build registry: %w", err)
	}
	return registry, nil
}

func capEntries(defs []intake.SectionDefinition, max int) {
	if max <= 0 {
		return
	}
	for i := range defs {
		for j := range defs[i].Collections {
			coll := &defs[i].Collections[j]
			if coll.Max == 0 || coll.Max > max {
				coll.Max = max
			}
			if coll.Initial > coll.Max {
				coll.Initial = coll.Max
			}
		}
	}
}

// LogHook reports activity events on logger.
func LogHook(logger *slog.Logger) activity.ActivityHook {
	return activity.HookFunc(func(ctx context.Context, event activity.Event) error {
		logger.InfoContext(ctx, "record activity",
			slog.String("verb", event.Verb),
			slog.String("object_type", event.ObjectType),
			slog.String("object_id", event.ObjectID),
			slog.Any("metadata", event.Metadata),
		)
		return nil
	})
}
