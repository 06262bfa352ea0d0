// Package config loads the intake process configuration: defaults, an
// optional YAML file overlay, then INTAKE_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	backends   = []string{BackendMemory, BackendFile, BackendRedis, BackendPostgres}
	policies   = []string{"free", "require_valid"}
	engines    = []string{"expr", "cel", "js"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid configuration")

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend     string   `yaml:"backend"`
	Path        string   `yaml:"path"`
	RedisURL    string   `yaml:"redis_url"`
	RedisKey    string   `yaml:"redis_key"`
	PostgresDSN string   `yaml:"postgres_dsn"`
	Table       string   `yaml:"table"`
	Subsections []string `yaml:"subsections,omitempty"`
}

// HTTPConfig holds the rendering boundary listener settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WizardConfig holds wizard behaviour.
type WizardConfig struct {
	Navigation string `yaml:"navigation"`
	RuleEngine string `yaml:"rule_engine"`
	MaxEntries int    `yaml:"max_entries"`
	// Sections points at a YAML registry replacing the built-in sections.
	Sections string `yaml:"sections,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles prometheus collection.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Config holds the intake configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	HTTP    HTTPConfig    `yaml:"http"`
	Wizard  WizardConfig  `yaml:"wizard"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "intake-data/application.json",
			Table:   "intake_records",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Wizard: WizardConfig{
			Navigation: "free",
			RuleEngine: "expr",
			MaxEntries: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "intake",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse overlays the YAML document in data onto cfg. Unknown keys fail.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("config: invalid yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from INTAKE_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"INTAKE_STORE_BACKEND":      &c.Store.Backend,
		"INTAKE_STORE_PATH":         &c.Store.Path,
		"INTAKE_REDIS_URL":          &c.Store.RedisURL,
		"INTAKE_REDIS_KEY":          &c.Store.RedisKey,
		"INTAKE_POSTGRES_DSN":       &c.Store.PostgresDSN,
		"INTAKE_POSTGRES_TABLE":     &c.Store.Table,
		"INTAKE_HTTP_ADDR":          &c.HTTP.Addr,
		"INTAKE_WIZARD_NAVIGATION":  &c.Wizard.Navigation,
		"INTAKE_WIZARD_RULE_ENGINE": &c.Wizard.RuleEngine,
		"INTAKE_WIZARD_SECTIONS":    &c.Wizard.Sections,
		"INTAKE_LOG_LEVEL":          &c.Log.Level,
		"INTAKE_LOG_FORMAT":         &c.Log.Format,
		"INTAKE_METRICS_NAMESPACE":  &c.Metrics.Namespace,
	}
	for name, target := range strs {
		if value, ok := lookup(name); ok {
			*target = value
		}
	}
	if value, ok := lookup("INTAKE_WIZARD_MAX_ENTRIES"); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: INTAKE_WIZARD_MAX_ENTRIES: %v", ErrInvalid, err)
		}
		c.Wizard.MaxEntries = n
	}
	if value, ok := lookup("INTAKE_METRICS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: INTAKE_METRICS_ENABLED: %v", ErrInvalid, err)
		}
		c.Metrics.Enabled = enabled
	}
	return nil
}

// Validate rejects unknown backends, policies, engines and log settings, and
// backends missing their connection settings.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%w: %s %q must be one of %s", ErrInvalid, field, value, strings.Join(allowed, "|")))
		}
	}
	oneOf("store.backend", c.Store.Backend, backends)
	oneOf("wizard.navigation", c.Wizard.Navigation, policies)
	oneOf("wizard.rule_engine", c.Wizard.RuleEngine, engines)
	oneOf("log.level", c.Log.Level, logLevels)
	oneOf("log.format", c.Log.Format, logFormats)

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("%w: store.path is required for the file backend", ErrInvalid))
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, fmt.Errorf("%w: store.redis_url is required for the redis backend", ErrInvalid))
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("%w: store.postgres_dsn is required for the postgres backend", ErrInvalid))
		}
	}
	if c.Wizard.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("%w: wizard.max_entries must be positive", ErrInvalid))
	}
	return errors.Join(errs...)
}
