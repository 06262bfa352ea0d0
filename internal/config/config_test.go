package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Store.Backend != BackendFile || cfg.Wizard.MaxEntries != 5 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intake.yaml")
	doc := "store:\n  backend: memory\nwizard:\n  navigation: require_valid\n  rule_engine: cel\nlog:\n  format: json\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Wizard.Navigation != "require_valid" || cfg.Wizard.RuleEngine != "cel" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Log.Level != "info" {
		t.Fatalf("defaults lost during overlay: %+v", cfg)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := Parse([]byte("store:\n  engine: sqlite\n"), &cfg); err == nil {
		t.Fatalf("expected unknown key to fail")
	}
	if err := Parse(nil, &cfg); err != nil {
		t.Fatalf("empty document should be accepted: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envLookup(map[string]string{
		"INTAKE_STORE_BACKEND":      "redis",
		"INTAKE_REDIS_URL":          "redis://localhost:6379/0",
		"INTAKE_WIZARD_MAX_ENTRIES": "3",
		"INTAKE_METRICS_ENABLED":    "false",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Wizard.MaxEntries != 3 || cfg.Metrics.Enabled {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := cfg.ApplyEnv(envLookup(map[string]string{"INTAKE_WIZARD_MAX_ENTRIES": "many"})); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad number, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":      func(c *Config) { c.Store.Backend = "sqlite" },
		"navigation":   func(c *Config) { c.Wizard.Navigation = "strict" },
		"engine":       func(c *Config) { c.Wizard.RuleEngine = "lua" },
		"level":        func(c *Config) { c.Log.Level = "trace" },
		"format":       func(c *Config) { c.Log.Format = "xml" },
		"redis url":    func(c *Config) { c.Store.Backend = BackendRedis },
		"postgres dsn": func(c *Config) { c.Store.Backend = BackendPostgres },
		"file path":    func(c *Config) { c.Store.Path = "" },
		"max entries":  func(c *Config) { c.Wizard.MaxEntries = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}
