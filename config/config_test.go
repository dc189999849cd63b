package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fitstack/planworker/fault"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("DEEPSEEK_API_KEY", "test-key")

	cfg := DefaultConfig()
	cfg.Supabase.URL = "https://project.supabase.co"
	cfg.Supabase.ServiceRoleKey = "service-role"
	cfg.Supabase.DatabaseURL = "postgres://localhost/plans"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tunables.InvocationBudget != 120*time.Second {
		t.Errorf("InvocationBudget = %v", cfg.Tunables.InvocationBudget)
	}
	if cfg.Tunables.YieldThreshold != 25*time.Second {
		t.Errorf("YieldThreshold = %v", cfg.Tunables.YieldThreshold)
	}
	if cfg.Tunables.LeaseSeconds != 180 {
		t.Errorf("LeaseSeconds = %d", cfg.Tunables.LeaseSeconds)
	}
	if cfg.Tunables.HeartbeatPeriod != 30*time.Second {
		t.Errorf("HeartbeatPeriod = %v", cfg.Tunables.HeartbeatPeriod)
	}
	if cfg.Model.Provider != "deepseek" {
		t.Errorf("Provider = %s", cfg.Model.Provider)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing supabase url", func(c *Config) { c.Supabase.URL = "" }, false},
		{"missing service role key", func(c *Config) { c.Supabase.ServiceRoleKey = "" }, false},
		{"missing database url", func(c *Config) { c.Supabase.DatabaseURL = "" }, false},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, false},
		{"yield threshold above budget", func(c *Config) { c.Tunables.YieldThreshold = c.Tunables.InvocationBudget }, false},
		{"non-positive lease", func(c *Config) { c.Tunables.LeaseSeconds = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if fault.Code(err) != fault.ConfigError {
					t.Errorf("code = %s, want CONFIG_ERROR", fault.Code(err))
				}
			}
		})
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig(t)
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without any API key")
	}

	t.Setenv("OPENAI_API_KEY", "other-key")
	if err := cfg.Validate(); err != nil {
		t.Errorf("OPENAI_API_KEY alone should satisfy validation: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("SUPABASE_DB_URL", "postgres://env/db")
	t.Setenv("LLM_MODEL", "deepseek-reasoner")
	t.Setenv("WORKER_ADDR", ":9090")

	cfg.ApplyEnv()

	if cfg.Supabase.URL != "https://env.supabase.co" {
		t.Errorf("Supabase.URL = %s", cfg.Supabase.URL)
	}
	if cfg.Supabase.DatabaseURL != "postgres://env/db" {
		t.Errorf("DatabaseURL = %s", cfg.Supabase.DatabaseURL)
	}
	if cfg.Model.Name != "deepseek-reasoner" {
		t.Errorf("Model.Name = %s", cfg.Model.Name)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s", cfg.Server.Addr)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":7070"
	cfg.Tunables.SplitMaxTokens = 1234

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Server.Addr != ":7070" {
		t.Errorf("Addr = %s", loaded.Server.Addr)
	}
	if loaded.Tunables.SplitMaxTokens != 1234 {
		t.Errorf("SplitMaxTokens = %d", loaded.Tunables.SplitMaxTokens)
	}
}
