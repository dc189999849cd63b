// Package config provides configuration loading for the plan worker. All
// tunables (budgets, lease durations, LLM deadlines, token caps) live here and
// are passed explicitly to the worker and orchestrator - nothing reads timing
// constants from package-level state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fitstack/planworker/fault"
)

// Config is the complete worker configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Model    ModelConfig    `yaml:"model"`
	NATS     NATSConfig     `yaml:"nats"`
	Push     PushConfig     `yaml:"push"`
	Tunables Tunables       `yaml:"tunables"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address for the invocation endpoint.
	Addr string `yaml:"addr"`
	// SelfURL, when set, is POSTed to on yield to hand off to a fresh
	// invocation without waiting for the scheduler.
	SelfURL string `yaml:"self_url"`
}

// SupabaseConfig configures the shared data store.
type SupabaseConfig struct {
	// URL is the project URL (env SUPABASE_URL).
	URL string `yaml:"url"`
	// ServiceRoleKey authorizes privileged access (env SUPABASE_SERVICE_ROLE_KEY).
	ServiceRoleKey string `yaml:"service_role_key"`
	// DatabaseURL is the Postgres DSN the worker connects with
	// (env SUPABASE_DB_URL).
	DatabaseURL string `yaml:"database_url"`
}

// ModelConfig configures the LLM endpoint.
type ModelConfig struct {
	// Provider selects the registered provider ("deepseek", "openai").
	Provider string `yaml:"provider"`
	// Name is the model identifier (e.g. "deepseek-chat").
	Name string `yaml:"name"`
	// Endpoint overrides the provider's default base URL.
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (default 0.6).
	Temperature float64 `yaml:"temperature"`
	// MaxAttempts is attempts per LLM call (default 1; job retries are the
	// queue's concern).
	MaxAttempts int `yaml:"max_attempts"`
}

// NATSConfig configures optional event publishing.
type NATSConfig struct {
	// URL is the NATS server URL (empty disables event publishing).
	URL string `yaml:"url"`
}

// PushConfig configures the mobile push gateway.
type PushConfig struct {
	// Endpoint is the push service URL.
	Endpoint string `yaml:"endpoint"`
}

// Tunables gathers every timing and sizing knob of the worker in one record.
type Tunables struct {
	// InvocationBudget is the wall-clock budget for one invocation.
	InvocationBudget time.Duration `yaml:"invocation_budget"`
	// YieldThreshold is the remaining-budget floor below which the
	// orchestrator yields between stages.
	YieldThreshold time.Duration `yaml:"yield_threshold"`
	// LeaseSeconds is the job lease granted on claim and on each heartbeat.
	LeaseSeconds int `yaml:"lease_seconds"`
	// HeartbeatPeriod is the lease-extension cadence.
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`

	// LLMConnectTimeout bounds request start to response headers.
	LLMConnectTimeout time.Duration `yaml:"llm_connect_timeout"`
	// LLMStreamTimeout bounds first byte to end of stream.
	LLMStreamTimeout time.Duration `yaml:"llm_stream_timeout"`
	// StreamSoftFloorChars is the accumulated-output floor above which a
	// dying stream counts as complete.
	StreamSoftFloorChars int `yaml:"stream_soft_floor_chars"`
	// MaxTokensCap clamps every per-call token hint.
	MaxTokensCap int `yaml:"max_tokens_cap"`

	// Per-stage token hints.
	SplitMaxTokens         int `yaml:"split_max_tokens"`
	BaseNutritionMaxTokens int `yaml:"base_nutrition_max_tokens"`
	DailyWorkoutMaxTokens  int `yaml:"daily_workout_max_tokens"`
	RestDayMaxTokens       int `yaml:"rest_day_max_tokens"`
	AdjustmentMaxTokens    int `yaml:"adjustment_max_tokens"`
	SupplementsMaxTokens   int `yaml:"supplements_max_tokens"`
	ReasonsMaxTokens       int `yaml:"reasons_max_tokens"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Model: ModelConfig{
			Provider:    "deepseek",
			Name:        "deepseek-chat",
			Temperature: 0.6,
			MaxAttempts: 1,
		},
		Push: PushConfig{
			Endpoint: "https://exp.host/--/api/v2/push/send",
		},
		Tunables: Tunables{
			InvocationBudget:       120 * time.Second,
			YieldThreshold:         25 * time.Second,
			LeaseSeconds:           180,
			HeartbeatPeriod:        30 * time.Second,
			LLMConnectTimeout:      60 * time.Second,
			LLMStreamTimeout:       55 * time.Second,
			StreamSoftFloorChars:   2000,
			MaxTokensCap:           8192,
			SplitMaxTokens:         2000,
			BaseNutritionMaxTokens: 3000,
			DailyWorkoutMaxTokens:  2500,
			RestDayMaxTokens:       500,
			AdjustmentMaxTokens:    2000,
			SupplementsMaxTokens:   5000,
			ReasonsMaxTokens:       2000,
		},
	}
}

// Validate checks that required settings are present. Missing credentials are
// CONFIG_ERROR so the worker refuses to claim jobs it cannot process.
func (c *Config) Validate() error {
	if c.Supabase.URL == "" {
		return fault.New(fault.ConfigError, "SUPABASE_URL is required")
	}
	if c.Supabase.ServiceRoleKey == "" {
		return fault.New(fault.ConfigError, "SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.Supabase.DatabaseURL == "" {
		return fault.New(fault.ConfigError, "SUPABASE_DB_URL is required")
	}
	if os.Getenv("DEEPSEEK_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fault.New(fault.ConfigError, "DEEPSEEK_API_KEY is required")
	}
	if c.Model.Provider == "" || c.Model.Name == "" {
		return fault.New(fault.ConfigError, "model provider and name are required")
	}
	if c.Tunables.YieldThreshold >= c.Tunables.InvocationBudget {
		return fault.New(fault.ConfigError, "yield threshold must be below the invocation budget")
	}
	if c.Tunables.LeaseSeconds <= 0 {
		return fault.New(fault.ConfigError, "lease seconds must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// ApplyEnv overlays environment variables onto the config. Env always wins
// over file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); v != "" {
		c.Supabase.ServiceRoleKey = v
	}
	if v := os.Getenv("SUPABASE_DB_URL"); v != "" {
		c.Supabase.DatabaseURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("WORKER_SELF_URL"); v != "" {
		c.Server.SelfURL = v
	}
	if v := os.Getenv("WORKER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Load resolves the final configuration: defaults, then the optional YAML file
// at path, then environment variables.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
