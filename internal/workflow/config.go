package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Name      string `json:"name" yaml:"name"`
	Model     string `json:"model" yaml:"model"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// BudgetConfig holds the initial response token budget per phase. The gateway
// doubles a budget on each retry.
type BudgetConfig struct {
	Plan       int `json:"plan" yaml:"plan"`
	Subtask    int `json:"subtask" yaml:"subtask"`
	Assessment int `json:"assessment" yaml:"assessment"`
	Synthesis  int `json:"synthesis" yaml:"synthesis"`
	Reflection int `json:"reflection" yaml:"reflection"`
	Refinement int `json:"refinement" yaml:"refinement"`
}

type LimitConfig struct {
	GatewayAttempts  int `json:"gateway_attempts" yaml:"gateway_attempts"`
	SubtaskCycles    int `json:"subtask_cycles" yaml:"subtask_cycles"`
	ReflectionCycles int `json:"reflection_cycles" yaml:"reflection_cycles"`
	StepTransitions  int `json:"step_transitions" yaml:"step_transitions"`
}

type RetryBackoffConfig struct {
	InitialDelayMS int     `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	BackoffFactor  float64 `json:"backoff_factor" yaml:"backoff_factor"`
	MaxDelayMS     int     `json:"max_delay_ms" yaml:"max_delay_ms"`
	Jitter         bool    `json:"jitter" yaml:"jitter"`
}

type SearchConfig struct {
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Depth     string `json:"depth,omitempty" yaml:"depth,omitempty"`
}

type OutputConfig struct {
	Dir                  string   `json:"dir" yaml:"dir"`
	FilenameStemLimit    int      `json:"filename_stem_limit" yaml:"filename_stem_limit"`
	ManifestExcludeGlobs []string `json:"manifest_exclude_globs,omitempty" yaml:"manifest_exclude_globs,omitempty"`
}

type Config struct {
	Version  int                `json:"version" yaml:"version"`
	Provider ProviderConfig     `json:"provider" yaml:"provider"`
	Budgets  BudgetConfig       `json:"budgets" yaml:"budgets"`
	Limits   LimitConfig        `json:"limits" yaml:"limits"`
	Retry    RetryBackoffConfig `json:"retry" yaml:"retry"`
	Search   SearchConfig       `json:"search" yaml:"search"`
	Output   OutputConfig       `json:"output" yaml:"output"`
	LogsRoot string             `json:"logs_root,omitempty" yaml:"logs_root,omitempty"`
}

func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	applyConfigDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML or JSON config file, strictly: unknown fields are
// rejected so typos fail loudly instead of silently using defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := decodeJSONStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyConfigDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return fmt.Errorf("json: multiple top-level values are not allowed")
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "anthropic"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "ANTHROPIC_API_KEY"
	}

	if cfg.Budgets.Plan <= 0 {
		cfg.Budgets.Plan = 2048
	}
	if cfg.Budgets.Subtask <= 0 {
		cfg.Budgets.Subtask = 4096
	}
	if cfg.Budgets.Assessment <= 0 {
		cfg.Budgets.Assessment = 4096
	}
	if cfg.Budgets.Synthesis <= 0 {
		cfg.Budgets.Synthesis = 8192
	}
	if cfg.Budgets.Reflection <= 0 {
		cfg.Budgets.Reflection = 4096
	}
	if cfg.Budgets.Refinement <= 0 {
		cfg.Budgets.Refinement = 8192
	}

	if cfg.Limits.GatewayAttempts <= 0 {
		cfg.Limits.GatewayAttempts = 3
	}
	if cfg.Limits.SubtaskCycles <= 0 {
		cfg.Limits.SubtaskCycles = 10
	}
	if cfg.Limits.ReflectionCycles <= 0 {
		cfg.Limits.ReflectionCycles = 3
	}
	if cfg.Limits.StepTransitions <= 0 {
		cfg.Limits.StepTransitions = 500
	}

	if cfg.Retry.InitialDelayMS <= 0 {
		cfg.Retry.InitialDelayMS = 200
	}
	if cfg.Retry.BackoffFactor <= 0 {
		cfg.Retry.BackoffFactor = 2.0
	}
	if cfg.Retry.MaxDelayMS <= 0 {
		cfg.Retry.MaxDelayMS = 60_000
	}

	if cfg.Search.APIKeyEnv == "" {
		cfg.Search.APIKeyEnv = "TAVILY_API_KEY"
	}
	if cfg.Search.Depth == "" {
		cfg.Search.Depth = "advanced"
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}
	if cfg.Output.FilenameStemLimit <= 0 {
		cfg.Output.FilenameStemLimit = 30
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	if cfg.Provider.Name != "anthropic" {
		return fmt.Errorf("unsupported provider %q", cfg.Provider.Name)
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		return fmt.Errorf("provider model is required")
	}
	return nil
}
