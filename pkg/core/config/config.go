// Package config loads pipeline settings from config/pipeline.yaml with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"financial_dashboard/pkg/core/backfill"
	"financial_dashboard/pkg/core/projection"
	"financial_dashboard/pkg/core/synonym"
	"financial_dashboard/pkg/core/validate"
)

// DefaultPath is the settings file looked up by the binaries.
const DefaultPath = "config/pipeline.yaml"

var (
	// ErrMissingConfig is returned when the settings file does not exist.
	ErrMissingConfig = errors.New("missing pipeline config")
	// ErrInvalidConfig is returned when a setting is out of range.
	ErrInvalidConfig = errors.New("invalid pipeline config")
)

type SynonymConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	ReloadSchedule string  `yaml:"reload_schedule"` // cron spec; empty disables reload
	OverridesPath  string  `yaml:"overrides_path"`
}

type DeepValidationConfig struct {
	Enabled         bool    `yaml:"enabled"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes"`
	RatePerSecond   float64 `yaml:"rate_per_second"`
	Burst           int     `yaml:"burst"`
	ModelsPath      string  `yaml:"models_path"`
	PromptsDir      string  `yaml:"prompts_dir"`
}

// Timeout returns the call budget as a duration.
func (d DeepValidationConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// CacheTTL returns the report cache lifetime.
func (d DeepValidationConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMinutes) * time.Minute
}

// RateInterval returns the minimum spacing between provider calls.
func (d DeepValidationConfig) RateInterval() time.Duration {
	if d.RatePerSecond <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / d.RatePerSecond)
}

type ProjectionConfig struct {
	Years       int                    `yaml:"years"`
	Assumptions projection.Assumptions `yaml:"assumptions"`
}

type Config struct {
	LogLevel       string               `yaml:"log_level"`
	LogPretty      bool                 `yaml:"log_pretty"`
	HTTPAddr       string               `yaml:"http_addr"`
	AuditDir       string               `yaml:"audit_dir"`
	DatabaseURL    string               `yaml:"-"`
	Synonyms       SynonymConfig        `yaml:"synonyms"`
	Validation     validate.Thresholds  `yaml:"validation"`
	Backfill       backfill.Ratios      `yaml:"backfill"`
	Projection     ProjectionConfig     `yaml:"projection"`
	DeepValidation DeepValidationConfig `yaml:"deep_validation"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTPAddr: ":8080",
		AuditDir: ".cache/audit",
		Synonyms: SynonymConfig{
			FuzzyThreshold: synonym.DefaultFuzzyThreshold,
			ReloadSchedule: "*/15 * * * *",
			OverridesPath:  "config/client_overrides.json",
		},
		Validation: validate.DefaultThresholds(),
		Backfill:   backfill.DefaultRatios(),
		Projection: ProjectionConfig{
			Years:       5,
			Assumptions: projection.DefaultAssumptions(),
		},
		DeepValidation: DeepValidationConfig{
			Enabled:         true,
			TimeoutSeconds:  22,
			CacheTTLMinutes: 30,
			RatePerSecond:   2,
			Burst:           4,
			ModelsPath:      "config/models.yaml",
			PromptsDir:      "resources/prompts",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields ErrMissingConfig.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from LOG_LEVEL, HTTP_ADDR, PORT, DATABASE_URL,
// LLM_TIMEOUT_SECONDS and DEEP_VALIDATION_ENABLED.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	} else if v := os.Getenv("PORT"); v != "" {
		c.HTTPAddr = ":" + v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: LLM_TIMEOUT_SECONDS=%q", ErrInvalidConfig, v)
		}
		c.DeepValidation.TimeoutSeconds = n
	}
	if v := os.Getenv("DEEP_VALIDATION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DEEP_VALIDATION_ENABLED=%q", ErrInvalidConfig, v)
		}
		c.DeepValidation.Enabled = b
	}
	return nil
}

// Validate checks ranges that would otherwise silently misbehave.
func (c *Config) Validate() error {
	switch {
	case c.Synonyms.FuzzyThreshold <= 0 || c.Synonyms.FuzzyThreshold >= 1:
		return fmt.Errorf("%w: synonyms.fuzzy_threshold must be in (0,1), got %v", ErrInvalidConfig, c.Synonyms.FuzzyThreshold)
	case c.Validation.MinConfidence < 0 || c.Validation.MinConfidence > 1:
		return fmt.Errorf("%w: validation.min_confidence must be in [0,1]", ErrInvalidConfig)
	case c.Validation.BalanceTolerancePct < 0:
		return fmt.Errorf("%w: validation.balance_tolerance_pct must be >= 0", ErrInvalidConfig)
	case c.Projection.Years < 1 || c.Projection.Years > 30:
		return fmt.Errorf("%w: projection.years must be in [1,30], got %d", ErrInvalidConfig, c.Projection.Years)
	case c.DeepValidation.TimeoutSeconds <= 0:
		return fmt.Errorf("%w: deep_validation.timeout_seconds must be positive", ErrInvalidConfig)
	}
	return nil
}
