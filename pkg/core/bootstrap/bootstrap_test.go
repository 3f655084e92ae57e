package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"financial_dashboard/pkg/core/config"
	"financial_dashboard/pkg/core/deepvalidate"
	"financial_dashboard/pkg/core/pipeline"
	"financial_dashboard/pkg/models"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "LOG_LEVEL", "HTTP_ADDR", "PORT", "LLM_TIMEOUT_SECONDS", "DEEP_VALIDATION_ENABLED",
		"ANTHROPIC_API_KEY", "CLAUDE_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "DEEPSEEK_API_KEY", "QWEN_API_KEY", "DASHSCOPE_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	cfg, missing, err := LoadConfig(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err != nil {
		t.Fatal(err)
	}
	if !missing || cfg.LogLevel != "debug" || cfg.Projection.Years != 5 {
		t.Errorf("missing=%v cfg=%+v", missing, cfg)
	}
}

func TestLoadConfigMutateIsValidated(t *testing.T) {
	clearEnv(t)
	_, _, err := LoadConfig(Options{
		ConfigPath: filepath.Join(t.TempDir(), "nope.yaml"),
		Mutate:     func(c *config.Config) { c.Projection.Years = 0 },
	})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("err = %v", err)
	}
}

func TestNewWithoutDeepValidation(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	app, err := New(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		Mutate: func(c *config.Config) {
			c.DeepValidation.Enabled = false
			c.AuditDir = filepath.Join(dir, "audit")
			c.Synonyms.OverridesPath = filepath.Join(dir, "overrides.json")
			c.DeepValidation.ModelsPath = filepath.Join(dir, "models.yaml")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	res, err := app.Pipeline.Run(context.Background(), pipeline.Input{Fields: models.RawFieldSet{"ventas": 100}})
	if err != nil {
		t.Fatal(err)
	}
	if res.DeepValidation != nil {
		t.Error("deep validation ran while disabled")
	}
	entries, err := os.ReadDir(filepath.Join(dir, "audit"))
	if err != nil || len(entries) != 1 {
		t.Errorf("audit files = %d, err = %v", len(entries), err)
	}
}

func TestNewDeepValidationWithoutProvider(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, err := New(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		Mutate: func(c *config.Config) {
			c.AuditDir = ""
			c.DeepValidation.ModelsPath = filepath.Join(dir, "models.yaml")
		},
	})
	if !errors.Is(err, deepvalidate.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
