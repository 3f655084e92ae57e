// Package bootstrap wires configuration, logging, providers, storage and the
// pipeline for the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"financial_dashboard/pkg/core/agent"
	"financial_dashboard/pkg/core/config"
	"financial_dashboard/pkg/core/deepvalidate"
	"financial_dashboard/pkg/core/logging"
	"financial_dashboard/pkg/core/pipeline"
	"financial_dashboard/pkg/core/prompt"
	"financial_dashboard/pkg/core/store"
	"financial_dashboard/pkg/core/synonym"
)

// App holds the long-lived components of a process.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Agents   *agent.Manager
	Pipeline *pipeline.Pipeline

	pool     *pgxpool.Pool
	reloader *cron.Cron
}

// Options adjust the configuration after it is loaded.
type Options struct {
	ConfigPath string
	// Mutate runs after loading and before validation.
	Mutate func(*config.Config)
}

// LoadConfig reads the config file, falling back to the defaults plus
// environment when the file does not exist.
func LoadConfig(opts Options) (*config.Config, bool, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	missing := false
	switch {
	case errors.Is(err, config.ErrMissingConfig):
		missing = true
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	}
	if opts.Mutate != nil {
		opts.Mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, missing, nil
}

// New builds the application. Configuration faults are returned as errors;
// an enabled deep validation with no usable provider is one of them.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, missing, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	if missing {
		log.Warn().Str("path", opts.ConfigPath).Msg("config file not found, using defaults")
	}

	app := &App{Config: cfg, Log: log}

	agentCfg, err := agent.LoadConfig(cfg.DeepValidation.ModelsPath)
	if err != nil {
		log.Warn().Err(err).Msg("models config not loaded, using default provider")
		agentCfg = agent.Config{ActiveProvider: agent.DefaultProvider}
	}
	app.Agents = agent.NewManager(agentCfg, logging.Component(log, "agent"))

	var opt []pipeline.Option
	deep, err := app.deepValidator()
	if err != nil {
		return nil, err
	}
	opt = append(opt, pipeline.WithDeepValidator(deep))

	audit, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	if audit != nil {
		opt = append(opt, pipeline.WithAudit(audit))
	}

	p, err := pipeline.FromConfig(cfg, logging.Component(log, "pipeline"), opt...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Pipeline = p

	if app.pool != nil {
		if err := app.startSynonymReload(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func (a *App) deepValidator() (deepvalidate.Validator, error) {
	dv := a.Config.DeepValidation
	log := logging.Component(a.Log, "deepvalidate")
	if !dv.Enabled {
		log.Info().Msg("deep validation disabled")
		return nil, nil
	}

	prompts := prompt.Default()
	if dv.PromptsDir != "" {
		n, err := prompts.LoadFromDirectory(dv.PromptsDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", dv.PromptsDir).Msg("prompt directory not loaded, using built-in prompts")
		} else {
			log.Debug().Int("loaded", n).Msg("prompts loaded")
		}
	}

	inner, err := deepvalidate.NewLLMValidator(a.Agents, prompts,
		deepvalidate.WithRateLimit(dv.RateInterval(), dv.Burst),
		deepvalidate.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("deep validation enabled but unusable (set DEEP_VALIDATION_ENABLED=false to run without it): %w", err)
	}
	log.Info().Str("provider", inner.Provider()).Dur("timeout", dv.Timeout()).Msg("deep validation ready")
	return deepvalidate.NewGuarded(inner,
		deepvalidate.WithTimeout(dv.Timeout()),
		deepvalidate.WithCacheTTL(dv.CacheTTL()),
		deepvalidate.WithGuardLogger(log),
	), nil
}

// openStore connects Postgres when DATABASE_URL is set and otherwise falls
// back to the file audit log. Both empty disables auditing.
func (a *App) openStore(ctx context.Context) (store.AuditRepository, error) {
	if a.Config.DatabaseURL != "" {
		pool, err := store.Connect(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		if err := store.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		a.Log.Info().Msg("audit store: postgres")
		return store.NewPgAuditRepo(pool), nil
	}
	if a.Config.AuditDir == "" {
		a.Log.Warn().Msg("audit store disabled")
		return nil, nil
	}
	repo, err := store.NewFileAuditRepo(a.Config.AuditDir)
	if err != nil {
		return nil, err
	}
	a.Log.Info().Str("dir", a.Config.AuditDir).Msg("audit store: files")
	return repo, nil
}

func (a *App) startSynonymReload(ctx context.Context) error {
	src := store.NewSynonymRepo(a.pool, synonym.DefaultEntries())
	resolver := a.Pipeline.Resolver()

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := synonym.Reload(loadCtx, resolver, src); err != nil {
		a.Log.Warn().Err(err).Msg("initial synonym load failed, using built-in table")
	}

	if a.Config.Synonyms.ReloadSchedule == "" {
		return nil
	}
	c, err := synonym.StartReloader(resolver, src, a.Config.Synonyms.ReloadSchedule, 30*time.Second)
	if err != nil {
		return err
	}
	a.reloader = c
	return nil
}

// Close stops background jobs and releases the database pool.
func (a *App) Close() {
	if a.reloader != nil {
		<-a.reloader.Stop().Done()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
