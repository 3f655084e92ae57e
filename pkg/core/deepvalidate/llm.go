package deepvalidate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"financial_dashboard/pkg/core/agent"
	"financial_dashboard/pkg/core/llm"
	"financial_dashboard/pkg/core/prompt"
	"financial_dashboard/pkg/models"
)

// LLMValidator asks the provider configured for the financial_validator agent
// to review a field set. The provider is resolved on every call, so a switch
// on the manager takes effect for the next review.
type LLMValidator struct {
	mgr     *agent.Manager
	tmpl    *prompt.Template
	limiter *rate.Limiter
	log     zerolog.Logger
}

// Option configures an LLMValidator.
type Option func(*LLMValidator)

// WithRateLimit caps outbound calls at one per interval with the given burst.
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(v *LLMValidator) { v.limiter = rate.NewLimiter(rate.Every(interval), burst) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(v *LLMValidator) { v.log = l }
}

// NewLLMValidator checks the provider currently selected for
// agent.FinancialValidator. It returns ErrNotConfigured when the provider is
// unknown or has no credentials.
func NewLLMValidator(mgr *agent.Manager, prompts *prompt.Registry, opts ...Option) (*LLMValidator, error) {
	if mgr == nil {
		return nil, fmt.Errorf("%w: no agent manager", ErrNotConfigured)
	}
	if prompts == nil {
		prompts = prompt.Default()
	}
	tmpl, err := prompts.Get(prompt.FinancialValidatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	if _, _, err := resolveProvider(mgr); err != nil {
		return nil, err
	}

	v := &LLMValidator{
		mgr:     mgr,
		tmpl:    tmpl,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 4),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func resolveProvider(mgr *agent.Manager) (string, llm.Provider, error) {
	name := mgr.ProviderName(agent.FinancialValidator)
	p := mgr.GetProvider(agent.FinancialValidator)
	if p == nil {
		return name, nil, fmt.Errorf("%w: provider %q unknown", ErrNotConfigured, name)
	}
	if !p.Configured() {
		return name, nil, fmt.Errorf("%w: provider %q has no API key", ErrNotConfigured, name)
	}
	return name, p, nil
}

// Provider returns the name of the provider the next call will use.
func (v *LLMValidator) Provider() string { return v.mgr.ProviderName(agent.FinancialValidator) }

func (v *LLMValidator) DeepValidate(ctx context.Context, set *models.CanonicalFieldSet) (*Report, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: nil field set", ErrInvalidReport)
	}
	name, _, err := resolveProvider(v.mgr)
	if err != nil {
		return nil, err
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	fields := make(map[string]float64, len(set.Values))
	for f, val := range set.Values {
		fields[string(f)] = val
	}
	user, err := prompt.Render(v.tmpl, prompt.Vars{}.
		Set("Unit", string(set.Unit)).
		Set("Fields", fields).
		Set("Issues", nil))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := v.mgr.ExecutePrompt(ctx, agent.FinancialValidator, user, v.tmpl.SystemPrompt, map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}
	v.log.Debug().
		Str("provider", name).
		Dur("elapsed", time.Since(start)).
		Int("response_length", len(text)).
		Msg("deep validation response")

	rep, err := ParseReport(text)
	if err != nil {
		v.log.Warn().Err(err).Str("provider", name).Msg("unusable deep validation response")
		return nil, err
	}
	rep.Provider = name
	return rep, nil
}
