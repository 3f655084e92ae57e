package deepvalidate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"financial_dashboard/pkg/core/llm"
	"financial_dashboard/pkg/models"
)

const (
	DefaultTimeout  = 22 * time.Second
	DefaultCacheTTL = 30 * time.Minute
)

// Guarded bounds an inner Validator in time, retries once on transient
// failure and substitutes DefaultReport for anything else. DeepValidate on a
// Guarded never returns an error.
type Guarded struct {
	inner   Validator
	timeout time.Duration
	retries int
	cache   *cache.Cache
	log     zerolog.Logger
}

// GuardOption configures a Guarded validator.
type GuardOption func(*Guarded)

func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithCacheTTL sets the report cache lifetime; zero disables caching.
func WithCacheTTL(ttl time.Duration) GuardOption {
	return func(g *Guarded) {
		if ttl <= 0 {
			g.cache = nil
			return
		}
		g.cache = cache.New(ttl, 2*ttl)
	}
}

func WithGuardLogger(l zerolog.Logger) GuardOption {
	return func(g *Guarded) { g.log = l }
}

// NewGuarded wraps inner. A nil inner always yields the fallback report.
func NewGuarded(inner Validator, opts ...GuardOption) *Guarded {
	g := &Guarded{
		inner:   inner,
		timeout: DefaultTimeout,
		retries: 1,
		cache:   cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProviderNamer is implemented by validators whose answers depend on a
// switchable provider. Guarded keys its cache on the name.
type ProviderNamer interface {
	Provider() string
}

type outcome struct {
	rep *Report
	err error
}

func (g *Guarded) DeepValidate(ctx context.Context, set *models.CanonicalFieldSet) (*Report, error) {
	if g.inner == nil || set == nil {
		return DefaultReport(), nil
	}

	key := g.cacheKey(set)
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			rep := v.(*Report).clone()
			rep.Cached = true
			return rep, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		rep, err := g.attempt(ctx, set)
		if err == nil {
			if g.cache != nil {
				g.cache.Set(key, rep.clone(), cache.DefaultExpiration)
			}
			return rep, nil
		}
		lastErr = err
		if !transient(err) || ctx.Err() != nil {
			break
		}
		g.log.Warn().Err(err).Int("attempt", attempt+1).Msg("deep validation failed, retrying")
	}

	g.log.Warn().Err(lastErr).Dur("timeout", g.timeout).Msg("deep validation fell back to default report")
	return DefaultReport(), nil
}

// attempt runs one inner call. The channel is buffered so a reply arriving
// after the deadline is dropped without blocking the worker.
func (g *Guarded) attempt(ctx context.Context, set *models.CanonicalFieldSet) (*Report, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("deep validator panic: %v", r)}
			}
		}()
		rep, err := g.inner.DeepValidate(ctx, set)
		done <- outcome{rep: rep, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil && o.rep == nil {
			return nil, fmt.Errorf("%w: empty report", ErrInvalidReport)
		}
		return o.rep, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Guarded) cacheKey(set *models.CanonicalFieldSet) string {
	key := ContentHash(set)
	if pn, ok := g.inner.(ProviderNamer); ok {
		key = pn.Provider() + ":" + key
	}
	return key
}

func transient(err error) bool {
	if errors.Is(err, ErrInvalidReport) {
		return true
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return false
}

// ContentHash identifies a field set by unit and values.
func ContentHash(set *models.CanonicalFieldSet) string {
	h := sha256.New()
	fmt.Fprintf(h, "unit=%s\n", set.Unit)
	for _, f := range set.Fields() {
		fmt.Fprintf(h, "%s=%.6f\n", f, set.Values[f])
	}
	return hex.EncodeToString(h.Sum(nil))
}
