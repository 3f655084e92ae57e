// Package pipeline runs raw extracted fields through resolution, unit
// normalization, cleaning, coherence validation, chart assignment and the
// optional projection, with deep validation as a parallel best-effort branch.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"financial_dashboard/pkg/core/backfill"
	"financial_dashboard/pkg/core/charts"
	"financial_dashboard/pkg/core/cleaner"
	"financial_dashboard/pkg/core/config"
	"financial_dashboard/pkg/core/deepvalidate"
	"financial_dashboard/pkg/core/projection"
	"financial_dashboard/pkg/core/store"
	"financial_dashboard/pkg/core/synonym"
	"financial_dashboard/pkg/core/units"
	"financial_dashboard/pkg/core/validate"
	"financial_dashboard/pkg/models"
)

// ErrNotConfigured is returned by Run on a pipeline missing a component.
var ErrNotConfigured = errors.New("pipeline not configured")

// =============================================================================
// INPUT / RESULT
// =============================================================================

// ProjectionRequest asks for a projection of the cleaned base year.
type ProjectionRequest struct {
	Scenario     string                  `json:"scenario,omitempty"`
	Years        int                     `json:"years,omitempty"`
	Assumptions  *projection.Assumptions `json:"assumptions,omitempty"`
	AllScenarios bool                    `json:"all_scenarios,omitempty"`
}

// Input is one pipeline run.
type Input struct {
	Fields     models.RawFieldSet               `json:"fields"`
	Labels     []string                         `json:"labels,omitempty"`
	ClientID   string                           `json:"client_id,omitempty"`
	Overrides  map[string]models.CanonicalField `json:"overrides,omitempty"`
	Charts     []string                         `json:"charts,omitempty"`
	TargetUnit models.Unit                      `json:"target_unit,omitempty"`
	Projection *ProjectionRequest               `json:"projection,omitempty"`

	SkipDeepValidation bool `json:"skip_deep_validation,omitempty"`

	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	FileID    string `json:"file_id,omitempty"`
}

// ProjectionResult holds the series per scenario with their summaries and
// linkage checks.
type ProjectionResult struct {
	Series    map[projection.Scenario]*projection.Series        `json:"series"`
	Summaries map[projection.Scenario]projection.Summary        `json:"summaries"`
	Linkage   map[projection.Scenario]*projection.LinkageReport `json:"linkage"`
}

// Result is the outcome of a run.
type Result struct {
	RunID               uuid.UUID                     `json:"run_id"`
	Fields              *models.CanonicalFieldSet     `json:"fields"`
	Unit                units.Detection               `json:"unit_detection"`
	IsValid             bool                          `json:"is_valid"`
	Confidence          float64                       `json:"confidence"`
	CompletionScore     float64                       `json:"completion_score"`
	Issues              []models.ValidationIssue      `json:"issues"`
	Suggestions         []models.ValidationSuggestion `json:"suggestions"`
	Checks              validate.Checks               `json:"checks"`
	Charts              *charts.Assignment            `json:"charts"`
	Projection          *ProjectionResult             `json:"projection,omitempty"`
	DeepValidation      *deepvalidate.Report          `json:"deep_validation,omitempty"`
	RecommendationsHTML string                        `json:"recommendations_html,omitempty"`
	Duration            time.Duration                 `json:"duration_ns"`
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline wires the stages. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	resolver  *synonym.Resolver
	overrides *synonym.OverrideRegistry
	validator *validate.Validator
	backfill  *backfill.Engine
	assigner  *charts.Assigner
	projector *projection.Engine
	deep      deepvalidate.Validator
	audit     store.AuditRepository

	thresholds  validate.Thresholds
	ratios      backfill.Ratios
	registry    *charts.Registry
	years       int
	assumptions projection.Assumptions
	log         zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithResolver(r *synonym.Resolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

func WithOverrides(reg *synonym.OverrideRegistry) Option {
	return func(p *Pipeline) { p.overrides = reg }
}

func WithThresholds(th validate.Thresholds) Option {
	return func(p *Pipeline) { p.thresholds = th }
}

// WithBackfill sets the ratios used for derivations and chart backfill.
func WithBackfill(r backfill.Ratios) Option {
	return func(p *Pipeline) { p.ratios = r }
}

func WithChartRegistry(reg *charts.Registry) Option {
	return func(p *Pipeline) { p.registry = reg }
}

// WithDeepValidator sets the deep validation branch. Use a
// deepvalidate.Guarded so the branch never fails or stalls a run.
func WithDeepValidator(v deepvalidate.Validator) Option {
	return func(p *Pipeline) { p.deep = v }
}

func WithAudit(repo store.AuditRepository) Option {
	return func(p *Pipeline) { p.audit = repo }
}

// WithProjectionDefaults sets the horizon and drivers used when a request
// leaves them out.
func WithProjectionDefaults(years int, a projection.Assumptions) Option {
	return func(p *Pipeline) {
		p.years = years
		p.assumptions = a
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New applies opts and builds the stage components from them.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		thresholds:  validate.DefaultThresholds(),
		ratios:      backfill.DefaultRatios(),
		years:       5,
		assumptions: projection.DefaultAssumptions(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.resolver == nil {
		p.resolver = synonym.NewResolver(synonym.NewDictionary(synonym.DefaultEntries()), synonym.WithLogger(p.log))
	}
	if p.years <= 0 {
		p.years = 5
	}
	p.validator = validate.NewValidator(p.thresholds, p.log)
	p.backfill = backfill.NewEngine(p.ratios, p.log)
	p.assigner = charts.NewAssigner(p.registry, p.backfill, p.log)
	p.projector = projection.NewEngine(p.log)
	return p
}

// FromConfig builds a pipeline from cfg. Extra opts are applied after the
// config-derived ones.
func FromConfig(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrNotConfigured)
	}
	overrides, err := synonym.NewOverrideRegistry(cfg.Synonyms.OverridesPath)
	if err != nil {
		return nil, fmt.Errorf("load client overrides: %w", err)
	}
	resolver := synonym.NewResolver(
		synonym.NewDictionary(synonym.DefaultEntries()),
		synonym.WithThreshold(cfg.Synonyms.FuzzyThreshold),
		synonym.WithLogger(log),
	)
	base := []Option{
		WithLogger(log),
		WithResolver(resolver),
		WithOverrides(overrides),
		WithThresholds(cfg.Validation),
		WithBackfill(cfg.Backfill),
		WithProjectionDefaults(cfg.Projection.Years, cfg.Projection.Assumptions),
	}
	return New(append(base, opts...)...), nil
}

func (p *Pipeline) Resolver() *synonym.Resolver { return p.resolver }

func (p *Pipeline) Overrides() *synonym.OverrideRegistry { return p.overrides }

func (p *Pipeline) ChartRegistry() *charts.Registry { return p.assigner.Registry() }

// Run executes the pipeline on in. Data problems are reported as issues on
// the result; an error is returned only when the pipeline itself is unusable
// or ctx is done before the run completes.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if p == nil || p.resolver == nil || p.validator == nil || p.assigner == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{
		RunID:       uuid.New(),
		Issues:      []models.ValidationIssue{},
		Suggestions: []models.ValidationSuggestion{},
	}
	log := p.log.With().Str("run_id", res.RunID.String()).Logger()

	// -------------------------------------------------------------------------
	// 1. Resolve raw names
	// -------------------------------------------------------------------------
	resolution := p.resolver.ResolveAll(in.Fields, p.mergeOverrides(in))

	// -------------------------------------------------------------------------
	// 2. Unit detection
	// -------------------------------------------------------------------------
	res.Unit = detectUnit(in.Labels, resolution)
	if res.Unit.Mixed {
		res.Issues = append(res.Issues, models.ValidationIssue{
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("values span inconsistent magnitudes (max %.0f, mean %.0f)", res.Unit.MaxValue, res.Unit.Mean),
		})
		res.Suggestions = append(res.Suggestions, models.ValidationSuggestion{
			Type:    models.SuggestUnitConversion,
			Message: "Some values look like they are expressed in a different unit than the rest",
			Action:  "review_units",
		})
	}
	target := res.Unit.Unit
	if in.TargetUnit != "" {
		if in.TargetUnit.Valid() {
			target = in.TargetUnit
		} else {
			res.Issues = append(res.Issues, models.ValidationIssue{
				Severity:      models.SeverityWarning,
				Message:       fmt.Sprintf("unknown target unit, keeping %s", target),
				OriginalValue: string(in.TargetUnit),
			})
		}
	}

	// -------------------------------------------------------------------------
	// 3. Clean
	// -------------------------------------------------------------------------
	cl := cleaner.New(res.Unit.Unit, target, log)
	set := models.NewFieldSet(target)
	for _, r := range resolution.Fields {
		if v := cl.Clean(r.Match.Canonical, r.Value); v != nil {
			set.Set(r.Match.Canonical, *v, models.ProvenanceReported)
		}
	}
	set.Mapping = resolution.Mapping
	set.Unmapped = resolution.Unmapped
	set.Stats = models.FieldStats{InputFields: len(in.Fields), CleanedFields: len(set.Values)}
	res.Issues = append(res.Issues, cl.Issues()...)
	p.backfill.Derive(set)
	res.Fields = set

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// -------------------------------------------------------------------------
	// 4. Deterministic branch and deep validation in parallel
	// -------------------------------------------------------------------------
	var (
		vres       *validate.Result
		assignment *charts.Assignment
		proj       *ProjectionResult
		projIssues []models.ValidationIssue
		report     *deepvalidate.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	if p.deep != nil && !in.SkipDeepValidation {
		snapshot := set.Clone()
		g.Go(func() error {
			rep, err := p.deep.DeepValidate(gctx, snapshot)
			if err != nil {
				log.Warn().Err(err).Msg("deep validation failed")
				rep = deepvalidate.DefaultReport()
			}
			report = rep
			return nil
		})
	}
	g.Go(func() error {
		vres = p.validator.Validate(set)
		assignment = p.assigner.Assign(set, in.Charts)
		if in.Projection != nil {
			proj, projIssues = p.project(set, *in.Projection)
		}
		return nil
	})
	_ = g.Wait()

	res.IsValid = vres.IsValid && !models.HasErrors(res.Issues)
	res.Confidence = vres.Confidence
	res.Checks = vres.Checks
	res.Issues = append(res.Issues, vres.Issues...)
	res.Charts = assignment
	res.CompletionScore = assignment.CompletionScore
	res.Projection = proj
	res.Issues = append(res.Issues, projIssues...)
	if report != nil {
		res.DeepValidation = report
		res.Issues = append(res.Issues, report.Issues()...)
		html, err := report.RecommendationsHTML()
		if err != nil {
			log.Warn().Err(err).Msg("recommendations not rendered")
		}
		res.RecommendationsHTML = html
	}

	res.Issues = append(res.Issues, syntheticIssues(assignment)...)
	res.Suggestions = append(res.Suggestions, suggest(res, resolution.Unmapped)...)
	res.Duration = time.Since(start)

	log.Info().
		Int("input_fields", set.Stats.InputFields).
		Int("cleaned_fields", set.Stats.CleanedFields).
		Int("unmapped", len(set.Unmapped)).
		Str("unit", string(set.Unit)).
		Bool("valid", res.IsValid).
		Float64("confidence", res.Confidence).
		Float64("completion", res.CompletionScore).
		Dur("duration", res.Duration).
		Msg("pipeline run complete")

	p.saveAudit(ctx, in, res, log)
	return res, nil
}

// Project runs the projection engine directly on a cleaned base set.
func (p *Pipeline) Project(base *models.CanonicalFieldSet, req ProjectionRequest) (*ProjectionResult, []models.ValidationIssue) {
	return p.project(base, req)
}

func (p *Pipeline) project(base *models.CanonicalFieldSet, req ProjectionRequest) (*ProjectionResult, []models.ValidationIssue) {
	years := req.Years
	if years <= 0 {
		years = p.years
	}
	a := p.assumptions
	if req.Assumptions != nil {
		a = *req.Assumptions
	}
	skipped := func(err error) []models.ValidationIssue {
		p.log.Debug().Err(err).Msg("projection skipped")
		return []models.ValidationIssue{{
			Severity: models.SeverityWarning,
			Field:    string(models.Ventas),
			Message:  fmt.Sprintf("projection skipped: %v", err),
		}}
	}

	series := make(map[projection.Scenario]*projection.Series)
	if req.AllScenarios {
		all, err := p.projector.ProjectAll(base, years, a)
		if err != nil {
			return nil, skipped(err)
		}
		series = all
	} else {
		sc, err := projection.ParseScenario(req.Scenario)
		if err != nil {
			return nil, skipped(err)
		}
		s, err := p.projector.Project(base, sc, years, a)
		if err != nil {
			return nil, skipped(err)
		}
		series[sc] = s
	}

	out := &ProjectionResult{
		Series:    series,
		Summaries: make(map[projection.Scenario]projection.Summary, len(series)),
		Linkage:   make(map[projection.Scenario]*projection.LinkageReport, len(series)),
	}
	var issues []models.ValidationIssue
	for sc, s := range series {
		out.Summaries[sc] = projection.Summarize(s)
		rep := projection.CheckLinkages(s, linkageTolerance(s))
		out.Linkage[sc] = rep
		for _, msg := range rep.FailedChecks {
			issues = append(issues, models.ValidationIssue{
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("projection %s: %s", sc, msg),
			})
		}
	}
	return out, issues
}

// linkageTolerance scales the identity tolerance with the size of the
// series so rounding on large figures does not fail the checks.
func linkageTolerance(s *projection.Series) float64 {
	if len(s.Balance) == 0 {
		return 0.01
	}
	return math.Max(0.01, 1e-9*math.Abs(s.Balance[len(s.Balance)-1].TotalAssets))
}

func (p *Pipeline) mergeOverrides(in Input) map[string]models.CanonicalField {
	merged := p.overrides.For(in.ClientID)
	if len(in.Overrides) == 0 {
		return merged
	}
	if merged == nil {
		merged = make(map[string]models.CanonicalField, len(in.Overrides))
	}
	for k, v := range in.Overrides {
		merged[synonym.Normalize(k)] = v
	}
	return merged
}

// detectUnit prefers a unit declared in the labels and otherwise infers it
// from the magnitude of the monetary values.
func detectUnit(labels []string, resolution *synonym.Resolution) units.Detection {
	if u, ok := units.DetectFromLabels(labels); ok {
		return units.Detection{Unit: u, FromLabel: true}
	}
	values := make([]float64, 0, len(resolution.Fields))
	for _, r := range resolution.Fields {
		if !r.Match.Canonical.Monetary() {
			continue
		}
		if v, err := cleaner.ToNumber(r.Value); err == nil {
			values = append(values, v)
		}
	}
	return units.DetectUnit(values)
}

func syntheticIssues(a *charts.Assignment) []models.ValidationIssue {
	if a == nil || len(a.Synthetic) == 0 {
		return nil
	}
	out := make([]models.ValidationIssue, 0, len(a.Synthetic))
	for _, f := range a.Fields.Fields() {
		v, ok := a.Synthetic[f]
		if !ok {
			continue
		}
		val := v
		out = append(out, models.ValidationIssue{
			Severity:       models.SeverityWarning,
			Field:          string(f),
			Message:        "synthetic estimate used for chart display",
			SuggestedValue: &val,
		})
	}
	return out
}

func suggest(res *Result, unmapped []string) []models.ValidationSuggestion {
	var out []models.ValidationSuggestion
	if len(unmapped) > 0 {
		out = append(out, models.ValidationSuggestion{
			Type:    models.SuggestDataCleanup,
			Message: fmt.Sprintf("%d field(s) could not be mapped: %s", len(unmapped), strings.Join(unmapped, ", ")),
			Action:  "add_client_override",
		})
	}

	unparsable := 0
	for _, is := range res.Issues {
		if is.Severity == models.SeverityError && strings.HasPrefix(is.Message, "cannot parse") {
			unparsable++
		}
	}
	if unparsable > 0 {
		out = append(out, models.ValidationSuggestion{
			Type:    models.SuggestDataCleanup,
			Message: fmt.Sprintf("%d value(s) could not be read as numbers", unparsable),
			Action:  "fix_source_values",
		})
	}

	if b := res.Checks.Balance; b != nil && !b.IsBalanced {
		out = append(out, models.ValidationSuggestion{
			Type:    models.SuggestCalculation,
			Message: fmt.Sprintf("Total assets should equal liabilities plus equity (%.2f)", b.ComputedAssets),
			Action:  "recalculate_balance",
		})
	}

	if res.Charts != nil {
		missing := make(map[models.CanonicalField]bool)
		for _, c := range res.Charts.Charts {
			for _, f := range c.MissingFields {
				missing[f] = true
			}
		}
		if len(missing) > 0 {
			names := make([]string, 0, len(missing))
			for _, f := range res.Fields.Fields() {
				delete(missing, f)
			}
			for f := range missing {
				names = append(names, string(f))
			}
			if len(names) > 0 {
				sort.Strings(names)
				out = append(out, models.ValidationSuggestion{
					Type:    models.SuggestMissingData,
					Message: "Charts are incomplete without: " + strings.Join(names, ", "),
					Action:  "provide_missing_fields",
				})
			}
		}
	}
	return out
}

func (p *Pipeline) saveAudit(ctx context.Context, in Input, res *Result, log zerolog.Logger) {
	if p.audit == nil {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		log.Warn().Err(err).Msg("audit: marshal result")
		body = nil
	}
	rec := &store.AuditRecord{
		RunID:           res.RunID,
		UserID:          in.UserID,
		SessionID:       in.SessionID,
		FileID:          in.FileID,
		Unit:            string(res.Fields.Unit),
		InputFields:     res.Fields.Stats.InputFields,
		CleanedFields:   res.Fields.Stats.CleanedFields,
		IsValid:         res.IsValid,
		Confidence:      res.Confidence,
		CompletionScore: res.CompletionScore,
		IssueCount:      len(res.Issues),
		Result:          body,
		CreatedAt:       time.Now().UTC(),
	}
	if err := p.audit.Save(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("audit record not saved")
	}
}
