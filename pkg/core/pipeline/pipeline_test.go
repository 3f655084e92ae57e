package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"financial_dashboard/pkg/core/deepvalidate"
	"financial_dashboard/pkg/core/projection"
	"financial_dashboard/pkg/core/store"
	"financial_dashboard/pkg/models"
)

type stubValidator struct {
	rep   *deepvalidate.Report
	err   error
	block bool
}

func (s *stubValidator) DeepValidate(ctx context.Context, set *models.CanonicalFieldSet) (*deepvalidate.Report, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.rep, s.err
}

func hasIssue(issues []models.ValidationIssue, sev models.Severity, substr string) bool {
	for _, is := range issues {
		if is.Severity == sev && strings.Contains(is.Message, substr) {
			return true
		}
	}
	return false
}

func hasSuggestion(s []models.ValidationSuggestion, typ models.SuggestionType) bool {
	for _, sg := range s {
		if sg.Type == typ {
			return true
		}
	}
	return false
}

func TestRunGrossMarginScenario(t *testing.T) {
	p := New()
	res, err := p.Run(context.Background(), Input{
		Fields: models.RawFieldSet{"Ventas": "1.500,00", "Coste Ventas": 900},
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := map[models.CanonicalField]float64{
		models.Ventas:      1500,
		models.CosteVentas: 900,
		models.MargenBruto: 600,
	}
	for f, want := range expected {
		got, ok := res.Fields.Get(f)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v (present=%v), want %v", f, got, ok, want)
		}
	}
	if res.Fields.ProvenanceOf(models.MargenBruto) != models.ProvenanceDerived {
		t.Errorf("margen_bruto provenance = %s", res.Fields.ProvenanceOf(models.MargenBruto))
	}
	if models.HasErrors(res.Issues) {
		t.Errorf("unexpected errors: %+v", res.Issues)
	}
	if res.Fields.Stats.InputFields != 2 || res.Fields.Stats.CleanedFields != 2 {
		t.Errorf("stats = %+v", res.Fields.Stats)
	}
	if !res.IsValid || res.Confidence != 1 {
		t.Errorf("valid=%v confidence=%v", res.IsValid, res.Confidence)
	}
	if res.RunID.String() == "" || res.Charts == nil {
		t.Error("missing run id or chart assignment")
	}
}

func TestRunBalanceScenario(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields: models.RawFieldSet{"activo_total": 1000, "pasivo_total": 900, "patrimonio_neto": 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsValid {
		t.Error("unbalanced sheet reported valid")
	}
	if !models.HasErrors(res.Issues) {
		t.Errorf("expected a balance error, got %+v", res.Issues)
	}
	if !hasSuggestion(res.Suggestions, models.SuggestCalculation) {
		t.Errorf("expected a calculation suggestion, got %+v", res.Suggestions)
	}
}

func TestRunUnmappedAndUnparsable(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields: models.RawFieldSet{
			"ventas":            "abc",
			"tesoreria":         120,
			"xyzzy foo bar baz": 7,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fields.Unmapped) != 1 || res.Fields.Unmapped[0] != "xyzzy foo bar baz" {
		t.Errorf("unmapped = %v", res.Fields.Unmapped)
	}
	if res.Fields.Has(models.Ventas) {
		t.Error("unparsable value must not be coerced")
	}
	if !hasIssue(res.Issues, models.SeverityError, "cannot parse") {
		t.Errorf("missing parse error: %+v", res.Issues)
	}
	if res.IsValid {
		t.Error("run with a parse error reported valid")
	}
	if !hasSuggestion(res.Suggestions, models.SuggestDataCleanup) {
		t.Errorf("suggestions = %+v", res.Suggestions)
	}
}

func TestRunUnitFromLabelsAndTarget(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields:     models.RawFieldSet{"ventas": 1200, "num_empleados": 40},
		Labels:     []string{"Cuenta de resultados (en miles de euros)"},
		TargetUnit: models.UnitEuros,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Unit.FromLabel || res.Unit.Unit != models.UnitThousands {
		t.Errorf("detection = %+v", res.Unit)
	}
	if res.Fields.Unit != models.UnitEuros {
		t.Errorf("unit = %s", res.Fields.Unit)
	}
	if v, _ := res.Fields.Get(models.Ventas); math.Abs(v-1_200_000) > 1e-6 {
		t.Errorf("ventas = %v, want 1200000", v)
	}
	if v, _ := res.Fields.Get(models.NumEmpleados); v != 40 {
		t.Errorf("num_empleados rescaled to %v", v)
	}
}

func TestRunInvalidTargetUnitKeepsDetected(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields:     models.RawFieldSet{"ventas": 1200},
		TargetUnit: "billions",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Fields.Unit != res.Unit.Unit {
		t.Errorf("unit = %s, detected %s", res.Fields.Unit, res.Unit.Unit)
	}
	if !hasIssue(res.Issues, models.SeverityWarning, "unknown target unit") {
		t.Errorf("issues = %+v", res.Issues)
	}
}

func TestRunOverrides(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields:    models.RawFieldSet{"Partida 7": 500},
		Overrides: map[string]models.CanonicalField{"Partida 7": models.Tesoreria},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := res.Fields.Get(models.Tesoreria); !ok || v != 500 {
		t.Errorf("tesoreria = %v, %v", v, ok)
	}
}

func TestRunChartsBackfillWarnings(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields: models.RawFieldSet{"ventas": 1200},
		Charts: []string{"profit_loss"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.CompletionScore-0.8) > 1e-9 {
		t.Errorf("completion = %v, want 0.8", res.CompletionScore)
	}
	for _, f := range []models.CanonicalField{models.CosteVentas, models.GastosPersonal, models.OtrosGastos} {
		found := false
		for _, is := range res.Issues {
			if is.Field == string(f) && is.Severity == models.SeverityWarning && is.SuggestedValue != nil {
				found = true
			}
		}
		if !found {
			t.Errorf("no synthetic warning for %s", f)
		}
	}
	if res.Fields.Has(models.CosteVentas) {
		t.Error("synthetic values must stay out of the cleaned field set")
	}
}

func TestRunProjection(t *testing.T) {
	a := projection.DefaultAssumptions()
	a.GrowthRate = 12.5
	res, err := New().Run(context.Background(), Input{
		Fields: models.RawFieldSet{
			"ventas": 1200, "ebitda": 180, "activo_total": 1000,
			"pasivo_total": 600, "patrimonio_neto": 400,
		},
		Projection: &ProjectionRequest{Years: 5, Assumptions: &a, AllScenarios: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Projection == nil || len(res.Projection.Series) != 3 {
		t.Fatalf("projection = %+v", res.Projection)
	}
	opt := res.Projection.Series[projection.ScenarioOptimista]
	if math.Abs(opt.PL[5].Revenue-1200*math.Pow(1.125, 5)) > 0.01 {
		t.Errorf("revenue(5) = %v", opt.PL[5].Revenue)
	}
	for sc, rep := range res.Projection.Linkage {
		if !rep.AllPassed {
			t.Errorf("%s linkage: %v", sc, rep.FailedChecks)
		}
	}
	if math.Abs(res.Projection.Summaries[projection.ScenarioBase].RevenueCAGR-12.5) > 0.01 {
		t.Errorf("summary = %+v", res.Projection.Summaries[projection.ScenarioBase])
	}
}

func TestRunProjectionWithoutRevenue(t *testing.T) {
	res, err := New().Run(context.Background(), Input{
		Fields:     models.RawFieldSet{"tesoreria": 50},
		Projection: &ProjectionRequest{Scenario: "base"},
	})
	if err != nil {
		t.Fatalf("projection failures must not abort the run: %v", err)
	}
	if res.Projection != nil {
		t.Error("projection built without revenue")
	}
	if !hasIssue(res.Issues, models.SeverityWarning, "projection skipped") {
		t.Errorf("issues = %+v", res.Issues)
	}
}

func TestRunDeepValidationFallback(t *testing.T) {
	guarded := deepvalidate.NewGuarded(&stubValidator{block: true}, deepvalidate.WithTimeout(50*time.Millisecond))
	p := New(WithDeepValidator(guarded))

	start := time.Now()
	res, err := p.Run(context.Background(), Input{Fields: models.RawFieldSet{"ventas": 1000}})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run took %v", elapsed)
	}
	if res.DeepValidation == nil || !res.DeepValidation.Fallback {
		t.Fatalf("deep validation = %+v", res.DeepValidation)
	}
	if !hasIssue(res.Issues, models.SeverityInfo, deepvalidate.FallbackMessage) {
		t.Errorf("fallback not surfaced: %+v", res.Issues)
	}
}

func TestRunDeepValidationFindings(t *testing.T) {
	rep := deepvalidate.DefaultReport()
	rep.Fallback = false
	rep.OverallScore = 0.4
	rep.Warnings = nil
	rep.CriticalErrors = []deepvalidate.Finding{{Field: "tesoreria", Message: "cash exceeds total assets"}}
	rep.Recommendations = []string{"Revisar **tesoreria**"}
	p := New(WithDeepValidator(&stubValidator{rep: rep}))

	res, err := p.Run(context.Background(), Input{Fields: models.RawFieldSet{"ventas": 1000}})
	if err != nil {
		t.Fatal(err)
	}
	if !hasIssue(res.Issues, models.SeverityWarning, "cash exceeds total assets") {
		t.Errorf("issues = %+v", res.Issues)
	}
	if !res.IsValid {
		t.Error("advisory findings must not invalidate the run")
	}
	if !strings.Contains(res.RecommendationsHTML, "<li>Revisar <strong>tesoreria</strong></li>") {
		t.Errorf("recommendations html = %q", res.RecommendationsHTML)
	}

	res, err = p.Run(context.Background(), Input{Fields: models.RawFieldSet{"ventas": 1000}, SkipDeepValidation: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.DeepValidation != nil {
		t.Error("deep validation ran although skipped")
	}
}

func TestRunDeepValidatorErrorFallsBack(t *testing.T) {
	p := New(WithDeepValidator(&stubValidator{err: errors.New("boom")}))
	res, err := p.Run(context.Background(), Input{Fields: models.RawFieldSet{"ventas": 1000}})
	if err != nil {
		t.Fatal(err)
	}
	if res.DeepValidation == nil || !res.DeepValidation.Fallback {
		t.Errorf("deep validation = %+v", res.DeepValidation)
	}
}

func TestRunSavesAudit(t *testing.T) {
	repo := store.NewMemoryAuditRepo()
	p := New(WithAudit(repo))
	res, err := p.Run(context.Background(), Input{
		Fields:    models.RawFieldSet{"ventas": 1000, "coste_ventas": 600},
		UserID:    "u1",
		SessionID: "s1",
		FileID:    "f1",
	})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := repo.Get(context.Background(), res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.UserID != "u1" || rec.CleanedFields != 2 || !rec.IsValid || len(rec.Result) == 0 {
		t.Errorf("record = %+v", rec)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Run(ctx, Input{Fields: models.RawFieldSet{"ventas": 1}}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
