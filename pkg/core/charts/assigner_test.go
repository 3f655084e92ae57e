package charts

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"financial_dashboard/pkg/models"
)

func newSet(values map[models.CanonicalField]float64) *models.CanonicalFieldSet {
	s := models.NewFieldSet(models.UnitThousands)
	for f, v := range values {
		s.Set(f, v, models.ProvenanceReported)
	}
	return s
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name           string
		rf, rt, of, ot int
		expected       float64
	}{
		{"all required, no optional slots", 4, 4, 0, 0, 1.0},
		{"all required, zero optional found", 4, 4, 0, 4, 0.8},
		{"half and half", 2, 4, 2, 4, 0.5},
		{"nothing", 0, 3, 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.rf, tt.rt, tt.of, tt.ot)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAssignProfitLossBackfill(t *testing.T) {
	a := NewAssigner(nil, nil, zerolog.Nop())
	input := newSet(map[models.CanonicalField]float64{models.Ventas: 1200})

	out := a.Assign(input, []string{"profit_loss"})

	if len(out.Charts) != 1 {
		t.Fatalf("charts = %d", len(out.Charts))
	}
	pl := out.Charts[0]
	if math.Abs(pl.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", pl.Confidence)
	}
	if pl.RequiredFound != 4 || pl.OptionalFound != 0 {
		t.Errorf("found required=%d optional=%d", pl.RequiredFound, pl.OptionalFound)
	}

	expected := map[models.CanonicalField]float64{
		models.CosteVentas:    780,
		models.GastosPersonal: 216,
		models.OtrosGastos:    144,
	}
	for f, want := range expected {
		if math.Abs(pl.SyntheticData[f]-want) > 1e-9 {
			t.Errorf("synthetic %s = %v, want %v", f, pl.SyntheticData[f], want)
		}
		if out.Fields.ProvenanceOf(f) != models.ProvenanceSynthetic {
			t.Errorf("%s not tagged synthetic", f)
		}
	}
	if out.Fields.ProvenanceOf(models.Ventas) != models.ProvenanceReported {
		t.Error("reported field retagged")
	}
	if out.Fields.ProvenanceOf(models.EBITDA) != models.ProvenanceSynthetic {
		t.Error("ebitda computed from estimates must be tagged synthetic")
	}
	if input.Has(models.CosteVentas) {
		t.Error("input set mutated")
	}
}

func TestAssignReportsUnfillableAndUnknown(t *testing.T) {
	a := NewAssigner(nil, nil, zerolog.Nop())
	out := a.Assign(newSet(map[models.CanonicalField]float64{models.Ventas: 1000}), []string{"financial_ratios", "pie_of_dreams"})

	if len(out.Charts) != 2 {
		t.Fatalf("charts = %d, want 2", len(out.Charts))
	}
	fr := out.Charts[0]
	if len(fr.MissingFields) != 3 {
		t.Errorf("missing = %v, want activo_total, patrimonio_neto, resultado_neto", fr.MissingFields)
	}
	if len(out.UnknownCharts) != 1 || out.UnknownCharts[0] != "pie_of_dreams" {
		t.Errorf("unknown = %v", out.UnknownCharts)
	}
	if out.Charts[1].Confidence != 0 {
		t.Errorf("unknown chart confidence = %v", out.Charts[1].Confidence)
	}
	want := (fr.Confidence + 0) / 2
	if math.Abs(out.CompletionScore-want) > 1e-9 {
		t.Errorf("completion = %v, want %v", out.CompletionScore, want)
	}
}

func TestAssignConfidenceMonotonic(t *testing.T) {
	a := NewAssigner(nil, nil, zerolog.Nop())
	steps := []map[models.CanonicalField]float64{
		{models.Ventas: 1000},
		{models.ActivoTotal: 2000},
		{models.PatrimonioNeto: 800},
		{models.ResultadoNeto: 90},
		{models.ActivoCorriente: 700},
		{models.FlujoOperativo: 120},
		{models.VentasExportacion: 300},
		{models.DeudaCortoPlazo: 100},
		{models.Tesoreria: 60},
	}

	acc := map[models.CanonicalField]float64{}
	prev := map[string]float64{}
	for i, step := range steps {
		for f, v := range step {
			acc[f] = v
		}
		out := a.Assign(newSet(acc), nil)
		for _, c := range out.Charts {
			if c.Confidence+1e-12 < prev[c.ChartID] {
				t.Errorf("step %d: %s confidence dropped %v -> %v", i, c.ChartID, prev[c.ChartID], c.Confidence)
			}
			prev[c.ChartID] = c.Confidence
		}
	}
}

func TestComputeKPIsGuardsDenominators(t *testing.T) {
	set := newSet(map[models.CanonicalField]float64{
		models.Ventas:            0,
		models.EBITDA:            150,
		models.ResultadoNeto:     60,
		models.PatrimonioNeto:    400,
		models.ActivoTotal:       1000,
		models.PasivoTotal:       600,
		models.ActivoCorriente:   300,
		models.PasivoCorriente:   0,
		models.GastosFinancieros: -30,
	})

	kpis := ComputeKPIs(set)

	for _, absent := range []string{"margen_bruto_pct", "margen_ebitda_pct", "margen_neto_pct", "ratio_liquidez", "apalancamiento"} {
		if _, ok := kpis[absent]; ok {
			t.Errorf("%s should be absent, got %v", absent, kpis[absent])
		}
	}
	expected := map[string]float64{
		"roe":                 0.15,
		"roa":                 0.06,
		"ratio_endeudamiento": 0.6,
		"cobertura_intereses": 5,
	}
	for k, want := range expected {
		if got, ok := kpis[k]; !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
	for k, v := range kpis {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite", k)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	want := []string{"profit_loss", "balance_sheet", "cash_flow", "financial_ratios", "sales_segments", "debt_service"}
	ids := reg.IDs()
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}
