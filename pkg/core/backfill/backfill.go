// Package backfill fills missing fields with ratio-based estimates and derives
// computed fields. Every value it produces is tagged in the field set's
// provenance so real and estimated data never mix silently.
package backfill

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"financial_dashboard/pkg/models"
)

// Ratios are the domain assumptions used to estimate missing fields.
type Ratios struct {
	CosteVentasPct       float64 `yaml:"coste_ventas_pct" json:"coste_ventas_pct"`             // of ventas
	GastosPersonalPct    float64 `yaml:"gastos_personal_pct" json:"gastos_personal_pct"`       // of ventas
	OtrosGastosPct       float64 `yaml:"otros_gastos_pct" json:"otros_gastos_pct"`             // of ventas
	ActivoCorrientePct   float64 `yaml:"activo_corriente_pct" json:"activo_corriente_pct"`     // of activo_total
	DeudaFinancieraPct   float64 `yaml:"deuda_financiera_pct" json:"deuda_financiera_pct"`     // of pasivo_total
	FlujoOperativoPct    float64 `yaml:"flujo_operativo_pct" json:"flujo_operativo_pct"`       // of ebitda
	TesoreriaPct         float64 `yaml:"tesoreria_pct" json:"tesoreria_pct"`                   // of ventas
	GastosFinancierosPct float64 `yaml:"gastos_financieros_pct" json:"gastos_financieros_pct"` // of deuda_financiera
	AmortizacionesPct    float64 `yaml:"amortizaciones_pct" json:"amortizaciones_pct"`         // of ventas
	PasivoCorrientePct   float64 `yaml:"pasivo_corriente_pct" json:"pasivo_corriente_pct"`     // of pasivo_total
}

// DefaultRatios returns the standard estimation ratios.
func DefaultRatios() Ratios {
	return Ratios{
		CosteVentasPct:       0.65,
		GastosPersonalPct:    0.18,
		OtrosGastosPct:       0.12,
		ActivoCorrientePct:   0.5,
		DeudaFinancieraPct:   0.65,
		FlujoOperativoPct:    0.85,
		TesoreriaPct:         0.075,
		GastosFinancierosPct: 0.05,
		AmortizacionesPct:    0.03,
		PasivoCorrientePct:   0.4,
	}
}

// Rule estimates Target from its inputs.
type Rule struct {
	Target  models.CanonicalField   `json:"target"`
	Inputs  []models.CanonicalField `json:"inputs"`
	Formula string                  `json:"formula"`
	compute func(in []float64) float64
}

func ratioRule(target, base models.CanonicalField, pct float64, formula string) Rule {
	return Rule{
		Target:  target,
		Inputs:  []models.CanonicalField{base},
		Formula: formula,
		compute: func(in []float64) float64 { return pct * in[0] },
	}
}

// Engine applies backfill rules. It holds no per-run state.
type Engine struct {
	rules map[models.CanonicalField][]Rule
	log   zerolog.Logger
}

// NewEngine builds an engine from ratios. Zero ratios take defaults.
func NewEngine(r Ratios, log zerolog.Logger) *Engine {
	r = withDefaults(r)
	rules := []Rule{
		{
			Target:  models.PasivoTotal,
			Inputs:  []models.CanonicalField{models.ActivoTotal, models.PatrimonioNeto},
			Formula: "activo_total - patrimonio_neto",
			compute: func(in []float64) float64 { return in[0] - in[1] },
		},
		ratioRule(models.CosteVentas, models.Ventas, r.CosteVentasPct, "coste_ventas_pct * ventas"),
		ratioRule(models.GastosPersonal, models.Ventas, r.GastosPersonalPct, "gastos_personal_pct * ventas"),
		ratioRule(models.OtrosGastos, models.Ventas, r.OtrosGastosPct, "otros_gastos_pct * ventas"),
		ratioRule(models.ActivoCorriente, models.ActivoTotal, r.ActivoCorrientePct, "activo_corriente_pct * activo_total"),
		ratioRule(models.DeudaFinanciera, models.PasivoTotal, r.DeudaFinancieraPct, "deuda_financiera_pct * pasivo_total"),
		ratioRule(models.FlujoOperativo, models.EBITDA, r.FlujoOperativoPct, "flujo_operativo_pct * ebitda"),
		ratioRule(models.Tesoreria, models.Ventas, r.TesoreriaPct, "tesoreria_pct * ventas"),
		ratioRule(models.GastosFinancieros, models.DeudaFinanciera, r.GastosFinancierosPct, "gastos_financieros_pct * deuda_financiera"),
		ratioRule(models.Amortizaciones, models.Ventas, r.AmortizacionesPct, "amortizaciones_pct * ventas"),
		ratioRule(models.PasivoCorriente, models.PasivoTotal, r.PasivoCorrientePct, "pasivo_corriente_pct * pasivo_total"),
	}

	e := &Engine{rules: make(map[models.CanonicalField][]Rule), log: log}
	for _, rule := range rules {
		e.rules[rule.Target] = append(e.rules[rule.Target], rule)
	}
	return e
}

func withDefaults(r Ratios) Ratios {
	d := DefaultRatios()
	pick := func(v, def float64) float64 {
		if v <= 0 {
			return def
		}
		return v
	}
	return Ratios{
		CosteVentasPct:       pick(r.CosteVentasPct, d.CosteVentasPct),
		GastosPersonalPct:    pick(r.GastosPersonalPct, d.GastosPersonalPct),
		OtrosGastosPct:       pick(r.OtrosGastosPct, d.OtrosGastosPct),
		ActivoCorrientePct:   pick(r.ActivoCorrientePct, d.ActivoCorrientePct),
		DeudaFinancieraPct:   pick(r.DeudaFinancieraPct, d.DeudaFinancieraPct),
		FlujoOperativoPct:    pick(r.FlujoOperativoPct, d.FlujoOperativoPct),
		TesoreriaPct:         pick(r.TesoreriaPct, d.TesoreriaPct),
		GastosFinancierosPct: pick(r.GastosFinancierosPct, d.GastosFinancierosPct),
		AmortizacionesPct:    pick(r.AmortizacionesPct, d.AmortizacionesPct),
		PasivoCorrientePct:   pick(r.PasivoCorrientePct, d.PasivoCorrientePct),
	}
}

// CanFill reports whether some rule targets f.
func (e *Engine) CanFill(f models.CanonicalField) bool {
	return len(e.rules[f]) > 0
}

// Result is the outcome of Backfill.
type Result struct {
	Filled     *models.CanonicalFieldSet                  `json:"filled"`
	Synthetic  map[models.CanonicalField]float64          `json:"synthetic"`
	Provenance map[models.CanonicalField]models.Provenance `json:"provenance"`
	Applied    []Rule                                     `json:"applied"`
	Unfillable []models.CanonicalField                    `json:"unfillable,omitempty"`
}

// Backfill estimates the fields in required that are missing from set. Present
// values are never overwritten. Rules are retried until no further field can
// be filled, so an estimate may feed another one. The input set is not
// modified.
func (e *Engine) Backfill(set *models.CanonicalFieldSet, required []models.CanonicalField) *Result {
	out := set.Clone()
	if out == nil {
		out = models.NewFieldSet(models.UnitEuros)
	}
	res := &Result{
		Filled:     out,
		Synthetic:  make(map[models.CanonicalField]float64),
		Provenance: make(map[models.CanonicalField]models.Provenance),
	}

	pending := make(map[models.CanonicalField]bool)
	for _, f := range required {
		if !out.Has(f) {
			pending[f] = true
		}
	}

	for progress := true; progress && len(pending) > 0; {
		progress = false
		for _, target := range sortedKeys(pending) {
			for _, rule := range e.rules[target] {
				in, ok := gather(out, rule.Inputs)
				if !ok {
					continue
				}
				v := rule.compute(in)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				out.Set(target, v, models.ProvenanceSynthetic)
				res.Synthetic[target] = v
				res.Provenance[target] = models.ProvenanceSynthetic
				res.Applied = append(res.Applied, rule)
				delete(pending, target)
				progress = true
				e.log.Debug().Str("field", string(target)).Str("formula", rule.Formula).Float64("value", v).Msg("backfilled")
				break
			}
		}
	}

	res.Unfillable = sortedKeys(pending)
	return res
}

func gather(set *models.CanonicalFieldSet, fields []models.CanonicalField) ([]float64, bool) {
	in := make([]float64, len(fields))
	for i, f := range fields {
		v, ok := set.Get(f)
		if !ok {
			return nil, false
		}
		in[i] = v
	}
	return in, true
}

func sortedKeys(m map[models.CanonicalField]bool) []models.CanonicalField {
	out := make([]models.CanonicalField, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
