package backfill

import (
	"math"

	"financial_dashboard/pkg/models"
)

type derivation struct {
	target  models.CanonicalField
	inputs  []models.CanonicalField
	compute func(in []float64) (float64, bool)
}

// Expenses may be reported signed or unsigned; derivations use magnitudes.
var derivations = []derivation{
	{models.MargenBruto, []models.CanonicalField{models.Ventas, models.CosteVentas}, func(in []float64) (float64, bool) {
		return in[0] - math.Abs(in[1]), true
	}},
	{models.EBITDA, []models.CanonicalField{models.Ventas, models.CosteVentas, models.GastosPersonal, models.OtrosGastos}, func(in []float64) (float64, bool) {
		return in[0] - math.Abs(in[1]) - math.Abs(in[2]) - math.Abs(in[3]), true
	}},
	{models.EBIT, []models.CanonicalField{models.EBITDA, models.Amortizaciones}, func(in []float64) (float64, bool) {
		return in[0] - math.Abs(in[1]), true
	}},
	{models.RatioEndeudamiento, []models.CanonicalField{models.PasivoTotal, models.ActivoTotal}, func(in []float64) (float64, bool) {
		if in[1] == 0 {
			return 0, false
		}
		return in[0] / in[1], true
	}},
}

// Derive computes margen_bruto, ebitda, ebit and ratio_endeudamiento in place
// when absent and their inputs exist. Supplied values are never replaced. A
// derived value is tagged synthetic when any input is synthetic.
func (e *Engine) Derive(set *models.CanonicalFieldSet) []models.CanonicalField {
	if set == nil {
		return nil
	}
	var added []models.CanonicalField
	for _, d := range derivations {
		if set.Has(d.target) {
			continue
		}
		in, ok := gather(set, d.inputs)
		if !ok {
			continue
		}
		v, ok := d.compute(in)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		prov := models.ProvenanceDerived
		for _, f := range d.inputs {
			if set.ProvenanceOf(f) == models.ProvenanceSynthetic {
				prov = models.ProvenanceSynthetic
				break
			}
		}
		set.Set(d.target, v, prov)
		added = append(added, d.target)
	}
	return added
}
