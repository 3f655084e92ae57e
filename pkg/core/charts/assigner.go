package charts

import (
	"math"

	"github.com/rs/zerolog"

	"financial_dashboard/pkg/core/backfill"
	"financial_dashboard/pkg/models"
)

// Confidence weights.
const (
	RequiredWeight = 0.8
	OptionalWeight = 0.2
)

// Assignment is the result of assigning a field set to charts.
type Assignment struct {
	Charts          []models.ChartAssignment          `json:"charts"`
	CompletionScore float64                           `json:"completion_score"`
	KPIs            map[string]float64                `json:"kpis"`
	Synthetic       map[models.CanonicalField]float64 `json:"synthetic,omitempty"`
	UnknownCharts   []string                          `json:"unknown_charts,omitempty"`
	// Fields is the merged real and synthetic set the charts were built from.
	Fields *models.CanonicalFieldSet `json:"fields"`
}

// Assigner maps field sets onto the chart registry.
type Assigner struct {
	registry *Registry
	backfill *backfill.Engine
	log      zerolog.Logger
}

// NewAssigner creates an assigner. A nil registry uses DefaultRegistry.
func NewAssigner(reg *Registry, bf *backfill.Engine, log zerolog.Logger) *Assigner {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if bf == nil {
		bf = backfill.NewEngine(backfill.DefaultRatios(), log)
	}
	return &Assigner{registry: reg, backfill: bf, log: log}
}

// Registry returns the chart registry in use.
func (a *Assigner) Registry() *Registry { return a.registry }

// Assign fits set to each requested chart, in order. An empty chartIDs list
// means every registered chart. The input set is not modified.
func (a *Assigner) Assign(set *models.CanonicalFieldSet, chartIDs []string) *Assignment {
	merged := set.Clone()
	if merged == nil {
		merged = models.NewFieldSet(models.UnitEuros)
	}
	a.backfill.Derive(merged)

	if len(chartIDs) == 0 {
		chartIDs = a.registry.IDs()
	}

	out := &Assignment{
		Charts:    make([]models.ChartAssignment, 0, len(chartIDs)),
		Synthetic: make(map[models.CanonicalField]float64),
	}

	var total float64
	for _, id := range chartIDs {
		def, ok := a.registry.Get(id)
		if !ok {
			out.UnknownCharts = append(out.UnknownCharts, id)
			out.Charts = append(out.Charts, models.ChartAssignment{ChartID: id})
			a.log.Warn().Str("chart", id).Msg("unknown chart requested")
			continue
		}

		ca := models.ChartAssignment{
			ChartID:       def.ID,
			Title:         def.Title,
			RequiredTotal: len(def.Required),
			OptionalTotal: len(def.Optional),
		}

		var missing []models.CanonicalField
		for _, f := range def.RequiredFields() {
			if !merged.Has(f) {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			res := a.backfill.Backfill(merged, missing)
			merged = res.Filled
			a.backfill.Derive(merged)
			if len(res.Synthetic) > 0 {
				ca.SyntheticData = res.Synthetic
				for f, v := range res.Synthetic {
					out.Synthetic[f] = v
				}
			}
			ca.MissingFields = res.Unfillable
		}

		ca.DataMapping = make(map[models.CanonicalField]string)
		for _, s := range def.Required {
			if merged.Has(s.Field) {
				ca.RequiredFound++
				ca.DataMapping[s.Field] = s.Name
			}
		}
		for _, s := range def.Optional {
			if merged.Has(s.Field) {
				ca.OptionalFound++
				ca.DataMapping[s.Field] = s.Name
			}
		}
		ca.Confidence = Confidence(ca.RequiredFound, ca.RequiredTotal, ca.OptionalFound, ca.OptionalTotal)
		total += ca.Confidence

		a.log.Debug().
			Str("chart", def.ID).
			Float64("confidence", ca.Confidence).
			Int("synthetic", len(ca.SyntheticData)).
			Int("missing", len(ca.MissingFields)).
			Msg("chart assigned")
		out.Charts = append(out.Charts, ca)
	}

	if len(out.Charts) > 0 {
		out.CompletionScore = total / float64(len(out.Charts))
	}
	out.KPIs = ComputeKPIs(merged)
	out.Fields = merged
	return out
}

// Confidence is 0.8 x required ratio + 0.2 x optional ratio. With no optional
// slots the optional ratio counts as 1.
func Confidence(reqFound, reqTotal, optFound, optTotal int) float64 {
	reqRatio := 1.0
	if reqTotal > 0 {
		reqRatio = float64(reqFound) / float64(reqTotal)
	}
	optRatio := 1.0
	if optTotal > 0 {
		optRatio = float64(optFound) / float64(optTotal)
	}
	return RequiredWeight*reqRatio + OptionalWeight*optRatio
}

// ComputeKPIs derives the dashboard KPIs. A KPI whose inputs are missing or
// whose denominator is zero is left out.
func ComputeKPIs(set *models.CanonicalFieldSet) map[string]float64 {
	kpis := make(map[string]float64)
	put := func(name string, num float64, okNum bool, den float64, okDen bool, scale float64) {
		if !okNum || !okDen || den == 0 {
			return
		}
		v := num / den * scale
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		kpis[name] = v
	}

	ventas, okV := set.Get(models.Ventas)
	margen, okM := set.Get(models.MargenBruto)
	ebitda, okE := set.Get(models.EBITDA)
	neto, okN := set.Get(models.ResultadoNeto)
	equity, okPN := set.Get(models.PatrimonioNeto)
	assets, okAT := set.Get(models.ActivoTotal)
	liab, okPT := set.Get(models.PasivoTotal)
	debt, okD := set.Get(models.DeudaFinanciera)
	ca, okAC := set.Get(models.ActivoCorriente)
	cl, okPC := set.Get(models.PasivoCorriente)
	interest, okI := set.Get(models.GastosFinancieros)

	put("margen_bruto_pct", margen, okM, ventas, okV, 100)
	put("margen_ebitda_pct", ebitda, okE, ventas, okV, 100)
	put("margen_neto_pct", neto, okN, ventas, okV, 100)
	put("roe", neto, okN, equity, okPN, 1)
	put("roa", neto, okN, assets, okAT, 1)
	put("ratio_endeudamiento", liab, okPT, assets, okAT, 1)
	put("apalancamiento", debt, okD, equity, okPN, 1)
	put("ratio_liquidez", ca, okAC, cl, okPC, 1)
	put("cobertura_intereses", ebitda, okE, math.Abs(interest), okI, 1)
	return kpis
}
