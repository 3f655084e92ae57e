// Package charts fits a canonical field set to the dashboard's chart types,
// backfilling what each chart needs and computing the global KPI set.
package charts

import "financial_dashboard/pkg/models"

// Slot binds a canonical field to a named position in a chart.
type Slot struct {
	Field models.CanonicalField `json:"field"`
	Name  string                `json:"slot"`
}

// Definition declares what a chart needs.
type Definition struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Required  []Slot                  `json:"required"`
	Optional  []Slot                  `json:"optional"`
	Generates []models.CanonicalField `json:"generates,omitempty"`
}

// RequiredFields lists the canonical fields of the required slots.
func (d Definition) RequiredFields() []models.CanonicalField {
	out := make([]models.CanonicalField, len(d.Required))
	for i, s := range d.Required {
		out[i] = s.Field
	}
	return out
}

// Registry is the fixed set of known charts. Read-only after construction.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds a registry preserving the given order.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.ID]; !dup {
			r.order = append(r.order, d.ID)
		}
		r.defs[d.ID] = d
	}
	return r
}

// Get returns the chart definition for id.
func (r *Registry) Get(id string) (Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every chart ID in registry order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns every definition in registry order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// DefaultRegistry returns the dashboard charts.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Definition{
			ID:    "profit_loss",
			Title: "Cuenta de resultados",
			Required: []Slot{
				{models.Ventas, "revenue"},
				{models.CosteVentas, "cost_of_sales"},
				{models.GastosPersonal, "staff_costs"},
				{models.OtrosGastos, "other_opex"},
			},
			Optional: []Slot{
				{models.Amortizaciones, "depreciation"},
				{models.GastosFinancieros, "interest"},
				{models.ImpuestoSociedades, "taxes"},
				{models.ResultadoNeto, "net_income"},
			},
			Generates: []models.CanonicalField{models.MargenBruto, models.EBITDA, models.EBIT},
		},
		Definition{
			ID:    "balance_sheet",
			Title: "Balance de situación",
			Required: []Slot{
				{models.ActivoTotal, "total_assets"},
				{models.PasivoTotal, "total_liabilities"},
				{models.PatrimonioNeto, "equity"},
			},
			Optional: []Slot{
				{models.ActivoCorriente, "current_assets"},
				{models.ActivoNoCorriente, "non_current_assets"},
				{models.PasivoCorriente, "current_liabilities"},
				{models.PasivoNoCorriente, "non_current_liabilities"},
				{models.Tesoreria, "cash"},
				{models.Existencias, "inventory"},
				{models.Deudores, "receivables"},
			},
			Generates: []models.CanonicalField{models.RatioEndeudamiento},
		},
		Definition{
			ID:    "cash_flow",
			Title: "Flujos de caja",
			Required: []Slot{
				{models.FlujoOperativo, "operating"},
			},
			Optional: []Slot{
				{models.FlujoInversion, "investing"},
				{models.FlujoFinanciacion, "financing"},
				{models.Capex, "capex"},
				{models.Tesoreria, "closing_cash"},
			},
		},
		Definition{
			ID:    "financial_ratios",
			Title: "Ratios financieros",
			Required: []Slot{
				{models.Ventas, "revenue"},
				{models.ActivoTotal, "total_assets"},
				{models.PatrimonioNeto, "equity"},
				{models.ResultadoNeto, "net_income"},
			},
			Optional: []Slot{
				{models.ActivoCorriente, "current_assets"},
				{models.PasivoCorriente, "current_liabilities"},
				{models.EBITDA, "ebitda"},
				{models.PasivoTotal, "total_liabilities"},
			},
			Generates: []models.CanonicalField{models.RatioEndeudamiento},
		},
		Definition{
			ID:    "sales_segments",
			Title: "Ventas por segmento",
			Required: []Slot{
				{models.Ventas, "total"},
			},
			Optional: []Slot{
				{models.VentasNacional, "domestic"},
				{models.VentasExportacion, "export"},
				{models.VentasOnline, "online"},
			},
		},
		Definition{
			ID:    "debt_service",
			Title: "Servicio de la deuda",
			Required: []Slot{
				{models.DeudaFinanciera, "financial_debt"},
				{models.GastosFinancieros, "interest"},
				{models.EBITDA, "ebitda"},
			},
			Optional: []Slot{
				{models.DeudaCortoPlazo, "short_term_debt"},
				{models.DeudaLargoPlazo, "long_term_debt"},
				{models.FlujoOperativo, "operating_cash_flow"},
			},
		},
	)
}
