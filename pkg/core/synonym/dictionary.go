// Package synonym maps free-form field names onto the canonical financial
// vocabulary using client overrides, an alias index and edit-distance matching.
package synonym

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"financial_dashboard/pkg/models"
)

// Entry is one canonical term and its aliases. Score is the table confidence
// of an exact hit on the canonical name; aliases score 0.9 of it.
type Entry struct {
	Canonical models.CanonicalField `json:"canonical"`
	Aliases   []string              `json:"aliases"`
	Score     float64               `json:"score"`
}

const aliasFactor = 0.9

type indexEntry struct {
	canonical models.CanonicalField
	score     float64
	source    string
}

// Dictionary is an immutable lookup index built from entries.
type Dictionary struct {
	index map[string]indexEntry
	keys  []string // sorted, for deterministic fuzzy scans
}

// NewDictionary builds the global index. Canonical names win over aliases when
// both normalize to the same key; among aliases the higher score wins.
func NewDictionary(entries []Entry) *Dictionary {
	d := &Dictionary{index: make(map[string]indexEntry)}

	for _, e := range entries {
		key := Normalize(string(e.Canonical))
		if key == "" {
			continue
		}
		if prev, ok := d.index[key]; ok && prev.score >= e.Score {
			continue
		}
		d.index[key] = indexEntry{canonical: e.Canonical, score: e.Score, source: SourceExact}
	}
	for _, e := range entries {
		for _, a := range e.Aliases {
			key := Normalize(a)
			if key == "" {
				continue
			}
			score := e.Score * aliasFactor
			if prev, ok := d.index[key]; ok && (prev.source == SourceExact || prev.score >= score) {
				continue
			}
			d.index[key] = indexEntry{canonical: e.Canonical, score: score, source: SourceAlias}
		}
	}

	d.keys = make([]string, 0, len(d.index))
	for k := range d.index {
		d.keys = append(d.keys, k)
	}
	sort.Strings(d.keys)
	return d
}

// Len returns the number of index keys.
func (d *Dictionary) Len() int { return len(d.keys) }

// Normalize folds accents, lowercases, and collapses every run of
// non-alphanumerics into a single underscore.
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	sep := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}

// DefaultEntries is the built-in Spanish/English synonym table.
func DefaultEntries() []Entry {
	return []Entry{
		{models.Ventas, []string{"ventas netas", "importe neto de la cifra de negocios", "cifra de negocios", "ingresos", "ingresos de explotacion", "facturacion", "revenue", "sales", "net sales", "turnover"}, 1.0},
		{models.CosteVentas, []string{"coste de ventas", "costo de ventas", "aprovisionamientos", "consumos", "cost of sales", "cogs", "cost of goods sold"}, 1.0},
		{models.MargenBruto, []string{"margen bruto", "beneficio bruto", "gross margin", "gross profit"}, 0.95},
		{models.GastosPersonal, []string{"gastos de personal", "sueldos y salarios", "personal", "staff costs", "personnel expenses", "salaries"}, 1.0},
		{models.OtrosGastos, []string{"otros gastos de explotacion", "otros gastos", "servicios exteriores", "other operating expenses", "opex"}, 0.9},
		{models.EBITDA, []string{"resultado bruto de explotacion", "rbe", "ebitda"}, 1.0},
		{models.Amortizaciones, []string{"amortizacion del inmovilizado", "amortizacion", "dotacion amortizacion", "depreciacion", "depreciation", "d&a", "depreciation and amortization"}, 1.0},
		{models.EBIT, []string{"resultado de explotacion", "beneficio de explotacion", "operating income", "operating profit", "ebit"}, 1.0},
		{models.GastosFinancieros, []string{"gastos financieros", "intereses", "interest expense", "financial expenses"}, 1.0},
		{models.ImpuestoSociedades, []string{"impuesto sobre beneficios", "impuesto de sociedades", "impuestos", "income tax", "tax expense"}, 1.0},
		{models.ResultadoNeto, []string{"resultado del ejercicio", "beneficio neto", "resultado neto", "net income", "net profit", "profit for the year"}, 1.0},

		{models.ActivoTotal, []string{"total activo", "activo total", "total activos", "total assets", "assets"}, 1.0},
		{models.ActivoCorriente, []string{"activo corriente", "activo circulante", "current assets"}, 1.0},
		{models.ActivoNoCorriente, []string{"activo no corriente", "inmovilizado", "activo fijo", "non current assets", "fixed assets"}, 1.0},
		{models.Existencias, []string{"existencias", "inventario", "stock", "inventories", "inventory"}, 1.0},
		{models.Deudores, []string{"deudores comerciales", "clientes", "cuentas a cobrar", "accounts receivable", "receivables", "trade debtors"}, 0.95},
		{models.Tesoreria, []string{"efectivo y otros activos liquidos equivalentes", "efectivo", "caja", "caja y bancos", "tesoreria", "cash", "cash and equivalents"}, 1.0},
		{models.PasivoTotal, []string{"total pasivo", "pasivo total", "total deudas", "total liabilities", "liabilities"}, 1.0},
		{models.PasivoCorriente, []string{"pasivo corriente", "pasivo circulante", "current liabilities"}, 1.0},
		{models.PasivoNoCorriente, []string{"pasivo no corriente", "non current liabilities", "long term liabilities"}, 1.0},
		{models.PatrimonioNeto, []string{"patrimonio neto", "fondos propios", "capital y reservas", "equity", "shareholders equity", "net worth"}, 1.0},
		{models.DeudaFinanciera, []string{"deuda financiera", "deudas con entidades de credito", "endeudamiento financiero", "financial debt", "borrowings", "total debt"}, 0.95},
		{models.DeudaCortoPlazo, []string{"deuda a corto plazo", "deudas a corto plazo", "deuda cp", "short term debt"}, 0.95},
		{models.DeudaLargoPlazo, []string{"deuda a largo plazo", "deudas a largo plazo", "deuda lp", "long term debt"}, 0.95},

		{models.FlujoOperativo, []string{"flujo de caja operativo", "flujos de efectivo de las actividades de explotacion", "flujo de explotacion", "operating cash flow", "cfo"}, 0.95},
		{models.FlujoInversion, []string{"flujo de caja de inversion", "flujos de efectivo de las actividades de inversion", "investing cash flow", "cfi"}, 0.95},
		{models.FlujoFinanciacion, []string{"flujo de caja de financiacion", "flujos de efectivo de las actividades de financiacion", "financing cash flow", "cff"}, 0.95},
		{models.VariacionTesoreria, []string{"aumento disminucion neta del efectivo o equivalentes", "variacion neta del efectivo", "variacion de tesoreria", "net change in cash", "net increase in cash"}, 0.9},
		{models.Capex, []string{"inversiones en inmovilizado", "pagos por inversiones", "capital expenditure", "capex"}, 0.9},

		{models.VentasNacional, []string{"ventas nacionales", "mercado nacional", "ventas espana", "domestic sales"}, 0.9},
		{models.VentasExportacion, []string{"ventas exportacion", "exportaciones", "ventas internacionales", "export sales"}, 0.9},
		{models.VentasOnline, []string{"ventas online", "comercio electronico", "e-commerce", "ecommerce", "online sales"}, 0.9},

		{models.RatioEndeudamiento, []string{"ratio de endeudamiento", "endeudamiento", "debt ratio"}, 0.85},
		{models.NumEmpleados, []string{"numero de empleados", "empleados", "plantilla", "headcount", "employees"}, 0.9},
	}
}
