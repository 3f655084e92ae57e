// Package models holds the canonical financial vocabulary and the records that
// flow between pipeline stages.
package models

import "sort"

// CanonicalField is a normalized financial line-item name. All input synonyms
// resolve to one of the values declared below.
type CanonicalField string

// Category groups canonical fields by the statement they belong to.
type Category string

const (
	CategoryPL       Category = "pyg"
	CategoryBalance  Category = "balance"
	CategoryCashFlow Category = "cash_flow"
	CategorySegments Category = "segments"
	CategoryDerived  Category = "derived"
	CategoryOther    Category = "other"
)

// =============================================================================
// PROFIT & LOSS
// =============================================================================

const (
	Ventas             CanonicalField = "ventas"
	CosteVentas        CanonicalField = "coste_ventas"
	MargenBruto        CanonicalField = "margen_bruto"
	GastosPersonal     CanonicalField = "gastos_personal"
	OtrosGastos        CanonicalField = "otros_gastos"
	EBITDA             CanonicalField = "ebitda"
	Amortizaciones     CanonicalField = "amortizaciones"
	EBIT               CanonicalField = "ebit"
	GastosFinancieros  CanonicalField = "gastos_financieros"
	ImpuestoSociedades CanonicalField = "impuesto_sociedades"
	ResultadoNeto      CanonicalField = "resultado_neto"
)

// =============================================================================
// BALANCE SHEET
// =============================================================================

const (
	ActivoTotal       CanonicalField = "activo_total"
	ActivoCorriente   CanonicalField = "activo_corriente"
	ActivoNoCorriente CanonicalField = "activo_no_corriente"
	Existencias       CanonicalField = "existencias"
	Deudores          CanonicalField = "deudores"
	Tesoreria         CanonicalField = "tesoreria"
	PasivoTotal       CanonicalField = "pasivo_total"
	PasivoCorriente   CanonicalField = "pasivo_corriente"
	PasivoNoCorriente CanonicalField = "pasivo_no_corriente"
	PatrimonioNeto    CanonicalField = "patrimonio_neto"
	DeudaFinanciera   CanonicalField = "deuda_financiera"
	DeudaCortoPlazo   CanonicalField = "deuda_corto_plazo"
	DeudaLargoPlazo   CanonicalField = "deuda_largo_plazo"
)

// =============================================================================
// CASH FLOW, SEGMENTS, DERIVED
// =============================================================================

const (
	FlujoOperativo     CanonicalField = "flujo_operativo"
	FlujoInversion     CanonicalField = "flujo_inversion"
	FlujoFinanciacion  CanonicalField = "flujo_financiacion"
	VariacionTesoreria CanonicalField = "variacion_tesoreria"
	Capex              CanonicalField = "capex"

	VentasNacional    CanonicalField = "ventas_nacional"
	VentasExportacion CanonicalField = "ventas_exportacion"
	VentasOnline      CanonicalField = "ventas_online"

	RatioEndeudamiento CanonicalField = "ratio_endeudamiento"
	NumEmpleados       CanonicalField = "num_empleados"
)

// FieldInfo describes a canonical field.
type FieldInfo struct {
	Field    CanonicalField `json:"field"`
	Label    string         `json:"label"`
	Category Category       `json:"category"`
	// UsuallyPositive marks fields where a negative figure is suspicious
	// (revenue, total assets, equity, cash).
	UsuallyPositive bool `json:"usually_positive"`
	// Monetary is false for counts and ratios; those are never rescaled.
	Monetary bool `json:"monetary"`
}

var vocabulary = map[CanonicalField]FieldInfo{
	Ventas:             {Ventas, "Ventas / cifra de negocios", CategoryPL, true, true},
	CosteVentas:        {CosteVentas, "Coste de ventas / aprovisionamientos", CategoryPL, false, true},
	MargenBruto:        {MargenBruto, "Margen bruto", CategoryPL, false, true},
	GastosPersonal:     {GastosPersonal, "Gastos de personal", CategoryPL, false, true},
	OtrosGastos:        {OtrosGastos, "Otros gastos de explotación", CategoryPL, false, true},
	EBITDA:             {EBITDA, "EBITDA", CategoryPL, false, true},
	Amortizaciones:     {Amortizaciones, "Amortización del inmovilizado", CategoryPL, false, true},
	EBIT:               {EBIT, "Resultado de explotación", CategoryPL, false, true},
	GastosFinancieros:  {GastosFinancieros, "Gastos financieros", CategoryPL, false, true},
	ImpuestoSociedades: {ImpuestoSociedades, "Impuesto sobre beneficios", CategoryPL, false, true},
	ResultadoNeto:      {ResultadoNeto, "Resultado del ejercicio", CategoryPL, false, true},

	ActivoTotal:       {ActivoTotal, "Total activo", CategoryBalance, true, true},
	ActivoCorriente:   {ActivoCorriente, "Activo corriente", CategoryBalance, true, true},
	ActivoNoCorriente: {ActivoNoCorriente, "Activo no corriente", CategoryBalance, true, true},
	Existencias:       {Existencias, "Existencias", CategoryBalance, true, true},
	Deudores:          {Deudores, "Deudores comerciales", CategoryBalance, true, true},
	Tesoreria:         {Tesoreria, "Efectivo y equivalentes", CategoryBalance, true, true},
	PasivoTotal:       {PasivoTotal, "Total pasivo", CategoryBalance, false, true},
	PasivoCorriente:   {PasivoCorriente, "Pasivo corriente", CategoryBalance, false, true},
	PasivoNoCorriente: {PasivoNoCorriente, "Pasivo no corriente", CategoryBalance, false, true},
	PatrimonioNeto:    {PatrimonioNeto, "Patrimonio neto", CategoryBalance, true, true},
	DeudaFinanciera:   {DeudaFinanciera, "Deuda financiera", CategoryBalance, false, true},
	DeudaCortoPlazo:   {DeudaCortoPlazo, "Deuda a corto plazo", CategoryBalance, false, true},
	DeudaLargoPlazo:   {DeudaLargoPlazo, "Deuda a largo plazo", CategoryBalance, false, true},

	FlujoOperativo:     {FlujoOperativo, "Flujo de explotación", CategoryCashFlow, false, true},
	FlujoInversion:     {FlujoInversion, "Flujo de inversión", CategoryCashFlow, false, true},
	FlujoFinanciacion:  {FlujoFinanciacion, "Flujo de financiación", CategoryCashFlow, false, true},
	VariacionTesoreria: {VariacionTesoreria, "Aumento/disminución neta del efectivo", CategoryCashFlow, false, true},
	Capex:              {Capex, "Inversiones en inmovilizado", CategoryCashFlow, false, true},

	VentasNacional:    {VentasNacional, "Ventas mercado nacional", CategorySegments, true, true},
	VentasExportacion: {VentasExportacion, "Ventas exportación", CategorySegments, true, true},
	VentasOnline:      {VentasOnline, "Ventas canal online", CategorySegments, true, true},

	RatioEndeudamiento: {RatioEndeudamiento, "Ratio de endeudamiento", CategoryDerived, false, false},
	NumEmpleados:       {NumEmpleados, "Número de empleados", CategoryOther, true, false},
}

// IsCanonical reports whether name belongs to the vocabulary.
func IsCanonical(name string) bool {
	_, ok := vocabulary[CanonicalField(name)]
	return ok
}

// ParseField validates name against the vocabulary.
func ParseField(name string) (CanonicalField, bool) {
	f := CanonicalField(name)
	_, ok := vocabulary[f]
	return f, ok
}

// Info returns the descriptor of a canonical field.
func Info(f CanonicalField) (FieldInfo, bool) {
	info, ok := vocabulary[f]
	return info, ok
}

// UsuallyPositive reports whether negative values for f deserve a warning.
func (f CanonicalField) UsuallyPositive() bool {
	return vocabulary[f].UsuallyPositive
}

// Monetary reports whether f is a currency amount subject to unit scaling.
func (f CanonicalField) Monetary() bool {
	info, ok := vocabulary[f]
	return ok && info.Monetary
}

// Vocabulary returns every canonical field, sorted by name.
func Vocabulary() []FieldInfo {
	out := make([]FieldInfo, 0, len(vocabulary))
	for _, info := range vocabulary {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
