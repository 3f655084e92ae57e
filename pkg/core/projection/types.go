// Package projection produces multi-year P&L, balance sheet, cash flow and
// ratio series from a base year's canonical financials.
package projection

import (
	"fmt"
	"strings"

	"financial_dashboard/pkg/models"
)

// Scenario is a named adjustment applied on top of the base assumptions.
type Scenario string

const (
	ScenarioBase      Scenario = "base"
	ScenarioOptimista Scenario = "optimista"
	ScenarioPesimista Scenario = "pesimista"
)

// Scenarios lists every scenario in presentation order.
var Scenarios = []Scenario{ScenarioBase, ScenarioOptimista, ScenarioPesimista}

// MarginDelta is the EBITDA margin adjustment of the scenario.
func (s Scenario) MarginDelta() float64 {
	switch s {
	case ScenarioOptimista:
		return 0.02
	case ScenarioPesimista:
		return -0.02
	default:
		return 0
	}
}

// ParseScenario accepts a scenario name, defaulting empty input to base.
func ParseScenario(name string) (Scenario, error) {
	s := Scenario(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case "":
		return ScenarioBase, nil
	case ScenarioBase, ScenarioOptimista, ScenarioPesimista:
		return s, nil
	}
	return "", fmt.Errorf("unknown scenario %q", name)
}

// Margin clamp bounds.
const (
	MinEbitdaMargin = 0.05
	MaxEbitdaMargin = 0.45
)

// Assumptions are the projection drivers. GrowthRate is a percentage
// (12.5 = 12.5%); the other rates are fractions.
type Assumptions struct {
	GrowthRate          float64  `json:"growth_rate" yaml:"growth_rate"`
	EbitdaMargin        *float64 `json:"ebitda_margin,omitempty" yaml:"ebitda_margin,omitempty"` // overrides base margin
	TaxRate             float64  `json:"tax_rate" yaml:"tax_rate"`
	CapexPctRevenue     float64  `json:"capex_pct_revenue" yaml:"capex_pct_revenue"`
	InterestRate        float64  `json:"interest_rate" yaml:"interest_rate"`
	DepreciationRate    float64  `json:"depreciation_rate" yaml:"depreciation_rate"`
	DefaultMargin       float64  `json:"default_margin" yaml:"default_margin"`
	DefaultDebtToEquity float64  `json:"default_debt_to_equity" yaml:"default_debt_to_equity"`
	LongTermDebtShare   float64  `json:"long_term_debt_share" yaml:"long_term_debt_share"`
}

// DefaultAssumptions returns the standard drivers.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		GrowthRate:          5,
		TaxRate:             0.25,
		CapexPctRevenue:     0.05,
		InterestRate:        0.05,
		DepreciationRate:    0.05,
		DefaultMargin:       0.15,
		DefaultDebtToEquity: 1.0,
		LongTermDebtShare:   0.7,
	}
}

// withDefaults fills zero-valued rates. GrowthRate is kept as given so that
// a flat projection stays expressible.
func (a Assumptions) withDefaults() Assumptions {
	d := DefaultAssumptions()
	if a.TaxRate <= 0 {
		a.TaxRate = d.TaxRate
	}
	if a.CapexPctRevenue <= 0 {
		a.CapexPctRevenue = d.CapexPctRevenue
	}
	if a.InterestRate <= 0 {
		a.InterestRate = d.InterestRate
	}
	if a.DepreciationRate <= 0 {
		a.DepreciationRate = d.DepreciationRate
	}
	if a.DefaultMargin <= 0 {
		a.DefaultMargin = d.DefaultMargin
	}
	if a.DefaultDebtToEquity <= 0 {
		a.DefaultDebtToEquity = d.DefaultDebtToEquity
	}
	if a.LongTermDebtShare <= 0 || a.LongTermDebtShare > 1 {
		a.LongTermDebtShare = d.LongTermDebtShare
	}
	return a
}

// =============================================================================
// SERIES
// =============================================================================

// PLYear is one projected income statement.
type PLYear struct {
	Year         int     `json:"year"`
	Label        string  `json:"label"`
	Revenue      float64 `json:"revenue"`
	Costs        float64 `json:"costs"`
	EBITDA       float64 `json:"ebitda"`
	EbitdaMargin float64 `json:"ebitda_margin"`
	Depreciation float64 `json:"depreciation"`
	EBIT         float64 `json:"ebit"`
	Interest     float64 `json:"interest"`
	Taxes        float64 `json:"taxes"`
	NetIncome    float64 `json:"net_income"`
}

// BalanceYear is one projected balance sheet. Assets = Equity + DebtLT + DebtST.
type BalanceYear struct {
	Year          int     `json:"year"`
	Label         string  `json:"label"`
	FixedAssets   float64 `json:"fixed_assets"`
	CurrentAssets float64 `json:"current_assets"` // excluding cash
	Cash          float64 `json:"cash"`
	TotalAssets   float64 `json:"total_assets"`
	Equity        float64 `json:"equity"`
	DebtLT        float64 `json:"debt_lt"`
	DebtST        float64 `json:"debt_st"`
	TotalDebt     float64 `json:"total_debt"`
}

// CashFlowYear is one projected cash flow statement.
type CashFlowYear struct {
	Year        int     `json:"year"`
	Label       string  `json:"label"`
	OCF         float64 `json:"ocf"`
	ICF         float64 `json:"icf"`
	Capex       float64 `json:"capex"`
	Interest    float64 `json:"interest"`
	FCF         float64 `json:"fcf"`
	OpeningCash float64 `json:"opening_cash"`
	ClosingCash float64 `json:"closing_cash"`
}

// RatiosYear holds the ratios of one projected year. Ratios with a zero
// denominator are reported as 0.
type RatiosYear struct {
	Year         int     `json:"year"`
	Label        string  `json:"label"`
	ROE          float64 `json:"roe"`
	ROA          float64 `json:"roa"`
	ROIC         float64 `json:"roic"`
	CurrentRatio float64 `json:"current_ratio"`
	QuickRatio   float64 `json:"quick_ratio"`
	CashRatio    float64 `json:"cash_ratio"`
	DebtToEquity float64 `json:"debt_to_equity"`
	DebtToAssets float64 `json:"debt_to_assets"`
	TIE          float64 `json:"times_interest_earned"`
	DSCR         float64 `json:"dscr"`
}

// Series is a full projection for one scenario, indexed A0..An.
type Series struct {
	Scenario    Scenario       `json:"scenario"`
	Years       int            `json:"years"`
	Unit        models.Unit    `json:"unit"`
	Assumptions Assumptions    `json:"assumptions"`
	PL          []PLYear       `json:"pl"`
	Balance     []BalanceYear  `json:"balance"`
	CashFlow    []CashFlowYear `json:"cash_flow"`
	Ratios      []RatiosYear   `json:"ratios"`
}

// Label returns the relative year label, e.g. "A3".
func Label(t int) string { return fmt.Sprintf("A%d", t) }
