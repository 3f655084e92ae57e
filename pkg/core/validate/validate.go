// Package validate provides reusable financial checks: growth metrics,
// accounting identities, and the coherence validator applied to cleaned
// field sets.
package validate

import (
	"math"
)

// =============================================================================
// GROWTH
// =============================================================================

// CalculateYoY calculates year-over-year change between two values.
// Returns percentage change: (current - prior) / prior * 100
func CalculateYoY(current, prior float64) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return (current - prior) / prior * 100
}

// CalculateCAGR calculates compound annual growth rate as a percentage.
// CAGR = ((EndValue / StartValue) ^ (1/years)) - 1
func CalculateCAGR(startValue, endValue float64, years int) float64 {
	if startValue <= 0 || endValue < 0 || years <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1.0/float64(years)) - 1) * 100
}

// =============================================================================
// IDENTITIES
// =============================================================================

// BalanceCheck verifies Assets = Liabilities + Equity.
type BalanceCheck struct {
	TotalAssets      float64 `json:"total_assets"`
	TotalLiabilities float64 `json:"total_liabilities"`
	TotalEquity      float64 `json:"total_equity"`
	ComputedAssets   float64 `json:"computed_assets"` // L + E
	Difference       float64 `json:"difference"`
	IsBalanced       bool    `json:"is_balanced"`
	Tolerance        float64 `json:"tolerance"`
}

// CheckBalanceEquation validates A = L + E within tolerance.
func CheckBalanceEquation(assets, liabilities, equity, tolerance float64) *BalanceCheck {
	computed := liabilities + equity
	diff := assets - computed

	return &BalanceCheck{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		TotalEquity:      equity,
		ComputedAssets:   computed,
		Difference:       diff,
		IsBalanced:       math.Abs(diff) <= tolerance,
		Tolerance:        tolerance,
	}
}

// CashFlowCheck verifies CFO + CFI + CFF = Net Change in Cash.
type CashFlowCheck struct {
	CFO           float64 `json:"cfo"`
	CFI           float64 `json:"cfi"`
	CFF           float64 `json:"cff"`
	ComputedTotal float64 `json:"computed_total"`
	ReportedTotal float64 `json:"reported_total"`
	Difference    float64 `json:"difference"`
	IsBalanced    bool    `json:"is_balanced"`
	Tolerance     float64 `json:"tolerance"`
}

// CheckCashFlowEquation validates CFO + CFI + CFF = Net Change.
func CheckCashFlowEquation(cfo, cfi, cff, reportedNetChange, tolerance float64) *CashFlowCheck {
	computed := cfo + cfi + cff
	diff := reportedNetChange - computed

	return &CashFlowCheck{
		CFO:           cfo,
		CFI:           cfi,
		CFF:           cff,
		ComputedTotal: computed,
		ReportedTotal: reportedNetChange,
		Difference:    diff,
		IsBalanced:    math.Abs(diff) <= tolerance,
		Tolerance:     tolerance,
	}
}

// CalculateFCF computes Free Cash Flow = CFO + CapEx (CapEx is typically negative).
func CalculateFCF(cfo, capex float64) float64 {
	return cfo + capex
}

// SafeDiv returns num/den, or 0 when den is zero or the result is not finite.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
