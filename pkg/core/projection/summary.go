package projection

import (
	"fmt"
	"math"

	"financial_dashboard/pkg/core/validate"
)

// Summary condenses a series into headline figures.
type Summary struct {
	Scenario       Scenario  `json:"scenario"`
	RevenueCAGR    float64   `json:"revenue_cagr_pct"`
	EbitdaCAGR     float64   `json:"ebitda_cagr_pct"`
	RevenueGrowth  []float64 `json:"revenue_growth_pct"` // A1..An over the prior year
	FinalRevenue   float64   `json:"final_revenue"`
	FinalEBITDA    float64   `json:"final_ebitda"`
	FinalNetIncome float64   `json:"final_net_income"`
	FinalCash      float64   `json:"final_cash"`
	AverageROE     float64   `json:"average_roe"`
	MinDSCR        float64   `json:"min_dscr"`
}

// Summarize computes the summary of s.
func Summarize(s *Series) Summary {
	if s == nil || len(s.PL) == 0 {
		return Summary{}
	}
	first, last := s.PL[0], s.PL[len(s.PL)-1]
	sum := Summary{
		Scenario:       s.Scenario,
		RevenueCAGR:    validate.CalculateCAGR(first.Revenue, last.Revenue, last.Year),
		EbitdaCAGR:     validate.CalculateCAGR(first.EBITDA, last.EBITDA, last.Year),
		FinalRevenue:   last.Revenue,
		FinalEBITDA:    last.EBITDA,
		FinalNetIncome: last.NetIncome,
		FinalCash:      s.CashFlow[len(s.CashFlow)-1].ClosingCash,
		MinDSCR:        math.Inf(1),
	}
	for i := 1; i < len(s.PL); i++ {
		yoy := validate.CalculateYoY(s.PL[i].Revenue, s.PL[i-1].Revenue)
		if math.IsInf(yoy, 0) || math.IsNaN(yoy) {
			yoy = 0
		}
		sum.RevenueGrowth = append(sum.RevenueGrowth, yoy)
	}
	for _, r := range s.Ratios {
		sum.AverageROE += r.ROE
		sum.MinDSCR = math.Min(sum.MinDSCR, r.DSCR)
	}
	sum.AverageROE /= float64(len(s.Ratios))
	if math.IsInf(sum.MinDSCR, 1) {
		sum.MinDSCR = 0
	}
	return sum
}

// =============================================================================
// CROSS-STATEMENT LINKAGE
// =============================================================================

// LinkageReport collects identity checks across the statements of a series.
type LinkageReport struct {
	AllPassed    bool                      `json:"all_passed"`
	Balance      []*validate.BalanceCheck  `json:"balance"`
	CashFlow     []*validate.CashFlowCheck `json:"cash_flow"`
	FailedChecks []string                  `json:"failed_checks,omitempty"`
}

// CheckLinkages verifies per year that assets equal equity plus debt, that
// the balance cash of year t+1 is the closing cash of year t, and that the
// cash movement equals operating, investing and financing flows whenever the
// closing balance was not floored at zero.
func CheckLinkages(s *Series, tolerance float64) *LinkageReport {
	rep := &LinkageReport{AllPassed: true}
	if s == nil {
		return rep
	}
	fail := func(msg string) {
		rep.AllPassed = false
		rep.FailedChecks = append(rep.FailedChecks, msg)
	}

	for i, bs := range s.Balance {
		bc := validate.CheckBalanceEquation(bs.TotalAssets, bs.DebtLT+bs.DebtST, bs.Equity, tolerance)
		rep.Balance = append(rep.Balance, bc)
		if !bc.IsBalanced {
			fail(fmt.Sprintf("%s: assets %.2f != equity + debt %.2f", bs.Label, bs.TotalAssets, bc.ComputedAssets))
		}

		cf := s.CashFlow[i]
		if cf.OpeningCash+cf.FCF >= 0 {
			cc := validate.CheckCashFlowEquation(cf.OCF, cf.ICF, -cf.Interest, cf.ClosingCash-cf.OpeningCash, tolerance)
			rep.CashFlow = append(rep.CashFlow, cc)
			if !cc.IsBalanced {
				fail(fmt.Sprintf("%s: cash movement %.2f != flows %.2f", cf.Label, cc.ReportedTotal, cc.ComputedTotal))
			}
		}

		if i+1 < len(s.Balance) && math.Abs(s.Balance[i+1].Cash-cf.ClosingCash) > tolerance {
			fail(fmt.Sprintf("%s: closing cash %.2f not carried to %s", cf.Label, cf.ClosingCash, s.Balance[i+1].Label))
		}
	}
	return rep
}
