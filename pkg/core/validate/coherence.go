package validate

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"financial_dashboard/pkg/models"
)

// =============================================================================
// THRESHOLDS
// =============================================================================

// Benchmarks are sector reference values reported as info issues.
type Benchmarks struct {
	CurrentRatio float64 `yaml:"current_ratio" json:"current_ratio"`
	ROE          float64 `yaml:"roe" json:"roe"`
	DebtRatio    float64 `yaml:"debt_ratio" json:"debt_ratio"`
}

// Thresholds configures the coherence checks.
type Thresholds struct {
	BalanceTolerancePct float64    `yaml:"balance_tolerance_pct" json:"balance_tolerance_pct"`
	MaxGrossMargin      float64    `yaml:"max_gross_margin" json:"max_gross_margin"`
	MinCurrentRatio     float64    `yaml:"min_current_ratio" json:"min_current_ratio"`
	MaxDebtRatio        float64    `yaml:"max_debt_ratio" json:"max_debt_ratio"`
	MinConfidence       float64    `yaml:"min_confidence" json:"min_confidence"`
	Benchmarks          Benchmarks `yaml:"benchmarks" json:"benchmarks"`
}

// DefaultThresholds returns the standard thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BalanceTolerancePct: 0.02,
		MaxGrossMargin:      0.8,
		MinCurrentRatio:     1.0,
		MaxDebtRatio:        0.9,
		MinConfidence:       0.7,
		Benchmarks: Benchmarks{
			CurrentRatio: 1.5,
			ROE:          0.15,
			DebtRatio:    0.6,
		},
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Checks holds the computed values behind the issues.
type Checks struct {
	Balance       *BalanceCheck  `json:"balance,omitempty"`
	GrossMargin   *float64       `json:"gross_margin,omitempty"`
	CurrentRatio  *float64       `json:"current_ratio,omitempty"`
	DebtRatio     *float64       `json:"debt_ratio,omitempty"`
	ROE           *float64       `json:"roe,omitempty"`
	NetCashFlow   *float64       `json:"net_cash_flow,omitempty"`
	CashFlow      *CashFlowCheck `json:"cash_flow,omitempty"`
	FieldsPresent int            `json:"fields_present"`
}

// Result is the coherence verdict for one field set.
type Result struct {
	IsValid    bool                     `json:"is_valid"`
	Issues     []models.ValidationIssue `json:"issues"`
	Confidence float64                  `json:"confidence"`
	Checks     Checks                   `json:"checks"`
}

// Validator runs accounting coherence checks. It never panics and always
// returns a result.
type Validator struct {
	th  Thresholds
	log zerolog.Logger
}

// NewValidator creates a validator. Zero-valued thresholds take defaults.
func NewValidator(th Thresholds, log zerolog.Logger) *Validator {
	def := DefaultThresholds()
	if th.BalanceTolerancePct <= 0 {
		th.BalanceTolerancePct = def.BalanceTolerancePct
	}
	if th.MaxGrossMargin <= 0 {
		th.MaxGrossMargin = def.MaxGrossMargin
	}
	if th.MinCurrentRatio <= 0 {
		th.MinCurrentRatio = def.MinCurrentRatio
	}
	if th.MaxDebtRatio <= 0 {
		th.MaxDebtRatio = def.MaxDebtRatio
	}
	if th.MinConfidence <= 0 {
		th.MinConfidence = def.MinConfidence
	}
	if th.Benchmarks == (Benchmarks{}) {
		th.Benchmarks = def.Benchmarks
	}
	return &Validator{th: th, log: log}
}

// Validate checks set and computes the overall confidence.
func (v *Validator) Validate(set *models.CanonicalFieldSet) *Result {
	res := &Result{Issues: []models.ValidationIssue{}}
	if set == nil || len(set.Values) == 0 {
		res.Issues = append(res.Issues, issue(models.SeverityError, "", "no usable financial fields", nil))
		return res
	}
	res.Checks.FieldsPresent = len(set.Values)

	v.checkBalance(set, res)
	v.checkMargins(set, res)
	v.checkLiquidity(set, res)
	v.checkLeverage(set, res)
	v.checkProfitability(set, res)
	v.checkCashFlow(set, res)

	if set.Stats.InputFields > 0 {
		res.Confidence = float64(set.Stats.CleanedFields) / float64(set.Stats.InputFields)
	}
	res.IsValid = res.Confidence > v.th.MinConfidence && !models.HasErrors(res.Issues)

	v.log.Debug().
		Bool("valid", res.IsValid).
		Float64("confidence", res.Confidence).
		Int("issues", len(res.Issues)).
		Msg("coherence validation done")
	return res
}

func (v *Validator) checkBalance(set *models.CanonicalFieldSet, res *Result) {
	assets, okA := set.Get(models.ActivoTotal)
	liab, okL := set.Get(models.PasivoTotal)
	equity, okE := set.Get(models.PatrimonioNeto)
	if !okA || !okL || !okE {
		return
	}

	tol := v.th.BalanceTolerancePct * math.Abs(assets)
	check := CheckBalanceEquation(assets, liab, equity, tol)
	res.Checks.Balance = check
	if check.IsBalanced {
		return
	}

	suggested := assets - equity
	is := issue(models.SeverityError, string(models.PasivoTotal),
		fmt.Sprintf("balance does not square: activo_total %.2f vs pasivo_total + patrimonio_neto %.2f (difference %.2f, tolerance %.2f)",
			assets, check.ComputedAssets, math.Abs(check.Difference), tol),
		liab)
	is.SuggestedValue = &suggested
	res.Issues = append(res.Issues, is)
}

func (v *Validator) checkMargins(set *models.CanonicalFieldSet, res *Result) {
	sales, okS := set.Get(models.Ventas)
	if !okS || sales == 0 {
		return
	}

	if cost, ok := set.Get(models.CosteVentas); ok {
		gm := (sales - math.Abs(cost)) / sales
		res.Checks.GrossMargin = &gm
		switch {
		case gm < 0:
			res.Issues = append(res.Issues, issue(models.SeverityWarning, string(models.CosteVentas),
				fmt.Sprintf("negative gross margin (%.1f%%): cost of sales exceeds revenue", gm*100), cost))
		case gm > v.th.MaxGrossMargin:
			res.Issues = append(res.Issues, issue(models.SeverityWarning, string(models.CosteVentas),
				fmt.Sprintf("gross margin %.1f%% above %.0f%%: cost data likely incomplete", gm*100, v.th.MaxGrossMargin*100), cost))
		}
	}

	if ebitda, ok := set.Get(models.EBITDA); ok && ebitda > sales {
		res.Issues = append(res.Issues, issue(models.SeverityWarning, string(models.EBITDA),
			"EBITDA exceeds revenue", ebitda))
	}
}

func (v *Validator) checkLiquidity(set *models.CanonicalFieldSet, res *Result) {
	ca, okA := set.Get(models.ActivoCorriente)
	cl, okL := set.Get(models.PasivoCorriente)
	if !okA || !okL || cl == 0 {
		return
	}

	cr := ca / cl
	res.Checks.CurrentRatio = &cr
	if cr < v.th.MinCurrentRatio {
		res.Issues = append(res.Issues, issue(models.SeverityWarning, string(models.ActivoCorriente),
			fmt.Sprintf("current ratio %.2f below %.2f: possible liquidity stress", cr, v.th.MinCurrentRatio), ca))
	} else if cr < v.th.Benchmarks.CurrentRatio {
		res.Issues = append(res.Issues, issue(models.SeverityInfo, string(models.ActivoCorriente),
			fmt.Sprintf("current ratio %.2f below benchmark %.2f", cr, v.th.Benchmarks.CurrentRatio), ca))
	}
}

func (v *Validator) checkLeverage(set *models.CanonicalFieldSet, res *Result) {
	assets, okA := set.Get(models.ActivoTotal)
	liab, okL := set.Get(models.PasivoTotal)
	if !okA || !okL || assets <= 0 {
		return
	}

	dr := liab / assets
	res.Checks.DebtRatio = &dr
	if dr > v.th.MaxDebtRatio {
		res.Issues = append(res.Issues, issue(models.SeverityWarning, string(models.PasivoTotal),
			fmt.Sprintf("debt ratio %.2f above %.2f", dr, v.th.MaxDebtRatio), liab))
	} else if dr > v.th.Benchmarks.DebtRatio {
		res.Issues = append(res.Issues, issue(models.SeverityInfo, string(models.PasivoTotal),
			fmt.Sprintf("debt ratio %.2f above benchmark %.2f", dr, v.th.Benchmarks.DebtRatio), liab))
	}
}

func (v *Validator) checkProfitability(set *models.CanonicalFieldSet, res *Result) {
	ni, okN := set.Get(models.ResultadoNeto)
	eq, okE := set.Get(models.PatrimonioNeto)
	if !okN || !okE || eq <= 0 {
		return
	}

	roe := ni / eq
	res.Checks.ROE = &roe
	if roe < v.th.Benchmarks.ROE {
		res.Issues = append(res.Issues, issue(models.SeverityInfo, string(models.ResultadoNeto),
			fmt.Sprintf("ROE %.1f%% below benchmark %.1f%%", roe*100, v.th.Benchmarks.ROE*100), ni))
	}
}

// checkCashFlow reports the net flow and, when the statement states the net
// change in cash, checks that the three flows add up to it.
func (v *Validator) checkCashFlow(set *models.CanonicalFieldSet, res *Result) {
	cfo, ok1 := set.Get(models.FlujoOperativo)
	cfi, ok2 := set.Get(models.FlujoInversion)
	cff, ok3 := set.Get(models.FlujoFinanciacion)
	if !ok1 || !ok2 || !ok3 {
		return
	}

	net := cfo + cfi + cff
	res.Checks.NetCashFlow = &net
	res.Issues = append(res.Issues, issue(models.SeverityInfo, "",
		fmt.Sprintf("net cash flow %.2f (operating %.2f, investing %.2f, financing %.2f)", net, cfo, cfi, cff), nil))

	change, ok := set.Get(models.VariacionTesoreria)
	if !ok {
		return
	}
	tol := math.Max(0.01, v.th.BalanceTolerancePct*(math.Abs(cfo)+math.Abs(cfi)+math.Abs(cff)))
	cc := CheckCashFlowEquation(cfo, cfi, cff, change, tol)
	res.Checks.CashFlow = cc
	if !cc.IsBalanced {
		res.Issues = append(res.Issues, issue(models.SeverityWarning, string(models.VariacionTesoreria),
			fmt.Sprintf("cash flows add up to %.2f but the net change in cash is %.2f (difference %.2f)", cc.ComputedTotal, change, cc.Difference), change))
	}
}

func issue(sev models.Severity, field, msg string, original interface{}) models.ValidationIssue {
	return models.ValidationIssue{Severity: sev, Field: field, Message: msg, OriginalValue: original}
}
