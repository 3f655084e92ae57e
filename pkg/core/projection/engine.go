package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"financial_dashboard/pkg/core/validate"
	"financial_dashboard/pkg/models"
)

// ErrInvalidBase is returned when the base year cannot anchor a projection.
var ErrInvalidBase = errors.New("invalid projection base")

// Engine articulates P&L, balance sheet and cash flow per projected year. It
// is stateless and safe for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a projection engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// baseYear holds the anchors extracted from the base field set.
type baseYear struct {
	revenue     float64
	margin      float64
	fixed       float64
	currentEx   float64
	cash        float64
	debtEquity  float64
	inventoryPc float64 // share of current assets held as inventory
}

func extractBase(set *models.CanonicalFieldSet, a Assumptions) (baseYear, error) {
	var b baseYear
	rev, ok := set.Get(models.Ventas)
	if !ok || rev <= 0 || math.IsNaN(rev) || math.IsInf(rev, 0) {
		return b, fmt.Errorf("%w: base revenue missing or not positive", ErrInvalidBase)
	}
	b.revenue = rev

	switch {
	case a.EbitdaMargin != nil:
		b.margin = *a.EbitdaMargin
	default:
		if ebitda, ok := set.Get(models.EBITDA); ok {
			b.margin = ebitda / rev
		} else {
			b.margin = a.DefaultMargin
		}
	}

	total, hasTotal := set.Get(models.ActivoTotal)
	current, hasCurrent := set.Get(models.ActivoCorriente)
	if nc, ok := set.Get(models.ActivoNoCorriente); ok {
		b.fixed = nc
	} else if hasTotal && hasCurrent {
		b.fixed = total - current
	} else if hasTotal {
		b.fixed = 0.5 * total
	}
	b.fixed = math.Max(0, b.fixed)

	b.cash, _ = set.Get(models.Tesoreria)
	b.cash = math.Max(0, b.cash)

	if !hasCurrent && hasTotal {
		current = total - b.fixed
	}
	b.currentEx = math.Max(0, current-b.cash)

	if inv, ok := set.Get(models.Existencias); ok && current > 0 {
		b.inventoryPc = math.Min(1, math.Max(0, inv/current))
	}

	equity, hasEquity := set.Get(models.PatrimonioNeto)
	liab, hasLiab := set.Get(models.PasivoTotal)
	debt, hasDebt := set.Get(models.DeudaFinanciera)
	switch {
	case hasEquity && equity > 0 && hasLiab && liab >= 0:
		b.debtEquity = liab / equity
	case hasEquity && equity > 0 && hasDebt && debt >= 0:
		b.debtEquity = debt / equity
	default:
		b.debtEquity = a.DefaultDebtToEquity
	}
	return b, nil
}

// Project builds the series for t = 0..years. Each year is computed in the
// order P&L, balance sheet, cash flow, ratios.
func (e *Engine) Project(base *models.CanonicalFieldSet, scenario Scenario, years int, a Assumptions) (*Series, error) {
	if years <= 0 {
		return nil, fmt.Errorf("%w: years must be positive, got %d", ErrInvalidBase, years)
	}
	if base == nil {
		return nil, fmt.Errorf("%w: no base financials", ErrInvalidBase)
	}
	if _, err := ParseScenario(string(scenario)); err != nil {
		return nil, err
	}
	if scenario == "" {
		scenario = ScenarioBase
	}

	a = a.withDefaults()
	b, err := extractBase(base, a)
	if err != nil {
		return nil, err
	}

	margin := clamp(b.margin+scenario.MarginDelta(), MinEbitdaMargin, MaxEbitdaMargin)

	s := &Series{
		Scenario:    scenario,
		Years:       years,
		Unit:        base.Unit,
		Assumptions: a,
		PL:          make([]PLYear, 0, years+1),
		Balance:     make([]BalanceYear, 0, years+1),
		CashFlow:    make([]CashFlowYear, 0, years+1),
		Ratios:      make([]RatiosYear, 0, years+1),
	}

	prevFixed := b.fixed
	prevDebt := 0.0
	cash := b.cash

	for t := 0; t <= years; t++ {
		label := Label(t)

		// ---------------------------------------------------------------------
		// 1. P&L (operating lines)
		// ---------------------------------------------------------------------
		revenue := b.revenue * math.Pow(1+a.GrowthRate/100, float64(t))
		ebitda := revenue * margin
		pl := PLYear{
			Year:         t,
			Label:        label,
			Revenue:      revenue,
			Costs:        revenue - ebitda,
			EBITDA:       ebitda,
			EbitdaMargin: margin,
			Depreciation: a.DepreciationRate * prevFixed,
		}

		// ---------------------------------------------------------------------
		// 2. Balance sheet
		// ---------------------------------------------------------------------
		capex := a.CapexPctRevenue * revenue
		fixed := b.fixed
		if t > 0 {
			fixed = prevFixed + capex - pl.Depreciation
		}
		current := b.currentEx * revenue / b.revenue
		total := fixed + current + cash
		equity := total / (1 + b.debtEquity)
		debt := total - equity
		bs := BalanceYear{
			Year:          t,
			Label:         label,
			FixedAssets:   fixed,
			CurrentAssets: current,
			Cash:          cash,
			TotalAssets:   total,
			Equity:        equity,
			DebtLT:        debt * a.LongTermDebtShare,
			DebtST:        debt * (1 - a.LongTermDebtShare),
			TotalDebt:     debt,
		}

		// ---------------------------------------------------------------------
		// 3. Cash flow
		// ---------------------------------------------------------------------
		if t == 0 {
			prevDebt = debt
		}
		taxes := a.TaxRate * 0.5 * ebitda
		ocf := ebitda - taxes
		interest := (prevDebt + debt) / 2 * a.InterestRate
		fcf := validate.CalculateFCF(ocf, -capex) - interest
		cf := CashFlowYear{
			Year:        t,
			Label:       label,
			OCF:         ocf,
			ICF:         -capex,
			Capex:       capex,
			Interest:    interest,
			FCF:         fcf,
			OpeningCash: cash,
			ClosingCash: math.Max(0, cash+fcf),
		}

		pl.EBIT = ebitda - pl.Depreciation
		pl.Interest = interest
		pl.Taxes = taxes
		pl.NetIncome = pl.EBIT - interest - taxes

		// ---------------------------------------------------------------------
		// 4. Ratios
		// ---------------------------------------------------------------------
		ratios := computeRatios(t, label, pl, bs, cf, a.TaxRate, b.inventoryPc)

		s.PL = append(s.PL, pl)
		s.Balance = append(s.Balance, bs)
		s.CashFlow = append(s.CashFlow, cf)
		s.Ratios = append(s.Ratios, ratios)

		prevFixed = fixed
		prevDebt = debt
		cash = cf.ClosingCash
	}

	e.log.Debug().
		Str("scenario", string(scenario)).
		Int("years", years).
		Float64("margin", margin).
		Float64("revenue_final", s.PL[years].Revenue).
		Msg("projection built")
	return s, nil
}

func computeRatios(t int, label string, pl PLYear, bs BalanceYear, cf CashFlowYear, taxRate, inventoryPc float64) RatiosYear {
	liquid := bs.CurrentAssets + bs.Cash
	return RatiosYear{
		Year:         t,
		Label:        label,
		ROE:          validate.SafeDiv(pl.NetIncome, bs.Equity),
		ROA:          validate.SafeDiv(pl.NetIncome, bs.TotalAssets),
		ROIC:         validate.SafeDiv(pl.EBIT*(1-taxRate), bs.Equity+bs.TotalDebt),
		CurrentRatio: validate.SafeDiv(liquid, bs.DebtST),
		QuickRatio:   validate.SafeDiv(bs.CurrentAssets*(1-inventoryPc)+bs.Cash, bs.DebtST),
		CashRatio:    validate.SafeDiv(bs.Cash, bs.DebtST),
		DebtToEquity: validate.SafeDiv(bs.TotalDebt, bs.Equity),
		DebtToAssets: validate.SafeDiv(bs.TotalDebt, bs.TotalAssets),
		TIE:          validate.SafeDiv(pl.EBIT, pl.Interest),
		DSCR:         validate.SafeDiv(cf.OCF, pl.Interest+bs.DebtST),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ProjectAll runs every scenario with the same assumptions.
func (e *Engine) ProjectAll(base *models.CanonicalFieldSet, years int, a Assumptions) (map[Scenario]*Series, error) {
	out := make(map[Scenario]*Series, len(Scenarios))
	for _, sc := range Scenarios {
		s, err := e.Project(base, sc, years, a)
		if err != nil {
			return nil, err
		}
		out[sc] = s
	}
	return out, nil
}
