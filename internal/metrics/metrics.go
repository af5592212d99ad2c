package metrics

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/proforma"
	"github.com/seenimoa/dealscope/pkg/models"
	"github.com/seenimoa/dealscope/pkg/utils"
)

// DSCRDisplayCap replaces an infinite DSCR (no debt) so it is not mistaken
// for a measured value.
const DSCRDisplayCap = 999.99

// DefaultDiscountRate is the NPV rate when none is given.
const DefaultDiscountRate = 0.10

// Benchmarks are the low / target / high thresholds attached to results.
var Benchmarks = map[models.MetricType]models.Benchmark{
	models.MetricNOI:            {Low: 10000, Target: 20000, High: 40000},
	models.MetricCapRate:        {Low: 0.04, Target: 0.065, High: 0.09},
	models.MetricCashOnCash:     {Low: 0.06, Target: 0.10, High: 0.15},
	models.MetricDSCR:           {Low: 1.2, Target: 1.5, High: 2.0},
	models.MetricGRM:            {Low: 4, Target: 8, High: 12},
	models.MetricBreakEven:      {Low: 0.70, Target: 0.85, High: 0.95},
	models.MetricIRR:            {Low: 0.08, Target: 0.15, High: 0.25},
	models.MetricEquityMultiple: {Low: 1.5, Target: 2.0, High: 3.0},
	models.MetricROE:            {Low: 0.05, Target: 0.10, High: 0.15},
	models.MetricAverageROE:     {Low: 0.08, Target: 0.12, High: 0.18},
	models.MetricDealScore:      {Low: 40, Target: 60, High: 80},
}

// Options control a metrics run. Unset fields take defaults: the deal's
// holding period, the balanced profile and a 10% discount rate. A nil
// DiscountRate is unset; a zero rate is a real 0%.
type Options struct {
	HoldingPeriod int      `json:"holding_period"`
	Profile       string   `json:"investor_profile"`
	DiscountRate  *float64 `json:"discount_rate,omitempty"`
}

// Rate returns a copy of r for DiscountRate.
func Rate(r float64) *float64 { return &r }

// Discount is the NPV rate in effect, DefaultDiscountRate when unset.
func (o Options) Discount() float64 {
	if o.DiscountRate == nil {
		return DefaultDiscountRate
	}
	return *o.DiscountRate
}

func (o Options) withDefaults(d *deal.Deal) Options {
	if o.HoldingPeriod == 0 {
		o.HoldingPeriod = d.HoldingPeriod()
	}
	if o.Profile == "" {
		o.Profile = DefaultProfile
	}
	o.DiscountRate = Rate(o.Discount())
	return o
}

// Bundle holds every metric of a deal.
type Bundle struct {
	NOI        models.MetricResult `json:"noi_year1"`
	CapRate    models.MetricResult `json:"cap_rate"`
	CashFlow   models.MetricResult `json:"cash_flow_year1"`
	CashOnCash models.MetricResult `json:"coc_return"`
	DSCR       models.MetricResult `json:"dscr"`
	GRM        models.MetricResult `json:"grm"`
	BreakEven  models.MetricResult `json:"break_even_ratio"`

	IRR            models.MetricResult `json:"irr"`
	NPV            models.MetricResult `json:"npv"`
	EquityMultiple models.MetricResult `json:"equity_multiple"`
	ROE            models.MetricResult `json:"roe_year1"`
	AverageROE     models.MetricResult `json:"average_roe"`
	DealScore      models.MetricResult `json:"deal_score"`

	Options         Options   `json:"options"`
	CashFlows       []float64 `json:"cash_flows"` // year 0..N including exit proceeds
	NetSaleProceeds float64   `json:"net_sale_proceeds"`
}

// All lists the metrics in display order.
func (b *Bundle) All() []models.MetricResult {
	return []models.MetricResult{
		b.NOI, b.CapRate, b.CashFlow, b.CashOnCash, b.DSCR, b.GRM, b.BreakEven,
		b.IRR, b.NPV, b.EquityMultiple, b.ROE, b.AverageROE, b.DealScore,
	}
}

// Value returns a metric's raw value by type.
func (b *Bundle) Value(t models.MetricType) (float64, bool) {
	for _, m := range b.All() {
		if m.Type == t {
			return m.Value, true
		}
	}
	return 0, false
}

// Values maps every metric type to its value.
func (b *Bundle) Values() map[models.MetricType]float64 {
	out := make(map[models.MetricType]float64, 13)
	for _, m := range b.All() {
		out[m.Type] = m.Value
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Calculate
// ════════════════════════════════════════════════════════════════════

// Calculate computes the full metric bundle. Bad options yield a failed
// result; numerical fallbacks (IRR that does not converge, DSCR without
// debt) succeed with a warning or a capped flag.
func Calculate(d *deal.Deal, opts Options) models.CalcResult[*Bundle] {
	if d == nil {
		return models.Failed[*Bundle]("deal is required")
	}
	opts = opts.withDefaults(d)

	var errs []string
	if opts.HoldingPeriod < 1 || opts.HoldingPeriod > proforma.MaxYears {
		errs = append(errs, fmt.Sprintf("holding period %d outside [1, %d]", opts.HoldingPeriod, proforma.MaxYears))
	}
	if r := opts.Discount(); r <= -1 || r > 1 {
		errs = append(errs, fmt.Sprintf("discount rate %.4f outside (-1, 1]", r))
	}
	strategy, err := StrategyByName(opts.Profile)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return models.Failed[*Bundle](errs...)
	}

	pfRes := proforma.Project(d, opts.HoldingPeriod)
	if !pfRes.Success {
		return models.Failed[*Bundle](pfRes.Errors...)
	}
	pf := pfRes.Data

	var warnings []string
	b := &Bundle{Options: opts}
	yearOne(b, d)

	// Exit and return series.
	final := pf.Final()
	b.NetSaleProceeds = NetSaleProceeds(final.PropertyValue, d.Market().SalesExpense, final.LoanBalance)
	annual := pf.CashFlows()
	b.CashFlows = append([]float64{-pf.InitialInvestment}, annual...)
	b.CashFlows[len(b.CashFlows)-1] += b.NetSaleProceeds

	irr, err := IRR(b.CashFlows)
	if err != nil {
		warnings = append(warnings, "IRR could not be solved for these cash flows; reported as 0")
		irr = 0
	}
	b.IRR = result(models.MetricIRR, irr, utils.FormatPercent(irr, 2))
	b.IRR.HoldingPeriod = opts.HoldingPeriod
	b.IRR.Details = map[string]float64{
		"sale_price":        final.PropertyValue,
		"sales_costs":       final.PropertyValue * d.Market().SalesExpense / 100,
		"loan_payoff":       final.LoanBalance,
		"net_sale_proceeds": b.NetSaleProceeds,
	}

	npv := NPV(opts.Discount(), b.CashFlows)
	b.NPV = result(models.MetricNPV, npv, utils.FormatMoney(npv, 0))
	b.NPV.HoldingPeriod = opts.HoldingPeriod
	b.NPV.Details = map[string]float64{"discount_rate": opts.Discount()}

	em, dist, invested := EquityMultiple(pf.InitialInvestment, annual, b.NetSaleProceeds)
	b.EquityMultiple = result(models.MetricEquityMultiple, em, utils.FormatRatio(em, 2))
	b.EquityMultiple.HoldingPeriod = opts.HoldingPeriod
	b.EquityMultiple.Details = map[string]float64{
		"total_distributions": dist,
		"total_invested":      invested,
	}

	y1, _ := pf.Year(1)
	b.ROE = result(models.MetricROE, y1.ROE, utils.FormatPercent(y1.ROE, 2))
	b.ROE.Year = 1
	avgROE := pf.Summary().AverageROE
	b.AverageROE = result(models.MetricAverageROE, avgROE, utils.FormatPercent(avgROE, 2))
	b.AverageROE.HoldingPeriod = opts.HoldingPeriod

	// Score.
	dscr := d.DSCR()
	if math.IsInf(dscr, 1) || dscr > DSCRScoreCap {
		dscr = DSCRScoreCap
	}
	score, parts := Score(strategy, map[models.MetricType]float64{
		models.MetricCashOnCash:     b.CashOnCash.Value,
		models.MetricDSCR:           dscr,
		models.MetricCapRate:        b.CapRate.Value,
		models.MetricIRR:            irr,
		models.MetricEquityMultiple: em,
	})
	b.DealScore = result(models.MetricDealScore, score, fmt.Sprintf("%.1f/100", score))
	b.DealScore.HoldingPeriod = opts.HoldingPeriod
	b.DealScore.Details = parts

	slog.Debug("metrics calculated",
		"deal", d.ID(),
		"profile", strategy.Name(),
		"holding_period", opts.HoldingPeriod,
		"irr", irr,
		"npv", npv,
		"equity_multiple", em,
		"score", score,
	)
	return models.Ok(b, warnings...)
}

// yearOne fills the metrics that need only the deal itself.
func yearOne(b *Bundle, d *deal.Deal) {
	noi := d.NOI()
	b.NOI = result(models.MetricNOI, noi, utils.FormatMoney(noi, 0))
	b.NOI.Year = 1

	b.CapRate = result(models.MetricCapRate, d.CapRate(), utils.FormatPercent(d.CapRate(), 2))

	cf := d.CashFlow()
	b.CashFlow = result(models.MetricCashFlow, cf, utils.FormatMoney(cf, 0))
	b.CashFlow.Year = 1

	b.CashOnCash = result(models.MetricCashOnCash, d.CashOnCash(), utils.FormatPercent(d.CashOnCash(), 2))
	b.CashOnCash.Year = 1

	dscr := d.DSCR()
	capped := math.IsInf(dscr, 1)
	if capped {
		dscr = DSCRDisplayCap
	}
	b.DSCR = result(models.MetricDSCR, dscr, utils.FormatRatio(dscr, 2))
	b.DSCR.Capped = capped

	b.GRM = result(models.MetricGRM, d.GRM(), fmt.Sprintf("%.2f", d.GRM()))

	be := 1.0
	if d.EffectiveGrossIncome() > 0 {
		be = d.BreakEvenRatio()
	}
	b.BreakEven = result(models.MetricBreakEven, be, utils.FormatPercent(be, 2))
}

// result builds a MetricResult with its standard benchmark attached.
func result(t models.MetricType, v float64, formatted string) models.MetricResult {
	m := models.MetricResult{Type: t, Value: v, Formatted: formatted}
	if bm, ok := Benchmarks[t]; ok {
		m.Benchmark = &bm
	}
	return m
}
