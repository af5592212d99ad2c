package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/metrics"
	"github.com/seenimoa/dealscope/pkg/models"
)

// Variable is an input a sensitivity study can move.
type Variable string

const (
	VarPurchasePrice Variable = "purchase_price"
	VarRent          Variable = "rent"
	VarVacancy       Variable = "vacancy_rate"
	VarInterestRate  Variable = "interest_rate"
	VarAppreciation  Variable = "appreciation"
	VarExpenseGrowth Variable = "expense_growth"
	VarRentGrowth    Variable = "rent_growth"
	VarDownPayment   Variable = "down_payment"
	VarPropertyTax   Variable = "property_tax"
	VarInsurance     Variable = "insurance"
)

// Variables lists every supported variable.
var Variables = []Variable{
	VarPurchasePrice, VarRent, VarVacancy, VarInterestRate, VarAppreciation,
	VarExpenseGrowth, VarRentGrowth, VarDownPayment, VarPropertyTax, VarInsurance,
}

// Additive reports whether the variable is itself a percentage. Those move
// by percentage points and are floored at zero; amounts move by percent.
func (v Variable) Additive() bool {
	switch v {
	case VarPurchasePrice, VarRent, VarPropertyTax, VarInsurance:
		return false
	}
	return true
}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	v := Variable(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variables {
		if v == known {
			return v, nil
		}
	}
	names := make([]string, len(Variables))
	for i, k := range Variables {
		names[i] = string(k)
	}
	sort.Strings(names)
	return "", fmt.Errorf("unknown sensitivity variable %q (valid: %s)", s, strings.Join(names, ", "))
}

// change adds a move of pct to c.
func (v Variable) change(d *deal.Deal, c deal.Change, pct float64) deal.Change {
	scale := func(x float64) float64 { return x * (1 + pct/100) }
	shift := func(x float64) float64 { return math.Max(0, x+pct) }

	switch v {
	case VarPurchasePrice:
		return c.PurchasePrice(scale(d.Property().PurchasePrice))
	case VarRent:
		return c.MonthlyRent(scale(d.Income().MonthlyRent))
	case VarPropertyTax:
		return c.PropertyTax(scale(d.Expenses().PropertyTax))
	case VarInsurance:
		return c.Insurance(scale(d.Expenses().Insurance))
	case VarVacancy:
		return c.VacancyRate(shift(d.Income().VacancyRate))
	case VarAppreciation:
		return c.Appreciation(shift(d.Market().Appreciation))
	case VarExpenseGrowth:
		return c.ExpenseGrowth(shift(d.Expenses().AnnualIncrease))
	case VarRentGrowth:
		return c.RentGrowth(shift(d.Income().AnnualIncrease))
	case VarDownPayment:
		if d.Financing().IsCash() {
			return c
		}
		return c.DownPayment(shift(d.Financing().DownPaymentPercent()))
	case VarInterestRate:
		if d.Financing().IsCash() {
			return c
		}
		// Rates are floored at zero inside the financing.
		return c.ShiftRates(pct)
	}
	return c
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}

// quick metrics need only the deal; everything else runs the full bundle.
func metricValue(d *deal.Deal, t models.MetricType, opts metrics.Options) (float64, error) {
	switch t {
	case models.MetricCapRate:
		return d.CapRate(), nil
	case models.MetricCashOnCash:
		return d.CashOnCash(), nil
	case models.MetricDSCR:
		if v := d.DSCR(); !math.IsInf(v, 1) {
			return v, nil
		}
		return metrics.DSCRDisplayCap, nil
	case models.MetricNOI:
		return d.NOI(), nil
	case models.MetricCashFlow:
		return d.CashFlow(), nil
	case models.MetricGRM:
		return d.GRM(), nil
	case models.MetricBreakEven:
		return d.BreakEvenRatio(), nil
	}
	res := metrics.Calculate(d, opts)
	if !res.Success {
		return 0, fmt.Errorf("%s", strings.Join(res.Errors, "; "))
	}
	v, ok := res.Data.Value(t)
	if !ok {
		return 0, fmt.Errorf("unknown metric %q", t)
	}
	return v, nil
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (models.MetricType, error) {
	t := models.MetricType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case models.MetricNOI, models.MetricCapRate, models.MetricCashFlow, models.MetricCashOnCash,
		models.MetricDSCR, models.MetricGRM, models.MetricIRR, models.MetricNPV,
		models.MetricEquityMultiple, models.MetricROE, models.MetricAverageROE,
		models.MetricBreakEven, models.MetricDealScore:
		return t, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// ════════════════════════════════════════════════════════════════════
// Two-variable grid
// ════════════════════════════════════════════════════════════════════

// GridRequest configures a two-variable study. Ranges are in percent (or
// percentage points for additive variables).
type GridRequest struct {
	Var1, Var2     Variable
	Range1, Range2 [2]float64
	Steps          int // per axis, default 10
	Metric         models.MetricType
	Options        metrics.Options
	Concurrency    int // cells evaluated at once, default 4
}

// Grid holds a metric over two moved variables. Cells[i][j] is at
// Values2[i], Values1[j].
type Grid struct {
	Var1     Variable          `json:"variable1"`
	Var2     Variable          `json:"variable2"`
	Values1  []float64         `json:"variable1_values"`
	Values2  []float64         `json:"variable2_values"`
	Metric   models.MetricType `json:"metric"`
	Cells    [][]float64       `json:"grid"`
	Base     float64           `json:"base_value"`
	Warnings []string          `json:"warnings,omitempty"`
}

// At returns the cell nearest to the given moves.
func (g *Grid) At(pct1, pct2 float64) float64 {
	return g.Cells[nearest(g.Values2, pct2)][nearest(g.Values1, pct1)]
}

func nearest(xs []float64, x float64) int {
	best := 0
	for i := range xs {
		if math.Abs(xs[i]-x) < math.Abs(xs[best]-x) {
			best = i
		}
	}
	return best
}

// SensitivityGrid evaluates the metric on a steps × steps grid. Cells are
// independent deals and are evaluated concurrently. A cell whose deal is
// invalid (say, a negative price) is 0 and adds a warning.
func SensitivityGrid(ctx context.Context, d *deal.Deal, req GridRequest) (*Grid, error) {
	if d == nil {
		return nil, fmt.Errorf("sensitivity: deal is required")
	}
	if req.Var1 == req.Var2 {
		return nil, fmt.Errorf("sensitivity: variables must differ")
	}
	for _, v := range []Variable{req.Var1, req.Var2} {
		if _, err := ParseVariable(string(v)); err != nil {
			return nil, err
		}
	}
	if req.Metric == "" {
		req.Metric = models.MetricIRR
	}
	if _, err := ParseMetric(string(req.Metric)); err != nil {
		return nil, err
	}
	if req.Steps <= 0 {
		req.Steps = 10
	}
	if req.Range1 == [2]float64{} {
		req.Range1 = [2]float64{-10, 10}
	}
	if req.Range2 == [2]float64{} {
		req.Range2 = [2]float64{-10, 10}
	}
	if req.Concurrency <= 0 {
		req.Concurrency = 4
	}

	base, err := metricValue(d, req.Metric, req.Options)
	if err != nil {
		return nil, fmt.Errorf("sensitivity: base deal: %w", err)
	}

	g := &Grid{
		Var1:    req.Var1,
		Var2:    req.Var2,
		Values1: Linspace(req.Range1[0], req.Range1[1], req.Steps),
		Values2: Linspace(req.Range2[0], req.Range2[1], req.Steps),
		Metric:  req.Metric,
		Base:    base,
		Cells:   make([][]float64, req.Steps),
	}
	for i := range g.Cells {
		g.Cells[i] = make([]float64, len(g.Values1))
	}

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(req.Concurrency)
	for i, p2 := range g.Values2 {
		for j, p1 := range g.Values1 {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				c := req.Var2.change(d, req.Var1.change(d, deal.Change{}, p1), p2)
				v, err := evaluate(d, c, req.Metric, req.Options)
				if err != nil {
					mu.Lock()
					g.Warnings = append(g.Warnings, fmt.Sprintf("%s %+.2f, %s %+.2f: %v", req.Var1, p1, req.Var2, p2, err))
					mu.Unlock()
					return nil
				}
				g.Cells[i][j] = v
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(g.Warnings)
	return g, nil
}

func evaluate(base *deal.Deal, c deal.Change, t models.MetricType, opts metrics.Options) (float64, error) {
	d, err := base.Apply(c)
	if err != nil {
		return 0, err
	}
	return metricValue(d, t, opts)
}

// ════════════════════════════════════════════════════════════════════
// Single-variable sweep
// ════════════════════════════════════════════════════════════════════

// DefaultSweepMetrics are swept when none are named.
var DefaultSweepMetrics = []models.MetricType{
	models.MetricCashOnCash, models.MetricIRR, models.MetricDSCR, models.MetricCapRate,
}

// SweepRequest configures a one-variable study.
type SweepRequest struct {
	Variable    Variable
	Range       [2]float64 // default ±20
	Steps       int        // default 20
	Metrics     []models.MetricType
	Options     metrics.Options
	Concurrency int
}

// SweepPoint is one metric value at one move.
type SweepPoint struct {
	Change float64 `json:"change"`
	Value  float64 `json:"value"`
}

// Sweep holds each metric's series over the moves.
type Sweep struct {
	Variable Variable                           `json:"variable"`
	Changes  []float64                          `json:"changes"`
	Series   map[models.MetricType][]SweepPoint `json:"series"`
	Warnings []string                           `json:"warnings,omitempty"`
}

// SensitivitySweep moves one variable and records several metrics.
func SensitivitySweep(ctx context.Context, d *deal.Deal, req SweepRequest) (*Sweep, error) {
	if d == nil {
		return nil, fmt.Errorf("sensitivity: deal is required")
	}
	if _, err := ParseVariable(string(req.Variable)); err != nil {
		return nil, err
	}
	if len(req.Metrics) == 0 {
		req.Metrics = DefaultSweepMetrics
	}
	for _, m := range req.Metrics {
		if _, err := ParseMetric(string(m)); err != nil {
			return nil, err
		}
	}
	if req.Steps <= 0 {
		req.Steps = 20
	}
	if req.Range == [2]float64{} {
		req.Range = [2]float64{-20, 20}
	}
	if req.Concurrency <= 0 {
		req.Concurrency = 4
	}

	s := &Sweep{
		Variable: req.Variable,
		Changes:  Linspace(req.Range[0], req.Range[1], req.Steps),
		Series:   make(map[models.MetricType][]SweepPoint, len(req.Metrics)),
	}
	for _, m := range req.Metrics {
		s.Series[m] = make([]SweepPoint, len(s.Changes))
	}

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(req.Concurrency)
	for i, pct := range s.Changes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			adjusted, err := d.Apply(req.Variable.change(d, deal.Change{}, pct))
			for _, m := range req.Metrics {
				v := 0.0
				if err == nil {
					var merr error
					v, merr = metricValue(adjusted, m, req.Options)
					if merr != nil {
						mu.Lock()
						s.Warnings = append(s.Warnings, fmt.Sprintf("%s %+.2f, %s: %v", req.Variable, pct, m, merr))
						mu.Unlock()
					}
				}
				// Each goroutine owns index i of every series.
				s.Series[m][i] = SweepPoint{Change: pct, Value: v}
			}
			if err != nil {
				mu.Lock()
				s.Warnings = append(s.Warnings, fmt.Sprintf("%s %+.2f: %v", req.Variable, pct, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(s.Warnings)
	return s, nil
}
