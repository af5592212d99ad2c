package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/pkg/models"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func testDeal(t *testing.T, fin mortgage.Financing) *deal.Deal {
	t.Helper()
	d, err := deal.New(deal.Params{
		ID:   "m-1",
		Name: "Metrics Test",
		Property: deal.Property{
			Address:       "7 Elm St",
			Type:          deal.SingleFamily,
			PurchasePrice: 250000,
			ClosingCosts:  5000,
			Units:         1,
		},
		Financing: fin,
		Income:    deal.Income{MonthlyRent: 2000, VacancyRate: 5, AnnualIncrease: 3},
		Expenses: deal.Expenses{
			PropertyTax:    3000,
			Insurance:      1200,
			MaintenancePct: 5,
			ManagementPct:  8,
			CapExPct:       5,
			AnnualIncrease: 3,
		},
		Market: deal.DefaultMarket(),
	})
	if err != nil {
		t.Fatalf("deal.New: %v", err)
	}
	return d
}

func legacy(t *testing.T) mortgage.Financing {
	t.Helper()
	f, err := mortgage.NewLegacyFinancing(20, 4, 30, 0)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// ════════════════════════════════════════════════════════════════════
// NPV / IRR / Equity multiple
// ════════════════════════════════════════════════════════════════════

func TestNPV(t *testing.T) {
	tests := []struct {
		rate  float64
		flows []float64
		want  float64
	}{
		{0.10, []float64{-100, 110}, 0},
		{0, []float64{-100, 50, 60}, 10},
		{0.10, []float64{-1000, 300, 400, 500}, -21.0368144252443},
		{0.05, nil, 0},
	}
	for _, tt := range tests {
		if got := NPV(tt.rate, tt.flows); !approx(got, tt.want, 1e-9) {
			t.Errorf("NPV(%v, %v) = %f, want %f", tt.rate, tt.flows, got, tt.want)
		}
	}
}

func TestIRR(t *testing.T) {
	tests := []struct {
		name  string
		flows []float64
		want  float64
	}{
		{"single period", []float64{-100, 110}, 0.10},
		{"textbook", []float64{-100, 39, 59, 55, 20}, 0.28094842115996094},
		{"below ten percent", []float64{-1000, 300, 400, 500}, 0.08896339469335},
		{"loss", []float64{-1000, 100, 100, 500}, -0.12790854328059628},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IRR(tt.flows)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !approx(NPV(got, tt.flows), 0, 1e-6) {
				t.Errorf("NPV at IRR %f = %g", got, NPV(got, tt.flows))
			}
			if !approx(got, tt.want, 1e-8) {
				t.Errorf("IRR = %.12f, want %.12f", got, tt.want)
			}
		})
	}
}

func TestIRRNoSignChange(t *testing.T) {
	for _, flows := range [][]float64{{100, 200}, {-100, -5}, {}, {0, 0}} {
		if _, err := IRR(flows); !errors.Is(err, ErrNoConvergence) {
			t.Errorf("IRR(%v): expected ErrNoConvergence, got %v", flows, err)
		}
	}
}

func TestBisectionFallback(t *testing.T) {
	flows := []float64{-100, 39, 59, 55, 20}
	r, err := bisectIRR(flows)
	if err != nil {
		t.Fatalf("bisection: %v", err)
	}
	if !approx(r, 0.28094842115996094, 1e-8) {
		t.Errorf("bisection IRR = %.12f", r)
	}
}

func TestEquityMultiple(t *testing.T) {
	em, dist, inv := EquityMultiple(50000, []float64{1000, -2000, 3000}, 100000)
	if dist != 104000 || inv != 52000 || em != 2 {
		t.Errorf("got em=%f dist=%f invested=%f", em, dist, inv)
	}
	if em, _, _ := EquityMultiple(0, nil, 100); em != 0 {
		t.Errorf("no investment should give 0, got %f", em)
	}
}

func TestNetSaleProceeds(t *testing.T) {
	if got := NetSaleProceeds(300000, 7, 150000); got != 129000 {
		t.Errorf("got %f, want 129000", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Strategies
// ════════════════════════════════════════════════════════════════════

func TestNormalize(t *testing.T) {
	b := models.Benchmark{Low: 0.02, Target: 0.08, High: 0.15}
	tests := []struct {
		v, want float64
	}{
		{0.0, 0},
		{0.02, 0},
		{0.05, 25},
		{0.08, 50},
		{0.115, 75},
		{0.15, 100},
		{0.5, 100},
	}
	for _, tt := range tests {
		if got := Normalize(tt.v, b); !approx(got, tt.want, 1e-9) {
			t.Errorf("Normalize(%v) = %f, want %f", tt.v, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	atTarget := map[models.MetricType]float64{}
	for _, m := range Scored {
		atTarget[m] = standardThresholds[m].Target
	}
	for _, s := range BuiltinStrategies() {
		var sum float64
		for _, m := range Scored {
			sum += s.Weight(m)
		}
		if !approx(sum, 1, 1e-9) {
			t.Errorf("%s: weights sum to %f", s.Name(), sum)
		}
		if got, _ := Score(s, atTarget); !approx(got, 50, 1e-9) {
			t.Errorf("%s: all-target score = %f, want 50", s.Name(), got)
		}
	}

	// Missing metrics are dropped from the weight, not scored as zero.
	cf, _ := StrategyByName(ProfileCashFlow)
	got, parts := Score(cf, map[models.MetricType]float64{
		models.MetricCashOnCash: 0.15, // 100
		models.MetricDSCR:       1.2,  // 0
	})
	if want := (100*0.40 + 0*0.30) / 0.70; !approx(got, want, 1e-9) {
		t.Errorf("partial score = %f, want %f", got, want)
	}
	if len(parts) != 2 || parts["coc_return"] != 100 {
		t.Errorf("parts = %v", parts)
	}
	if got, _ := Score(cf, nil); got != 0 {
		t.Errorf("empty score = %f", got)
	}
}

func TestStrategyByName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", ProfileBalanced, true},
		{"cash_flow", ProfileCashFlow, true},
		{" Appreciation ", ProfileAppreciation, true},
		{"flipper", "", false},
	}
	for _, tt := range tests {
		s, err := StrategyByName(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("StrategyByName(%q) error = %v", tt.in, err)
			continue
		}
		if tt.ok && s.Name() != tt.want {
			t.Errorf("StrategyByName(%q) = %s, want %s", tt.in, s.Name(), tt.want)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Calculate
// ════════════════════════════════════════════════════════════════════

func TestCalculate(t *testing.T) {
	d := testDeal(t, legacy(t))
	res := Calculate(d, Options{})
	if !res.Success {
		t.Fatalf("Calculate failed: %v", res.Errors)
	}
	b := res.Data

	if b.Options.HoldingPeriod != 10 || b.Options.Profile != ProfileBalanced || b.Options.Discount() != 0.10 {
		t.Errorf("defaults not applied: %+v", b.Options)
	}
	if b.NOI.Value != d.NOI() || b.CashFlow.Value != d.CashFlow() || b.CapRate.Value != d.CapRate() {
		t.Error("year-1 metrics should come straight from the deal")
	}
	if b.NOI.Formatted != "$14,496" {
		t.Errorf("NOI formatted = %q", b.NOI.Formatted)
	}
	if b.DSCR.Capped {
		t.Error("financed deal DSCR should not be capped")
	}
	if len(b.CashFlows) != 11 || b.CashFlows[0] != -55000 {
		t.Errorf("cash flows = %v", b.CashFlows)
	}
	if !approx(NPV(b.IRR.Value, b.CashFlows), 0, 1e-4) {
		t.Errorf("IRR %f does not zero the NPV", b.IRR.Value)
	}
	if !approx(b.NPV.Value, NPV(0.10, b.CashFlows), 1e-9) {
		t.Errorf("NPV = %f", b.NPV.Value)
	}
	if b.NetSaleProceeds <= 0 || b.EquityMultiple.Value <= 1 {
		t.Errorf("exit %f, multiple %f", b.NetSaleProceeds, b.EquityMultiple.Value)
	}
	if s := b.DealScore.Value; s < 0 || s > 100 {
		t.Errorf("score out of range: %f", s)
	}
	if len(b.DealScore.Details) != 5 {
		t.Errorf("score parts = %v", b.DealScore.Details)
	}
	if len(b.All()) != 13 || len(b.Values()) != 13 {
		t.Error("bundle should expose all 13 metrics")
	}
	if v, ok := b.Value(models.MetricIRR); !ok || v != b.IRR.Value {
		t.Error("Value lookup")
	}
	if b.NOI.Benchmark == nil || b.NPV.Benchmark != nil {
		t.Error("benchmarks attached incorrectly")
	}
}

func TestCalculateZeroDiscountRate(t *testing.T) {
	d := testDeal(t, legacy(t))
	res := Calculate(d, Options{DiscountRate: Rate(0)})
	if !res.Success {
		t.Fatalf("Calculate failed: %v", res.Errors)
	}
	b := res.Data
	if b.Options.Discount() != 0 {
		t.Errorf("discount rate = %f, want 0", b.Options.Discount())
	}
	var sum float64
	for _, cf := range b.CashFlows {
		sum += cf
	}
	if !approx(b.NPV.Value, sum, 1e-6) {
		t.Errorf("NPV at 0%% = %f, want undiscounted sum %f", b.NPV.Value, sum)
	}
}

func TestCalculateProfilesDiffer(t *testing.T) {
	d := testDeal(t, legacy(t))
	cf := Calculate(d, Options{Profile: ProfileCashFlow}).Data.DealScore.Value
	ap := Calculate(d, Options{Profile: ProfileAppreciation}).Data.DealScore.Value
	if cf == ap {
		t.Errorf("profiles should weigh the same deal differently, both %f", cf)
	}
}

func TestCalculateCashDealCapsDSCR(t *testing.T) {
	d := testDeal(t, mortgage.NewCashFinancing())
	res := Calculate(d, Options{HoldingPeriod: 5})
	if !res.Success {
		t.Fatalf("failed: %v", res.Errors)
	}
	dscr := res.Data.DSCR
	if !dscr.Capped || dscr.Value != DSCRDisplayCap || dscr.Formatted != "999.99x" {
		t.Errorf("DSCR = %+v", dscr)
	}
	if parts := res.Data.DealScore.Details; parts["dscr"] != 100 {
		t.Errorf("uncapped scoring DSCR should normalise to 100, got %v", parts["dscr"])
	}
}

func TestCalculateInvalidOptions(t *testing.T) {
	d := testDeal(t, legacy(t))
	res := Calculate(d, Options{HoldingPeriod: 99, Profile: "flipper", DiscountRate: Rate(-2)})
	if res.Success || len(res.Errors) != 3 {
		t.Errorf("expected 3 errors, got %v", res.Errors)
	}
	if Calculate(nil, Options{}).Success {
		t.Error("nil deal should fail")
	}
}

func TestRating(t *testing.T) {
	tests := []struct {
		typ  models.MetricType
		v    float64
		want models.Rating
	}{
		{models.MetricCapRate, 0.10, models.RatingExcellent},
		{models.MetricCapRate, 0.07, models.RatingGood},
		{models.MetricCapRate, 0.05, models.RatingFair},
		{models.MetricCapRate, 0.02, models.RatingPoor},
		{models.MetricGRM, 3, models.RatingExcellent},
		{models.MetricGRM, 10, models.RatingFair},
		{models.MetricGRM, 15, models.RatingPoor},
		{models.MetricNPV, 1000, models.RatingUnknown},
	}
	for _, tt := range tests {
		if got := result(tt.typ, tt.v, "").Rating(); got != tt.want {
			t.Errorf("%s=%v: rating %s, want %s", tt.typ, tt.v, got, tt.want)
		}
	}
}
