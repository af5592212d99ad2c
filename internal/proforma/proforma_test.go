package proforma

import (
	"math"
	"testing"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/mortgage"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func testDeal(t *testing.T, fin mortgage.Financing) *deal.Deal {
	t.Helper()
	d, err := deal.New(deal.Params{
		ID:   "pf-1",
		Name: "Projection Test",
		Property: deal.Property{
			Address:       "1 Main St",
			Type:          deal.SingleFamily,
			PurchasePrice: 250000,
			ClosingCosts:  5000,
			Units:         1,
		},
		Financing: fin,
		Income:    deal.Income{MonthlyRent: 2000, VacancyRate: 5, CreditLoss: 1, AnnualIncrease: 3},
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

func legacy(t *testing.T, years int) mortgage.Financing {
	t.Helper()
	f, err := mortgage.NewLegacyFinancing(20, 4, years, 0)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func mustProject(t *testing.T, d *deal.Deal, years int) *ProForma {
	t.Helper()
	res := Project(d, years)
	if !res.Success {
		t.Fatalf("Project failed: %v", res.Errors)
	}
	return res.Data
}

// ════════════════════════════════════════════════════════════════════
// Project
// ════════════════════════════════════════════════════════════════════

func TestYearOneRoundTrip(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	pf := mustProject(t, d, 10)
	y1, _ := pf.Year(1)

	if !approx(y1.EffectiveIncome, d.EffectiveGrossIncome(), 1e-9) {
		t.Errorf("EGI: got %f, want %f", y1.EffectiveIncome, d.EffectiveGrossIncome())
	}
	if !approx(y1.NOI, d.NOI(), 1e-9) {
		t.Errorf("NOI: got %f, want %f", y1.NOI, d.NOI())
	}
	if !approx(y1.DebtService, d.AnnualDebtService(), 1e-9) {
		t.Errorf("debt service: got %f, want %f", y1.DebtService, d.AnnualDebtService())
	}
	if !approx(y1.CashFlow, d.CashFlow(), 1e-9) {
		t.Errorf("cash flow: got %f, want %f", y1.CashFlow, d.CashFlow())
	}
}

func TestAcquisitionRow(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	pf := mustProject(t, d, 5)
	y0, ok := pf.Year(0)
	if !ok {
		t.Fatal("missing year 0")
	}
	if y0.CashFlow != -55000 {
		t.Errorf("year 0 cash flow: got %f, want -55000", y0.CashFlow)
	}
	if !approx(y0.LoanBalance, 200000, 1e-6) || !approx(y0.TotalEquity, 50000, 1e-6) {
		t.Errorf("year 0 balance/equity: %f / %f", y0.LoanBalance, y0.TotalEquity)
	}
	if pf.InitialInvestment != 55000 || pf.Horizon() != 5 || len(pf.Years) != 6 {
		t.Errorf("initial %f, horizon %d", pf.InitialInvestment, pf.Horizon())
	}
}

func TestGrowthFromBase(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	pf := mustProject(t, d, 5)

	y3, _ := pf.Year(3)
	g := 1.03 * 1.03
	if !approx(y3.GrossRent, 24000*g, 1e-9) {
		t.Errorf("year 3 rent: got %f, want %f", y3.GrossRent, 24000*g)
	}
	// Variable expenses follow EGI only; fixed ones compound.
	wantOpex := 4200*g + y3.EffectiveIncome*0.18
	if !approx(y3.OperatingExpenses, wantOpex, 1e-9) {
		t.Errorf("year 3 opex: got %f, want %f", y3.OperatingExpenses, wantOpex)
	}
	if !approx(y3.PropertyValue, 250000*math.Pow(1.035, 3), 1e-6) {
		t.Errorf("year 3 value: %f", y3.PropertyValue)
	}
}

func TestEquityDecomposition(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	pf := mustProject(t, d, 10)

	prev := pf.Years[0].TotalEquity
	for _, y := range pf.Years[1:] {
		if !approx(y.TotalEquity, y.PropertyValue-y.LoanBalance, 1e-9) {
			t.Errorf("year %d: equity != value - balance", y.Year)
		}
		// A plain amortizing loan: equity = down payment + appreciation + paydown.
		want := 50000 + y.EquityFromAppreciation + y.EquityFromPaydown
		if !approx(y.TotalEquity, want, 1e-4) {
			t.Errorf("year %d: equity %f, decomposition %f", y.Year, y.TotalEquity, want)
		}
		avg := (prev + y.TotalEquity) / 2
		if !approx(y.AverageEquity, avg, 1e-9) || !approx(y.ROE, y.CashFlow/avg, 1e-12) {
			t.Errorf("year %d: average equity %f, roe %f", y.Year, y.AverageEquity, y.ROE)
		}
		prev = y.TotalEquity
	}
}

func TestLoanRepaidBeforeHorizon(t *testing.T) {
	d := testDeal(t, legacy(t, 5))
	pf := mustProject(t, d, 8)

	y5, _ := pf.Year(5)
	if !approx(y5.LoanBalance, 0, 1e-6) {
		t.Errorf("year 5 balance: %f", y5.LoanBalance)
	}
	for _, y := range pf.Years[6:] {
		if y.DebtService != 0 || y.LoanBalance != 0 {
			t.Errorf("year %d should carry no debt: %+v", y.Year, y)
		}
		if y.CashFlow != y.NOI {
			t.Errorf("year %d cash flow should equal NOI", y.Year)
		}
	}
	if !approx(pf.Final().CumulativePrinc, 200000, 1e-4) {
		t.Errorf("principal paid: %f", pf.Final().CumulativePrinc)
	}
}

func TestCashPurchase(t *testing.T) {
	d := testDeal(t, mortgage.NewCashFinancing())
	pf := mustProject(t, d, 3)
	if pf.Years[0].LoanBalance != 0 || pf.Years[0].CashFlow != -255000 {
		t.Errorf("year 0: %+v", pf.Years[0])
	}
	for _, y := range pf.Years[1:] {
		if y.DebtService != 0 || y.CashFlow != y.NOI {
			t.Errorf("year %d: cash purchase should have no debt", y.Year)
		}
	}
}

func TestProjectInvalidYears(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	for _, n := range []int{0, -1, MaxYears + 1} {
		if res := Project(d, n); res.Success || len(res.Errors) == 0 {
			t.Errorf("years=%d should fail", n)
		}
	}
	if res := Project(nil, 5); res.Success {
		t.Error("nil deal should fail")
	}
}

func TestSummary(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	pf := mustProject(t, d, 4)
	s := pf.Summary()

	var total, noi float64
	for _, y := range pf.Years[1:] {
		total += y.CashFlow
		noi += y.NOI
	}
	if s.Years != 4 || !approx(s.TotalCashFlow, total, 1e-9) || !approx(s.AverageNOI, noi/4, 1e-9) {
		t.Errorf("summary: %+v", s)
	}
	if s.EndingEquity != pf.Final().TotalEquity || s.TotalPrincipalPaid != pf.Final().CumulativePrinc {
		t.Errorf("ending figures: %+v", s)
	}
	if len(pf.CashFlows()) != 4 {
		t.Errorf("cash flows: %v", pf.CashFlows())
	}
}

// ════════════════════════════════════════════════════════════════════
// MonthlyCashFlows
// ════════════════════════════════════════════════════════════════════

func TestMonthlyCashFlows(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	res := MonthlyCashFlows(d, 2)
	if !res.Success {
		t.Fatalf("failed: %v", res.Errors)
	}
	a := res.Data
	if len(a.Months) != 24 {
		t.Fatalf("months: got %d, want 24", len(a.Months))
	}
	if !approx(a.Year1CashFlow, d.CashFlow(), 1e-6) {
		t.Errorf("year 1 cash flow: got %f, want %f", a.Year1CashFlow, d.CashFlow())
	}
	if a.MonthsToPositive != 1 {
		t.Errorf("months to positive: got %d, want 1", a.MonthsToPositive)
	}
	if a.Volatility <= 0 {
		t.Error("two years with rent growth should vary")
	}

	pf := mustProject(t, d, 2)
	totals := a.YearTotals()
	if len(totals) != 2 {
		t.Fatalf("year totals: %d", len(totals))
	}
	for i, tot := range totals {
		y := pf.Years[i+1]
		if !approx(tot.NOI, y.NOI, 1e-6) || !approx(tot.CashFlow, y.CashFlow, 1e-6) {
			t.Errorf("year %d: monthly totals %f/%f, projection %f/%f", i+1, tot.NOI, tot.CashFlow, y.NOI, y.CashFlow)
		}
	}
}

func TestMonthlyCashFlowsSingleYearFlat(t *testing.T) {
	d := testDeal(t, legacy(t, 30))
	a := MonthlyCashFlows(d, 1).Data
	if a.Volatility > 1e-9 {
		t.Errorf("a level year should have no volatility, got %g", a.Volatility)
	}
	if res := MonthlyCashFlows(d, 0); res.Success {
		t.Error("zero years should fail")
	}
}
