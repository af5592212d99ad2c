package proforma

import (
	"fmt"
	"math"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/pkg/models"
)

// MonthlyCashFlow is one month of operations. Income and expenses are the
// year's projection spread evenly; debt service is the actual payment of
// that month from the amortization schedule.
type MonthlyCashFlow struct {
	Month int `json:"month"` // 1-based across the whole horizon
	Year  int `json:"year"`

	GrossRent       float64 `json:"gross_rent"`
	OtherIncome     float64 `json:"other_income"`
	VacancyLoss     float64 `json:"vacancy_loss"`
	CreditLoss      float64 `json:"credit_loss"`
	EffectiveIncome float64 `json:"effective_income"`

	PropertyTax   float64 `json:"property_tax"`
	Insurance     float64 `json:"insurance"`
	HOA           float64 `json:"hoa"`
	Utilities     float64 `json:"utilities"`
	Maintenance   float64 `json:"maintenance"`
	Management    float64 `json:"management"`
	CapEx         float64 `json:"capex_reserve"`
	OtherExpenses float64 `json:"other_expenses"`
	TotalExpenses float64 `json:"total_expenses"`

	NOI            float64 `json:"noi"`
	DebtService    float64 `json:"debt_service"`
	CashFlow       float64 `json:"cash_flow"`
	CumulativeCash float64 `json:"cumulative_cash_flow"`
}

// CashFlowAnalysis is a month-level view of the first years of a deal.
type CashFlowAnalysis struct {
	Months                 []MonthlyCashFlow `json:"months"`
	AverageMonthlyNOI      float64           `json:"average_monthly_noi"`
	AverageMonthlyCashFlow float64           `json:"average_monthly_cash_flow"`
	Year1CashFlow          float64           `json:"year1_cash_flow"`
	MonthsToPositive       int               `json:"months_to_positive_cash_flow"` // 0 = never within the horizon
	Volatility             float64           `json:"cash_flow_volatility"`         // sample stddev of monthly cash flow
}

// MonthlyCashFlows spreads each projected year over its twelve months.
func MonthlyCashFlows(d *deal.Deal, years int) models.CalcResult[*CashFlowAnalysis] {
	if d == nil {
		return models.Failed[*CashFlowAnalysis]("deal is required")
	}
	if years < 1 || years > MaxYears {
		return models.Failed[*CashFlowAnalysis](fmt.Sprintf("cash flow years %d outside [1, %d]", years, MaxYears))
	}

	units := d.Property().Units
	payments := d.Schedule().Combined

	a := &CashFlowAnalysis{Months: make([]MonthlyCashFlow, 0, years*12)}
	var cum float64
	for y := 1; y <= years; y++ {
		inc := d.Income().Project(y, units)
		b := d.Expenses().Breakdown(inc.Effective, units, y)

		for m := 1; m <= 12; m++ {
			idx := (y-1)*12 + m
			row := MonthlyCashFlow{
				Month:           idx,
				Year:            y,
				GrossRent:       inc.GrossRent / 12,
				OtherIncome:     inc.Other / 12,
				VacancyLoss:     inc.Vacancy / 12,
				CreditLoss:      inc.CreditLoss / 12,
				EffectiveIncome: inc.Effective / 12,
				PropertyTax:     b.PropertyTax / 12,
				Insurance:       b.Insurance / 12,
				HOA:             b.HOA / 12,
				Utilities:       b.Utilities / 12,
				Maintenance:     b.Maintenance / 12,
				Management:      b.Management / 12,
				CapEx:           b.CapEx / 12,
				OtherExpenses:   b.OtherTotal() / 12,
				TotalExpenses:   b.Total() / 12,
			}
			row.NOI = row.EffectiveIncome - row.TotalExpenses
			if idx <= len(payments) {
				row.DebtService = payments[idx-1].Payment
			}
			row.CashFlow = row.NOI - row.DebtService
			cum += row.CashFlow
			row.CumulativeCash = cum

			if a.MonthsToPositive == 0 && cum > 0 {
				a.MonthsToPositive = idx
			}
			if y == 1 {
				a.Year1CashFlow += row.CashFlow
			}
			a.Months = append(a.Months, row)
		}
	}

	noi := make([]float64, len(a.Months))
	cf := make([]float64, len(a.Months))
	for i, m := range a.Months {
		noi[i] = m.NOI
		cf[i] = m.CashFlow
	}
	a.AverageMonthlyNOI = mean(noi)
	a.AverageMonthlyCashFlow = mean(cf)
	a.Volatility = stddev(cf)
	return models.Ok(a)
}

// YearTotals sums the months of each year.
func (a *CashFlowAnalysis) YearTotals() []MonthlyCashFlow {
	var out []MonthlyCashFlow
	for _, m := range a.Months {
		if len(out) == 0 || out[len(out)-1].Year != m.Year {
			out = append(out, MonthlyCashFlow{Month: m.Month, Year: m.Year})
		}
		t := &out[len(out)-1]
		t.GrossRent += m.GrossRent
		t.OtherIncome += m.OtherIncome
		t.VacancyLoss += m.VacancyLoss
		t.CreditLoss += m.CreditLoss
		t.EffectiveIncome += m.EffectiveIncome
		t.TotalExpenses += m.TotalExpenses
		t.NOI += m.NOI
		t.DebtService += m.DebtService
		t.CashFlow += m.CashFlow
		t.CumulativeCash = m.CumulativeCash
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func stddev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data)
	sumSq := 0.0
	for _, v := range data {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(data)-1)) // sample stddev
}
