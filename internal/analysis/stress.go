package analysis

import (
	"fmt"
	"math"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/metrics"
)

// StressLimits bound the stress search, in percent.
type StressLimits struct {
	MaxVacancy         float64 `json:"max_vacancy_rate"`
	MaxExpenseIncrease float64 `json:"max_expense_increase"`
}

// DefaultStressLimits match a typical lender stress test.
func DefaultStressLimits() StressLimits {
	return StressLimits{MaxVacancy: 20, MaxExpenseIncrease: 10}
}

// StressResult reports how much adversity the deal absorbs before year-1
// cash flow turns negative. Break-even values are the first whole percent
// that does so; when none within the limit does, the limit is reported and
// the matching Survives flag is set.
type StressResult struct {
	Limits                   StressLimits `json:"limits"`
	CurrentVacancy           float64      `json:"current_vacancy"`
	BreakEvenVacancy         float64      `json:"break_even_vacancy"`
	VacancyCushion           float64      `json:"vacancy_cushion"`
	SurvivesVacancy          bool         `json:"survives_max_vacancy"`
	BreakEvenExpenseIncrease float64      `json:"break_even_expense_increase"`
	SurvivesExpenseIncrease  bool         `json:"survives_max_expense_increase"`
	ExpenseCushion           float64      `json:"expense_cushion_percent"` // exact increase in operating expenses that zeroes cash flow
	DSCR                     float64      `json:"dscr"`
	DSCRCapped               bool         `json:"dscr_capped,omitempty"`
}

// StressTest searches vacancy upward from 0% and operating expense
// increases upward from 0% for the point where year-1 cash flow goes
// negative.
func StressTest(d *deal.Deal, limits StressLimits) (*StressResult, error) {
	if d == nil {
		return nil, fmt.Errorf("stress: deal is required")
	}
	def := DefaultStressLimits()
	if limits.MaxVacancy <= 0 {
		limits.MaxVacancy = def.MaxVacancy
	}
	if limits.MaxExpenseIncrease <= 0 {
		limits.MaxExpenseIncrease = def.MaxExpenseIncrease
	}
	limits.MaxVacancy = math.Min(limits.MaxVacancy, 50)

	r := &StressResult{
		Limits:           limits,
		CurrentVacancy:   d.Income().VacancyRate,
		BreakEvenVacancy: limits.MaxVacancy,
		SurvivesVacancy:  true,
	}

	for v := 0.0; v <= limits.MaxVacancy; v++ {
		adjusted, err := d.Apply(deal.Change{}.VacancyRate(v))
		if err != nil {
			return nil, fmt.Errorf("stress: vacancy %.0f%%: %w", v, err)
		}
		if adjusted.CashFlow() < 0 {
			r.BreakEvenVacancy = v
			r.SurvivesVacancy = false
			break
		}
	}
	r.VacancyCushion = r.BreakEvenVacancy - r.CurrentVacancy

	// Operating expenses scale as a whole; debt service does not move.
	opex, cf := d.OperatingExpenses(), d.CashFlow()
	r.BreakEvenExpenseIncrease = limits.MaxExpenseIncrease
	r.SurvivesExpenseIncrease = true
	for x := 0.0; x <= limits.MaxExpenseIncrease; x++ {
		if cf-opex*x/100 < 0 {
			r.BreakEvenExpenseIncrease = x
			r.SurvivesExpenseIncrease = false
			break
		}
	}
	if opex > 0 {
		r.ExpenseCushion = cf / opex * 100
	}

	r.DSCR = d.DSCR()
	if math.IsInf(r.DSCR, 1) {
		r.DSCR, r.DSCRCapped = metrics.DSCRDisplayCap, true
	}
	return r, nil
}
