// Package proforma projects a deal year by year over its holding period:
// income, expenses, NOI, debt service, cash flow, value and equity.
package proforma

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/pkg/models"
)

// MaxYears bounds a projection; loans never run past 40 years.
const MaxYears = 40

// ProForma is a year-0..N projection. Years[0] is the acquisition row.
type ProForma struct {
	Years             []models.ProFormaYear `json:"years"`
	InitialInvestment float64               `json:"initial_investment"`
}

// Year returns the row for year y (0 is acquisition).
func (p *ProForma) Year(y int) (models.ProFormaYear, bool) {
	if p == nil || y < 0 || y >= len(p.Years) {
		return models.ProFormaYear{}, false
	}
	return p.Years[y], true
}

// Horizon is the number of projected operating years.
func (p *ProForma) Horizon() int {
	if p == nil || len(p.Years) == 0 {
		return 0
	}
	return len(p.Years) - 1
}

// Final is the last projected year.
func (p *ProForma) Final() models.ProFormaYear {
	if p == nil || len(p.Years) == 0 {
		return models.ProFormaYear{}
	}
	return p.Years[len(p.Years)-1]
}

// CashFlows returns the annual cash flows of years 1..N.
func (p *ProForma) CashFlows() []float64 {
	if p.Horizon() == 0 {
		return nil
	}
	out := make([]float64, 0, p.Horizon())
	for _, y := range p.Years[1:] {
		out = append(out, y.CashFlow)
	}
	return out
}

// Summary condenses a projection.
type Summary struct {
	Years               int     `json:"years"`
	TotalCashFlow       float64 `json:"total_cash_flow"`
	AverageNOI          float64 `json:"average_noi"`
	AverageCashFlow     float64 `json:"average_cash_flow"`
	TotalPrincipalPaid  float64 `json:"total_principal_paid"`
	EndingPropertyValue float64 `json:"ending_property_value"`
	EndingLoanBalance   float64 `json:"ending_loan_balance"`
	EndingEquity        float64 `json:"ending_equity"`
	AverageROE          float64 `json:"average_roe"`
}

// Summary aggregates the operating years; the acquisition row is excluded.
func (p *ProForma) Summary() Summary {
	n := p.Horizon()
	if n == 0 {
		return Summary{}
	}
	s := Summary{Years: n}
	var noi, roe float64
	for _, y := range p.Years[1:] {
		s.TotalCashFlow += y.CashFlow
		noi += y.NOI
		roe += y.ROE
	}
	last := p.Final()
	s.AverageNOI = noi / float64(n)
	s.AverageCashFlow = s.TotalCashFlow / float64(n)
	s.AverageROE = roe / float64(n)
	s.TotalPrincipalPaid = last.CumulativePrinc
	s.EndingPropertyValue = last.PropertyValue
	s.EndingLoanBalance = last.LoanBalance
	s.EndingEquity = last.TotalEquity
	return s
}

// ════════════════════════════════════════════════════════════════════
// Projection
// ════════════════════════════════════════════════════════════════════

// Project builds the projection for years 1..years. Income and fixed
// expenses grow from their year-1 base; debt figures come from the deal's
// yearly amortization and drop to zero once the loan is repaid.
func Project(d *deal.Deal, years int) models.CalcResult[*ProForma] {
	if d == nil {
		return models.Failed[*ProForma]("deal is required")
	}
	if years < 1 || years > MaxYears {
		return models.Failed[*ProForma](fmt.Sprintf("projection years %d outside [1, %d]", years, MaxYears))
	}

	price := d.Property().PurchasePrice
	units := d.Property().Units
	appreciation := d.Market().Appreciation / 100
	openingBalance := d.Schedule().LoanAmount

	pf := &ProForma{
		Years:             make([]models.ProFormaYear, 0, years+1),
		InitialInvestment: d.TotalCashNeeded(),
	}
	pf.Years = append(pf.Years, models.ProFormaYear{
		Year:          0,
		CashFlow:      -pf.InitialInvestment,
		PropertyValue: price,
		LoanBalance:   openingBalance,
		TotalEquity:   price - openingBalance,
	})

	var cumCash, cumPrincipal float64
	prevEquity := price - openingBalance

	for y := 1; y <= years; y++ {
		inc := d.Income().Project(y, units)
		opex := d.Expenses().Total(inc.Effective, units, y)
		debt := d.DebtYear(y)

		row := models.ProFormaYear{
			Year:              y,
			GrossRent:         inc.GrossRent,
			OtherIncome:       inc.Other,
			PotentialIncome:   inc.Potential,
			VacancyLoss:       inc.Vacancy,
			CreditLoss:        inc.CreditLoss,
			EffectiveIncome:   inc.Effective,
			OperatingExpenses: opex,
			NOI:               inc.Effective - opex,
			DebtService:       debt.Payment,
			PrincipalPaid:     debt.Principal,
			InterestPaid:      debt.Interest,
			LoanBalance:       debt.EndingBalance,
			PropertyValue:     price * math.Pow(1+appreciation, float64(y)),
		}
		row.CashFlow = row.NOI - row.DebtService

		cumCash += row.CashFlow
		cumPrincipal += row.PrincipalPaid
		row.CumulativeCash = cumCash
		row.CumulativePrinc = cumPrincipal

		row.TotalEquity = row.PropertyValue - row.LoanBalance
		row.EquityFromAppreciation = row.PropertyValue - price
		row.EquityFromPaydown = cumPrincipal
		row.AverageEquity = (prevEquity + row.TotalEquity) / 2
		if row.AverageEquity > 0 {
			row.ROE = row.CashFlow / row.AverageEquity
		}
		prevEquity = row.TotalEquity

		slog.Debug("pro-forma year",
			"deal", d.ID(),
			"year", y,
			"egi", row.EffectiveIncome,
			"opex", row.OperatingExpenses,
			"noi", row.NOI,
			"debt_service", row.DebtService,
			"cash_flow", row.CashFlow,
			"value", row.PropertyValue,
			"equity", row.TotalEquity,
			"roe", row.ROE,
		)
		pf.Years = append(pf.Years, row)
	}
	return models.Ok(pf)
}
