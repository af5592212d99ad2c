// Package deal holds the deal aggregate: a property with its financing,
// income, expenses and market assumptions, plus the year-1 metrics that
// follow directly from them.
package deal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/pkg/models"
)

// Status tracks a deal through acquisition.
type Status string

const (
	StatusAnalyzing     Status = "analyzing"
	StatusUnderContract Status = "under_contract"
	StatusDueDiligence  Status = "due_diligence"
	StatusClosed        Status = "closed"
	StatusPassed        Status = "passed"
	StatusWithdrawn     Status = "withdrawn"
)

// MarketAssumptions drive appreciation and the exit. Values are percentages.
type MarketAssumptions struct {
	Appreciation float64 `json:"annual_appreciation_percent"`
	SalesExpense float64 `json:"sales_expense_percent"`
	Inflation    float64 `json:"inflation_rate_percent"`
}

// DefaultMarket returns the standard market assumptions.
func DefaultMarket() MarketAssumptions {
	return MarketAssumptions{Appreciation: 3.5, SalesExpense: 7, Inflation: 2.5}
}

func (m MarketAssumptions) validate(v *ValidationError) {
	checkRange(v, "appreciation", m.Appreciation, -10, 20)
	checkRange(v, "sales expense", m.SalesExpense, 0, 15)
	checkRange(v, "inflation", m.Inflation, 0, 10)
}

// DefaultHoldingPeriod is used when a deal does not name one.
const DefaultHoldingPeriod = 10

// Params are the inputs of a deal.
type Params struct {
	ID            string
	Name          string
	Status        Status
	Notes         string
	Created       time.Time
	HoldingPeriod int
	Property      Property
	Financing     mortgage.Financing
	Income        Income
	Expenses      Expenses
	Market        MarketAssumptions
}

// Deal is a validated, immutable deal. The loan is sized and amortized once
// at construction; everything else is derived on demand.
type Deal struct {
	p        Params
	loan     mortgage.LoanDetails
	schedule mortgage.Schedule
	yearly   []models.YearSummary
}

// New validates the inputs and sizes the financing against the price.
func New(p Params) (*Deal, error) {
	if p.HoldingPeriod == 0 {
		p.HoldingPeriod = DefaultHoldingPeriod
	}
	if p.Status == "" {
		p.Status = StatusAnalyzing
	}
	if p.Created.IsZero() {
		p.Created = time.Now().UTC()
	}

	v := &ValidationError{}
	if strings.TrimSpace(p.ID) == "" {
		v.Add("deal id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		v.Add("deal name is required")
	}
	if p.HoldingPeriod < 1 || p.HoldingPeriod > 30 {
		v.Add("holding period %d years outside [1, 30]", p.HoldingPeriod)
	}
	p.Property.validate(v)
	p.Income.validate(v)
	p.Expenses.validate(v)
	p.Market.validate(v)
	if p.Financing.Mode() == "" {
		v.Add("financing is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	loan, err := p.Financing.LoanDetails(p.Property.PurchasePrice)
	if err != nil {
		return nil, fmt.Errorf("financing: %w", err)
	}
	schedule, err := p.Financing.Schedule(p.Property.PurchasePrice)
	if err != nil {
		return nil, fmt.Errorf("financing: %w", err)
	}

	return &Deal{
		p:        p,
		loan:     loan,
		schedule: schedule,
		yearly:   schedule.Yearly(),
	}, nil
}

// IsFinancingError reports whether err came from the mortgage layer.
func IsFinancingError(err error) bool {
	return errors.Is(err, mortgage.ErrInvalidTrack) ||
		errors.Is(err, mortgage.ErrInvalidFinancing) ||
		errors.Is(err, mortgage.ErrRegulation) ||
		errors.Is(err, mortgage.ErrAllocationExceeded)
}

func (d *Deal) ID() string                    { return d.p.ID }
func (d *Deal) Name() string                  { return d.p.Name }
func (d *Deal) Status() Status                { return d.p.Status }
func (d *Deal) Notes() string                 { return d.p.Notes }
func (d *Deal) Created() time.Time            { return d.p.Created }
func (d *Deal) HoldingPeriod() int            { return d.p.HoldingPeriod }
func (d *Deal) Property() Property            { return d.p.Property }
func (d *Deal) Financing() mortgage.Financing { return d.p.Financing }
func (d *Deal) Income() Income                { return d.p.Income }
func (d *Deal) Expenses() Expenses            { return d.p.Expenses }
func (d *Deal) Market() MarketAssumptions     { return d.p.Market }

// Params returns a copy of the deal's inputs.
func (d *Deal) Params() Params {
	p := d.p
	p.Income.Other = append([]IncomeItem(nil), p.Income.Other...)
	p.Expenses.Other = append([]ExpenseItem(nil), p.Expenses.Other...)
	return p
}

// LoanDetails is the sized financing.
func (d *Deal) LoanDetails() mortgage.LoanDetails { return d.loan }

// Schedule is the full amortization (empty for cash deals).
func (d *Deal) Schedule() mortgage.Schedule { return d.schedule }

// YearlyDebt is the amortization collapsed by loan year.
func (d *Deal) YearlyDebt() []models.YearSummary {
	return append([]models.YearSummary(nil), d.yearly...)
}

// DebtYear returns the amortization summary for a loan year, or a zero row
// once the loan is repaid.
func (d *Deal) DebtYear(year int) models.YearSummary {
	if year >= 1 && year <= len(d.yearly) {
		return d.yearly[year-1]
	}
	return models.YearSummary{Year: year}
}

// ════════════════════════════════════════════════════════════════════
// Year-1 metrics
// ════════════════════════════════════════════════════════════════════

// TotalCashNeeded is the cash required to close: down payment, closing
// costs, rehab and points (or the whole acquisition cost for cash deals).
func (d *Deal) TotalCashNeeded() float64 {
	pr := d.p.Property
	if d.p.Financing.IsCash() {
		return pr.AcquisitionCost()
	}
	return d.loan.DownPayment + pr.ClosingCosts + pr.RehabBudget + d.loan.PointsCost
}

// EffectiveGrossIncome is year-1 EGI.
func (d *Deal) EffectiveGrossIncome() float64 {
	return d.p.Income.EffectiveGrossIncome(d.p.Property.Units)
}

// ExpenseBreakdown is year-1 operating expenses by component.
func (d *Deal) ExpenseBreakdown() Breakdown {
	return d.p.Expenses.Breakdown(d.EffectiveGrossIncome(), d.p.Property.Units, 1)
}

// OperatingExpenses is year-1 total operating expense.
func (d *Deal) OperatingExpenses() float64 { return d.ExpenseBreakdown().Total() }

// NOI is year-1 net operating income.
func (d *Deal) NOI() float64 { return d.EffectiveGrossIncome() - d.OperatingExpenses() }

// AnnualDebtService is the debt paid in loan year 1. For a plain amortizing
// loan it equals twelve monthly payments; grace periods and year-1 events
// are reflected.
func (d *Deal) AnnualDebtService() float64 { return d.DebtYear(1).Payment }

// CashFlow is year-1 pre-tax cash flow.
func (d *Deal) CashFlow() float64 { return d.NOI() - d.AnnualDebtService() }

// CapRate is NOI over purchase price.
func (d *Deal) CapRate() float64 {
	if d.p.Property.PurchasePrice <= 0 {
		return 0
	}
	return d.NOI() / d.p.Property.PurchasePrice
}

// CashOnCash is year-1 cash flow over cash invested.
func (d *Deal) CashOnCash() float64 {
	cash := d.TotalCashNeeded()
	if cash <= 0 {
		return 0
	}
	return d.CashFlow() / cash
}

// DSCR is NOI over debt service; +Inf when there is no debt.
func (d *Deal) DSCR() float64 {
	ads := d.AnnualDebtService()
	if ads <= 0 {
		return math.Inf(1)
	}
	return d.NOI() / ads
}

// GRM is purchase price over gross scheduled rent.
func (d *Deal) GRM() float64 {
	rent := d.p.Income.GrossPotentialRent(d.p.Property.Units)
	if rent <= 0 {
		return 0
	}
	return d.p.Property.PurchasePrice / rent
}

// BreakEvenRatio is (operating expenses + debt service) over EGI.
func (d *Deal) BreakEvenRatio() float64 {
	egi := d.EffectiveGrossIncome()
	if egi <= 0 {
		return 0
	}
	return (d.OperatingExpenses() + d.AnnualDebtService()) / egi
}

// Summary is a flat snapshot of the deal and its year-1 figures.
type Summary struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Status            Status        `json:"status"`
	Address           string        `json:"address"`
	PropertyType      PropertyType  `json:"property_type"`
	Units             int           `json:"units"`
	PurchasePrice     float64       `json:"purchase_price"`
	TotalCashNeeded   float64       `json:"total_cash_needed"`
	FinancingMode     mortgage.Mode `json:"financing_mode"`
	LoanAmount        float64       `json:"loan_amount"`
	MonthlyPayment    float64       `json:"monthly_payment"`
	EGI               float64       `json:"effective_gross_income"`
	OperatingExpenses float64       `json:"operating_expenses"`
	NOI               float64       `json:"noi"`
	AnnualDebtService float64       `json:"annual_debt_service"`
	CashFlow          float64       `json:"cash_flow"`
	CapRate           float64       `json:"cap_rate"`
	CashOnCash        float64       `json:"cash_on_cash"`
	GRM               float64       `json:"grm"`
	HoldingPeriod     int           `json:"holding_period"`
}

// Summary collects the year-1 snapshot.
func (d *Deal) Summary() Summary {
	pr := d.p.Property
	return Summary{
		ID:                d.p.ID,
		Name:              d.p.Name,
		Status:            d.p.Status,
		Address:           pr.Address,
		PropertyType:      pr.Type,
		Units:             pr.Units,
		PurchasePrice:     pr.PurchasePrice,
		TotalCashNeeded:   d.TotalCashNeeded(),
		FinancingMode:     d.p.Financing.Mode(),
		LoanAmount:        d.loan.LoanAmount,
		MonthlyPayment:    d.loan.MonthlyPayment,
		EGI:               d.EffectiveGrossIncome(),
		OperatingExpenses: d.OperatingExpenses(),
		NOI:               d.NOI(),
		AnnualDebtService: d.AnnualDebtService(),
		CashFlow:          d.CashFlow(),
		CapRate:           d.CapRate(),
		CashOnCash:        d.CashOnCash(),
		GRM:               d.GRM(),
		HoldingPeriod:     d.p.HoldingPeriod,
	}
}
