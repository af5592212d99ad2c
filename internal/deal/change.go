package deal

import "math"

// Change is an explicit set of edits to a deal's inputs. The zero value
// changes nothing. Build one with the chained setters and pass it to Apply.
type Change struct {
	purchasePrice *float64
	monthlyRent   *float64
	vacancyRate   *float64
	appreciation  *float64
	expenseGrowth *float64
	rentGrowth    *float64
	downPayment   *float64
	propertyTax   *float64
	insurance     *float64

	rateShift      float64 // percentage points on every loan rate
	fixedExpFactor float64 // multiplier on fixed expenses, 0 = unchanged
}

func ptr(v float64) *float64 { return &v }

func (c Change) PurchasePrice(v float64) Change { c.purchasePrice = ptr(v); return c }
func (c Change) MonthlyRent(v float64) Change   { c.monthlyRent = ptr(v); return c }
func (c Change) VacancyRate(v float64) Change   { c.vacancyRate = ptr(v); return c }
func (c Change) Appreciation(v float64) Change  { c.appreciation = ptr(v); return c }
func (c Change) ExpenseGrowth(v float64) Change { c.expenseGrowth = ptr(v); return c }
func (c Change) RentGrowth(v float64) Change    { c.rentGrowth = ptr(v); return c }
func (c Change) DownPayment(v float64) Change   { c.downPayment = ptr(v); return c }
func (c Change) PropertyTax(v float64) Change   { c.propertyTax = ptr(v); return c }
func (c Change) Insurance(v float64) Change     { c.insurance = ptr(v); return c }

// ShiftRates moves every loan rate by delta percentage points, cumulatively.
func (c Change) ShiftRates(delta float64) Change { c.rateShift += delta; return c }

// ScaleFixedExpenses multiplies tax, insurance, HOA and utilities.
func (c Change) ScaleFixedExpenses(factor float64) Change { c.fixedExpFactor = factor; return c }

// IsZero reports whether the change edits nothing.
func (c Change) IsZero() bool { return c == Change{} }

// Apply builds a new deal from d with the change applied. The base deal is
// not modified. When price or down payment move, track principals keep
// their share of the new loan.
func (d *Deal) Apply(c Change) (*Deal, error) {
	p := d.Params()

	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Property.PurchasePrice, c.purchasePrice)
	set(&p.Income.MonthlyRent, c.monthlyRent)
	set(&p.Income.VacancyRate, c.vacancyRate)
	set(&p.Market.Appreciation, c.appreciation)
	set(&p.Expenses.AnnualIncrease, c.expenseGrowth)
	set(&p.Income.AnnualIncrease, c.rentGrowth)
	set(&p.Expenses.PropertyTax, c.propertyTax)
	set(&p.Expenses.Insurance, c.insurance)

	if c.fixedExpFactor > 0 {
		p.Expenses.PropertyTax *= c.fixedExpFactor
		p.Expenses.Insurance *= c.fixedExpFactor
		p.Expenses.HOAMonthly *= c.fixedExpFactor
		p.Expenses.UtilitiesMonthly *= c.fixedExpFactor
	}

	fin := p.Financing
	if c.downPayment != nil {
		fin = fin.WithDownPayment(*c.downPayment)
	}
	if c.purchasePrice != nil || c.downPayment != nil {
		fin = fin.Rescale(fin.LoanAmount(p.Property.PurchasePrice))
	}
	if c.rateShift != 0 {
		fin = fin.ShiftRates(c.rateShift)
	}
	p.Financing = fin

	// A cheaper price must not push closing costs past their 10% bound.
	if limit := p.Property.PurchasePrice * 0.1; p.Property.ClosingCosts > limit {
		p.Property.ClosingCosts = limit
	}

	return New(p)
}

// ClampPercent keeps a percentage within [lo, hi].
func ClampPercent(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
