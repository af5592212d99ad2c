package deal

import (
	"math"
	"strings"
)

// ExpenseItem is an additional operating expense. Exactly one of Annual,
// Monthly or PercentOfIncome should be set; they are tried in that order.
type ExpenseItem struct {
	Category        string  `json:"category"`
	Annual          float64 `json:"annual_amount,omitempty"`
	Monthly         float64 `json:"monthly_amount,omitempty"`
	PercentOfIncome float64 `json:"percentage_of_income,omitempty"`
	PerUnit         bool    `json:"per_unit"`
	Description     string  `json:"description,omitempty"`
}

// IsFixed reports whether the item is a currency amount rather than a
// share of income.
func (e ExpenseItem) IsFixed() bool { return e.Annual > 0 || e.Monthly > 0 }

// Label names the item in breakdowns.
func (e ExpenseItem) Label() string {
	name := strings.TrimSpace(e.Category)
	if name == "" {
		name = "other"
	}
	if e.Description != "" {
		name += " (" + e.Description + ")"
	}
	return name
}

// amount is the year's expense; growth applies only to fixed items.
func (e ExpenseItem) amount(egi float64, units int, growth float64) float64 {
	var base float64
	switch {
	case e.Annual > 0:
		base = e.Annual
	case e.Monthly > 0:
		base = e.Monthly * 12
	default:
		return egi * e.PercentOfIncome / 100
	}
	if e.PerUnit {
		base *= float64(units)
	}
	return base * growth
}

// Expenses holds operating expense assumptions. Currency amounts are
// annual unless named monthly; percentages are of EGI.
type Expenses struct {
	PropertyTax      float64       `json:"property_tax_annual"`
	Insurance        float64       `json:"insurance_annual"`
	HOAMonthly       float64       `json:"hoa_monthly"`
	UtilitiesMonthly float64       `json:"utilities_monthly"`
	MaintenancePct   float64       `json:"maintenance_percent"`
	ManagementPct    float64       `json:"management_percent"`
	CapExPct         float64       `json:"capex_percent"`
	AnnualIncrease   float64       `json:"annual_expense_growth_percent"`
	Other            []ExpenseItem `json:"other_expenses,omitempty"`
}

func (e Expenses) validate(v *ValidationError) {
	if e.PropertyTax < 0 || e.Insurance < 0 || e.HOAMonthly < 0 || e.UtilitiesMonthly < 0 {
		v.Add("fixed expenses cannot be negative")
	}
	checkRange(v, "maintenance percent", e.MaintenancePct, 0, 30)
	checkRange(v, "management percent", e.ManagementPct, 0, 15)
	checkRange(v, "capex percent", e.CapExPct, 0, 20)
	checkRange(v, "annual expense growth", e.AnnualIncrease, 0, 20)
	for _, item := range e.Other {
		if item.Annual < 0 || item.Monthly < 0 || item.PercentOfIncome < 0 || item.PercentOfIncome > 100 {
			v.Add("expense %q has an invalid amount", item.Label())
		}
		if item.Annual == 0 && item.Monthly == 0 && item.PercentOfIncome == 0 {
			v.Add("expense %q needs an annual, monthly or percentage amount", item.Label())
		}
	}
}

// LineItem is a named amount in a breakdown.
type LineItem struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Breakdown is one year of operating expenses by component.
type Breakdown struct {
	PropertyTax float64    `json:"property_tax"`
	Insurance   float64    `json:"insurance"`
	HOA         float64    `json:"hoa"`
	Utilities   float64    `json:"utilities"`
	Maintenance float64    `json:"maintenance"`
	Management  float64    `json:"management"`
	CapEx       float64    `json:"capex_reserve"`
	Other       []LineItem `json:"other,omitempty"`
}

// Fixed sums the components that do not depend on income.
func (b Breakdown) Fixed() float64 {
	return b.PropertyTax + b.Insurance + b.HOA + b.Utilities
}

// Variable sums the percentage-of-EGI components.
func (b Breakdown) Variable() float64 {
	return b.Maintenance + b.Management + b.CapEx
}

// OtherTotal sums the additional items.
func (b Breakdown) OtherTotal() float64 {
	var total float64
	for _, li := range b.Other {
		total += li.Amount
	}
	return total
}

// Total is the year's operating expense.
func (b Breakdown) Total() float64 {
	return b.Fixed() + b.Variable() + b.OtherTotal()
}

// Lines lists every component in display order.
func (b Breakdown) Lines() []LineItem {
	lines := []LineItem{
		{"Property Tax", b.PropertyTax},
		{"Insurance", b.Insurance},
		{"HOA", b.HOA},
		{"Utilities", b.Utilities},
		{"Maintenance", b.Maintenance},
		{"Management", b.Management},
		{"CapEx Reserve", b.CapEx},
	}
	return append(lines, b.Other...)
}

// Breakdown computes the expenses of a year given that year's EGI. Fixed
// components compound from the base; variable components follow EGI and
// take no separate growth.
func (e Expenses) Breakdown(egi float64, units, year int) Breakdown {
	g := math.Pow(1+e.AnnualIncrease/100, float64(year-1))
	b := Breakdown{
		PropertyTax: e.PropertyTax * g,
		Insurance:   e.Insurance * g,
		HOA:         e.HOAMonthly * 12 * g,
		Utilities:   e.UtilitiesMonthly * 12 * g,
		Maintenance: egi * e.MaintenancePct / 100,
		Management:  egi * e.ManagementPct / 100,
		CapEx:       egi * e.CapExPct / 100,
	}
	for _, item := range e.Other {
		b.Other = append(b.Other, LineItem{Name: item.Label(), Amount: item.amount(egi, units, g)})
	}
	return b
}

// Total is shorthand for Breakdown(...).Total().
func (e Expenses) Total(egi float64, units, year int) float64 {
	return e.Breakdown(egi, units, year).Total()
}
