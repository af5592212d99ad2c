package deal

import "math"

// IncomeItem is a non-rent income source such as parking or laundry.
type IncomeItem struct {
	Source        string  `json:"source"`
	MonthlyAmount float64 `json:"monthly_amount"`
	PerUnit       bool    `json:"per_unit"`
	Description   string  `json:"description,omitempty"`
}

// Monthly is the item's income across all units.
func (i IncomeItem) Monthly(units int) float64 {
	if i.PerUnit {
		return i.MonthlyAmount * float64(units)
	}
	return i.MonthlyAmount
}

// Income holds rent and other income assumptions. Rates are percentages.
type Income struct {
	MonthlyRent    float64      `json:"monthly_rent_per_unit"`
	VacancyRate    float64      `json:"vacancy_rate_percent"`
	CreditLoss     float64      `json:"credit_loss_percent"`
	AnnualIncrease float64      `json:"annual_rent_increase_percent"`
	Other          []IncomeItem `json:"other_income,omitempty"`
}

func (in Income) validate(v *ValidationError) {
	if in.MonthlyRent <= 0 {
		v.Add("monthly rent must be positive")
	}
	checkRange(v, "vacancy rate", in.VacancyRate, 0, 50)
	checkRange(v, "credit loss", in.CreditLoss, 0, 10)
	checkRange(v, "annual rent increase", in.AnnualIncrease, 0, 20)
	for _, item := range in.Other {
		if item.MonthlyAmount < 0 {
			v.Add("other income %q cannot be negative", item.Source)
		}
	}
}

// GrossPotentialRent is a full year of rent at 100% occupancy.
func (in Income) GrossPotentialRent(units int) float64 {
	return in.MonthlyRent * float64(units) * 12
}

// OtherAnnual is a year of other income.
func (in Income) OtherAnnual(units int) float64 {
	var total float64
	for _, item := range in.Other {
		total += item.Monthly(units) * 12
	}
	return total
}

// IncomeYear is the income build-up for one projection year.
type IncomeYear struct {
	GrossRent  float64
	Other      float64
	Potential  float64
	Vacancy    float64
	CreditLoss float64
	Effective  float64
}

// Project grows year-1 income to the given year. Growth is always applied
// to the base, never chained from the prior year.
func (in Income) Project(year, units int) IncomeYear {
	g := math.Pow(1+in.AnnualIncrease/100, float64(year-1))
	y := IncomeYear{
		GrossRent: in.GrossPotentialRent(units) * g,
		Other:     in.OtherAnnual(units) * g,
	}
	y.Potential = y.GrossRent + y.Other
	y.Vacancy = y.Potential * in.VacancyRate / 100
	y.CreditLoss = y.Potential * in.CreditLoss / 100
	y.Effective = y.Potential - y.Vacancy - y.CreditLoss
	return y
}

// EffectiveGrossIncome is year-1 EGI.
func (in Income) EffectiveGrossIncome(units int) float64 {
	return in.Project(1, units).Effective
}
