// Package loader reads deal documents (JSON or YAML) and turns them into
// validated deals. Documents are also the persisted form of a deal. The
// short-key config form (see ConfigDocument) is accepted on read.
package loader

// Document is a deal as written by a user or stored on disk.
type Document struct {
	ID            string           `mapstructure:"deal_id"              json:"deal_id"              yaml:"deal_id"`
	Name          string           `mapstructure:"deal_name"            json:"deal_name"            yaml:"deal_name"`
	Status        string           `mapstructure:"status"               json:"status,omitempty"     yaml:"status,omitempty"`
	Created       string           `mapstructure:"created_date"         json:"created_date,omitempty" yaml:"created_date,omitempty"`
	Notes         string           `mapstructure:"notes"                json:"notes,omitempty"      yaml:"notes,omitempty"`
	HoldingPeriod int              `mapstructure:"holding_period_years" json:"holding_period_years,omitempty" yaml:"holding_period_years,omitempty"`
	Property      PropertyDoc      `mapstructure:"property"             json:"property"             yaml:"property"`
	Financing     FinancingDoc     `mapstructure:"financing"            json:"financing"            yaml:"financing"`
	Income        IncomeDoc        `mapstructure:"income"               json:"income"               yaml:"income"`
	Expenses      ExpensesDoc      `mapstructure:"expenses"             json:"expenses"             yaml:"expenses"`
	Market        *MarketDoc       `mapstructure:"market_assumptions"   json:"market_assumptions,omitempty" yaml:"market_assumptions,omitempty"`
}

// PropertyDoc describes the asset.
type PropertyDoc struct {
	Address       string  `mapstructure:"address"        json:"address"        yaml:"address"`
	Type          string  `mapstructure:"property_type"  json:"property_type"  yaml:"property_type"`
	PurchasePrice float64 `mapstructure:"purchase_price" json:"purchase_price" yaml:"purchase_price"`
	ClosingCosts  float64 `mapstructure:"closing_costs"  json:"closing_costs"  yaml:"closing_costs"`
	RehabBudget   float64 `mapstructure:"rehab_budget"   json:"rehab_budget"   yaml:"rehab_budget"`
	Units         int     `mapstructure:"num_units"      json:"num_units"      yaml:"num_units"`
	Bedrooms      int     `mapstructure:"bedrooms"       json:"bedrooms"       yaml:"bedrooms"`
	Bathrooms     float64 `mapstructure:"bathrooms"      json:"bathrooms"      yaml:"bathrooms"`
	SquareFootage int     `mapstructure:"square_footage" json:"square_footage,omitempty" yaml:"square_footage,omitempty"`
	YearBuilt     int     `mapstructure:"year_built"     json:"year_built,omitempty"     yaml:"year_built,omitempty"`
}

// FinancingDoc selects one of three structures: a cash purchase, a single
// loan (interest_rate and loan_term_years) or Israeli tracks (sub_loans).
type FinancingDoc struct {
	Type               string       `mapstructure:"financing_type"       json:"financing_type,omitempty" yaml:"financing_type,omitempty"`
	Cash               bool         `mapstructure:"is_cash_purchase"     json:"is_cash_purchase"     yaml:"is_cash_purchase"`
	DownPaymentPercent float64      `mapstructure:"down_payment_percent" json:"down_payment_percent" yaml:"down_payment_percent"`
	InterestRate       float64      `mapstructure:"interest_rate"        json:"interest_rate,omitempty"   yaml:"interest_rate,omitempty"`
	TermYears          int          `mapstructure:"loan_term_years"      json:"loan_term_years,omitempty" yaml:"loan_term_years,omitempty"`
	Points             float64      `mapstructure:"loan_points"          json:"loan_points,omitempty"     yaml:"loan_points,omitempty"`
	Tracks             []SubLoanDoc `mapstructure:"sub_loans"            json:"sub_loans,omitempty"       yaml:"sub_loans,omitempty"`
}

// SubLoanDoc is one mortgage track. Its principal is either an amount or a
// percentage of the loan; percentages across tracks must sum to 100.
type SubLoanDoc struct {
	Name              string          `mapstructure:"name"                json:"name"                 yaml:"name"`
	Type              string          `mapstructure:"track_type"          json:"track_type"           yaml:"track_type"`
	Amount            float64         `mapstructure:"loan_amount"         json:"loan_amount,omitempty"  yaml:"loan_amount,omitempty"`
	Percent           float64         `mapstructure:"loan_percent"        json:"loan_percent,omitempty" yaml:"loan_percent,omitempty"`
	BaseRate          float64         `mapstructure:"base_interest_rate"  json:"base_interest_rate"   yaml:"base_interest_rate"`
	TermMonths        int             `mapstructure:"loan_term_months"    json:"loan_term_months"     yaml:"loan_term_months"`
	BankOfIsraelRate  *float64        `mapstructure:"bank_of_israel_rate" json:"bank_of_israel_rate,omitempty" yaml:"bank_of_israel_rate,omitempty"`
	PrimeMargin       *float64        `mapstructure:"prime_margin"        json:"prime_margin,omitempty"        yaml:"prime_margin,omitempty"`
	ExpectedCPI       *float64        `mapstructure:"expected_cpi"        json:"expected_cpi,omitempty"        yaml:"expected_cpi,omitempty"`
	Method            string          `mapstructure:"repayment_method"    json:"repayment_method,omitempty"    yaml:"repayment_method,omitempty"`
	Grace             *GraceDoc       `mapstructure:"grace_period"        json:"grace_period,omitempty"        yaml:"grace_period,omitempty"`
	RateChanges       []RateChangeDoc `mapstructure:"rate_changes"        json:"rate_changes,omitempty"        yaml:"rate_changes,omitempty"`
	Prepayments       []PrepaymentDoc `mapstructure:"prepayments"         json:"prepayments,omitempty"         yaml:"prepayments,omitempty"`
}

type GraceDoc struct {
	Months int    `mapstructure:"duration_months" json:"duration_months" yaml:"duration_months"`
	Type   string `mapstructure:"grace_type"      json:"grace_type"      yaml:"grace_type"`
}

type RateChangeDoc struct {
	Month int     `mapstructure:"month" json:"month" yaml:"month"`
	Delta float64 `mapstructure:"delta" json:"delta" yaml:"delta"`
}

type PrepaymentDoc struct {
	Month  int     `mapstructure:"month"  json:"month"  yaml:"month"`
	Amount float64 `mapstructure:"amount" json:"amount" yaml:"amount"`
	Option string  `mapstructure:"option" json:"option,omitempty" yaml:"option,omitempty"`
}

// IncomeDoc holds rent assumptions; rates are percentages.
type IncomeDoc struct {
	MonthlyRent    float64         `mapstructure:"monthly_rent_per_unit"        json:"monthly_rent_per_unit"        yaml:"monthly_rent_per_unit"`
	VacancyRate    *float64        `mapstructure:"vacancy_rate_percent"         json:"vacancy_rate_percent,omitempty" yaml:"vacancy_rate_percent,omitempty"`
	CreditLoss     *float64        `mapstructure:"credit_loss_percent"          json:"credit_loss_percent,omitempty"  yaml:"credit_loss_percent,omitempty"`
	AnnualIncrease *float64        `mapstructure:"annual_rent_increase_percent" json:"annual_rent_increase_percent,omitempty" yaml:"annual_rent_increase_percent,omitempty"`
	Other          []IncomeItemDoc `mapstructure:"other_income"                 json:"other_income,omitempty"       yaml:"other_income,omitempty"`
}

type IncomeItemDoc struct {
	Source        string  `mapstructure:"source"         json:"source"         yaml:"source"`
	MonthlyAmount float64 `mapstructure:"monthly_amount" json:"monthly_amount" yaml:"monthly_amount"`
	PerUnit       bool    `mapstructure:"is_per_unit"    json:"is_per_unit"    yaml:"is_per_unit"`
	Description   string  `mapstructure:"description"    json:"description,omitempty" yaml:"description,omitempty"`
}

// ExpensesDoc holds operating expenses. Unset percentages take the usual
// underwriting defaults.
type ExpensesDoc struct {
	PropertyTax      float64          `mapstructure:"property_tax_annual"             json:"property_tax_annual"  yaml:"property_tax_annual"`
	Insurance        float64          `mapstructure:"insurance_annual"                json:"insurance_annual"     yaml:"insurance_annual"`
	HOAMonthly       float64          `mapstructure:"hoa_monthly"                     json:"hoa_monthly,omitempty" yaml:"hoa_monthly,omitempty"`
	UtilitiesMonthly float64          `mapstructure:"landlord_paid_utilities_monthly" json:"landlord_paid_utilities_monthly,omitempty" yaml:"landlord_paid_utilities_monthly,omitempty"`
	MaintenancePct   *float64         `mapstructure:"maintenance_percent"             json:"maintenance_percent,omitempty"          yaml:"maintenance_percent,omitempty"`
	ManagementPct    *float64         `mapstructure:"property_management_percent"     json:"property_management_percent,omitempty"  yaml:"property_management_percent,omitempty"`
	CapExPct         *float64         `mapstructure:"capex_reserve_percent"           json:"capex_reserve_percent,omitempty"        yaml:"capex_reserve_percent,omitempty"`
	AnnualIncrease   *float64         `mapstructure:"annual_expense_growth_percent"   json:"annual_expense_growth_percent,omitempty" yaml:"annual_expense_growth_percent,omitempty"`
	Other            []ExpenseItemDoc `mapstructure:"other_expenses"                  json:"other_expenses,omitempty" yaml:"other_expenses,omitempty"`
}

type ExpenseItemDoc struct {
	Category        string  `mapstructure:"category"             json:"category"             yaml:"category"`
	Annual          float64 `mapstructure:"annual_amount"        json:"annual_amount,omitempty"        yaml:"annual_amount,omitempty"`
	Monthly         float64 `mapstructure:"monthly_amount"       json:"monthly_amount,omitempty"       yaml:"monthly_amount,omitempty"`
	PercentOfIncome float64 `mapstructure:"percentage_of_income" json:"percentage_of_income,omitempty" yaml:"percentage_of_income,omitempty"`
	PerUnit         bool    `mapstructure:"is_per_unit"          json:"is_per_unit"          yaml:"is_per_unit"`
	Description     string  `mapstructure:"description"          json:"description,omitempty" yaml:"description,omitempty"`
}

type MarketDoc struct {
	Appreciation float64 `mapstructure:"annual_appreciation_percent" json:"annual_appreciation_percent" yaml:"annual_appreciation_percent"`
	SalesExpense float64 `mapstructure:"sales_expense_percent"       json:"sales_expense_percent"       yaml:"sales_expense_percent"`
	Inflation    float64 `mapstructure:"inflation_rate_percent"      json:"inflation_rate_percent"      yaml:"inflation_rate_percent"`
}

// Defaults for expense and income fields a document leaves out.
const (
	DefaultVacancy        = 5.0
	DefaultCreditLoss     = 1.0
	DefaultRentGrowth     = 3.0
	DefaultMaintenancePct = 5.0
	DefaultManagementPct  = 8.0
	DefaultCapExPct       = 5.0
	DefaultExpenseGrowth  = 3.0
)
