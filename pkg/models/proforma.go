package models

// ProFormaYear is one row of a multi-year projection. Year 0 is the
// acquisition row: only the cash flow, property value, loan balance and
// total equity are meaningful there.
type ProFormaYear struct {
	Year int `json:"year"`

	GrossRent         float64 `json:"gross_rent"`
	OtherIncome       float64 `json:"other_income"`
	PotentialIncome   float64 `json:"potential_income"`
	VacancyLoss       float64 `json:"vacancy_loss"`
	CreditLoss        float64 `json:"credit_loss"`
	EffectiveIncome   float64 `json:"effective_income"`
	OperatingExpenses float64 `json:"operating_expenses"`
	NOI               float64 `json:"noi"`

	DebtService     float64 `json:"debt_service"`
	PrincipalPaid   float64 `json:"principal_paid"`
	InterestPaid    float64 `json:"interest_paid"`
	CashFlow        float64 `json:"cash_flow"`
	CumulativeCash  float64 `json:"cumulative_cash_flow"`
	CumulativePrinc float64 `json:"cumulative_principal"`

	PropertyValue          float64 `json:"property_value"`
	LoanBalance            float64 `json:"loan_balance"`
	TotalEquity            float64 `json:"total_equity"`
	EquityFromAppreciation float64 `json:"equity_from_appreciation"`
	EquityFromPaydown      float64 `json:"equity_from_paydown"`
	AverageEquity          float64 `json:"average_equity"`
	ROE                    float64 `json:"roe"`
}
