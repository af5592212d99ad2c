package models

// Payment is one row of an amortization schedule.
type Payment struct {
	PaymentNumber       int      `json:"payment_number"`
	Year                int      `json:"year"`  // 1-based loan year
	Month               int      `json:"month"` // 1..12 within the loan year
	BeginningBalance    float64  `json:"beginning_balance"`
	Payment             float64  `json:"payment"`
	Principal           float64  `json:"principal"`
	Interest            float64  `json:"interest"`
	EndingBalance       float64  `json:"ending_balance"`
	CumulativePrincipal float64  `json:"cumulative_principal"`
	CumulativeInterest  float64  `json:"cumulative_interest"`
	Events              []string `json:"events,omitempty"`
}

// HasEvents reports whether anything notable happened in this period.
func (p Payment) HasEvents() bool { return len(p.Events) > 0 }

// YearSummary collapses the payments of a single loan year.
type YearSummary struct {
	Year                int     `json:"year"`
	Payment             float64 `json:"payment"`
	Principal           float64 `json:"principal"`
	Interest            float64 `json:"interest"`
	EndingBalance       float64 `json:"ending_balance"`
	CumulativePrincipal float64 `json:"cumulative_principal"`
	CumulativeInterest  float64 `json:"cumulative_interest"`
}
