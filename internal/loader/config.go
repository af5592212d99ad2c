package loader

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/seenimoa/dealscope/internal/deal"
)

// ConfigDocument is the short-key form of a deal, the shape hand-written
// deal configs use ("cash_purchase", "israeli_mortgage_tracks", "market").
// It is converted to a Document before building, so both shapes share one
// validation path.
type ConfigDocument struct {
	ID            string          `mapstructure:"id"`
	Name          string          `mapstructure:"name"`
	Status        string          `mapstructure:"status"`
	Notes         string          `mapstructure:"notes"`
	HoldingPeriod *int            `mapstructure:"holding_period"`
	Property      ConfigProperty  `mapstructure:"property"`
	Financing     ConfigFinancing `mapstructure:"financing"`
	Income        ConfigIncome    `mapstructure:"income"`
	Expenses      ConfigExpenses  `mapstructure:"expenses"`
	Market        *ConfigMarket   `mapstructure:"market"`
}

type ConfigProperty struct {
	Address       string   `mapstructure:"address"`
	Type          string   `mapstructure:"type"`
	PurchasePrice float64  `mapstructure:"purchase_price"`
	ClosingCosts  float64  `mapstructure:"closing_costs"`
	RehabBudget   float64  `mapstructure:"rehab_budget"`
	Units         int      `mapstructure:"units"`
	Bedrooms      *int     `mapstructure:"bedrooms"`
	Bathrooms     *float64 `mapstructure:"bathrooms"`
	SquareFootage int      `mapstructure:"square_footage"`
	YearBuilt     int      `mapstructure:"year_built"`
}

type ConfigFinancing struct {
	Type               string        `mapstructure:"type"`
	Cash               bool          `mapstructure:"cash_purchase"`
	DownPaymentPercent *float64      `mapstructure:"down_payment_percent"`
	InterestRate       *float64      `mapstructure:"interest_rate"`
	TermYears          *int          `mapstructure:"loan_term"`
	Points             float64       `mapstructure:"points"`
	Tracks             []ConfigTrack `mapstructure:"israeli_mortgage_tracks"`
}

// ConfigTrack flattens the optional grace period and a single prepayment
// into scalar keys.
type ConfigTrack struct {
	Name             string   `mapstructure:"name"`
	Type             string   `mapstructure:"track_type"`
	Percentage       *float64 `mapstructure:"percentage"`
	Amount           float64  `mapstructure:"amount"`
	BaseRate         *float64 `mapstructure:"base_rate"`
	TermMonths       int      `mapstructure:"loan_term_months"`
	TermYears        int      `mapstructure:"loan_term"`
	BankOfIsraelRate *float64 `mapstructure:"bank_of_israel_rate"`
	PrimeMargin      *float64 `mapstructure:"prime_margin"`
	ExpectedCPI      *float64 `mapstructure:"expected_cpi"`
	Method           string   `mapstructure:"repayment_method"`
	GraceMonths      int      `mapstructure:"grace_period"`
	GraceType        string   `mapstructure:"grace_type"`
	PrepaymentMonth  int      `mapstructure:"prepayment_month"`
	PrepaymentAmount float64  `mapstructure:"prepayment_amount"`
	PrepaymentType   string   `mapstructure:"prepayment_type"`
}

type ConfigIncome struct {
	MonthlyRent    float64            `mapstructure:"monthly_rent"`
	VacancyRate    *float64           `mapstructure:"vacancy_rate"`
	CreditLoss     *float64           `mapstructure:"credit_loss"`
	AnnualIncrease *float64           `mapstructure:"annual_increase"`
	Other          []ConfigIncomeItem `mapstructure:"other_income"`
}

type ConfigIncomeItem struct {
	Type        string  `mapstructure:"type"`
	Amount      float64 `mapstructure:"amount"`
	PerUnit     bool    `mapstructure:"per_unit"`
	Description string  `mapstructure:"description"`
}

type ConfigExpenses struct {
	PropertyTax    float64  `mapstructure:"property_tax"`
	Insurance      float64  `mapstructure:"insurance"`
	HOA            float64  `mapstructure:"hoa"`
	Utilities      float64  `mapstructure:"utilities"`
	MaintenancePct *float64 `mapstructure:"maintenance_percent"`
	ManagementPct  *float64 `mapstructure:"management_percent"`
	CapExPct       *float64 `mapstructure:"capex_percent"`
	AnnualIncrease *float64 `mapstructure:"annual_increase"`
}

type ConfigMarket struct {
	Appreciation *float64 `mapstructure:"appreciation"`
	SalesExpense *float64 `mapstructure:"sales_expense"`
	Inflation    *float64 `mapstructure:"inflation"`
}

// Defaults specific to the config shape.
const (
	DefaultHoldingPeriod    = 10
	DefaultDownPayment      = 20.0
	DefaultInterestRate     = 7.0
	DefaultTermYears        = 30
	DefaultTrackPercent     = 33.0
	DefaultTrackBaseRate    = 5.0
	DefaultPropertyType     = "single_family"
	DefaultBedrooms         = 3
	DefaultBathrooms        = 2.0
	defaultPrepaymentOption = "reduce_payment"
)

// configKeys mark a document as config-shaped. None of them exist in the
// stored form.
var configKeys = []string{
	"financing.cash_purchase",
	"financing.israeli_mortgage_tracks",
	"financing.loan_term",
	"income.monthly_rent",
	"property.type",
	"property.units",
	"market",
}

func isConfigShape(v *viper.Viper) bool {
	for _, k := range configKeys {
		if v.IsSet(k) {
			return true
		}
	}
	return false
}

func decodeConfig(v *viper.Viper) (*Document, error) {
	var c ConfigDocument
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("error unmarshaling deal config: %w", err)
	}
	return FromConfig(&c), nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// FromConfig converts the short-key form into a Document, filling the
// defaults the short form implies.
func FromConfig(c *ConfigDocument) *Document {
	p := c.Property
	doc := &Document{
		ID:            c.ID,
		Name:          c.Name,
		Status:        c.Status,
		Notes:         c.Notes,
		HoldingPeriod: intOr(c.HoldingPeriod, DefaultHoldingPeriod),
		Property: PropertyDoc{
			Address:       p.Address,
			Type:          p.Type,
			PurchasePrice: p.PurchasePrice,
			ClosingCosts:  p.ClosingCosts,
			RehabBudget:   p.RehabBudget,
			Units:         p.Units,
			Bedrooms:      intOr(p.Bedrooms, DefaultBedrooms),
			Bathrooms:     orDefault(p.Bathrooms, DefaultBathrooms),
			SquareFootage: p.SquareFootage,
			YearBuilt:     p.YearBuilt,
		},
		Financing: configFinancing(c.Financing),
		Income: IncomeDoc{
			MonthlyRent:    c.Income.MonthlyRent,
			VacancyRate:    c.Income.VacancyRate,
			CreditLoss:     c.Income.CreditLoss,
			AnnualIncrease: c.Income.AnnualIncrease,
		},
		Expenses: ExpensesDoc{
			PropertyTax:      c.Expenses.PropertyTax,
			Insurance:        c.Expenses.Insurance,
			HOAMonthly:       c.Expenses.HOA,
			UtilitiesMonthly: c.Expenses.Utilities,
			MaintenancePct:   c.Expenses.MaintenancePct,
			ManagementPct:    c.Expenses.ManagementPct,
			CapExPct:         c.Expenses.CapExPct,
			AnnualIncrease:   c.Expenses.AnnualIncrease,
		},
	}
	if doc.Property.Type == "" {
		doc.Property.Type = DefaultPropertyType
	}
	if doc.Name == "" {
		doc.Name = p.Address
	}
	for _, item := range c.Income.Other {
		source := item.Type
		if source == "" {
			source = "other"
		}
		doc.Income.Other = append(doc.Income.Other, IncomeItemDoc{
			Source:        source,
			MonthlyAmount: item.Amount,
			PerUnit:       item.PerUnit,
			Description:   item.Description,
		})
	}
	if m := c.Market; m != nil {
		def := deal.DefaultMarket()
		doc.Market = &MarketDoc{
			Appreciation: orDefault(m.Appreciation, def.Appreciation),
			SalesExpense: orDefault(m.SalesExpense, def.SalesExpense),
			Inflation:    orDefault(m.Inflation, def.Inflation),
		}
	}
	return doc
}

func configFinancing(f ConfigFinancing) FinancingDoc {
	if f.Cash {
		return FinancingDoc{Type: f.Type, Cash: true, DownPaymentPercent: 100}
	}
	out := FinancingDoc{
		Type:               f.Type,
		DownPaymentPercent: orDefault(f.DownPaymentPercent, DefaultDownPayment),
		Points:             f.Points,
	}
	if len(f.Tracks) == 0 {
		out.InterestRate = orDefault(f.InterestRate, DefaultInterestRate)
		out.TermYears = intOr(f.TermYears, DefaultTermYears)
		return out
	}
	for i, t := range f.Tracks {
		out.Tracks = append(out.Tracks, configTrack(i+1, t))
	}
	return out
}

// configTrack converts the n-th (1-based) track. Unnamed tracks are called
// "Track n" so names stay unique.
func configTrack(n int, t ConfigTrack) SubLoanDoc {
	sl := SubLoanDoc{
		Name:             t.Name,
		Type:             t.Type,
		Amount:           t.Amount,
		BaseRate:         orDefault(t.BaseRate, DefaultTrackBaseRate),
		TermMonths:       t.TermMonths,
		BankOfIsraelRate: t.BankOfIsraelRate,
		PrimeMargin:      t.PrimeMargin,
		ExpectedCPI:      t.ExpectedCPI,
		Method:           t.Method,
	}
	if sl.Name == "" {
		sl.Name = fmt.Sprintf("Track %d", n)
	}
	if sl.Type == "" {
		sl.Type = "fixed_unlinked"
	}
	if t.Amount == 0 {
		sl.Percent = orDefault(t.Percentage, DefaultTrackPercent)
	}
	if sl.TermMonths == 0 {
		years := t.TermYears
		if years == 0 {
			years = DefaultTermYears
		}
		sl.TermMonths = years * 12
	}
	// A grace length without a type, or a type without a length, means none.
	if t.GraceMonths > 0 && t.GraceType != "" {
		sl.Grace = &GraceDoc{Months: t.GraceMonths, Type: t.GraceType}
	}
	if t.PrepaymentMonth > 0 && t.PrepaymentAmount > 0 {
		opt := t.PrepaymentType
		if opt == "" {
			opt = defaultPrepaymentOption
		}
		sl.Prepayments = []PrepaymentDoc{{Month: t.PrepaymentMonth, Amount: t.PrepaymentAmount, Option: opt}}
	}
	return sl
}
