package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/mortgage"
)

// ErrInvalidDocument is matched by every ValidationError.
var ErrInvalidDocument = errors.New("invalid deal document")

// ValidationError lists every problem found in a document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidDocument.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDocument }

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// percentSumTolerance is how far track percentages may stray from 100.
const percentSumTolerance = 0.01

// Read decodes a document in the given format ("json", "yaml" or "yml").
func Read(r io.Reader, format string) (*Document, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	switch format {
	case "json", "yaml", "yml":
	default:
		return nil, fmt.Errorf("unsupported deal format %q", format)
	}

	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading deal document: %w", err)
	}
	return decode(v)
}

// ReadFile reads a document, taking the format from the file extension.
func ReadFile(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("unsupported deal file %s: want .json, .yaml or .yml", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading deal file %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Document, error) {
	if isConfigShape(v) {
		return decodeConfig(v)
	}
	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("error unmarshaling deal document: %w", err)
	}
	return &doc, nil
}

// Load reads a file and builds the deal it describes.
func Load(path string) (*deal.Deal, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// ════════════════════════════════════════════════════════════════════
// Document → Deal
// ════════════════════════════════════════════════════════════════════

// Build validates a document and constructs the deal. Document-level
// problems are collected into one *ValidationError; the deal's own
// validation runs only once the document is well formed. A document
// without an ID gets a fresh UUID.
func Build(doc *Document) (*deal.Deal, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	verr := &ValidationError{}

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		id = uuid.NewString()
		doc.ID = id
	}

	ptype, ok := deal.ParsePropertyType(doc.Property.Type)
	if !ok {
		verr.add("unknown property_type %q", doc.Property.Type)
	}

	created := time.Now()
	if doc.Created != "" {
		t, err := parseTime(doc.Created)
		if err != nil {
			verr.add("created_date %q: %v", doc.Created, err)
		}
		created = t
	}

	fin, finErr := buildFinancing(doc.Financing, doc.Property.PurchasePrice, verr)

	if len(verr.Problems) > 0 {
		return nil, verr
	}
	if finErr != nil {
		return nil, finErr
	}

	units := doc.Property.Units
	if units == 0 {
		units = 1
	}
	market := deal.DefaultMarket()
	if doc.Market != nil {
		market = deal.MarketAssumptions(*doc.Market)
	}

	d, err := deal.New(deal.Params{
		ID:            id,
		Name:          doc.Name,
		Status:        deal.Status(strings.ToLower(doc.Status)),
		Notes:         doc.Notes,
		Created:       created,
		HoldingPeriod: doc.HoldingPeriod,
		Property: deal.Property{
			Address:       doc.Property.Address,
			Type:          ptype,
			PurchasePrice: doc.Property.PurchasePrice,
			ClosingCosts:  doc.Property.ClosingCosts,
			RehabBudget:   doc.Property.RehabBudget,
			Units:         units,
			Bedrooms:      doc.Property.Bedrooms,
			Bathrooms:     doc.Property.Bathrooms,
			SquareFootage: doc.Property.SquareFootage,
			YearBuilt:     doc.Property.YearBuilt,
		},
		Financing: fin,
		Income:    buildIncome(doc.Income),
		Expenses:  buildExpenses(doc.Expenses),
		Market:    market,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("deal loaded", "id", id, "mode", fin.Mode(), "price", doc.Property.PurchasePrice)
	return d, nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("want RFC 3339 or YYYY-MM-DD")
}

// buildFinancing reports shape problems on verr; errors from the mortgage
// package itself are returned.
func buildFinancing(f FinancingDoc, price float64, verr *ValidationError) (mortgage.Financing, error) {
	if f.Cash || strings.EqualFold(f.Type, string(mortgage.ModeCash)) {
		if len(f.Tracks) > 0 {
			verr.add("a cash purchase cannot have sub_loans")
		}
		return mortgage.NewCashFinancing(), nil
	}

	if len(f.Tracks) == 0 {
		if f.InterestRate == 0 && f.TermYears == 0 {
			verr.add("financing needs interest_rate and loan_term_years, sub_loans, or is_cash_purchase")
			return mortgage.Financing{}, nil
		}
		return mortgage.NewLegacyFinancing(f.DownPaymentPercent, f.InterestRate, f.TermYears, f.Points)
	}

	loan := price * (1 - f.DownPaymentPercent/100)
	principals := resolvePrincipals(f.Tracks, loan, verr)

	var tracks []mortgage.Track
	for i, sl := range f.Tracks {
		t, err := buildTrack(sl, principals[i], verr)
		if err != nil {
			verr.add("track %q: %v", sl.Name, err)
			continue
		}
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	if len(verr.Problems) > 0 {
		return mortgage.Financing{}, nil
	}
	return mortgage.NewTrackFinancing(f.DownPaymentPercent, f.Points, tracks...)
}

// resolvePrincipals turns amounts or percentages into track principals.
// Tracks must all use one or the other.
func resolvePrincipals(tracks []SubLoanDoc, loan float64, verr *ValidationError) []float64 {
	out := make([]float64, len(tracks))
	var byPercent, byAmount int
	var sum float64
	for i, t := range tracks {
		switch {
		case t.Amount > 0 && t.Percent > 0:
			verr.add("track %q: set loan_amount or loan_percent, not both", t.Name)
		case t.Percent > 0:
			byPercent++
			sum += t.Percent
			out[i] = loan * t.Percent / 100
		case t.Amount > 0:
			byAmount++
			out[i] = t.Amount
		default:
			verr.add("track %q: loan_amount or loan_percent is required", t.Name)
		}
	}
	if byPercent > 0 && byAmount > 0 {
		verr.add("tracks mix loan_amount and loan_percent")
	}
	if byPercent > 0 && byAmount == 0 && math.Abs(sum-100) > percentSumTolerance {
		verr.add("track percentages sum to %.2f%%, want 100%%", sum)
	}
	return out
}

func buildTrack(sl SubLoanDoc, principal float64, verr *ValidationError) (*mortgage.Track, error) {
	tt, err := mortgage.ParseTrackType(sl.Type)
	if err != nil {
		return nil, err
	}

	var index mortgage.Indexation
	switch tt {
	case mortgage.TrackPrime:
		if sl.BankOfIsraelRate == nil {
			verr.add("track %q: prime_rate requires bank_of_israel_rate", sl.Name)
			return nil, nil
		}
		p := mortgage.Prime{ReferenceRate: *sl.BankOfIsraelRate}
		if sl.PrimeMargin != nil {
			p = p.WithMargin(*sl.PrimeMargin)
		}
		index = p
	case mortgage.TrackFixedLinked:
		if sl.ExpectedCPI == nil {
			verr.add("track %q: fixed_rate_linked requires expected_cpi", sl.Name)
			return nil, nil
		}
		index = mortgage.CPILinked{ExpectedCPI: *sl.ExpectedCPI}
	default:
		index = mortgage.FixedUnlinked{}
	}
	if tt != mortgage.TrackPrime && (sl.BankOfIsraelRate != nil || sl.PrimeMargin != nil) {
		verr.add("track %q: bank_of_israel_rate and prime_margin apply only to prime_rate tracks", sl.Name)
	}
	if tt != mortgage.TrackFixedLinked && sl.ExpectedCPI != nil {
		verr.add("track %q: expected_cpi applies only to fixed_rate_linked tracks", sl.Name)
	}

	method, err := mortgage.ParseRepaymentMethod(sl.Method)
	if err != nil {
		return nil, err
	}
	opts := []mortgage.TrackOption{mortgage.WithMethod(method)}
	if sl.Grace != nil {
		gt, err := mortgage.ParseGraceType(sl.Grace.Type)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mortgage.WithGrace(sl.Grace.Months, gt))
	}
	for _, rc := range sl.RateChanges {
		opts = append(opts, mortgage.WithRateChange(rc.Month, rc.Delta))
	}
	for _, pp := range sl.Prepayments {
		opt, err := mortgage.ParsePrepaymentOption(pp.Option)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mortgage.WithPrepayment(pp.Month, pp.Amount, opt))
	}

	t, err := mortgage.NewTrack(sl.Name, index, principal, sl.BaseRate, sl.TermMonths, opts...)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func buildIncome(in IncomeDoc) deal.Income {
	out := deal.Income{
		MonthlyRent:    in.MonthlyRent,
		VacancyRate:    orDefault(in.VacancyRate, DefaultVacancy),
		CreditLoss:     orDefault(in.CreditLoss, DefaultCreditLoss),
		AnnualIncrease: orDefault(in.AnnualIncrease, DefaultRentGrowth),
	}
	for _, item := range in.Other {
		out.Other = append(out.Other, deal.IncomeItem(item))
	}
	return out
}

func buildExpenses(e ExpensesDoc) deal.Expenses {
	out := deal.Expenses{
		PropertyTax:      e.PropertyTax,
		Insurance:        e.Insurance,
		HOAMonthly:       e.HOAMonthly,
		UtilitiesMonthly: e.UtilitiesMonthly,
		MaintenancePct:   orDefault(e.MaintenancePct, DefaultMaintenancePct),
		ManagementPct:    orDefault(e.ManagementPct, DefaultManagementPct),
		CapExPct:         orDefault(e.CapExPct, DefaultCapExPct),
		AnnualIncrease:   orDefault(e.AnnualIncrease, DefaultExpenseGrowth),
	}
	for _, item := range e.Other {
		out.Other = append(out.Other, deal.ExpenseItem(item))
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Deal → Document
// ════════════════════════════════════════════════════════════════════

func ptr(v float64) *float64 { return &v }

// FromDeal renders a deal as a document. Track principals are written as
// amounts. Building the result yields an equivalent deal.
func FromDeal(d *deal.Deal) *Document {
	p := d.Property()
	f := d.Financing()
	in := d.Income()
	ex := d.Expenses()
	m := d.Market()

	doc := &Document{
		ID:            d.ID(),
		Name:          d.Name(),
		Status:        string(d.Status()),
		Notes:         d.Notes(),
		HoldingPeriod: d.HoldingPeriod(),
		Property: PropertyDoc{
			Address:       p.Address,
			Type:          string(p.Type),
			PurchasePrice: p.PurchasePrice,
			ClosingCosts:  p.ClosingCosts,
			RehabBudget:   p.RehabBudget,
			Units:         p.Units,
			Bedrooms:      p.Bedrooms,
			Bathrooms:     p.Bathrooms,
			SquareFootage: p.SquareFootage,
			YearBuilt:     p.YearBuilt,
		},
		Financing: FinancingDoc{
			Type:               string(f.Mode()),
			Cash:               f.IsCash(),
			DownPaymentPercent: f.DownPaymentPercent(),
			Points:             f.Points(),
		},
		Income: IncomeDoc{
			MonthlyRent:    in.MonthlyRent,
			VacancyRate:    ptr(in.VacancyRate),
			CreditLoss:     ptr(in.CreditLoss),
			AnnualIncrease: ptr(in.AnnualIncrease),
		},
		Expenses: ExpensesDoc{
			PropertyTax:      ex.PropertyTax,
			Insurance:        ex.Insurance,
			HOAMonthly:       ex.HOAMonthly,
			UtilitiesMonthly: ex.UtilitiesMonthly,
			MaintenancePct:   ptr(ex.MaintenancePct),
			ManagementPct:    ptr(ex.ManagementPct),
			CapExPct:         ptr(ex.CapExPct),
			AnnualIncrease:   ptr(ex.AnnualIncrease),
		},
		Market: &MarketDoc{Appreciation: m.Appreciation, SalesExpense: m.SalesExpense, Inflation: m.Inflation},
	}
	if !d.Created().IsZero() {
		doc.Created = d.Created().Format(time.RFC3339)
	}
	for _, item := range in.Other {
		doc.Income.Other = append(doc.Income.Other, IncomeItemDoc(item))
	}
	for _, item := range ex.Other {
		doc.Expenses.Other = append(doc.Expenses.Other, ExpenseItemDoc(item))
	}

	switch f.Mode() {
	case mortgage.ModeLegacy:
		doc.Financing.InterestRate = f.InterestRate()
		doc.Financing.TermYears = f.TermYears()
	case mortgage.ModeTracks:
		for _, t := range f.Tracks() {
			doc.Financing.Tracks = append(doc.Financing.Tracks, subLoanDoc(t))
		}
	}
	return doc
}

func subLoanDoc(t mortgage.Track) SubLoanDoc {
	sl := SubLoanDoc{
		Name:       t.Name(),
		Type:       string(t.Type()),
		Amount:     t.Principal(),
		BaseRate:   t.BaseRate(),
		TermMonths: t.TermMonths(),
		Method:     string(t.Method()),
	}
	switch idx := t.Indexation().(type) {
	case mortgage.Prime:
		sl.BankOfIsraelRate = ptr(idx.ReferenceRate)
		if idx.Margin != nil {
			sl.PrimeMargin = ptr(*idx.Margin)
		}
	case mortgage.CPILinked:
		sl.ExpectedCPI = ptr(idx.ExpectedCPI)
	}
	if g, ok := t.Grace(); ok {
		sl.Grace = &GraceDoc{Months: g.Months, Type: string(g.Type)}
	}
	for _, rc := range t.RateChanges() {
		sl.RateChanges = append(sl.RateChanges, RateChangeDoc(rc))
	}
	for _, pp := range t.Prepayments() {
		sl.Prepayments = append(sl.Prepayments, PrepaymentDoc{Month: pp.Month, Amount: pp.Amount, Option: string(pp.Option)})
	}
	return sl
}
