// Package mortgage models Israeli multi-track mortgages: individual tracks
// (מסלולים), their month-by-month amortization, and the financing structure
// that combines them under Bank of Israel composition rules.
package mortgage

import (
	"fmt"
	"sort"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// Enumerations
// ════════════════════════════════════════════════════════════════════

// TrackType identifies the rate regime of a track.
type TrackType string

const (
	TrackFixedUnlinked TrackType = "fixed_unlinked"    // ריבית קבועה לא צמודה
	TrackPrime         TrackType = "prime_rate"        // מסלול פריים
	TrackFixedLinked   TrackType = "fixed_rate_linked" // ריבית קבועה צמודה
)

// ParseTrackType validates a track type name.
func ParseTrackType(s string) (TrackType, error) {
	switch t := TrackType(strings.ToLower(strings.TrimSpace(s))); t {
	case TrackFixedUnlinked, TrackPrime, TrackFixedLinked:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown track type %q", ErrInvalidTrack, s)
}

// IsFixedRate reports whether the interest rate is locked for the whole term.
func (t TrackType) IsFixedRate() bool {
	return t == TrackFixedUnlinked || t == TrackFixedLinked
}

// IsCPILinked reports whether the principal is indexed to CPI.
func (t TrackType) IsCPILinked() bool { return t == TrackFixedLinked }

// HebrewName returns the name used by Israeli banks for the track.
func (t TrackType) HebrewName() string {
	switch t {
	case TrackFixedUnlinked:
		return `ריבית קבועה לא צמודה (קל"צ)`
	case TrackPrime:
		return "מסלול פריים"
	case TrackFixedLinked:
		return "ריבית קבועה צמודה"
	}
	return string(t)
}

// Description returns a one-line English explanation of the track.
func (t TrackType) Description() string {
	switch t {
	case TrackFixedUnlinked:
		return "Fixed rate, not linked to index. Most predictable payments."
	case TrackPrime:
		return fmt.Sprintf("Variable rate based on Bank of Israel prime (BoI rate + %.1f%%).", PrimeMargin)
	case TrackFixedLinked:
		return "Fixed rate, principal linked to CPI index."
	}
	return ""
}

// RepaymentMethod controls how principal is returned.
type RepaymentMethod string

const (
	Spitzer        RepaymentMethod = "spitzer"         // constant annuity payment
	EqualPrincipal RepaymentMethod = "equal_principal" // constant principal, declining payment
	Bullet         RepaymentMethod = "bullet"          // interest only, principal at maturity
)

// ParseRepaymentMethod validates a method name; empty means Spitzer.
func ParseRepaymentMethod(s string) (RepaymentMethod, error) {
	switch m := RepaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Spitzer, nil
	case Spitzer, EqualPrincipal, Bullet:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown repayment method %q", ErrInvalidTrack, s)
}

// GraceType controls what is paid during a grace period.
type GraceType string

const (
	GraceInterestOnly GraceType = "interest_only" // pay interest, no principal reduction
	GraceFullDeferral GraceType = "full_deferral" // pay nothing, interest capitalizes
)

// ParseGraceType validates a grace type name; empty means interest only.
func ParseGraceType(s string) (GraceType, error) {
	switch g := GraceType(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GraceInterestOnly, nil
	case GraceInterestOnly, GraceFullDeferral:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown grace type %q", ErrInvalidTrack, s)
}

// PrepaymentOption controls how a prepayment reshapes the loan.
type PrepaymentOption string

const (
	ReducePayment PrepaymentOption = "reduce_payment" // keep term, lower payment
	ReduceTerm    PrepaymentOption = "reduce_term"    // keep payment, finish earlier
)

// ParsePrepaymentOption validates an option name; empty means reduce payment.
func ParsePrepaymentOption(s string) (PrepaymentOption, error) {
	switch o := PrepaymentOption(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return ReducePayment, nil
	case ReducePayment, ReduceTerm:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown prepayment option %q", ErrInvalidTrack, s)
}

// ════════════════════════════════════════════════════════════════════
// Indexation variants
// ════════════════════════════════════════════════════════════════════

// PrimeMargin is the spread the Israeli prime rate carries over the Bank of
// Israel rate, in percentage points.
const PrimeMargin = 1.5

// Indexation carries the rate-regime parameters of a track. Each variant
// holds only the fields valid for its type.
type Indexation interface {
	TrackType() TrackType
	effectiveRate(base float64) float64
	monthlyInflation() float64
	validate() error
	shift(base, delta float64) (float64, Indexation)
}

// FixedUnlinked is a fixed nominal rate with no indexation.
type FixedUnlinked struct{}

func (FixedUnlinked) TrackType() TrackType               { return TrackFixedUnlinked }
func (FixedUnlinked) effectiveRate(base float64) float64 { return base }
func (FixedUnlinked) monthlyInflation() float64          { return 0 }
func (FixedUnlinked) validate() error                    { return nil }
func (f FixedUnlinked) shift(base, d float64) (float64, Indexation) {
	return nonNegative(base + d), f
}

// Prime floats with the Bank of Israel reference rate.
type Prime struct {
	ReferenceRate float64  // Bank of Israel rate, percent
	Margin        *float64 // spread over the reference; nil means PrimeMargin
}

// WithMargin returns p with an explicit spread, zero included.
func (p Prime) WithMargin(m float64) Prime {
	p.Margin = &m
	return p
}

// Spread is the margin in effect.
func (p Prime) Spread() float64 {
	if p.Margin == nil {
		return PrimeMargin
	}
	return *p.Margin
}

func (Prime) TrackType() TrackType { return TrackPrime }

func (p Prime) effectiveRate(float64) float64 { return p.ReferenceRate + p.Spread() }

func (Prime) monthlyInflation() float64 { return 0 }

func (p Prime) validate() error {
	if p.ReferenceRate < 0 || p.ReferenceRate > 20 {
		return fmt.Errorf("%w: bank_of_israel_rate %.2f outside [0, 20]", ErrInvalidTrack, p.ReferenceRate)
	}
	if m := p.Spread(); m < 0 || m > 10 {
		return fmt.Errorf("%w: prime margin %.2f outside [0, 10]", ErrInvalidTrack, m)
	}
	return nil
}

func (p Prime) shift(base, d float64) (float64, Indexation) {
	p.ReferenceRate = nonNegative(p.ReferenceRate + d)
	return base, p
}

// CPILinked is a fixed real rate on a principal indexed to CPI.
type CPILinked struct {
	ExpectedCPI float64 // expected annual CPI, percent
}

func (CPILinked) TrackType() TrackType               { return TrackFixedLinked }
func (CPILinked) effectiveRate(base float64) float64 { return base }
func (c CPILinked) monthlyInflation() float64        { return MonthlyInflation(c.ExpectedCPI) }

func (c CPILinked) validate() error {
	if c.ExpectedCPI < -5 || c.ExpectedCPI > 20 {
		return fmt.Errorf("%w: expected_cpi %.2f outside [-5, 20]", ErrInvalidTrack, c.ExpectedCPI)
	}
	return nil
}

func (c CPILinked) shift(base, d float64) (float64, Indexation) {
	return nonNegative(base + d), c
}

// ════════════════════════════════════════════════════════════════════
// Track
// ════════════════════════════════════════════════════════════════════

// Term and rate limits for a single track.
const (
	MaxTermMonths  = 480
	MaxGraceMonths = 120
	MaxBaseRate    = 30.0
)

// GracePeriod is an initial window with reduced or deferred payments.
type GracePeriod struct {
	Months int       `json:"months"`
	Type   GraceType `json:"type"`
}

// RateChange shifts the track rate by Delta percentage points at Month.
type RateChange struct {
	Month int     `json:"month"`
	Delta float64 `json:"delta"`
}

// Prepayment is a one-off principal payment at Month.
type Prepayment struct {
	Month  int              `json:"month"`
	Amount float64          `json:"amount"`
	Option PrepaymentOption `json:"option"`
}

// TrackOption customises a track at construction.
type TrackOption func(*Track)

// WithMethod sets the repayment method.
func WithMethod(m RepaymentMethod) TrackOption {
	return func(t *Track) { t.method = m }
}

// WithGrace adds a grace period.
func WithGrace(months int, gt GraceType) TrackOption {
	return func(t *Track) { t.grace = &GracePeriod{Months: months, Type: gt} }
}

// WithRateChange schedules a rate change.
func WithRateChange(month int, delta float64) TrackOption {
	return func(t *Track) { t.rateChanges = append(t.rateChanges, RateChange{Month: month, Delta: delta}) }
}

// WithPrepayment schedules a prepayment.
func WithPrepayment(month int, amount float64, opt PrepaymentOption) TrackOption {
	return func(t *Track) {
		t.prepayments = append(t.prepayments, Prepayment{Month: month, Amount: amount, Option: opt})
	}
}

// Track is one validated mortgage sub-loan. It is immutable: derived values
// such as the effective rate and schedule are computed on demand.
type Track struct {
	name        string
	index       Indexation
	principal   float64
	baseRate    float64
	termMonths  int
	method      RepaymentMethod
	grace       *GracePeriod
	rateChanges []RateChange
	prepayments []Prepayment
}

// NewTrack builds and validates a track. baseRate is ignored for prime
// tracks, whose rate comes from the reference rate plus margin.
func NewTrack(name string, index Indexation, principal, baseRate float64, termMonths int, opts ...TrackOption) (Track, error) {
	t := Track{
		name:       strings.TrimSpace(name),
		index:      index,
		principal:  principal,
		baseRate:   baseRate,
		termMonths: termMonths,
		method:     Spitzer,
	}
	for _, opt := range opts {
		opt(&t)
	}
	t.rateChanges = append([]RateChange(nil), t.rateChanges...)
	t.prepayments = append([]Prepayment(nil), t.prepayments...)
	sort.SliceStable(t.rateChanges, func(i, j int) bool { return t.rateChanges[i].Month < t.rateChanges[j].Month })
	sort.SliceStable(t.prepayments, func(i, j int) bool { return t.prepayments[i].Month < t.prepayments[j].Month })
	for i := range t.prepayments {
		if t.prepayments[i].Option == "" {
			t.prepayments[i].Option = ReducePayment
		}
	}

	if err := t.validate(); err != nil {
		return Track{}, err
	}
	return t, nil
}

func (t Track) validate() error {
	if t.name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTrack)
	}
	if t.index == nil {
		return fmt.Errorf("%w: track %q has no track type", ErrInvalidTrack, t.name)
	}
	if err := t.index.validate(); err != nil {
		return fmt.Errorf("track %q: %w", t.name, err)
	}
	if t.principal <= 0 {
		return fmt.Errorf("%w: track %q principal must be positive", ErrInvalidTrack, t.name)
	}
	if t.baseRate < 0 || t.baseRate > MaxBaseRate {
		return fmt.Errorf("%w: track %q base rate %.2f outside [0, %.0f]", ErrInvalidTrack, t.name, t.baseRate, MaxBaseRate)
	}
	if t.termMonths < 1 || t.termMonths > MaxTermMonths {
		return fmt.Errorf("%w: track %q term %d months outside [1, %d]", ErrInvalidTrack, t.name, t.termMonths, MaxTermMonths)
	}
	switch t.method {
	case Spitzer, EqualPrincipal, Bullet:
	default:
		return fmt.Errorf("%w: track %q unknown repayment method %q", ErrInvalidTrack, t.name, t.method)
	}

	if g := t.grace; g != nil {
		if g.Months < 1 || g.Months > MaxGraceMonths {
			return fmt.Errorf("%w: track %q grace period %d months outside [1, %d]", ErrInvalidTrack, t.name, g.Months, MaxGraceMonths)
		}
		if g.Months > t.termMonths {
			return fmt.Errorf("%w: track %q grace period (%d months) exceeds loan term (%d months)", ErrInvalidTrack, t.name, g.Months, t.termMonths)
		}
		if g.Type != GraceInterestOnly && g.Type != GraceFullDeferral {
			return fmt.Errorf("%w: track %q unknown grace type %q", ErrInvalidTrack, t.name, g.Type)
		}
	}

	for _, rc := range t.rateChanges {
		if rc.Month < 1 || rc.Month > t.termMonths {
			return fmt.Errorf("%w: track %q rate change at month %d outside loan term (%d months)", ErrInvalidTrack, t.name, rc.Month, t.termMonths)
		}
	}
	for _, pp := range t.prepayments {
		if pp.Month < 1 || pp.Month > t.termMonths {
			return fmt.Errorf("%w: track %q prepayment at month %d outside loan term (%d months)", ErrInvalidTrack, t.name, pp.Month, t.termMonths)
		}
		if pp.Amount <= 0 {
			return fmt.Errorf("%w: track %q prepayment at month %d must be positive", ErrInvalidTrack, t.name, pp.Month)
		}
		if pp.Option != ReducePayment && pp.Option != ReduceTerm {
			return fmt.Errorf("%w: track %q unknown prepayment option %q", ErrInvalidTrack, t.name, pp.Option)
		}
	}
	return nil
}

func (t Track) Name() string              { return t.name }
func (t Track) Type() TrackType           { return t.index.TrackType() }
func (t Track) Indexation() Indexation    { return t.index }
func (t Track) Principal() float64        { return t.principal }
func (t Track) BaseRate() float64         { return t.baseRate }
func (t Track) TermMonths() int           { return t.termMonths }
func (t Track) Method() RepaymentMethod   { return t.method }
func (t Track) RateChanges() []RateChange { return append([]RateChange(nil), t.rateChanges...) }
func (t Track) Prepayments() []Prepayment { return append([]Prepayment(nil), t.prepayments...) }

// Grace returns the grace period, if any.
func (t Track) Grace() (GracePeriod, bool) {
	if t.grace == nil {
		return GracePeriod{}, false
	}
	return *t.grace, true
}

// EffectiveRate is the annual rate in percent at origination.
func (t Track) EffectiveRate() float64 {
	return t.index.effectiveRate(t.baseRate)
}

// InitialPayment is the first amortizing payment: the annuity for Spitzer,
// the first (largest) installment for equal principal, and the interest
// for bullet. Grace periods are not reflected here; see Schedule.
func (t Track) InitialPayment() float64 {
	if t.principal <= 0 || t.termMonths <= 0 {
		return 0
	}
	r := MonthlyRate(t.EffectiveRate())
	n := t.termMonths

	switch t.method {
	case EqualPrincipal:
		return t.principal/float64(n) + t.principal*r
	case Bullet:
		return t.principal * r
	default:
		return AnnuityPayment(r, n, t.principal)
	}
}

// withPrincipal returns a copy borrowing a different amount. Prepayments
// larger than the new principal are harmless: the engine caps them.
func (t Track) withPrincipal(p float64) Track {
	t.principal = p
	return t
}

// withRateShift returns a copy with its rate moved by delta points. Fixed
// and CPI tracks move the base rate, prime tracks move the reference rate.
func (t Track) withRateShift(delta float64) Track {
	t.baseRate, t.index = t.index.shift(t.baseRate, delta)
	return t
}

// TrackDetails is a display snapshot of a track within a financing.
type TrackDetails struct {
	Name           string          `json:"name"`
	Type           TrackType       `json:"track_type"`
	HebrewName     string          `json:"hebrew_name"`
	Description    string          `json:"description"`
	Principal      float64         `json:"principal"`
	Share          float64         `json:"share"` // fraction of the total loan
	EffectiveRate  float64         `json:"effective_rate"`
	TermMonths     int             `json:"term_months"`
	Method         RepaymentMethod `json:"repayment_method"`
	MonthlyPayment float64         `json:"monthly_payment"`
	Grace          *GracePeriod    `json:"grace_period,omitempty"`
	RateChanges    []RateChange    `json:"rate_changes,omitempty"`
	Prepayments    []Prepayment    `json:"prepayments,omitempty"`
}

// Details describes the track relative to the total loan amount.
func (t Track) Details(loanAmount float64) TrackDetails {
	d := TrackDetails{
		Name:           t.name,
		Type:           t.Type(),
		HebrewName:     t.Type().HebrewName(),
		Description:    t.Type().Description(),
		Principal:      t.principal,
		EffectiveRate:  t.EffectiveRate(),
		TermMonths:     t.termMonths,
		Method:         t.method,
		MonthlyPayment: t.InitialPayment(),
		RateChanges:    t.RateChanges(),
		Prepayments:    t.Prepayments(),
	}
	if loanAmount > 0 {
		d.Share = t.principal / loanAmount
	}
	if g, ok := t.Grace(); ok {
		d.Grace = &g
	}
	return d
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
