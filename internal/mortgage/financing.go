package mortgage

import (
	"fmt"
	"math"
	"strings"
)

// Mode distinguishes the three financing structures.
type Mode string

const (
	ModeCash   Mode = "cash"
	ModeLegacy Mode = "legacy" // single conventional loan
	ModeTracks Mode = "tracks" // Israeli multi-track mortgage
)

// Regulatory limits on track composition.
const (
	MaxTracks           = 3
	MinFixedRatio       = 1.0 / 3.0
	MaxPrimeRatio       = 2.0 / 3.0
	regulatoryTolerance = 0.001
	allocationTolerance = 0.01
)

// LegacyTrackName names the synthetic track a single loan is modelled as.
const LegacyTrackName = "Loan"

// Financing is the validated, immutable financing structure of a deal.
type Financing struct {
	mode               Mode
	downPaymentPercent float64
	points             float64

	// legacy single loan
	interestRate float64
	termYears    int

	tracks []Track
}

// NewCashFinancing returns an all-cash purchase.
func NewCashFinancing() Financing {
	return Financing{mode: ModeCash, downPaymentPercent: 100}
}

// NewLegacyFinancing returns a single conventional loan.
func NewLegacyFinancing(downPaymentPercent, interestRate float64, termYears int, points float64) (Financing, error) {
	f := Financing{
		mode:               ModeLegacy,
		downPaymentPercent: downPaymentPercent,
		points:             points,
		interestRate:       interestRate,
		termYears:          termYears,
	}
	if err := f.validateCommon(); err != nil {
		return Financing{}, err
	}
	if interestRate < 0 || interestRate > MaxBaseRate {
		return Financing{}, fmt.Errorf("%w: interest rate %.2f outside [0, %.0f]", ErrInvalidFinancing, interestRate, MaxBaseRate)
	}
	if termYears < 1 || termYears*12 > MaxTermMonths {
		return Financing{}, fmt.Errorf("%w: loan term %d years outside [1, %d]", ErrInvalidFinancing, termYears, MaxTermMonths/12)
	}
	return f, nil
}

// NewTrackFinancing returns a multi-track mortgage. The tracks' principals
// must already be resolved; composition rules are enforced here and the
// allocation against the loan amount is checked by LoanDetails.
func NewTrackFinancing(downPaymentPercent, points float64, tracks ...Track) (Financing, error) {
	f := Financing{
		mode:               ModeTracks,
		downPaymentPercent: downPaymentPercent,
		points:             points,
		tracks:             append([]Track(nil), tracks...),
	}
	if err := f.validateCommon(); err != nil {
		return Financing{}, err
	}
	if len(tracks) == 0 {
		return Financing{}, fmt.Errorf("%w: at least one track is required", ErrInvalidFinancing)
	}
	if len(tracks) > MaxTracks {
		return Financing{}, fmt.Errorf("%w: at most %d tracks allowed, got %d", ErrInvalidFinancing, MaxTracks, len(tracks))
	}
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if t.index == nil {
			return Financing{}, fmt.Errorf("%w: track %q was not built with NewTrack", ErrInvalidFinancing, t.name)
		}
		key := strings.ToLower(t.name)
		if seen[key] {
			return Financing{}, fmt.Errorf("%w: duplicate track name %q", ErrInvalidFinancing, t.name)
		}
		seen[key] = true
	}

	if c := f.Compliance(); !c.Compliant {
		return Financing{}, fmt.Errorf("%w: %s", ErrRegulation, strings.Join(c.Violations, "; "))
	}
	return f, nil
}

func (f Financing) validateCommon() error {
	if f.downPaymentPercent < 0 || f.downPaymentPercent > 100 {
		return fmt.Errorf("%w: down payment %.2f%% outside [0, 100]", ErrInvalidFinancing, f.downPaymentPercent)
	}
	if f.points < 0 || f.points > 10 {
		return fmt.Errorf("%w: points %.2f outside [0, 10]", ErrInvalidFinancing, f.points)
	}
	return nil
}

func (f Financing) Mode() Mode                  { return f.mode }
func (f Financing) IsCash() bool                { return f.mode == ModeCash }
func (f Financing) DownPaymentPercent() float64 { return f.downPaymentPercent }
func (f Financing) Points() float64             { return f.points }
func (f Financing) InterestRate() float64       { return f.interestRate }
func (f Financing) TermYears() int              { return f.termYears }
func (f Financing) Tracks() []Track             { return append([]Track(nil), f.tracks...) }

// LoanAmount is the amount borrowed against the purchase price.
func (f Financing) LoanAmount(price float64) float64 {
	if f.mode == ModeCash {
		return 0
	}
	return price * (1 - f.downPaymentPercent/100)
}

// ════════════════════════════════════════════════════════════════════
// Regulatory composition
// ════════════════════════════════════════════════════════════════════

// Compliance reports the track mix against Bank of Israel rules.
type Compliance struct {
	Applicable     bool     `json:"applicable"`
	Compliant      bool     `json:"compliant"`
	FixedRatio     float64  `json:"fixed_ratio"`
	PrimeRatio     float64  `json:"prime_ratio"`
	CPILinkedRatio float64  `json:"cpi_linked_ratio"`
	Requirements   []string `json:"requirements"`
	Violations     []string `json:"violations,omitempty"`
}

// Compliance computes composition ratios by principal. Outside track mode
// the rules do not apply and the result is trivially compliant.
func (f Financing) Compliance() Compliance {
	c := Compliance{
		Compliant: true,
		Requirements: []string{
			fmt.Sprintf("At least %.1f%% of the loan in fixed-rate tracks", MinFixedRatio*100),
			fmt.Sprintf("At most %.1f%% of the loan in prime-rate tracks", MaxPrimeRatio*100),
			fmt.Sprintf("At most %d tracks", MaxTracks),
		},
	}
	if f.mode != ModeTracks || len(f.tracks) == 0 {
		return c
	}
	c.Applicable = true

	var total, fixed, prime, linked float64
	for _, t := range f.tracks {
		total += t.principal
		if t.Type().IsFixedRate() {
			fixed += t.principal
		}
		if t.Type() == TrackPrime {
			prime += t.principal
		}
		if t.Type().IsCPILinked() {
			linked += t.principal
		}
	}
	if total <= 0 {
		return c
	}
	c.FixedRatio = fixed / total
	c.PrimeRatio = prime / total
	c.CPILinkedRatio = linked / total

	if c.FixedRatio < MinFixedRatio-regulatoryTolerance {
		c.Violations = append(c.Violations, fmt.Sprintf("fixed-rate tracks below %.1f%% (current %.1f%%)", MinFixedRatio*100, c.FixedRatio*100))
	}
	if c.PrimeRatio > MaxPrimeRatio+regulatoryTolerance {
		c.Violations = append(c.Violations, fmt.Sprintf("prime-rate tracks above %.1f%% (current %.1f%%)", MaxPrimeRatio*100, c.PrimeRatio*100))
	}
	c.Compliant = len(c.Violations) == 0
	return c
}

// ════════════════════════════════════════════════════════════════════
// Loan details
// ════════════════════════════════════════════════════════════════════

// LoanDetails is the result of sizing the financing against a price.
type LoanDetails struct {
	Mode               Mode           `json:"mode"`
	PurchasePrice      float64        `json:"purchase_price"`
	DownPaymentPercent float64        `json:"down_payment_percent"`
	DownPayment        float64        `json:"down_payment"`
	LoanAmount         float64        `json:"loan_amount"`
	AllocatedAmount    float64        `json:"allocated_amount"`
	MonthlyPayment     float64        `json:"monthly_payment"`
	Points             float64        `json:"points"`
	PointsCost         float64        `json:"points_cost"`
	InterestRate       float64        `json:"interest_rate"` // principal-weighted effective rate
	TermMonths         int            `json:"term_months"`   // longest track
	Tracks             []TrackDetails `json:"tracks,omitempty"`
}

// AnnualDebtService is twelve times the initial monthly payment.
func (d LoanDetails) AnnualDebtService() float64 { return d.MonthlyPayment * 12 }

// LoanDetails sizes the loan for a purchase price.
func (f Financing) LoanDetails(price float64) (LoanDetails, error) {
	d := LoanDetails{
		Mode:               f.mode,
		PurchasePrice:      price,
		DownPaymentPercent: f.downPaymentPercent,
		Points:             f.points,
	}
	if price <= 0 {
		return d, fmt.Errorf("%w: purchase price must be positive", ErrInvalidFinancing)
	}

	if f.mode == ModeCash {
		d.DownPayment = price
		return d, nil
	}

	d.LoanAmount = f.LoanAmount(price)
	d.DownPayment = price - d.LoanAmount
	d.PointsCost = d.LoanAmount * f.points / 100

	tracks, err := f.ResolveTracks(price)
	if err != nil {
		return d, err
	}

	var weighted float64
	for _, t := range tracks {
		d.AllocatedAmount += t.principal
		d.MonthlyPayment += t.InitialPayment()
		weighted += t.EffectiveRate() * t.principal
		if t.termMonths > d.TermMonths {
			d.TermMonths = t.termMonths
		}
		if f.mode == ModeTracks {
			d.Tracks = append(d.Tracks, t.Details(d.LoanAmount))
		}
	}
	if d.AllocatedAmount > 0 {
		d.InterestRate = weighted / d.AllocatedAmount
	}
	return d, nil
}

// ResolveTracks returns the tracks that actually carry the loan for a price.
// A legacy loan becomes one fixed-unlinked Spitzer track so both modes share
// the amortization engine.
func (f Financing) ResolveTracks(price float64) ([]Track, error) {
	loan := f.LoanAmount(price)

	switch f.mode {
	case ModeCash:
		return nil, nil
	case ModeLegacy:
		if loan <= 0 {
			return nil, nil
		}
		t, err := NewTrack(LegacyTrackName, FixedUnlinked{}, loan, f.interestRate, f.termYears*12)
		if err != nil {
			return nil, err
		}
		return []Track{t}, nil
	}

	var allocated float64
	for _, t := range f.tracks {
		allocated += t.principal
	}
	if allocated > loan+allocationTolerance {
		return nil, fmt.Errorf("%w: tracks total %.2f but loan amount is %.2f", ErrAllocationExceeded, allocated, loan)
	}
	return f.Tracks(), nil
}

// ════════════════════════════════════════════════════════════════════
// Derived financings
// ════════════════════════════════════════════════════════════════════

// Rescale returns a copy whose tracks keep their share of a new loan amount.
func (f Financing) Rescale(loanAmount float64) Financing {
	if f.mode != ModeTracks || loanAmount <= 0 {
		return f
	}
	var allocated float64
	for _, t := range f.tracks {
		allocated += t.principal
	}
	if allocated <= 0 {
		return f
	}
	k := loanAmount / allocated
	out := f
	out.tracks = make([]Track, len(f.tracks))
	for i, t := range f.tracks {
		out.tracks[i] = t.withPrincipal(t.principal * k)
	}
	return out
}

// WithDownPayment returns a copy with a different down payment percentage.
// Track principals are not touched; pair with Rescale.
func (f Financing) WithDownPayment(pct float64) Financing {
	if f.mode == ModeCash {
		return f
	}
	f.downPaymentPercent = math.Min(math.Max(pct, 0), 100)
	return f
}

// ShiftRates returns a copy with every rate moved by delta percentage points.
func (f Financing) ShiftRates(delta float64) Financing {
	switch f.mode {
	case ModeLegacy:
		f.interestRate = math.Min(nonNegative(f.interestRate+delta), MaxBaseRate)
	case ModeTracks:
		shifted := make([]Track, len(f.tracks))
		for i, t := range f.tracks {
			shifted[i] = t.withRateShift(delta)
		}
		f.tracks = shifted
	}
	return f
}
