package mortgage

import (
	"errors"
	"math"
	"strings"
	"testing"
)

// threeTracks builds the 34/33/33 split of a 200,000 loan.
func threeTracks(t *testing.T, loan float64) []Track {
	t.Helper()
	return []Track{
		mustTrack(t, "Fixed", FixedUnlinked{}, loan*0.34, 4.5, 300),
		mustTrack(t, "Prime", Prime{ReferenceRate: 4.5}, loan*0.33, 0, 360),
		mustTrack(t, "Linked", CPILinked{ExpectedCPI: 2.5}, loan*0.33, 3.2, 240),
	}
}

// ── Construction ──

func TestTrackFinancingCompliant(t *testing.T) {
	f, err := NewTrackFinancing(20, 0, threeTracks(t, 200000)...)
	if err != nil {
		t.Fatalf("NewTrackFinancing error: %v", err)
	}
	c := f.Compliance()
	if !c.Applicable || !c.Compliant {
		t.Fatalf("expected compliant, got %+v", c)
	}
	if !approx(c.FixedRatio, 0.67, 1e-9) || !approx(c.PrimeRatio, 0.33, 1e-9) || !approx(c.CPILinkedRatio, 0.33, 1e-9) {
		t.Errorf("ratios = %+v", c)
	}
}

func TestTrackFinancingPrimeHeavy(t *testing.T) {
	tracks := []Track{
		mustTrack(t, "Fixed", FixedUnlinked{}, 40000, 4.5, 300),
		mustTrack(t, "Prime", Prime{ReferenceRate: 4.5}, 160000, 0, 360),
	}
	_, err := NewTrackFinancing(20, 0, tracks...)
	if !errors.Is(err, ErrRegulation) {
		t.Fatalf("expected ErrRegulation, got %v", err)
	}
	for _, want := range []string{"fixed-rate tracks below 33.3% (current 20.0%)", "prime-rate tracks above 66.7% (current 80.0%)"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}

	// A zero-principal third track cannot even be built.
	if _, err := NewTrack("Linked", CPILinked{ExpectedCPI: 2}, 0, 3, 240); !errors.Is(err, ErrInvalidTrack) {
		t.Errorf("zero principal track: expected ErrInvalidTrack, got %v", err)
	}
}

func TestTrackFinancingBoundaryRatios(t *testing.T) {
	third := 200000.0 / 3
	tracks := []Track{
		mustTrack(t, "Fixed", FixedUnlinked{}, third, 4.5, 300),
		mustTrack(t, "Prime", Prime{ReferenceRate: 4.5}, 2*third, 0, 360),
	}
	if _, err := NewTrackFinancing(20, 0, tracks...); err != nil {
		t.Errorf("exact one-third / two-thirds split should pass: %v", err)
	}
}

func TestTrackFinancingStructure(t *testing.T) {
	a := mustTrack(t, "A", FixedUnlinked{}, 50000, 4, 240)
	b := mustTrack(t, "a", FixedUnlinked{}, 50000, 4, 240)
	c := mustTrack(t, "C", FixedUnlinked{}, 50000, 4, 240)
	d := mustTrack(t, "D", FixedUnlinked{}, 50000, 4, 240)

	tests := []struct {
		name   string
		down   float64
		points float64
		tracks []Track
	}{
		{"no tracks", 20, 0, nil},
		{"too many tracks", 20, 0, []Track{a, c, d, mustTrack(t, "E", FixedUnlinked{}, 1, 4, 12)}},
		{"duplicate names", 20, 0, []Track{a, b}},
		{"down payment over 100", 120, 0, []Track{a}},
		{"negative points", 20, -1, []Track{a}},
		{"unbuilt track", 20, 0, []Track{{name: "X", principal: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTrackFinancing(tt.down, tt.points, tt.tracks...); !errors.Is(err, ErrInvalidFinancing) {
				t.Errorf("expected ErrInvalidFinancing, got %v", err)
			}
		})
	}
}

func TestLegacyFinancingValidation(t *testing.T) {
	if _, err := NewLegacyFinancing(20, 31, 30, 0); !errors.Is(err, ErrInvalidFinancing) {
		t.Errorf("rate 31: got %v", err)
	}
	if _, err := NewLegacyFinancing(20, 4, 0, 0); !errors.Is(err, ErrInvalidFinancing) {
		t.Errorf("term 0: got %v", err)
	}
	if _, err := NewLegacyFinancing(-5, 4, 30, 0); !errors.Is(err, ErrInvalidFinancing) {
		t.Errorf("negative down payment: got %v", err)
	}
}

// ── Loan details ──

func TestLoanDetailsLegacy(t *testing.T) {
	f, err := NewLegacyFinancing(20, 4, 30, 1)
	if err != nil {
		t.Fatal(err)
	}
	d, err := f.LoanDetails(250000)
	if err != nil {
		t.Fatalf("LoanDetails error: %v", err)
	}
	if d.LoanAmount != 200000 || d.DownPayment != 50000 {
		t.Errorf("loan/down = %f/%f", d.LoanAmount, d.DownPayment)
	}
	if !approx(d.MonthlyPayment, 954.83, 0.01) {
		t.Errorf("monthly payment = %.2f, want 954.83", d.MonthlyPayment)
	}
	if d.PointsCost != 2000 {
		t.Errorf("points cost = %f, want 2000", d.PointsCost)
	}
	if !approx(d.AnnualDebtService(), d.MonthlyPayment*12, 1e-9) {
		t.Error("annual debt service should be 12 months of payments")
	}
	if d.TermMonths != 360 || d.InterestRate != 4 {
		t.Errorf("term/rate = %d/%f", d.TermMonths, d.InterestRate)
	}
}

func TestLoanDetailsCash(t *testing.T) {
	f := NewCashFinancing()
	d, err := f.LoanDetails(300000)
	if err != nil {
		t.Fatal(err)
	}
	if d.LoanAmount != 0 || d.MonthlyPayment != 0 || d.DownPayment != 300000 {
		t.Errorf("cash details = %+v", d)
	}
	s, err := f.Schedule(300000)
	if err != nil || len(s.Combined) != 0 {
		t.Errorf("cash schedule should be empty: %v %d", err, len(s.Combined))
	}
}

func TestLoanDetailsTracks(t *testing.T) {
	tracks := threeTracks(t, 200000)
	f, err := NewTrackFinancing(20, 0, tracks...)
	if err != nil {
		t.Fatal(err)
	}
	d, err := f.LoanDetails(250000)
	if err != nil {
		t.Fatalf("LoanDetails error: %v", err)
	}
	var want float64
	for _, tr := range tracks {
		want += tr.InitialPayment()
	}
	if !approx(d.MonthlyPayment, want, 1e-9) {
		t.Errorf("monthly payment = %f, want %f", d.MonthlyPayment, want)
	}
	if len(d.Tracks) != 3 || !approx(d.Tracks[0].Share, 0.34, 1e-9) {
		t.Errorf("track details = %+v", d.Tracks)
	}
	if d.TermMonths != 360 {
		t.Errorf("term months = %d, want longest track 360", d.TermMonths)
	}
}

func TestLoanDetailsAllocationExceeded(t *testing.T) {
	f, err := NewTrackFinancing(20, 0,
		mustTrack(t, "Fixed", FixedUnlinked{}, 150000, 4.5, 300),
		mustTrack(t, "Prime", Prime{ReferenceRate: 4.5}, 60000, 0, 360),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.LoanDetails(250000); !errors.Is(err, ErrAllocationExceeded) {
		t.Errorf("expected ErrAllocationExceeded, got %v", err)
	}
	if _, err := f.Schedule(250000); !errors.Is(err, ErrAllocationExceeded) {
		t.Errorf("Schedule: expected ErrAllocationExceeded, got %v", err)
	}
	// Within tolerance of the loan amount is accepted.
	if _, err := f.LoanDetails(262500.01); err != nil {
		t.Errorf("allocation equal to loan should pass: %v", err)
	}
}

// ── Combined schedule ──

func TestCombinedSchedule(t *testing.T) {
	tracks := threeTracks(t, 200000)
	tracks[0] = mustTrack(t, "Fixed", FixedUnlinked{}, 68000, 4.5, 300, WithPrepayment(24, 5000, ReduceTerm))
	f, err := NewTrackFinancing(20, 0, tracks...)
	if err != nil {
		t.Fatal(err)
	}
	s, err := f.Schedule(250000)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tracks) != 3 {
		t.Fatalf("track schedules = %d", len(s.Tracks))
	}
	if len(s.Combined) != 360 {
		t.Errorf("combined length = %d, want longest track", len(s.Combined))
	}
	assertDense(t, s.Combined)

	for _, m := range []int{0, 23, 239, 240, 359} {
		var sum float64
		for _, ts := range s.Tracks {
			if m < len(ts.Payments) {
				sum += ts.Payments[m].Payment
			}
		}
		if !approx(s.Combined[m].Payment, sum, 1e-6) {
			t.Errorf("month %d combined %f != sum %f", m+1, s.Combined[m].Payment, sum)
		}
	}
	if !hasEvent(s.Combined[23], "Fixed: prepayment: 5,000") {
		t.Errorf("combined events not prefixed: %v", s.Combined[23].Events)
	}
	if _, ok := s.Track("Prime"); !ok {
		t.Error("Track(Prime) not found")
	}
	if s.MonthlyPayment != s.Combined[0].Payment {
		t.Error("schedule monthly payment should be the first combined payment")
	}
}

func TestYearlySummary(t *testing.T) {
	f, _ := NewLegacyFinancing(20, 4, 30, 0)
	s, err := f.Schedule(250000)
	if err != nil {
		t.Fatal(err)
	}
	years := s.Yearly()
	if len(years) != 30 {
		t.Fatalf("years = %d, want 30", len(years))
	}
	var total float64
	for _, y := range years {
		total += y.Payment
	}
	last := s.Combined[len(s.Combined)-1]
	if !approx(total, last.CumulativePrincipal+last.CumulativeInterest, 1e-6) {
		t.Errorf("yearly payments %f should equal total paid", total)
	}
	if !approx(years[0].Payment, 12*954.83, 0.12) {
		t.Errorf("year 1 payment = %f", years[0].Payment)
	}
	if years[29].EndingBalance != 0 {
		t.Errorf("final year balance = %f", years[29].EndingBalance)
	}
	if years[0].EndingBalance != s.Combined[11].EndingBalance {
		t.Error("year-end balance should be the 12th month's")
	}
}

func TestYearlySummaryPartialYear(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 10000, 5, 18)
	years := YearlySummary(tr.Schedule())
	if len(years) != 2 {
		t.Fatalf("years = %d, want 2", len(years))
	}
	if !approx(years[0].Principal+years[1].Principal, 10000, 1e-6) {
		t.Error("principal across years should sum to the loan")
	}
}

// ── Derived financings ──

func TestRescaleAndShift(t *testing.T) {
	f, err := NewTrackFinancing(20, 0, threeTracks(t, 200000)...)
	if err != nil {
		t.Fatal(err)
	}
	r := f.Rescale(300000)
	tr := r.Tracks()
	if !approx(tr[0].Principal(), 102000, 1e-6) || !approx(tr[1].Principal(), 99000, 1e-6) {
		t.Errorf("rescaled principals = %f, %f", tr[0].Principal(), tr[1].Principal())
	}
	if f.Tracks()[0].Principal() != 68000 {
		t.Error("Rescale must not modify the original")
	}

	s := f.ShiftRates(1)
	st := s.Tracks()
	if st[0].EffectiveRate() != 5.5 || st[1].EffectiveRate() != 7.0 || !approx(st[2].EffectiveRate(), 4.2, 1e-12) {
		t.Errorf("shifted rates = %f %f %f", st[0].EffectiveRate(), st[1].EffectiveRate(), st[2].EffectiveRate())
	}
	down := f.ShiftRates(-10).Tracks()
	if down[0].EffectiveRate() != 0 || down[1].EffectiveRate() != PrimeMargin {
		t.Error("rates should floor at zero")
	}

	l, _ := NewLegacyFinancing(20, 4, 30, 0)
	if l.ShiftRates(0.5).InterestRate() != 4.5 {
		t.Error("legacy rate shift")
	}
	if got := l.WithDownPayment(30).LoanAmount(100000); math.Abs(got-70000) > 1e-9 {
		t.Errorf("WithDownPayment loan = %f", got)
	}
}
