package mortgage

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/seenimoa/dealscope/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func mustTrack(t *testing.T, name string, idx Indexation, principal, rate float64, term int, opts ...TrackOption) Track {
	t.Helper()
	tr, err := NewTrack(name, idx, principal, rate, term, opts...)
	if err != nil {
		t.Fatalf("NewTrack(%s) error: %v", name, err)
	}
	return tr
}

func assertDense(t *testing.T, rows []models.Payment) {
	t.Helper()
	for i, r := range rows {
		if r.PaymentNumber != i+1 {
			t.Fatalf("row %d has payment number %d", i, r.PaymentNumber)
		}
		if r.Year != i/12+1 || r.Month != i%12+1 {
			t.Fatalf("row %d: year/month = %d/%d", i, r.Year, r.Month)
		}
		if r.EndingBalance < 0 {
			t.Fatalf("row %d: negative ending balance %f", i, r.EndingBalance)
		}
	}
}

func hasEvent(p models.Payment, prefix string) bool {
	for _, e := range p.Events {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════
// Annuity
// ════════════════════════════════════════════════════════════════════

func TestAnnuityPayment(t *testing.T) {
	tests := []struct {
		principal float64
		rate      float64
		years     int
		want      float64
	}{
		{200000, 4, 25, 1055.67},
		{300000, 5, 30, 1610.46},
		{150000, 3.5, 20, 869.94},
		{500000, 6, 25, 3221.51},
		{100000, 0, 10, 833.33},
		{200000, 4, 30, 954.83},
	}
	for _, tt := range tests {
		got := AnnuityPayment(MonthlyRate(tt.rate), tt.years*12, tt.principal)
		if !approx(got, tt.want, 0.01) {
			t.Errorf("AnnuityPayment(%.0f @ %.1f%% / %dy) = %.2f, want %.2f", tt.principal, tt.rate, tt.years, got, tt.want)
		}
	}
	if AnnuityPayment(0.01, 0, 1000) != 0 {
		t.Error("zero periods should produce zero payment")
	}
}

func TestMonthlyInflation(t *testing.T) {
	m := MonthlyInflation(2.5)
	if !approx(math.Pow(1+m, 12), 1.025, 1e-12) {
		t.Errorf("12 months of %f should compound to 2.5%%", m)
	}
	if MonthlyInflation(0) != 0 {
		t.Error("zero CPI should give zero monthly inflation")
	}
}

// ════════════════════════════════════════════════════════════════════
// Track validation
// ════════════════════════════════════════════════════════════════════

func TestNewTrackValidation(t *testing.T) {
	tests := []struct {
		name      string
		trackName string
		idx       Indexation
		principal float64
		rate      float64
		term      int
		opts      []TrackOption
	}{
		{"empty name", " ", FixedUnlinked{}, 100000, 4, 240, nil},
		{"no type", "A", nil, 100000, 4, 240, nil},
		{"zero principal", "A", FixedUnlinked{}, 0, 4, 240, nil},
		{"rate too high", "A", FixedUnlinked{}, 100000, 31, 240, nil},
		{"negative rate", "A", FixedUnlinked{}, 100000, -1, 240, nil},
		{"zero term", "A", FixedUnlinked{}, 100000, 4, 0, nil},
		{"term too long", "A", FixedUnlinked{}, 100000, 4, MaxTermMonths + 1, nil},
		{"prime reference too high", "A", Prime{ReferenceRate: 25}, 100000, 0, 240, nil},
		{"cpi out of range", "A", CPILinked{ExpectedCPI: 30}, 100000, 3, 240, nil},
		{"grace longer than term", "A", FixedUnlinked{}, 100000, 4, 24, []TrackOption{WithGrace(36, GraceInterestOnly)}},
		{"grace too long", "A", FixedUnlinked{}, 100000, 4, 360, []TrackOption{WithGrace(121, GraceInterestOnly)}},
		{"bad grace type", "A", FixedUnlinked{}, 100000, 4, 360, []TrackOption{WithGrace(12, "partial")}},
		{"rate change beyond term", "A", FixedUnlinked{}, 100000, 4, 120, []TrackOption{WithRateChange(121, 1)}},
		{"prepayment beyond term", "A", FixedUnlinked{}, 100000, 4, 120, []TrackOption{WithPrepayment(200, 1000, ReduceTerm)}},
		{"zero prepayment", "A", FixedUnlinked{}, 100000, 4, 120, []TrackOption{WithPrepayment(12, 0, ReduceTerm)}},
		{"bad method", "A", FixedUnlinked{}, 100000, 4, 120, []TrackOption{WithMethod("balloon")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrack(tt.trackName, tt.idx, tt.principal, tt.rate, tt.term, tt.opts...)
			if !errors.Is(err, ErrInvalidTrack) {
				t.Errorf("expected ErrInvalidTrack, got %v", err)
			}
		})
	}
}

func TestNewTrackSortsEvents(t *testing.T) {
	tr := mustTrack(t, "A", FixedUnlinked{}, 100000, 4, 240,
		WithRateChange(60, 1), WithRateChange(12, -0.5),
		WithPrepayment(100, 5000, ""), WithPrepayment(24, 1000, ReduceTerm))

	rc := tr.RateChanges()
	if rc[0].Month != 12 || rc[1].Month != 60 {
		t.Errorf("rate changes not sorted: %+v", rc)
	}
	pp := tr.Prepayments()
	if pp[0].Month != 24 || pp[1].Month != 100 {
		t.Errorf("prepayments not sorted: %+v", pp)
	}
	if pp[1].Option != ReducePayment {
		t.Errorf("empty option should default to reduce_payment, got %q", pp[1].Option)
	}
}

func TestEffectiveRate(t *testing.T) {
	prime := mustTrack(t, "P", Prime{ReferenceRate: 4.5}, 100000, 0, 240)
	if prime.EffectiveRate() != 6.0 {
		t.Errorf("prime effective rate = %f, want 6.0", prime.EffectiveRate())
	}
	custom := mustTrack(t, "P2", Prime{ReferenceRate: 4.5}.WithMargin(0.8), 100000, 0, 240)
	if !approx(custom.EffectiveRate(), 5.3, 1e-12) {
		t.Errorf("prime with margin = %f, want 5.3", custom.EffectiveRate())
	}
	flat := mustTrack(t, "P3", Prime{ReferenceRate: 4.5}.WithMargin(0), 100000, 0, 240)
	if flat.EffectiveRate() != 4.5 {
		t.Errorf("prime with zero margin = %f, want 4.5", flat.EffectiveRate())
	}
	fixed := mustTrack(t, "F", FixedUnlinked{}, 100000, 4.2, 240)
	if fixed.EffectiveRate() != 4.2 {
		t.Errorf("fixed effective rate = %f", fixed.EffectiveRate())
	}
	linked := mustTrack(t, "C", CPILinked{ExpectedCPI: 2.5}, 100000, 3.1, 240)
	if linked.EffectiveRate() != 3.1 {
		t.Errorf("linked effective rate = %f", linked.EffectiveRate())
	}
	if linked.Type() != TrackFixedLinked || !linked.Type().IsCPILinked() || !linked.Type().IsFixedRate() {
		t.Error("CPI track type predicates wrong")
	}
}

func TestInitialPayment(t *testing.T) {
	spitzer := mustTrack(t, "S", FixedUnlinked{}, 200000, 4, 360)
	if !approx(spitzer.InitialPayment(), 954.83, 0.01) {
		t.Errorf("spitzer = %.2f", spitzer.InitialPayment())
	}
	equal := mustTrack(t, "E", FixedUnlinked{}, 120000, 6, 120, WithMethod(EqualPrincipal))
	if !approx(equal.InitialPayment(), 1000+600, 1e-9) {
		t.Errorf("equal principal = %.2f, want 1600", equal.InitialPayment())
	}
	bullet := mustTrack(t, "B", FixedUnlinked{}, 120000, 6, 120, WithMethod(Bullet))
	if !approx(bullet.InitialPayment(), 600, 1e-9) {
		t.Errorf("bullet = %.2f, want 600", bullet.InitialPayment())
	}
}

// ════════════════════════════════════════════════════════════════════
// Amortization engine
// ════════════════════════════════════════════════════════════════════

func TestScheduleFullyAmortizes(t *testing.T) {
	tests := []struct {
		name   string
		idx    Indexation
		method RepaymentMethod
	}{
		{"fixed spitzer", FixedUnlinked{}, Spitzer},
		{"fixed equal principal", FixedUnlinked{}, EqualPrincipal},
		{"fixed bullet", FixedUnlinked{}, Bullet},
		{"prime spitzer", Prime{ReferenceRate: 4.5}, Spitzer},
		{"prime equal principal", Prime{ReferenceRate: 4.5}, EqualPrincipal},
		{"zero rate", FixedUnlinked{}, Spitzer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := 4.0
			if tt.name == "zero rate" {
				rate = 0
			}
			tr := mustTrack(t, "T", tt.idx, 250000, rate, 300, WithMethod(tt.method))
			rows := tr.Schedule()
			if len(rows) != 300 {
				t.Fatalf("len = %d, want 300", len(rows))
			}
			assertDense(t, rows)
			last := rows[len(rows)-1]
			if last.EndingBalance != 0 {
				t.Errorf("final balance = %f, want 0", last.EndingBalance)
			}
			if !approx(last.CumulativePrincipal, 250000, 1e-6) {
				t.Errorf("cumulative principal = %f, want 250000", last.CumulativePrincipal)
			}
			for i, r := range rows {
				if !approx(r.Payment, r.Principal+r.Interest, 1e-6) {
					t.Fatalf("row %d: payment %f != principal %f + interest %f", i, r.Payment, r.Principal, r.Interest)
				}
			}
		})
	}
}

func TestScheduleSpitzerLevelPayment(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 200000, 4, 360)
	rows := tr.Schedule()
	for i := 0; i < len(rows)-1; i++ {
		if !approx(rows[i].Payment, 954.83, 0.01) {
			t.Fatalf("row %d payment = %.4f, want 954.83", i, rows[i].Payment)
		}
	}
	if !approx(rows[0].Interest, 200000*0.04/12, 1e-9) {
		t.Errorf("first interest = %f", rows[0].Interest)
	}
}

func TestScheduleIsIdempotent(t *testing.T) {
	tr := mustTrack(t, "T", CPILinked{ExpectedCPI: 2}, 300000, 3.5, 240,
		WithGrace(6, GraceInterestOnly), WithRateChange(36, 0.75), WithPrepayment(48, 20000, ReduceTerm))
	if !reflect.DeepEqual(tr.Schedule(), tr.Schedule()) {
		t.Error("two schedules of the same track differ")
	}
}

func TestScheduleRateChange(t *testing.T) {
	base := mustTrack(t, "T", FixedUnlinked{}, 200000, 4, 360)
	bumped := mustTrack(t, "T", FixedUnlinked{}, 200000, 4, 360, WithRateChange(61, 1))

	b, r := base.Schedule(), bumped.Schedule()
	if r[60].Payment <= r[59].Payment {
		t.Fatalf("payment at month 61 (%.2f) should exceed month 60 (%.2f)", r[60].Payment, r[59].Payment)
	}
	for i := 61; i < len(r)-1; i++ {
		if r[i].Payment < r[60].Payment-1e-6 {
			t.Fatalf("payment dropped at month %d", i+1)
		}
	}
	if !reflect.DeepEqual(r[60].Events, []string{"rate_change: +1.00%"}) {
		t.Errorf("events at month 61 = %v", r[60].Events)
	}
	if TotalInterest(r) <= TotalInterest(b) {
		t.Errorf("interest with rate hike %.2f should exceed %.2f", TotalInterest(r), TotalInterest(b))
	}
	if r[len(r)-1].EndingBalance != 0 || len(r) != 360 {
		t.Error("rate change must keep the term and fully amortize")
	}
}

func TestScheduleGraceInterestOnly(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 120000, 6, 120, WithGrace(12, GraceInterestOnly))
	rows := tr.Schedule()
	for i := 0; i < 12; i++ {
		if rows[i].Principal != 0 || !approx(rows[i].Payment, 600, 1e-9) {
			t.Fatalf("grace month %d: principal %f payment %f", i+1, rows[i].Principal, rows[i].Payment)
		}
		if !hasEvent(rows[i], "grace:interest_only") {
			t.Fatalf("grace month %d missing label: %v", i+1, rows[i].Events)
		}
	}
	if !hasEvent(rows[12], EventGraceEnd) {
		t.Errorf("month 13 should carry grace_end, got %v", rows[12].Events)
	}
	want := AnnuityPayment(0.005, 108, 120000)
	if !approx(rows[12].Payment, want, 1e-6) {
		t.Errorf("post-grace payment = %f, want %f", rows[12].Payment, want)
	}
	if len(rows) != 120 || rows[119].EndingBalance != 0 {
		t.Error("loan should amortize over the remaining term")
	}
}

func TestScheduleGraceFullDeferral(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 100000, 6, 120, WithGrace(6, GraceFullDeferral))
	rows := tr.Schedule()
	for i := 0; i < 6; i++ {
		if rows[i].Payment != 0 {
			t.Fatalf("deferral month %d paid %f", i+1, rows[i].Payment)
		}
		if rows[i].EndingBalance <= rows[i].BeginningBalance {
			t.Fatalf("deferral month %d balance should grow", i+1)
		}
	}
	capitalised := 100000 * math.Pow(1.005, 6)
	if !approx(rows[5].EndingBalance, capitalised, 1e-6) {
		t.Errorf("balance after deferral = %f, want %f", rows[5].EndingBalance, capitalised)
	}
	last := rows[len(rows)-1]
	if last.EndingBalance != 0 || !approx(last.CumulativePrincipal, capitalised, 1e-6) {
		t.Errorf("capitalised balance should be repaid: %+v", last)
	}
}

func TestScheduleGraceCoveringTerm(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 50000, 5, 24, WithGrace(24, GraceInterestOnly))
	rows := tr.Schedule()
	if len(rows) != 24 {
		t.Fatalf("len = %d, want 24", len(rows))
	}
	for i := 0; i < 23; i++ {
		if rows[i].Principal != 0 {
			t.Fatalf("month %d paid principal %f", i+1, rows[i].Principal)
		}
	}
	last := rows[23]
	if last.Principal != 50000 || last.EndingBalance != 0 {
		t.Errorf("final forced payoff wrong: %+v", last)
	}
	if !hasEvent(last, EventGracePayoff) {
		t.Errorf("missing payoff label: %v", last.Events)
	}
}

func TestSchedulePrepaymentFullBalance(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 100000, 5, 240, WithPrepayment(12, 1e9, ReducePayment))
	rows := tr.Schedule()
	if len(rows) != 12 {
		t.Fatalf("schedule should truncate at the prepayment month, len = %d", len(rows))
	}
	last := rows[11]
	if last.EndingBalance != 0 || !approx(last.CumulativePrincipal, 100000, 1e-6) {
		t.Errorf("prepayment should clear the loan: %+v", last)
	}
	if !hasEvent(last, "prepayment: ") {
		t.Errorf("missing prepayment label: %v", last.Events)
	}
}

func TestSchedulePrepaymentOptions(t *testing.T) {
	plain := mustTrack(t, "T", FixedUnlinked{}, 200000, 4, 360).Schedule()
	term := mustTrack(t, "T", FixedUnlinked{}, 200000, 4, 360, WithPrepayment(60, 50000, ReduceTerm)).Schedule()
	pay := mustTrack(t, "T", FixedUnlinked{}, 200000, 4, 360, WithPrepayment(60, 50000, ReducePayment)).Schedule()

	if len(term) >= len(plain) {
		t.Errorf("reduce_term should shorten the loan: %d vs %d", len(term), len(plain))
	}
	if !approx(term[60].Payment, plain[60].Payment, 1e-6) {
		t.Errorf("reduce_term should keep the payment: %f vs %f", term[60].Payment, plain[60].Payment)
	}
	if len(pay) != 360 {
		t.Errorf("reduce_payment should keep the term, len = %d", len(pay))
	}
	if pay[60].Payment >= plain[60].Payment {
		t.Errorf("reduce_payment should lower the payment: %f vs %f", pay[60].Payment, plain[60].Payment)
	}
	if !approx(pay[59].Payment, plain[59].Payment+50000, 1e-6) {
		t.Errorf("prepayment month should include the extra amount: %f", pay[59].Payment)
	}
	if !reflect.DeepEqual(pay[59].Events, []string{"prepayment: 50,000 (reduce_payment)"}) {
		t.Errorf("events = %v", pay[59].Events)
	}
	if TotalInterest(term) >= TotalInterest(pay) {
		t.Error("shortening the term should save more interest than lowering the payment")
	}
}

func TestScheduleRateChangeBeforePrepayment(t *testing.T) {
	tr := mustTrack(t, "T", FixedUnlinked{}, 100000, 4, 120, WithPrepayment(24, 10000, ReducePayment), WithRateChange(24, 1))
	rows := tr.Schedule()
	ev := rows[23].Events
	if len(ev) != 2 || !strings.HasPrefix(ev[0], "rate_change") || !strings.HasPrefix(ev[1], "prepayment") {
		t.Errorf("same-month events out of order: %v", ev)
	}
}

// A reduce_term prepayment shortens the loan only while the payment stays
// level. A later rate change, or monthly CPI indexation, re-amortizes over
// the original remaining term and the loan runs to its full term again.
func TestScheduleReduceTermUndoneByReamortization(t *testing.T) {
	tests := []struct {
		name string
		tr   Track
		rows int
	}{
		{"fixed, no later events", mustTrack(t, "T", FixedUnlinked{}, 100000, 4, 120,
			WithPrepayment(12, 20000, ReduceTerm)), -1},
		{"fixed, later rate change", mustTrack(t, "T", FixedUnlinked{}, 100000, 4, 120,
			WithPrepayment(12, 20000, ReduceTerm), WithRateChange(24, 0.5)), 120},
		{"cpi linked", mustTrack(t, "T", CPILinked{ExpectedCPI: 2.5}, 100000, 3, 120,
			WithPrepayment(12, 20000, ReduceTerm)), 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.tr.Schedule()
			if tt.rows < 0 {
				if len(rows) >= 120 {
					t.Errorf("term should shorten, got %d rows", len(rows))
				}
				return
			}
			if len(rows) != tt.rows {
				t.Errorf("rows = %d, want %d", len(rows), tt.rows)
			}
			if last := rows[len(rows)-1]; last.EndingBalance != 0 {
				t.Errorf("final balance = %f", last.EndingBalance)
			}
		})
	}
}

func TestScheduleCPILinked(t *testing.T) {
	tr := mustTrack(t, "T", CPILinked{ExpectedCPI: 3}, 100000, 2, 240)
	rows := tr.Schedule()
	infl := MonthlyInflation(3)
	if !approx(rows[0].Interest, 100000*(1+infl)*0.02/12, 1e-9) {
		t.Errorf("interest should accrue on the indexed balance: %f", rows[0].Interest)
	}
	last := rows[len(rows)-1]
	if last.EndingBalance != 0 {
		t.Errorf("final balance = %f", last.EndingBalance)
	}
	if last.CumulativePrincipal <= 100000 {
		t.Errorf("indexed principal repaid %f should exceed nominal", last.CumulativePrincipal)
	}
	if rows[len(rows)-2].Payment <= rows[0].Payment {
		t.Error("indexed payments should rise over time")
	}
}

func TestScheduleEqualPrincipalAndBullet(t *testing.T) {
	eq := mustTrack(t, "E", FixedUnlinked{}, 120000, 6, 120, WithMethod(EqualPrincipal)).Schedule()
	for i := 1; i < len(eq); i++ {
		if !approx(eq[i].Principal, 1000, 1e-6) {
			t.Fatalf("equal principal row %d principal = %f", i, eq[i].Principal)
		}
		if eq[i].Payment >= eq[i-1].Payment {
			t.Fatalf("equal principal payment should decline at row %d", i)
		}
	}

	bl := mustTrack(t, "B", FixedUnlinked{}, 120000, 6, 60, WithMethod(Bullet)).Schedule()
	for i := 0; i < 59; i++ {
		if bl[i].Principal != 0 || !approx(bl[i].Payment, 600, 1e-9) {
			t.Fatalf("bullet row %d: %+v", i, bl[i])
		}
	}
	if bl[59].Principal != 120000 || !approx(bl[59].Payment, 120600, 1e-9) {
		t.Errorf("bullet maturity row: %+v", bl[59])
	}
}

func TestScheduleZeroTrack(t *testing.T) {
	var tr Track
	if rows := tr.Schedule(); rows != nil {
		t.Errorf("zero track should have no schedule, got %d rows", len(rows))
	}
}
