package mortgage

import (
	"fmt"
	"math"

	"github.com/seenimoa/dealscope/pkg/models"
	"github.com/seenimoa/dealscope/pkg/utils"
)

// balanceEpsilon is the residual below which a loan counts as repaid.
const balanceEpsilon = 0.01

// Event labels attached to schedule rows.
const (
	EventGraceEnd    = "grace_end"
	EventGracePayoff = "grace_payoff"
)

func graceLabel(g GraceType) string { return "grace:" + string(g) }

func rateChangeLabel(delta float64) string { return fmt.Sprintf("rate_change: %+.2f%%", delta) }

func prepaymentLabel(amount float64, opt PrepaymentOption) string {
	return fmt.Sprintf("prepayment: %s (%s)", utils.FormatNumber(amount, 0), opt)
}

// ════════════════════════════════════════════════════════════════════
// Amortization engine
// ════════════════════════════════════════════════════════════════════

// Schedule generates the month-by-month amortization of the track, to term
// or until the balance is repaid, whichever comes first.
//
// Within a month the order is fixed: rate changes, then the grace or
// regular payment (CPI indexation first), then prepayments.
//
// Rate changes and CPI indexation re-amortize over the original remaining
// term, so they cancel the shortening of an earlier reduce_term prepayment.
func (t Track) Schedule() []models.Payment {
	if t.principal <= 0 || t.termMonths <= 0 || t.index == nil {
		return nil
	}

	a := amortizer{
		track:   t,
		rate:    t.EffectiveRate() / 100,
		infl:    t.index.monthlyInflation(),
		balance: t.principal,
	}
	if t.grace != nil {
		a.graceMonths = t.grace.Months
	}
	a.graceEnded = a.graceMonths == 0
	if a.graceEnded {
		a.reamortize(t.termMonths)
	}

	rows := make([]models.Payment, 0, t.termMonths)
	var cumPrincipal, cumInterest float64
	rc, pp := 0, 0

	for m := 1; m <= t.termMonths; m++ {
		var events []string
		opening := a.balance

		// ── Rate changes ──
		for ; rc < len(t.rateChanges) && t.rateChanges[rc].Month == m; rc++ {
			delta := t.rateChanges[rc].Delta
			a.rate = nonNegative(a.rate + delta/100)
			if a.graceEnded && t.method == Spitzer {
				a.level = AnnuityPayment(a.rate/12, t.termMonths-(m-1), a.balance)
			}
			events = append(events, rateChangeLabel(delta))
		}

		// ── Regular payment ──
		var payment, principal, interest float64
		if m <= a.graceMonths {
			payment, principal, interest = a.graceMonth(m, &events)
		} else {
			payment, principal, interest = a.amortizingMonth(m, &events)
		}

		// ── Prepayments ──
		for ; pp < len(t.prepayments) && t.prepayments[pp].Month == m; pp++ {
			p := t.prepayments[pp]
			extra := math.Min(p.Amount, a.balance)
			payment += extra
			principal += extra
			a.balance -= extra

			if remaining := t.termMonths - m; remaining > 0 && p.Option == ReducePayment && a.graceEnded {
				a.reamortize(remaining)
			}
			events = append(events, prepaymentLabel(extra, p.Option))
		}

		// Sweep float residue so a repaid loan closes at exactly zero.
		if a.balance <= balanceEpsilon {
			principal += a.balance
			payment += a.balance
			a.balance = 0
		}

		cumPrincipal += principal
		cumInterest += interest
		rows = append(rows, models.Payment{
			PaymentNumber:       m,
			Year:                (m-1)/12 + 1,
			Month:               (m-1)%12 + 1,
			BeginningBalance:    opening,
			Payment:             payment,
			Principal:           principal,
			Interest:            interest,
			EndingBalance:       a.balance,
			CumulativePrincipal: cumPrincipal,
			CumulativeInterest:  cumInterest,
			Events:              events,
		})

		if a.balance == 0 {
			break
		}
	}
	return rows
}

// amortizer is the mutable state of one schedule run.
type amortizer struct {
	track       Track
	rate        float64 // annual, decimal
	infl        float64 // monthly CPI factor minus one
	balance     float64
	graceMonths int
	graceEnded  bool

	level       float64 // Spitzer payment
	installment float64 // equal-principal installment
}

// reamortize recomputes the payment over the remaining months from the
// current balance and rate.
func (a *amortizer) reamortize(remaining int) {
	if remaining <= 0 {
		return
	}
	switch a.track.method {
	case Spitzer:
		a.level = AnnuityPayment(a.rate/12, remaining, a.balance)
	case EqualPrincipal:
		a.installment = a.balance / float64(remaining)
	}
}

func (a *amortizer) graceMonth(m int, events *[]string) (payment, principal, interest float64) {
	g := a.track.grace
	a.balance *= 1 + a.infl
	interest = a.balance * a.rate / 12

	// A grace period spanning the whole term ends in a forced payoff.
	if m == a.track.termMonths {
		principal = a.balance
		payment = interest + principal
		a.balance = 0
		*events = append(*events, EventGracePayoff)
		return payment, principal, interest
	}

	if g.Type == GraceFullDeferral {
		a.balance += interest
	} else {
		payment = interest
	}
	if len(*events) == 0 {
		*events = append(*events, graceLabel(g.Type))
	}
	return payment, 0, interest
}

func (a *amortizer) amortizingMonth(m int, events *[]string) (payment, principal, interest float64) {
	t := a.track
	if !a.graceEnded {
		a.graceEnded = true
		a.reamortize(t.termMonths - a.graceMonths)
		*events = append(*events, EventGraceEnd)
	}

	if a.infl != 0 {
		a.balance *= 1 + a.infl
		a.reamortize(t.termMonths - (m - 1))
	}

	interest = a.balance * a.rate / 12
	last := m == t.termMonths

	switch t.method {
	case Spitzer:
		payment = a.level
		principal = math.Max(payment-interest, 0)
		if principal > a.balance || last {
			principal = a.balance
			payment = principal + interest
		}
	case EqualPrincipal:
		principal = math.Min(a.installment, a.balance)
		if last {
			principal = a.balance
		}
		payment = interest + principal
	case Bullet:
		payment = interest
		if last {
			principal = a.balance
			payment += principal
		}
	}
	a.balance -= principal
	return payment, principal, interest
}

// TotalInterest sums the interest column of a schedule.
func TotalInterest(rows []models.Payment) float64 {
	if len(rows) == 0 {
		return 0
	}
	return rows[len(rows)-1].CumulativeInterest
}
