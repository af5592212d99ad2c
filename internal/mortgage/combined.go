package mortgage

import (
	"github.com/seenimoa/dealscope/pkg/models"
)

// TrackSchedule is the amortization of one named track.
type TrackSchedule struct {
	Name     string           `json:"name"`
	Type     TrackType        `json:"track_type"`
	Payments []models.Payment `json:"payments"`
}

// Schedule is the full amortization of a financing: each track on its own
// and the month-by-month sum across tracks.
type Schedule struct {
	LoanAmount     float64          `json:"loan_amount"`
	MonthlyPayment float64          `json:"monthly_payment"` // first combined payment
	InterestRate   float64          `json:"interest_rate"`   // principal-weighted
	TotalInterest  float64          `json:"total_interest"`
	Tracks         []TrackSchedule  `json:"tracks,omitempty"`
	Combined       []models.Payment `json:"payments"`
}

// Track returns the schedule of the named track.
func (s Schedule) Track(name string) ([]models.Payment, bool) {
	for _, ts := range s.Tracks {
		if ts.Name == name {
			return ts.Payments, true
		}
	}
	return nil, false
}

// Yearly collapses the combined schedule by loan year.
func (s Schedule) Yearly() []models.YearSummary {
	return YearlySummary(s.Combined)
}

// Schedule generates every track's schedule for a purchase price and merges
// them. Cash purchases produce an empty schedule.
func (f Financing) Schedule(price float64) (Schedule, error) {
	details, err := f.LoanDetails(price)
	if err != nil {
		return Schedule{}, err
	}
	tracks, err := f.ResolveTracks(price)
	if err != nil {
		return Schedule{}, err
	}

	s := Schedule{
		LoanAmount:   details.AllocatedAmount,
		InterestRate: details.InterestRate,
	}
	for _, t := range tracks {
		s.Tracks = append(s.Tracks, TrackSchedule{Name: t.Name(), Type: t.Type(), Payments: t.Schedule()})
	}
	s.Combined = Combine(s.Tracks)
	if len(s.Combined) > 0 {
		s.MonthlyPayment = s.Combined[0].Payment
	}
	s.TotalInterest = TotalInterest(s.Combined)
	return s, nil
}

// Combine merges track schedules by payment number. Amounts are summed and
// event labels are prefixed with the track name.
func Combine(tracks []TrackSchedule) []models.Payment {
	maxMonth := 0
	for _, ts := range tracks {
		if n := len(ts.Payments); n > 0 && ts.Payments[n-1].PaymentNumber > maxMonth {
			maxMonth = ts.Payments[n-1].PaymentNumber
		}
	}
	if maxMonth == 0 {
		return nil
	}

	combined := make([]models.Payment, 0, maxMonth)
	var cumPrincipal, cumInterest float64

	for m := 1; m <= maxMonth; m++ {
		row := models.Payment{
			PaymentNumber: m,
			Year:          (m-1)/12 + 1,
			Month:         (m-1)%12 + 1,
		}
		for _, ts := range tracks {
			// Schedules are dense from month 1, so the row index is m-1.
			if m > len(ts.Payments) {
				continue
			}
			p := ts.Payments[m-1]
			row.BeginningBalance += p.BeginningBalance
			row.Payment += p.Payment
			row.Principal += p.Principal
			row.Interest += p.Interest
			row.EndingBalance += p.EndingBalance
			for _, e := range p.Events {
				row.Events = append(row.Events, ts.Name+": "+e)
			}
		}
		cumPrincipal += row.Principal
		cumInterest += row.Interest
		row.CumulativePrincipal = cumPrincipal
		row.CumulativeInterest = cumInterest
		combined = append(combined, row)
	}
	return combined
}

// YearlySummary sums payments per loan year and carries the last row's
// balance and cumulative totals.
func YearlySummary(payments []models.Payment) []models.YearSummary {
	var out []models.YearSummary
	for _, p := range payments {
		if len(out) == 0 || out[len(out)-1].Year != p.Year {
			out = append(out, models.YearSummary{Year: p.Year})
		}
		y := &out[len(out)-1]
		y.Payment += p.Payment
		y.Principal += p.Principal
		y.Interest += p.Interest
		y.EndingBalance = p.EndingBalance
		y.CumulativePrincipal = p.CumulativePrincipal
		y.CumulativeInterest = p.CumulativeInterest
	}
	return out
}
