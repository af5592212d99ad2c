package mortgage

import "math"

// MonthlyRate converts an annual percentage rate (e.g. 4.5) to a periodic
// monthly rate (0.00375).
func MonthlyRate(annualPct float64) float64 {
	return annualPct / 100 / 12
}

// AnnuityPayment returns the level payment that retires principal over n
// periods at the periodic rate r. A zero rate spreads principal evenly.
func AnnuityPayment(r float64, n int, principal float64) float64 {
	if n <= 0 || principal <= 0 {
		return 0
	}
	if r == 0 {
		return principal / float64(n)
	}
	f := math.Pow(1+r, float64(n))
	return principal * r * f / (f - 1)
}

// MonthlyInflation converts an expected annual CPI percentage into the
// equivalent compounded monthly factor minus one.
func MonthlyInflation(annualCPI float64) float64 {
	if annualCPI == 0 {
		return 0
	}
	return math.Pow(1+annualCPI/100, 1.0/12.0) - 1
}
