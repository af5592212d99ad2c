// Package metrics derives the investment metrics of a deal: year-1 ratios,
// holding-period returns (IRR, NPV, equity multiple, ROE) and a weighted
// deal score for an investor profile.
package metrics

import (
	"errors"
	"math"
)

// ErrNoConvergence is returned when no IRR can be found for a series.
var ErrNoConvergence = errors.New("irr did not converge")

const (
	irrTolerance = 1e-10
	irrMaxIter   = 100
)

// NPV discounts cash flows at rate. The first flow is at t=0 and is not
// discounted.
func NPV(rate float64, flows []float64) float64 {
	var npv float64
	for t, cf := range flows {
		npv += cf / math.Pow(1+rate, float64(t))
	}
	return npv
}

// npvDerivative is d(NPV)/d(rate).
func npvDerivative(rate float64, flows []float64) float64 {
	var d float64
	for t := 1; t < len(flows); t++ {
		d -= float64(t) * flows[t] / math.Pow(1+rate, float64(t+1))
	}
	return d
}

// IRR finds the rate at which NPV is zero. Newton-Raphson is tried first
// from 10%; if it wanders off or stalls, the root is bracketed and bisected.
// A series without both a positive and a negative flow has no IRR.
func IRR(flows []float64) (float64, error) {
	var pos, neg bool
	for _, cf := range flows {
		pos = pos || cf > 0
		neg = neg || cf < 0
	}
	if !pos || !neg {
		return 0, ErrNoConvergence
	}

	if r, ok := newtonIRR(flows, 0.1); ok {
		return r, nil
	}
	return bisectIRR(flows)
}

func newtonIRR(flows []float64, guess float64) (float64, bool) {
	r := guess
	for i := 0; i < irrMaxIter; i++ {
		f := NPV(r, flows)
		if math.Abs(f) < irrTolerance {
			return r, true
		}
		df := npvDerivative(r, flows)
		if df == 0 || math.IsNaN(df) {
			return 0, false
		}
		next := r - f/df
		if next <= -1 || math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		if math.Abs(next-r) < irrTolerance {
			return next, true
		}
		r = next
	}
	return 0, false
}

func bisectIRR(flows []float64) (float64, error) {
	lo, hi := -0.9999, 1.0
	flo := NPV(lo, flows)
	fhi := NPV(hi, flows)
	for flo*fhi > 0 {
		if hi > 1e6 {
			return 0, ErrNoConvergence
		}
		hi *= 2
		fhi = NPV(hi, flows)
	}
	for i := 0; i < 500; i++ {
		mid := (lo + hi) / 2
		fm := NPV(mid, flows)
		if math.Abs(fm) < irrTolerance || (hi-lo)/2 < irrTolerance {
			return mid, nil
		}
		if fm*flo < 0 {
			hi = mid
		} else {
			lo, flo = mid, fm
		}
	}
	return 0, ErrNoConvergence
}

// NetSaleProceeds is what the investor keeps on exit: the sale price less
// selling costs (a percentage of price) and the loan payoff.
func NetSaleProceeds(salePrice, salesExpensePct, loanBalance float64) float64 {
	return salePrice - salePrice*salesExpensePct/100 - loanBalance
}

// EquityMultiple is total distributions over total invested capital.
// Negative operating years count as further capital calls, positive years
// and the exit proceeds as distributions.
func EquityMultiple(initial float64, annual []float64, netSale float64) (multiple, distributions, invested float64) {
	distributions = netSale
	invested = initial
	for _, cf := range annual {
		if cf >= 0 {
			distributions += cf
		} else {
			invested += -cf
		}
	}
	if invested <= 0 {
		return 0, distributions, invested
	}
	return distributions / invested, distributions, invested
}
