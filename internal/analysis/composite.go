package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/metrics"
	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/internal/proforma"
)

// ════════════════════════════════════════════════════════════════════
// Composite deal analysis
// ════════════════════════════════════════════════════════════════════

// Options selects what Analyze runs beyond the metrics.
type Options struct {
	Metrics   metrics.Options
	Scenarios bool
	Stress    bool
	Limits    StressLimits
}

// DealAnalysis gathers every study of one deal.
type DealAnalysis struct {
	Deal       *deal.Deal                 `json:"-"`
	Summary    deal.Summary               `json:"summary"`
	Loan       mortgage.LoanDetails       `json:"loan"`
	Compliance mortgage.Compliance        `json:"compliance"`
	Metrics    *metrics.Bundle            `json:"metrics"`
	ProForma   *proforma.ProForma         `json:"proforma"`
	Monthly    *proforma.CashFlowAnalysis `json:"monthly_cash_flow,omitempty"`
	Scenarios  *ScenarioReport            `json:"scenarios,omitempty"`
	Stress     *StressResult              `json:"stress,omitempty"`
	Warnings   []string                   `json:"warnings,omitempty"`
	AnalyzedAt time.Time                  `json:"analyzed_at"`
}

// Analyze runs the metric bundle, the pro-forma and, when asked, the
// scenario and stress studies concurrently. Only a metrics or pro-forma
// failure is fatal; optional studies that fail become warnings.
func Analyze(ctx context.Context, d *deal.Deal, opts Options) (*DealAnalysis, error) {
	if d == nil {
		return nil, fmt.Errorf("analyze: deal is required")
	}
	years := opts.Metrics.HoldingPeriod
	if years == 0 {
		years = d.HoldingPeriod()
	}

	a := &DealAnalysis{
		Deal:       d,
		Summary:    d.Summary(),
		Loan:       d.LoanDetails(),
		Compliance: d.Financing().Compliance(),
		AnalyzedAt: time.Now(),
	}

	var mu sync.Mutex
	warn := func(format string, args ...any) {
		mu.Lock()
		a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res := metrics.Calculate(d, opts.Metrics)
		if !res.Success {
			return fmt.Errorf("metrics: %w", errors.Join(stringErrors(res.Errors)...))
		}
		mu.Lock()
		a.Metrics = res.Data
		a.Warnings = append(a.Warnings, res.Warnings...)
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		res := proforma.Project(d, years)
		if !res.Success {
			return fmt.Errorf("proforma: %w", errors.Join(stringErrors(res.Errors)...))
		}
		monthly := proforma.MonthlyCashFlows(d, years)
		mu.Lock()
		a.ProForma = res.Data
		if monthly.Success {
			a.Monthly = monthly.Data
		}
		mu.Unlock()
		return nil
	})

	if opts.Scenarios {
		g.Go(func() error {
			r, err := RunScenarios(gctx, d, nil, opts.Metrics)
			if err != nil {
				warn("scenarios: %v", err)
				return nil // non-fatal
			}
			mu.Lock()
			a.Scenarios = r
			mu.Unlock()
			return nil
		})
	}

	if opts.Stress {
		g.Go(func() error {
			r, err := StressTest(d, opts.Limits)
			if err != nil {
				warn("stress: %v", err)
				return nil
			}
			mu.Lock()
			a.Stress = r
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", d.ID(), err)
	}
	if !a.Compliance.Compliant {
		for _, v := range a.Compliance.Violations {
			warn("regulation: %s", v)
		}
	}

	slog.Debug("deal analyzed", "deal", d.ID(), "score", a.Metrics.DealScore.Value, "warnings", len(a.Warnings))
	return a, nil
}

func stringErrors(msgs []string) []error {
	out := make([]error, len(msgs))
	for i, m := range msgs {
		out[i] = errors.New(m)
	}
	return out
}
