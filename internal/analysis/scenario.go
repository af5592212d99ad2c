// Package analysis runs what-if studies over a base deal: preset and
// custom scenarios, one- and two-variable sensitivity, and a stress test.
// Every study derives new deals through deal.Apply; the base deal is never
// modified.
package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/metrics"
	"github.com/seenimoa/dealscope/pkg/models"
)

// ScenarioKind tags the presets.
type ScenarioKind string

const (
	KindPessimistic ScenarioKind = "pessimistic"
	KindBase        ScenarioKind = "base"
	KindOptimistic  ScenarioKind = "optimistic"
	KindCustom      ScenarioKind = "custom"
)

// Scenario is a set of adjustments to a deal's assumptions. Adjustments
// are percentage points except VacancyMultiplier, where 0 means unchanged.
type Scenario struct {
	Name              string       `json:"name"`
	Kind              ScenarioKind `json:"scenario_type"`
	Description       string       `json:"description,omitempty"`
	AppreciationAdj   float64      `json:"appreciation_adjustment"`
	RentGrowthAdj     float64      `json:"rent_growth_adjustment"`
	ExpenseGrowthAdj  float64      `json:"expense_growth_adjustment"`
	VacancyMultiplier float64      `json:"vacancy_rate_multiplier"`
	RateAdj           float64      `json:"interest_rate_adjustment"`
}

// Pessimistic: low growth, high vacancy, rising rates.
func Pessimistic() Scenario {
	return Scenario{
		Name:              "Pessimistic",
		Kind:              KindPessimistic,
		Description:       "Conservative assumptions: low growth, high vacancy, rising rates",
		AppreciationAdj:   -1.5,
		RentGrowthAdj:     -1,
		ExpenseGrowthAdj:  1,
		VacancyMultiplier: 1.5,
		RateAdj:           1,
	}
}

// Base leaves every assumption unchanged.
func Base() Scenario {
	return Scenario{
		Name:              "Base Case",
		Kind:              KindBase,
		Description:       "Current assumptions unchanged",
		VacancyMultiplier: 1,
	}
}

// Optimistic: strong growth, low vacancy, easing rates.
func Optimistic() Scenario {
	return Scenario{
		Name:              "Optimistic",
		Kind:              KindOptimistic,
		Description:       "Favorable conditions: strong growth, low vacancy, stable rates",
		AppreciationAdj:   1.5,
		RentGrowthAdj:     1,
		ExpenseGrowthAdj:  -0.5,
		VacancyMultiplier: 0.7,
		RateAdj:           -0.5,
	}
}

// DefaultScenarios are pessimistic, base and optimistic, in that order.
func DefaultScenarios() []Scenario {
	return []Scenario{Pessimistic(), Base(), Optimistic()}
}

// Change translates the scenario into a change-set for d. Growth rates and
// vacancy are kept within the ranges a deal accepts.
func (s Scenario) Change(d *deal.Deal) deal.Change {
	mult := s.VacancyMultiplier
	if mult <= 0 {
		mult = 1
	}
	c := deal.Change{}.
		Appreciation(d.Market().Appreciation + s.AppreciationAdj).
		RentGrowth(deal.ClampPercent(d.Income().AnnualIncrease+s.RentGrowthAdj, 0, 20)).
		ExpenseGrowth(deal.ClampPercent(d.Expenses().AnnualIncrease+s.ExpenseGrowthAdj, 0, 20)).
		VacancyRate(deal.ClampPercent(d.Income().VacancyRate*mult, 0, 50))
	if !d.Financing().IsCash() && s.RateAdj != 0 {
		c = c.ShiftRates(s.RateAdj)
	}
	return c
}

// ScenarioOutcome is one scenario's result. Err is set when the adjusted
// deal could not be built or evaluated.
type ScenarioOutcome struct {
	Scenario       Scenario        `json:"scenario"`
	Metrics        *metrics.Bundle `json:"metrics,omitempty"`
	IRR            float64         `json:"irr"`
	CashOnCash     float64         `json:"coc_return"`
	DSCR           float64         `json:"dscr"`
	EquityMultiple float64         `json:"equity_multiple"`
	DealScore      float64         `json:"deal_score"`
	NOI            float64         `json:"noi_year1"`
	CashFlow       float64         `json:"cash_flow_year1"`
	Err            string          `json:"error,omitempty"`
}

// OK reports whether the scenario was evaluated.
func (o ScenarioOutcome) OK() bool { return o.Err == "" }

// ScenarioReport collects the outcomes of a scenario run.
type ScenarioReport struct {
	DealID        string            `json:"deal_id"`
	HoldingPeriod int               `json:"holding_period"`
	Profile       string            `json:"investor_profile"`
	Outcomes      []ScenarioOutcome `json:"scenarios"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// Get returns the first outcome of a kind.
func (r *ScenarioReport) Get(kind ScenarioKind) (ScenarioOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Scenario.Kind == kind {
			return o, true
		}
	}
	return ScenarioOutcome{}, false
}

// MetricRange is the spread of a metric across scenarios.
type MetricRange struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Spread float64 `json:"range"`
}

// Range computes the spread of a metric over the evaluated scenarios.
func (r *ScenarioReport) Range(t models.MetricType) MetricRange {
	first := true
	var out MetricRange
	for _, o := range r.Outcomes {
		if !o.OK() {
			continue
		}
		v, ok := o.Metrics.Value(t)
		if !ok {
			continue
		}
		if first {
			out.Min, out.Max = v, v
			first = false
			continue
		}
		out.Min = math.Min(out.Min, v)
		out.Max = math.Max(out.Max, v)
	}
	out.Spread = out.Max - out.Min
	return out
}

// Comparison maps scenario name to its headline figures.
func (r *ScenarioReport) Comparison() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if !o.OK() {
			continue
		}
		out[o.Scenario.Name] = map[string]float64{
			"irr":             o.IRR,
			"coc_return":      o.CashOnCash,
			"dscr":            o.DSCR,
			"equity_multiple": o.EquityMultiple,
			"deal_score":      o.DealScore,
			"noi_year1":       o.NOI,
			"cash_flow_year1": o.CashFlow,
		}
	}
	return out
}

// RunScenarios evaluates each scenario against d. With no scenarios the
// three presets are used. A scenario that fails is reported on its
// outcome and as a warning; the run continues.
func RunScenarios(ctx context.Context, d *deal.Deal, scenarios []Scenario, opts metrics.Options) (*ScenarioReport, error) {
	if d == nil {
		return nil, fmt.Errorf("scenarios: deal is required")
	}
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	if opts.HoldingPeriod == 0 {
		opts.HoldingPeriod = d.HoldingPeriod()
	}
	if opts.Profile == "" {
		opts.Profile = metrics.DefaultProfile
	}

	r := &ScenarioReport{DealID: d.ID(), HoldingPeriod: opts.HoldingPeriod, Profile: opts.Profile}
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Kind == "" {
			s.Kind = KindCustom
		}
		out := ScenarioOutcome{Scenario: s}

		adjusted, err := d.Apply(s.Change(d))
		if err != nil {
			out.Err = err.Error()
			r.Warnings = append(r.Warnings, fmt.Sprintf("scenario %q: %v", s.Name, err))
			r.Outcomes = append(r.Outcomes, out)
			continue
		}
		res := metrics.Calculate(adjusted, opts)
		if !res.Success {
			out.Err = fmt.Sprint(res.Errors)
			r.Warnings = append(r.Warnings, fmt.Sprintf("scenario %q: %v", s.Name, res.Errors))
			r.Outcomes = append(r.Outcomes, out)
			continue
		}
		b := res.Data
		out.Metrics = b
		out.IRR = b.IRR.Value
		out.CashOnCash = b.CashOnCash.Value
		out.DSCR = b.DSCR.Value
		out.EquityMultiple = b.EquityMultiple.Value
		out.DealScore = b.DealScore.Value
		out.NOI = b.NOI.Value
		out.CashFlow = b.CashFlow.Value
		for _, w := range res.Warnings {
			r.Warnings = append(r.Warnings, fmt.Sprintf("scenario %q: %s", s.Name, w))
		}
		r.Outcomes = append(r.Outcomes, out)
	}
	return r, nil
}
