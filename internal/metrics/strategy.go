package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/dealscope/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Investor Strategies
// ════════════════════════════════════════════════════════════════════

// Strategy weighs metrics for one kind of investor.
type Strategy interface {
	// Name is the profile key, e.g. "balanced".
	Name() string
	Description() string
	// Weight of a scored metric; 0 means the metric is ignored.
	Weight(t models.MetricType) float64
	// Thresholds for normalising a scored metric.
	Thresholds(t models.MetricType) (models.Benchmark, bool)
}

// Scored lists the metrics a deal score is built from, in scoring order.
var Scored = []models.MetricType{
	models.MetricCashOnCash,
	models.MetricDSCR,
	models.MetricCapRate,
	models.MetricIRR,
	models.MetricEquityMultiple,
}

// Profile names.
const (
	ProfileCashFlow     = "cash_flow"
	ProfileBalanced     = "balanced"
	ProfileAppreciation = "appreciation"
)

// DefaultProfile is used when none is requested.
const DefaultProfile = ProfileBalanced

// DSCRScoreCap keeps very safe deals from dominating the score.
const DSCRScoreCap = 3.0

// standardThresholds are shared by the built-in profiles.
var standardThresholds = map[models.MetricType]models.Benchmark{
	models.MetricCashOnCash:     {Low: 0.02, Target: 0.08, High: 0.15},
	models.MetricDSCR:           {Low: 1.2, Target: 1.5, High: 2.0},
	models.MetricCapRate:        {Low: 0.03, Target: 0.055, High: 0.08},
	models.MetricIRR:            {Low: 0.05, Target: 0.12, High: 0.20},
	models.MetricEquityMultiple: {Low: 1.2, Target: 2.0, High: 3.0},
}

// profile is a table-driven Strategy.
type profile struct {
	name        string
	description string
	weights     map[models.MetricType]float64
	thresholds  map[models.MetricType]models.Benchmark
}

func (p profile) Name() string                       { return p.name }
func (p profile) Description() string                { return p.description }
func (p profile) Weight(t models.MetricType) float64 { return p.weights[t] }

func (p profile) Thresholds(t models.MetricType) (models.Benchmark, bool) {
	b, ok := p.thresholds[t]
	return b, ok
}

func weights(coc, dscr, capRate, irr, em float64) map[models.MetricType]float64 {
	return map[models.MetricType]float64{
		models.MetricCashOnCash:     coc,
		models.MetricDSCR:           dscr,
		models.MetricCapRate:        capRate,
		models.MetricIRR:            irr,
		models.MetricEquityMultiple: em,
	}
}

// BuiltinStrategies returns the investor profiles.
func BuiltinStrategies() []Strategy {
	return []Strategy{
		profile{
			name:        ProfileCashFlow,
			description: "Prioritizes immediate cash flow and financial safety",
			weights:     weights(0.40, 0.30, 0.10, 0.10, 0.10),
			thresholds:  standardThresholds,
		},
		profile{
			name:        ProfileBalanced,
			description: "Seeks balance between cash flow and appreciation",
			weights:     weights(0.25, 0.20, 0.10, 0.25, 0.20),
			thresholds:  standardThresholds,
		},
		profile{
			name:        ProfileAppreciation,
			description: "Prioritizes long-term appreciation and total returns",
			weights:     weights(0.10, 0.10, 0.10, 0.40, 0.30),
			thresholds:  standardThresholds,
		},
	}
}

// StrategyByName looks up a built-in profile. Names are case-insensitive.
func StrategyByName(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultProfile
	}
	var names []string
	for _, s := range BuiltinStrategies() {
		if s.Name() == key {
			return s, nil
		}
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown investor profile %q (choose from %s)", name, strings.Join(names, ", "))
}

// ════════════════════════════════════════════════════════════════════
// Scoring
// ════════════════════════════════════════════════════════════════════

// Normalize maps a value onto 0-100: 0 at or below low, 50 at target,
// 100 at or above high, linear in between.
func Normalize(v float64, b models.Benchmark) float64 {
	switch {
	case v <= b.Low:
		return 0
	case v >= b.High:
		return 100
	case v <= b.Target:
		return 50 * (v - b.Low) / (b.Target - b.Low)
	default:
		return 50 + 50*(v-b.Target)/(b.High-b.Target)
	}
}

// Score is the weighted average of the normalised metrics present in
// values, divided by the weight actually used so missing metrics do not
// drag the score down. The per-metric normalised scores are returned too.
func Score(s Strategy, values map[models.MetricType]float64) (float64, map[string]float64) {
	parts := make(map[string]float64, len(Scored))
	var total, weight float64
	for _, t := range Scored {
		w := s.Weight(t)
		v, ok := values[t]
		if w == 0 || !ok {
			continue
		}
		n := 50.0
		if b, ok := s.Thresholds(t); ok {
			n = Normalize(v, b)
		}
		parts[string(t)] = n
		total += n * w
		weight += w
	}
	if weight == 0 {
		return 0, parts
	}
	return total / weight, parts
}
