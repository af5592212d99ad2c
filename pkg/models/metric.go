package models

// MetricType identifies a financial metric.
type MetricType string

const (
	MetricNOI            MetricType = "noi"
	MetricCapRate        MetricType = "cap_rate"
	MetricCashFlow       MetricType = "cash_flow"
	MetricCashOnCash     MetricType = "coc_return"
	MetricDSCR           MetricType = "dscr"
	MetricGRM            MetricType = "grm"
	MetricIRR            MetricType = "irr"
	MetricNPV            MetricType = "npv"
	MetricEquityMultiple MetricType = "equity_multiple"
	MetricROE            MetricType = "roe"
	MetricAverageROE     MetricType = "average_roe"
	MetricBreakEven      MetricType = "break_even_ratio"
	MetricDealScore      MetricType = "deal_score"
)

// LowerIsBetter reports whether smaller values of the metric are preferable.
func (t MetricType) LowerIsBetter() bool {
	return t == MetricGRM || t == MetricBreakEven
}

// Rating is a coarse performance bucket derived from benchmarks.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
	RatingUnknown   Rating = "Unknown"
)

// Benchmark holds the low / target / high thresholds for a metric.
type Benchmark struct {
	Low    float64 `json:"low"`
	Target float64 `json:"target"`
	High   float64 `json:"high"`
}

// MetricResult is a computed metric with display and benchmark context.
type MetricResult struct {
	Type          MetricType         `json:"metric_type"`
	Value         float64            `json:"value"`
	Formatted     string             `json:"formatted_value"`
	Year          int                `json:"year,omitempty"`
	HoldingPeriod int                `json:"holding_period,omitempty"`
	Benchmark     *Benchmark         `json:"benchmark,omitempty"`
	Capped        bool               `json:"capped,omitempty"` // value is a display sentinel, e.g. DSCR with no debt
	Details       map[string]float64 `json:"details,omitempty"`
}

// IsGood reports whether the value meets the benchmark target. The second
// return is false when no benchmark is attached.
func (m MetricResult) IsGood() (good bool, known bool) {
	if m.Benchmark == nil {
		return false, false
	}
	if m.Type.LowerIsBetter() {
		return m.Value <= m.Benchmark.Target, true
	}
	return m.Value >= m.Benchmark.Target, true
}

// Rating buckets the value against its benchmarks.
func (m MetricResult) Rating() Rating {
	b := m.Benchmark
	if b == nil {
		return RatingUnknown
	}
	if m.Type.LowerIsBetter() {
		switch {
		case m.Value <= b.Low:
			return RatingExcellent
		case m.Value <= b.Target:
			return RatingGood
		case m.Value <= b.High:
			return RatingFair
		default:
			return RatingPoor
		}
	}
	switch {
	case m.Value >= b.High:
		return RatingExcellent
	case m.Value >= b.Target:
		return RatingGood
	case m.Value >= b.Low:
		return RatingFair
	default:
		return RatingPoor
	}
}
