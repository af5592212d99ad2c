package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/seenimoa/dealscope/internal/analysis"
	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/pkg/models"
	"github.com/seenimoa/dealscope/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator
// ════════════════════════════════════════════════════════════════════

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatPDF  ReportFormat = "pdf"
	FormatText ReportFormat = "text"
)

// ParseFormat accepts html, pdf, text or txt.
func ParseFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	case "", "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ReportSection identifies a section to include/exclude.
type ReportSection string

const (
	SectionSummary   ReportSection = "summary"
	SectionFinancing ReportSection = "financing"
	SectionMetrics   ReportSection = "metrics"
	SectionProForma  ReportSection = "proforma"
	SectionScenarios ReportSection = "scenarios"
	SectionStress    ReportSection = "stress"
)

// AllSections returns all report sections in display order.
func AllSections() []ReportSection {
	return []ReportSection{
		SectionSummary,
		SectionFinancing,
		SectionMetrics,
		SectionProForma,
		SectionScenarios,
		SectionStress,
	}
}

// ReportConfig controls report generation behaviour.
type ReportConfig struct {
	Format      ReportFormat
	Sections    []ReportSection // default: all
	Title       string
	Author      string
	PageSize    string // PDF only: A4, Letter
	Orientation string // PDF only: portrait, landscape
	ChartCfg    ChartConfig
}

// DefaultReportConfig returns sensible defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Format:      FormatHTML,
		Sections:    AllSections(),
		Author:      "dealscope",
		PageSize:    "A4",
		Orientation: "portrait",
		ChartCfg:    DefaultChartConfig(),
	}
}

func (rc ReportConfig) hasSection(s ReportSection) bool {
	if len(rc.Sections) == 0 {
		return true
	}
	for _, sec := range rc.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════
// Report Data (flattened for templates)
// ════════════════════════════════════════════════════════════════════

// ReportData is the model passed to the HTML, text and PDF renderers.
type ReportData struct {
	Title       string
	DealID      string
	DealName    string
	Address     string
	Property    string // "single_family, 1 unit"
	Status      string
	Author      string
	GeneratedAt string

	// Acquisition
	PurchasePrice  string
	TotalCash      string
	FinancingMode  string
	LoanAmount     string
	MonthlyPayment string
	InterestRate   string
	Points         string

	// Score
	Score      string
	ScoreValue float64
	ScoreColor string
	Profile    string

	Metrics    []MetricRow
	Tracks     []TrackRow
	Compliance ComplianceRow
	ProForma   []ProFormaRow
	Scenarios  []ScenarioRow
	Stress     []KeyValue
	Warnings   []string

	ScoreGauge   template.HTML
	EquityChart  template.HTML
	MetricsChart template.HTML

	ShowFinancing bool
	ShowMetrics   bool
	ShowProForma  bool
	ShowScenarios bool
	ShowStress    bool
}

// MetricRow is one metric with its benchmark rating.
type MetricRow struct {
	Label       string
	Value       string
	Rating      string
	RatingClass string // css: excellent, good, fair, poor, unknown
	Note        string
}

// TrackRow describes one mortgage track.
type TrackRow struct {
	Name       string
	Type       string
	HebrewName string
	Principal  string
	Share      string
	Rate       string
	Term       string
	Method     string
	Payment    string
	Extras     string // grace, rate changes, prepayments
}

// ComplianceRow is the regulatory composition check.
type ComplianceRow struct {
	Applicable bool
	Compliant  bool
	Fixed      string
	Prime      string
	Linked     string
	Violations []string
}

// ProFormaRow is one projected year.
type ProFormaRow struct {
	Year          int
	EGI           string
	OpEx          string
	NOI           string
	DebtService   string
	CashFlow      string
	PropertyValue string
	LoanBalance   string
	Equity        string
	ROE           string
}

// ScenarioRow is one scenario's headline figures.
type ScenarioRow struct {
	Name     string
	IRR      string
	CoC      string
	DSCR     string
	Multiple string
	CashFlow string
	Score    string
	Error    string
}

// KeyValue is a labelled value.
type KeyValue struct {
	Label string
	Value string
}

// ════════════════════════════════════════════════════════════════════
// Generate
// ════════════════════════════════════════════════════════════════════

// GenerateHTML renders an HTML deal report with inline SVG charts.
func GenerateHTML(a *analysis.DealAnalysis, cfg ReportConfig) (string, error) {
	if a == nil || a.Metrics == nil {
		return "", fmt.Errorf("analysis is nil")
	}
	data := BuildReportData(a, cfg)

	tmpl, err := template.New("report").Parse(ReportTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText renders a plain-text report for terminals.
func GenerateText(a *analysis.DealAnalysis, cfg ReportConfig) (string, error) {
	if a == nil || a.Metrics == nil {
		return "", fmt.Errorf("analysis is nil")
	}
	return renderTextReport(BuildReportData(a, cfg)), nil
}

// BuildReportData flattens an analysis for rendering.
func BuildReportData(a *analysis.DealAnalysis, cfg ReportConfig) ReportData {
	s := a.Summary
	loan := a.Loan
	units := "units"
	if s.Units == 1 {
		units = "unit"
	}

	data := ReportData{
		Title:         cfg.Title,
		DealID:        s.ID,
		DealName:      s.Name,
		Address:       s.Address,
		Property:      fmt.Sprintf("%s, %d %s", s.PropertyType, s.Units, units),
		Status:        string(s.Status),
		Author:        cfg.Author,
		GeneratedAt:   ReportTimestamp(a.AnalyzedAt),
		PurchasePrice: utils.FormatMoney(s.PurchasePrice, 0),
		TotalCash:     utils.FormatMoney(s.TotalCashNeeded, 0),
		FinancingMode: string(loan.Mode),

		Score:      a.Metrics.DealScore.Formatted,
		ScoreValue: a.Metrics.DealScore.Value,
		ScoreColor: ScoreColor(a.Metrics.DealScore.Value),
		Profile:    a.Metrics.Options.Profile,
		Warnings:   a.Warnings,

		ShowFinancing: cfg.hasSection(SectionFinancing),
		ShowMetrics:   cfg.hasSection(SectionMetrics),
		ShowProForma:  cfg.hasSection(SectionProForma) && a.ProForma != nil,
		ShowScenarios: cfg.hasSection(SectionScenarios) && a.Scenarios != nil,
		ShowStress:    cfg.hasSection(SectionStress) && a.Stress != nil,
	}
	if data.Title == "" {
		data.Title = fmt.Sprintf("%s: Deal Analysis", s.Name)
	}
	if data.Author == "" {
		data.Author = "dealscope"
	}

	if loan.Mode != mortgage.ModeCash {
		data.LoanAmount = utils.FormatMoney(loan.LoanAmount, 0)
		data.MonthlyPayment = utils.FormatMoney(loan.MonthlyPayment, 2)
		data.InterestRate = fmt.Sprintf("%.3f%%", loan.InterestRate)
		if loan.Points > 0 {
			data.Points = fmt.Sprintf("%.2f (%s)", loan.Points, utils.FormatMoney(loan.PointsCost, 0))
		}
	}

	for _, m := range a.Metrics.All() {
		data.Metrics = append(data.Metrics, metricRow(m))
	}
	for _, t := range loan.Tracks {
		data.Tracks = append(data.Tracks, trackRow(t))
	}
	c := a.Compliance
	data.Compliance = ComplianceRow{
		Applicable: c.Applicable,
		Compliant:  c.Compliant,
		Fixed:      utils.FormatPercent(c.FixedRatio, 1),
		Prime:      utils.FormatPercent(c.PrimeRatio, 1),
		Linked:     utils.FormatPercent(c.CPILinkedRatio, 1),
		Violations: c.Violations,
	}

	if a.ProForma != nil {
		for _, y := range a.ProForma.Years[1:] {
			data.ProForma = append(data.ProForma, ProFormaRow{
				Year:          y.Year,
				EGI:           utils.FormatMoney(y.EffectiveIncome, 0),
				OpEx:          utils.FormatMoney(y.OperatingExpenses, 0),
				NOI:           utils.FormatMoney(y.NOI, 0),
				DebtService:   utils.FormatMoney(y.DebtService, 0),
				CashFlow:      utils.FormatMoney(y.CashFlow, 0),
				PropertyValue: utils.FormatMoney(y.PropertyValue, 0),
				LoanBalance:   utils.FormatMoney(y.LoanBalance, 0),
				Equity:        utils.FormatMoney(y.TotalEquity, 0),
				ROE:           utils.FormatPercent(y.ROE, 2),
			})
		}
	}

	if a.Scenarios != nil {
		for _, o := range a.Scenarios.Outcomes {
			row := ScenarioRow{Name: o.Scenario.Name, Error: o.Err}
			if o.OK() {
				row.IRR = utils.FormatPercent(o.IRR, 2)
				row.CoC = utils.FormatPercent(o.CashOnCash, 2)
				row.DSCR = utils.FormatRatio(o.DSCR, 2)
				row.Multiple = utils.FormatRatio(o.EquityMultiple, 2)
				row.CashFlow = utils.FormatMoney(o.CashFlow, 0)
				row.Score = fmt.Sprintf("%.1f", o.DealScore)
			}
			data.Scenarios = append(data.Scenarios, row)
		}
	}

	if st := a.Stress; st != nil {
		data.Stress = []KeyValue{
			{"Current vacancy", fmt.Sprintf("%.1f%%", st.CurrentVacancy)},
			{"Break-even vacancy", breakEven(st.BreakEvenVacancy, st.SurvivesVacancy)},
			{"Vacancy cushion", fmt.Sprintf("%.1f pts", st.VacancyCushion)},
			{"Break-even expense increase", breakEven(st.BreakEvenExpenseIncrease, st.SurvivesExpenseIncrease)},
			{"Expense cushion", fmt.Sprintf("%.2f%%", st.ExpenseCushion)},
			{"DSCR", utils.FormatRatio(st.DSCR, 2)},
		}
	}

	data.ScoreGauge = template.HTML(GaugeChart(data.ScoreValue, "Deal score ("+data.Profile+")", 220))
	data.MetricsChart = template.HTML(HorizontalBarChart(returnBars(a), withTitle(cfg.ChartCfg, "Returns vs. benchmark target")))
	if a.ProForma != nil {
		data.EquityChart = template.HTML(equityChart(a, withTitle(cfg.ChartCfg, "Value, debt and equity")))
	}
	return data
}

func withTitle(c ChartConfig, title string) ChartConfig {
	if c.Width == 0 {
		c = DefaultChartConfig()
	}
	c.Title = title
	return c
}

func breakEven(v float64, survives bool) string {
	if survives {
		return fmt.Sprintf("> %.0f%% (survives)", v)
	}
	return fmt.Sprintf("%.0f%%", v)
}

func metricRow(m models.MetricResult) MetricRow {
	r := m.Rating()
	row := MetricRow{
		Label:       MetricLabel(m.Type),
		Value:       m.Formatted,
		Rating:      string(r),
		RatingClass: strings.ToLower(string(r)),
	}
	if m.Capped {
		row.Note = "no debt"
	}
	if m.HoldingPeriod > 0 && m.Type != models.MetricDealScore {
		row.Note = fmt.Sprintf("%d-year hold", m.HoldingPeriod)
	}
	return row
}

func trackRow(t mortgage.TrackDetails) TrackRow {
	row := TrackRow{
		Name:       t.Name,
		Type:       string(t.Type),
		HebrewName: t.HebrewName,
		Principal:  utils.FormatMoney(t.Principal, 0),
		Share:      utils.FormatPercent(t.Share, 1),
		Rate:       fmt.Sprintf("%.3f%%", t.EffectiveRate),
		Term:       fmt.Sprintf("%d mo", t.TermMonths),
		Method:     string(t.Method),
		Payment:    utils.FormatMoney(t.MonthlyPayment, 2),
	}
	var extras []string
	if t.Grace != nil {
		extras = append(extras, fmt.Sprintf("%d-month %s grace", t.Grace.Months, t.Grace.Type))
	}
	for _, rc := range t.RateChanges {
		extras = append(extras, fmt.Sprintf("rate %+.2f pts at month %d", rc.Delta, rc.Month))
	}
	for _, p := range t.Prepayments {
		extras = append(extras, fmt.Sprintf("prepay %s at month %d (%s)", utils.FormatMoney(p.Amount, 0), p.Month, p.Option))
	}
	row.Extras = strings.Join(extras, "; ")
	return row
}

// MetricLabel is the display name of a metric.
func MetricLabel(t models.MetricType) string {
	switch t {
	case models.MetricNOI:
		return "NOI (year 1)"
	case models.MetricCapRate:
		return "Cap rate"
	case models.MetricCashFlow:
		return "Cash flow (year 1)"
	case models.MetricCashOnCash:
		return "Cash-on-cash"
	case models.MetricDSCR:
		return "DSCR"
	case models.MetricGRM:
		return "Gross rent multiplier"
	case models.MetricIRR:
		return "IRR"
	case models.MetricNPV:
		return "NPV"
	case models.MetricEquityMultiple:
		return "Equity multiple"
	case models.MetricROE:
		return "ROE (year 1)"
	case models.MetricAverageROE:
		return "Average ROE"
	case models.MetricBreakEven:
		return "Break-even ratio"
	case models.MetricDealScore:
		return "Deal score"
	}
	return string(t)
}

// returnBars charts the ratio metrics as a share of their target.
func returnBars(a *analysis.DealAnalysis) []BarItem {
	b := a.Metrics
	var items []BarItem
	for _, m := range []models.MetricResult{b.CapRate, b.CashOnCash, b.IRR, b.DSCR, b.EquityMultiple} {
		if m.Benchmark == nil || m.Benchmark.Target == 0 {
			continue
		}
		items = append(items, BarItem{
			Label:   MetricLabel(m.Type),
			Value:   m.Value / m.Benchmark.Target * 100,
			Display: m.Formatted,
			Color:   RatingColor(m.Rating()),
		})
	}
	return items
}

func equityChart(a *analysis.DealAnalysis, cfg ChartConfig) string {
	years := a.ProForma.Years
	value := make([]float64, len(years))
	debt := make([]float64, len(years))
	equity := make([]float64, len(years))
	labels := make([]string, len(years))
	for i, y := range years {
		value[i], debt[i], equity[i] = y.PropertyValue, y.LoanBalance, y.TotalEquity
		labels[i] = fmt.Sprintf("Y%d", y.Year)
	}
	return LineChart([]LineChartSeries{
		{Name: "Property value", Values: value},
		{Name: "Loan balance", Values: debt},
		{Name: "Equity", Values: equity},
	}, labels, cfg)
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 72)
	thinLine := strings.Repeat("─", 72)

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Title)
	fmt.Fprintf(&sb, "  Generated: %s | Author: %s\n", d.GeneratedAt, d.Author)
	sb.WriteString(line + "\n\n")

	fmt.Fprintf(&sb, "  %s (%s)\n", d.DealName, d.DealID)
	fmt.Fprintf(&sb, "  %s | %s | status: %s\n", d.Address, d.Property, d.Status)
	fmt.Fprintf(&sb, "  Price: %s | Cash needed: %s | Financing: %s\n", d.PurchasePrice, d.TotalCash, d.FinancingMode)
	if d.LoanAmount != "" {
		fmt.Fprintf(&sb, "  Loan: %s at %s | Monthly payment: %s\n", d.LoanAmount, d.InterestRate, d.MonthlyPayment)
	}
	fmt.Fprintf(&sb, "\n  ★ DEAL SCORE %s (%s profile)\n", d.Score, d.Profile)
	sb.WriteString(thinLine + "\n")

	if d.ShowFinancing && len(d.Tracks) > 0 {
		sb.WriteString("\n  ■ MORTGAGE TRACKS\n")
		for _, t := range d.Tracks {
			fmt.Fprintf(&sb, "    %-14s %-18s %12s %6s %8s %7s %-15s %11s/mo\n",
				t.Name, t.Type, t.Principal, t.Share, t.Rate, t.Term, t.Method, t.Payment)
			if t.Extras != "" {
				fmt.Fprintf(&sb, "      %s\n", t.Extras)
			}
		}
		if d.Compliance.Applicable {
			status := "compliant"
			if !d.Compliance.Compliant {
				status = "NOT compliant"
			}
			fmt.Fprintf(&sb, "    Composition: fixed %s, prime %s, CPI-linked %s (%s)\n",
				d.Compliance.Fixed, d.Compliance.Prime, d.Compliance.Linked, status)
			for _, v := range d.Compliance.Violations {
				fmt.Fprintf(&sb, "      ! %s\n", v)
			}
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowMetrics {
		sb.WriteString("\n  ■ METRICS\n")
		for _, m := range d.Metrics {
			note := ""
			if m.Note != "" {
				note = " (" + m.Note + ")"
			}
			fmt.Fprintf(&sb, "    %-24s %14s  %-9s%s\n", m.Label, m.Value, m.Rating, note)
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowProForma {
		sb.WriteString("\n  ■ PRO-FORMA\n")
		fmt.Fprintf(&sb, "    %4s %12s %12s %12s %12s %14s %14s\n", "Year", "NOI", "Debt svc", "Cash flow", "ROE", "Value", "Equity")
		for _, y := range d.ProForma {
			fmt.Fprintf(&sb, "    %4d %12s %12s %12s %12s %14s %14s\n", y.Year, y.NOI, y.DebtService, y.CashFlow, y.ROE, y.PropertyValue, y.Equity)
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowScenarios {
		sb.WriteString("\n  ■ SCENARIOS\n")
		for _, s := range d.Scenarios {
			if s.Error != "" {
				fmt.Fprintf(&sb, "    %-14s failed: %s\n", s.Name, s.Error)
				continue
			}
			fmt.Fprintf(&sb, "    %-14s IRR %8s | CoC %8s | DSCR %7s | EM %6s | score %s\n",
				s.Name, s.IRR, s.CoC, s.DSCR, s.Multiple, s.Score)
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowStress {
		sb.WriteString("\n  ■ STRESS TEST\n")
		for _, kv := range d.Stress {
			fmt.Fprintf(&sb, "    %-30s %s\n", kv.Label, kv.Value)
		}
		sb.WriteString(thinLine + "\n")
	}

	if len(d.Warnings) > 0 {
		sb.WriteString("\n  ■ WARNINGS\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&sb, "    - %s\n", w)
		}
	}

	sb.WriteString("\n" + line + "\n")
	sb.WriteString("  Projections rest on the stated assumptions; they are not a forecast.\n")
	sb.WriteString(line + "\n")
	return sb.String()
}

// ReportTimestamp formats a time for report headers; zero means now.
func ReportTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("02 Jan 2006, 15:04")
}
