package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/dealscope/internal/analysis"
	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/internal/proforma"
	"github.com/seenimoa/dealscope/internal/report"
	"github.com/seenimoa/dealscope/internal/service"
	"github.com/seenimoa/dealscope/pkg/models"
	"github.com/seenimoa/dealscope/pkg/utils"
)

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [deal file or ID]",
	Short: "Run the full deal analysis and render a report",
	Long: `Run metrics, pro-forma, scenarios and stress tests on a deal and render
the result as text, HTML, PDF, JSON or an Excel workbook.

Examples:
  dealscope analyze deals/herzl.yaml
  dealscope analyze herzl-12 --profile cash_flow --years 7
  dealscope analyze deals/herzl.yaml --format pdf --out herzl.pdf
  dealscope analyze deals/herzl.yaml --xlsx herzl.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d, err := resolveDeal(svc, args[0])
		if err != nil {
			return err
		}
		o := overridesFromFlags(cmd)
		o.Scenarios, o.Stress = true, true
		a, err := svc.Analyze(cmd.Context(), d, svc.Options(d, o))
		if err != nil {
			return err
		}

		if xlsx, _ := cmd.Flags().GetString("xlsx"); xlsx != "" {
			if err := report.SaveWorkbook(xlsx, a); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "📊 Workbook written to %s\n", xlsx)
		}

		format, _ := cmd.Flags().GetString("format")
		asJSON := strings.EqualFold(format, "json")
		var f report.ReportFormat
		if !asJSON {
			if f, err = report.ParseFormat(format); err != nil {
				return err
			}
		}

		// PDFs go to the report directory unless --out says otherwise.
		fallback := ""
		if f == report.FormatPDF {
			fallback = filepath.Join(cfg.Report.OutputDir, report.TrackFileName(d.ID())+".pdf")
		}
		w, closeFn, err := output(cmd, fallback)
		if err != nil {
			return err
		}
		defer closeFn() //nolint:errcheck
		if asJSON {
			return printJSON(w, a)
		}
		if file, ok := w.(*os.File); ok && file != os.Stdout {
			fmt.Fprintf(os.Stderr, "📄 Writing report to %s\n", file.Name())
		}
		rc := reportConfig(f)
		switch f {
		case report.FormatPDF:
			return report.GeneratePDF(a, rc, w)
		case report.FormatHTML:
			out, err := report.GenerateHTML(a, rc)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, out)
			return err
		default:
			out, err := report.GenerateText(a, rc)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, out)
			return err
		}
	},
}

func init() {
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().String("format", "text", "output format: text, html, pdf, json")
	analyzeCmd.Flags().String("out", "", "write the report to this file instead of stdout")
	analyzeCmd.Flags().String("xlsx", "", "also write an Excel workbook to this path")
}

func reportConfig(f report.ReportFormat) report.ReportConfig {
	rc := report.DefaultReportConfig()
	rc.Format = f
	rc.Author = cfg.Report.Author
	if cfg.Report.PageSize != "" {
		rc.PageSize = cfg.Report.PageSize
	}
	if cfg.Report.Orientation != "" {
		rc.Orientation = cfg.Report.Orientation
	}
	return rc
}

// --- Amortization Command ---

var amortizationCmd = &cobra.Command{
	Use:     "amortization [deal file or ID]",
	Aliases: []string{"amort"},
	Short:   "Print or export the mortgage amortization schedule",
	Long: `Print the combined amortization schedule of a deal's financing, or one
track of it, and optionally export CSV files, a workbook or a balance chart.

Examples:
  dealscope amortization deals/herzl.yaml --yearly
  dealscope amortization deals/herzl.yaml --track prime
  dealscope amortization deals/herzl.yaml --csv out/ --combined
  dealscope amortization deals/herzl.yaml --png balance.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d, err := resolveDeal(svc, args[0])
		if err != nil {
			return err
		}
		sched := d.Schedule()
		filter, _ := cmd.Flags().GetString("track")

		if dir, _ := cmd.Flags().GetString("csv"); dir != "" {
			combined, _ := cmd.Flags().GetBool("combined")
			paths, err := report.ExportScheduleCSV(dir, sched, filter, combined)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Printf("📄 %s\n", p)
			}
		}
		if png, _ := cmd.Flags().GetString("png"); png != "" {
			if err := report.SaveBalancePNG(png, d.Name()+" loan balance", sched); err != nil {
				return err
			}
			fmt.Printf("📈 %s\n", png)
		}
		if xlsx, _ := cmd.Flags().GetString("xlsx"); xlsx != "" {
			a, err := svc.Analyze(cmd.Context(), d, svc.Options(d, overridesFromFlags(cmd)))
			if err != nil {
				return err
			}
			if err := report.SaveWorkbook(xlsx, a); err != nil {
				return err
			}
			fmt.Printf("📊 %s\n", xlsx)
		}

		payments := sched.Combined
		title := "Combined schedule"
		if filter != "" {
			var kept []mortgage.TrackSchedule
			for _, ts := range sched.Tracks {
				if strings.Contains(strings.ToLower(ts.Name), strings.ToLower(filter)) {
					kept = append(kept, ts)
				}
			}
			if len(kept) == 0 {
				return fmt.Errorf("no track matches %q", filter)
			}
			payments = mortgage.Combine(kept)
			title = fmt.Sprintf("Tracks matching %q", filter)
		}

		printLoan(d.LoanDetails(), d.Financing().Compliance())
		fmt.Printf("\n%s\n", title)
		if yearly, _ := cmd.Flags().GetBool("yearly"); yearly {
			printYearly(mortgage.YearlySummary(payments))
			return nil
		}
		printPayments(payments)
		return nil
	},
}

func init() {
	addAnalysisFlags(amortizationCmd)
	amortizationCmd.Flags().String("track", "", "only tracks whose name contains this text")
	amortizationCmd.Flags().Bool("yearly", false, "summarize by loan year")
	amortizationCmd.Flags().Bool("combined", false, "with --csv, also write combined.csv")
	amortizationCmd.Flags().String("csv", "", "export one CSV per track into this directory")
	amortizationCmd.Flags().String("xlsx", "", "export an Excel workbook with every schedule")
	amortizationCmd.Flags().String("png", "", "render the balance chart (png, svg or pdf by extension)")
}

func printLoan(l mortgage.LoanDetails, c mortgage.Compliance) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Financing:        %s\n", l.Mode)
	fmt.Printf("  Loan amount:      %s\n", utils.FormatMoney(l.LoanAmount, 0))
	fmt.Printf("  Down payment:     %s (%.1f%%)\n", utils.FormatMoney(l.DownPayment, 0), l.DownPaymentPercent)
	fmt.Printf("  Monthly payment:  %s\n", utils.FormatMoney(l.MonthlyPayment, 2))
	fmt.Printf("  Effective rate:   %.3f%%\n", l.InterestRate)
	if c.Applicable {
		status := "✅ compliant"
		if !c.Compliant {
			status = "⚠️  " + strings.Join(c.Violations, "; ")
		}
		fmt.Printf("  Regulation:       %s\n", status)
		fmt.Printf("    fixed %s, prime %s, CPI-linked %s\n",
			utils.FormatPercent(c.FixedRatio, 1), utils.FormatPercent(c.PrimeRatio, 1), utils.FormatPercent(c.CPILinkedRatio, 1))
	}
	fmt.Println("═══════════════════════════════════════")
}

func printPayments(ps []models.Payment) {
	fmt.Printf("%5s %14s %12s %12s %12s %16s  %s\n", "#", "Begin", "Payment", "Principal", "Interest", "End", "Events")
	for _, p := range ps {
		fmt.Printf("%5d %14.2f %12.2f %12.2f %12.2f %16.2f  %s\n",
			p.PaymentNumber, p.BeginningBalance, p.Payment, p.Principal, p.Interest, p.EndingBalance,
			strings.Join(p.Events, "; "))
	}
}

func printYearly(ys []models.YearSummary) {
	fmt.Printf("%4s %14s %14s %14s %16s\n", "Year", "Payments", "Principal", "Interest", "End balance")
	for _, y := range ys {
		fmt.Printf("%4d %14.2f %14.2f %14.2f %16.2f\n", y.Year, y.Payment, y.Principal, y.Interest, y.EndingBalance)
	}
}

// --- Pro-Forma Command ---

var proformaCmd = &cobra.Command{
	Use:   "proforma [deal file or ID]",
	Short: "Print the year-by-year pro-forma",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d, err := resolveDeal(svc, args[0])
		if err != nil {
			return err
		}
		years := svc.Options(d, overridesFromFlags(cmd)).Metrics.HoldingPeriod
		res := proforma.Project(d, years)
		if !res.Success {
			return fmt.Errorf("pro-forma: %s", strings.Join(res.Errors, "; "))
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, map[string]any{"proforma": res.Data, "summary": res.Data.Summary()})
		}

		fmt.Printf("%4s %12s %12s %12s %12s %14s %14s %14s\n",
			"Year", "EGI", "OpEx", "NOI", "Cash flow", "Value", "Loan", "Equity")
		for _, y := range res.Data.Years {
			fmt.Printf("%4d %12.0f %12.0f %12.0f %12.0f %14.0f %14.0f %14.0f\n",
				y.Year, y.EffectiveIncome, y.OperatingExpenses, y.NOI, y.CashFlow,
				y.PropertyValue, y.LoanBalance, y.TotalEquity)
		}
		s := res.Data.Summary()
		fmt.Println()
		fmt.Printf("  Total cash flow:   %s\n", utils.FormatMoney(s.TotalCashFlow, 0))
		fmt.Printf("  Average NOI:       %s\n", utils.FormatMoney(s.AverageNOI, 0))
		fmt.Printf("  Principal paid:    %s\n", utils.FormatMoney(s.TotalPrincipalPaid, 0))
		fmt.Printf("  Ending equity:     %s\n", utils.FormatMoney(s.EndingEquity, 0))
		fmt.Printf("  Average ROE:       %s\n", utils.FormatPercent(s.AverageROE, 2))
		for _, w := range res.Warnings {
			fmt.Printf("  ⚠️  %s\n", w)
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(proformaCmd)
	proformaCmd.Flags().Bool("json", false, "print JSON")
}

// --- Scenarios Command ---

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [deal file or ID]",
	Short: "Compare the pessimistic, base and optimistic scenarios",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d, err := resolveDeal(svc, args[0])
		if err != nil {
			return err
		}
		rep, err := svc.Scenarios(cmd.Context(), d, nil, overridesFromFlags(cmd))
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, rep)
		}

		fmt.Printf("Scenarios over %d years (%s profile)\n\n", rep.HoldingPeriod, rep.Profile)
		fmt.Printf("%-12s %9s %9s %8s %8s %7s\n", "Scenario", "IRR", "CoC", "DSCR", "EqMult", "Score")
		for _, o := range rep.Outcomes {
			if !o.OK() {
				fmt.Printf("%-12s %s\n", o.Scenario.Name, o.Err)
				continue
			}
			fmt.Printf("%-12s %9s %9s %8.2f %8.2f %7.1f\n", o.Scenario.Name,
				utils.FormatPercent(o.IRR, 2), utils.FormatPercent(o.CashOnCash, 2), o.DSCR, o.EquityMultiple, o.DealScore)
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(scenariosCmd)
	scenariosCmd.Flags().Bool("json", false, "print JSON")
}

// --- Sensitivity Command ---

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity [deal file or ID]",
	Short: "Sweep one variable or build a two-variable grid",
	Long: `Vary one or two deal inputs and recompute a metric.

Variables: purchase_price, rent, vacancy_rate, interest_rate, appreciation,
expense_growth, rent_growth, down_payment, property_tax, insurance.

Examples:
  dealscope sensitivity deals/herzl.yaml --var1 rent --range1=-10,10
  dealscope sensitivity deals/herzl.yaml --var1 rent --var2 vacancy_rate --metric irr`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d, err := resolveDeal(svc, args[0])
		if err != nil {
			return err
		}
		o := overridesFromFlags(cmd)
		name1, _ := cmd.Flags().GetString("var1")
		name2, _ := cmd.Flags().GetString("var2")
		r1, _ := cmd.Flags().GetFloat64Slice("range1")
		r2, _ := cmd.Flags().GetFloat64Slice("range2")
		steps, _ := cmd.Flags().GetInt("steps")
		metricName, _ := cmd.Flags().GetString("metric")
		asJSON, _ := cmd.Flags().GetBool("json")

		v1, err := analysis.ParseVariable(name1)
		if err != nil {
			return err
		}
		range1, err := pair(r1)
		if err != nil {
			return fmt.Errorf("--range1: %w", err)
		}
		metric, err := analysis.ParseMetric(metricName)
		if err != nil {
			return err
		}

		if name2 == "" {
			return runSweep(cmd.Context(), svc, d, analysis.SweepRequest{
				Variable: v1, Range: range1, Steps: steps, Metrics: []models.MetricType{metric},
			}, o, asJSON)
		}

		v2, err := analysis.ParseVariable(name2)
		if err != nil {
			return err
		}
		range2, err := pair(r2)
		if err != nil {
			return fmt.Errorf("--range2: %w", err)
		}
		g, err := svc.Grid(cmd.Context(), d, analysis.GridRequest{
			Var1: v1, Var2: v2, Range1: range1, Range2: range2, Steps: steps, Metric: metric,
		}, o)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, g)
		}
		fmt.Printf("%s by %s (rows) and %s (columns); base %.4f\n\n", metric, v1, v2, g.Base)
		fmt.Printf("%9s", "")
		for _, c := range g.Values2 {
			fmt.Printf(" %+9.2f", c)
		}
		fmt.Println()
		for i, row := range g.Cells {
			fmt.Printf("%+9.2f", g.Values1[i])
			for _, v := range row {
				fmt.Printf(" %9.4f", v)
			}
			fmt.Println()
		}
		for _, w := range g.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(sensitivityCmd)
	sensitivityCmd.Flags().String("var1", string(analysis.VarRent), "first variable")
	sensitivityCmd.Flags().String("var2", "", "second variable; builds a grid when set")
	sensitivityCmd.Flags().Float64Slice("range1", []float64{-10, 10}, "change range for var1 (lo,hi)")
	sensitivityCmd.Flags().Float64Slice("range2", []float64{-5, 5}, "change range for var2 (lo,hi)")
	sensitivityCmd.Flags().Int("steps", 0, "points per axis (default from config)")
	sensitivityCmd.Flags().String("metric", string(models.MetricCashOnCash), "metric to recompute")
	sensitivityCmd.Flags().Bool("json", false, "print JSON")
}

func runSweep(ctx context.Context, svc *service.Service, d *deal.Deal, req analysis.SweepRequest, o service.Overrides, asJSON bool) error {
	sw, err := svc.Sweep(ctx, d, req, o)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(os.Stdout, sw)
	}
	for metric, points := range sw.Series {
		fmt.Printf("%s by %s\n", metric, sw.Variable)
		for _, p := range points {
			fmt.Printf("  %+8.2f  %12.4f\n", p.Change, p.Value)
		}
	}
	for _, w := range sw.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	return nil
}

func pair(v []float64) ([2]float64, error) {
	if len(v) != 2 {
		return [2]float64{}, fmt.Errorf("want two values lo,hi, got %d", len(v))
	}
	return [2]float64{v[0], v[1]}, nil
}

// --- Stress Command ---

var stressCmd = &cobra.Command{
	Use:   "stress [deal file or ID]",
	Short: "Find the vacancy and expense levels that break the deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d, err := resolveDeal(svc, args[0])
		if err != nil {
			return err
		}
		res, err := svc.Stress(d)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, res)
		}
		mark := func(ok bool) string {
			if ok {
				return "✅"
			}
			return "❌"
		}
		fmt.Printf("  Vacancy:  current %.1f%%, break-even %.1f%%, cushion %.1f pts %s survives %.0f%%\n",
			res.CurrentVacancy, res.BreakEvenVacancy, res.VacancyCushion, mark(res.SurvivesVacancy), res.Limits.MaxVacancy)
		fmt.Printf("  Expenses: break-even increase %.1f%% %s survives +%.0f%%\n",
			res.BreakEvenExpenseIncrease, mark(res.SurvivesExpenseIncrease), res.Limits.MaxExpenseIncrease)
		dscr := fmt.Sprintf("%.2fx", res.DSCR)
		if res.DSCRCapped {
			dscr = "999.99x (no debt)"
		}
		fmt.Printf("  DSCR:     %s\n", dscr)
		return nil
	},
}

func init() {
	stressCmd.Flags().Bool("json", false, "print JSON")
}
