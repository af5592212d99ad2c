package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/dealscope/internal/analysis"
	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// CSV schedule export
// ════════════════════════════════════════════════════════════════════

// ScheduleColumns is the header of an exported schedule.
var ScheduleColumns = []string{"Month", "Year", "Payment", "Interest", "Principal", "Balance", "Events"}

// WriteScheduleCSV writes one schedule with amounts rounded to cents and
// events joined by " | ".
func WriteScheduleCSV(w io.Writer, payments []models.Payment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ScheduleColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range payments {
		rec := []string{
			strconv.Itoa(p.PaymentNumber),
			strconv.Itoa(p.Year),
			cents(p.Payment),
			cents(p.Interest),
			cents(p.Principal),
			cents(p.EndingBalance),
			strings.Join(p.Events, " | "),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row %d: %w", p.PaymentNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cents(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// TrackFileName turns a track name into a file stem.
func TrackFileName(name string) string {
	return strings.NewReplacer(" ", "_", "/", "-").Replace(name)
}

// ExportScheduleCSV writes one CSV per track into dir and, when combined
// is set and there is more than one track, a combined.csv. filter keeps
// only tracks whose name contains it, case-insensitively. The written
// paths are returned in order.
func ExportScheduleCSV(dir string, s mortgage.Schedule, filter string, combined bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var written []string
	var kept []mortgage.TrackSchedule
	for _, ts := range s.Tracks {
		if filter != "" && !strings.Contains(strings.ToLower(ts.Name), strings.ToLower(filter)) {
			continue
		}
		path := filepath.Join(dir, TrackFileName(ts.Name)+".csv")
		if err := writeCSVFile(path, ts.Payments); err != nil {
			return written, err
		}
		written = append(written, path)
		kept = append(kept, ts)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no track matches %q", filter)
	}

	if combined && len(kept) > 1 {
		path := filepath.Join(dir, "combined.csv")
		if err := writeCSVFile(path, mortgage.Combine(kept)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeCSVFile(path string, payments []models.Payment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteScheduleCSV(f, payments); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ════════════════════════════════════════════════════════════════════
// Excel workbook
// ════════════════════════════════════════════════════════════════════

const (
	numberFormat = "#,##0.00"
	headerColor  = "1F6FEB"
)

// workbook wraps an excelize file with the shared header and number
// styles.
type workbook struct {
	f           *excelize.File
	headerStyle int
	numberStyle int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	nf := numberFormat
	number, err := f.NewStyle(&excelize.Style{CustomNumFmt: &nf})
	if err != nil {
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}
	return &workbook{f: f, headerStyle: header, numberStyle: number}, nil
}

// sheet writes a header and rows to a new sheet; float cells get the
// number style and the header row is frozen.
func (wb *workbook) sheet(name string, header []string, rows [][]any) error {
	if _, err := wb.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.f.SetCellValue(name, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := wb.f.SetCellStyle(name, "A1", last, wb.headerStyle); err != nil {
		return err
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := wb.f.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", name, cell, err)
			}
			if _, ok := v.(float64); ok {
				if err := wb.f.SetCellStyle(name, cell, cell, wb.numberStyle); err != nil {
					return err
				}
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := wb.f.SetColWidth(name, "A", lastCol, 15); err != nil {
		return err
	}
	return wb.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// WriteWorkbook writes an Excel workbook with the metric summary, the
// pro-forma, the yearly and combined schedules and one sheet per track.
func WriteWorkbook(w io.Writer, a *analysis.DealAnalysis) error {
	if a == nil || a.Deal == nil || a.Metrics == nil {
		return fmt.Errorf("analysis is nil")
	}
	wb, err := newWorkbook()
	if err != nil {
		return err
	}
	defer wb.f.Close()

	var summary [][]any
	for _, m := range a.Metrics.All() {
		summary = append(summary, []any{MetricLabel(m.Type), m.Value, m.Formatted, string(m.Rating())})
	}
	if err := wb.sheet("Summary", []string{"Metric", "Value", "Display", "Rating"}, summary); err != nil {
		return err
	}

	if a.ProForma != nil {
		var rows [][]any
		for _, y := range a.ProForma.Years {
			rows = append(rows, []any{
				y.Year, y.EffectiveIncome, y.OperatingExpenses, y.NOI, y.DebtService, y.CashFlow,
				y.PropertyValue, y.LoanBalance, y.TotalEquity, y.ROE,
			})
		}
		if err := wb.sheet("Pro-Forma", []string{
			"Year", "EGI", "OpEx", "NOI", "Debt Service", "Cash Flow", "Property Value", "Loan Balance", "Equity", "ROE",
		}, rows); err != nil {
			return err
		}
	}

	s := a.Deal.Schedule()
	if len(s.Combined) > 0 {
		var yearly [][]any
		for _, y := range s.Yearly() {
			yearly = append(yearly, []any{y.Year, y.Payment, y.Principal, y.Interest, y.EndingBalance})
		}
		if err := wb.sheet("Yearly", []string{"Year", "Payment", "Principal", "Interest", "Balance"}, yearly); err != nil {
			return err
		}
		if err := wb.sheet("Schedule", ScheduleColumns, paymentRows(s.Combined)); err != nil {
			return err
		}
		if len(s.Tracks) > 1 {
			for _, ts := range s.Tracks {
				if err := wb.sheet(sheetName(ts.Name), ScheduleColumns, paymentRows(ts.Payments)); err != nil {
					return err
				}
			}
		}
	}

	// NewFile starts with Sheet1.
	if err := wb.f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	wb.f.SetActiveSheet(0)
	return wb.f.Write(w)
}

// SaveWorkbook writes the workbook to path.
func SaveWorkbook(path string, a *analysis.DealAnalysis) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteWorkbook(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func paymentRows(payments []models.Payment) [][]any {
	rows := make([][]any, len(payments))
	for i, p := range payments {
		rows[i] = []any{p.PaymentNumber, p.Year, p.Payment, p.Interest, p.Principal, p.EndingBalance, strings.Join(p.Events, " | ")}
	}
	return rows
}

// sheetName fits Excel's 31-character limit and forbidden characters.
func sheetName(track string) string {
	name := strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")").Replace(track)
	name = "Track " + name
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}
