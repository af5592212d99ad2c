package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/seenimoa/dealscope/internal/analysis"
)

// ════════════════════════════════════════════════════════════════════
// PDF
// ════════════════════════════════════════════════════════════════════

type pdfColor struct{ R, G, B int }

var (
	headerFill    = pdfColor{31, 111, 235}
	alternateFill = pdfColor{242, 244, 247}
)

const (
	pdfFont     = "Arial"
	pdfFontSize = 9.0
	pdfRowH     = 6.0
)

// pdfReport lays a ReportData out with gofpdf core fonts. Core fonts are
// cp1252, so text goes through a translator and Hebrew track names are
// left out.
type pdfReport struct {
	pdf  *gofpdf.Fpdf
	tr   func(string) string
	data ReportData
}

// GeneratePDF writes a PDF deal report to w.
func GeneratePDF(a *analysis.DealAnalysis, cfg ReportConfig, w io.Writer) error {
	if a == nil || a.Metrics == nil {
		return fmt.Errorf("analysis is nil")
	}
	r := newPDFReport(BuildReportData(a, cfg), cfg)
	r.render()
	if err := r.pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

func newPDFReport(data ReportData, cfg ReportConfig) *pdfReport {
	orientation := "P"
	if strings.EqualFold(cfg.Orientation, "landscape") {
		orientation = "L"
	}
	size := cfg.PageSize
	if size == "" {
		size = "A4"
	}
	pdf := gofpdf.New(orientation, "mm", size, "")
	pdf.SetMargins(15, 18, 15)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle(data.Title, true)
	pdf.SetAuthor(data.Author, true)

	r := &pdfReport{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), data: data}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "", 7)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, r.tr(fmt.Sprintf("%s  |  page %d", data.DealName, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	return r
}

func (r *pdfReport) render() {
	d := r.data
	r.pdf.AddPage()

	r.pdf.SetFont(pdfFont, "B", 16)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.CellFormat(0, 10, r.tr(d.Title), "", 1, "L", false, 0, "")
	r.pdf.SetFont(pdfFont, "", pdfFontSize)
	r.pdf.SetTextColor(100, 100, 100)
	r.pdf.CellFormat(0, 5, r.tr(fmt.Sprintf("%s | %s | %s", d.Address, d.Property, d.Status)), "", 1, "L", false, 0, "")
	r.pdf.CellFormat(0, 5, r.tr(fmt.Sprintf("Generated %s by %s", d.GeneratedAt, d.Author)), "", 1, "L", false, 0, "")
	r.pdf.Ln(4)

	facts := []KeyValue{
		{"Purchase price", d.PurchasePrice},
		{"Cash needed", d.TotalCash},
		{"Financing", d.FinancingMode},
	}
	if d.LoanAmount != "" {
		facts = append(facts,
			KeyValue{"Loan amount", d.LoanAmount},
			KeyValue{"Weighted rate", d.InterestRate},
			KeyValue{"Monthly payment", d.MonthlyPayment})
	}
	if d.Points != "" {
		facts = append(facts, KeyValue{"Points", d.Points})
	}
	facts = append(facts, KeyValue{"Deal score", fmt.Sprintf("%s (%s)", d.Score, d.Profile)})
	r.keyValues("Summary", facts)

	if d.ShowFinancing && len(d.Tracks) > 0 {
		rows := make([][]string, len(d.Tracks))
		for i, t := range d.Tracks {
			rows[i] = []string{t.Name, t.Type, t.Principal, t.Share, t.Rate, t.Term, t.Method, t.Payment}
		}
		r.table("Mortgage tracks",
			[]string{"Track", "Type", "Principal", "Share", "Rate", "Term", "Method", "Payment"},
			[]float64{24, 30, 24, 14, 16, 16, 28, 28}, rows)
		if c := d.Compliance; c.Applicable {
			status := "compliant"
			if !c.Compliant {
				status = "not compliant"
			}
			r.paragraph(fmt.Sprintf("Composition: fixed %s, prime %s, CPI-linked %s (%s).", c.Fixed, c.Prime, c.Linked, status))
			for _, v := range c.Violations {
				r.paragraph(v)
			}
		}
	}

	if d.ShowMetrics {
		rows := make([][]string, len(d.Metrics))
		for i, m := range d.Metrics {
			rows[i] = []string{m.Label, m.Value, m.Rating, m.Note}
		}
		r.table("Metrics", []string{"Metric", "Value", "Rating", "Note"}, []float64{60, 40, 30, 50}, rows)
	}

	if d.ShowProForma {
		rows := make([][]string, len(d.ProForma))
		for i, y := range d.ProForma {
			rows[i] = []string{fmt.Sprint(y.Year), y.NOI, y.DebtService, y.CashFlow, y.PropertyValue, y.LoanBalance, y.Equity, y.ROE}
		}
		r.table("Pro-forma",
			[]string{"Year", "NOI", "Debt service", "Cash flow", "Value", "Loan", "Equity", "ROE"},
			[]float64{12, 22, 24, 22, 26, 26, 26, 20}, rows)
	}

	if d.ShowScenarios {
		rows := make([][]string, len(d.Scenarios))
		for i, s := range d.Scenarios {
			if s.Error != "" {
				rows[i] = []string{s.Name, "failed", "", "", "", ""}
				continue
			}
			rows[i] = []string{s.Name, s.IRR, s.CoC, s.DSCR, s.Multiple, s.Score}
		}
		r.table("Scenarios", []string{"Scenario", "IRR", "Cash-on-cash", "DSCR", "Multiple", "Score"},
			[]float64{40, 26, 30, 24, 26, 20}, rows)
	}

	if d.ShowStress {
		r.keyValues("Stress test", d.Stress)
	}

	if len(d.Warnings) > 0 {
		r.heading("Warnings")
		for _, w := range d.Warnings {
			r.paragraph("- " + w)
		}
	}
}

func (r *pdfReport) heading(title string) {
	r.pdf.Ln(4)
	r.pdf.SetFont(pdfFont, "B", 12)
	r.pdf.SetTextColor(headerFill.R, headerFill.G, headerFill.B)
	r.pdf.CellFormat(0, 8, r.tr(title), "B", 1, "L", false, 0, "")
	r.pdf.Ln(2)
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *pdfReport) paragraph(text string) {
	r.pdf.SetFont(pdfFont, "", pdfFontSize)
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.MultiCell(0, 5, r.tr(text), "", "L", false)
}

func (r *pdfReport) keyValues(title string, items []KeyValue) {
	r.heading(title)
	for _, kv := range items {
		r.pdf.SetFont(pdfFont, "B", pdfFontSize)
		r.pdf.CellFormat(60, pdfRowH, r.tr(kv.Label+":"), "", 0, "L", false, 0, "")
		r.pdf.SetFont(pdfFont, "", pdfFontSize)
		r.pdf.CellFormat(0, pdfRowH, r.tr(kv.Value), "", 1, "L", false, 0, "")
	}
}

// table draws a header row and striped body rows, repeating the header
// after a page break.
func (r *pdfReport) table(title string, header []string, widths []float64, rows [][]string) {
	r.heading(title)
	r.tableHeader(header, widths)

	_, pageH := r.pdf.GetPageSize()
	_, _, _, bottom := r.pdf.GetMargins()
	r.pdf.SetFont(pdfFont, "", pdfFontSize)
	for i, row := range rows {
		if r.pdf.GetY()+pdfRowH > pageH-bottom {
			r.pdf.AddPage()
			r.tableHeader(header, widths)
			r.pdf.SetFont(pdfFont, "", pdfFontSize)
		}
		fill := alternateFill
		if i%2 == 0 {
			fill = pdfColor{255, 255, 255}
		}
		r.pdf.SetFillColor(fill.R, fill.G, fill.B)
		r.pdf.SetTextColor(0, 0, 0)
		for j, cell := range row {
			align := "R"
			if j == 0 {
				align = "L"
			}
			r.pdf.CellFormat(widths[j], pdfRowH, r.tr(cell), "1", 0, align, true, 0, "")
		}
		r.pdf.Ln(-1)
	}
}

func (r *pdfReport) tableHeader(header []string, widths []float64) {
	r.pdf.SetFont(pdfFont, "B", pdfFontSize)
	r.pdf.SetFillColor(headerFill.R, headerFill.G, headerFill.B)
	r.pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		r.pdf.CellFormat(widths[i], pdfRowH+1, r.tr(h), "1", 0, "C", true, 0, "")
	}
	r.pdf.Ln(-1)
}
