package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// PNG balance chart (gonum/plot)
// ════════════════════════════════════════════════════════════════════

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
)

var plotColors = []color.RGBA{
	{R: 31, G: 111, B: 235, A: 255},
	{R: 232, G: 89, B: 12, A: 255},
	{R: 47, G: 158, B: 68, A: 255},
	{R: 194, G: 37, B: 92, A: 255},
	{R: 112, G: 72, B: 232, A: 255},
}

// BalancePlot draws the outstanding balance by month: one line per track
// and, for multi-track loans, a bold total.
func BalancePlot(title string, s mortgage.Schedule) (*plot.Plot, error) {
	if len(s.Combined) == 0 {
		return nil, fmt.Errorf("no schedule to plot: cash purchase")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Balance"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	if len(s.Tracks) > 1 {
		for i, ts := range s.Tracks {
			line, err := plotter.NewLine(balancePoints(ts.Payments))
			if err != nil {
				return nil, fmt.Errorf("track %s: %w", ts.Name, err)
			}
			line.Color = plotColors[i%len(plotColors)]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(ts.Name, line)
		}
	}

	total, points, err := plotter.NewLinePoints(balancePoints(s.Combined))
	if err != nil {
		return nil, err
	}
	total.Color = color.RGBA{A: 255}
	total.Width = vg.Points(2)
	points.Shape = nil
	p.Add(total)
	p.Legend.Add("Total", total)
	return p, nil
}

func balancePoints(payments []models.Payment) plotter.XYs {
	pts := make(plotter.XYs, 0, len(payments)+1)
	if len(payments) > 0 {
		pts = append(pts, plotter.XY{X: 0, Y: payments[0].BeginningBalance})
	}
	for _, p := range payments {
		pts = append(pts, plotter.XY{X: float64(p.PaymentNumber), Y: p.EndingBalance})
	}
	return pts
}

// SaveBalancePNG renders the balance chart to a file. The format follows
// the extension (png, svg, pdf).
func SaveBalancePNG(path, title string, s mortgage.Schedule) error {
	p, err := BalancePlot(title, s)
	if err != nil {
		return err
	}
	return p.Save(plotWidth, plotHeight, path)
}

// WriteBalancePNG renders the balance chart as PNG to w.
func WriteBalancePNG(w io.Writer, title string, s mortgage.Schedule) error {
	p, err := BalancePlot(title, s)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
