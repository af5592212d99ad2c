// Package report renders deal analyses for people: plain text, HTML with
// inline SVG charts, PDF, plus schedule exports as CSV, Excel and PNG.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/dealscope/pkg/models"
	"github.com/seenimoa/dealscope/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Charts
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 360)
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
	BgColor      string
	GridColor    string
	TextColor    string
	FontSize     int
	Title        string

	// YFormat formats axis values; money in compact form when nil.
	YFormat func(float64) string
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       360,
		MarginTop:    40,
		MarginRight:  30,
		MarginBottom: 45,
		MarginLeft:   80,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

func (c ChartConfig) formatY(v float64) string {
	if c.YFormat != nil {
		return c.YFormat(v)
	}
	return utils.FormatMoneyCompact(v)
}

var seriesColors = []string{"#1f6feb", "#e8590c", "#2f9e44", "#c2255c", "#7048e8", "#0c8599"}

// ════════════════════════════════════════════════════════════════════
// Line Chart
// ════════════════════════════════════════════════════════════════════

// LineChartSeries is a named data series.
type LineChartSeries struct {
	Name   string
	Values []float64
	Color  string // auto-assigned if empty
}

// LineChart draws one or more series against shared X labels. The Y axis
// always includes zero so balances and equity read honestly.
func LineChart(series []LineChartSeries, labels []string, cfg ChartConfig) string {
	if len(series) == 0 {
		return emptySVG(cfg, "No data")
	}
	if cfg.Width == 0 {
		yf := cfg.YFormat
		cfg = DefaultChartConfig()
		cfg.YFormat = yf
	}

	px, py, pw, ph := cfg.plotArea()

	minVal, maxVal := 0.0, 0.0
	maxLen := 0
	for _, s := range series {
		maxLen = max(maxLen, len(s.Values))
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if maxLen < 2 {
		return emptySVG(cfg, "Not enough data points")
	}
	vRange := maxVal - minVal
	if vRange < 0.001 {
		vRange = 1
	}
	maxVal += vRange * 0.05
	vRange = maxVal - minVal

	xAt := func(i int) float64 { return float64(px) + float64(i)*float64(pw)/float64(maxLen-1) }
	yAt := func(v float64) float64 { return float64(py+ph) - (v-minVal)/vRange*float64(ph) }

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	writeFrame(&sb, cfg)

	const gridLines = 5
	for i := 0; i <= gridLines; i++ {
		val := minVal + vRange*float64(i)/gridLines
		y := yAt(val)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-6, y+4, cfg.FontSize, cfg.TextColor, escapeXML(cfg.formatY(val)))
	}
	if minVal < 0 {
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#999"/>`, px, yAt(0), px+pw, yAt(0))
	}

	for si, s := range series {
		color := s.Color
		if color == "" {
			color = seriesColors[si%len(seriesColors)]
		}
		var path []string
		for i, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			cmd := "L"
			if len(path) == 0 {
				cmd = "M"
			}
			path = append(path, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), yAt(v)))
		}
		if len(path) > 1 {
			fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`, strings.Join(path, " "), color)
		}

		ly := py + 10 + si*16
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`, px+pw-150, ly, px+pw-130, ly, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`, px+pw-125, ly+4, cfg.TextColor, escapeXML(s.Name))
	}

	if len(labels) > 0 {
		interval := max(1, maxLen/10)
		for i := 0; i < len(labels) && i < maxLen; i += interval {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
				xAt(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, escapeXML(labels[i]))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Horizontal Bar Chart
// ════════════════════════════════════════════════════════════════════

// BarItem is one bar. Display overrides the printed value.
type BarItem struct {
	Label   string
	Value   float64
	Display string
	Color   string
}

// HorizontalBarChart draws labelled bars from a shared zero line.
func HorizontalBarChart(items []BarItem, cfg ChartConfig) string {
	if len(items) == 0 {
		return emptySVG(cfg, "No data")
	}
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	cfg.MarginLeft = 140

	px, py, pw, ph := cfg.plotArea()
	pw -= 70 // room for value labels

	minVal, maxVal := 0.0, 0.0
	for _, it := range items {
		minVal = math.Min(minVal, it.Value)
		maxVal = math.Max(maxVal, it.Value)
	}
	valRange := maxVal - minVal
	if valRange < 0.001 {
		valRange = 1
	}
	zeroX := float64(px) + (-minVal/valRange)*float64(pw)

	barH := math.Min(float64(ph)/float64(len(items))*0.7, 26)
	gap := (float64(ph) - barH*float64(len(items))) / float64(len(items)+1)

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	writeFrame(&sb, cfg)
	if minVal < 0 {
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#999"/>`, zeroX, py, zeroX, py+ph)
	}

	for i, it := range items {
		by := float64(py) + gap + float64(i)*(barH+gap)
		color := it.Color
		if color == "" {
			color = "#2f9e44"
			if it.Value < 0 {
				color = "#e03131"
			}
		}
		bw := math.Abs(it.Value) / valRange * float64(pw)
		bx := zeroX
		if it.Value < 0 {
			bx = zeroX - bw
		}
		display := it.Display
		if display == "" {
			display = fmt.Sprintf("%.2f", it.Value)
		}
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`, bx, by, bw, barH, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-6, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(it.Label))
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%s</text>`,
			math.Max(bx+bw, zeroX)+5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(display))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// RatingColor maps a benchmark rating to a bar colour.
func RatingColor(r models.Rating) string {
	switch r {
	case models.RatingExcellent:
		return "#2f9e44"
	case models.RatingGood:
		return "#74b816"
	case models.RatingFair:
		return "#f59f00"
	case models.RatingPoor:
		return "#e03131"
	default:
		return "#868e96"
	}
}

// ════════════════════════════════════════════════════════════════════
// Gauge
// ════════════════════════════════════════════════════════════════════

// GaugeChart draws a semicircular 0..100 gauge, used for the deal score.
func GaugeChart(value float64, label string, width int) string {
	if width == 0 {
		width = 200
	}
	height := width/2 + 30
	cx := float64(width) / 2
	cy := float64(width)/2 - 10
	radius := float64(width)/2 - 20

	value = math.Max(0, math.Min(100, value))
	angle := math.Pi - (value/100)*math.Pi
	needleX := cx + radius*0.85*math.Cos(angle)
	needleY := cy - radius*0.85*math.Sin(angle)
	color := ScoreColor(value)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`, width, height, width, height)
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="white"/>`, width, height)
	fmt.Fprintf(&sb, `<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="#e9ecef" stroke-width="12" stroke-linecap="round"/>`,
		cx-radius, cy, radius, radius, cx+radius, cy)
	endX := cx + radius*math.Cos(angle)
	endY := cy - radius*math.Sin(angle)
	// A half circle never needs the large-arc flag.
	fmt.Fprintf(&sb, `<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="%s" stroke-width="12" stroke-linecap="round"/>`,
		cx-radius, cy, radius, radius, endX, endY, color)
	fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333" stroke-width="2"/>`, cx, cy, needleX, needleY)
	fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="5" fill="#333"/>`, cx, cy)
	fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="22" font-weight="bold" fill="%s" text-anchor="middle">%.0f</text>`, cx, cy+25, color, value)
	fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="11" fill="#666" text-anchor="middle">%s</text>`, cx, height-5, escapeXML(label))
	sb.WriteString("</svg>")
	return sb.String()
}

// ScoreColor buckets a 0..100 deal score.
func ScoreColor(score float64) string {
	switch {
	case score < 40:
		return "#e03131"
	case score < 60:
		return "#f59f00"
	case score < 75:
		return "#fab005"
	default:
		return "#2f9e44"
	}
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func writeFrame(sb *strings.Builder, cfg ChartConfig) {
	fmt.Fprintf(sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cfg.Width, cfg.Height, cfg.BgColor)
	if cfg.Title != "" {
		fmt.Fprintf(sb, `<text x="%d" y="22" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
			cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))
	}
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
