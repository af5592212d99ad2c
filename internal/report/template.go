package report

// ReportTemplate is the HTML deal report, rendered from ReportData.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #1f6feb;
    --green: #2f9e44;
    --red: #e03131;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.5;
    max-width: 960px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; color: var(--accent); }
  h2 { font-size: 1.15rem; margin: 24px 0 10px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { display: flex; justify-content: space-between; border-bottom: 3px solid var(--accent); padding-bottom: 12px; margin-bottom: 16px; }
  .header-right { text-align: right; }
  .facts { display: grid; grid-template-columns: repeat(auto-fill, minmax(150px, 1fr)); gap: 8px; background: var(--section-bg); padding: 12px; border-radius: 8px; }
  .fact .label { font-size: 0.72rem; color: var(--muted); text-transform: uppercase; }
  .fact .value { font-weight: 600; }
  .score { display: flex; align-items: center; gap: 20px; margin: 16px 0; }
  table { width: 100%; border-collapse: collapse; font-size: 0.85rem; margin: 8px 0; }
  th { background: var(--section-bg); text-align: left; padding: 6px 8px; border-bottom: 2px solid var(--border); }
  td { padding: 5px 8px; border-bottom: 1px solid var(--border); }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  .rating { font-weight: 600; }
  .rating.excellent { color: var(--green); }
  .rating.good { color: #74b816; }
  .rating.fair { color: #f59f00; }
  .rating.poor { color: var(--red); }
  .rating.unknown { color: var(--muted); }
  .ok { color: var(--green); font-weight: 600; }
  .bad { color: var(--red); font-weight: 600; }
  .warnings { background: #fff9db; border-left: 4px solid #f59f00; padding: 10px 14px; margin: 16px 0; }
  .chart { margin: 12px 0; }
  .chart svg { max-width: 100%; height: auto; }
  footer { margin-top: 32px; border-top: 1px solid var(--border); padding-top: 8px; }
  @media print { body { max-width: none; } h2 { page-break-after: avoid; } }
</style>
</head>
<body>

<div class="header">
  <div>
    <h1>{{.DealName}}</h1>
    <div class="muted">{{.Address}} &middot; {{.Property}} &middot; {{.Status}}</div>
  </div>
  <div class="header-right muted">
    <div>{{.DealID}}</div>
    <div>{{.GeneratedAt}}</div>
    <div>{{.Author}}</div>
  </div>
</div>

<div class="facts">
  <div class="fact"><div class="label">Purchase price</div><div class="value">{{.PurchasePrice}}</div></div>
  <div class="fact"><div class="label">Cash needed</div><div class="value">{{.TotalCash}}</div></div>
  <div class="fact"><div class="label">Financing</div><div class="value">{{.FinancingMode}}</div></div>
  {{if .LoanAmount}}
  <div class="fact"><div class="label">Loan</div><div class="value">{{.LoanAmount}}</div></div>
  <div class="fact"><div class="label">Rate</div><div class="value">{{.InterestRate}}</div></div>
  <div class="fact"><div class="label">Monthly payment</div><div class="value">{{.MonthlyPayment}}</div></div>
  {{end}}
  {{if .Points}}<div class="fact"><div class="label">Points</div><div class="value">{{.Points}}</div></div>{{end}}
</div>

<div class="score">
  <div>{{.ScoreGauge}}</div>
  <div>
    <div class="muted">Deal score, {{.Profile}} profile</div>
    <div style="font-size:2rem;font-weight:700;color:{{.ScoreColor}}">{{.Score}}</div>
  </div>
</div>

{{if .Warnings}}
<div class="warnings">
  {{range .Warnings}}<div>{{.}}</div>{{end}}
</div>
{{end}}

{{if and .ShowFinancing .Tracks}}
<h2>Mortgage tracks</h2>
<table>
  <tr><th>Track</th><th>Type</th><th>Principal</th><th>Share</th><th>Rate</th><th>Term</th><th>Method</th><th>Payment</th></tr>
  {{range .Tracks}}
  <tr>
    <td>{{.Name}}<div class="muted">{{.Extras}}</div></td>
    <td>{{.Type}}<div class="muted" dir="rtl">{{.HebrewName}}</div></td>
    <td class="num">{{.Principal}}</td>
    <td class="num">{{.Share}}</td>
    <td class="num">{{.Rate}}</td>
    <td class="num">{{.Term}}</td>
    <td>{{.Method}}</td>
    <td class="num">{{.Payment}}</td>
  </tr>
  {{end}}
</table>
{{with .Compliance}}{{if .Applicable}}
<p>Composition: fixed {{.Fixed}}, prime {{.Prime}}, CPI-linked {{.Linked}}:
  {{if .Compliant}}<span class="ok">compliant</span>{{else}}<span class="bad">not compliant</span>{{end}}</p>
{{range .Violations}}<p class="bad">{{.}}</p>{{end}}
{{end}}{{end}}
{{end}}

{{if .ShowMetrics}}
<h2>Metrics</h2>
<table>
  <tr><th>Metric</th><th>Value</th><th>Rating</th><th></th></tr>
  {{range .Metrics}}
  <tr><td>{{.Label}}</td><td class="num">{{.Value}}</td><td class="rating {{.RatingClass}}">{{.Rating}}</td><td class="muted">{{.Note}}</td></tr>
  {{end}}
</table>
<div class="chart">{{.MetricsChart}}</div>
{{end}}

{{if .ShowProForma}}
<h2>Pro-forma</h2>
<div class="chart">{{.EquityChart}}</div>
<table>
  <tr><th>Year</th><th>EGI</th><th>OpEx</th><th>NOI</th><th>Debt service</th><th>Cash flow</th><th>Value</th><th>Loan</th><th>Equity</th><th>ROE</th></tr>
  {{range .ProForma}}
  <tr>
    <td>{{.Year}}</td><td class="num">{{.EGI}}</td><td class="num">{{.OpEx}}</td><td class="num">{{.NOI}}</td>
    <td class="num">{{.DebtService}}</td><td class="num">{{.CashFlow}}</td><td class="num">{{.PropertyValue}}</td>
    <td class="num">{{.LoanBalance}}</td><td class="num">{{.Equity}}</td><td class="num">{{.ROE}}</td>
  </tr>
  {{end}}
</table>
{{end}}

{{if .ShowScenarios}}
<h2>Scenarios</h2>
<table>
  <tr><th>Scenario</th><th>IRR</th><th>Cash-on-cash</th><th>DSCR</th><th>Equity multiple</th><th>Cash flow</th><th>Score</th></tr>
  {{range .Scenarios}}
  {{if .Error}}
  <tr><td>{{.Name}}</td><td colspan="6" class="bad">{{.Error}}</td></tr>
  {{else}}
  <tr><td>{{.Name}}</td><td class="num">{{.IRR}}</td><td class="num">{{.CoC}}</td><td class="num">{{.DSCR}}</td><td class="num">{{.Multiple}}</td><td class="num">{{.CashFlow}}</td><td class="num">{{.Score}}</td></tr>
  {{end}}
  {{end}}
</table>
{{end}}

{{if .ShowStress}}
<h2>Stress test</h2>
<table>
  {{range .Stress}}<tr><td>{{.Label}}</td><td class="num">{{.Value}}</td></tr>{{end}}
</table>
{{end}}

<footer class="muted">
  Projections rest on the stated assumptions; they are not a forecast.
</footer>
</body>
</html>
`
