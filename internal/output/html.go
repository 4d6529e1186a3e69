package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sitesiege/sitesiege/internal/clientmetrics"
	"github.com/sitesiege/sitesiege/internal/metrics"
	"github.com/sitesiege/sitesiege/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           metrics.Report
	History          []DataPoint
	ThresholdSummary *ThresholdSummary
	HistoryJSON      string
	StatusRows       []metrics.StatusBucket
	Metadata         ReportMetadata
}

// ReportMetadata describes how the run was configured.
type ReportMetadata struct {
	TargetURL   string
	Mode        string
	Stop        string
	Concurrency int
	Discovery   *clientmetrics.Snapshot
}

// ThresholdSummary aggregates threshold results for display.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []ThresholdResultJSON
}

// ThresholdResultJSON is one evaluated threshold.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// SummarizeThresholds converts evaluator results for reports. It returns nil
// when there are no results.
func SummarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, report metrics.Report, history []DataPoint, thresholdResults []threshold.Result, metadata ReportMetadata) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           report,
		History:          history,
		ThresholdSummary: SummarizeThresholds(thresholdResults),
		HistoryJSON:      string(historyJSON),
		StatusRows:       metrics.FlattenStatusBuckets(report.StatusBuckets),
		Metadata:         metadata,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Microsecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			return percent(float64(part), total)
		},
		"formatShare": func(part int, total int64) string {
			return percent(float64(part), total)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

func percent(part float64, total int64) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", part/float64(total)*100)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>sitesiege Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>sitesiege Report</h1>
            {{if .Metadata.TargetURL}}
            <div class="meta" style="margin-top: 5px;">Target: <a href="{{.Metadata.TargetURL}}" style="color: white; text-decoration: underline;">{{.Metadata.TargetURL}}</a></div>
            {{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Elapsed: {{formatDuration .Report.Elapsed}}{{if .Report.RunID}} | Run: {{.Report.RunID}}{{end}}</div>
            {{if .Metadata.Mode}}
            <div class="meta">Mode: {{.Metadata.Mode}} | Stop: {{.Metadata.Stop}} | Workers: {{.Metadata.Concurrency}}</div>
            {{end}}
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Transactions</h3>
                    <div class="value">{{.Report.Transactions}}</div>
                    <div class="subvalue">{{formatFloat .Report.DataTransferredMB}} MB transferred</div>
                </div>
                <div class="card success">
                    <h3>Availability</h3>
                    <div class="value">{{formatFloat .Report.Availability}}%</div>
                    <div class="subvalue">{{.Report.Successful}} successful</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Report.Failed}}</div>
                    <div class="subvalue">{{formatPercent .Report.Failed .Report.Transactions}}%</div>
                </div>
                <div class="card">
                    <h3>Transaction rate</h3>
                    <div class="value">{{formatFloat .Report.TransactionRate}}/s</div>
                    <div class="subvalue">{{formatFloat .Report.ThroughputMBps}} MB/s, concurrency {{formatFloat .Report.Concurrency}}</div>
                </div>
            </div>

            {{if .History}}
            <div class="section">
                <h2>Performance Over Time</h2>
                <div class="chart-container">
                    <h3>Transactions Per Second</h3>
                    <div id="rate-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <h3>Response Time (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <div class="section">
                <h2>Response Times</h2>
                <div class="latency-grid">
                    <div class="latency-item"><div class="label">Shortest</div><div class="value">{{formatDuration .Report.Shortest}}</div></div>
                    <div class="latency-item"><div class="label">Longest</div><div class="value">{{formatDuration .Report.Longest}}</div></div>
                    <div class="latency-item"><div class="label">Average</div><div class="value">{{formatDuration .Report.AvgResponseTime}}</div></div>
                    <div class="latency-item"><div class="label">P50</div><div class="value">{{formatDuration .Report.P50}}</div></div>
                    <div class="latency-item"><div class="label">P90</div><div class="value">{{formatDuration .Report.P90}}</div></div>
                    <div class="latency-item"><div class="label">P99</div><div class="value">{{formatDuration .Report.P99}}</div></div>
                </div>
            </div>

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">PASS</span>{{else}}<span class="badge badge-error">FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .StatusRows}}
            <div class="section">
                <h2>Status Codes</h2>
                <table>
                    <thead><tr><th>Origin</th><th>Status</th><th>Count</th><th>Share</th></tr></thead>
                    <tbody>
                        {{range .StatusRows}}
                        <tr>
                            <td><strong>{{.Origin}}</strong></td>
                            <td>{{.Code}}</td>
                            <td>{{.Count}}</td>
                            <td>{{formatShare .Count $.Report.Transactions}}%</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.Errors}}
            <div class="section">
                <h2>Errors</h2>
                <table>
                    <thead><tr><th>Error</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range $name, $count := .Report.Errors}}
                        <tr><td>{{$name}}</td><td>{{$count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{with .Metadata.Discovery}}
            <div class="section">
                <h2>Browser Discovery</h2>
                <table>
                    <tbody>
                        <tr><td>Sessions</td><td>{{.Sessions}} ({{.Restarts}} restarts)</td></tr>
                        <tr><td>Renders</td><td>{{.Renders}} ok, {{.Failures}} failed</td></tr>
                        <tr><td>Average render</td><td>{{formatFloat .AvgRenderMs}} ms</td></tr>
                        <tr><td>Links / assets found</td><td>{{.LinksFound}} / {{.AssetsFound}}</td></tr>
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .History}}
    <script>
        const history = JSON.parse({{.HistoryJSON}});

        if (history && history.length > 0) {
            const startTime = new Date(history[0].timestamp).getTime();
            const timestamps = history.map(d => (new Date(d.timestamp).getTime() - startTime) / 1000);

            new uPlot({
                title: "Transactions Per Second",
                width: document.getElementById('rate-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "trans/sec", stroke: "#667eea", fill: "rgba(102, 126, 234, 0.1)", width: 2 }
                ],
                axes: [{ label: "Time (seconds)" }, { label: "Transactions/sec" }]
            }, [timestamps, history.map(d => d.transaction_rate)], document.getElementById('rate-chart'));

            new uPlot({
                title: "Response Time",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "P50", stroke: "#10b981", width: 2 },
                    { label: "P90", stroke: "#f59e0b", width: 2 },
                    { label: "P99", stroke: "#ef4444", width: 2 }
                ],
                axes: [{ label: "Time (seconds)" }, { label: "Latency (ms)" }]
            }, [timestamps, history.map(d => d.p50_ms), history.map(d => d.p90_ms), history.map(d => d.p99_ms)], document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
