// Package dashboard renders a live terminal view of a running siege.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/sitesiege/sitesiege/internal/clientmetrics"
	"github.com/sitesiege/sitesiege/internal/metrics"
)

// TestConfig holds run parameters for display.
type TestConfig struct {
	TargetURL   string        // Seed or single URL
	Mode        string        // Run mode name
	Concurrency int           // Number of concurrent workers
	Duration    time.Duration // Run duration (0 = not time bound)
	Repetitions int           // Per-worker repetitions (0 = not repetition bound)
	Delay       time.Duration // Max random delay between requests
	Rate        int           // Requests per second (0 = unlimited)
	Timeout     time.Duration // Request timeout
	Assets      bool          // Inline resources fetched
	ConfigFile  string        // Path to config file if used
}

// Dashboard renders a live terminal UI for siege metrics.
type Dashboard struct {
	collector    *metrics.Collector
	discovery    func() clientmetrics.Snapshot
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rateGauge      *widgets.Gauge
	statusList     *widgets.List
	errorList      *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	discoveryPara  *widgets.Paragraph
	latencyHistory []float64
	testConfig     TestConfig
}

// New initializes the terminal and builds the widgets. discovery may be nil
// when no browser pool is running.
func New(collector *metrics.Collector, cfg TestConfig, discovery func() clientmetrics.Snapshot, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		discovery:      discovery,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		testConfig:     cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Response time (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Response Time"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Response Time Stats"
	d.latencyPara.Text = "Shortest: 0ms\nAverage: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.rateGauge = widgets.NewGauge()
	d.rateGauge.Title = "Transaction Rate"
	d.rateGauge.Percent = 0
	d.rateGauge.BarColor = ui.ColorBlue
	d.rateGauge.BorderStyle.Fg = ui.ColorCyan
	d.rateGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Siege"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Transactions"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	d.discoveryPara = widgets.NewParagraph()
	d.discoveryPara.Title = "Browser Discovery"
	d.discoveryPara.Text = "Browser discovery disabled"
	d.discoveryPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.discoveryPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.20,
			ui.NewCol(0.5, d.rateGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.12,
			ui.NewCol(1.0, d.discoveryPara),
		),
		ui.NewRow(0.28,
			ui.NewCol(0.5, d.statusList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop cancels the context once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.collector.Snapshot()

	if r.Transactions > 0 {
		d.latencyHistory = append(d.latencyHistory, r.AvgResponseTimeMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Response Time | Current: %.2fms | Shortest: %.2fms | Longest: %.2fms",
			r.AvgResponseTimeMs,
			r.ShortestMs,
			r.LongestMs,
		)
	}

	d.rateGauge.Percent = gaugePercent(r.TransactionRate)
	d.rateGauge.Label = fmt.Sprintf("%.1f trans/sec", r.TransactionRate)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Transactions: %d | Availability: %.1f%%",
		d.testConfig.TargetURL,
		formatTestParams(d.testConfig),
		r.Elapsed.Round(time.Second),
		r.Transactions,
		r.Availability,
	)

	d.metricsPara.Text = formatMetrics(r)

	d.latencyPara.Text = fmt.Sprintf(
		"Shortest: %.2fms\nAverage:  %.2fms\nP50:      %.2fms\nP90:      %.2fms\nP99:      %.2fms",
		r.ShortestMs,
		r.AvgResponseTimeMs,
		r.P50Ms,
		r.P90Ms,
		r.P99Ms,
	)

	d.statusList.Rows = formatStatusListRows(r.StatusBuckets, r.Transactions)
	d.errorList.Rows = formatErrorRows(r.Errors)

	if d.discovery != nil {
		d.discoveryPara.Text = formatDiscovery(d.discovery())
	}
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// gaugePercent scales rate against a floor of 100/s.
func gaugePercent(rate float64) int {
	max := 100.0
	if rate > max {
		max = rate
	}
	pct := int((rate / max) * 100)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatMetrics(r metrics.Report) string {
	return fmt.Sprintf(
		"Transactions:      %d\nSuccessful:        %d\nFailed:            %d\nTransaction rate:  %.2f/s\nThroughput:        %.2f MB/s\nData transferred:  %.2f MB\nConcurrency:       %.2f",
		r.Transactions,
		r.Successful,
		r.Failed,
		r.TransactionRate,
		r.ThroughputMBps,
		r.DataTransferredMB,
		r.Concurrency,
	)
}

func formatStatusListRows(buckets map[string]map[string]int, total int64) []string {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		return []string{"Awaiting data"}
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		share := 0.0
		if total > 0 {
			share = float64(row.Count) / float64(total) * 100
		}
		color := "green"
		if code := row.Code; code == "" || code[0] >= '4' {
			color = "red"
		}
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:%s) %d | %5.1f%%", strings.ToUpper(row.Origin), row.Code, color, row.Count, share))
	}
	return formatted
}

func formatErrorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if errs[names[i]] == errs[names[j]] {
			return names[i] < names[j]
		}
		return errs[names[i]] > errs[names[j]]
	})
	if len(names) > 10 {
		names = names[:10]
	}
	rows := make([]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", name, errs[name]))
	}
	return rows
}

func formatDiscovery(s clientmetrics.Snapshot) string {
	return fmt.Sprintf(
		"Sessions: %d (%d restarts) | Renders: %d ok, %d failed | Avg render: %.0fms\nLinks found: %d | Assets found: %d | DOM: %.2f MB",
		s.Sessions,
		s.Restarts,
		s.Renders,
		s.Failures,
		s.AvgRenderMs,
		s.LinksFound,
		s.AssetsFound,
		float64(s.DOMBytes)/(1<<20),
	)
}

func formatTestParams(cfg TestConfig) string {
	var parts []string

	if cfg.Mode != "" {
		parts = append(parts, fmt.Sprintf("Mode: %s", cfg.Mode))
	}
	if cfg.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", cfg.Concurrency))
	}
	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if cfg.Delay > 0 {
		parts = append(parts, fmt.Sprintf("Delay: <=%s", cfg.Delay))
	}
	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}
	if cfg.Repetitions > 0 {
		parts = append(parts, fmt.Sprintf("Reps: %d", cfg.Repetitions))
	}
	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}
	if cfg.Assets {
		parts = append(parts, "Assets: on")
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
