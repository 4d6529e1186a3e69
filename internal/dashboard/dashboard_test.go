package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/sitesiege/sitesiege/internal/clientmetrics"
	"github.com/sitesiege/sitesiege/internal/metrics"
)

func TestGaugePercent(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{0, 0},
		{25, 25},
		{100, 100},
		{450, 100},
	}
	for _, tt := range tests {
		if got := gaugePercent(tt.rate); got != tt.want {
			t.Errorf("gaugePercent(%v) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestFormatStatusListRows(t *testing.T) {
	rows := formatStatusListRows(map[string]map[string]int{
		"page":  {"200": 60, "503": 10},
		"asset": {"200": 30},
	}, 100)

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if !strings.Contains(rows[0], "PAGE 200") || !strings.Contains(rows[0], "60") || !strings.Contains(rows[0], "60.0%") {
		t.Errorf("rows[0] = %q", rows[0])
	}
	if !strings.Contains(rows[0], "fg:green") {
		t.Errorf("2xx rows should be green: %q", rows[0])
	}
	if !strings.Contains(rows[2], "PAGE 503") || !strings.Contains(rows[2], "fg:red") {
		t.Errorf("rows[2] = %q", rows[2])
	}
}

func TestFormatStatusListRowsEmpty(t *testing.T) {
	rows := formatStatusListRows(nil, 0)
	if len(rows) != 1 || rows[0] != "Awaiting data" {
		t.Errorf("rows = %v", rows)
	}
}

func TestFormatStatusListRowsLimit(t *testing.T) {
	buckets := map[string]map[string]int{"page": {}}
	for i := 0; i < 15; i++ {
		buckets["page"][string(rune('A'+i))] = i + 1
	}
	if rows := formatStatusListRows(buckets, 120); len(rows) != 10 {
		t.Errorf("len(rows) = %d, want 10", len(rows))
	}
}

func TestFormatErrorRows(t *testing.T) {
	rows := formatErrorRows(map[string]int{"Timeout": 2, "HTTP 500": 7, "Connection": 2})
	want := []string{"HTTP 500", "Connection", "Timeout"}
	if len(rows) != len(want) {
		t.Fatalf("len(rows) = %d, want %d", len(rows), len(want))
	}
	for i, name := range want {
		if !strings.Contains(rows[i], name) {
			t.Errorf("rows[%d] = %q, want it to contain %q", i, rows[i], name)
		}
	}

	if empty := formatErrorRows(nil); !strings.Contains(empty[0], "No failures") {
		t.Errorf("empty rows = %v", empty)
	}
}

func TestFormatMetrics(t *testing.T) {
	text := formatMetrics(metrics.Report{
		Transactions:    10,
		Successful:      9,
		Failed:          1,
		TransactionRate: 4.5,
	})
	for _, want := range []string{"Transactions:      10", "Successful:        9", "Failed:            1", "4.50/s"} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatDiscovery(t *testing.T) {
	text := formatDiscovery(clientmetrics.Snapshot{
		Sessions:    4,
		Restarts:    1,
		Renders:     20,
		Failures:    2,
		LinksFound:  80,
		AssetsFound: 150,
		AvgRenderMs: 640,
		DOMBytes:    1 << 20,
	})
	for _, want := range []string{"Sessions: 4 (1 restarts)", "Renders: 20 ok, 2 failed", "640ms", "Links found: 80", "Assets found: 150", "DOM: 1.00 MB"} {
		if !strings.Contains(text, want) {
			t.Errorf("discovery text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatTestParams(t *testing.T) {
	tests := []struct {
		name     string
		cfg      TestConfig
		contains []string
		excludes []string
	}{
		{
			name:     "minimal",
			cfg:      TestConfig{},
			contains: []string{"Rate: unlimited"},
			excludes: []string{"Mode:", "Workers:", "Reps:"},
		},
		{
			name: "time bound crawl",
			cfg: TestConfig{
				Mode:        "follow-links",
				Concurrency: 25,
				Duration:    time.Minute,
				Delay:       time.Second,
				Rate:        50,
				Assets:      true,
			},
			contains: []string{"Mode: follow-links", "Workers: 25", "Rate: 50/s", "Delay: <=1s", "Duration: 1m0s", "Assets: on"},
			excludes: []string{"Reps:", "Config:"},
		},
		{
			name:     "repetitions with config",
			cfg:      TestConfig{Repetitions: 10, Timeout: 5 * time.Second, ConfigFile: "siege.yaml"},
			contains: []string{"Reps: 10", "Timeout: 5s", "Config: siege.yaml"},
			excludes: []string{"Duration:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTestParams(tt.cfg)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("formatTestParams() = %q, missing %q", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("formatTestParams() = %q, should not contain %q", got, unwanted)
				}
			}
		})
	}
}
