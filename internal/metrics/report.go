package metrics

import "time"

// Report is the aggregate view of a run.
type Report struct {
	RunID             string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Final             bool          `json:"final" yaml:"final"`
	Transactions      int64         `json:"transactions" yaml:"transactions"`
	Successful        int64         `json:"successful_transactions" yaml:"successful_transactions"`
	Failed            int64         `json:"failed_transactions" yaml:"failed_transactions"`
	Availability      float64       `json:"availability_pct" yaml:"availability_pct"`
	Bytes             int64         `json:"bytes" yaml:"bytes"`
	DataTransferredMB float64       `json:"data_transferred_mb" yaml:"data_transferred_mb"`
	TransactionRate   float64       `json:"transaction_rate" yaml:"transaction_rate"`
	ThroughputMBps    float64       `json:"throughput_mb_per_sec" yaml:"throughput_mb_per_sec"`
	Concurrency       float64       `json:"concurrency" yaml:"concurrency"`
	Elapsed           time.Duration `json:"-" yaml:"-"`
	AvgResponseTime   time.Duration `json:"-" yaml:"-"`
	Longest           time.Duration `json:"-" yaml:"-"`
	Shortest          time.Duration `json:"-" yaml:"-"`
	P50               time.Duration `json:"-" yaml:"-"`
	P90               time.Duration `json:"-" yaml:"-"`
	P99               time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	ElapsedMs         float64 `json:"elapsed_ms" yaml:"elapsed_ms"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms" yaml:"avg_response_time_ms"`
	LongestMs         float64 `json:"longest_ms" yaml:"longest_ms"`
	ShortestMs        float64 `json:"shortest_ms" yaml:"shortest_ms"`
	P50Ms             float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms             float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms             float64 `json:"p99_ms" yaml:"p99_ms"`

	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
	Errors        map[string]int            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *Report) fillMillis() {
	r.ElapsedMs = millis(r.Elapsed)
	r.AvgResponseTimeMs = millis(r.AvgResponseTime)
	r.LongestMs = millis(r.Longest)
	r.ShortestMs = millis(r.Shortest)
	r.P50Ms = millis(r.P50)
	r.P90Ms = millis(r.P90)
	r.P99Ms = millis(r.P99)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
