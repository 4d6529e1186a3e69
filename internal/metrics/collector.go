package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// ErrFinalized is returned by Record once Finalize has started.
var ErrFinalized = errors.New("metrics: collector already finalized")

// Outcome is the result of one completed request attempt.
type Outcome struct {
	StatusCode int           // 0 on transport failure
	Proto      string        // e.g. HTTP/1.1
	Bytes      int64         // bytes received
	Elapsed    time.Duration // request round trip
	Method     string
	URL        string
	Origin     string
	Timestamp  time.Time
	Err        error
}

// Success reports whether the request completed with a non-error status.
func (o Outcome) Success() bool {
	return o.StatusCode >= 100 && o.StatusCode < 400
}

// Collector accumulates outcomes in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	count        int64
	successes    int64
	failures     int64
	bytes        int64
	sumElapsed   time.Duration
	minElapsed   time.Duration
	maxElapsed   time.Duration
	statusCodes  map[string]map[string]int64
	errorsByType map[string]int64
	start        time.Time
	end          time.Time
	now          func() time.Time

	finalized bool
	once      sync.Once
	report    Report
}

// NewCollector returns a collector whose run clock starts now.
func NewCollector() *Collector {
	// Track latencies from 1µs up to 10 minutes with 3 significant figures.
	h := hdrhistogram.New(1, 600_000_000, 3)
	c := &Collector{
		hist:         h,
		statusCodes:  make(map[string]map[string]int64),
		errorsByType: make(map[string]int64),
		now:          time.Now,
	}
	c.start = c.now()
	return c
}

// Start resets the run clock. Call it right before workers are launched so
// resolution and browser start-up time are excluded from rates.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.end = time.Time{}
}

// Stop freezes the run clock. Work done after the last request, such as
// draining the discovery pool, is then excluded from elapsed time and rates.
// Only the first call has an effect.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.end.IsZero() {
		c.end = c.now()
	}
}

func (c *Collector) elapsedLocked() time.Duration {
	if !c.end.IsZero() {
		return c.end.Sub(c.start)
	}
	return c.now().Sub(c.start)
}

// Record adds one outcome. It never drops or double-counts an outcome and
// returns ErrFinalized once the report has been produced.
func (c *Collector) Record(o Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return ErrFinalized
	}

	latency := o.Elapsed
	if latency < 0 {
		latency = 0
	}
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}

	c.count++
	c.sumElapsed += latency
	if c.count == 1 || latency < c.minElapsed {
		c.minElapsed = latency
	}
	if latency > c.maxElapsed {
		c.maxElapsed = latency
	}
	if o.Bytes > 0 {
		c.bytes += o.Bytes
	}

	origin := o.Origin
	if origin == "" {
		origin = "page"
	}
	code := strconv.Itoa(o.StatusCode)
	if o.StatusCode == 0 {
		code = "transport"
	}
	codes, ok := c.statusCodes[origin]
	if !ok {
		codes = make(map[string]int64)
		c.statusCodes[origin] = codes
	}
	codes[code]++

	if o.Success() {
		c.successes++
		return nil
	}
	c.failures++
	c.errorsByType[ClassifyError(o)]++
	return nil
}

// Finalize freezes the collector and computes the report. It is safe to call
// more than once; every call returns the first report.
func (c *Collector) Finalize() Report {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.finalized = true
		c.report = c.buildLocked(c.elapsedLocked())
		c.report.Final = true
	})
	return c.report
}

// Finalized reports whether Finalize has run.
func (c *Collector) Finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized
}

// Snapshot returns live statistics without finalizing.
func (c *Collector) Snapshot() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return c.report
	}
	return c.buildLocked(c.elapsedLocked())
}

func (c *Collector) buildLocked(elapsed time.Duration) Report {
	if elapsed < 0 {
		elapsed = 0
	}
	r := Report{
		Transactions: c.count,
		Successful:   c.successes,
		Failed:       c.failures,
		Bytes:        c.bytes,
		Elapsed:      elapsed,
		Longest:      c.maxElapsed,
		Shortest:     c.minElapsed,
	}

	seconds := elapsed.Seconds()
	if c.count > 0 {
		r.Availability = float64(c.successes) * 100 / float64(c.count)
		r.AvgResponseTime = time.Duration(int64(c.sumElapsed) / c.count)
	}
	if c.count > 0 && seconds > 0 {
		r.TransactionRate = float64(c.count) / seconds
		r.Concurrency = float64(c.count) * r.AvgResponseTime.Seconds() / seconds
	}
	if seconds > 0 {
		r.ThroughputMBps = float64(c.bytes) / seconds / 1e6
	}
	r.DataTransferredMB = float64(c.bytes) / 1e6

	if c.hist.TotalCount() > 0 {
		r.P50 = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		r.P90 = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		r.P99 = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	if len(c.statusCodes) > 0 {
		r.StatusBuckets = make(map[string]map[string]int, len(c.statusCodes))
		for origin, codes := range c.statusCodes {
			inner := make(map[string]int, len(codes))
			for code, n := range codes {
				inner[code] = int(n)
			}
			r.StatusBuckets[origin] = inner
		}
	}
	if len(c.errorsByType) > 0 {
		r.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			r.Errors[k] = int(v)
		}
	}
	r.fillMillis()
	return r
}
