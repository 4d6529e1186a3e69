package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sitesiege/sitesiege/internal/metrics"
)

// ProgressReporter rewrites a single status line from live collector stats.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	w         io.Writer

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProgressReporter redraws the line on w every interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, w io.Writer) *ProgressReporter {
	if w == nil {
		w = io.Discard
	}
	return &ProgressReporter{collector: collector, interval: interval, w: w}
}

// Start is a no-op while the reporter is already running.
func (p *ProgressReporter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go p.loop(p.stop)
}

// Stop waits for the last redraw and terminates the line.
func (p *ProgressReporter) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.wg.Wait()
	fmt.Fprintln(p.w)
}

func (p *ProgressReporter) loop(stop <-chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fmt.Fprint(p.w, progressLine(p.collector.Snapshot()))
		}
	}
}

func progressLine(r metrics.Report) string {
	return fmt.Sprintf("\rElapsed: %s  Transactions: %d  Failed: %d  Availability: %.2f%%  Rate: %.1f/s  Resp: %.3fs",
		r.Elapsed.Round(time.Second), r.Transactions, r.Failed, r.Availability, r.TransactionRate, r.AvgResponseTime.Seconds())
}
