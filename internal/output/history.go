package output

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitesiege/sitesiege/internal/metrics"
)

// DataPoint is one sample of the live statistics.
type DataPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	Transactions    int64     `json:"transactions"`
	Failed          int64     `json:"failed"`
	TransactionRate float64   `json:"transaction_rate"`
	AvgMs           float64   `json:"avg_ms"`
	P50Ms           float64   `json:"p50_ms"`
	P90Ms           float64   `json:"p90_ms"`
	P99Ms           float64   `json:"p99_ms"`
}

// Sampler snapshots a collector at a fixed interval for the HTML charts.
type Sampler struct {
	collector *metrics.Collector
	interval  time.Duration

	mu      sync.Mutex
	points  []DataPoint
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewSampler returns a sampler that reads collector every interval.
func NewSampler(collector *metrics.Collector, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		collector: collector,
		interval:  interval,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins sampling in the background.
func (s *Sampler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				s.sample(now)
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and returns the collected points.
func (s *Sampler) Stop() []DataPoint {
	s.once.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.stopped
		}
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DataPoint(nil), s.points...)
}

func (s *Sampler) sample(now time.Time) {
	r := s.collector.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, DataPoint{
		Timestamp:       now,
		Transactions:    r.Transactions,
		Failed:          r.Failed,
		TransactionRate: r.TransactionRate,
		AvgMs:           r.AvgResponseTimeMs,
		P50Ms:           r.P50Ms,
		P90Ms:           r.P90Ms,
		P99Ms:           r.P99Ms,
	})
}
