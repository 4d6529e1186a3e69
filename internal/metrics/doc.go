// Package metrics aggregates per-request outcomes into run statistics.
//
// Every completed request attempt produces exactly one [Outcome]. Workers hand
// outcomes to a shared [Collector], which keeps running totals under a single
// mutex together with an HDR histogram for latency percentiles:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	_ = collector.Record(metrics.Outcome{
//		StatusCode: 200,
//		Proto:      "HTTP/1.1",
//		Bytes:      5120,
//		Elapsed:    42 * time.Millisecond,
//		Method:     "GET",
//		URL:        "https://example.com/",
//	})
//
//	report := collector.Finalize()
//
// # Derived metrics
//
// [Collector.Finalize] computes availability, average response time,
// transaction rate, throughput and a Little's-law concurrency estimate. Every
// derived value is defined as 0 when no outcome was recorded or no time has
// elapsed, so a report never carries NaN or Inf.
//
// # Lifecycle
//
// Finalize runs once. Later calls return the same [Report] and any Record
// issued after finalization is rejected with [ErrFinalized]. Use
// [Collector.Snapshot] for live views such as the progress line or dashboard.
package metrics
