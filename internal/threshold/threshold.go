// Package threshold evaluates pass/fail assertions against a run report.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sitesiege/sitesiege/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "response_time", "availability"
	Aggregate string  // e.g., "p99", "avg", "pct", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

type extractor func(metrics.Report) float64

// supported maps metric -> aggregate -> value. Latencies are in milliseconds.
var supported = map[string]map[string]extractor{
	"response_time": {
		"p50": func(r metrics.Report) float64 { return r.P50Ms },
		"p90": func(r metrics.Report) float64 { return r.P90Ms },
		"p99": func(r metrics.Report) float64 { return r.P99Ms },
		"avg": func(r metrics.Report) float64 { return r.AvgResponseTimeMs },
		"min": func(r metrics.Report) float64 { return r.ShortestMs },
		"max": func(r metrics.Report) float64 { return r.LongestMs },
	},
	"availability": {
		"pct": func(r metrics.Report) float64 { return r.Availability },
	},
	"failed_transactions": {
		"count": func(r metrics.Report) float64 { return float64(r.Failed) },
		"rate": func(r metrics.Report) float64 {
			if r.Transactions == 0 {
				return 0
			}
			return float64(r.Failed) / float64(r.Transactions)
		},
	},
	"transactions": {
		"count": func(r metrics.Report) float64 { return float64(r.Transactions) },
	},
	"transaction_rate": {
		"rate": func(r metrics.Report) float64 { return r.TransactionRate },
	},
	"throughput": {
		"rate": func(r metrics.Report) float64 { return r.ThroughputMBps },
	},
	"concurrency": {
		"avg": func(r metrics.Report) float64 { return r.Concurrency },
	},
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the report.
func (e *Evaluator) Evaluate(report metrics.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, report))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, report metrics.Report) Result {
	get, ok := supported[t.Metric][t.Aggregate]
	if !ok {
		return Result{
			Threshold: t,
			Message:   fmt.Sprintf("error: unsupported threshold %s:%s", t.Metric, t.Aggregate),
		}
	}

	actual := get(report)
	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "response_time:p99 < 500"         (latency percentile in ms)
// - "response_time:avg < 200"         (average latency in ms)
// - "availability:pct >= 99.5"        (successful transactions in percent)
// - "failed_transactions:rate < 0.01" (failure rate as decimal)
// - "transaction_rate:rate > 50"      (transactions per second)
// - "throughput:rate > 1.5"           (MB per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'response_time:p99 < 500')", s)
	}

	metric, aggregate, operator, valueStr := matches[1], matches[2], matches[3], matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	aggregates, ok := supported[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(sortedKeys(supported), ", "))
	}
	if _, ok := aggregates[aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(sortedKeys(aggregates), ", "))
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isValidOperator(operator string) bool {
	switch operator {
	case "<", "<=", ">", ">=", "==":
		return true
	}
	return false
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
