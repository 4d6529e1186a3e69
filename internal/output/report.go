package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sitesiege/sitesiege/internal/metrics"
	"github.com/sitesiege/sitesiege/internal/threshold"
)

// PrintReport writes the labeled summary block.
func PrintReport(w io.Writer, r metrics.Report) {
	fmt.Fprintln(w)
	if r.RunID != "" {
		fmt.Fprintf(w, "%-25s %s\n", "Run:", r.RunID)
	}
	fmt.Fprintf(w, "%-25s %12d hits\n", "Transactions:", r.Transactions)
	fmt.Fprintf(w, "%-25s %12.2f %%\n", "Availability:", r.Availability)
	fmt.Fprintf(w, "%-25s %12.2f secs\n", "Elapsed time:", r.Elapsed.Seconds())
	fmt.Fprintf(w, "%-25s %12.2f MB\n", "Data transferred:", r.DataTransferredMB)
	fmt.Fprintf(w, "%-25s %12.3f secs\n", "Response time:", r.AvgResponseTime.Seconds())
	fmt.Fprintf(w, "%-25s %12.2f trans/sec\n", "Transaction rate:", r.TransactionRate)
	fmt.Fprintf(w, "%-25s %12.2f MB/sec\n", "Throughput:", r.ThroughputMBps)
	fmt.Fprintf(w, "%-25s %12.2f\n", "Concurrency:", r.Concurrency)
	fmt.Fprintf(w, "%-25s %12d\n", "Successful transactions:", r.Successful)
	fmt.Fprintf(w, "%-25s %12d\n", "Failed transactions:", r.Failed)
	fmt.Fprintf(w, "%-25s %12.3f\n", "Longest transaction:", r.Longest.Seconds())
	fmt.Fprintf(w, "%-25s %12.3f\n", "Shortest transaction:", r.Shortest.Seconds())
	fmt.Fprintf(w, "%-25s %12.3f / %.3f / %.3f secs\n", "P50/P90/P99:", r.P50.Seconds(), r.P90.Seconds(), r.P99.Seconds())

	if len(r.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus codes:")
		writeStatusBuckets(w, r.StatusBuckets, "  ")
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeErrors(w, r.Errors, "  ")
	}
}

// PrintThresholds writes one PASS/FAIL line per evaluated threshold.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	summary := SummarizeThresholds(results)
	fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", summary.Passed, summary.Total)
	for _, r := range results {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %-32s actual %.2f\n", status, r.Threshold.Raw, r.Actual)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r metrics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r metrics.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%-14s %-10s %d\n", indent, row.Origin, row.Code, row.Count)
	}
}

func writeErrors(w io.Writer, errs map[string]int, indent string) {
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
	for _, name := range names {
		fmt.Fprintf(w, "%s%-40s %d\n", indent, name, errs[name])
	}
}
