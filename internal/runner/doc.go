// Package runner provides the execution engine for sitesiege.
//
// A [Runner] starts a fixed number of workers. Each worker repeatedly takes
// a URL from a [source.Source], waits on the optional global rate limit,
// fetches the URL, records one [metrics.Outcome] and then pauses for the
// configured delay.
//
// # Stop conditions
//
//   - [ForDuration]: every worker stops at a shared deadline
//   - [ForRepetitions]: each worker stops after its own iteration count
//   - [UntilExhausted]: workers stop when the source reports exhaustion
//
// Cancellation and the deadline are observed between requests. A request
// that has started is allowed to finish and its outcome is recorded.
//
// # Page follow-up
//
// For successful HTML pages the runner can push same-origin links to the
// frontier ([ExpandFollowLinks]), hand the page to the browser discovery
// pool ([ExpandJS]) and fetch inline assets (Options.LoadAssets). Assets
// count as regular outcomes.
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Concurrency: 10,
//		Source:      source.NewFixed(seed),
//		Stop:        runner.ForDuration(time.Minute),
//		Fetcher:     fetcher,
//		Recorder:    collector,
//	})
//	result := r.Run(ctx)
package runner
