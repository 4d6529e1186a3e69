package runner

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitesiege/sitesiege/internal/httpclient"
	"github.com/sitesiege/sitesiege/internal/metrics"
	"github.com/sitesiege/sitesiege/internal/source"
	"github.com/sitesiege/sitesiege/internal/target"
)

// DefaultDelay is the pause between iterations when none is configured.
const DefaultDelay = time.Second

// Fetcher executes one request.
type Fetcher interface {
	Fetch(ctx context.Context, u target.URL) (*httpclient.Response, error)
}

// Recorder receives one outcome per completed request.
type Recorder interface {
	Record(metrics.Outcome) error
}

// Frontier is the visit-once queue fed by link expansion.
type Frontier interface {
	Push(target.URL) bool
	Claim(target.URL) bool
	Hold() func()
}

// Submitter hands pages to the browser discovery pool.
type Submitter interface {
	Submit(target.URL) bool
}

// StopKind selects how workers decide to finish.
type StopKind int

const (
	// StopDuration ends every worker at a shared deadline.
	StopDuration StopKind = iota + 1
	// StopRepetitions ends each worker after its own iteration count.
	StopRepetitions
	// StopExhausted ends workers when the source is exhausted.
	StopExhausted
)

func (k StopKind) String() string {
	switch k {
	case StopDuration:
		return "duration"
	case StopRepetitions:
		return "repetitions"
	case StopExhausted:
		return "frontier-exhausted"
	}
	return "unknown"
}

// StopCondition governs when a run ends. Exactly one kind applies.
type StopCondition struct {
	Kind        StopKind
	Duration    time.Duration
	Repetitions int
}

// ForDuration stops at a shared deadline d after start.
func ForDuration(d time.Duration) StopCondition {
	return StopCondition{Kind: StopDuration, Duration: d}
}

// ForRepetitions stops each worker after n iterations.
func ForRepetitions(n int) StopCondition {
	return StopCondition{Kind: StopRepetitions, Repetitions: n}
}

// UntilExhausted stops when the source has nothing left.
func UntilExhausted() StopCondition {
	return StopCondition{Kind: StopExhausted}
}

// Expansion selects what happens with links found on fetched pages.
type Expansion int

const (
	ExpandNone Expansion = iota
	// ExpandFollowLinks pushes same-origin links to the frontier.
	ExpandFollowLinks
	// ExpandJS submits pages to the browser discovery pool.
	ExpandJS
)

// Options configure the Runner.
type Options struct {
	Concurrency   int           // number of worker goroutines, fixed for the run
	Source        source.Source // URL stream (required)
	Stop          StopCondition
	Delay         time.Duration // pause between iterations; negative means DefaultDelay
	RatePerSecond int           // global request pacing (0 means unlimited)
	Fetcher       Fetcher       // request executor (required)
	Recorder      Recorder      // outcome sink (required)

	Expansion Expansion
	Frontier  Frontier  // required for ExpandFollowLinks, ExpandJS and VisitOnce
	Submitter Submitter // required for ExpandJS
	// VisitOnce claims inline assets in the frontier so each is fetched once.
	VisitOnce bool

	LoadAssets   bool
	AssetWorkers int // inline asset fetch pool size (0 means 8)

	// OnOutcome is called after each outcome is recorded.
	OnOutcome func(metrics.Outcome)
	Logger    *slog.Logger

	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Delay < 0 {
		o.Delay = DefaultDelay
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.AssetWorkers <= 0 {
		o.AssetWorkers = 8
	}
	if o.Stop.Kind == 0 {
		o.Stop = UntilExhausted()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
