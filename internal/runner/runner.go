package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sitesiege/sitesiege/internal/extractor"
	"github.com/sitesiege/sitesiege/internal/httpclient"
	"github.com/sitesiege/sitesiege/internal/metrics"
	"github.com/sitesiege/sitesiege/internal/source"
	"github.com/sitesiege/sitesiege/internal/target"
)

// StopReason explains why a run ended.
type StopReason string

const (
	ReasonDeadline    StopReason = "deadline"
	ReasonRepetitions StopReason = "repetitions"
	ReasonExhausted   StopReason = "exhausted"
	ReasonCanceled    StopReason = "canceled"
)

// Result captures execution summary.
type Result struct {
	Iterations int64 // URLs taken from the source and visited
	Requests   int64 // outcomes recorded, assets included
	Errors     int64
	Duration   time.Duration
	Reason     StopReason
}

// Runner drains a URL source with a fixed set of workers.
type Runner struct {
	opt   Options
	pacer *pacer

	iterations atomic.Int64
	requests   atomic.Int64
	errs       atomic.Int64
	exhausted  atomic.Bool
}

// New returns a runner for opt. Missing settings take their defaults.
func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, pacer: newPacer(opt)}
}

// Validate reports missing collaborators.
func (r *Runner) Validate() error {
	var missing []string
	if r.opt.Source == nil {
		missing = append(missing, "source")
	}
	if r.opt.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if r.opt.Recorder == nil {
		missing = append(missing, "recorder")
	}
	if (r.opt.Expansion != ExpandNone || r.opt.VisitOnce) && r.opt.Frontier == nil {
		missing = append(missing, "frontier")
	}
	if r.opt.Expansion == ExpandJS && r.opt.Submitter == nil {
		missing = append(missing, "discovery pool")
	}
	if r.opt.Stop.Kind == StopDuration && r.opt.Stop.Duration <= 0 {
		missing = append(missing, "positive duration")
	}
	if r.opt.Stop.Kind == StopRepetitions && r.opt.Stop.Repetitions <= 0 {
		missing = append(missing, "positive repetition count")
	}
	if len(missing) > 0 {
		return fmt.Errorf("runner: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run blocks until every worker has stopped. Cancelling ctx stops workers
// from taking new URLs; requests already in flight complete and are
// recorded.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	if err := r.Validate(); err != nil {
		r.opt.Logger.Error("runner not started", "error", err)
		return Result{Reason: ReasonCanceled}
	}

	stopCtx := ctx
	if r.opt.Stop.Kind == StopDuration {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithDeadline(ctx, start.Add(r.opt.Stop.Duration))
		defer cancel()
	}

	var assets *ants.Pool
	if r.opt.LoadAssets {
		p, err := ants.NewPool(r.opt.AssetWorkers)
		if err != nil {
			r.opt.Logger.Warn("asset pool unavailable, fetching assets sequentially", "error", err)
		} else {
			assets = p
			defer assets.Release()
		}
	}

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, stopCtx, id, assets)
		}(i)
	}
	wg.Wait()

	return Result{
		Iterations: r.iterations.Load(),
		Requests:   r.requests.Load(),
		Errors:     r.errs.Load(),
		Duration:   time.Since(start),
		Reason:     r.reason(ctx),
	}
}

func (r *Runner) reason(ctx context.Context) StopReason {
	switch {
	case ctx.Err() != nil:
		return ReasonCanceled
	case r.exhausted.Load():
		return ReasonExhausted
	case r.opt.Stop.Kind == StopDuration:
		return ReasonDeadline
	case r.opt.Stop.Kind == StopRepetitions:
		return ReasonRepetitions
	}
	return ReasonExhausted
}

// worker runs the per-worker loop. stopCtx carries cancellation and the
// shared deadline; requests run on a context detached from it.
func (r *Runner) worker(ctx, stopCtx context.Context, id int, assets *ants.Pool) {
	reqCtx := context.WithoutCancel(ctx)
	logger := r.opt.Logger.With("worker", id)
	completed := 0

	for {
		if stopCtx.Err() != nil {
			return
		}
		if r.opt.Stop.Kind == StopRepetitions && completed >= r.opt.Stop.Repetitions {
			return
		}

		u, err := r.opt.Source.Next(stopCtx)
		if errors.Is(err, source.ErrExhausted) {
			r.exhausted.Store(true)
			logger.Debug("source exhausted")
			return
		}
		if err != nil {
			return
		}
		if err := r.pacer.Wait(stopCtx); err != nil {
			r.opt.Source.Done(u)
			return
		}

		r.visit(reqCtx, u, assets)
		r.opt.Source.Done(u)
		r.iterations.Add(1)
		completed++

		if r.opt.Stop.Kind == StopRepetitions && completed >= r.opt.Stop.Repetitions {
			return
		}
		if !sleep(stopCtx, r.opt.Delay) {
			return
		}
	}
}

// visit fetches u, records the outcome and runs any follow-up work for
// HTML pages: link expansion, discovery submission and inline assets.
func (r *Runner) visit(ctx context.Context, u target.URL, assets *ants.Pool) {
	resp, outcome := r.fetch(ctx, u)
	if !outcome.Success() || resp == nil || !resp.HTML || u.IsAsset() {
		return
	}
	if r.opt.Expansion == ExpandNone && !r.opt.LoadAssets {
		return
	}

	// Relative links resolve against the page that was actually served.
	base := u.Raw
	if resp.FinalURL != "" && resp.FinalURL != u.Raw {
		base = resp.FinalURL
		if final, err := target.New(base, u.Origin); err == nil && r.opt.VisitOnce {
			r.opt.Frontier.Claim(final)
		}
	}
	page, err := extractor.Extract(resp.Body, base)
	if err != nil {
		r.opt.Logger.Debug("link extraction failed", "url", base, "error", err)
		return
	}

	switch r.opt.Expansion {
	case ExpandFollowLinks:
		r.pushLinks(page.Links)
	case ExpandJS:
		if !r.opt.Submitter.Submit(u) {
			r.opt.Logger.Debug("discovery pool busy, using static links", "url", u.Raw)
			r.pushLinks(page.Links)
		}
	}

	if r.opt.LoadAssets {
		r.loadAssets(ctx, page.Assets, assets)
	}
}

func (r *Runner) pushLinks(links []target.URL) {
	added := 0
	for _, l := range links {
		if r.opt.Frontier.Push(l) {
			added++
		}
	}
	if added > 0 {
		r.opt.Logger.Debug("links queued", "count", added)
	}
}

// loadAssets fetches assets inline and waits for all of them. In visit-once
// runs an asset is fetched only by the worker that claims it first.
func (r *Runner) loadAssets(ctx context.Context, list []target.URL, pool *ants.Pool) {
	var wg sync.WaitGroup
	for _, a := range list {
		if r.opt.VisitOnce && !r.opt.Frontier.Claim(a) {
			continue
		}
		asset := a
		wg.Add(1)
		task := func() {
			defer wg.Done()
			r.fetch(ctx, asset)
		}
		if pool == nil {
			task()
			continue
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
}

// fetch performs one request and records its outcome.
func (r *Runner) fetch(ctx context.Context, u target.URL) (*httpclient.Response, metrics.Outcome) {
	started := time.Now()
	resp, err := r.opt.Fetcher.Fetch(ctx, u)
	outcome := buildOutcome(u, started, resp, err)

	r.requests.Add(1)
	if !outcome.Success() {
		r.errs.Add(1)
		r.opt.Logger.Debug("request failed", "url", u.Raw, "status", outcome.StatusCode, "error", outcome.Err)
	}
	if rerr := r.opt.Recorder.Record(outcome); rerr != nil {
		r.opt.Logger.Debug("outcome dropped", "url", u.Raw, "error", rerr)
	}
	if r.opt.OnOutcome != nil {
		r.opt.OnOutcome(outcome)
	}
	return resp, outcome
}

func buildOutcome(u target.URL, started time.Time, resp *httpclient.Response, err error) metrics.Outcome {
	outcome := metrics.Outcome{
		Method:    "GET",
		URL:       u.Raw,
		Origin:    string(u.Origin),
		Timestamp: started,
	}
	if resp != nil {
		outcome.StatusCode = resp.StatusCode
		outcome.Proto = resp.Proto
		outcome.Bytes = resp.Bytes
		outcome.Elapsed = resp.Elapsed
	}
	if outcome.Elapsed <= 0 {
		outcome.Elapsed = time.Since(started)
	}

	var bodyErr *httpclient.BodyError
	switch {
	case err != nil && !errors.As(err, &bodyErr):
		outcome.StatusCode = 0
		outcome.Err = err
	case outcome.StatusCode >= 400:
		outcome.Err = &HTTPError{
			StatusCode: outcome.StatusCode,
			Body:       strings.TrimSpace(string(resp.Body)),
		}
	case err != nil:
		outcome.Err = err
	}
	return outcome
}
