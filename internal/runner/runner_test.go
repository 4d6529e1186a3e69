package runner_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitesiege/sitesiege/internal/httpclient"
	"github.com/sitesiege/sitesiege/internal/metrics"
	"github.com/sitesiege/sitesiege/internal/runner"
	"github.com/sitesiege/sitesiege/internal/source"
	"github.com/sitesiege/sitesiege/internal/target"
)

type recordingSink struct {
	mu       sync.Mutex
	outcomes []metrics.Outcome
}

func (r *recordingSink) Record(o metrics.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *recordingSink) all() []metrics.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.Outcome(nil), r.outcomes...)
}

func (r *recordingSink) urls() map[string]int {
	counts := make(map[string]int)
	for _, o := range r.all() {
		counts[o.URL]++
	}
	return counts
}

func newFetcher(t *testing.T) *httpclient.Fetcher {
	t.Helper()
	f, err := httpclient.NewFetcher(httpclient.FetcherOptions{UserAgent: "sitesiege-test"})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func mustURL(t *testing.T, raw string, origin target.Origin) target.URL {
	t.Helper()
	u, err := target.New(raw, origin)
	if err != nil {
		t.Fatalf("target.New(%q): %v", raw, err)
	}
	return u
}

func TestRunnerRepetitionsPerWorker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var list []target.URL
	for i := 0; i < 5; i++ {
		list = append(list, mustURL(t, fmt.Sprintf("%s/p%d", srv.URL, i), target.OriginFile))
	}
	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 3,
		Source:      source.NewStaticList(list),
		Stop:        runner.ForRepetitions(2),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
	})
	res := r.Run(context.Background())

	if got := len(sink.all()); got != 6 {
		t.Fatalf("expected 6 outcomes, got %d", got)
	}
	if res.Iterations != 6 {
		t.Errorf("expected 6 iterations, got %d", res.Iterations)
	}
	if res.Reason != runner.ReasonRepetitions {
		t.Errorf("expected reason %q, got %q", runner.ReasonRepetitions, res.Reason)
	}
}

func TestRunnerStopsAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 2,
		Source:      source.NewFixed(mustURL(t, srv.URL, target.OriginSeed)),
		Stop:        runner.ForDuration(200 * time.Millisecond),
		Delay:       10 * time.Millisecond,
		Fetcher:     newFetcher(t),
		Recorder:    sink,
	})
	start := time.Now()
	res := r.Run(context.Background())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("run took too long: %v", elapsed)
	}
	if len(sink.all()) == 0 {
		t.Fatal("expected outcomes before the deadline")
	}
	if res.Reason != runner.ReasonDeadline {
		t.Errorf("expected reason %q, got %q", runner.ReasonDeadline, res.Reason)
	}
}

func TestRunnerCancellationLetsInFlightFinish(t *testing.T) {
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte("slow"))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 1,
		Source:      source.NewFixed(mustURL(t, srv.URL, target.OriginSeed)),
		Stop:        runner.ForDuration(time.Minute),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	res := r.Run(ctx)

	outcomes := sink.all()
	if len(outcomes) != 1 {
		t.Fatalf("expected the in-flight request to be recorded once, got %d", len(outcomes))
	}
	if outcomes[0].StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", outcomes[0].StatusCode)
	}
	if res.Reason != runner.ReasonCanceled {
		t.Errorf("expected reason %q, got %q", runner.ReasonCanceled, res.Reason)
	}
}

func TestRunnerTransportErrorIsStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 1,
		Source:      source.NewFixed(mustURL(t, dead, target.OriginSeed)),
		Stop:        runner.ForRepetitions(3),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
	})
	res := r.Run(context.Background())

	outcomes := sink.all()
	if len(outcomes) != 3 {
		t.Fatalf("expected worker to keep going after failures, got %d outcomes", len(outcomes))
	}
	for _, o := range outcomes {
		if o.StatusCode != 0 {
			t.Errorf("expected status 0 for transport failure, got %d", o.StatusCode)
		}
		if o.Err == nil {
			t.Error("expected transport error on outcome")
		}
	}
	if res.Errors != 3 {
		t.Errorf("expected 3 errors, got %d", res.Errors)
	}
}

func TestRunnerHTTPErrorOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Source:   source.NewFixed(mustURL(t, srv.URL, target.OriginSeed)),
		Stop:     runner.ForRepetitions(1),
		Fetcher:  newFetcher(t),
		Recorder: sink,
	})
	r.Run(context.Background())

	outcomes := sink.all()
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	httpErr, ok := outcomes[0].Err.(*runner.HTTPError)
	if !ok {
		t.Fatalf("expected *runner.HTTPError, got %T", outcomes[0].Err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.StatusCode)
	}
	if !strings.Contains(httpErr.Body, "missing") {
		t.Errorf("expected body snippet, got %q", httpErr.Body)
	}
}

func TestRunnerFollowLinksVisitsEachPageOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path != "/" {
			fmt.Fprint(w, `<html><body><a href="/">home</a><a href="/a">a</a></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="/a">a</a><a href="/b">b</a><a href="/c#top">c</a><a href="/d">d</a>
			<a href="https://elsewhere.example/">external</a>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	frontier := source.NewFrontier()
	frontier.Push(mustURL(t, srv.URL, target.OriginSeed))

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 4,
		Source:      frontier,
		Stop:        runner.UntilExhausted(),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
		Expansion:   runner.ExpandFollowLinks,
		Frontier:    frontier,
		VisitOnce:   true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := r.Run(ctx)

	counts := sink.urls()
	if len(counts) != 5 {
		t.Fatalf("expected 5 distinct pages, got %d: %v", len(counts), counts)
	}
	for u, n := range counts {
		if n != 1 {
			t.Errorf("expected %s visited once, got %d", u, n)
		}
	}
	if res.Reason != runner.ReasonExhausted {
		t.Errorf("expected reason %q, got %q", runner.ReasonExhausted, res.Reason)
	}
}

func TestRunnerFollowLinksResolvesAgainstRedirectTarget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/docs/":
			fmt.Fprint(w, `<html><body><a href="intro">intro</a><a href="guide">guide</a></body></html>`)
		case "/docs/intro", "/docs/guide":
			fmt.Fprint(w, `<html><body><a href="./">index</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	frontier := source.NewFrontier()
	frontier.Push(mustURL(t, srv.URL+"/docs", target.OriginSeed))

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 2,
		Source:      frontier,
		Stop:        runner.UntilExhausted(),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
		Expansion:   runner.ExpandFollowLinks,
		Frontier:    frontier,
		VisitOnce:   true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.Run(ctx)

	want := []string{srv.URL + "/docs", srv.URL + "/docs/intro", srv.URL + "/docs/guide"}
	counts := sink.urls()
	if len(counts) != len(want) {
		t.Fatalf("visited %v, want %v", counts, want)
	}
	for _, u := range want {
		if counts[u] != 1 {
			t.Errorf("%s visited %d times, want 1", u, counts[u])
		}
	}
	for _, o := range sink.all() {
		if o.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d, want 200", o.URL, o.StatusCode)
		}
	}
}

func TestRunnerLoadsInlineAssets(t *testing.T) {
	var assetHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><link rel="stylesheet" href="/site.css"><script src="/app.js"></script></head>
			<body><img src="/logo.png"></body></html>`)
	})
	for _, p := range []string{"/site.css", "/app.js", "/logo.png"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			assetHits.Add(1)
			w.Write([]byte("asset"))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var observed atomic.Int64
	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 1,
		Source:      source.NewFixed(mustURL(t, srv.URL, target.OriginSeed)),
		Stop:        runner.ForRepetitions(2),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
		LoadAssets:  true,
		OnOutcome:   func(metrics.Outcome) { observed.Add(1) },
	})
	res := r.Run(context.Background())

	if got := len(sink.all()); got != 8 {
		t.Fatalf("expected 2 pages plus 6 assets, got %d outcomes", got)
	}
	if assetHits.Load() != 6 {
		t.Errorf("expected 6 asset requests, got %d", assetHits.Load())
	}
	if observed.Load() != 8 {
		t.Errorf("expected OnOutcome for every request, got %d", observed.Load())
	}
	if res.Iterations != 2 || res.Requests != 8 {
		t.Errorf("expected 2 iterations and 8 requests, got %d and %d", res.Iterations, res.Requests)
	}
	assets := 0
	for _, o := range sink.all() {
		if o.Origin == string(target.OriginAsset) {
			assets++
		}
	}
	if assets != 6 {
		t.Errorf("expected 6 asset outcomes, got %d", assets)
	}
}

func TestRunnerAssetsClaimedOnceWhenVisitOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><link rel="stylesheet" href="/site.css"></head><body></body></html>`)
	})
	mux.HandleFunc("/site.css", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body{}"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	frontier := source.NewFrontier()
	frontier.Push(mustURL(t, srv.URL+"/one", target.OriginFile))
	frontier.Push(mustURL(t, srv.URL+"/two", target.OriginFile))

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency: 1,
		Source:      frontier,
		Stop:        runner.UntilExhausted(),
		Fetcher:     newFetcher(t),
		Recorder:    sink,
		Frontier:    frontier,
		VisitOnce:   true,
		LoadAssets:  true,
	})
	r.Run(context.Background())

	if got := sink.urls()[srv.URL+"/site.css"]; got != 1 {
		t.Errorf("expected shared asset fetched once, got %d", got)
	}
}

type fakeSubmitter struct {
	accept bool
	mu     sync.Mutex
	pages  []string
}

func (f *fakeSubmitter) Submit(u target.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, u.Raw)
	return f.accept
}

func TestRunnerJSFallsBackToStaticLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/" {
			fmt.Fprint(w, `<a href="/next">next</a>`)
			return
		}
		fmt.Fprint(w, `done`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, accept := range []bool{true, false} {
		t.Run(fmt.Sprintf("accept=%v", accept), func(t *testing.T) {
			frontier := source.NewFrontier()
			frontier.Push(mustURL(t, srv.URL, target.OriginSeed))
			sub := &fakeSubmitter{accept: accept}
			sink := &recordingSink{}
			r := runner.New(runner.Options{
				Source:    frontier,
				Stop:      runner.UntilExhausted(),
				Fetcher:   newFetcher(t),
				Recorder:  sink,
				Expansion: runner.ExpandJS,
				Frontier:  frontier,
				Submitter: sub,
				VisitOnce: true,
			})
			r.Run(context.Background())

			want := 1
			if !accept {
				want = 2
			}
			if got := len(sink.all()); got != want {
				t.Errorf("expected %d outcomes, got %d", want, got)
			}
			if len(sub.pages) == 0 || sub.pages[0] != srv.URL+"/" {
				t.Errorf("expected seed submitted to discovery, got %v", sub.pages)
			}
		})
	}
}

func TestRunnerRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	r := runner.New(runner.Options{
		Concurrency:   4,
		Source:        source.NewFixed(mustURL(t, srv.URL, target.OriginSeed)),
		Stop:          runner.ForDuration(500 * time.Millisecond),
		RatePerSecond: 10,
		Fetcher:       newFetcher(t),
		Recorder:      sink,
	})
	r.Run(context.Background())

	// Burst of 10 plus roughly 5 more in half a second.
	if got := len(sink.all()); got > 20 {
		t.Errorf("expected rate limit to cap requests, got %d", got)
	}
}

func TestRunnerValidate(t *testing.T) {
	r := runner.New(runner.Options{Expansion: runner.ExpandJS})
	err := r.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"source", "fetcher", "recorder", "frontier", "discovery pool"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
