// Package discovery renders pages in headless browser sessions and feeds the
// links and assets found in the rendered DOM back into the frontier.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitesiege/sitesiege/internal/clientmetrics"
	"github.com/sitesiege/sitesiege/internal/extractor"
	"github.com/sitesiege/sitesiege/internal/pool"
	"github.com/sitesiege/sitesiege/internal/target"
)

const (
	defaultRenderTimeout  = 30 * time.Second
	defaultQueuePerWorker = 64
)

// Page is a rendered document.
type Page struct {
	// URL is the final location after redirects.
	URL  string
	HTML []byte
	// Resources is a JSON array of resource-timing entries, if available.
	Resources []byte
}

// Session is a browser session able to render one page at a time.
type Session interface {
	pool.Poolable
	Render(ctx context.Context, url string) (Page, error)
}

// Sink receives discovered URLs. source.Frontier satisfies it.
type Sink interface {
	Push(target.URL) bool
	Hold() func()
}

// Options configures a Pool.
type Options struct {
	Threads       int
	QueueSize     int
	RenderTimeout time.Duration
	NewSession    func() Session
	Sink          Sink
	Logger        *slog.Logger
	Metrics       *clientmetrics.SessionMetrics
}

// DefaultThreads returns half the logical CPUs clamped to [2, 8].
func DefaultThreads() int {
	n := runtime.NumCPU() / 2
	if n < 2 {
		return 2
	}
	if n > 8 {
		return 8
	}
	return n
}

func (o Options) normalize() Options {
	if o.Threads <= 0 {
		o.Threads = DefaultThreads()
	}
	if o.QueueSize <= 0 {
		o.QueueSize = o.Threads * defaultQueuePerWorker
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = defaultRenderTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Metrics == nil {
		o.Metrics = clientmetrics.New()
	}
	return o
}

type task struct {
	url     target.URL
	release func()
}

// Pool is a fixed set of render workers. Each worker owns one browser
// session, created on first use and reused for later tasks.
type Pool struct {
	opts     Options
	sessions *pool.SessionPool
	tasks    chan task

	mu       sync.RWMutex
	closed   bool
	draining atomic.Bool
	dropped  atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New returns a pool. Workers start on Start.
func New(opts Options) (*Pool, error) {
	opts = opts.normalize()
	if opts.NewSession == nil {
		return nil, errors.New("discovery: session factory is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("discovery: sink is required")
	}
	factory := opts.NewSession
	return &Pool{
		opts:     opts,
		sessions: pool.NewSessionPool(func() pool.Poolable { return factory() }),
		tasks:    make(chan task, opts.QueueSize),
	}, nil
}

// Threads returns the worker count.
func (p *Pool) Threads() int { return p.opts.Threads }

// Metrics returns the session counters.
func (p *Pool) Metrics() *clientmetrics.SessionMetrics { return p.opts.Metrics }

// Start launches the workers. Renders stop early when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)
		p.opts.Metrics.MarkStarted()
		for i := 0; i < p.opts.Threads; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Submit queues u for rendering without blocking. The sink is held until
// the render finishes so the frontier cannot report exhaustion early. It
// returns false when the pool is closed or its queue is full.
func (p *Pool) Submit(u target.URL) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	release := p.opts.Sink.Hold()
	select {
	case p.tasks <- task{url: u, release: release}:
		return true
	default:
		release()
		return false
	}
}

// DrainAndClose stops intake, releases queued tasks that have not started,
// waits for in-flight renders to finish or time out and closes every
// session.
func (p *Pool) DrainAndClose() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.draining.Store(true)
		close(p.tasks)
		p.mu.Unlock()

		p.wg.Wait()
		if p.cancel != nil {
			p.cancel()
		}
		// Tasks still queued when Start was never called.
		for t := range p.tasks {
			p.dropped.Add(1)
			t.release()
		}
		if n := p.dropped.Load(); n > 0 {
			p.opts.Logger.Debug("discovery stopped with pages still queued", "dropped", n)
		}
		err = p.sessions.Close()
	})
	return err
}

// Dropped returns how many queued pages were released unrendered by
// DrainAndClose.
func (p *Pool) Dropped() int64 { return p.dropped.Load() }

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.render(id, t)
	}
}

func (p *Pool) render(id int, t task) {
	defer t.release()
	if p.draining.Load() {
		p.dropped.Add(1)
		return
	}
	if p.ctx.Err() != nil {
		return
	}
	logger := p.opts.Logger.With("worker", id, "url", t.url.Raw)

	s, reused, err := p.sessions.Acquire(p.ctx, id)
	if err != nil {
		p.opts.Metrics.RenderFailed()
		logger.Warn("browser session unavailable", "error", err)
		return
	}
	if !reused {
		p.opts.Metrics.SessionOpened(false)
	}
	session := s.(Session)

	ctx, cancel := context.WithTimeout(p.ctx, p.opts.RenderTimeout)
	defer cancel()

	start := time.Now()
	page, err := session.Render(ctx, t.url.Raw)
	if err != nil {
		p.opts.Metrics.RenderFailed()
		logger.Warn("render failed, replacing session", "error", err)
		if p.ctx.Err() != nil {
			return
		}
		if _, rerr := p.sessions.Replace(p.ctx, id); rerr != nil {
			logger.Warn("browser session restart failed", "error", rerr)
			return
		}
		p.opts.Metrics.SessionOpened(true)
		return
	}

	links, assets, err := p.discover(t.url, page)
	if err != nil {
		p.opts.Metrics.RenderFailed()
		logger.Warn("rendered page could not be parsed", "error", err)
		return
	}
	p.opts.Metrics.RenderSucceeded(time.Since(start), len(page.HTML), links, assets)
	logger.Debug("page rendered", "links", links, "assets", assets, "dom_bytes", len(page.HTML))
}

// discover pushes same-origin links and all assets to the sink and returns
// how many of each were new.
func (p *Pool) discover(requested target.URL, page Page) (links, assets int, err error) {
	pageURL := requested.Raw
	if page.URL != "" {
		if final, nerr := target.Normalize(page.URL); nerr == nil && sameOrigin(final, requested.Raw) {
			pageURL = final
		}
	}
	res, err := extractor.Extract(page.HTML, pageURL)
	if err != nil {
		return 0, 0, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	for _, l := range res.Links {
		if p.opts.Sink.Push(target.URL{Raw: l.Raw, Origin: target.OriginJSDiscovered}) {
			links++
		}
	}
	for _, a := range extractor.Merge(res.Assets, extractor.Resources(page.Resources)) {
		if p.opts.Sink.Push(a) {
			assets++
		}
	}
	return links, assets, nil
}

func sameOrigin(a, b string) bool {
	oa, err := target.OriginOf(a)
	if err != nil {
		return false
	}
	ob, err := target.OriginOf(b)
	return err == nil && oa == ob
}
