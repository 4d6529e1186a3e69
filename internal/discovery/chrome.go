package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultSettleDelay is how long a page may keep loading after the body is
// ready before the DOM is read.
const DefaultSettleDelay = 3 * time.Second

const resourceTimingJS = `performance.getEntriesByType("resource").map(e => ({name: e.name, initiatorType: e.initiatorType}))`

// ChromeOptions configures browser sessions.
type ChromeOptions struct {
	UserAgent   string
	Headers     map[string]string
	SettleDelay time.Duration
	// ExecPath overrides the browser binary lookup.
	ExecPath string
	// NoHeadless shows the browser window.
	NoHeadless bool
}

// ChromeSession is a headless Chrome process. Each render opens a new tab in
// the shared browser and closes it afterwards.
type ChromeSession struct {
	opts          ChromeOptions
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// NewChromeSession returns an unconnected session.
func NewChromeSession(opts ChromeOptions) *ChromeSession {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &ChromeSession{opts: opts}
}

// ChromeFactory returns a session factory for Options.NewSession.
func ChromeFactory(opts ChromeOptions) func() Session {
	return func() Session { return NewChromeSession(opts) }
}

// Connect starts the browser process.
func (s *ChromeSession) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", !s.opts.NoHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("mute-audio", true),
	}
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if s.opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(s.opts.ExecPath))
	}

	// The browser outlives ctx; it is torn down by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	s.browserCtx = browserCtx
	s.allocCancel = allocCancel
	s.browserCancel = browserCancel
	return nil
}

// Render loads url in a fresh tab and returns the rendered DOM.
func (s *ChromeSession) Render(ctx context.Context, url string) (Page, error) {
	if s.browserCtx == nil {
		return Page{}, errors.New("browser session not connected")
	}
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		html     string
		location string
		timing   []byte
	)
	actions := []chromedp.Action{network.Enable()}
	if len(s.opts.Headers) > 0 {
		headers := make(network.Headers, len(s.opts.Headers))
		for k, v := range s.opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if s.opts.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.SettleDelay))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.Evaluate(resourceTimingJS, &timing),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, fmt.Errorf("render %s: %w", url, ctxErr)
		}
		return Page{}, fmt.Errorf("render %s: %w", url, err)
	}
	return Page{URL: location, HTML: []byte(html), Resources: timing}, nil
}

// Close terminates the browser process.
func (s *ChromeSession) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	return nil
}
