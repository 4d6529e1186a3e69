// Package sitemap resolves a site's sitemap (or sitemap index tree) into a
// flat, deduplicated list of page URLs.
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"

	"github.com/sitesiege/sitesiege/internal/target"
)

const (
	// DefaultMaxDepth bounds sitemap index nesting.
	DefaultMaxDepth = 5
	defaultFanout   = 4
	// Sitemaps are capped at 50MB uncompressed by the protocol.
	maxDocumentBytes = 50 << 20
	maxRobotsBytes   = 512 << 10
)

// ResolutionError reports that the entry point sitemap could not be fetched
// or parsed. Failures below the entry point never produce it.
type ResolutionError struct {
	URL string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve sitemap %s: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Options configures a Resolver.
type Options struct {
	Client    *http.Client
	UserAgent string
	// MaxDepth caps index nesting below the entry point. Zero means DefaultMaxDepth.
	MaxDepth int
	// Fanout caps concurrent child fetches per level. Zero means 4.
	Fanout int
	Logger *slog.Logger
}

// Resolver turns a seed URL into the page URLs listed by its sitemap.
type Resolver struct {
	client    *http.Client
	userAgent string
	maxDepth  int
	fanout    int
	logger    *slog.Logger
}

// New returns a resolver with defaults applied.
func New(opts Options) *Resolver {
	r := &Resolver{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxDepth:  opts.MaxDepth,
		fanout:    opts.Fanout,
		logger:    opts.Logger,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 30 * time.Second}
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.fanout <= 0 {
		r.fanout = defaultFanout
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

type document struct {
	XMLName  xml.Name
	URLs     []entry `xml:"url"`
	Sitemaps []entry `xml:"sitemap"`
}

type entry struct {
	Loc string `xml:"loc"`
}

// node is one fetched sitemap. Children are filled level by level and the
// tree is flattened depth-first so results keep document order.
type node struct {
	pages    []string
	children []*node
	childURL []string
}

// Resolve returns the page URLs reachable from seed's sitemap in order of
// first discovery.
func (r *Resolver) Resolve(ctx context.Context, seed string) ([]target.URL, error) {
	entryURL, err := r.EntryPoint(ctx, seed)
	if err != nil {
		return nil, &ResolutionError{URL: seed, Err: err}
	}

	root, err := r.fetchDocument(ctx, entryURL)
	if err != nil {
		return nil, &ResolutionError{URL: entryURL, Err: err}
	}

	expanded := mapset.NewThreadUnsafeSet()
	expanded.Add(entryURL)

	level := []*node{root}
	for depth := 1; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		level = r.expandLevel(ctx, level, depth, expanded)
	}

	return flatten(root, r.logger), nil
}

// expandLevel fetches every child sitemap referenced by the given nodes and
// returns the fetched children.
func (r *Resolver) expandLevel(ctx context.Context, level []*node, depth int, expanded mapset.Set) []*node {
	type job struct {
		parent *node
		slot   int
		url    string
	}
	var jobs []job
	for _, n := range level {
		n.children = make([]*node, len(n.childURL))
		for i, child := range n.childURL {
			if depth > r.maxDepth {
				r.logger.Warn("sitemap index too deep, skipping branch", "url", child, "max_depth", r.maxDepth)
				continue
			}
			if !expanded.Add(child) {
				r.logger.Debug("sitemap already expanded, skipping", "url", child)
				continue
			}
			jobs = append(jobs, job{parent: n, slot: i, url: child})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(r.fanout)
	for _, j := range jobs {
		g.Go(func() error {
			doc, err := r.fetchDocument(ctx, j.url)
			if err != nil {
				r.logger.Warn("child sitemap failed, skipping", "url", j.url, "error", err)
				return nil
			}
			j.parent.children[j.slot] = doc
			return nil
		})
	}
	_ = g.Wait()

	next := make([]*node, 0, len(jobs))
	for _, j := range jobs {
		if child := j.parent.children[j.slot]; child != nil {
			next = append(next, child)
		}
	}
	return next
}

func flatten(root *node, logger *slog.Logger) []target.URL {
	seen := mapset.NewThreadUnsafeSet()
	var out []target.URL
	var walk func(n *node)
	walk = func(n *node) {
		for _, loc := range n.pages {
			u, err := target.New(loc, target.OriginSitemap)
			if err != nil {
				logger.Debug("skipping sitemap entry", "loc", loc, "error", err)
				continue
			}
			if seen.Add(u.Raw) {
				out = append(out, u)
			}
		}
		for _, child := range n.children {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	return out
}

// EntryPoint picks the sitemap to start from. XML seeds are used directly;
// otherwise the first robots.txt Sitemap directive wins, falling back to
// /sitemap.xml on the seed's origin.
func (r *Resolver) EntryPoint(ctx context.Context, seed string) (string, error) {
	normalized, err := target.Normalize(seed)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(strings.ToLower(parsed.Path), ".xml") {
		return normalized, nil
	}

	origin := parsed.Scheme + "://" + parsed.Host
	if sm, err := r.robotsSitemap(ctx, origin+"/robots.txt"); err != nil {
		r.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
	} else if sm != "" {
		return sm, nil
	}
	return origin + "/sitemap.xml", nil
}

func (r *Resolver) robotsSitemap(ctx context.Context, robotsURL string) (string, error) {
	resp, err := r.get(ctx, robotsURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return "", err
	}
	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return "", err
	}
	for _, sm := range robots.Sitemaps {
		normalized, err := target.Normalize(strings.TrimSpace(sm))
		if err != nil {
			continue
		}
		return normalized, nil
	}
	return "", nil
}

func (r *Resolver) fetchDocument(ctx context.Context, sitemapURL string) (*node, error) {
	resp, err := r.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	doc, err := parse(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, err
	}

	n := &node{}
	switch doc.XMLName.Local {
	case "urlset":
		for _, e := range doc.URLs {
			if loc := strings.TrimSpace(e.Loc); loc != "" {
				n.pages = append(n.pages, loc)
			}
		}
	case "sitemapindex":
		for _, e := range doc.Sitemaps {
			loc, err := target.Normalize(strings.TrimSpace(e.Loc))
			if err != nil {
				r.logger.Debug("skipping child sitemap", "loc", e.Loc, "error", err)
				continue
			}
			n.childURL = append(n.childURL, loc)
		}
	}
	return n, nil
}

// ErrUnknownRoot is returned for XML documents that are neither a urlset nor
// a sitemapindex.
var ErrUnknownRoot = errors.New("unrecognized sitemap root element")

// parse decodes a sitemap document and checks its root element.
func parse(rd io.Reader) (*document, error) {
	var doc document
	if err := xml.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	switch doc.XMLName.Local {
	case "urlset", "sitemapindex":
		return &doc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRoot, doc.XMLName.Local)
}

func (r *Resolver) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	return r.client.Do(req)
}
