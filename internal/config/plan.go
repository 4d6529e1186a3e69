package config

import (
	"fmt"
	"strings"
	"time"
)

// ModeKind identifies how target URLs are produced for a run.
type ModeKind int

const (
	// ModeSingle repeats one URL.
	ModeSingle ModeKind = iota + 1
	// ModeSitemapList loads a URL list (sitemap or file) and replays it.
	ModeSitemapList
	// ModeCrawlOnce visits every listed URL exactly once.
	ModeCrawlOnce
	// ModeFollowLinks grows the frontier from links on fetched pages.
	ModeFollowLinks
	// ModeJSDiscovery grows the frontier from browser-rendered pages.
	ModeJSDiscovery
)

func (k ModeKind) String() string {
	switch k {
	case ModeSingle:
		return "single"
	case ModeSitemapList:
		return "sitemap-list"
	case ModeCrawlOnce:
		return "crawl-once"
	case ModeFollowLinks:
		return "follow-links"
	case ModeJSDiscovery:
		return "js-discovery"
	}
	return "unknown"
}

// VisitOnce reports whether URLs in this mode are dispatched at most once.
func (k ModeKind) VisitOnce() bool {
	return k == ModeCrawlOnce || k == ModeFollowLinks || k == ModeJSDiscovery
}

// RunMode is the resolved source of target URLs.
type RunMode struct {
	Kind ModeKind
	Seed string
	// FromSitemap and FromFile select the URL list for list-based modes.
	FromSitemap bool
	FromFile    string
	Random      bool
	Threads     int // discovery threads, 0 means the pool default
}

type StopKind int

const (
	StopUnset StopKind = iota
	StopDuration
	StopRepetitions
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
	return "unset"
}

type StopCondition struct {
	Kind        StopKind
	Duration    time.Duration
	Repetitions int
}

// Plan is the result of resolving mode flags.
type Plan struct {
	Mode        RunMode
	Stop        StopCondition
	Concurrency int
	Warnings    []string
}

// Plan resolves the mode flags into a single RunMode and StopCondition.
// Precedence, highest first: js, follow-links, crawl, sitemap/random/file,
// single URL. Flags shadowed by a higher mode are reported in Warnings.
func (c Config) Plan() Plan {
	p := Plan{Concurrency: c.Concurrency}
	seed := strings.TrimSpace(c.TargetURL)
	file := strings.TrimSpace(c.URLFile)

	ignore := func(mode string, flags ...string) {
		for _, f := range flags {
			p.Warnings = append(p.Warnings, fmt.Sprintf("--%s is ignored in %s mode", f, mode))
		}
	}

	switch {
	case c.JS:
		p.Mode = RunMode{Kind: ModeJSDiscovery, Seed: seed, Threads: c.JSThreads}
		ignore(ModeJSDiscovery.String(), c.shadowedBy(ModeJSDiscovery)...)
	case c.FollowLinks:
		p.Mode = RunMode{Kind: ModeFollowLinks, Seed: seed}
		ignore(ModeFollowLinks.String(), c.shadowedBy(ModeFollowLinks)...)
	case c.Crawl:
		p.Mode = RunMode{Kind: ModeCrawlOnce, Seed: seed, FromSitemap: c.Sitemap, FromFile: file}
		if c.Random {
			ignore(ModeCrawlOnce.String(), "random")
		}
	case c.Sitemap || c.Random || file != "":
		p.Mode = RunMode{Kind: ModeSitemapList, Seed: seed, FromFile: file, Random: c.Random}
		if file == "" {
			p.Mode.FromSitemap = true
		} else if c.Sitemap {
			ignore(ModeSitemapList.String()+" (reading --file)", "sitemap")
		}
	default:
		p.Mode = RunMode{Kind: ModeSingle, Seed: seed}
	}
	if p.Mode.Kind != ModeJSDiscovery && c.JSThreads > 0 {
		ignore(p.Mode.Kind.String(), "js-threads")
	}

	switch {
	case c.Duration > 0:
		p.Stop = StopCondition{Kind: StopDuration, Duration: c.Duration}
		if c.Repetitions > 0 {
			ignore("duration-bound", "reps")
		}
	case c.Repetitions > 0:
		p.Stop = StopCondition{Kind: StopRepetitions, Repetitions: c.Repetitions}
	case p.Mode.Kind.VisitOnce():
		p.Stop = StopCondition{Kind: StopExhausted}
	}

	if p.Mode.Kind == ModeCrawlOnce && p.Concurrency != 1 {
		p.Warnings = append(p.Warnings, fmt.Sprintf("concurrency %d reduced to 1 in %s mode", p.Concurrency, ModeCrawlOnce))
		p.Concurrency = 1
	}
	return p
}

// shadowedBy lists the set flags that kind takes precedence over.
func (c Config) shadowedBy(kind ModeKind) []string {
	var set []string
	if kind == ModeJSDiscovery && c.FollowLinks {
		set = append(set, "follow-links")
	}
	if c.Crawl {
		set = append(set, "crawl")
	}
	if c.Sitemap {
		set = append(set, "sitemap")
	}
	if c.Random {
		set = append(set, "random")
	}
	if strings.TrimSpace(c.URLFile) != "" {
		set = append(set, "file")
	}
	return set
}
