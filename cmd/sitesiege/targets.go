package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitesiege/sitesiege/internal/config"
	"github.com/sitesiege/sitesiege/internal/feeder"
	"github.com/sitesiege/sitesiege/internal/source"
	"github.com/sitesiege/sitesiege/internal/target"
)

type sitemapResolver interface {
	Resolve(ctx context.Context, seed string) ([]target.URL, error)
}

// targets is the URL source for a run. frontier is set for visit-once modes
// and is the same value as source.
type targets struct {
	source   source.Source
	frontier *source.Frontier
}

func buildTargets(ctx context.Context, mode config.RunMode, resolver sitemapResolver, logger *slog.Logger) (targets, error) {
	switch mode.Kind {
	case config.ModeSingle:
		seed, err := target.New(mode.Seed, target.OriginSeed)
		if err != nil {
			return targets{}, fmt.Errorf("target url: %w", err)
		}
		return targets{source: source.NewFixed(seed)}, nil

	case config.ModeSitemapList:
		urls, err := listTargets(ctx, mode, resolver)
		if err != nil {
			return targets{}, err
		}
		logger.Info("url list loaded", "urls", len(urls), "random", mode.Random)
		if mode.Random {
			return targets{source: source.NewRandomList(urls, time.Now().UnixNano())}, nil
		}
		return targets{source: source.NewStaticList(urls)}, nil

	case config.ModeCrawlOnce:
		urls, err := listTargets(ctx, mode, resolver)
		if err != nil {
			return targets{}, err
		}
		f := source.NewFrontier()
		n := f.PushAll(urls)
		logger.Info("crawl frontier seeded", "urls", n, "duplicates", len(urls)-n)
		return targets{source: f, frontier: f}, nil

	case config.ModeFollowLinks, config.ModeJSDiscovery:
		seed, err := target.New(mode.Seed, target.OriginSeed)
		if err != nil {
			return targets{}, fmt.Errorf("target url: %w", err)
		}
		f := source.NewFrontier()
		f.Push(seed)
		return targets{source: f, frontier: f}, nil
	}
	return targets{}, fmt.Errorf("unsupported run mode %s", mode.Kind)
}

// listTargets reads the URL file when one is given and resolves the seed's
// sitemap otherwise.
func listTargets(ctx context.Context, mode config.RunMode, resolver sitemapResolver) ([]target.URL, error) {
	if mode.FromFile != "" {
		return feeder.Load(mode.FromFile)
	}
	urls, err := resolver.Resolve(ctx, mode.Seed)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("sitemap for %s lists no URLs", mode.Seed)
	}
	return urls, nil
}
