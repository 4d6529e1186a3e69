package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sitesiege/sitesiege/internal/config"
	"github.com/sitesiege/sitesiege/internal/source"
	"github.com/sitesiege/sitesiege/internal/target"
)

type fakeResolver struct {
	urls  []string
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, seed string) ([]target.URL, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]target.URL, 0, len(f.urls))
	for _, raw := range f.urls {
		u, err := target.New(raw, target.OriginSitemap)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(t *testing.T, src source.Source, max int) []string {
	t.Helper()
	var got []string
	for i := 0; i < max; i++ {
		u, err := src.Next(context.Background())
		if errors.Is(err, source.ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, u.String())
		src.Done(u)
	}
	return got
}

func TestBuildTargetsSingle(t *testing.T) {
	tg, err := buildTargets(context.Background(), config.RunMode{Kind: config.ModeSingle, Seed: "https://example.com/x"}, &fakeResolver{}, discardLogger())
	if err != nil {
		t.Fatalf("buildTargets() error = %v", err)
	}
	if tg.frontier != nil {
		t.Error("single mode should not use a frontier")
	}
	got := drain(t, tg.source, 3)
	if len(got) != 3 || got[0] != got[2] {
		t.Errorf("expected the same URL repeated, got %v", got)
	}
}

func TestBuildTargetsSitemapList(t *testing.T) {
	resolver := &fakeResolver{urls: []string{"https://example.com/a", "https://example.com/b"}}
	tg, err := buildTargets(context.Background(), config.RunMode{Kind: config.ModeSitemapList, Seed: "https://example.com", FromSitemap: true}, resolver, discardLogger())
	if err != nil {
		t.Fatalf("buildTargets() error = %v", err)
	}
	got := drain(t, tg.source, 4)
	want := []string{"https://example.com/a", "https://example.com/b", "https://example.com/a", "https://example.com/b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildTargetsRandomList(t *testing.T) {
	resolver := &fakeResolver{urls: []string{"https://example.com/a", "https://example.com/b"}}
	tg, err := buildTargets(context.Background(), config.RunMode{Kind: config.ModeSitemapList, Seed: "https://example.com", FromSitemap: true, Random: true}, resolver, discardLogger())
	if err != nil {
		t.Fatalf("buildTargets() error = %v", err)
	}
	if _, ok := tg.source.(*source.RandomList); !ok {
		t.Errorf("source = %T, want *source.RandomList", tg.source)
	}
}

func TestBuildTargetsCrawlOnceDeduplicates(t *testing.T) {
	resolver := &fakeResolver{urls: []string{"https://example.com/a", "https://example.com/b", "https://example.com/a#frag"}}
	tg, err := buildTargets(context.Background(), config.RunMode{Kind: config.ModeCrawlOnce, Seed: "https://example.com"}, resolver, discardLogger())
	if err != nil {
		t.Fatalf("buildTargets() error = %v", err)
	}
	if tg.frontier == nil {
		t.Fatal("crawl mode needs a frontier")
	}
	if got := drain(t, tg.source, 10); len(got) != 2 {
		t.Errorf("got %v, want 2 distinct URLs then exhaustion", got)
	}
}

func TestBuildTargetsFollowLinksSeedsFrontier(t *testing.T) {
	resolver := &fakeResolver{}
	tg, err := buildTargets(context.Background(), config.RunMode{Kind: config.ModeFollowLinks, Seed: "https://example.com/start"}, resolver, discardLogger())
	if err != nil {
		t.Fatalf("buildTargets() error = %v", err)
	}
	if resolver.calls != 0 {
		t.Error("follow-links mode should not resolve a sitemap")
	}
	got := drain(t, tg.source, 5)
	if len(got) != 1 || got[0] != "https://example.com/start" {
		t.Errorf("got %v, want only the seed", got)
	}
}

func TestBuildTargetsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte("# list\nhttps://example.com/one\nhttps://example.com/two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver := &fakeResolver{}
	tg, err := buildTargets(context.Background(), config.RunMode{Kind: config.ModeSitemapList, FromFile: path}, resolver, discardLogger())
	if err != nil {
		t.Fatalf("buildTargets() error = %v", err)
	}
	if resolver.calls != 0 {
		t.Error("file mode should not resolve a sitemap")
	}
	if got := drain(t, tg.source, 2); len(got) != 2 || got[1] != "https://example.com/two" {
		t.Errorf("got %v", got)
	}
}

func TestBuildTargetsErrors(t *testing.T) {
	boom := errors.New("robots unavailable")
	tests := []struct {
		name     string
		mode     config.RunMode
		resolver *fakeResolver
	}{
		{"resolution failure", config.RunMode{Kind: config.ModeSitemapList, Seed: "https://example.com", FromSitemap: true}, &fakeResolver{err: boom}},
		{"empty sitemap", config.RunMode{Kind: config.ModeCrawlOnce, Seed: "https://example.com"}, &fakeResolver{}},
		{"bad seed", config.RunMode{Kind: config.ModeSingle, Seed: "ftp://example.com"}, &fakeResolver{}},
		{"missing file", config.RunMode{Kind: config.ModeSitemapList, FromFile: "/nonexistent/urls.txt"}, &fakeResolver{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildTargets(context.Background(), tt.mode, tt.resolver, discardLogger()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
