package source_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sitesiege/sitesiege/internal/source"
	"github.com/sitesiege/sitesiege/internal/target"
)

func urls(t *testing.T, raws ...string) []target.URL {
	t.Helper()
	out := make([]target.URL, 0, len(raws))
	for _, raw := range raws {
		u, err := target.New(raw, target.OriginSitemap)
		if err != nil {
			t.Fatalf("target.New(%q): %v", raw, err)
		}
		out = append(out, u)
	}
	return out
}

func TestFixedRepeats(t *testing.T) {
	u := urls(t, "https://example.com/")[0]
	src := source.NewFixed(u)
	for i := 0; i < 3; i++ {
		got, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != u {
			t.Errorf("expected %v, got %v", u, got)
		}
	}
}

func TestStaticListRoundRobin(t *testing.T) {
	list := urls(t, "https://example.com/a", "https://example.com/b", "https://example.com/c")
	src := source.NewStaticList(list)

	for i := 0; i < 7; i++ {
		got, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if want := list[i%3]; got != want {
			t.Errorf("pop %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestEmptyListsAreExhausted(t *testing.T) {
	for name, src := range map[string]source.Source{
		"static": source.NewStaticList(nil),
		"random": source.NewRandomList(nil, 1),
	} {
		if _, err := src.Next(context.Background()); !errors.Is(err, source.ErrExhausted) {
			t.Errorf("%s: expected ErrExhausted, got %v", name, err)
		}
	}
}

func TestRandomListStaysInList(t *testing.T) {
	list := urls(t, "https://example.com/a", "https://example.com/b")
	src := source.NewRandomList(list, 42)
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		got, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen[got.Raw]++
	}
	if len(seen) != 2 {
		t.Errorf("expected both URLs sampled, got %v", seen)
	}
}

func TestSourcesObserveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	list := urls(t, "https://example.com/")
	for name, src := range map[string]source.Source{
		"fixed":  source.NewFixed(list[0]),
		"static": source.NewStaticList(list),
		"random": source.NewRandomList(list, 1),
	} {
		if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", name, err)
		}
	}
}
