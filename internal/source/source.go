// Package source provides the URL streams workers draw from.
package source

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitesiege/sitesiege/internal/target"
)

// ErrExhausted is returned by Next when a source will never yield another URL.
var ErrExhausted = errors.New("source exhausted")

// Source yields target URLs to workers.
//
// Done must be called once for every URL returned by Next after the worker
// has finished with it, including any follow-up work that may feed the source.
type Source interface {
	Next(ctx context.Context) (target.URL, error)
	Done(target.URL)
}

// Fixed always yields the same URL.
type Fixed struct {
	url target.URL
}

// NewFixed returns a source repeating u forever.
func NewFixed(u target.URL) *Fixed {
	return &Fixed{url: u}
}

// Next returns the fixed URL until ctx is done.
func (f *Fixed) Next(ctx context.Context) (target.URL, error) {
	if err := ctx.Err(); err != nil {
		return target.URL{}, err
	}
	return f.url, nil
}

// Done is a no-op.
func (f *Fixed) Done(target.URL) {}

// StaticList cycles through a fixed list in round-robin order shared by all
// workers.
type StaticList struct {
	urls   []target.URL
	cursor atomic.Uint64
}

// NewStaticList returns a round-robin source. An empty list is exhausted
// immediately.
func NewStaticList(urls []target.URL) *StaticList {
	return &StaticList{urls: append([]target.URL(nil), urls...)}
}

// Next returns the next URL in list order, wrapping at the end.
func (s *StaticList) Next(ctx context.Context) (target.URL, error) {
	if err := ctx.Err(); err != nil {
		return target.URL{}, err
	}
	if len(s.urls) == 0 {
		return target.URL{}, ErrExhausted
	}
	idx := (s.cursor.Add(1) - 1) % uint64(len(s.urls))
	return s.urls[idx], nil
}

// Done is a no-op.
func (s *StaticList) Done(target.URL) {}

// RandomList samples the list uniformly with replacement.
type RandomList struct {
	urls []target.URL
	mu   sync.Mutex
	rng  *rand.Rand
}

// NewRandomList returns a random sampling source. A zero seed uses the clock.
func NewRandomList(urls []target.URL, seed int64) *RandomList {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomList{
		urls: append([]target.URL(nil), urls...),
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Next returns a uniformly chosen URL.
func (r *RandomList) Next(ctx context.Context) (target.URL, error) {
	if err := ctx.Err(); err != nil {
		return target.URL{}, err
	}
	if len(r.urls) == 0 {
		return target.URL{}, ErrExhausted
	}
	r.mu.Lock()
	idx := r.rng.Intn(len(r.urls))
	r.mu.Unlock()
	return r.urls[idx], nil
}

// Done is a no-op.
func (r *RandomList) Done(target.URL) {}
