package source

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/sitesiege/sitesiege/internal/target"
)

const defaultPollInterval = 50 * time.Millisecond

// Frontier is a growing visit-once queue.
//
// Every URL ever pushed or claimed is recorded in the visited set; a URL is
// enqueued at most once and handed to at most one caller of Next. Next reports
// ErrExhausted only when the queue is empty, every delivered URL has been
// marked Done and no producer holds are outstanding.
type Frontier struct {
	mu       sync.Mutex
	queue    []target.URL
	visited  mapset.Set
	inFlight int
	holds    int
	changed  chan struct{}
	poll     time.Duration
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		visited: mapset.NewThreadUnsafeSet(),
		changed: make(chan struct{}),
		poll:    defaultPollInterval,
	}
}

// Push enqueues u unless it was seen before. It reports whether u was added.
func (f *Frontier) Push(u target.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.visited.Add(u.Raw) {
		return false
	}
	f.queue = append(f.queue, u)
	f.notifyLocked()
	return true
}

// PushAll pushes every URL and returns how many were new.
func (f *Frontier) PushAll(urls []target.URL) int {
	added := 0
	for _, u := range urls {
		if f.Push(u) {
			added++
		}
	}
	return added
}

// Claim marks u as visited without queueing it. It reports whether the
// caller is the first to claim u.
func (f *Frontier) Claim(u target.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Add(u.Raw)
}

// Hold registers an outstanding producer. The frontier cannot report
// exhaustion until the returned release func is called. Release is idempotent.
func (f *Frontier) Hold() func() {
	f.mu.Lock()
	f.holds++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.holds--
			f.notifyLocked()
			f.mu.Unlock()
		})
	}
}

// Next removes and returns the head of the queue, waiting while producers
// may still add work.
func (f *Frontier) Next(ctx context.Context) (target.URL, error) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			u := f.queue[0]
			f.queue[0] = target.URL{}
			f.queue = f.queue[1:]
			f.inFlight++
			f.mu.Unlock()
			return u, nil
		}
		if f.inFlight == 0 && f.holds == 0 {
			f.mu.Unlock()
			return target.URL{}, ErrExhausted
		}
		wait := f.changed
		f.mu.Unlock()

		timer := time.NewTimer(f.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return target.URL{}, ctx.Err()
		case <-wait:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Done marks a URL returned by Next as finished.
func (f *Frontier) Done(target.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.notifyLocked()
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Cardinality()
}

func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}
