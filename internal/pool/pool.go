package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrClosed is returned by Acquire and Replace after Close.
var ErrClosed = errors.New("pool closed")

// Poolable represents any session that can be pooled and reused.
type Poolable interface {
	Connect(ctx context.Context) error
	Close() error
}

// SessionPool hands out one session per key. A session is owned exclusively
// by the holder of its key and is never shared between keys.
type SessionPool struct {
	mu       sync.Mutex
	sessions map[int]Poolable
	factory  func() Poolable
	closed   bool
}

// NewSessionPool creates a pool that builds sessions with factory.
func NewSessionPool(factory func() Poolable) *SessionPool {
	return &SessionPool{
		sessions: make(map[int]Poolable),
		factory:  factory,
	}
}

// Acquire returns the session for key, creating and connecting one on first
// use. If reused is true, the session was already connected.
func (p *SessionPool) Acquire(ctx context.Context, key int) (session Poolable, reused bool, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, false, ErrClosed
	}
	if s, ok := p.sessions[key]; ok {
		p.mu.Unlock()
		return s, true, nil
	}
	p.mu.Unlock()

	s, err := p.connect(ctx, key)
	return s, false, err
}

// Replace closes the session held for key and connects a fresh one.
func (p *SessionPool) Replace(ctx context.Context, key int) (Poolable, error) {
	_ = p.Discard(key)
	return p.connect(ctx, key)
}

// Discard closes and forgets the session for key, if any.
func (p *SessionPool) Discard(key int) error {
	p.mu.Lock()
	s, ok := p.sessions[key]
	delete(p.sessions, key)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// Len returns the number of live sessions.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *SessionPool) connect(ctx context.Context, key int) (Poolable, error) {
	s := p.factory()
	if err := s.Connect(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect session %d: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close()
		return nil, ErrClosed
	}
	p.sessions[key] = s
	return s, nil
}

// Close closes all sessions. Later Acquire calls fail with ErrClosed.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	p.closed = true
	keys := make([]int, 0, len(p.sessions))
	for k := range p.sessions {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	sessions := make([]Poolable, 0, len(keys))
	for _, k := range keys {
		sessions = append(sessions, p.sessions[k])
	}
	p.sessions = make(map[int]Poolable)
	p.mu.Unlock()

	var errs []string
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
