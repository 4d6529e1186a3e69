package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

type mockSession struct {
	id          int64
	connected   bool
	closed      bool
	failConnect bool
}

func (m *mockSession) Connect(ctx context.Context) error {
	if m.failConnect {
		return fmt.Errorf("connection failed")
	}
	m.connected = true
	return nil
}

func (m *mockSession) Close() error {
	m.closed = true
	m.connected = false
	return nil
}

func newFactory() (func() Poolable, *int64) {
	var created int64
	return func() Poolable {
		return &mockSession{id: atomic.AddInt64(&created, 1)}
	}, &created
}

func TestSessionPool_AcquireIsLazyAndReused(t *testing.T) {
	factory, created := newFactory()
	p := NewSessionPool(factory)

	if *created != 0 {
		t.Fatalf("expected no sessions before first use, got %d", *created)
	}

	s1, reused, err := p.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if reused {
		t.Error("expected new session on first acquire")
	}
	if !s1.(*mockSession).connected {
		t.Error("expected session to be connected")
	}

	s2, reused, _ := p.Acquire(context.Background(), 1)
	if !reused || s2 != s1 {
		t.Error("expected same session for same key")
	}

	s3, _, _ := p.Acquire(context.Background(), 2)
	if s3 == s1 {
		t.Error("sessions must not be shared between keys")
	}
	if *created != 2 {
		t.Errorf("expected 2 sessions created, got %d", *created)
	}
}

func TestSessionPool_Replace(t *testing.T) {
	factory, _ := newFactory()
	p := NewSessionPool(factory)

	old, _, _ := p.Acquire(context.Background(), 7)
	fresh, err := p.Replace(context.Background(), 7)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if !old.(*mockSession).closed {
		t.Error("expected old session to be closed")
	}
	if fresh == old {
		t.Error("expected a new session")
	}
	if got, _, _ := p.Acquire(context.Background(), 7); got != fresh {
		t.Error("expected acquire to return the replacement")
	}
}

func TestSessionPool_ConnectFailure(t *testing.T) {
	p := NewSessionPool(func() Poolable { return &mockSession{failConnect: true} })

	if _, _, err := p.Acquire(context.Background(), 1); err == nil {
		t.Fatal("expected connect error")
	}
	if p.Len() != 0 {
		t.Errorf("failed session must not be stored, got %d", p.Len())
	}
}

func TestSessionPool_Close(t *testing.T) {
	factory, _ := newFactory()
	p := NewSessionPool(factory)

	a, _, _ := p.Acquire(context.Background(), 1)
	b, _, _ := p.Acquire(context.Background(), 2)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.(*mockSession).closed || !b.(*mockSession).closed {
		t.Error("expected all sessions closed")
	}
	if _, _, err := p.Acquire(context.Background(), 3); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
