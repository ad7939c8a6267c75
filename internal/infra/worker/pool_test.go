//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool(t *testing.T) {
	logger := zerolog.New(io.Discard)

	t.Run("should run submitted tasks", func(t *testing.T) {
		// --- Arrange ---
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p := NewPool(2, &logger)
		p.Start(ctx)
		defer p.Stop()

		var ran int32
		done := make(chan struct{}, 3)

		// --- Act ---
		for i := 0; i < 3; i++ {
			err := p.Submit(func(ctx context.Context) error {
				atomic.AddInt32(&ran, 1)
				done <- struct{}{}
				return errors.New("ignored")
			})
			if err != nil {
				t.Fatalf("expected submit to succeed, but got: %v", err)
			}
		}

		// --- Assert ---
		for i := 0; i < 3; i++ {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for tasks")
			}
		}
		if got := atomic.LoadInt32(&ran); got != 3 {
			t.Errorf("expected 3 tasks to run, but got %d", got)
		}
	})

	t.Run("should reject work when the queue is full", func(t *testing.T) {
		// Not started, so nothing drains the queue.
		p := NewPool(1, &logger)
		noop := func(ctx context.Context) error { return nil }
		for i := 0; i < 4; i++ {
			if err := p.Submit(noop); err != nil {
				t.Fatalf("expected submit %d to succeed, but got: %v", i, err)
			}
		}

		err := p.Submit(noop)

		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, but got %v", err)
		}
	})

	t.Run("should reject a nil task", func(t *testing.T) {
		p := NewPool(1, &logger)
		if err := p.Submit(nil); err == nil {
			t.Error("expected an error, but got nil")
		}
	})

	t.Run("should tolerate repeated Stop", func(t *testing.T) {
		p := NewPool(1, &logger)
		p.Start(context.Background())
		p.Stop()
		p.Stop()
	})
}
