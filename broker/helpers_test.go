package broker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fxsml/reactive/broker"
)

// recorder is a Subscriber that keeps everything it receives.
type recorder[T any] struct {
	mu        sync.Mutex
	msgs      []T
	errs      []error
	completed int
}

func (r *recorder[T]) OnNext(_ context.Context, msg T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[T]) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recorder[T]) received() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recorder[T]) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

func (r *recorder[T]) completions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// waitLen waits until r received at least n messages.
func (r *recorder[T]) waitLen(t *testing.T, n int) []T {
	t.Helper()
	waitFor(t, func() bool { return len(r.received()) >= n })
	return r.received()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func newBroker(t *testing.T, cfg broker.Config) *broker.Broker {
	t.Helper()
	b := broker.New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Shutdown(ctx)
	})
	return b
}

func publishAll[T any](t *testing.T, b *broker.Broker, topic *broker.Topic[T], msgs ...T) {
	t.Helper()
	for _, msg := range msgs {
		if err := broker.Publish(context.Background(), b, topic, msg); err != nil {
			t.Fatalf("Publish(%v) failed: %v", msg, err)
		}
	}
}

// gate is a subscriber whose OnNext blocks until released, the context is
// cancelled, or the message is not the gated one.
type gate struct {
	recorder[int]
	block   int
	entered chan struct{}
	release chan struct{}
}

func newGate(block int) *gate {
	return &gate{
		block:   block,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gate) OnNext(ctx context.Context, msg int) error {
	if msg == g.block {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return g.recorder.OnNext(ctx, msg)
}
