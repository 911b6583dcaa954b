package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxsml/reactive/internal/pool"
)

// deliverer is the unit scheduled on the pool: one subscriber's pending
// messages.
type deliverer interface {
	drain()
	abandon()
}

// topicChannel is the type-erased view of a channel[T] held by the registry.
type topicChannel interface {
	name() string
	subscribers() int
	close()
}

// Stats is a point-in-time view of broker state.
type Stats struct {
	Topics           int
	Subscribers      int
	Workers          int64
	ActiveWorkers    int64
	QueuedDeliveries int
}

// Broker routes messages from publishers to the subscribers of a topic,
// retaining the most recent messages of each topic for late subscribers.
//
// A Broker is created running by New and stays usable until Shutdown.
// Create one per process at the composition root and pass it to the
// components that publish or subscribe, or hold it in a Host.
type Broker struct {
	cfg  Config
	pool *pool.Pool[deliverer]

	mu       sync.RWMutex
	channels map[any]topicChannel // keyed by *Topic[T]
	closed   bool
}

// New creates a running broker.
func New(cfg Config) *Broker {
	cfg = cfg.parse()
	b := &Broker{
		cfg:      cfg,
		channels: make(map[any]topicChannel),
	}
	b.pool = pool.New(cfg.Pool.internal(), deliverer.drain, deliverer.abandon)
	return b
}

// IsInitialized reports whether the broker accepts operations.
func (b *Broker) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// Shutdown closes every topic, calling OnComplete once for each
// subscriber and abandoning undelivered messages, then stops the worker
// pool. It waits for running callbacks until ctx is done.
// Calling Shutdown twice returns ErrNotInitialized.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrNotInitialized
	}
	b.closed = true
	channels := b.channels
	b.channels = make(map[any]topicChannel)
	b.mu.Unlock()

	for _, c := range channels {
		c.close()
	}

	if err := b.pool.Stop(ctx); err != nil {
		b.cfg.Logger.Warn("[REACTIVE] Shutdown abandoned running callbacks", slog.Any("error", err))
		return fmt.Errorf("broker: shutdown: %w", err)
	}

	b.cfg.Logger.Info("[REACTIVE] Broker shut down", slog.Int("topics", len(channels)))
	return nil
}

// Stats returns the current registry and pool state.
func (b *Broker) Stats() Stats {
	b.mu.RLock()
	s := Stats{Topics: len(b.channels)}
	for _, c := range b.channels {
		s.Subscribers += c.subscribers()
	}
	b.mu.RUnlock()

	s.Workers = b.pool.TotalWorkers()
	s.ActiveWorkers = b.pool.ActiveWorkers()
	s.QueuedDeliveries = b.pool.QueueDepth()
	return s
}

// Publish retains msg on topic t and queues it for every current
// subscriber. It returns without waiting for delivery.
//
// When a subscriber's mailbox is full, Publish follows Config.Overflow:
// it waits for room until ctx ends, or fails with ErrBackpressure. In
// both failure cases the message is neither retained nor delivered.
func Publish[T any](ctx context.Context, b *Broker, t *Topic[T], msg T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := resolve(b, t)
	if err != nil {
		return err
	}
	return c.publish(ctx, msg)
}

// Subscribe registers sub for messages published on topic t. Before it
// returns, the retained messages of t are delivered to sub in publish
// order on the calling goroutine; later messages follow asynchronously.
func Subscribe[T any](b *Broker, t *Topic[T], sub Subscriber[T]) (*Subscription, error) {
	c, err := resolve(b, t)
	if err != nil {
		return nil, err
	}
	return c.subscribe(sub)
}

// Retained returns a copy of the messages currently retained on topic t,
// oldest first.
func Retained[T any](b *Broker, t *Topic[T]) ([]T, error) {
	c, err := resolve(b, t)
	if err != nil {
		return nil, err
	}
	return c.retained()
}

func (b *Broker) schedule(d deliverer) {
	if err := b.pool.Submit(context.Background(), d); err != nil {
		d.abandon()
	}
}
