package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxsml/reactive/internal/ring"
)

// channel holds the retained history and the subscribers of one topic.
// Lock order is channel.mu before mailbox.mu.
type channel[T any] struct {
	b     *Broker
	topic *Topic[T]

	mu      sync.Mutex
	history *ring.Ring[T] // nil when the topic retains nothing
	subs    map[*mailbox[T]]struct{}
	closed  bool
}

func newChannel[T any](b *Broker, t *Topic[T]) *channel[T] {
	c := &channel[T]{
		b:     b,
		topic: t,
		subs:  make(map[*mailbox[T]]struct{}),
	}
	if t.capacity > 0 {
		c.history = ring.New[T](t.capacity)
	}
	return c
}

func (c *channel[T]) name() string {
	return c.topic.name
}

func (c *channel[T]) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *channel[T]) publish(ctx context.Context, msg T) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrNotInitialized
		}

		if c.b.cfg.Overflow != OverflowDrop {
			if room := c.congested(); room != nil {
				c.mu.Unlock()
				if c.b.cfg.Overflow == OverflowReject {
					c.b.cfg.Observer.Rejected(c.topic.name)
					return fmt.Errorf("%w: topic %q", ErrBackpressure, c.topic.name)
				}
				select {
				case <-room:
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		evicted := c.history != nil && c.history.Push(msg)
		var ready []*mailbox[T]
		dropped := 0
		for m := range c.subs {
			schedule, skipped := m.enqueue(msg)
			if schedule {
				ready = append(ready, m)
			}
			if skipped {
				dropped++
			}
		}
		c.mu.Unlock()

		c.b.cfg.Observer.Published(c.topic.name, evicted)
		for range dropped {
			c.b.cfg.Observer.Dropped(c.topic.name)
		}
		for _, m := range ready {
			c.b.schedule(m)
		}
		return nil
	}
}

// congested returns a channel that is closed once a full mailbox has room,
// or nil if every mailbox can take a message. c.mu must be held.
func (c *channel[T]) congested() <-chan struct{} {
	for m := range c.subs {
		if room := m.waitRoom(); room != nil {
			return room
		}
	}
	return nil
}

func (c *channel[T]) subscribe(sub Subscriber[T]) (*Subscription, error) {
	m := newMailbox(c, sub)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrNotInitialized
	}
	var history []T
	if c.history != nil {
		history = c.history.Slice()
	}
	c.subs[m] = struct{}{}
	c.mu.Unlock()

	c.b.cfg.Observer.Subscribed(c.topic.name)
	c.b.cfg.Logger.Debug("[REACTIVE] Subscribed",
		slog.String("topic", c.topic.name),
		slog.String("subscription", m.id),
		slog.Int("replay", len(history)))

	m.replay(history)

	return &Subscription{
		id:     m.id,
		topic:  c.topic.name,
		cancel: func() { c.unsubscribe(m) },
	}, nil
}

func (c *channel[T]) unsubscribe(m *mailbox[T]) {
	c.mu.Lock()
	_, ok := c.subs[m]
	delete(c.subs, m)
	c.mu.Unlock()
	if !ok {
		return
	}

	m.cancel()
	c.b.cfg.Observer.Unsubscribed(c.topic.name)
	c.b.cfg.Logger.Debug("[REACTIVE] Unsubscribed",
		slog.String("topic", c.topic.name),
		slog.String("subscription", m.id))
}

func (c *channel[T]) retained() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotInitialized
	}
	if c.history == nil {
		return []T{}, nil
	}
	return c.history.Slice(), nil
}

func (c *channel[T]) close() {
	c.mu.Lock()
	c.closed = true
	subs := c.subs
	c.subs = nil
	if c.history != nil {
		c.history.Reset()
	}
	c.mu.Unlock()

	for m := range subs {
		m.close()
		c.b.cfg.Observer.Unsubscribed(c.topic.name)
	}
}
