package broker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fxsml/reactive/internal/ring"
)

type mailboxState int

const (
	mailboxOpen mailboxState = iota
	mailboxCancelled
	mailboxClosed
)

// mailbox queues the messages of one subscription. At most one drain runs
// at a time, which keeps per-subscriber delivery in publish order while
// different subscribers are served by different workers.
type mailbox[T any] struct {
	id        string
	c         *channel[T]
	sub       Subscriber[T]
	ctx       context.Context
	cancelCtx context.CancelFunc

	mu        sync.Mutex
	queue     *ring.Ring[T]
	state     mailboxState
	scheduled bool // a drain is queued or running
	replaying bool // Subscribe is still delivering history
	room      chan struct{}
	dropped   int // messages skipped since the last overflow report
	gap       int // queued messages ahead of the first skipped one

	completeOnce sync.Once
}

func newMailbox[T any](c *channel[T], sub Subscriber[T]) *mailbox[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &mailbox[T]{
		id:        uuid.NewString(),
		c:         c,
		sub:       sub,
		ctx:       ctx,
		cancelCtx: cancel,
		queue:     ring.New[T](c.b.cfg.MailboxSize),
		replaying: true,
	}
}

// enqueue appends msg and reports whether the caller must schedule a drain.
// A full mailbox skips msg and reports it as dropped; only OverflowDrop
// reaches that case because the other policies wait for room first.
func (m *mailbox[T]) enqueue(msg T) (schedule, dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != mailboxOpen {
		return false, false
	}
	if m.queue.Full() {
		// A full queue always has a drain or replay pending.
		if m.dropped == 0 {
			m.gap = m.queue.Len()
		}
		m.dropped++
		return false, true
	}
	m.queue.Push(msg)
	if m.scheduled || m.replaying {
		return false, false
	}
	m.scheduled = true
	return true, false
}

// waitRoom returns nil if the mailbox can take a message, otherwise a
// channel closed when it can.
func (m *mailbox[T]) waitRoom() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != mailboxOpen || !m.queue.Full() {
		return nil
	}
	if m.room == nil {
		m.room = make(chan struct{})
	}
	return m.room
}

// signalRoom wakes publishers waiting for room. m.mu must be held.
func (m *mailbox[T]) signalRoom() {
	if m.room != nil {
		close(m.room)
		m.room = nil
	}
}

func (m *mailbox[T]) replay(history []T) {
	for _, msg := range history {
		if m.ctx.Err() != nil {
			break
		}
		m.deliver(msg)
	}

	m.mu.Lock()
	m.replaying = false
	switch {
	case m.state == mailboxClosed:
		m.mu.Unlock()
		m.complete()
	case m.state == mailboxOpen && m.queue.Len() > 0:
		m.scheduled = true
		m.mu.Unlock()
		m.c.b.schedule(m)
	default:
		m.mu.Unlock()
	}
}

func (m *mailbox[T]) drain() {
	for {
		m.mu.Lock()
		if m.state != mailboxOpen {
			closed := m.state == mailboxClosed
			m.scheduled = false
			m.mu.Unlock()
			if closed {
				m.complete()
			}
			return
		}
		if m.dropped > 0 && m.gap == 0 {
			n := m.dropped
			m.dropped = 0
			m.mu.Unlock()
			m.overflow(n)
			continue
		}
		msg, ok := m.queue.Pop()
		if !ok {
			m.scheduled = false
			m.mu.Unlock()
			return
		}
		if m.gap > 0 {
			m.gap--
		}
		m.signalRoom()
		m.mu.Unlock()

		m.deliver(msg)
	}
}

// abandon is called when a scheduled drain will never run.
func (m *mailbox[T]) abandon() {
	m.mu.Lock()
	m.scheduled = false
	closed := m.state == mailboxClosed
	m.mu.Unlock()
	if closed {
		m.complete()
	}
}

// reset drops everything queued. m.mu must be held.
func (m *mailbox[T]) reset() {
	m.queue.Reset()
	m.dropped = 0
	m.gap = 0
	m.signalRoom()
}

// cancel ends the subscription without completion.
func (m *mailbox[T]) cancel() {
	m.mu.Lock()
	if m.state == mailboxOpen {
		m.state = mailboxCancelled
		m.reset()
	}
	m.mu.Unlock()
	m.cancelCtx()
}

// close ends the subscription with completion. OnComplete runs here unless
// a drain or replay is in progress, in which case that goroutine runs it.
func (m *mailbox[T]) close() {
	m.mu.Lock()
	if m.state != mailboxOpen {
		m.mu.Unlock()
		return
	}
	m.state = mailboxClosed
	m.reset()
	idle := !m.scheduled && !m.replaying
	m.mu.Unlock()

	m.cancelCtx()
	if idle {
		m.complete()
	}
}

func (m *mailbox[T]) complete() {
	m.completeOnce.Do(func() {
		defer m.recoverCallback("OnComplete")
		m.sub.OnComplete()
	})
}

func (m *mailbox[T]) deliver(msg T) {
	name := m.c.topic.name
	start := time.Now()

	err := m.next(msg)
	if err == nil {
		m.c.b.cfg.Observer.Delivered(name, time.Since(start))
		return
	}

	m.c.b.cfg.Observer.Failed(name)
	m.c.b.cfg.Logger.Warn("[REACTIVE] Delivery failed",
		slog.String("topic", name),
		slog.String("subscription", m.id),
		slog.Any("error", err))

	defer m.recoverCallback("OnError")
	m.sub.OnError(&DeliveryError{Topic: name, Subscription: m.id, Err: err})
}

// overflow reports skipped messages to the subscriber.
func (m *mailbox[T]) overflow(dropped int) {
	name := m.c.topic.name
	m.c.b.cfg.Logger.Warn("[REACTIVE] Subscriber mailbox overflowed",
		slog.String("topic", name),
		slog.String("subscription", m.id),
		slog.Int("dropped", dropped))

	defer m.recoverCallback("OnError")
	m.sub.OnError(&OverflowError{Topic: name, Subscription: m.id, Dropped: dropped})
}

func (m *mailbox[T]) next(msg T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RecoveryError{
				PanicValue: r,
				StackTrace: string(debug.Stack()),
			}
		}
	}()
	return m.sub.OnNext(m.ctx, msg)
}

func (m *mailbox[T]) recoverCallback(callback string) {
	if r := recover(); r != nil {
		m.c.b.cfg.Logger.Error("[REACTIVE] Subscriber callback panicked",
			slog.String("callback", callback),
			slog.String("topic", m.c.topic.name),
			slog.String("subscription", m.id),
			slog.Any("panic", r))
	}
}
