package broker

import (
	"context"
	"sync"
)

// Subscriber receives the messages of one topic in publish order.
//
// OnNext is never called concurrently for the same subscription. Its
// context is cancelled when the subscription ends, either by
// Unsubscribe or by broker shutdown. A returned error or a panic is
// reported to OnError and delivery continues with the next message.
// OnComplete is called once when the broker shuts down.
type Subscriber[T any] interface {
	OnNext(ctx context.Context, msg T) error
	OnError(err error)
	OnComplete()
}

// SubscriberFuncs adapts plain functions to Subscriber. Nil fields are
// ignored.
type SubscriberFuncs[T any] struct {
	Next     func(ctx context.Context, msg T) error
	Error    func(err error)
	Complete func()
}

// OnNext calls f.Next.
func (f SubscriberFuncs[T]) OnNext(ctx context.Context, msg T) error {
	if f.Next == nil {
		return nil
	}
	return f.Next(ctx, msg)
}

// OnError calls f.Error.
func (f SubscriberFuncs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// OnComplete calls f.Complete.
func (f SubscriberFuncs[T]) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id     string
	topic  string
	cancel func()
	once   sync.Once
}

// ID returns the unique subscription id.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the name of the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe stops delivery of further messages and discards messages
// queued but not yet delivered. A callback already running may complete.
// It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
