package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInitialized is returned by Host.Initialize while a broker
	// is live.
	ErrAlreadyInitialized = errors.New("broker: already initialized")
	// ErrNotInitialized is returned by operations on a broker that is not
	// initialized or was shut down.
	ErrNotInitialized = errors.New("broker: not initialized")
	// ErrBackpressure is returned by Publish under OverflowReject when a
	// subscriber mailbox is full. OverflowError wraps it.
	ErrBackpressure = errors.New("broker: subscriber mailbox full")
)

// DeliveryError is passed to Subscriber.OnError when OnNext failed.
type DeliveryError struct {
	Topic        string
	Subscription string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("broker: delivery to %s on topic %q failed: %v", e.Subscription, e.Topic, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// OverflowError is passed to Subscriber.OnError under OverflowDrop after
// messages were skipped because the subscriber's mailbox was full. It is
// delivered in stream position: after the messages queued before the
// first skipped one.
type OverflowError struct {
	Topic        string
	Subscription string
	// Dropped is the number of messages the subscriber did not receive.
	Dropped int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("broker: %d messages dropped for %s on topic %q: mailbox full", e.Dropped, e.Subscription, e.Topic)
}

func (e *OverflowError) Unwrap() error {
	return ErrBackpressure
}

// RecoveryError wraps a panic value with the stack trace.
type RecoveryError struct {
	// PanicValue is the original value that was passed to panic().
	PanicValue any
	// StackTrace contains the full stack trace at the point of panic.
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.PanicValue)
}
