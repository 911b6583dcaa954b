package broker

import "time"

// Observer is notified of broker activity. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	// Published is called after a message was retained and queued.
	// evicted reports that the oldest retained message was dropped.
	Published(topic string, evicted bool)
	// Rejected is called when Publish fails with ErrBackpressure.
	Rejected(topic string)
	// Dropped is called once for every subscriber that skipped a message
	// under OverflowDrop.
	Dropped(topic string)
	// Delivered is called after OnNext returned successfully.
	Delivered(topic string, d time.Duration)
	// Failed is called after OnNext returned an error or panicked.
	Failed(topic string)
	// Subscribed is called when a subscriber is registered.
	Subscribed(topic string)
	// Unsubscribed is called when a subscriber leaves, including shutdown.
	Unsubscribed(topic string)
}

type noopObserver struct{}

func (noopObserver) Published(string, bool)          {}
func (noopObserver) Rejected(string)                 {}
func (noopObserver) Dropped(string)                  {}
func (noopObserver) Delivered(string, time.Duration) {}
func (noopObserver) Failed(string)                   {}
func (noopObserver) Subscribed(string)               {}
func (noopObserver) Unsubscribed(string)             {}
