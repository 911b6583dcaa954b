package broker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fxsml/reactive/broker"
)

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) inc(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[event]++
}

func (o *countingObserver) count(event string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[event]
}

func (o *countingObserver) Published(_ string, evicted bool) {
	o.inc("published")
	if evicted {
		o.inc("evicted")
	}
}

func (o *countingObserver) Rejected(string)                 { o.inc("rejected") }
func (o *countingObserver) Dropped(string)                  { o.inc("dropped") }
func (o *countingObserver) Delivered(string, time.Duration) { o.inc("delivered") }
func (o *countingObserver) Failed(string)                   { o.inc("failed") }
func (o *countingObserver) Subscribed(string)               { o.inc("subscribed") }
func (o *countingObserver) Unsubscribed(string)             { o.inc("unsubscribed") }

func TestObserver_Events(t *testing.T) {
	obs := &countingObserver{}
	b := broker.New(broker.Config{Observer: obs})
	topic := broker.NewTopic[int]("observed", 2)

	publishAll(t, b, topic, 1, 2, 3)

	rec := &recorder[int]{}
	sub, err := broker.Subscribe[int](b, topic, rec)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	failing := broker.SubscriberFuncs[int]{
		Next: func(context.Context, int) error { return errors.New("nope") },
	}
	if _, err := broker.Subscribe[int](b, topic, failing); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	publishAll(t, b, topic, 4)
	rec.waitLen(t, 3)
	waitFor(t, func() bool { return obs.count("failed") == 3 })
	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := map[string]int{
		"published":    4,
		"evicted":      2,
		"subscribed":   2,
		"delivered":    3,
		"failed":       3,
		"unsubscribed": 2,
	}
	for event, n := range want {
		if got := obs.count(event); got != n {
			t.Errorf("%s: got %d, want %d", event, got, n)
		}
	}
}
