// Package broker provides an in-process publish/subscribe broker with
// per-topic message retention.
//
// Each Topic keeps its most recent messages in a bounded history. A new
// subscriber first receives that history, synchronously inside Subscribe,
// and then every message published afterwards, in publish order and
// without gaps or duplicates:
//
//	status := broker.NewTopic[TaskStatus]("tasks/status", 16)
//
//	b := broker.New(broker.Config{})
//	defer b.Shutdown(context.Background())
//
//	sub, err := broker.Subscribe(b, status, broker.SubscriberFuncs[TaskStatus]{
//	    Next: func(ctx context.Context, s TaskStatus) error {
//	        render(s)
//	        return nil
//	    },
//	})
//
//	err = broker.Publish(ctx, b, status, TaskStatus{ID: "build", Done: true})
//
// Callbacks run on a shared, elastic worker pool, so Publish never waits
// for delivery and a slow subscriber does not hold up the others. Each
// subscriber has a bounded mailbox. By default a full mailbox skips the
// message for that subscriber only and later reports the gap to its
// OnError as an *OverflowError. Config.Overflow can instead make Publish
// block or fail with ErrBackpressure.
//
// A failing OnNext, by error or panic, is reported to the same
// subscriber's OnError and delivery continues with the next message.
package broker
