package broker

import "fmt"

// Topic identifies a typed stream of messages. Identity is the pointer:
// two topics created with the same name are different streams, so
// collaborators must share one *Topic to reach the same subscribers.
type Topic[T any] struct {
	name     string
	capacity int
}

// NewTopic creates a topic retaining the last capacity messages for
// replay to late subscribers. A capacity of zero disables retention.
func NewTopic[T any](name string, capacity int) *Topic[T] {
	if capacity < 0 {
		panic("broker: topic capacity must be >= 0")
	}
	return &Topic[T]{name: name, capacity: capacity}
}

// Name returns the name given to NewTopic. It labels logs and metrics and
// does not identify the topic.
func (t *Topic[T]) Name() string {
	return t.name
}

// Capacity returns the number of retained messages.
func (t *Topic[T]) Capacity() int {
	return t.capacity
}

// String returns the name and capacity, for logging.
func (t *Topic[T]) String() string {
	return fmt.Sprintf("%s[%d]", t.name, t.capacity)
}
