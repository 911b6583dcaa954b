// Package ring provides a fixed-size FIFO queue used for topic retention
// and subscriber mailboxes.
package ring

// Ring is a fixed-size FIFO queue with overwrite-on-full semantics.
// It is not safe for concurrent use.
type Ring[T any] struct {
	buf  []T
	head int
	size int
}

// New creates a ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring: capacity must be > 0")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Full() bool {
	return r.size == len(r.buf)
}

// Push appends x. If the ring is full the oldest element is overwritten
// and evicted reports true.
func (r *Ring[T]) Push(x T) (evicted bool) {
	if r.size < len(r.buf) {
		r.buf[r.index(r.size)] = x
		r.size++
		return false
	}

	r.buf[r.head] = x
	r.head = r.index(1)
	return true
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	x := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = r.index(1)
	r.size--
	return x, true
}

// Reset drops all elements.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}

// Slices returns a view of the data in logical order as two slices.
// The views alias the ring and are invalidated by the next mutation.
func (r *Ring[T]) Slices() (a, b []T) {
	if r.size == 0 {
		return nil, nil
	}
	end := r.head + r.size
	if end <= len(r.buf) {
		return r.buf[r.head:end], nil
	}
	return r.buf[r.head:], r.buf[:end-len(r.buf)]
}

// Slice returns a copy of the data in logical order.
func (r *Ring[T]) Slice() []T {
	a, b := r.Slices()

	out := make([]T, 0, r.size)
	out = append(out, a...)
	out = append(out, b...)

	return out
}

func (r *Ring[T]) index(offset int) int {
	i := r.head + offset
	if i >= len(r.buf) {
		i -= len(r.buf)
	}
	return i
}
