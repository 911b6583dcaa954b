package broker

import "log/slog"

// resolve returns the channel of t, creating it on first use. Creation
// happens at most once per topic.
func resolve[T any](b *Broker, t *Topic[T]) (*channel[T], error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	c, ok := b.channels[t]
	b.mu.RUnlock()
	if ok {
		return c.(*channel[T]), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrNotInitialized
	}
	// Double-check after acquiring write lock
	if c, ok = b.channels[t]; ok {
		return c.(*channel[T]), nil
	}
	ch := newChannel(b, t)
	b.channels[t] = ch
	b.cfg.Logger.Debug("[REACTIVE] Topic created", slog.String("topic", t.name), slog.Int("capacity", t.capacity))
	return ch, nil
}
