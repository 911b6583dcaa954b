package broker

import (
	"context"
	"sync"
)

// Host owns the single broker of a process. The hosting application
// calls Initialize during startup and Shutdown during teardown, and hands
// the broker returned by Initialize (or Broker) to its components.
//
// The zero value is ready to use.
type Host struct {
	mu     sync.Mutex
	broker *Broker
}

// Initialize creates the broker. It fails with ErrAlreadyInitialized if a
// broker is live.
func (h *Host) Initialize(cfg Config) (*Broker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broker != nil {
		return nil, ErrAlreadyInitialized
	}
	h.broker = New(cfg)
	return h.broker, nil
}

// Shutdown shuts the live broker down. It fails with ErrNotInitialized if
// there is none. The host is reset even if ctx ends before running
// callbacks returned, so Initialize may be called again.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	b := h.broker
	h.broker = nil
	h.mu.Unlock()

	if b == nil {
		return ErrNotInitialized
	}
	return b.Shutdown(ctx)
}

// IsInitialized reports whether a broker is live.
func (h *Host) IsInitialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broker != nil
}

// Broker returns the live broker or ErrNotInitialized.
func (h *Host) Broker() (*Broker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broker == nil {
		return nil, ErrNotInitialized
	}
	return h.broker, nil
}
