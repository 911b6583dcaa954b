// Package pool provides the elastic worker pool that runs subscriber
// callbacks off the publisher's goroutine.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when submitting to, or stopping, a stopped pool.
var ErrStopped = errors.New("pool: stopped")

// Pool runs handle for every submitted item on a dynamic set of workers.
// A worker is spawned whenever an item is submitted and no worker is free,
// up to MaxWorkers. Workers above MinWorkers are retired once idle for
// ScaleDownAfter.
type Pool[T any] struct {
	cfg    Config
	handle func(T)
	onDrop func(T)

	mu      sync.Mutex // guards workers and nextID
	workers map[int]*worker
	nextID  int

	stateMu  sync.RWMutex // held for reading by Submit
	stopping bool

	totalWorkers  atomic.Int64
	activeWorkers atomic.Int64
	pending       atomic.Int64 // submitted items not yet handled or dropped

	queue    chan T
	done     chan struct{}
	stopOnce sync.Once

	workerWg sync.WaitGroup
	scalerWg sync.WaitGroup
}

type worker struct {
	id         int
	busy       bool
	lastActive time.Time
	stopCh     chan struct{}
}

// New creates and starts a pool. onDrop, if non-nil, receives every item
// still queued when the pool is stopped.
func New[T any](cfg Config, handle func(T), onDrop func(T)) *Pool[T] {
	cfg = cfg.parse()
	p := &Pool[T]{
		cfg:     cfg,
		handle:  handle,
		onDrop:  onDrop,
		workers: make(map[int]*worker),
		queue:   make(chan T, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	for range cfg.MinWorkers {
		p.spawnWorker()
	}

	p.scalerWg.Add(1)
	go p.runScaler()

	return p
}

// TotalWorkers returns the current number of workers.
func (p *Pool[T]) TotalWorkers() int64 {
	return p.totalWorkers.Load()
}

// ActiveWorkers returns the number of workers currently handling an item.
func (p *Pool[T]) ActiveWorkers() int64 {
	return p.activeWorkers.Load()
}

// QueueDepth returns the number of items waiting for a worker.
func (p *Pool[T]) QueueDepth() int {
	return len(p.queue)
}

// Submit queues item for handling. It blocks while the queue is full and
// returns ErrStopped once the pool is stopped, or ctx.Err() if ctx ends first.
func (p *Pool[T]) Submit(ctx context.Context, item T) error {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	if p.stopping {
		return ErrStopped
	}

	if p.pending.Add(1) > p.totalWorkers.Load() {
		p.spawnWorker()
	}

	select {
	case p.queue <- item:
		return nil
	case <-p.done:
		p.pending.Add(-1)
		return ErrStopped
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	}
}

// Stop stops accepting items, passes queued items to the drop handler and
// waits for running handlers to return until ctx is done.
func (p *Pool[T]) Stop(ctx context.Context) error {
	first := false
	p.stopOnce.Do(func() {
		first = true
		close(p.done)
	})
	if !first {
		return ErrStopped
	}

	// Blocked submitters observe done and release their read locks.
	p.stateMu.Lock()
	p.stopping = true
	p.stateMu.Unlock()

drain:
	for {
		select {
		case item := <-p.queue:
			p.pending.Add(-1)
			if p.onDrop != nil {
				p.onDrop(item)
			}
		default:
			break drain
		}
	}

	finished := make(chan struct{})
	go func() {
		// The scaler may still spawn while retiring a worker.
		p.scalerWg.Wait()
		p.workerWg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[T]) spawnWorker() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalWorkers.Load() >= int64(p.cfg.MaxWorkers) {
		return
	}

	w := &worker{
		id:         p.nextID,
		lastActive: time.Now(),
		stopCh:     make(chan struct{}),
	}
	p.nextID++
	p.workers[w.id] = w
	p.totalWorkers.Add(1)

	p.workerWg.Add(1)
	go p.runWorker(w)
}

func (p *Pool[T]) stopWorker(id int) {
	p.mu.Lock()
	w, ok := p.workers[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.workers, id)
	p.mu.Unlock()

	close(w.stopCh)
	// A Submit that counted this worker as free before the decrement did
	// not spawn; make sure its item still finds a worker.
	if p.totalWorkers.Add(-1) < p.pending.Load() {
		p.spawnWorker()
	}
}

func (p *Pool[T]) runWorker(w *worker) {
	defer p.workerWg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case <-p.done:
			return
		case item := <-p.queue:
			p.setBusy(w, true)
			p.activeWorkers.Add(1)
			p.handle(item)
			p.activeWorkers.Add(-1)
			p.pending.Add(-1)
			p.setBusy(w, false)
		}
	}
}

func (p *Pool[T]) setBusy(w *worker, busy bool) {
	p.mu.Lock()
	w.busy = busy
	w.lastActive = time.Now()
	p.mu.Unlock()
}

func (p *Pool[T]) runScaler() {
	defer p.scalerWg.Done()

	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.evaluate(now)
		}
	}
}

// evaluate retires at most one idle worker above MinWorkers.
func (p *Pool[T]) evaluate(now time.Time) {
	if p.totalWorkers.Load() <= int64(p.cfg.MinWorkers) {
		return
	}

	p.mu.Lock()
	idle := -1
	for id, w := range p.workers {
		if !w.busy && now.Sub(w.lastActive) >= p.cfg.ScaleDownAfter {
			idle = id
			break
		}
	}
	p.mu.Unlock()

	if idle >= 0 {
		p.stopWorker(idle)
	}
}
