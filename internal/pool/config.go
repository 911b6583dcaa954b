package pool

import "time"

// Default configuration values.
const (
	DefaultMinWorkers     = 1
	DefaultMaxWorkers     = 256
	DefaultQueueSize      = 1024
	DefaultScaleDownAfter = 30 * time.Second
	DefaultCheckInterval  = 1 * time.Second
)

// Config configures a Pool. Zero values use the defaults above.
type Config struct {
	// MinWorkers is the number of workers kept alive while idle.
	MinWorkers int

	// MaxWorkers bounds the number of concurrently running tasks.
	MaxWorkers int

	// QueueSize bounds the number of submitted tasks waiting for a worker.
	QueueSize int

	// ScaleDownAfter is how long a worker above MinWorkers may stay idle
	// before it is retired.
	ScaleDownAfter time.Duration

	// CheckInterval is how often idle workers are evaluated.
	CheckInterval time.Duration
}

func (c Config) parse() Config {
	if c.MinWorkers <= 0 {
		c.MinWorkers = DefaultMinWorkers
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.MinWorkers > c.MaxWorkers {
		c.MinWorkers = c.MaxWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ScaleDownAfter <= 0 {
		c.ScaleDownAfter = DefaultScaleDownAfter
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}
