package broker

import (
	"log/slog"
	"time"

	"github.com/fxsml/reactive/internal/pool"
)

// DefaultMailboxSize is the per-subscriber queue bound used when
// Config.MailboxSize is not set.
const DefaultMailboxSize = 256

// OverflowPolicy decides what Publish does when a subscriber's mailbox
// is full.
type OverflowPolicy string

const (
	// OverflowDrop skips a full subscriber and delivers to the others.
	// The skipped subscriber receives an *OverflowError through OnError
	// once it catches up.
	OverflowDrop OverflowPolicy = "drop"
	// OverflowBlock makes Publish wait for room or for its context to end.
	OverflowBlock OverflowPolicy = "block"
	// OverflowReject makes Publish fail with ErrBackpressure.
	OverflowReject OverflowPolicy = "reject"
)

// Logger defines an interface for logging at different severity levels.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PoolConfig configures the worker pool executing subscriber callbacks.
// Zero values use sensible defaults.
type PoolConfig struct {
	// MinWorkers is the number of workers kept alive while idle.
	// Default: 1
	MinWorkers int `yaml:"min_workers"`

	// MaxWorkers bounds the number of callbacks running at once.
	// Default: 256
	MaxWorkers int `yaml:"max_workers"`

	// QueueSize bounds the number of scheduled deliveries waiting for a
	// worker. Scheduling blocks while it is full.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// ScaleDownAfter is how long a surplus worker may stay idle.
	// Default: 30s
	ScaleDownAfter time.Duration `yaml:"scale_down_after"`

	// CheckInterval is how often idle workers are evaluated.
	// Default: 1s
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c PoolConfig) internal() pool.Config {
	return pool.Config{
		MinWorkers:     c.MinWorkers,
		MaxWorkers:     c.MaxWorkers,
		QueueSize:      c.QueueSize,
		ScaleDownAfter: c.ScaleDownAfter,
		CheckInterval:  c.CheckInterval,
	}
}

// Config configures a Broker.
type Config struct {
	// Pool configures the callback worker pool.
	Pool PoolConfig `yaml:"pool"`

	// MailboxSize bounds the messages queued for a single subscriber.
	// Default: DefaultMailboxSize
	MailboxSize int `yaml:"mailbox_size"`

	// Overflow selects the reaction to a full subscriber mailbox.
	// Default: OverflowDrop
	Overflow OverflowPolicy `yaml:"overflow"`

	// Logger receives delivery failures and lifecycle events.
	// Default: slog.Default()
	Logger Logger `yaml:"-"`

	// Observer receives per-message notifications, typically for metrics.
	// Default: no-op
	Observer Observer `yaml:"-"`
}

func (c Config) parse() Config {
	if c.MailboxSize <= 0 {
		c.MailboxSize = DefaultMailboxSize
	}
	switch c.Overflow {
	case OverflowBlock, OverflowReject:
	default:
		c.Overflow = OverflowDrop
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = noopObserver{}
	}
	return c
}
