package txn

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultConfirmations = 1
	// DefaultLookupRate caps receipt lookups across all tracked handles.
	DefaultLookupRate = rate.Limit(20)
)

type config struct {
	logger        *slog.Logger
	pollInterval  time.Duration
	confirmations uint64
	lookupRate    rate.Limit
	lookupBurst   int
}

func newConfig(opts []Option) config {
	cfg := config{
		pollInterval:  DefaultPollInterval,
		confirmations: DefaultConfirmations,
		lookupRate:    DefaultLookupRate,
		lookupBurst:   5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// Option configures a Submitter or Watcher.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithPollInterval sets how often a pending transaction is looked up.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithConfirmations sets how many blocks must include a transaction before
// it counts as confirmed. Values below 1 are raised to 1.
func WithConfirmations(n uint64) Option {
	return func(c *config) {
		c.confirmations = max(n, 1)
	}
}

// WithLookupRate limits lookups per second shared by every tracked handle.
// rate.Inf disables the limit.
func WithLookupRate(limit rate.Limit, burst int) Option {
	return func(c *config) {
		c.lookupRate = limit
		c.lookupBurst = max(burst, 1)
	}
}
