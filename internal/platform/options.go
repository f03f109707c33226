package platform

import (
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// options holds the internal configuration for a Client.
type options struct {
	ledger        core.Ledger
	identity      core.Identity
	logger        *slog.Logger
	database      string
	account       common.Address
	identityFile  string
	confirmations uint64
	pollInterval  time.Duration
	blockTime     time.Duration
	eventBuffer   int
	outcomeBuffer int
	lookupLimit   rate.Limit
	lookupBurst   int
	devSafety     bool
}

// Option defines a functional option for configuring a Client.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		confirmations: 1,
		devSafety:     true,
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLedger injects the contract client. Without it a development ledger
// is started in process.
func WithLedger(l core.Ledger) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithIdentity injects the account provider. It takes precedence over
// WithAccount and WithIdentityFile.
func WithIdentity(id core.Identity) Option {
	return func(o *options) {
		o.identity = id
	}
}

// WithAccount connects as a fixed account.
func WithAccount(addr common.Address) Option {
	return func(o *options) {
		o.account = addr
	}
}

// WithIdentityFile reads the account from a file and follows edits to it.
func WithIdentityFile(path string) Option {
	return func(o *options) {
		o.identityFile = path
	}
}

// WithDatabase persists the development ledger in a SQLite file.
// Empty keeps it in memory.
func WithDatabase(path string) Option {
	return func(o *options) {
		o.database = path
	}
}

// WithConfirmations sets how many blocks a transaction needs before it is
// confirmed. Values below 1 are raised to 1.
func WithConfirmations(n uint64) Option {
	return func(o *options) {
		o.confirmations = max(n, 1)
	}
}

// WithPollInterval sets how often pending transactions are looked up.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithLookupRate caps transaction lookups across all tracked handles.
func WithLookupRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.lookupLimit = limit
		o.lookupBurst = burst
	}
}

// WithBlockTime makes the development ledger produce a block at this
// interval, so transactions gain confirmations over time. Zero disables it.
func WithBlockTime(d time.Duration) Option {
	return func(o *options) {
		o.blockTime = d
	}
}

// WithEventBuffer sets the per-subscriber buffer of cache events.
// Zero means default (64).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithOutcomeBuffer sets the buffer of the Outcomes channel.
// Zero means default (16).
func WithOutcomeBuffer(size int) Option {
	return func(o *options) {
		o.outcomeBuffer = size
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) the database is moved into a temporary
// directory so development runs never touch a real ledger file.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}
