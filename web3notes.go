package web3notes

import (
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/JPrieve/web3-notes/internal/platform"
	"github.com/JPrieve/web3-notes/pkg/core"
	"github.com/JPrieve/web3-notes/pkg/orchestrator"
	"github.com/JPrieve/web3-notes/pkg/query"
	"github.com/JPrieve/web3-notes/pkg/txn"
)

// --- Types ---

// Client is a wired notes client. It embeds the orchestrator, so Run,
// Dispatch, SubmitForm, Views and Summary are available directly.
type Client = platform.Client

// Config is the YAML form of the client settings.
type Config = platform.Config

// Outcome is the settled result of a mutation.
type Outcome = orchestrator.Outcome

// Handle tracks one submitted transaction.
type Handle = txn.Handle

// Key names one cached read view.
type Key = query.Key

// Entry is a read-view snapshot from the cache.
type Entry = query.Entry

// Note is a note as the ledger stores it.
type Note = core.Note

// --- Configuration ---

// Option defines a functional option for configuring a Client.
type Option = platform.Option

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithLedger injects the contract client. Without it a development ledger
// runs in process.
func WithLedger(l core.Ledger) Option {
	return platform.WithLedger(l)
}

// WithIdentity injects the account provider.
func WithIdentity(id core.Identity) Option {
	return platform.WithIdentity(id)
}

// WithAccount connects as a fixed account.
func WithAccount(addr common.Address) Option {
	return platform.WithAccount(addr)
}

// WithIdentityFile follows the account written in a file.
func WithIdentityFile(path string) Option {
	return platform.WithIdentityFile(path)
}

// WithDatabase persists the development ledger in a SQLite file.
func WithDatabase(path string) Option {
	return platform.WithDatabase(path)
}

// WithConfirmations sets how many blocks confirm a transaction.
func WithConfirmations(n uint64) Option {
	return platform.WithConfirmations(n)
}

// WithPollInterval sets how often pending transactions are looked up.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// WithLookupRate caps transaction lookups across all tracked handles.
func WithLookupRate(limit rate.Limit, burst int) Option {
	return platform.WithLookupRate(limit, burst)
}

// WithBlockTime makes the development ledger produce blocks on a timer.
func WithBlockTime(d time.Duration) Option {
	return platform.WithBlockTime(d)
}

// WithEventBuffer sets the per-subscriber buffer of cache events.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithOutcomeBuffer sets the buffer of the Outcomes channel.
func WithOutcomeBuffer(size int) Option {
	return platform.WithOutcomeBuffer(size)
}

// WithDevSafety controls the temp-dir sandbox applied under `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	return platform.New(opts...)
}

// Open creates a Client from a config file, with opts applied on top.
func Open(configPath string, opts ...Option) (*Client, error) {
	cfg, err := platform.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return platform.New(append(cfg.Options(), opts...)...)
}

// --- Config ---

// ConfigFile is the default config file name.
const ConfigFile = platform.ConfigFile

// ErrConfigNotFound is returned by FindConfig when no ConfigFile exists.
var ErrConfigNotFound = platform.ErrConfigNotFound

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// FindConfig looks upwards from startDir for a ConfigFile.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}

// --- Safety & Utils ---

// IsDevRun reports whether the process runs via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}
