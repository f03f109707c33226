package identity

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/ethereum/go-ethereum/common"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// File reads the connected account from a file holding one hex address.
// Blank lines and lines starting with '#' are ignored. A missing or empty
// file means no account is connected.
//
// After Watch, edits to the file switch the account and are announced on
// Changes.
type File struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	addr    common.Address
	changes chan common.Address
	sup     stopper
}

type stopper interface {
	Stop(ctx context.Context) error
}

var _ core.Identity = (*File)(nil)

// FileOption configures a File.
type FileOption func(*File)

// WithLogger sets the logger for the file identity.
func WithLogger(logger *slog.Logger) FileOption {
	return func(f *File) {
		f.logger = logger
	}
}

// NewFile loads the account from path.
func NewFile(path string, opts ...FileOption) (*File, error) {
	f := &File{
		path:    path,
		changes: make(chan common.Address, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	if _, err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the watched file.
func (f *File) Path() string {
	return f.path
}

// Address implements core.Identity.
func (f *File) Address() (common.Address, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.addr, f.addr != (common.Address{})
}

// Changes receives the new account after each switch. Only the latest
// switch is buffered.
func (f *File) Changes() <-chan common.Address {
	return f.changes
}

// Reload rereads the file and reports whether the account changed.
func (f *File) Reload() (bool, error) {
	addr, err := readAccount(f.path)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if addr == f.addr {
		return false, nil
	}
	f.addr = addr

	// Senders hold mu, so after the drain the buffer has room.
	select {
	case <-f.changes:
	default:
	}
	f.changes <- addr
	f.logger.Info("account switched", "account", addr.Hex(), "path", f.path)
	return true, nil
}

// Watch follows the file until ctx is done or Close is called. The watcher
// runs under a supervisor and is restarted if it fails.
func (f *File) Watch(ctx context.Context) error {
	f.mu.Lock()
	if f.sup != nil {
		f.mu.Unlock()
		return errors.New("identity file already watched")
	}
	spec := supervisor.Spec{
		Name: "identity-file",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newFileWorker(f), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2,
			ResetDuration:   10 * time.Second,
			MaxRestarts:     5,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("identity", supervisor.StrategyOneForOne, spec)
	f.sup = sup
	f.mu.Unlock()

	return sup.Start(ctx)
}

// Close stops watching.
func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	sup := f.sup
	f.sup = nil
	f.mu.Unlock()

	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func readAccount(path string) (common.Address, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("read identity file: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !common.IsHexAddress(line) {
			return common.Address{}, fmt.Errorf("identity file %s: %q is not an address", path, line)
		}
		return common.HexToAddress(line), nil
	}
	return common.Address{}, sc.Err()
}
