package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/JPrieve/web3-notes/pkg/adapters/devnet"
	"github.com/JPrieve/web3-notes/pkg/adapters/identity"
	"github.com/JPrieve/web3-notes/pkg/adapters/sqlite"
	"github.com/JPrieve/web3-notes/pkg/core"
	"github.com/JPrieve/web3-notes/pkg/orchestrator"
	"github.com/JPrieve/web3-notes/pkg/query"
	"github.com/JPrieve/web3-notes/pkg/txn"
)

// Client is a fully wired notes client: cache, submitter, watcher and
// orchestrator over one ledger and one identity.
type Client struct {
	*orchestrator.Orchestrator

	Ledger    core.Ledger
	Identity  core.Identity
	Watcher   *txn.Watcher
	Submitter *txn.Submitter

	// Devnet is the in-process ledger, nil when one was injected.
	Devnet *devnet.Chain

	closers []func(ctx context.Context) error
}

// New wires a Client.
//
//	client, err := platform.New(platform.WithAccount(addr), platform.WithDatabase("notes.db"))
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	if err := c.openLedger(o); err != nil {
		return nil, err
	}
	if err := c.openIdentity(o); err != nil {
		return nil, err
	}

	txnOpts := []txn.Option{
		txn.WithLogger(o.logger),
		txn.WithConfirmations(o.confirmations),
	}
	if o.pollInterval > 0 {
		txnOpts = append(txnOpts, txn.WithPollInterval(o.pollInterval))
	}
	if o.lookupLimit > 0 {
		txnOpts = append(txnOpts, txn.WithLookupRate(o.lookupLimit, o.lookupBurst))
	}
	c.Watcher = txn.NewWatcher(c.Ledger, txnOpts...)
	c.closers = append(c.closers, func(context.Context) error { return c.Watcher.Close() })
	c.Submitter = txn.NewSubmitter(c.Ledger, c.Identity, c.Watcher, txnOpts...)

	cacheOpts := []query.Option{query.WithLogger(o.logger)}
	if o.eventBuffer > 0 {
		cacheOpts = append(cacheOpts, query.WithEventBuffer(o.eventBuffer))
	}
	cache := query.New(c.Ledger, cacheOpts...)
	c.closers = append(c.closers, func(context.Context) error { return cache.Close() })

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(o.logger)}
	if o.outcomeBuffer > 0 {
		orchOpts = append(orchOpts, orchestrator.WithOutcomeBuffer(o.outcomeBuffer))
	}
	c.Orchestrator = orchestrator.New(cache, c.Submitter, c.Watcher, c.Identity, orchOpts...)

	ok = true
	return c, nil
}

// Close stops every component in reverse order of construction.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if c.Orchestrator != nil {
		errs = append(errs, c.Orchestrator.Close())
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i](ctx))
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Client) openLedger(o *options) error {
	if o.ledger != nil {
		c.Ledger = o.ledger
		return nil
	}

	chainOpts := []devnet.Option{
		devnet.WithLogger(o.logger),
		devnet.WithAutoMine(true),
	}
	if o.database != "" {
		path := ResolveDatabasePath(o.database, o.devSafety && IsDevRun())
		if path != o.database {
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "db", path)
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open ledger database: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return store.Close() })
		chainOpts = append(chainOpts, devnet.WithStore(store))
	}

	chain := devnet.New(chainOpts...)
	c.Ledger = chain
	c.Devnet = chain

	if o.blockTime > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.closers = append(c.closers, func(context.Context) error {
			cancel()
			return nil
		})
		produceBlocks(ctx, chain, o.blockTime, o.logger)
	}
	return nil
}

func (c *Client) openIdentity(o *options) error {
	switch {
	case o.identity != nil:
		c.Identity = o.identity
	case o.identityFile != "":
		f, err := identity.NewFile(o.identityFile, identity.WithLogger(o.logger))
		if err != nil {
			return err
		}
		if err := f.Watch(context.Background()); err != nil {
			return fmt.Errorf("watch identity file: %w", err)
		}
		c.closers = append(c.closers, f.Close)
		c.Identity = f
	default:
		c.Identity = identity.NewStatic(o.account)
	}
	return nil
}

// produceBlocks mines a block every interval until ctx is done.
func produceBlocks(ctx context.Context, chain *devnet.Chain, every time.Duration, logger *slog.Logger) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				height := chain.Mine(ctx)
				logger.Debug("block produced", "height", height)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("block producer failed", "error", err)
	}))
}
