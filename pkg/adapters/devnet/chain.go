// Package devnet is an in-process notes contract with a mempool and block
// production. It exists for tests and the CLI; it is not a production ledger.
package devnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// ErrOffline is wrapped in a core.NetworkError while the node is unreachable.
var ErrOffline = errors.New("node unreachable")

// Signer approves or declines a transaction before broadcast.
type Signer func(opts core.TxOpts, kind core.Kind) error

// Option configures a Chain.
type Option func(*Chain)

// WithStore sets the contract state backend. Defaults to a MemoryStore.
func WithStore(s Store) Option {
	return func(c *Chain) {
		c.store = s
	}
}

// WithClock sets the block timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(c *Chain) {
		c.clock = clock
	}
}

// WithSigner installs a signing policy. A nil signer approves everything.
func WithSigner(s Signer) Option {
	return func(c *Chain) {
		c.signer = s
	}
}

// WithAutoMine includes every transaction in its own block on submission.
func WithAutoMine(auto bool) Option {
	return func(c *Chain) {
		c.autoMine = auto
	}
}

// WithLogger sets the logger for the chain.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

type call struct {
	kind     core.Kind
	opts     core.TxOpts
	id       uint64
	title    string
	content  string
	isPublic bool
}

type txRecord struct {
	hash    common.Hash
	call    call
	state   core.LookupState
	receipt *core.Receipt
}

// Chain implements core.Ledger.
type Chain struct {
	mu       sync.Mutex
	store    Store
	clock    func() time.Time
	signer   Signer
	autoMine bool
	offline  bool
	height   uint64
	nonce    uint64
	mempool  []*txRecord
	txs      map[common.Hash]*txRecord
	feed     event.Feed
	logger   *slog.Logger
}

var (
	_ core.Ledger            = (*Chain)(nil)
	_ core.NoteCreatedSource = (*Chain)(nil)
)

// New creates a Chain at height zero.
func New(opts ...Option) *Chain {
	c := &Chain{
		store: NewMemoryStore(),
		clock: time.Now,
		txs:   make(map[common.Hash]*txRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// --- Reads ---

func (c *Chain) GetUserNotes(ctx context.Context, user common.Address) ([]core.Note, error) {
	return c.filter(ctx, "getUserNotes", func(n core.Note) bool {
		return n.Author == user
	})
}

func (c *Chain) GetPublicNotes(ctx context.Context) ([]core.Note, error) {
	return c.filter(ctx, "getPublicNotes", func(n core.Note) bool {
		return n.IsPublic
	})
}

func (c *Chain) GetPinnedNotes(ctx context.Context, user common.Address) ([]core.Note, error) {
	return c.filter(ctx, "getPinnedNotes", func(n core.Note) bool {
		return n.Author == user && n.IsPinned
	})
}

func (c *Chain) GetUserNoteCount(ctx context.Context, user common.Address) (uint64, error) {
	notes, err := c.GetUserNotes(ctx, user)
	if err != nil {
		return 0, err
	}
	return uint64(len(notes)), nil
}

func (c *Chain) filter(ctx context.Context, op string, keep func(core.Note) bool) ([]core.Note, error) {
	if err := c.reachable(ctx, op); err != nil {
		return nil, err
	}

	all, err := c.store.List(ctx)
	if err != nil {
		return nil, &core.NetworkError{Op: op, Err: err}
	}

	notes := make([]core.Note, 0, len(all))
	for _, n := range all {
		if keep(n) {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

// --- Writes ---

func (c *Chain) CreateNote(ctx context.Context, opts core.TxOpts, title, content string, isPublic bool) (common.Hash, error) {
	return c.submit(ctx, call{kind: core.KindCreate, opts: opts, title: title, content: content, isPublic: isPublic})
}

func (c *Chain) UpdateNote(ctx context.Context, opts core.TxOpts, id uint64, title, content string) (common.Hash, error) {
	return c.submit(ctx, call{kind: core.KindUpdate, opts: opts, id: id, title: title, content: content})
}

func (c *Chain) DeleteNote(ctx context.Context, opts core.TxOpts, id uint64) (common.Hash, error) {
	return c.submit(ctx, call{kind: core.KindDelete, opts: opts, id: id})
}

func (c *Chain) ToggleNoteVisibility(ctx context.Context, opts core.TxOpts, id uint64) (common.Hash, error) {
	return c.submit(ctx, call{kind: core.KindToggleVisibility, opts: opts, id: id})
}

func (c *Chain) TogglePinNote(ctx context.Context, opts core.TxOpts, id uint64) (common.Hash, error) {
	return c.submit(ctx, call{kind: core.KindTogglePin, opts: opts, id: id})
}

func (c *Chain) TipNote(ctx context.Context, opts core.TxOpts, id uint64) (common.Hash, error) {
	return c.submit(ctx, call{kind: core.KindTip, opts: opts, id: id})
}

func (c *Chain) submit(ctx context.Context, cl call) (common.Hash, error) {
	op := cl.kind.String()
	if err := c.reachable(ctx, op); err != nil {
		return common.Hash{}, err
	}

	if c.signer != nil {
		if err := c.signer(cl.opts, cl.kind); err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", core.ErrSubmissionRejected, err)
		}
	}

	c.mu.Lock()
	c.nonce++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], c.nonce)
	hash := crypto.Keccak256Hash(cl.opts.From.Bytes(), nonce[:], []byte(op))

	if cl.opts.Value != nil {
		cl.opts.Value = new(big.Int).Set(cl.opts.Value)
	}
	rec := &txRecord{hash: hash, call: cl, state: core.LookupPending}
	c.txs[hash] = rec
	c.mempool = append(c.mempool, rec)

	var logs []core.NoteCreated
	if c.autoMine {
		logs = c.mineLocked(ctx)
	}
	c.mu.Unlock()

	c.logger.Debug("transaction submitted", "hash", hash.Hex(), "kind", op, "from", cl.opts.From.Hex())
	c.publish(logs)
	return hash, nil
}

// --- Blocks ---

// Mine includes every pending transaction in a new block and returns its number.
// An empty mempool still produces a block, which adds a confirmation to
// everything already included.
func (c *Chain) Mine(ctx context.Context) uint64 {
	c.mu.Lock()
	logs := c.mineLocked(ctx)
	height := c.height
	c.mu.Unlock()

	c.publish(logs)
	return height
}

// Height returns the latest block number.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Drop evicts a pending transaction from the mempool.
func (c *Chain) Drop(hash common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.txs[hash]
	if !ok || rec.state != core.LookupPending {
		return false
	}
	rec.state = core.LookupDropped
	for i, p := range c.mempool {
		if p == rec {
			c.mempool = append(c.mempool[:i], c.mempool[i+1:]...)
			break
		}
	}
	return true
}

// SetOffline makes every call fail with a NetworkError until reset.
func (c *Chain) SetOffline(offline bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offline = offline
}

// Lookup implements core.Network.
func (c *Chain) Lookup(ctx context.Context, hash common.Hash) (core.TxLookup, error) {
	if err := c.reachable(ctx, "lookup"); err != nil {
		return core.TxLookup{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.txs[hash]
	if !ok {
		return core.TxLookup{State: core.LookupUnknown}, nil
	}

	lookup := core.TxLookup{State: rec.state}
	if rec.receipt != nil {
		r := *rec.receipt
		r.Logs = append([]core.NoteCreated(nil), rec.receipt.Logs...)
		lookup.Receipt = &r
		lookup.Confirmations = c.height - r.BlockNumber + 1
	}
	return lookup, nil
}

// SubscribeNoteCreated implements core.NoteCreatedSource.
// Sends block mining until delivered, so subscribers should use a buffered channel.
func (c *Chain) SubscribeNoteCreated(ch chan<- core.NoteCreated) event.Subscription {
	return c.feed.Subscribe(ch)
}

func (c *Chain) reachable(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &core.NetworkError{Op: op, Err: err}
	}
	c.mu.Lock()
	offline := c.offline
	c.mu.Unlock()
	if offline {
		return &core.NetworkError{Op: op, Err: ErrOffline}
	}
	return nil
}

func (c *Chain) publish(logs []core.NoteCreated) {
	for _, l := range logs {
		c.feed.Send(l)
	}
}

func (c *Chain) mineLocked(ctx context.Context) []core.NoteCreated {
	c.height++
	ts := uint64(c.clock().Unix())

	var logs []core.NoteCreated
	for _, rec := range c.mempool {
		receipt := c.execute(ctx, rec.call, ts)
		receipt.TxHash = rec.hash
		receipt.BlockNumber = c.height
		rec.receipt = receipt
		rec.state = core.LookupIncluded
		logs = append(logs, receipt.Logs...)

		if receipt.Status == core.ReceiptReverted {
			c.logger.Debug("transaction reverted", "hash", rec.hash.Hex(), "reason", receipt.RevertReason)
		}
	}
	c.mempool = nil
	return logs
}
