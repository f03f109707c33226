package devnet

import (
	"context"
	"errors"
	"math/big"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// execute applies one call against the store and returns its receipt.
func (c *Chain) execute(ctx context.Context, cl call, ts uint64) *core.Receipt {
	switch cl.kind {
	case core.KindCreate:
		return c.createNote(ctx, cl, ts)
	case core.KindTip:
		return c.tipNote(ctx, cl)
	}

	n, ok, err := c.store.Get(ctx, cl.id)
	if err != nil {
		return reverted(err.Error())
	}
	if !ok {
		return reverted(core.RevertNoteNotFound)
	}
	if n.Author != cl.opts.From {
		return reverted(core.RevertNotAuthor)
	}

	switch cl.kind {
	case core.KindUpdate:
		n.Title = cl.title
		n.Content = cl.content
		n.Version++
		n.UpdatedAt = max(ts, n.CreatedAt)
	case core.KindDelete:
		if err := c.store.Delete(ctx, n.ID); err != nil {
			return reverted(err.Error())
		}
		return &core.Receipt{Status: core.ReceiptSuccessful}
	case core.KindToggleVisibility:
		n.IsPublic = !n.IsPublic
	case core.KindTogglePin:
		n.IsPinned = !n.IsPinned
	}

	if err := c.store.Put(ctx, n); err != nil {
		return reverted(err.Error())
	}
	return &core.Receipt{Status: core.ReceiptSuccessful}
}

func (c *Chain) createNote(ctx context.Context, cl call, ts uint64) *core.Receipt {
	n := core.Note{
		Author:       cl.opts.From,
		Title:        cl.title,
		Content:      cl.content,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		IsPublic:     cl.isPublic,
		TipsReceived: new(big.Int),
		Version:      1,
	}
	id, err := c.store.Insert(ctx, n)
	if err != nil {
		return reverted(err.Error())
	}
	return &core.Receipt{
		Status: core.ReceiptSuccessful,
		NoteID: id,
		Logs: []core.NoteCreated{{
			ID:       id,
			Author:   n.Author,
			Title:    n.Title,
			IsPublic: n.IsPublic,
		}},
	}
}

// tipNote does not require authorship; authors may tip their own notes.
func (c *Chain) tipNote(ctx context.Context, cl call) *core.Receipt {
	if cl.opts.Value == nil || cl.opts.Value.Sign() <= 0 {
		return reverted(core.RevertEmptyTip)
	}

	n, ok, err := c.store.Get(ctx, cl.id)
	if err != nil {
		return reverted(err.Error())
	}
	if !ok {
		return reverted(core.RevertNoteNotFound)
	}

	if n.TipsReceived == nil {
		n.TipsReceived = new(big.Int)
	}
	n.TipsReceived = new(big.Int).Add(n.TipsReceived, cl.opts.Value)

	if err := c.store.Put(ctx, n); err != nil {
		if errors.Is(err, core.ErrNoteNotFound) {
			return reverted(core.RevertNoteNotFound)
		}
		return reverted(err.Error())
	}
	return &core.Receipt{Status: core.ReceiptSuccessful}
}

func reverted(reason string) *core.Receipt {
	return &core.Receipt{Status: core.ReceiptReverted, RevertReason: reason}
}
