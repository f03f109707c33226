package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	web3notes "github.com/JPrieve/web3-notes"
	"github.com/JPrieve/web3-notes/pkg/core"
)

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid note id %q", s)
	}
	return id, nil
}

// findNote looks for id among the account's notes, then among public ones.
func findNote(ctx context.Context, client *web3notes.Client, id uint64) (core.Note, bool, error) {
	views := client.Views()
	for _, key := range []web3notes.Key{views.UserNotes, views.PublicNotes} {
		if key.Disabled() {
			continue
		}
		entry, err := client.Cache().Fetch(ctx, key)
		if err != nil {
			return core.Note{}, false, err
		}
		for _, n := range entry.Notes() {
			if n.ID == id {
				return n, true, nil
			}
		}
	}
	return core.Note{}, false, nil
}

// resolveNote returns a reference to id. An unknown note still yields one;
// the ledger decides.
func resolveNote(ctx context.Context, client *web3notes.Client, id uint64) (core.NoteRef, error) {
	n, ok, err := findNote(ctx, client, id)
	if err != nil {
		return core.NoteRef{}, err
	}
	if !ok {
		return core.NoteRef{ID: id}, nil
	}
	return n.Ref(), nil
}

// perform runs m to completion and reports the outcome.
func perform(ctx context.Context, client *web3notes.Client, w io.Writer, m core.Mutation) error {
	out, err := client.Run(ctx, m)
	if err != nil {
		if out.Handle != nil && out.Handle.Hash() != (common.Hash{}) {
			return fmt.Errorf("%s %s: %w", m.Kind(), out.Handle.Hash().Hex(), err)
		}
		return fmt.Errorf("%s: %w", m.Kind(), err)
	}
	printOutcome(w, out)
	return nil
}

func printOutcome(w io.Writer, out web3notes.Outcome) {
	if !out.Confirmed() {
		fmt.Fprintf(w, "%s failed: %v\n", out.Action, out.Err)
		return
	}
	line := fmt.Sprintf("%s confirmed", out.Kind)
	if out.Kind == core.KindCreate {
		line += fmt.Sprintf(": note #%d", out.Update.NoteID)
	}
	if r := out.Update.Receipt; r != nil {
		line += fmt.Sprintf(" (block %d, %d confirmations)", r.BlockNumber, out.Update.Confirmations)
	}
	fmt.Fprintln(w, line)
	for _, k := range out.Invalidated {
		fmt.Fprintf(w, "  refreshed %s\n", k)
	}
}

func printNote(w io.Writer, n core.Note) {
	flags := ""
	if n.IsPublic {
		flags += " [public]"
	}
	if n.IsPinned {
		flags += " [pinned]"
	}
	if n.Edited() {
		flags += " [edited]"
	}
	fmt.Fprintf(w, "#%d %s%s\n", n.ID, n.Title, flags)
	fmt.Fprintf(w, "    by %s, v%d, tips %s ETH\n", core.ShortAddress(n.Author), n.Version, core.FormatEther(n.TipsReceived))
	if n.Content != "" {
		fmt.Fprintf(w, "    %s\n", n.Content)
	}
}
