// Package web3notes is the composition root of the notes client.
//
// It wires a read-query cache, a transaction submitter, a confirmation
// watcher and a lifecycle orchestrator over a notes contract. Reads are
// cached per view and refreshed only after a write is confirmed on the
// ledger, so what the client shows is always a projection of confirmed
// state.
//
// Without an injected ledger the client runs against an in-process
// development ledger, optionally persisted in SQLite.
//
// Usage:
//
//	client, err := web3notes.New(
//		web3notes.WithAccount(addr),
//		web3notes.WithConfirmations(2),
//		web3notes.WithLogger(logger),
//	)
//	defer client.Close()
//
//	// Create a note and wait until it is confirmed
//	out, err := client.Run(ctx, core.Create{Title: "Hello", Content: "World"})
//
//	// Read the views that creation refreshed
//	entry, err := client.Cache().Fetch(ctx, client.Views().UserNotes)
package web3notes
