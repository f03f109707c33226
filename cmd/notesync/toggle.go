package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// noteCommand builds a command that applies a single-note mutation.
func noteCommand(use, short string, build func(core.NoteRef) core.Mutation) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := parseID(args[0])
			if err != nil {
				fatal("Invalid argument", err)
			}

			client, err := openClient(cmd)
			if err != nil {
				fatal("Failed to open client", err)
			}
			defer client.Close()

			ctx, cancel := commandContext()
			defer cancel()

			ref, err := resolveNote(ctx, client, id)
			if err != nil {
				fatal("Failed to read notes", err)
			}
			if err := perform(ctx, client, os.Stdout, build(ref)); err != nil {
				fatal("Failed to "+use+" note", err)
			}
		},
	}
}

func init() {
	rootCmd.AddCommand(
		noteCommand("delete", "Delete a note", func(ref core.NoteRef) core.Mutation {
			return core.Delete{Note: ref}
		}),
		noteCommand("visibility", "Toggle a note between public and private", func(ref core.NoteRef) core.Mutation {
			return core.ToggleVisibility{Note: ref}
		}),
		noteCommand("pin", "Toggle the pinned flag of a note", func(ref core.NoteRef) core.Mutation {
			return core.TogglePin{Note: ref}
		}),
	)
}
