package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JPrieve/web3-notes/pkg/core"
)

var tipCmd = &cobra.Command{
	Use:   "tip [id] [ether]",
	Short: "Tip the author of a note",
	Long:  `Tip sends the given amount of ether (for example 0.01) to the author of a note.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			fatal("Invalid argument", err)
		}
		amount, err := core.ParseEther(args[1])
		if err != nil {
			fatal("Invalid amount", err)
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
		if err := perform(ctx, client, os.Stdout, core.Tip{Note: ref, Amount: amount}); err != nil {
			fatal("Failed to tip note", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(tipCmd)
}
