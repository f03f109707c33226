package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JPrieve/web3-notes/pkg/core"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the connected account and its note counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, err := openClient(cmd)
		if err != nil {
			fatal("Failed to open client", err)
		}
		defer client.Close()

		ctx, cancel := commandContext()
		defer cancel()

		sum, err := client.Summary(ctx)
		if err != nil {
			fatal("Failed to read summary", err)
		}
		if !sum.Connected {
			fmt.Println("Not connected.")
			return
		}
		fmt.Printf("%s: %d notes, %d pinned\n", core.ShortAddress(sum.Address), sum.Notes, sum.Pinned)
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
