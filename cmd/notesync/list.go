package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	listJSON   bool
	listPublic bool
	listPinned bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Long:  `List prints the connected account's notes, or the public or pinned view.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, err := openClient(cmd)
		if err != nil {
			fatal("Failed to open client", err)
		}
		defer client.Close()

		ctx, cancel := commandContext()
		defer cancel()

		views := client.Views()
		key := views.UserNotes
		switch {
		case listPublic:
			key = views.PublicNotes
		case listPinned:
			key = views.PinnedNotes
		}
		if key.Disabled() {
			fatal("Cannot list notes", fmt.Errorf("%s needs a connected account (--as or --identity-file)", key.Op))
		}

		entry, err := client.Cache().Fetch(ctx, key)
		if err != nil {
			fatal("Failed to list notes", err)
		}
		notes := entry.Notes()

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(notes); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		if len(notes) == 0 {
			fmt.Println("No notes.")
			return
		}
		for _, n := range notes {
			printNote(os.Stdout, n)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVar(&listPublic, "public", false, "List public notes of every author")
	listCmd.Flags().BoolVar(&listPinned, "pinned", false, "List the account's pinned notes")
	listCmd.MarkFlagsMutuallyExclusive("public", "pinned")
}
