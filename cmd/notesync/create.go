package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JPrieve/web3-notes/pkg/core"
)

var (
	createTitle   string
	createContent string
	createPublic  bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Long:  `Create submits a createNote transaction and waits until it is confirmed.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, err := openClient(cmd)
		if err != nil {
			fatal("Failed to open client", err)
		}
		defer client.Close()

		ctx, cancel := commandContext()
		defer cancel()

		m := core.Create{Title: createTitle, Content: createContent, IsPublic: createPublic}
		if err := perform(ctx, client, os.Stdout, m); err != nil {
			fatal("Failed to create note", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createTitle, "title", "t", "", "Note title")
	createCmd.Flags().StringVarP(&createContent, "content", "c", "", "Note content")
	createCmd.Flags().BoolVar(&createPublic, "public", false, "Make the note public")
}
