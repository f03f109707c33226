package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JPrieve/web3-notes/pkg/core"
)

var (
	updateTitle   string
	updateContent string
)

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Rewrite the title and content of a note",
	Long:  `Update replaces both fields; omitted flags keep the current value.`,
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

		current, found, err := findNote(ctx, client, id)
		if err != nil {
			fatal("Failed to read notes", err)
		}
		ref := core.NoteRef{ID: id}
		title, content := updateTitle, updateContent
		if found {
			ref = current.Ref()
			if !cmd.Flags().Changed("title") {
				title = current.Title
			}
			if !cmd.Flags().Changed("content") {
				content = current.Content
			}
		}

		m := core.Update{Note: ref, Title: title, Content: content}
		if err := perform(ctx, client, os.Stdout, m); err != nil {
			fatal("Failed to update note", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "New title")
	updateCmd.Flags().StringVarP(&updateContent, "content", "c", "", "New content")
}
