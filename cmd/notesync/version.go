package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	web3notes "github.com/JPrieve/web3-notes"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of notesync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("notesync version %s\n", strings.TrimSpace(web3notes.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
