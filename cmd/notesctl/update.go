package main

import (
	"context"
	"errors"
	"fmt"

	"notesync/pkg/client"

	"github.com/spf13/cobra"
)

var (
	updateTitle   string
	updateContent string
	updatePinned  bool
)

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change a note's title, content or pin",
	Long:  `Only the flags that are given are changed; everything else is left as it is.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var patch client.Patch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &updateTitle
		}
		if flags.Changed("content") {
			patch.Content = &updateContent
		}
		if flags.Changed("pinned") {
			patch.Pinned = &updatePinned
		}
		if patch == (client.Patch{}) {
			fatal("Error updating note", errors.New("nothing to change"))
		}

		note, err := newClient().UpdateNote(context.Background(), args[0], patch)
		if err != nil {
			fatal("Error updating note", err)
		}

		fmt.Printf("Note updated: %s\n", note.ID)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "New title")
	updateCmd.Flags().StringVarP(&updateContent, "content", "c", "", "New markdown content")
	updateCmd.Flags().BoolVar(&updatePinned, "pinned", false, "Pin or unpin the note")
}
