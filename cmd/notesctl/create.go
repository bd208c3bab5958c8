package main

import (
	"context"
	"fmt"

	"notesync/pkg/client"

	"github.com/spf13/cobra"
)

var newNote client.NewNote

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		note, err := newClient().CreateNote(context.Background(), newNote)
		if err != nil {
			fatal("Error creating note", err)
		}

		fmt.Printf("Note created: %s\n", note.ID)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&newNote.ID, "id", "", "Note id (generated when empty)")
	createCmd.Flags().StringVarP(&newNote.Title, "title", "t", "", "Note title")
	createCmd.Flags().StringVarP(&newNote.Content, "content", "c", "", "Markdown content")
	createCmd.Flags().BoolVar(&newNote.Pinned, "pinned", false, "Pin the note")
}
