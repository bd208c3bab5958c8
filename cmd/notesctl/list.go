package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"notesync/pkg/client"

	"github.com/spf13/cobra"
)

var (
	listJSON   bool
	listSearch string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, pinned first then most recently updated",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		view := client.NewView(newClient(), nil)
		if err := view.Load(context.Background()); err != nil {
			fatal("Error listing notes", err)
		}

		notes := view.Notes()
		if listSearch != "" {
			notes = view.Search(listSearch)
		}

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(notes); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		for _, note := range notes {
			pin := " "
			if note.Pinned {
				pin = "*"
			}
			fmt.Printf("%s %s  %s  (%s)\n", pin, note.ID, note.Title, note.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Only show notes whose title or content contains this text")
}
