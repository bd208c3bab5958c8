package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"notesync/pkg/client"
	"notesync/socket"

	"github.com/spf13/cobra"
)

var watchJoin string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print note events as they happen",
	Long: `Watch connects to the synchronization channel and prints every event until
interrupted. With --join the session also joins that note's room.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := client.Dial(ctx, serverURL, token)
		if err != nil {
			fatal("Error connecting", err)
		}
		defer session.Close()

		view := client.NewView(newClient(), session)
		defer view.Close()
		if err := view.Load(ctx); err != nil {
			fatal("Error listing notes", err)
		}
		if watchJoin != "" {
			if err := view.Select(watchJoin); err != nil {
				fatal("Error joining note", err)
			}
		}

		fmt.Printf("Session %s watching %d notes\n", session.ID, len(view.Notes()))
		view.Follow(ctx, session.Events(), func(ev client.Event) {
			switch ev.Name {
			case socket.NoteDeletedEvent:
				fmt.Printf("%s %s\n", ev.Name, ev.DeletedID)
			default:
				fmt.Printf("%s %s %q\n", ev.Name, ev.Note.ID, ev.Note.Title)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchJoin, "join", "", "Also join this note's room")
}
