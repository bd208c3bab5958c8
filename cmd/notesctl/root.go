package main

import (
	"fmt"
	"os"

	"notesync/pkg/client"
	"notesync/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesctl",
	Short: "Command line client for the notes backend",
	Long: `notesctl reads and edits notes through the REST API and can follow
the live synchronization channel.`,
	// Execute reports the error once.
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.Init(level)
		if token == "" {
			token = os.Getenv("NOTES_TOKEN")
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.NewClient(serverURL, token)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:5000", "Notes backend base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (defaults to $NOTES_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
