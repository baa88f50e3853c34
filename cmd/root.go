package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	telem "github.com/rastow/panerun/internal/otel"
)

const defaultServerURL = "http://127.0.0.1:7171"

func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
	telem.Version = version
}

var rootCmd = &cobra.Command{
	Use:   "panerun",
	Short: "Run and track commands in live tmux panes",
	Long: `panerun injects commands into tmux panes and tracks their completion,
output and exit status purely from the pane's rendered screen text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation opens the live dashboard.
		return runWatch(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("host", envOrDefault("PANERUN_HOST", ""),
		"Run against a remote tmux over ssh (nickname from config hosts)")
	rootCmd.PersistentFlags().String("server", envOrDefault("PANERUN_SERVER", defaultServerURL),
		"Base URL of a panerun serve instance (for poll/wait/cancel/list)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
