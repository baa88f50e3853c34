package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach <session>",
	Short: "Attach to a tmux session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		name := args[0]
		if !a.transport.HasSession(name) {
			return fmt.Errorf("session %q not found", name)
		}
		return a.transport.AttachSession(name)
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
