package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/tmux"
)

var sendCmd = &cobra.Command{
	Use:   "send <pane> <text...>",
	Short: "Send raw text to a pane without tracking it",
	Long: `Types text into the pane as keystrokes. Nothing is recorded and no
markers are injected, so use run when you want the result back.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		pane := args[0]
		text := strings.Join(args[1:], " ")

		if noEnter, _ := cmd.Flags().GetBool("no-enter"); noEnter {
			if err := a.transport.SendText(pane, text); err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}
		} else if err := tmux.SendLine(a.transport, pane, text); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}

		fmt.Printf("Sent to %s: %s\n", pane, text)
		return nil
	},
}

func init() {
	sendCmd.Flags().Bool("no-enter", false, "Type the text without pressing Enter")
	rootCmd.AddCommand(sendCmd)
}
