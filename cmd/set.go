package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <pane>",
	Short: "Set pane options (e.g. hook protocol)",
	Long: `Saves a per-pane preference in the state db. run consults it when
neither --hooks nor --no-hooks is given. The pane key must match the
target you pass to run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pane := args[0]

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.transport.PaneInfo(pane); err != nil {
			return fmt.Errorf("pane %q not found: %w", pane, err)
		}

		hooks, _ := cmd.Flags().GetBool("hooks")
		noHooks, _ := cmd.Flags().GetBool("no-hooks")

		if !hooks && !noHooks {
			return fmt.Errorf("specify --hooks or --no-hooks")
		}

		if a.store == nil {
			return fmt.Errorf("pane options need the state db (history_db: %q)", a.cfg.HistoryDB)
		}

		if hooks {
			if err := a.store.SetPaneHooks(pane, true); err != nil {
				return fmt.Errorf("failed to set pane option: %w", err)
			}
			fmt.Printf("Enabled shell hooks for %s\n", pane)
		}

		if noHooks {
			if err := a.store.SetPaneHooks(pane, false); err != nil {
				return fmt.Errorf("failed to set pane option: %w", err)
			}
			fmt.Printf("Disabled shell hooks for %s\n", pane)
		}

		return nil
	},
}

func init() {
	setCmd.Flags().Bool("hooks", false, "Prefer the shell-hook protocol on this pane")
	setCmd.Flags().Bool("no-hooks", false, "Prefer the inline wrapper protocol on this pane")
	rootCmd.AddCommand(setCmd)
}
