package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/config"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict finished executions, prune history, remove hook artifacts",
	Long: `By default evicts terminal executions from a running serve instance
(--max-age keeps recent ones). --history prunes the sqlite mirror and
--pane uninstalls hook artifacts from a pane; both work without a server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		acted := false

		if pane, _ := cmd.Flags().GetString("pane"); pane != "" {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := a.engine.CleanupPane(ctx, pane); err != nil {
				return fmt.Errorf("cleanup pane %s: %w", pane, err)
			}
			fmt.Printf("Removed hook artifacts from %s\n", pane)
			acted = true
		}

		if cmd.Flags().Changed("history") {
			age, _ := cmd.Flags().GetDuration("history")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store := openHistory(cfg)
			if store == nil {
				return fmt.Errorf("history is disabled (history_db: %q)", cfg.HistoryDB)
			}
			defer store.Close()

			n, err := store.Prune(age)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d history records\n", n)
			acted = true
		}

		if !acted || cmd.Flags().Changed("max-age") {
			maxAge, _ := cmd.Flags().GetDuration("max-age")
			n, err := newClient(cmd).cleanup(maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Evicted %d executions\n", n)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Duration("max-age", 0, "Only evict executions that finished at least this long ago")
	cleanupCmd.Flags().Duration("history", 0, "Prune history records that finished at least this long ago")
	cleanupCmd.Flags().String("pane", "", "Uninstall hook artifacts from this pane")
	rootCmd.AddCommand(cleanupCmd)
}
