package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/config"
	"github.com/rastow/panerun/internal/panes"
	"github.com/rastow/panerun/internal/track"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked executions",
	Long: `Without flags, lists the live registry of a running serve instance.
--history reads the durable sqlite mirror instead and needs no server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		var (
			recs []track.Execution
			err  error
		)
		if history, _ := cmd.Flags().GetBool("history"); history {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store := openHistory(cfg)
			if store == nil {
				return fmt.Errorf("history is disabled (history_db: %q)", cfg.HistoryDB)
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			recs, err = store.List(limit)
			if err != nil {
				return err
			}
		} else {
			active, _ := cmd.Flags().GetBool("active")
			recs, err = newClient(cmd).list(active)
			if err != nil {
				return err
			}
		}

		if asJSON {
			return printJSON(recs)
		}
		if len(recs) == 0 {
			fmt.Println("No executions.")
			return nil
		}

		fmt.Printf("%-8s  %-12s  %-10s  %4s  %6s  %s\n", "ID", "PANE", "STATUS", "EXIT", "AGE", "COMMAND")
		for _, rec := range recs {
			exit := "-"
			if rec.ExitCode != nil {
				exit = strconv.Itoa(*rec.ExitCode)
			}
			age := panes.FormatDurationCoarse(time.Since(rec.StartedAt))
			fmt.Printf("%-8s  %-12s  %-10s  %4s  %6s  %s\n",
				shortenID(rec.ID), rec.PaneTarget, rec.Status, exit, age, rec.Command)
		}
		return nil
	},
}

func shortenID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	listCmd.Flags().Bool("active", false, "Only non-terminal executions")
	listCmd.Flags().Bool("history", false, "Read the durable history instead of the live registry")
	listCmd.Flags().IntP("limit", "n", 50, "Max history rows (with --history)")
	listCmd.Flags().Bool("json", false, "Print records as JSON")
	rootCmd.AddCommand(listCmd)
}
