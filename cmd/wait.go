package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var waitCmd = &cobra.Command{
	Use:   "wait <id>",
	Short: "Block until an execution on the serve instance finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = time.Second
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rec, err := c.execution(args[0])
		if err != nil {
			return err
		}
		for !rec.Terminal() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			rec, err = c.execution(args[0])
			if err != nil {
				return err
			}
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(rec)
		}
		printExecution(rec)
		return nil
	},
}

func init() {
	waitCmd.Flags().Duration("interval", time.Second, "Poll cadence")
	waitCmd.Flags().Bool("json", false, "Print the final record as JSON")
	rootCmd.AddCommand(waitCmd)
}
