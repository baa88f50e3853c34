package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending or running execution on the serve instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newClient(cmd).cancel(args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(rec)
		}
		fmt.Printf("Cancelled %s (%s on %s)\n", rec.ID, rec.Command, rec.PaneTarget)
		return nil
	},
}

func init() {
	cancelCmd.Flags().Bool("json", false, "Print the record as JSON")
	rootCmd.AddCommand(cancelCmd)
}
