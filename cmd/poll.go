package cmd

import (
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll <id>",
	Short: "Poll one tracked execution on the serve instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newClient(cmd).execution(args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(rec)
		}
		printExecution(rec)
		return nil
	},
}

func init() {
	pollCmd.Flags().Bool("json", false, "Print the record as JSON")
	rootCmd.AddCommand(pollCmd)
}
