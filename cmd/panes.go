package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/panes"
)

var panesCmd = &cobra.Command{
	Use:   "panes [session]",
	Short: "List panes, with detected shells and tracked activity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		views, err := panes.List(a.transport, a.engine, target)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(views)
		}
		if len(views) == 0 {
			fmt.Println("No panes.")
			return nil
		}

		fmt.Printf("%-6s  %-18s  %-8s  %-24s  %s\n", "ID", "TARGET", "SHELL", "PATH", "TITLE")
		for _, v := range views {
			shell := v.Shell
			if shell == "" {
				shell = "-"
			}
			fmt.Printf("%-6s  %-18s  %-8s  %-24s  %s\n",
				v.ID, v.Target(), shell, v.CurrentPath, v.Title)
		}
		return nil
	},
}

func init() {
	panesCmd.Flags().Bool("json", false, "Print panes as JSON")
	rootCmd.AddCommand(panesCmd)
}
