package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <pane>",
	Short: "Probe a pane's shell, working directory and system",
	Long: `Types a short probe into the pane and reads the tagged reply off the
screen. The result is cached for later submissions in this process.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		info, err := a.engine.DetectShell(ctx, args[0])
		if err != nil {
			return fmt.Errorf("detect shell on %s: %w", args[0], err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(map[string]string{
				"shell":      info.ShellName,
				"workingDir": info.WorkingDir,
				"systemInfo": info.SystemInfo,
			})
		}
		fmt.Printf("shell:  %s\n", info.ShellName)
		fmt.Printf("dir:    %s\n", info.WorkingDir)
		if info.SystemInfo != "" {
			fmt.Printf("system: %s\n", info.SystemInfo)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().Bool("json", false, "Print the detection as JSON")
	rootCmd.AddCommand(detectCmd)
}
