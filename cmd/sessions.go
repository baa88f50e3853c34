package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/panes"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage tmux sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.transport.ListSessions()
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(infos)
		}
		if len(infos) == 0 {
			fmt.Println("No sessions. Run: panerun sessions new <name>")
			return nil
		}

		fmt.Printf("%-20s  %-8s  %-7s  %s\n", "NAME", "ATTACHED", "WINDOWS", "AGE")
		for _, info := range infos {
			fmt.Printf("%-20s  %-8d  %-7d  %s\n",
				info.Name, info.AttachedCount, info.Windows,
				panes.FormatDurationCoarse(time.Since(info.Created)))
		}
		return nil
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a detached session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		name := args[0]
		if a.transport.HasSession(name) {
			return fmt.Errorf("session %q already exists", name)
		}

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" && a.transport.HostName() == "" {
			dir, _ = os.Getwd()
		}

		pane, err := a.transport.CreateSession(name, dir)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		fmt.Printf("Created session %q (pane %s)\n", name, pane)

		if attach, _ := cmd.Flags().GetBool("attach"); attach {
			return a.transport.AttachSession(name)
		}
		return nil
	},
}

var sessionsKillCmd = &cobra.Command{
	Use:   "kill <name>",
	Short: "Kill a session",
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

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Kill session %q? [y/N] ", name)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := a.transport.KillSession(name); err != nil {
			return fmt.Errorf("failed to kill session: %w", err)
		}
		fmt.Printf("Killed session %q\n", name)
		return nil
	},
}

var sessionsWindowCmd = &cobra.Command{
	Use:   "window <session>",
	Short: "Add a window to a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		name, _ := cmd.Flags().GetString("name")
		dir, _ := cmd.Flags().GetString("dir")
		pane, err := a.transport.CreateWindow(args[0], name, dir)
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		fmt.Println(pane)
		return nil
	},
}

var sessionsSplitCmd = &cobra.Command{
	Use:   "split <target>",
	Short: "Split a pane",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		vertical, _ := cmd.Flags().GetBool("vertical")
		dir, _ := cmd.Flags().GetString("dir")
		pane, err := a.transport.SplitPane(args[0], vertical, dir)
		if err != nil {
			return fmt.Errorf("failed to split pane: %w", err)
		}
		fmt.Println(pane)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Bool("json", false, "Print sessions as JSON")

	sessionsNewCmd.Flags().StringP("dir", "c", "", "Working directory for the session")
	sessionsNewCmd.Flags().BoolP("attach", "a", false, "Attach to the session immediately")

	sessionsKillCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	sessionsWindowCmd.Flags().StringP("name", "n", "", "Window name")
	sessionsWindowCmd.Flags().StringP("dir", "c", "", "Working directory for the window")

	sessionsSplitCmd.Flags().BoolP("vertical", "v", false, "Split top/bottom instead of left/right")
	sessionsSplitCmd.Flags().StringP("dir", "c", "", "Working directory for the new pane")

	sessionsCmd.AddCommand(sessionsNewCmd, sessionsKillCmd, sessionsWindowCmd, sessionsSplitCmd)
	rootCmd.AddCommand(sessionsCmd)
}
