package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/track"
)

var runCmd = &cobra.Command{
	Use:   "run <pane> -- <command...>",
	Short: "Run a command in a pane and track it to completion",
	Long: `Wraps the command in screen markers, types it into the pane and polls
the captured screen until the end marker reports an exit status. The
pane keeps running whatever it was running; panerun only reads text.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pane := args[0]
		command := strings.Join(args[1:], " ")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if detect, _ := cmd.Flags().GetBool("detect"); detect {
			if _, err := a.engine.DetectShell(ctx, pane); err != nil {
				return fmt.Errorf("detect shell on %s: %w", pane, err)
			}
		}

		so := track.SubmitOptions{}
		if raw, _ := cmd.Flags().GetString("timeout"); raw != "" {
			d, err := parseTimeoutFlag(raw)
			if err != nil {
				return err
			}
			so.Timeout = d
		}
		so.UseHooks = resolveHookPreference(cmd, a, pane)

		rec, err := a.engine.Submit(ctx, pane, command, so)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
			if asJSON {
				return printJSON(rec)
			}
			fmt.Println(rec.ID)
			return nil
		}

		interval := a.cfg.PollIntervalDuration
		if interval <= 0 {
			interval = time.Second
		}
		for !rec.Terminal() {
			select {
			case <-ctx.Done():
				if out, cerr := a.engine.Cancel(context.Background(), rec.ID); cerr == nil {
					fmt.Fprintf(os.Stderr, "interrupted; cancelled %s\n", out.ID)
				}
				return ctx.Err()
			case <-time.After(interval):
			}
			rec, err = a.engine.Poll(ctx, rec.ID)
			if err != nil {
				return err
			}
		}

		if asJSON {
			if err := printJSON(rec); err != nil {
				return err
			}
		} else {
			printExecution(rec)
		}

		switch rec.Status {
		case track.StatusError:
			if rec.ExitCode != nil && *rec.ExitCode > 0 {
				os.Exit(*rec.ExitCode)
			}
			os.Exit(1)
		case track.StatusTimeout:
			os.Exit(124)
		case track.StatusCancelled:
			os.Exit(130)
		}
		return nil
	},
}

// parseTimeoutFlag follows the config convention: "0" and "off" disable
// the deadline, anything else is a duration.
func parseTimeoutFlag(raw string) (time.Duration, error) {
	if raw == "0" || raw == "off" {
		return -1, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --timeout %q: %w", raw, err)
	}
	if d <= 0 {
		return -1, nil
	}
	return d, nil
}

// resolveHookPreference layers the protocol choice: explicit flags win,
// then the per-pane preference saved by `panerun set`, then the config
// default (nil lets the engine decide).
func resolveHookPreference(cmd *cobra.Command, a *app, pane string) *bool {
	on := true
	off := false
	if v, _ := cmd.Flags().GetBool("hooks"); v {
		return &on
	}
	if v, _ := cmd.Flags().GetBool("no-hooks"); v {
		return &off
	}
	if a.store != nil {
		prefs, err := a.store.LoadHookPanes()
		if err != nil {
			log.Printf("panerun: pane options unavailable: %v", err)
			return nil
		}
		if enabled, ok := prefs[pane]; ok {
			if enabled {
				return &on
			}
			return &off
		}
	}
	return nil
}

func init() {
	runCmd.Flags().StringP("timeout", "t", "", "Deadline for this execution (e.g. 30s; 0 or off disables)")
	runCmd.Flags().Bool("no-wait", false, "Submit and print the execution id without waiting")
	runCmd.Flags().BoolP("detect", "d", false, "Probe the pane's shell before submitting")
	runCmd.Flags().Bool("hooks", false, "Force the shell-hook protocol for this run")
	runCmd.Flags().Bool("no-hooks", false, "Force the inline wrapper protocol for this run")
	runCmd.Flags().Bool("json", false, "Print the final record as JSON")
	rootCmd.AddCommand(runCmd)
}
