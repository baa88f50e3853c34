package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tracking API on a local port",
	Long: `Runs the engine behind a JSON API so poll, wait, cancel and list can
see executions submitted through the server. A file lock keeps it to
one instance per machine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		lockPath, _ := cmd.Flags().GetString("lock")
		sweep, _ := cmd.Flags().GetDuration("sweep-interval")

		srv := server.NewServer(a.engine, a.transport, server.Options{
			Addr:          addr,
			LockPath:      lockPath,
			SweepInterval: sweep,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:7171)")
	serveCmd.Flags().String("lock", "", "Instance lock file path")
	serveCmd.Flags().Duration("sweep-interval", 5*time.Second, "Timeout sweeper cadence (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
