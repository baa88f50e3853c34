package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/config"
	telem "github.com/rastow/panerun/internal/otel"
	"github.com/rastow/panerun/internal/state"
	"github.com/rastow/panerun/internal/tmux"
	"github.com/rastow/panerun/internal/track"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// resolveTransport returns the tmux transport for the given host
// nickname. Empty host means local.
func resolveTransport(cfg *config.Config, host string) (tmux.Transport, error) {
	if host == "" {
		return tmux.NewLocal(), nil
	}
	h, ok := cfg.Hosts[host]
	if !ok {
		return nil, fmt.Errorf("unknown host %q: add it under hosts: in your config file", host)
	}
	return &tmux.SSH{
		Nickname: host,
		Host:     h.Host,
		User:     h.User,
		SSHKey:   h.SSHKey,
	}, nil
}

// engineOptions maps the loaded config onto the engine's knobs.
func engineOptions(cfg *config.Config) track.Options {
	return track.Options{
		CaptureLines:   cfg.CaptureLines,
		DefaultTimeout: cfg.DefaultTimeoutDuration,
		RetryGrace:     cfg.RetryGraceDuration,
		MaxRetries:     cfg.MaxRetries,
		UseHooks:       cfg.Protocol == "hook",
	}
}

// openHistory opens the durable history store per config. "off" disables
// it; an open failure only logs, tracking works without history.
func openHistory(cfg *config.Config) *state.Store {
	var (
		store *state.Store
		err   error
	)
	switch cfg.HistoryDB {
	case "off", "none":
		return nil
	case "":
		store, err = state.Open()
	default:
		store, err = state.OpenAt(cfg.HistoryDB)
	}
	if err != nil {
		log.Printf("panerun: history disabled: %v", err)
		return nil
	}
	return store
}

// app bundles what most commands need: config, a transport for the
// selected host, and an engine with telemetry and history attached.
type app struct {
	cfg       *config.Config
	transport tmux.Transport
	engine    *track.Engine
	store     *state.Store
	telemetry *telem.Telemetry
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	host, _ := cmd.Flags().GetString("host")
	tr, err := resolveTransport(cfg, host)
	if err != nil {
		return nil, err
	}

	eng := track.NewEngine(tr, track.NewRegistry(), engineOptions(cfg))

	tel, err := telem.Init(cmd.Context(), telem.Config{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		log.Printf("panerun: telemetry disabled: %v", err)
		tel = nil
	} else {
		eng.SetTelemetry(tel.Metrics, tel.Tracer)
	}

	store := openHistory(cfg)
	if store != nil {
		eng.SetHistory(store)
	}

	return &app{
		cfg:       cfg,
		transport: tr,
		engine:    eng,
		store:     store,
		telemetry: tel,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		a.telemetry.Shutdown(ctx)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printExecution renders one record for humans.
func printExecution(rec track.Execution) {
	fmt.Printf("id:      %s\n", rec.ID)
	fmt.Printf("pane:    %s\n", rec.PaneTarget)
	fmt.Printf("command: %s\n", rec.Command)
	fmt.Printf("status:  %s\n", rec.Status)
	fmt.Printf("shell:   %s\n", rec.ShellType)
	if rec.ExitCode != nil {
		fmt.Printf("exit:    %d\n", *rec.ExitCode)
	}
	if rec.EndedAt != nil {
		fmt.Printf("took:    %s\n", rec.EndedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}
	if rec.Output != "" {
		fmt.Printf("output:\n%s\n", rec.Output)
	}
}
