package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/csd2000/Trade-Flow-sub002/internal/application"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve health, metrics, positions and episodes over HTTP",
		Long: `Monitor starts the read-only HTTP server. With --interval it also rescans
the symbol batch on a ticker so positions and alert episodes stay current.`,
		RunE: runMonitor,
	}
	cmd.Flags().String("host", "", "Override the configured listen host")
	cmd.Flags().Int("port", 0, "Override the configured listen port")
	cmd.Flags().Duration("interval", 0, "Rescan interval; 0 serves without scanning")
	cmd.Flags().StringSlice("symbols", nil, "Symbols for the periodic scan (default: configured universe)")
	cmd.Flags().String("timeframe", string(market.TF1h), "Bar timeframe for the periodic scan")
	cmd.Flags().Bool("offline", false, "Use the deterministic offline data generator")
	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Monitor.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Monitor.Port = port
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	offline, _ := cmd.Flags().GetBool("offline")

	app, err := application.New(cmd.Context(), cfg, application.Options{Offline: offline, Version: version})
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer app.Close()

	srv, err := app.Monitor()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if interval > 0 {
		symbolsFlag, _ := cmd.Flags().GetStringSlice("symbols")
		tfFlag, _ := cmd.Flags().GetString("timeframe")
		tf, err := market.ParseTimeframe(tfFlag)
		if err != nil {
			return err
		}
		symbols, err := application.ResolveSymbols(symbolsFlag, "", cfg.Universe)
		if err != nil {
			return err
		}
		go scanLoop(ctx, app, symbols, tf, interval)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().Str("addr", srv.GetAddress()).Dur("interval", interval).Msg("Monitor running, press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// scanLoop runs one scan immediately, then one per tick until ctx ends
func scanLoop(ctx context.Context, app *application.App, symbols []string, tf market.Timeframe, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		res := app.Engine.Scan(ctx, symbols, tf)
		for _, s := range res.Signals {
			log.Info().Str("symbol", s.Symbol).Str("type", s.Type).Str("tier", string(s.Tier)).
				Str("entry", s.Entry.String()).Str("stop", s.Stop.String()).Msg("Signal")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
