package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/csd2000/Trade-Flow-sub002/internal/application"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	applog "github.com/csd2000/Trade-Flow-sub002/internal/log"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a batch of symbols and emit confluence signals",
		Long: `Scan runs the full pipeline for every symbol: fetch, indicators, patterns,
gates, exits and signal assembly. Per-symbol failures are reported and
never stop the batch.`,
		RunE: runScan,
	}
	cmd.Flags().StringSlice("symbols", nil, "Comma-separated symbols (default: configured universe)")
	cmd.Flags().String("class", "", "Restrict the universe to one asset class (equities|crypto|forex|futures)")
	cmd.Flags().String("timeframe", string(market.TF1h), "Bar timeframe (1m|5m|15m|1h|4h|1d)")
	cmd.Flags().Bool("offline", false, "Use the deterministic offline data generator")
	cmd.Flags().Bool("json", false, "Print the scan result as JSON")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	symbolsFlag, _ := cmd.Flags().GetStringSlice("symbols")
	class, _ := cmd.Flags().GetString("class")
	tfFlag, _ := cmd.Flags().GetString("timeframe")
	offline, _ := cmd.Flags().GetBool("offline")
	asJSON, _ := cmd.Flags().GetBool("json")

	tf, err := market.ParseTimeframe(tfFlag)
	if err != nil {
		return err
	}
	symbols, err := application.ResolveSymbols(symbolsFlag, strings.ToLower(class), cfg.Universe)
	if err != nil {
		return err
	}

	opts := application.Options{Offline: offline, Version: version}
	if !asJSON && applog.IsTerminal(os.Stderr) {
		opts.Progress = applog.NewScanProgress(os.Stderr, applog.DefaultProgressConfig())
	}

	app, err := application.New(cmd.Context(), cfg, opts)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer app.Close()

	res := app.Engine.Scan(cmd.Context(), symbols, tf)
	if err := application.WriteScanReport(cmd.OutOrStdout(), res, asJSON); err != nil {
		return err
	}
	if res.Totals.Errors == res.Totals.Attempted && res.Totals.Attempted > 0 {
		log.Error().Int("errors", res.Totals.Errors).Msg("Every symbol failed")
		return fmt.Errorf("scan %s: all %d symbols failed", res.ID, res.Totals.Attempted)
	}
	return nil
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Explain the gate checklist for one symbol without touching position state",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().String("timeframe", string(market.TF1h), "Bar timeframe (1m|5m|15m|1h|4h|1d)")
	cmd.Flags().Bool("offline", false, "Use the deterministic offline data generator")
	cmd.Flags().Bool("json", false, "Print the analysis as JSON")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tfFlag, _ := cmd.Flags().GetString("timeframe")
	offline, _ := cmd.Flags().GetBool("offline")
	asJSON, _ := cmd.Flags().GetBool("json")

	tf, err := market.ParseTimeframe(tfFlag)
	if err != nil {
		return err
	}
	app, err := application.New(cmd.Context(), cfg, application.Options{Offline: offline, Version: version})
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer app.Close()

	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	analysis, err := app.Engine.Analyze(cmd.Context(), symbol, tf)
	if err != nil {
		return err
	}
	return application.WriteAnalysis(cmd.OutOrStdout(), analysis, asJSON)
}
