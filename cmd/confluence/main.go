package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/csd2000/Trade-Flow-sub002/internal/config"
	applog "github.com/csd2000/Trade-Flow-sub002/internal/log"
)

const (
	appName = "confluence"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     appName,
		Short:   "Multi-gate technical confluence scanner",
		Version: version,
		Long: `Confluence scans equities, crypto, forex and futures for entries where
trend, momentum, volume and oscillator gates agree, then attaches a
stop, targets and a reasoning trail to every qualifying signal.`,
		SilenceUsage: true,
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(scanCmd(), analyzeCmd(), monitorCmd(), configCmd())
	return root
}

// loadConfig resolves the config file plus flag overrides and installs the
// logger it asks for
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := applog.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}
