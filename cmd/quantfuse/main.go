package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "quantfuse"
	version = "v0.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Regime-aware trading decision core",
		Version: version,
		Long: `quantfuse fuses rule-based signals with a regime detector and an
adaptive predictor, then evaluates the blend against static baselines in a
walk-forward simulation.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to yaml config (defaults apply when empty)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the walk-forward simulation",
		Long:  "Walk-forward simulation with periodic retraining, compared against static baselines over identical bars",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("bars", "", "CSV bar file (timestamp,open,high,low,close,volume); synthetic data when empty")
	simulateCmd.Flags().Int("synthetic-bars", 600, "Synthetic bar count when no CSV is given")
	simulateCmd.Flags().Int64("seed", 0, "Override the configured seed (0 keeps config)")
	simulateCmd.Flags().String("listen", "", "Metrics/health bind address (overrides config)")
	simulateCmd.Flags().String("snapshot-dir", "", "Directory for model snapshots (overrides config)")
	simulateCmd.Flags().String("redis", "", "Redis address for snapshot mirroring (overrides config)")
	simulateCmd.Flags().String("store-dsn", "", "Postgres DSN for persisting the comparison (overrides config)")
	simulateCmd.Flags().Bool("json", false, "Emit the comparison as JSON instead of the table")

	regimeCmd := &cobra.Command{
		Use:   "regime",
		Short: "Fit the regime detector and report the decoded path",
		RunE:  runRegimeReport,
	}
	regimeCmd.Flags().String("bars", "", "CSV bar file; synthetic data when empty")
	regimeCmd.Flags().Int("synthetic-bars", 600, "Synthetic bar count when no CSV is given")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List or fetch stored walk-forward comparisons",
		RunE:  runListRuns,
	}
	runsCmd.Flags().String("store-dsn", "", "Postgres DSN (overrides config)")
	runsCmd.Flags().String("id", "", "Fetch a single comparison by id")
	runsCmd.Flags().String("symbol", "", "Filter by symbol (defaults to the configured symbol)")
	runsCmd.Flags().Int("limit", 20, "Maximum comparisons to list")
	runsCmd.Flags().Bool("json", false, "Emit JSON instead of the table")

	rootCmd.AddCommand(simulateCmd, regimeCmd, runsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setLogLevel(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
