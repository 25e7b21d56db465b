package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfuse/quantfuse/internal/backtest"
	"github.com/quantfuse/quantfuse/internal/config"
	"github.com/quantfuse/quantfuse/internal/httpserv"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/persistence"
	"github.com/quantfuse/quantfuse/internal/signal"
	"github.com/quantfuse/quantfuse/internal/strategy"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	setLogLevel(cmd)

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.Backtest.Seed = seed
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
	if dir, _ := cmd.Flags().GetString("snapshot-dir"); dir != "" {
		cfg.SnapshotDir = dir
	}
	if addr, _ := cmd.Flags().GetString("redis"); addr != "" {
		cfg.RedisAddr = addr
	}
	if dsn, _ := cmd.Flags().GetString("store-dsn"); dsn != "" {
		cfg.PostgresDSN = dsn
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Listen != "" {
		srv := httpserv.New(cfg.Listen)
		srv.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	bars, err := loadBars(cmd, cfg.Backtest.Seed)
	if err != nil {
		return err
	}
	log.Info().Int("bars", len(bars)).Str("symbol", cfg.Backtest.Symbol).Msg("bars loaded")

	scheduler, err := buildScheduler(cfg)
	if err != nil {
		return err
	}

	cmp, err := scheduler.Run(ctx, bars)
	if err != nil {
		return err
	}
	if net := scheduler.Predictor(); net != nil {
		log.Info().
			Strs("classes", net.Classes()).
			Int("features", net.InputDim()).
			Msg("final predictor published")
	}

	if err := persistResults(ctx, cfg, scheduler, cmp); err != nil {
		log.Error().Err(err).Msg("persisting results failed")
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return encodeJSON(cmp)
	}
	printComparison(cmp)
	return nil
}

// buildScheduler wires the decision core from the validated config.
func buildScheduler(cfg config.Config) (*backtest.Scheduler, error) {
	combiner, err := signal.NewCombiner(cfg.Signal)
	if err != nil {
		return nil, err
	}

	rules := strategy.NewIndicatorRules()
	baselines := []strategy.Baseline{
		strategy.BuyAndHold{},
		strategy.NewSMACross(),
		strategy.NewStaticBlend(),
	}

	return backtest.NewScheduler(
		cfg.Backtest,
		combiner,
		rules,
		market.NewWindowFeatures(),
		cfg.Regime,
		cfg.Predictor,
		baselines,
		backtest.ConfidenceSizer(0.5),
		nil,
	)
}

// loadBars reads the CSV when given, otherwise generates a deterministic
// synthetic series with distinct drift/volatility phases.
func loadBars(cmd *cobra.Command, seed int64) ([]market.Bar, error) {
	path, _ := cmd.Flags().GetString("bars")
	if path != "" {
		return market.LoadCSV(path)
	}

	n, _ := cmd.Flags().GetInt("synthetic-bars")
	if n < 4 {
		return nil, fmt.Errorf("synthetic-bars must be >= 4, got %d", n)
	}
	quarter := n / 4
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return market.GenerateBars(seed, start, time.Hour,
		market.SyntheticSegment{Bars: quarter, Drift: 0.0015, Vol: 0.01},
		market.SyntheticSegment{Bars: quarter, Drift: 0.0, Vol: 0.006},
		market.SyntheticSegment{Bars: quarter, Drift: -0.0012, Vol: 0.02},
		market.SyntheticSegment{Bars: n - 3*quarter, Drift: 0.001, Vol: 0.012},
	), nil
}

// persistResults saves model snapshots and the comparison to whichever
// stores are configured. Failures are reported, not fatal.
func persistResults(ctx context.Context, cfg config.Config, s *backtest.Scheduler, cmp *backtest.Comparison) error {
	if cfg.SnapshotDir != "" {
		store, err := persistence.NewFileStore(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		if err := saveSnapshots(ctx, store, cfg.Backtest.Symbol, s); err != nil {
			return err
		}
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		store := persistence.NewRedisStore(client, 0)
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("redis unavailable: %w", err)
		}
		if err := saveSnapshots(ctx, store, cfg.Backtest.Symbol, s); err != nil {
			return err
		}
	}

	if cfg.PostgresDSN != "" {
		store, err := persistence.NewRunStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.SaveComparison(ctx, cmp); err != nil {
			return err
		}
		log.Info().Str("comparison_id", cmp.ID).Msg("comparison saved to postgres")
	}
	return nil
}

func saveSnapshots(ctx context.Context, store persistence.SnapshotStore, name string, s *backtest.Scheduler) error {
	if det := s.Detector(); det != nil {
		if err := store.SaveRegime(ctx, name, det.Snapshot()); err != nil {
			return err
		}
	}
	if net := s.Predictor(); net != nil {
		if err := store.SavePredictor(ctx, name, net.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

func printComparison(cmp *backtest.Comparison) {
	fmt.Printf("\nWalk-forward comparison %s (%s, %d bars)\n\n", cmp.ID, cmp.Symbol, cmp.Bars)
	fmt.Printf("%-14s %12s %10s %10s %8s %9s  %s\n",
		"strategy", "final", "return", "sharpe", "max dd", "trades", "")
	printRun(cmp.Adaptive, "")
	for _, b := range cmp.Baselines {
		verdict := "beaten"
		if !cmp.BeatBaseline[b.Strategy] {
			verdict = "ahead"
		}
		printRun(b, verdict)
	}
	fmt.Printf("\nretrains: %d\n", cmp.Adaptive.RetrainCount)
}

func printRun(r *backtest.EvaluationRun, verdict string) {
	fmt.Printf("%-14s %12.2f %9.2f%% %10.3f %7.2f%% %9d  %s\n",
		r.Strategy, r.FinalEquity, r.TotalReturn*100, r.SharpeRatio,
		r.MaxDrawdown*100, r.TradeCount, verdict)
}
