package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfuse/quantfuse/internal/config"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/regime"
)

func runRegimeReport(cmd *cobra.Command, _ []string) error {
	setLogLevel(cmd)

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	bars, err := loadBars(cmd, cfg.Backtest.Seed)
	if err != nil {
		return err
	}

	obs, err := market.ExtractObservations(bars, cfg.Backtest.VolWindow)
	if err != nil {
		return err
	}

	det, err := regime.NewDetector(cfg.Regime)
	if err != nil {
		return err
	}
	if err := det.Fit(context.Background(), obs); err != nil {
		return err
	}

	path, err := det.Decode(obs)
	if err != nil {
		return err
	}
	current, err := det.CurrentRegime(obs)
	if err != nil {
		return err
	}

	counts := make(map[regime.Type]int)
	transitions := 0
	for i, r := range path {
		counts[r]++
		if i > 0 && path[i-1] != r {
			transitions++
		}
	}

	fmt.Printf("\nRegime report: %d bars, %d observations\n\n", len(bars), len(obs))
	for _, state := range det.States() {
		n := counts[state]
		fmt.Printf("%-14s %6d bars  %5.1f%%\n", state, n, 100*float64(n)/float64(len(path)))
	}
	fmt.Printf("\ntransitions: %d\n", transitions)
	fmt.Printf("current: %s (confidence %.2f)\n", current.Regime, current.Confidence)
	for state, p := range current.Posterior {
		log.Debug().Str("regime", string(state)).Float64("posterior", p).Msg("posterior")
	}
	return nil
}
