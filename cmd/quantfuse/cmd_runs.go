package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfuse/quantfuse/internal/backtest"
	"github.com/quantfuse/quantfuse/internal/config"
	"github.com/quantfuse/quantfuse/internal/persistence"
)

// runListRuns reads back stored walk-forward comparisons: one by id, or the
// most recent ones for a symbol.
func runListRuns(cmd *cobra.Command, _ []string) error {
	setLogLevel(cmd)

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if dsn, _ := cmd.Flags().GetString("store-dsn"); dsn != "" {
		cfg.PostgresDSN = dsn
	}
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("a postgres DSN is required (--store-dsn or postgres_dsn in config)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := persistence.NewRunStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	jsonOut, _ := cmd.Flags().GetBool("json")

	if id, _ := cmd.Flags().GetString("id"); id != "" {
		cmp, err := store.GetComparison(ctx, id)
		if err != nil {
			return err
		}
		if jsonOut {
			return encodeJSON(cmp)
		}
		printComparison(cmp)
		return nil
	}

	symbol, _ := cmd.Flags().GetString("symbol")
	if symbol == "" {
		symbol = cfg.Backtest.Symbol
	}
	limit, _ := cmd.Flags().GetInt("limit")

	comparisons, err := store.ListComparisons(ctx, symbol, limit)
	if err != nil {
		return err
	}
	if jsonOut {
		return encodeJSON(comparisons)
	}
	printRunList(symbol, comparisons)
	return nil
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRunList(symbol string, comparisons []*backtest.Comparison) {
	if len(comparisons) == 0 {
		fmt.Printf("no stored comparisons for %s\n", symbol)
		return
	}

	fmt.Printf("\nStored comparisons for %s\n\n", symbol)
	fmt.Printf("%-38s %-20s %6s %9s %9s\n", "id", "created", "bars", "return", "retrains")
	for _, c := range comparisons {
		fmt.Printf("%-38s %-20s %6d %8.2f%% %9d\n",
			c.ID, c.CreatedAt.Format("2006-01-02 15:04:05"), c.Bars,
			c.Adaptive.TotalReturn*100, c.Adaptive.RetrainCount)
	}
}
