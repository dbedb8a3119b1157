package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradeflow/candlecache/pkg/candlecache"
	"github.com/tradeflow/candlecache/pkg/coverage"
)

var errVerifyFailed = errors.New("cache verification failed")

//nolint:gochecknoglobals // Cobra commands are typically global
var verifyCmd = &cobra.Command{
	Use:   "verify <base-path>",
	Short: "Check table ordering, deduplication and coverage invariants",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	config, err := inspectConfig(cfgFile)
	if err != nil {
		return err
	}

	cache, err := candlecache.Open(context.Background(), logger, args[0], config)
	if err != nil {
		return err
	}
	defer cache.Close()

	violations := 0
	report := func(format string, a ...any) {
		violations++
		logger.Errorf(format, a...)
	}

	candles := cache.Data().Candles()
	storedPairs := make(map[coverage.PairID]struct{})

	for i, c := range candles {
		storedPairs[c.PairID] = struct{}{}

		if i == 0 {
			continue
		}
		prev := candles[i-1]

		if c.Less(prev) {
			report("row %d: table not sorted by (pair, timestamp): %d@%s after %d@%s",
				i, c.PairID, c.Timestamp, prev.PairID, prev.Timestamp)
		}
		if c.PairID == prev.PairID && c.Timestamp.Equal(prev.Timestamp) {
			report("row %d: duplicate (pair, timestamp): %d@%s", i, c.PairID, c.Timestamp)
		}
	}

	meta := cache.Metadata()
	for id := range storedPairs {
		if meta.Get(id).IsZero() {
			report("pair %d has stored candles but no coverage entry", id)
		}
	}

	if violations > 0 {
		return fmt.Errorf("%w: %d violation(s)", errVerifyFailed, violations)
	}

	logger.WithField("rows", len(candles)).Info("Cache verified")

	return nil
}
