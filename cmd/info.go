package cmd

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradeflow/candlecache/pkg/candlecache"
	"github.com/tradeflow/candlecache/pkg/coverage"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var infoCmd = &cobra.Command{
	Use:   "info <base-path>",
	Short: "Print per-pair coverage and table size for a cache location",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	meta := cache.Metadata()

	fmt.Fprintf(out, "cache:    %s\n", cache.BasePath())
	fmt.Fprintf(out, "rows:     %d\n", cache.Data().Len())
	fmt.Fprintf(out, "pairs:    %d\n", len(meta.Pairs))
	fmt.Fprintf(out, "frontier: %s\n", formatTime(meta.LatestEndTime()))
	fmt.Fprintf(out, "modified: %s\n", formatTime(meta.LastModifiedAt()))

	if len(meta.Pairs) == 0 {
		return nil
	}

	ids := make([]coverage.PairID, 0, len(meta.Pairs))
	for id := range meta.Pairs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nPAIR\tSTART\tEND")
	for _, id := range ids {
		interval := meta.Get(id)
		fmt.Fprintf(w, "%d\t%s\t%s\n", id, formatTime(interval.StartTime), formatTime(interval.EndTime))
	}

	return w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
