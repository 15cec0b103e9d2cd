package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/trace"
)

var (
	replayCheckEvery int
	replayNoVerify   bool
)

func init() {
	cmd := newReplayCmd()
	addHeapFlags(cmd)
	cmd.Flags().IntVar(&replayCheckEvery, "check-every", trace.DefaultOptions.CheckEvery,
		"Run the heap consistency check every N ops (0 = only at the end)")
	cmd.Flags().BoolVar(&replayNoVerify, "no-verify", false, "Skip block content verification")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>...",
		Short: "Replay traces and report utilisation",
		Long: `The replay command runs each trace on a fresh heap, in parallel, checking
heap invariants and block contents as it goes.

Example:
  heapctl replay traces/*.rep
  heapctl replay --policy first --grow 0 amptjp-bal.rep
  heapctl replay --json short1.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), args)
		},
	}
	return cmd
}

// ReplayReport is the JSON form of one replay.
type ReplayReport struct {
	Trace       string  `json:"trace"`
	Policy      string  `json:"policy"`
	Ops         int     `json:"ops"`
	HeapBytes   int     `json:"heap_bytes"`
	PeakPayload int64   `json:"peak_payload"`
	Utilization float64 `json:"utilization"`
	ElapsedNS   int64   `json:"elapsed_ns"`

	Stats alloc.Stats `json:"stats"`
}

func runReplay(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := heapConfig()
	if err != nil {
		return err
	}

	traces := make([]*trace.Trace, 0, len(args))
	for _, path := range args {
		printVerbose("Parsing trace: %s\n", path)
		t, err := trace.ParseFile(path)
		if err != nil {
			return err
		}
		traces = append(traces, t)
	}

	opts := trace.Options{CheckEvery: replayCheckEvery, SkipVerify: replayNoVerify}
	results, err := trace.ReplayAll(ctx, traces, func() (*alloc.Heap, func(), error) {
		return newHeap(cfg)
	}, opts)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	reports := make([]ReplayReport, len(results))
	for i, res := range results {
		reports[i] = ReplayReport{
			Trace:       res.Name,
			Policy:      cfg.Policy.String(),
			Ops:         res.Ops,
			HeapBytes:   res.HeapSize,
			PeakPayload: res.PeakPayload,
			Utilization: res.Utilization,
			ElapsedNS:   res.Elapsed.Nanoseconds(),
			Stats:       res.Stats,
		}
	}

	if jsonOut {
		return printJSON(reports)
	}
	printReplayTable(reports)
	return nil
}

func printReplayTable(reports []ReplayReport) {
	header := fmt.Sprintf("%-20s %8s %12s %12s %7s %6s %6s %8s %8s",
		"TRACE", "OPS", "HEAP", "PEAK", "UTIL", "GROWS", "MAPS", "SPLITS", "MERGES")
	printInfo("%s\n%s\n", header, strings.Repeat("─", len([]rune(header))))

	var util float64
	var ops int
	for _, r := range reports {
		printInfo("%-20s %8s %12s %12s %6.1f%% %6d %6d %8d %8d\n",
			truncate(r.Trace, 20),
			formatNumber(r.Ops),
			formatNumber(r.HeapBytes),
			formatNumber(r.PeakPayload),
			r.Utilization*100,
			r.Stats.GrowCalls,
			r.Stats.FallbackMaps,
			r.Stats.SplitCount,
			r.Stats.CoalesceForward+r.Stats.CoalesceBackward,
		)
		util += r.Utilization
		ops += r.Ops
	}
	if len(reports) > 1 {
		printInfo("\n%d traces, %s ops, mean utilisation %.1f%%\n",
			len(reports), formatNumber(ops), util*100/float64(len(reports)))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
