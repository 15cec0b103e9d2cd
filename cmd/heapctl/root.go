package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/internal/sysmem"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
	debug   bool
)

// Heap flags shared by replay and map
var (
	policyName    string
	growIncrement int
	maxHeap       int
	noFallback    bool
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Replay allocation traces against heapkit heaps",
	Long: `heapctl drives the heapkit allocator with malloc-lab style traces.
It replays traces under different fit policies and growth settings, verifies
heap invariants and block contents along the way, and reports utilisation.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Options{
			Enabled: debug,
			Writer:  os.Stderr,
			Level:   slog.LevelDebug,
		})
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log allocator events to stderr")
}

// addHeapFlags registers the flags that shape the heap a command builds.
func addHeapFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&policyName, "policy", "best", "Fit policy: best, first or last")
	cmd.Flags().IntVar(&growIncrement, "grow", alloc.DefaultConfig.GrowIncrement, "Minimum growth in bytes (0 = exact)")
	cmd.Flags().IntVar(&maxHeap, "max-heap", 256<<20, "Primary region size in bytes")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Disable the anonymous mapping fallback")
}

// heapConfig builds an allocator config from the heap flags.
func heapConfig() (alloc.Config, error) {
	policy, err := alloc.ParsePolicy(policyName)
	if err != nil {
		return alloc.Config{}, err
	}
	cfg := alloc.DefaultConfig
	cfg.Name = policy.String()
	cfg.Policy = policy
	cfg.GrowIncrement = growIncrement
	cfg.MaxHeap = maxHeap
	cfg.DisableFallback = noFallback
	return cfg, nil
}

// newHeap reserves a primary region and an anonymous mapper for one heap.
// release unmaps both.
func newHeap(cfg alloc.Config) (*alloc.Heap, func(), error) {
	brk, err := sysmem.Reserve(cfg.MaxHeap)
	if err != nil {
		return nil, nil, err
	}
	anon := sysmem.NewAnon(0)
	release := func() {
		if err := brk.Close(); err != nil {
			printVerbose("release primary region: %v\n", err)
		}
		if err := anon.Close(); err != nil {
			printVerbose("release mappings: %v\n", err)
		}
	}

	h, err := alloc.New(brk, anon, &cfg)
	if err != nil {
		release()
		return nil, nil, err
	}
	return h, release, nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

var numbers = message.NewPrinter(language.English)

// formatNumber renders n with thousands separators.
func formatNumber[T ~int | ~int64 | ~uint32](n T) string {
	return numbers.Sprintf("%d", n)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
