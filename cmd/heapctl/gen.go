package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/trace"
)

var (
	genSeed    uint64
	genOps     int
	genMaxSize int
	genOutput  string
)

func init() {
	cmd := newGenCmd()
	cmd.Flags().Uint64Var(&genSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&genOps, "ops", 1000, "Number of operations")
	cmd.Flags().IntVar(&genMaxSize, "max-size", 4096, "Largest block size in bytes")
	cmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen",
		Short: "Generate a random trace",
		Long: `The gen command writes a random malloc-lab trace. Every block it
allocates is freed before the trace ends.

Example:
  heapctl gen --ops 5000 --max-size 16384 -o random.rep`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen()
		},
	}
}

func runGen() error {
	t := trace.Generate(genSeed, genOps, genMaxSize)

	var w io.Writer = os.Stdout
	if genOutput != "" {
		f, err := os.Create(genOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := t.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	if genOutput != "" {
		printVerbose("Wrote %d ops (%d ids) to %s\n", len(t.Ops), t.NumIDs, genOutput)
	}
	return nil
}
