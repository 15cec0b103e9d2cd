package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/trace"
)

var (
	mapStopAt int
	mapWidth  int
	mapCell   int
	mapChunks bool
)

func init() {
	cmd := newMapCmd()
	addHeapFlags(cmd)
	cmd.Flags().IntVar(&mapStopAt, "stop-at", 0, "Stop after this many ops (0 = whole trace)")
	cmd.Flags().IntVar(&mapWidth, "width", 64, "Cells per map row")
	cmd.Flags().IntVar(&mapCell, "cell", 0, "Bytes per map cell (0 = fit the heap in 32 rows)")
	cmd.Flags().BoolVar(&mapChunks, "chunks", false, "List every chunk")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map <trace>",
		Short: "Replay a trace and draw the resulting heap",
		Long: `The map command replays a trace (optionally stopping partway) and draws
the heap: '#' cells are in use, '.' cells are free, '|' marks a segment start.

Example:
  heapctl map --stop-at 200 short1.rep
  heapctl map --chunks --no-color short1.rep`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(args)
		},
	}
}

// ChunkReport is the JSON form of one chunk.
type ChunkReport struct {
	Off     uint32 `json:"off"`
	Size    uint32 `json:"size"`
	Used    bool   `json:"used"`
	Segment int    `json:"segment"`
}

// MapReport is the JSON form of the map command.
type MapReport struct {
	Trace      string        `json:"trace"`
	Ops        int           `json:"ops"`
	HeapBytes  int           `json:"heap_bytes"`
	Segments   int           `json:"segments"`
	Chunks     []ChunkReport `json:"chunks"`
	FreeList   []uint32      `json:"free_list"`
	InUseBytes int64         `json:"in_use_bytes"`
}

func runMap(args []string) error {
	cfg, err := heapConfig()
	if err != nil {
		return err
	}
	t, err := trace.ParseFile(args[0])
	if err != nil {
		return err
	}
	if mapStopAt > 0 && mapStopAt < len(t.Ops) {
		cut := *t
		cut.Ops = t.Ops[:mapStopAt]
		t = &cut
	}

	h, release, err := newHeap(cfg)
	if err != nil {
		return err
	}
	defer release()

	res, err := trace.Replay(h, t)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	var chunks []alloc.ChunkInfo
	h.Walk(func(c alloc.ChunkInfo) bool {
		chunks = append(chunks, c)
		return true
	})

	if jsonOut {
		report := MapReport{
			Trace:      t.Name,
			Ops:        res.Ops,
			HeapBytes:  h.HeapSize(),
			Segments:   res.Stats.Segments,
			InUseBytes: res.Stats.InUseBytes,
			Chunks:     make([]ChunkReport, len(chunks)),
		}
		for i, c := range chunks {
			report.Chunks[i] = ChunkReport{Off: c.Off, Size: c.Size, Used: c.Used, Segment: c.Segment}
		}
		for _, c := range h.FreeChunks() {
			report.FreeList = append(report.FreeList, c.Off)
		}
		return printJSON(report)
	}

	printInfo("%s\n", render(headerStyle, fmt.Sprintf("Heap after %d ops of %s", res.Ops, t.Name)))
	printInfo("  Size: %s (%s bytes) in %d segment(s)\n",
		formatBytes(int64(h.HeapSize())), formatNumber(h.HeapSize()), res.Stats.Segments)
	printInfo("  In use: %s bytes, free: %s bytes in %d chunk(s)\n\n",
		formatNumber(res.Stats.InUseBytes), formatNumber(res.Stats.FreeBytes), res.Stats.FreeChunks)

	if h.HeapSize() == 0 {
		printInfo("(empty heap)\n")
		return nil
	}

	cell := mapCell
	if cell <= 0 {
		cells := max(mapWidth, 1) * 32
		cell = max(8, (h.HeapSize()+cells-1)/cells)
	}
	printInfo("%s", drawMap(chunks, h.HeapSize(), cell, max(mapWidth, 1)))
	printInfo("\n%s used  %s free  %s segment start  (1 cell = %d bytes)\n",
		render(usedStyle, "#"), render(freeStyle, "."), render(segmentStyle, "|"), cell)

	if mapChunks {
		printInfo("\n%-10s %10s  %-4s %s\n", "OFFSET", "SIZE", "STATE", "SEG")
		for _, c := range chunks {
			state := render(freeStyle, "free")
			if c.Used {
				state = render(usedStyle, "used")
			}
			printInfo("0x%08x %10s  %s %3d\n", c.Off, formatNumber(c.Size), state, c.Segment)
		}
	}
	return nil
}

// drawMap renders the heap as rows of cells. A cell is drawn as used if any
// used chunk overlaps it.
func drawMap(chunks []alloc.ChunkInfo, heapSize, cell, width int) string {
	cells := (heapSize + cell - 1) / cell
	used := make([]bool, cells)
	starts := make(map[int]bool)

	seg := -1
	for _, c := range chunks {
		first := int(c.Off) / cell
		if c.Segment != seg {
			starts[first] = true
			seg = c.Segment
		}
		if !c.Used {
			continue
		}
		last := (int(c.Off+c.Size) - 1) / cell
		for i := first; i <= last; i++ {
			used[i] = true
		}
	}

	var b strings.Builder
	for row := 0; row < cells; row += width {
		fmt.Fprintf(&b, "0x%08x ", row*cell)
		for i := row; i < min(row+width, cells); i++ {
			switch {
			case starts[i] && i != 0:
				b.WriteString(render(segmentStyle, "|"))
			case used[i]:
				b.WriteString(render(usedStyle, "#"))
			default:
				b.WriteString(render(freeStyle, "."))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
