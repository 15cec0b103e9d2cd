package alloc

import "fmt"

// Config controls allocator behaviour.
// Different configurations can be compared on the same workload with heapctl replay.
type Config struct {
	// Name for this configuration (for reports)
	Name string

	// Policy chooses the free chunk that serves a request.
	Policy FitPolicy

	// GrowIncrement is the minimum number of bytes requested per growth.
	// Larger requests grow by exactly their chunk size. 0 grows by the chunk size only.
	GrowIncrement int

	// MaxHeap is the size of the primary reservation made by callers that
	// build their own Grower from a Config (pkg/malloc, heapctl).
	MaxHeap int

	// DisableFallback turns off the Mapper fallback when the Grower fails.
	DisableFallback bool

	// SkipHeaderCheck disables check-word validation of pointers passed to
	// Free, Realloc and Bytes.
	SkipHeaderCheck bool
}

// Predefined configurations.
var (
	// ConfigBestFit: smallest sufficient chunk, page-sized growth.
	ConfigBestFit = Config{
		Name:          "BestFit",
		Policy:        BestFit,
		GrowIncrement: 4096,
		MaxHeap:       1 << 30,
	}

	// ConfigFirstFit: first sufficient chunk, page-sized growth.
	ConfigFirstFit = Config{
		Name:          "FirstFit",
		Policy:        FirstFit,
		GrowIncrement: 4096,
		MaxHeap:       1 << 30,
	}

	// ConfigLastFit: last sufficient chunk in list order, page-sized growth.
	ConfigLastFit = Config{
		Name:          "LastFit",
		Policy:        LastFit,
		GrowIncrement: 4096,
		MaxHeap:       1 << 30,
	}

	// ConfigCompact: best fit and growth by exactly the chunk size.
	// Minimises heap size at the cost of more growth calls.
	ConfigCompact = Config{
		Name:          "Compact",
		Policy:        BestFit,
		GrowIncrement: 0,
		MaxHeap:       1 << 30,
	}

	// Default configuration (used if none specified).
	DefaultConfig = ConfigBestFit
)

func (c Config) validate() error {
	if c.GrowIncrement < 0 {
		return fmt.Errorf("alloc: negative GrowIncrement %d", c.GrowIncrement)
	}
	if int64(c.GrowIncrement) > maxHeapSize {
		return fmt.Errorf("alloc: GrowIncrement %d exceeds heap limit", c.GrowIncrement)
	}
	if c.MaxHeap < 0 {
		return fmt.Errorf("alloc: negative MaxHeap %d", c.MaxHeap)
	}
	if c.Policy > LastFit {
		return fmt.Errorf("alloc: unknown fit policy %d", c.Policy)
	}
	return nil
}
