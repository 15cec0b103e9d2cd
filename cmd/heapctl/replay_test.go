package main

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
)

func TestReplayCommand(t *testing.T) {
	tests := []struct {
		name        string
		policy      string
		grow        int
		wantErr     bool
		wantJSON    bool
		wantContain []string
	}{
		{
			name:        "best fit table",
			policy:      "best",
			grow:        4096,
			wantContain: []string{"TRACE", "UTIL", "a.rep", "b.rep", "2 traces"},
		},
		{
			name:        "first fit exact growth",
			policy:      "first",
			grow:        0,
			wantContain: []string{"a.rep", "b.rep"},
		},
		{
			name:        "json output",
			policy:      "last",
			grow:        4096,
			wantJSON:    true,
			wantContain: []string{`"trace": "a.rep"`, `"policy": "last"`, `"utilization"`},
		},
		{
			name:    "unknown policy",
			policy:  "worst",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			policyName = tt.policy
			growIncrement = tt.grow
			jsonOut = tt.wantJSON

			args := []string{writeTrace(t, "a.rep", 1, 500), writeTrace(t, "b.rep", 2, 500)}
			output, err := captureOutput(t, func() error {
				return runReplay(context.Background(), args)
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("runReplay() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantJSON {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestReplayCommand_JSONShape(t *testing.T) {
	resetFlags()
	jsonOut = true

	path := writeTrace(t, "shape.rep", 3, 300)
	output, err := captureOutput(t, func() error {
		return runReplay(context.Background(), []string{path})
	})
	if err != nil {
		t.Fatalf("runReplay() error = %v", err)
	}

	var reports []ReplayReport
	if err := json.Unmarshal([]byte(output), &reports); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	r := reports[0]
	if r.Ops == 0 || r.HeapBytes == 0 || r.Utilization <= 0 || r.Utilization > 1 {
		t.Errorf("implausible report: %+v", r)
	}
	if r.Stats.InUseBytes != 0 {
		t.Errorf("blocks left in use: %d", r.Stats.InUseBytes)
	}
}

func TestReplayCommand_MissingFile(t *testing.T) {
	resetFlags()
	_, err := captureOutput(t, func() error {
		return runReplay(context.Background(), []string{"does-not-exist.rep"})
	})
	if err == nil {
		t.Fatal("expected error for missing trace")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a-very-long-trace-name.rep", 10); got != "a-very-lo…" {
		t.Errorf("truncate(long) = %q", got)
	}
}
