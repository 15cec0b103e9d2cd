package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/trace"
)

// writeTrace generates a trace and writes it to a temp file.
func writeTrace(t *testing.T, name string, seed uint64, ops int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create trace: %v", err)
	}
	defer f.Close()
	if _, err := trace.Generate(seed, ops, 2048).WriteTo(f); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	return path
}

// resetFlags restores every flag variable to its default.
func resetFlags() {
	verbose, quiet, jsonOut, noColor, debug = false, false, false, true, false
	policyName = "best"
	growIncrement = alloc.DefaultConfig.GrowIncrement
	maxHeap = 16 << 20
	noFallback = false
	replayCheckEvery = trace.DefaultOptions.CheckEvery
	replayNoVerify = false
	mapStopAt, mapWidth, mapCell, mapChunks = 0, 64, 0, false
	genSeed, genOps, genMaxSize, genOutput = 1, 1000, 4096, ""
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	out := <-done
	return string(out), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("output is not valid JSON: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, want []string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(output, s) {
			t.Errorf("output missing %q\nOutput: %s", s, output)
		}
	}
}
