package main

import (
	"fmt"
	"runtime"
	rdebug "runtime/debug"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/sysmem"
)

const heapkitModule = "github.com/joshuapare/heapkit"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionReport describes the binary and the allocator it was built with.
type VersionReport struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Built      string `json:"built"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	Heapkit    string `json:"heapkit"`
	Policy     string `json:"default_policy"`
	HeaderSize int    `json:"header_size"`
	MinChunk   int    `json:"min_chunk"`
	PageSize   int    `json:"page_size"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and allocator build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	rep := buildVersionReport(rdebug.ReadBuildInfo)
	if jsonOut {
		return printJSON(rep)
	}

	fmt.Printf("heapctl %s\n", rep.Version)
	fmt.Printf("  commit:   %s\n", rep.Commit)
	fmt.Printf("  built:    %s\n", rep.Built)
	fmt.Printf("  go:       %s %s\n", rep.GoVersion, rep.Platform)
	fmt.Printf("  heapkit:  %s\n", rep.Heapkit)
	fmt.Printf("  policy:   %s\n", rep.Policy)
	fmt.Printf("  header:   %d bytes (min chunk %d)\n", rep.HeaderSize, rep.MinChunk)
	fmt.Printf("  page:     %d bytes\n", rep.PageSize)
	return nil
}

// buildVersionReport fills in commit, date and the heapkit version from the
// embedded build info when the linker flags left them unset.
func buildVersionReport(readInfo func() (*rdebug.BuildInfo, bool)) VersionReport {
	rep := VersionReport{
		Version:    version,
		Commit:     commit,
		Built:      date,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Heapkit:    "unknown",
		Policy:     alloc.DefaultConfig.Policy.String(),
		HeaderSize: format.HeaderSize,
		MinChunk:   format.MinChunkSize,
		PageSize:   sysmem.PageSize(),
	}

	info, ok := readInfo()
	if !ok || info == nil {
		return rep
	}
	if info.GoVersion != "" {
		rep.GoVersion = info.GoVersion
	}
	for _, dep := range info.Deps {
		if dep.Path != heapkitModule {
			continue
		}
		rep.Heapkit = dep.Version
		if dep.Replace != nil {
			rep.Heapkit = dep.Replace.Path
		}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if rep.Commit == "none" {
				rep.Commit = s.Value
			}
		case "vcs.time":
			if rep.Built == "unknown" {
				rep.Built = s.Value
			}
		}
	}
	return rep
}
