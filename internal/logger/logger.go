// Package logger holds the structured logger shared by the allocator and its tools.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvLogAlloc enables debug logging to stderr at startup when set to any non-empty value.
const EnvLogAlloc = "HEAPKIT_LOG_ALLOC"

// L is the global logger instance. It discards all output unless
// HEAPKIT_LOG_ALLOC is set or Init enables it.
var L = defaultLogger()

const (
	logPrefix     = "heapkit-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. When nil, a dated file under LogDir is used
	LogDir  string     // Directory for log files. Default: ~/.heapkit/logs
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Emit JSON records instead of text
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return nil
	}

	w := opts.Writer
	if w == nil {
		f, err := openLogFile(opts.LogDir)
		if err != nil {
			return err
		}
		w = f
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, handlerOpts))
	} else {
		L = slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return nil
}

func defaultLogger() *slog.Logger {
	if os.Getenv(EnvLogAlloc) != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

func openLogFile(logDir string) (*os.File, error) {
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir = filepath.Join(home, ".heapkit", "logs")
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	// Clean up old logs (best-effort, ignore errors)
	cleanOldLogs(logDir)

	filename := filepath.Join(logDir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// cleanOldLogs removes log files older than retentionDays.
func cleanOldLogs(logDir string) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}

		// Parse date from filename: heapkit-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}
