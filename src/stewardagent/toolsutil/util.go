// Package toolsutil carries the helpers shared by the built-in tools:
// package logger, sentinel errors, path safety checks, and the progress
// callback plumbing used for streaming tool output.
package toolsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

// SetLogger sets a custom logger for the tools packages.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger.
func GetLogger() *slog.Logger {
	return logger
}

// Sentinel errors shared across tools. ErrTimeout and cancellation are
// classified by the pipeline into distinct terminal outcomes.
var (
	ErrUnsafePath    = errors.New("unsafe path")
	ErrFileTooLarge  = errors.New("file too large")
	ErrTimeout       = errors.New("command timed out")
	ErrInvalidParams = errors.New("invalid parameters")
)

// TaskEnv is the task/project collaborator the file tools and the pipeline
// consult: working directories plus version-control registration for files
// the agent writes.
type TaskEnv interface {
	TaskDir() string
	ProjectDir() string
	AddToGit(path string) error
}

// NopTaskEnv is a TaskEnv that runs against the process working directory
// and skips version-control registration.
type NopTaskEnv struct{}

func (NopTaskEnv) TaskDir() string            { return "." }
func (NopTaskEnv) ProjectDir() string         { return "." }
func (NopTaskEnv) AddToGit(path string) error { return nil }

// ProgressFunc receives an incremental output chunk from a streaming tool.
type ProgressFunc func(chunk string)

type progressKey struct{}

// WithProgress attaches a streaming progress callback to the context. Tools
// that produce incremental output report each chunk through it.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFromContext returns the progress callback attached to the context,
// or nil when the caller did not ask for streaming.
func ProgressFromContext(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}

// IsPathSafe rejects paths under system directories, traversal attempts,
// and embedded null bytes.
func IsPathSafe(path string) bool {
	cleanPath := filepath.Clean(path)

	dangerousPaths := []string{
		"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin",
		"/boot", "/sys", "/proc", "/dev", "/root",
		"/var/log", "/var/lib", "/var/run",
		"/lib", "/lib64", "/usr/lib", "/usr/lib64",
	}
	for _, dangerous := range dangerousPaths {
		if cleanPath == dangerous || strings.HasPrefix(cleanPath, dangerous+"/") {
			return false
		}
	}

	if strings.Contains(cleanPath, "../") || strings.Contains(cleanPath, "..\\") {
		return false
	}
	if strings.Contains(cleanPath, "\x00") {
		return false
	}
	return true
}

// ValidateFileSize checks that a size is within the tool limit.
func ValidateFileSize(size int64) error {
	const maxFileSize = 100 * 1024 * 1024 // 100MB
	if size > maxFileSize {
		return fmt.Errorf("%w: file size %s exceeds maximum %s", ErrFileTooLarge, FormatBytes(size), FormatBytes(maxFileSize))
	}
	return nil
}

// IsTextFile reports whether content appears to be text.
func IsTextFile(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	for i := 0; i < len(content) && i < 8192; i++ {
		if content[i] == 0 {
			return false
		}
	}
	if !utf8.Valid(content) {
		return false
	}

	sampleSize := len(content)
	if sampleSize > 8192 {
		sampleSize = 8192
	}
	printable := 0
	for _, b := range content[:sampleSize] {
		if b >= 32 && b <= 126 || b == '\t' || b == '\n' || b == '\r' {
			printable++
		}
	}
	return float64(printable)/float64(sampleSize) > 0.70
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(bytes int64) string {
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
