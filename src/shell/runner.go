// Package shell provides the process-spawning primitive behind the
// run_command tool. The Runner interface is externally providable so tests
// and embedders can swap the real implementation for a double.
package shell

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeoutMs is the wall-clock budget for a command when the caller
// does not set one.
const DefaultTimeoutMs = 120000

// ExitCodeTimeout is reported when the timeout kills the process, matching
// the conventional timeout(1) exit code.
const ExitCodeTimeout = 124

// Command describes one shell invocation.
type Command struct {
	Line      string
	Dir       string
	Env       []string
	TimeoutMs int
}

// Result is the terminal outcome of a command. A timeout is a result, not
// an error: the process was killed, the exit code is 124, and stderr carries
// the timeout notice.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// ChunkFunc receives incremental output as the process produces it. Chunks
// are delivered in order; stdout and stderr are interleaved as observed.
type ChunkFunc func(chunk string)

// Runner executes commands. Implementations must kill the child process on
// cancellation and must not leave orphaned children behind.
type Runner interface {
	Run(ctx context.Context, cmd Command, onChunk ChunkFunc) (*Result, error)
}

// ExecRunner runs commands through a real shell with its own process group,
// so a timeout or cancellation terminates the whole child tree.
type ExecRunner struct {
	Shell  string
	logger *slog.Logger
}

// NewExecRunner creates a runner using the given shell, defaulting to
// /bin/bash.
func NewExecRunner(shellPath string, logger *slog.Logger) *ExecRunner {
	if shellPath == "" {
		shellPath = "/bin/bash"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecRunner{Shell: shellPath, logger: logger}
}

// Run executes the command to completion, streaming output through onChunk.
// Cancellation of ctx kills the process and returns ctx's error; a timeout
// kills the process and returns a Result with exit code 124.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, onChunk ChunkFunc) (*Result, error) {
	if cmd.Line == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}
	timeout := time.Duration(cmd.TimeoutMs) * time.Millisecond
	if cmd.TimeoutMs <= 0 {
		timeout = DefaultTimeoutMs * time.Millisecond
	}

	proc := exec.Command(r.Shell, "-c", cmd.Line)
	proc.Dir = cmd.Dir
	proc.Env = cmd.Env
	// Own process group: signals reach the whole child tree.
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	start := time.Now()
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	r.logger.Debug("command started", "pid", proc.Process.Pid, "command", cmd.Line)

	var mu sync.Mutex
	var outBuf, errBuf strings.Builder
	var readers sync.WaitGroup
	drain := func(src io.Reader, buf *strings.Builder) {
		defer readers.Done()
		chunk := make([]byte, 4096)
		for {
			n, rerr := src.Read(chunk)
			if n > 0 {
				piece := string(chunk[:n])
				mu.Lock()
				buf.WriteString(piece)
				mu.Unlock()
				if onChunk != nil {
					onChunk(piece)
				}
			}
			if rerr != nil {
				return
			}
		}
	}
	readers.Add(2)
	go drain(stdout, &outBuf)
	go drain(stderr, &errBuf)

	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		waitCh <- proc.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		r.terminate(proc, waitCh)
		return nil, ctx.Err()
	case <-timer.C:
		timedOut = true
		r.terminate(proc, waitCh)
	}
	duration := time.Since(start)

	mu.Lock()
	result := &Result{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Duration: duration,
	}
	mu.Unlock()

	if timedOut {
		result.TimedOut = true
		result.ExitCode = ExitCodeTimeout
		notice := fmt.Sprintf("command timed out after %dms", int64(timeout/time.Millisecond))
		if result.Stderr != "" && !strings.HasSuffix(result.Stderr, "\n") {
			result.Stderr += "\n"
		}
		result.Stderr += notice
		r.logger.Warn("command timed out", "command", cmd.Line, "timeout_ms", int64(timeout/time.Millisecond))
		return result, nil
	}

	result.ExitCode = exitCode(waitErr, proc)
	return result, nil
}

// terminate signals the process group with SIGTERM, escalating to SIGKILL
// if it does not exit promptly, and reaps the child.
func (r *ExecRunner) terminate(proc *exec.Cmd, waitCh <-chan error) {
	if proc.Process == nil {
		return
	}
	pgid := -proc.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)
	select {
	case <-waitCh:
		return
	case <-time.After(2 * time.Second):
	}
	_ = syscall.Kill(pgid, syscall.SIGKILL)
	<-waitCh
}

// exitCode maps a Wait error to the reported exit code. A process killed by
// a signal has no exit code of its own and maps to 1.
func exitCode(waitErr error, proc *exec.Cmd) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return 1
	}
	if proc.ProcessState != nil {
		if code := proc.ProcessState.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}
