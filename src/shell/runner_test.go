package shell

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	runner := NewExecRunner("", nil)

	result, err := runner.Run(context.Background(), Command{Line: "echo hello; echo oops >&2; exit 3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Contains(t, result.Stderr, "oops")
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.TimedOut)
}

func TestExecRunner_TimeoutKillsProcessWithCode124(t *testing.T) {
	runner := NewExecRunner("", nil)

	start := time.Now()
	result, err := runner.Run(context.Background(), Command{
		Line:      "sleep 30",
		TimeoutMs: 100,
	}, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, ExitCodeTimeout, result.ExitCode)
	assert.Contains(t, result.Stderr, "timed out")
	assert.Less(t, elapsed, 2*time.Second, "timeout must terminate promptly")
}

func TestExecRunner_CancellationKillsProcess(t *testing.T) {
	runner := NewExecRunner("", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := runner.Run(ctx, Command{Line: "sleep 30"}, nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestExecRunner_StreamsChunks(t *testing.T) {
	runner := NewExecRunner("", nil)

	var mu sync.Mutex
	var chunks []string
	result, err := runner.Run(context.Background(), Command{
		Line: "printf one; sleep 0.05; printf two",
	}, func(chunk string) {
		mu.Lock()
		chunks = append(chunks, chunk)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, "onetwo", result.Stdout)
	mu.Lock()
	joined := strings.Join(chunks, "")
	mu.Unlock()
	assert.Equal(t, "onetwo", joined)
}

func TestExecRunner_WorkingDirectory(t *testing.T) {
	runner := NewExecRunner("", nil)
	dir := t.TempDir()

	result, err := runner.Run(context.Background(), Command{Line: "pwd", Dir: dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(result.Stdout))
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	runner := NewExecRunner("", nil)
	_, err := runner.Run(context.Background(), Command{}, nil)
	require.Error(t, err)
}

func TestExecRunner_SignalDeathMapsToExitCodeOne(t *testing.T) {
	runner := NewExecRunner("", nil)

	// The shell's child kills itself with a signal; no exit code exists.
	result, err := runner.Run(context.Background(), Command{Line: "kill -9 $$"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
}
