package tool_runcommand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/shell"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// Tool identity constants. The group is what approval profiles key pattern
// overrides on.
const (
	Group = "shell"
	Name  = "run_command"
)

const runCommandPrompt = `Executes a shell command and returns its output.

Usage:
- Commands run in the task's working directory unless working_dir is set.
- stdout and stderr are captured and streamed as the command produces them.
- Long-running commands are killed when the timeout elapses (default 120000 ms); raise timeout_ms for slow builds or test suites.
- Exit codes are reported as-is; a non-zero exit is a result, not a tool failure.`

// RunCommandInput represents the parameters for run_command.
type RunCommandInput struct {
	Command    string `json:"command" required:"true" description:"The shell command to execute"`
	WorkingDir string `json:"working_dir,omitempty" description:"Directory to run the command in"`
	TimeoutMs  int    `json:"timeout_ms,omitempty" description:"Wall-clock timeout in milliseconds (default 120000)"`
}

// RunCommandOutput represents the response from run_command.
type RunCommandOutput struct {
	Command  string `json:"command" description:"The command that was executed"`
	Output   string `json:"output" description:"Captured stdout"`
	Stderr   string `json:"stderr,omitempty" description:"Captured stderr"`
	ExitCode int    `json:"exit_code" description:"Process exit code"`
	TimedOut bool   `json:"timed_out,omitempty" description:"Whether the command hit its timeout"`
	Duration string `json:"duration" description:"Wall-clock execution time"`
}

// Tool returns the run_command tool backed by the given runner.
func Tool(runner shell.Runner) (agent.Tool, error) {
	return agent.NewGenericTool(Group, Name, runCommandPrompt, makeRunCommandHandler(runner))
}

func makeRunCommandHandler(runner shell.Runner) func(ctx context.Context, input RunCommandInput) (RunCommandOutput, error) {
	return func(ctx context.Context, input RunCommandInput) (RunCommandOutput, error) {
		logger := toolsutil.GetLogger()

		if err := ctx.Err(); err != nil {
			return RunCommandOutput{}, err
		}
		if runner == nil {
			return RunCommandOutput{}, fmt.Errorf("shell runner not provided")
		}
		if input.WorkingDir != "" && !toolsutil.IsPathSafe(input.WorkingDir) {
			logger.Error("unsafe working directory rejected", "working_dir", input.WorkingDir)
			return RunCommandOutput{}, fmt.Errorf("%w: %s", toolsutil.ErrUnsafePath, input.WorkingDir)
		}

		timeoutMs := input.TimeoutMs
		if timeoutMs <= 0 {
			timeoutMs = shell.DefaultTimeoutMs
		}

		logger.Info("running command", "command", input.Command, "working_dir", input.WorkingDir, "timeout_ms", timeoutMs)

		result, err := runner.Run(ctx, shell.Command{
			Line:      input.Command,
			Dir:       input.WorkingDir,
			TimeoutMs: timeoutMs,
		}, shell.ChunkFunc(toolsutil.ProgressFromContext(ctx)))
		if err != nil {
			// Cancellation propagates as-is so the pipeline reports it
			// distinctly from failure.
			if ctx.Err() != nil {
				return RunCommandOutput{}, ctx.Err()
			}
			logger.Error("command failed to run", "command", input.Command, "error", err)
			return RunCommandOutput{}, fmt.Errorf("command failed to run: %w", err)
		}

		if result.TimedOut {
			logger.Error("command timed out", "command", input.Command, "timeout_ms", timeoutMs)
			return RunCommandOutput{}, fmt.Errorf("%w after %dms (exit code %d)\n%s\nConsider increasing the timeout for long-running commands",
				toolsutil.ErrTimeout, timeoutMs, result.ExitCode, tail(result.Stderr, 2000))
		}

		logger.Info("command completed", "command", input.Command, "exit_code", result.ExitCode, "output_size", len(result.Stdout))

		return RunCommandOutput{
			Command:  input.Command,
			Output:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Duration: result.Duration.Round(time.Millisecond).String(),
		}, nil
	}
}

// tail returns the last n bytes of s, cut at a line boundary when possible.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[len(s)-n:]
	if idx := strings.IndexByte(cut, '\n'); idx >= 0 && idx < len(cut)-1 {
		cut = cut[idx+1:]
	}
	return cut
}
