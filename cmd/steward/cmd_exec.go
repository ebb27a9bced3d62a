package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/approval"
	"github.com/stewardhq/steward/src/convo"
	"github.com/stewardhq/steward/src/pipeline"
	"github.com/stewardhq/steward/src/stewardagent"
)

// ExecCmd runs one tool call through the full approval pipeline: gate
// decision, interactive prompt if the profile asks, streamed output, and a
// finished tool message printed at the end.
type ExecCmd struct {
	Name   string `arg:"" help:"Tool name (e.g. run_command)"`
	Input  string `short:"i" default:"{}" help:"Tool input as JSON"`
	Stream bool   `help:"Print streaming output chunks as they arrive"`
}

func (c *ExecCmd) Run(ctx *kong.Context, cli *CLI) error {
	_, profile, err := loadConfigAndProfile(cli)
	if err != nil {
		return err
	}
	// Approval prompts own stderr during exec, so logs go to the state dir.
	logger := createFileLogger(cli.LogLevel)

	if !json.Valid([]byte(c.Input)) {
		return fmt.Errorf("input is not valid JSON")
	}

	toolbox, err := stewardagent.BuildToolbox(profile, stewardagent.Deps{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to build toolbox: %w", err)
	}

	gate := approval.NewGate(profile, newTerminalApprover(), logger)
	log := convo.NewLog()
	sink := pipeline.NewLogSink(log)
	p := pipeline.New(gate, toolbox, sink, logger)

	if c.Stream {
		var printed int
		p.OnUpdate(func(u pipeline.Update) {
			if u.Status == pipeline.StatusRunning && len(u.Output) > printed {
				fmt.Fprint(os.Stderr, u.Output[printed:])
				printed = len(u.Output)
			}
		})
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	call := agent.ToolCall{
		ID:        uuid.NewString(),
		Name:      c.Name,
		Arguments: json.RawMessage(c.Input),
	}
	if err := p.ExecuteCalls(runCtx, []agent.ToolCall{call}); err != nil {
		return err
	}

	for _, msg := range log.Messages() {
		for _, result := range msg.ToolResults() {
			if result.IsError {
				fmt.Fprintln(os.Stderr, result.Output)
				continue
			}
			fmt.Println(result.Output)
		}
	}
	return nil
}
