// Package pipeline turns agent tool requests into policy decisions and
// executed side effects, streaming partial output into the conversation log
// and normalizing every failure mode into a tool message.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/approval"
	"github.com/stewardhq/steward/src/convo"
	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// CancelledMessage is the uniform text reported for user aborts.
const CancelledMessage = "Operation was cancelled by user."

// Status tracks one invocation through its lifecycle. Requested, Approved
// and Running are transient; the rest are terminal.
type Status string

const (
	StatusRequested Status = "requested"
	StatusDenied    Status = "denied"
	StatusApproved  Status = "approved"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status ends the invocation.
func (s Status) Terminal() bool {
	switch s {
	case StatusDenied, StatusSucceeded, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Update is one progress report for a tool call. Output is cumulative, so
// within an invocation updates are monotonic; the terminal update is always
// the last one for its ToolCallID.
type Update struct {
	ToolCallID string
	ToolName   string
	Status     Status
	Output     string
	Error      string
	Finished   bool
}

// MessageSink receives tool message mutations from the pipeline. Streaming
// invocations deliver multiple unfinished writes followed by exactly one
// finished write per tool-call ID.
type MessageSink interface {
	AddToolMessage(toolCallID, toolName, output, errText string, finished bool) error
}

// LogSink adapts a conversation log to the MessageSink contract. All results
// from one pipeline batch land on a single tool message, matching how
// parallel tool calls from one assistant turn are batched.
type LogSink struct {
	log       *convo.Log
	messageID string
}

// NewLogSink creates a sink that writes into the given log under a fresh
// tool message ID.
func NewLogSink(log *convo.Log) *LogSink {
	return &LogSink{log: log, messageID: uuid.NewString()}
}

// MessageID returns the tool message this sink writes to.
func (s *LogSink) MessageID() string { return s.messageID }

func (s *LogSink) AddToolMessage(toolCallID, toolName, output, errText string, finished bool) error {
	result := convo.ToolResultPart{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Output:     output,
		IsError:    errText != "",
		Finished:   finished,
	}
	if errText != "" {
		result.Output = errText
	}
	return s.log.AddToolMessage(s.messageID, result)
}

// Pipeline executes the tool calls of one assistant turn against an
// approval gate and a toolbox.
type Pipeline struct {
	gate    *approval.Gate
	toolbox *agent.Toolbox
	sink    MessageSink
	logger  *slog.Logger

	mu       sync.Mutex
	onUpdate func(Update)
}

// New creates a pipeline. The sink is required; the observer is optional
// and set separately.
func New(gate *approval.Gate, toolbox *agent.Toolbox, sink MessageSink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{gate: gate, toolbox: toolbox, sink: sink, logger: logger}
}

// OnUpdate registers an observer called for every status change and
// streaming chunk, in order per tool-call ID.
func (p *Pipeline) OnUpdate(fn func(Update)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

func (p *Pipeline) emit(u Update) {
	p.mu.Lock()
	fn := p.onUpdate
	p.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// ExecuteCalls runs every tool call concurrently, one invocation per call,
// and blocks until all have reached a terminal state. Tool failures are
// absorbed into tool messages and never returned; the error is reserved for
// sink write failures.
func (p *Pipeline) ExecuteCalls(ctx context.Context, calls []agent.ToolCall) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, call := range calls {
		g.Go(func() error {
			return p.executeOne(ctx, call)
		})
	}
	return g.Wait()
}

func (p *Pipeline) executeOne(ctx context.Context, call agent.ToolCall) error {
	p.emit(Update{ToolCallID: call.ID, ToolName: call.Name, Status: StatusRequested})

	tool, ok := p.toolbox.GetTool(call.Name)
	if !ok {
		p.logger.Warn("unknown tool requested", "tool", call.Name, "tool_call_id", call.ID)
		return p.finalize(call, StatusFailed, "", fmt.Sprintf("tool %s not found", call.Name))
	}
	toolID := agent.ToolID(tool)

	decision, err := p.gate.Decide(ctx, toolID, commandSubject(tool, call.Arguments))
	if err != nil {
		if ctx.Err() != nil {
			return p.finalize(call, StatusCancelled, "", CancelledMessage)
		}
		return p.finalize(call, StatusFailed, "", err.Error())
	}
	if !decision.Approved {
		p.logger.Info("tool invocation denied", "tool", toolID, "tool_call_id", call.ID, "reason", decision.Reason)
		return p.finalize(call, StatusDenied, "", denialText(decision.Reason))
	}

	p.emit(Update{ToolCallID: call.ID, ToolName: call.Name, Status: StatusApproved})
	p.emit(Update{ToolCallID: call.ID, ToolName: call.Name, Status: StatusRunning})

	inv := &invocation{pipeline: p, call: call, startedAt: time.Now()}
	execCtx := toolsutil.WithProgress(ctx, inv.onChunk)

	resp, execErr := p.toolbox.ExecuteTool(execCtx, &call)

	output := inv.snapshot()
	var respText string
	if resp != nil {
		respText = string(resp.Content)
	}

	switch {
	case execErr != nil && (errors.Is(execErr, context.Canceled) || ctx.Err() != nil):
		p.logger.Info("tool invocation cancelled", "tool", toolID, "tool_call_id", call.ID)
		return p.finalize(call, StatusCancelled, output, CancelledMessage)
	case execErr != nil && errors.Is(execErr, toolsutil.ErrTimeout):
		p.logger.Warn("tool invocation timed out", "tool", toolID, "tool_call_id", call.ID)
		return p.finalize(call, StatusTimedOut, output, errTextOr(respText, execErr))
	case execErr != nil:
		p.logger.Warn("tool invocation failed", "tool", toolID, "tool_call_id", call.ID, "error", execErr)
		return p.finalize(call, StatusFailed, output, errTextOr(respText, execErr))
	case resp != nil && resp.IsError:
		return p.finalize(call, StatusFailed, output, respText)
	default:
		p.logger.Info("tool invocation succeeded", "tool", toolID, "tool_call_id", call.ID, "duration", time.Since(inv.startedAt))
		return p.finalize(call, StatusSucceeded, respText, "")
	}
}

// finalize writes the terminal tool message and emits the last update for
// the call.
func (p *Pipeline) finalize(call agent.ToolCall, status Status, output, errText string) error {
	if err := p.sink.AddToolMessage(call.ID, call.Name, output, errText, true); err != nil {
		return fmt.Errorf("failed to record tool result: %w", err)
	}
	p.emit(Update{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Status:     status,
		Output:     output,
		Error:      errText,
		Finished:   true,
	})
	return nil
}

// invocation tracks the accumulated streaming output of one running call.
type invocation struct {
	pipeline  *Pipeline
	call      agent.ToolCall
	startedAt time.Time

	mu          sync.Mutex
	accumulated string
}

// onChunk appends a streaming chunk and publishes an unfinished update.
// Chunks arrive strictly ordered per invocation, so output only grows.
func (inv *invocation) onChunk(chunk string) {
	inv.mu.Lock()
	inv.accumulated += chunk
	output := inv.accumulated
	inv.mu.Unlock()

	if err := inv.pipeline.sink.AddToolMessage(inv.call.ID, inv.call.Name, output, "", false); err != nil {
		inv.pipeline.logger.Warn("failed to stream tool output", "tool_call_id", inv.call.ID, "error", err)
	}
	inv.pipeline.emit(Update{
		ToolCallID: inv.call.ID,
		ToolName:   inv.call.Name,
		Status:     StatusRunning,
		Output:     output,
	})
}

func (inv *invocation) snapshot() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.accumulated
}

// commandSubject extracts the command line for pattern matching. Only
// shell-group tools carry one; everything else skips pattern overrides.
func commandSubject(tool agent.Tool, args json.RawMessage) string {
	if tool.GetGroup() != "shell" {
		return ""
	}
	var payload struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return ""
	}
	return payload.Command
}

func denialText(reason string) string {
	if reason == "" {
		return "Tool invocation was denied."
	}
	return "Tool invocation was denied: " + reason
}

func errTextOr(respText string, err error) string {
	if respText != "" {
		return respText
	}
	return err.Error()
}
