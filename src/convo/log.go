package convo

import (
	"fmt"
	"sync"
	"time"
)

// NotFoundError reports a fork target that matches neither a message ID nor
// a tool-call ID anywhere in the log. It is the one conversation error that
// propagates to the caller.
type NotFoundError struct {
	TargetID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message with id %s not found", e.TargetID)
}

// Log is the ordered message sequence for one task. Appends and streaming
// updates come from the pipeline; reads come from the next model turn.
// Forking produces an independent deep-copied prefix and never mutates the
// source.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

// NewLog returns an empty conversation log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a message to the end of the log. Message IDs must be unique
// for the lifetime of the task.
func (l *Log) Append(msg Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message id cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.messages {
		if existing.ID == msg.ID {
			return fmt.Errorf("message id %s already exists in log", msg.ID)
		}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	l.messages = append(l.messages, msg)
	return nil
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a deep copy of the full log, safe to read while tool
// invocations are mid-flight.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneMessages(l.messages)
}

// forkTarget locates the cutoff for MessagesUpTo. A target is either a
// message ID or, failing that, the tool-call ID of a recorded tool result.
type forkTarget struct {
	index      int
	byToolCall bool
	toolCallID string
}

func (l *Log) locateTarget(targetID string) (forkTarget, bool) {
	for i, msg := range l.messages {
		if msg.ID == targetID {
			return forkTarget{index: i}, true
		}
	}
	// Fall back to tool-result lookup: the first result in log order whose
	// tool-call ID matches wins.
	for i, msg := range l.messages {
		if msg.Role != RoleTool {
			continue
		}
		for _, res := range msg.ToolResults() {
			if res.ToolCallID == targetID {
				return forkTarget{index: i, byToolCall: true, toolCallID: targetID}, true
			}
		}
	}
	return forkTarget{}, false
}

// MessagesUpTo reconstructs a valid, independently owned conversation prefix
// ending at targetID, which may name a message or a tool call. The boundary
// is repaired so the new branch never carries a tool call whose result can
// no longer arrive:
//
//   - forking directly at an assistant message strips every tool-call part,
//     keeping text and reasoning in order;
//   - forking at a tool-call ID truncates the owning assistant message just
//     after the matched call, so earlier calls (whose results precede the
//     cutoff) survive and later ones do not.
//
// A tool result whose originating call is absent from the log is an orphan:
// the prefix is returned unmodified rather than erroring, since long-running
// task logs legitimately contain partial state.
func (l *Log) MessagesUpTo(targetID string) ([]Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	target, ok := l.locateTarget(targetID)
	if !ok {
		return nil, &NotFoundError{TargetID: targetID}
	}

	result := cloneMessages(l.messages[:target.index+1])

	if !target.byToolCall {
		boundary := &result[target.index]
		if boundary.Role == RoleAssistant && boundary.Parts != nil {
			boundary.Parts = stripToolCalls(boundary.Parts)
		}
		return result, nil
	}

	// Search backward for the assistant message that issued the call. The
	// nearest preceding occurrence is authoritative; duplicate tool-call IDs
	// across assistant messages are an invariant violation upstream.
	for i := target.index - 1; i >= 0; i-- {
		msg := &result[i]
		if msg.Role != RoleAssistant {
			continue
		}
		for p, part := range msg.Parts {
			call, ok := part.(ToolCallPart)
			if !ok || call.ToolCallID != target.toolCallID {
				continue
			}
			msg.Parts = msg.Parts[:p+1]
			return result, nil
		}
	}

	// Orphaned tool result: no owning assistant message exists. Deliberate
	// fallback, not an error.
	return result, nil
}

// AddToolMessage appends or updates the tool-role message identified by
// messageID with one tool result. Streaming invocations call this once per
// chunk with Finished=false and exactly once with Finished=true; chunks are
// strictly ordered per tool-call ID, so last-writer-wins is sound. Batched
// parallel calls share a message and land as separate result parts.
func (l *Log) AddToolMessage(messageID string, result ToolResultPart) error {
	if messageID == "" {
		return fmt.Errorf("message id cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.messages {
		if l.messages[i].ID != messageID {
			continue
		}
		msg := &l.messages[i]
		if msg.Role != RoleTool {
			return fmt.Errorf("message %s is not a tool message", messageID)
		}
		for p, part := range msg.Parts {
			if existing, ok := part.(ToolResultPart); ok && existing.ToolCallID == result.ToolCallID {
				msg.Parts[p] = result
				return nil
			}
		}
		msg.Parts = append(msg.Parts, result)
		return nil
	}

	l.messages = append(l.messages, Message{
		ID:        messageID,
		Role:      RoleTool,
		Parts:     []Part{result},
		CreatedAt: time.Now(),
	})
	return nil
}

func stripToolCalls(parts []Part) []Part {
	kept := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Kind() == PartToolCall {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
