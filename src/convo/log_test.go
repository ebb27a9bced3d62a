package convo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLog(t *testing.T, messages ...Message) *Log {
	t.Helper()
	log := NewLog()
	for _, msg := range messages {
		require.NoError(t, log.Append(msg))
	}
	return log
}

func TestMessagesUpTo_SimpleConversation(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleUser, Text: "hello"},
		Message{ID: "msg-1", Role: RoleAssistant, Text: "hi there"},
		Message{ID: "msg-2", Role: RoleUser, Text: "do the thing"},
		Message{ID: "msg-3", Role: RoleAssistant, Text: "done"},
	)

	result, err := log.MessagesUpTo("msg-2")
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "msg-0", result[0].ID)
	assert.Equal(t, "msg-1", result[1].ID)
	assert.Equal(t, "msg-2", result[2].ID)
}

func TestMessagesUpTo_ByToolCallID_TruncatesOwningAssistant(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleUser, Text: "run three things"},
		Message{ID: "msg-1", Role: RoleAssistant, Parts: []Part{
			ReasoningPart{Text: "planning"},
			ToolCallPart{ToolCallID: "call-1", ToolName: "run_command"},
			ToolCallPart{ToolCallID: "call-2", ToolName: "read_file"},
			ToolCallPart{ToolCallID: "call-3", ToolName: "grep_files"},
		}},
		Message{ID: "msg-2", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "call-1", ToolName: "run_command", Output: "ok", Finished: true},
		}},
		Message{ID: "msg-3", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "call-2", ToolName: "read_file", Output: "contents", Finished: true},
		}},
		Message{ID: "msg-4", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "call-3", ToolName: "grep_files", Output: "matches", Finished: true},
		}},
	)

	result, err := log.MessagesUpTo("call-2")
	require.NoError(t, err)
	require.Len(t, result, 4)

	assistant := result[1]
	require.Len(t, assistant.Parts, 3)
	assert.Equal(t, ReasoningPart{Text: "planning"}, assistant.Parts[0])

	calls := assistant.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call-1", calls[0].ToolCallID)
	assert.Equal(t, "call-2", calls[1].ToolCallID)

	// The third call and its result must not leak into the branch.
	assert.Equal(t, "msg-3", result[3].ID)
}

func TestMessagesUpTo_ByMessageID_StripsToolCallsFromAssistant(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleUser, Text: "go"},
		Message{ID: "msg-1", Role: RoleAssistant, Parts: []Part{
			TextPart{Text: "before"},
			ToolCallPart{ToolCallID: "call-1", ToolName: "run_command"},
			ReasoningPart{Text: "thinking"},
			ToolCallPart{ToolCallID: "call-2", ToolName: "write_file"},
			TextPart{Text: "after"},
		}},
	)

	result, err := log.MessagesUpTo("msg-1")
	require.NoError(t, err)
	require.Len(t, result, 2)

	parts := result[1].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, TextPart{Text: "before"}, parts[0])
	assert.Equal(t, ReasoningPart{Text: "thinking"}, parts[1])
	assert.Equal(t, TextPart{Text: "after"}, parts[2])
}

func TestMessagesUpTo_TruncationIsStrictPrefix(t *testing.T) {
	original := []Part{
		TextPart{Text: "intro"},
		ToolCallPart{ToolCallID: "call-a", ToolName: "run_command"},
		ToolCallPart{ToolCallID: "call-b", ToolName: "run_command"},
		TextPart{Text: "trailing"},
	}
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleAssistant, Parts: original},
		Message{ID: "msg-1", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "call-a", ToolName: "run_command", Output: "out", Finished: true},
		}},
	)

	result, err := log.MessagesUpTo("call-a")
	require.NoError(t, err)

	parts := result[0].Parts
	require.Len(t, parts, 2)
	for i, p := range parts {
		assert.Equal(t, original[i], p)
	}
	last, ok := parts[len(parts)-1].(ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "call-a", last.ToolCallID)
}

func TestMessagesUpTo_NotFound(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleUser, Text: "hello"},
	)

	_, err := log.MessagesUpTo("missing-id")
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing-id", notFound.TargetID)
	assert.Equal(t, "message with id missing-id not found", err.Error())
}

func TestMessagesUpTo_OrphanedToolResult(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleUser, Text: "hello"},
		Message{ID: "msg-1", Role: RoleAssistant, Text: "no tool calls here"},
		Message{ID: "msg-2", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "ghost-call", ToolName: "run_command", Output: "legacy", Finished: true},
		}},
	)

	result, err := log.MessagesUpTo("ghost-call")
	require.NoError(t, err)
	require.Len(t, result, 3)
	// The prefix is returned untouched: no assistant message was modified.
	assert.Equal(t, "no tool calls here", result[1].Text)
	assert.Len(t, result[2].ToolResults(), 1)
}

func TestMessagesUpTo_BatchedToolResultMessageIncludedWhole(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleAssistant, Parts: []Part{
			ToolCallPart{ToolCallID: "call-1", ToolName: "read_file"},
			ToolCallPart{ToolCallID: "call-2", ToolName: "read_file"},
		}},
		Message{ID: "msg-1", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "call-1", ToolName: "read_file", Output: "a", Finished: true},
			ToolResultPart{ToolCallID: "call-2", ToolName: "read_file", Output: "b", Finished: true},
		}},
	)

	result, err := log.MessagesUpTo("call-1")
	require.NoError(t, err)
	require.Len(t, result, 2)
	// Batched tool messages are never internally truncated.
	assert.Len(t, result[1].ToolResults(), 2)
	// Only the assistant boundary is cut.
	assert.Len(t, result[0].ToolCalls(), 1)
}

func TestMessagesUpTo_NeverMutatesSource(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleUser, Text: "hello"},
		Message{ID: "msg-1", Role: RoleAssistant, Parts: []Part{
			TextPart{Text: "working"},
			ToolCallPart{ToolCallID: "call-1", ToolName: "run_command", Input: json.RawMessage(`{"command":"ls"}`)},
		}},
		Message{ID: "msg-2", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "call-1", ToolName: "run_command", Output: "files", Finished: true},
		}},
	)

	before, err := json.Marshal(log.Messages())
	require.NoError(t, err)

	result, err := log.MessagesUpTo("call-1")
	require.NoError(t, err)

	// Mutate the fork aggressively; the source must not observe it.
	result[1].Parts = nil
	result[0].Text = "clobbered"

	after, err := json.Marshal(log.Messages())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestMessagesUpTo_DuplicateToolCallID_NearestPrecedingWins(t *testing.T) {
	log := buildLog(t,
		Message{ID: "msg-0", Role: RoleAssistant, Parts: []Part{
			ToolCallPart{ToolCallID: "dup", ToolName: "run_command"},
			ToolCallPart{ToolCallID: "other", ToolName: "run_command"},
		}},
		Message{ID: "msg-1", Role: RoleAssistant, Parts: []Part{
			ToolCallPart{ToolCallID: "dup", ToolName: "run_command"},
			ToolCallPart{ToolCallID: "later", ToolName: "run_command"},
		}},
		Message{ID: "msg-2", Role: RoleTool, Parts: []Part{
			ToolResultPart{ToolCallID: "dup", ToolName: "run_command", Output: "x", Finished: true},
		}},
	)

	result, err := log.MessagesUpTo("dup")
	require.NoError(t, err)
	require.Len(t, result, 3)
	// The nearest preceding assistant message is truncated, not the first.
	assert.Len(t, result[1].ToolCalls(), 1)
	assert.Len(t, result[0].ToolCalls(), 2)
}

func TestAppend_RejectsDuplicateIDs(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(Message{ID: "msg-0", Role: RoleUser, Text: "a"}))
	err := log.Append(Message{ID: "msg-0", Role: RoleUser, Text: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAddToolMessage_StreamingUpdates(t *testing.T) {
	log := NewLog()

	chunks := []string{"line 1\n", "line 1\nline 2\n", "line 1\nline 2\nline 3\n"}
	for _, chunk := range chunks {
		require.NoError(t, log.AddToolMessage("tool-msg", ToolResultPart{
			ToolCallID: "call-1",
			ToolName:   "run_command",
			Output:     chunk,
			Finished:   false,
		}))
	}
	require.NoError(t, log.AddToolMessage("tool-msg", ToolResultPart{
		ToolCallID: "call-1",
		ToolName:   "run_command",
		Output:     "line 1\nline 2\nline 3\n",
		Finished:   true,
	}))

	messages := log.Messages()
	require.Len(t, messages, 1)
	results := messages[0].ToolResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].Finished)
	assert.Equal(t, "line 1\nline 2\nline 3\n", results[0].Output)
}

func TestAddToolMessage_BatchedResultsShareMessage(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.AddToolMessage("tool-msg", ToolResultPart{ToolCallID: "call-1", ToolName: "read_file", Output: "a", Finished: true}))
	require.NoError(t, log.AddToolMessage("tool-msg", ToolResultPart{ToolCallID: "call-2", ToolName: "read_file", Output: "b", Finished: true}))

	messages := log.Messages()
	require.Len(t, messages, 1)
	assert.Len(t, messages[0].ToolResults(), 2)
}
