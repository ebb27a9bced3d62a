package convo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSON_PlainText(t *testing.T) {
	msg := Message{ID: "msg-0", Role: RoleUser, Text: "hello world"}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content":"hello world"`)

	var restored Message
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, "hello world", restored.Text)
	assert.Nil(t, restored.Parts)
}

func TestMessageJSON_StructuredParts(t *testing.T) {
	msg := Message{ID: "msg-1", Role: RoleAssistant, Parts: []Part{
		ReasoningPart{Text: "let me check"},
		TextPart{Text: "running it now"},
		ToolCallPart{ToolCallID: "call-1", ToolName: "run_command", Input: json.RawMessage(`{"command":"ls -la"}`)},
	}}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var restored Message
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Len(t, restored.Parts, 3)
	assert.Equal(t, ReasoningPart{Text: "let me check"}, restored.Parts[0])
	assert.Equal(t, TextPart{Text: "running it now"}, restored.Parts[1])

	call, ok := restored.Parts[2].(ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", call.ToolCallID)
	assert.JSONEq(t, `{"command":"ls -la"}`, string(call.Input))
}

func TestMessageJSON_ToolResultRoundTrip(t *testing.T) {
	msg := Message{ID: "msg-2", Role: RoleTool, Parts: []Part{
		ToolResultPart{ToolCallID: "call-1", ToolName: "run_command", Output: "done", IsError: false, Finished: true},
		ToolResultPart{ToolCallID: "call-2", ToolName: "read_file", Output: "missing", IsError: true, Finished: true},
	}}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var restored Message
	require.NoError(t, json.Unmarshal(data, &restored))
	results := restored.ToolResults()
	require.Len(t, results, 2)
	assert.True(t, results[1].IsError)
}

func TestMessageJSON_UnknownPartType(t *testing.T) {
	data := []byte(`{"id":"msg-0","role":"assistant","content":[{"type":"hologram"}]}`)
	var msg Message
	err := json.Unmarshal(data, &msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content part type")
}

func TestMessageClone_IsolatesToolCallInput(t *testing.T) {
	input := json.RawMessage(`{"command":"ls"}`)
	msg := Message{ID: "msg-0", Role: RoleAssistant, Parts: []Part{
		ToolCallPart{ToolCallID: "call-1", ToolName: "run_command", Input: input},
	}}

	clone := msg.Clone()
	cloned := clone.Parts[0].(ToolCallPart)
	cloned.Input[2] = 'X'

	original := msg.Parts[0].(ToolCallPart)
	assert.JSONEq(t, `{"command":"ls"}`, string(original.Input))
}
