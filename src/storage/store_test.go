package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/src/convo"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "steward.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	session := &Session{ConversationIDs: JSONStringArray{"conv-1"}}
	require.NoError(t, CreateSession(ctx, db.DB(), session))
	require.NotEmpty(t, session.ID)

	got, err := GetSessionByID(ctx, db.DB(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, JSONStringArray{"conv-1"}, got.ConversationIDs)
	assert.Nil(t, got.CurrentConversationID)

	convID := "conv-2"
	got.CurrentConversationID = &convID
	got.ConversationIDs = append(got.ConversationIDs, convID)
	require.NoError(t, UpdateSession(ctx, db.DB(), got))

	latest, err := GetLatestSession(ctx, db.DB())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, session.ID, latest.ID)
	assert.Equal(t, &convID, latest.CurrentConversationID)
}

func TestGetSessionByID_Missing(t *testing.T) {
	db := openTestDB(t)

	got, err := GetSessionByID(context.Background(), db.DB(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMessageLogRoundTripsLosslessly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := &Conversation{Title: "test", ProjectDirectory: "/project"}
	require.NoError(t, CreateConversation(ctx, db.DB(), conv))

	log := convo.NewLog()
	require.NoError(t, log.Append(convo.Message{ID: "msg-0", Role: convo.RoleUser, Text: "list files"}))
	require.NoError(t, log.Append(convo.Message{
		ID:   "msg-1",
		Role: convo.RoleAssistant,
		Parts: []convo.Part{
			convo.ReasoningPart{Text: "need a listing"},
			convo.ToolCallPart{ToolCallID: "tc-1", ToolName: "run_command", Input: json.RawMessage(`{"command":"ls"}`)},
		},
	}))
	require.NoError(t, log.Append(convo.Message{
		ID:   "msg-2",
		Role: convo.RoleTool,
		Parts: []convo.Part{
			convo.ToolResultPart{ToolCallID: "tc-1", ToolName: "run_command", Output: "main.go", Finished: true},
		},
	}))
	require.NoError(t, SaveLog(ctx, db.DB(), conv.ID, log))

	loaded, err := LoadLog(ctx, db.DB(), conv.ID)
	require.NoError(t, err)

	want, _ := json.Marshal(log.Messages())
	got, _ := json.Marshal(loaded.Messages())
	assert.JSONEq(t, string(want), string(got))
}

func TestForkConversation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := &Conversation{Title: "source", ProjectDirectory: "/project"}
	require.NoError(t, CreateConversation(ctx, db.DB(), conv))

	log := convo.NewLog()
	require.NoError(t, log.Append(convo.Message{ID: "msg-0", Role: convo.RoleUser, Text: "hi"}))
	require.NoError(t, log.Append(convo.Message{
		ID:   "msg-1",
		Role: convo.RoleAssistant,
		Parts: []convo.Part{
			convo.TextPart{Text: "checking"},
			convo.ToolCallPart{ToolCallID: "tc-1", ToolName: "run_command", Input: json.RawMessage(`{"command":"ls"}`)},
			convo.ToolCallPart{ToolCallID: "tc-2", ToolName: "run_command", Input: json.RawMessage(`{"command":"pwd"}`)},
		},
	}))
	require.NoError(t, log.Append(convo.Message{
		ID:   "msg-2",
		Role: convo.RoleTool,
		Parts: []convo.Part{
			convo.ToolResultPart{ToolCallID: "tc-1", ToolName: "run_command", Output: "main.go", Finished: true},
		},
	}))
	require.NoError(t, SaveLog(ctx, db.DB(), conv.ID, log))

	fork, err := ForkConversation(ctx, db, conv.ID, "tc-1", "branch")
	require.NoError(t, err)
	require.NotNil(t, fork)
	assert.Equal(t, &conv.ID, fork.ForkedFrom)

	forkLog, err := LoadLog(ctx, db.DB(), fork.ID)
	require.NoError(t, err)
	msgs := forkLog.Messages()
	require.Len(t, msgs, 3)

	// The owning assistant message is truncated at the matched call.
	assistant := msgs[1]
	require.Len(t, assistant.Parts, 2)
	call, ok := assistant.Parts[1].(convo.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "tc-1", call.ToolCallID)

	// Source stays intact.
	sourceLog, err := LoadLog(ctx, db.DB(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, sourceLog.Messages()[1].Parts, 3)
}

func TestForkConversation_UnknownTarget(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := &Conversation{Title: "source"}
	require.NoError(t, CreateConversation(ctx, db.DB(), conv))
	require.NoError(t, AppendMessage(ctx, db.DB(), conv.ID, convo.Message{ID: "msg-0", Role: convo.RoleUser, Text: "hi"}))

	_, err := ForkConversation(ctx, db, conv.ID, "ghost", "branch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +goose Up\n-- +goose StatementBegin\nCREATE TABLE t (id TEXT);\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\nDROP TABLE t;\n-- +goose StatementEnd\n"
	up := extractUpMigration(content)
	assert.Contains(t, up, "CREATE TABLE t")
	assert.NotContains(t, up, "DROP TABLE")
}
