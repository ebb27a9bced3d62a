package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/src/convo"
)

// GetSessionByID retrieves a session, or nil when absent.
func GetSessionByID(ctx context.Context, db sqlscan.Querier, sessionID string) (*Session, error) {
	query := `SELECT id, current_conversation_id, json(conversation_ids) as conversation_ids, created_at, updated_at FROM sessions WHERE id = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetLatestSession retrieves the most recently updated session, or nil when
// none exist.
func GetLatestSession(ctx context.Context, db sqlscan.Querier) (*Session, error) {
	query := `SELECT id, current_conversation_id, json(conversation_ids) as conversation_ids, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT 1`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a session, filling in ID and timestamps when unset.
func CreateSession(ctx context.Context, db Execer, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.ConversationIDs == nil {
		session.ConversationIDs = JSONStringArray{}
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	query := `INSERT INTO sessions (id, current_conversation_id, conversation_ids, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, session.ID, session.CurrentConversationID, session.ConversationIDs, session.CreatedAt, session.UpdatedAt)
	return err
}

// UpdateSession updates an existing session.
func UpdateSession(ctx context.Context, db Execer, session *Session) error {
	session.UpdatedAt = time.Now()
	query := `UPDATE sessions SET current_conversation_id = ?, conversation_ids = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, session.CurrentConversationID, session.ConversationIDs, session.UpdatedAt, session.ID)
	return err
}

// GetConversationByID retrieves a conversation, or nil when absent.
func GetConversationByID(ctx context.Context, db sqlscan.Querier, conversationID string) (*Conversation, error) {
	query := `SELECT id, title, project_directory, forked_from, fork_target_id, created_at, updated_at FROM conversations WHERE id = ?`
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// CreateConversation inserts a conversation, filling in ID and timestamps
// when unset.
func CreateConversation(ctx context.Context, db Execer, conversation *Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = now
	}

	query := `INSERT INTO conversations (id, title, project_directory, forked_from, fork_target_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, conversation.ID, conversation.Title, conversation.ProjectDirectory, conversation.ForkedFrom, conversation.ForkTargetID, conversation.CreatedAt, conversation.UpdatedAt)
	return err
}

// AppendMessage persists one message at the next position of a conversation.
func AppendMessage(ctx context.Context, db ExecQuerier, conversationID string, msg convo.Message) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
	}

	var next int
	if err := sqlscan.Get(ctx, db, &next, `SELECT COALESCE(MAX(position)+1, 0) FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}

	query := `INSERT INTO messages (id, conversation_id, position, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = db.ExecContext(ctx, query, msg.ID, conversationID, next, string(msg.Role), string(content), createdAt)
	return err
}

// LoadLog reconstructs the in-memory log of a conversation.
func LoadLog(ctx context.Context, db sqlscan.Querier, conversationID string) (*convo.Log, error) {
	query := `SELECT id, conversation_id, position, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY position`
	var records []MessageRecord
	if err := sqlscan.Select(ctx, db, &records, query, conversationID); err != nil {
		return nil, err
	}

	log := convo.NewLog()
	for _, rec := range records {
		var msg convo.Message
		if err := json.Unmarshal([]byte(rec.Content), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", rec.ID, err)
		}
		if err := log.Append(msg); err != nil {
			return nil, err
		}
	}
	return log, nil
}

// SaveLog persists every message of a log to a conversation, in order.
func SaveLog(ctx context.Context, db ExecQuerier, conversationID string, log *convo.Log) error {
	for _, msg := range log.Messages() {
		if err := AppendMessage(ctx, db, conversationID, msg); err != nil {
			return err
		}
	}
	return nil
}

// ForkConversation creates a new conversation holding the fork prefix of the
// source conversation at targetID. The source is never modified. The fork
// target resolution follows the in-memory log: an unknown targetID returns
// the log's not-found error.
func ForkConversation(ctx context.Context, db *DB, sourceID, targetID, title string) (*Conversation, error) {
	source, err := GetConversationByID(ctx, db.DB(), sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("conversation %s not found", sourceID)
	}

	log, err := LoadLog(ctx, db.DB(), sourceID)
	if err != nil {
		return nil, err
	}
	prefix, err := log.MessagesUpTo(targetID)
	if err != nil {
		return nil, err
	}

	tx, err := db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	fork := &Conversation{
		Title:            title,
		ProjectDirectory: source.ProjectDirectory,
		ForkedFrom:       &source.ID,
		ForkTargetID:     &targetID,
	}
	if err := CreateConversation(ctx, tx, fork); err != nil {
		return nil, err
	}
	for i, msg := range prefix {
		content, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		query := `INSERT INTO messages (id, conversation_id, position, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, msg.ID, fork.ID, i, string(msg.Role), string(content), createdAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return fork, nil
}
