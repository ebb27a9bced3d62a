package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringArray stores a string slice as a JSON array column.
type JSONStringArray []string

// Scan implements sql.Scanner.
func (j *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = []string{}
		return nil
	}
	switch v := value.(type) {
	case string:
		if v == "" || v == "[]" {
			*j = []string{}
			return nil
		}
		return json.Unmarshal([]byte(v), j)
	case []byte:
		if len(v) == 0 || string(v) == "[]" {
			*j = []string{}
			return nil
		}
		return json.Unmarshal(v, j)
	default:
		return fmt.Errorf("cannot scan type %T into JSONStringArray", value)
	}
}

// Value implements driver.Valuer.
func (j JSONStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	return json.Marshal(j)
}

// Session groups the conversations of one agent task.
type Session struct {
	ID                    string          `json:"id" db:"id"`
	CurrentConversationID *string         `json:"current_conversation_id,omitempty" db:"current_conversation_id"`
	ConversationIDs       JSONStringArray `json:"conversation_ids" db:"conversation_ids"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// Conversation is one branch of a task's message log. Forked conversations
// record their source and the fork target so branches stay traceable.
type Conversation struct {
	ID               string    `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	ProjectDirectory string    `json:"project_directory" db:"project_directory"`
	ForkedFrom       *string   `json:"forked_from,omitempty" db:"forked_from"`
	ForkTargetID     *string   `json:"fork_target_id,omitempty" db:"fork_target_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// MessageRecord is one persisted conversation message. Content holds the
// full message JSON, so the in-memory shape round-trips losslessly; role is
// duplicated as a column for querying.
type MessageRecord struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Position       int       `json:"position" db:"position"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
