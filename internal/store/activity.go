package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ActivityLog records one supervisor orchestration event for a conversation:
// plan creation, task assignment and completion, status changes, errors.
type ActivityLog struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Type           string    `json:"type"`
	AgentName      string    `json:"agent_name,omitempty"`
	Description    string    `json:"description,omitempty"`
	Details        string    `json:"details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Store) AppendActivity(a *ActivityLog) error {
	res, err := s.db.Exec(`
		INSERT INTO activity_logs (conversation_id, type, agent_name, description, details, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		a.ConversationID, a.Type, a.AgentName, a.Description, a.Details)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

func (s *Store) ListActivity(conversationID string, limit int) ([]ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT id, conversation_id, type, agent_name, description, details, created_at
		FROM activity_logs WHERE conversation_id = ?
		ORDER BY id DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var logs []ActivityLog
	for rows.Next() {
		var a ActivityLog
		var convID, agentName, description, details sql.NullString
		if err := rows.Scan(&a.ID, &convID, &a.Type, &agentName, &description, &details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.ConversationID = convID.String
		a.AgentName = agentName.String
		a.Description = description.String
		a.Details = details.String
		logs = append(logs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}
