package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Message statuses. Assistant messages are created pending while a
// supervisor run is in flight and resolved when it terminates.
const (
	MessageStatusPending    = "pending"
	MessageStatusProcessing = "processing"
	MessageStatusCompleted  = "completed"
	MessageStatusFailed     = "failed"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	AgentName      string    `json:"agent_name,omitempty"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	Metadata       string    `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Store) SaveMessage(m *Message) error {
	if m.Status == "" {
		m.Status = MessageStatusCompleted
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, role, agent_name, content, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status,
			metadata = excluded.metadata`,
		m.ID, m.ConversationID, m.Role, m.AgentName, m.Content, m.Status, m.Metadata)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(id string) (*Message, error) {
	m := &Message{}
	var agentName, metadata sql.NullString
	err := s.db.QueryRow(`SELECT id, conversation_id, role, agent_name, content, status, metadata, created_at FROM messages WHERE id = ?`, id).
		Scan(&m.ID, &m.ConversationID, &m.Role, &agentName, &m.Content, &m.Status, &metadata, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m.AgentName = agentName.String
	m.Metadata = metadata.String
	return m, nil
}

func (s *Store) UpdateMessageStatus(id, status, content, metadata string) error {
	_, err := s.db.Exec(`UPDATE messages SET status = ?, content = ?, metadata = ? WHERE id = ?`,
		status, content, metadata, id)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, agent_name, content, status, metadata, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, rowid`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetRecentMessages returns the newest limit completed messages of a
// conversation in chronological order.
func (s *Store) GetRecentMessages(conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, agent_name, content, status, metadata, created_at
		FROM messages
		WHERE conversation_id = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		conversationID, MessageStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		var agentName, metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &agentName, &m.Content, &m.Status, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AgentName = agentName.String
		m.Metadata = metadata.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
