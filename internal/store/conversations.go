package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Conversation struct {
	ID        string    `json:"id"`
	CrewID    string    `json:"crew_id"`
	Title     string    `json:"title,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveConversation(c *Conversation) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, crew_id, title, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.CrewID, c.Title, c.Active)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(id string) (*Conversation, error) {
	c := &Conversation{}
	var title sql.NullString
	err := s.db.QueryRow(`SELECT id, crew_id, title, active, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.CrewID, &title, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.Title = title.String
	return c, nil
}

func (s *Store) ListConversations(crewID string) ([]Conversation, error) {
	rows, err := s.db.Query(`SELECT id, crew_id, title, active, created_at, updated_at FROM conversations WHERE crew_id = ? ORDER BY updated_at DESC`, crewID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var title sql.NullString
		if err := rows.Scan(&c.ID, &c.CrewID, &title, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Title = title.String
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// SetConversationTitle fills in a title only when one has not been set yet;
// the first user message names the conversation.
func (s *Store) SetConversationTitle(id, title string) error {
	_, err := s.db.Exec(`UPDATE conversations SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND (title IS NULL OR title = '')`, title, id)
	if err != nil {
		return fmt.Errorf("set conversation title: %w", err)
	}
	return nil
}

func (s *Store) TouchConversation(id string) error {
	_, err := s.db.Exec(`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (s *Store) DeleteConversation(id string) error {
	if _, err := s.db.Exec(`DELETE FROM activity_logs WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation activity: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation messages: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
