package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Crew struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) SaveCrew(c *Crew) error {
	_, err := s.db.Exec(`
		INSERT INTO crews (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.Name, c.Description)
	if err != nil {
		return fmt.Errorf("save crew: %w", err)
	}
	return nil
}

func (s *Store) GetCrew(id string) (*Crew, error) {
	c := &Crew{}
	var description sql.NullString
	err := s.db.QueryRow(`SELECT id, name, description, created_at, updated_at FROM crews WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crew: %w", err)
	}
	c.Description = description.String
	return c, nil
}

func (s *Store) GetCrewByName(name string) (*Crew, error) {
	c := &Crew{}
	var description sql.NullString
	err := s.db.QueryRow(`SELECT id, name, description, created_at, updated_at FROM crews WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crew by name: %w", err)
	}
	c.Description = description.String
	return c, nil
}

func (s *Store) ListCrews() ([]Crew, error) {
	rows, err := s.db.Query(`SELECT id, name, description, created_at, updated_at FROM crews ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list crews: %w", err)
	}
	defer rows.Close()

	var crews []Crew
	for rows.Next() {
		var c Crew
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan crew: %w", err)
		}
		c.Description = description.String
		crews = append(crews, c)
	}
	return crews, rows.Err()
}

// DeleteCrew removes a crew and its agents. Conversations referencing the
// crew are kept for history.
func (s *Store) DeleteCrew(id string) error {
	if _, err := s.db.Exec(`DELETE FROM agents WHERE crew_id = ?`, id); err != nil {
		return fmt.Errorf("delete crew agents: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM crews WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete crew: %w", err)
	}
	return nil
}
