package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Agent struct {
	ID           string    `json:"id"`
	CrewID       string    `json:"crew_id"`
	Name         string    `json:"name"`
	Role         string    `json:"role,omitempty"`
	Model        string    `json:"model,omitempty"`
	Temperature  float32   `json:"temperature,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	IsSupervisor bool      `json:"is_supervisor"`
	Tools        string    `json:"tools,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Store) SaveAgent(a *Agent) error {
	_, err := s.db.Exec(`
		INSERT INTO agents (id, crew_id, name, role, model, temperature, system_prompt, is_supervisor, tools, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			crew_id = excluded.crew_id,
			name = excluded.name,
			role = excluded.role,
			model = excluded.model,
			temperature = excluded.temperature,
			system_prompt = excluded.system_prompt,
			is_supervisor = excluded.is_supervisor,
			tools = excluded.tools,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.CrewID, a.Name, a.Role, a.Model, a.Temperature, a.SystemPrompt, a.IsSupervisor, a.Tools)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(id string) (*Agent, error) {
	a := &Agent{}
	var role, model, systemPrompt, tools sql.NullString
	var temperature sql.NullFloat64
	err := s.db.QueryRow(`SELECT id, crew_id, name, role, model, temperature, system_prompt, is_supervisor, tools, created_at, updated_at FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &a.CrewID, &a.Name, &role, &model, &temperature, &systemPrompt, &a.IsSupervisor, &tools, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	a.Role = role.String
	a.Model = model.String
	a.Temperature = float32(temperature.Float64)
	a.SystemPrompt = systemPrompt.String
	a.Tools = tools.String
	return a, nil
}

func (s *Store) ListAgents(crewID string) ([]Agent, error) {
	rows, err := s.db.Query(`SELECT id, crew_id, name, role, model, temperature, system_prompt, is_supervisor, tools, created_at, updated_at FROM agents WHERE crew_id = ? ORDER BY is_supervisor DESC, name`, crewID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		var role, model, systemPrompt, tools sql.NullString
		var temperature sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.CrewID, &a.Name, &role, &model, &temperature, &systemPrompt, &a.IsSupervisor, &tools, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.Role = role.String
		a.Model = model.String
		a.Temperature = float32(temperature.Float64)
		a.SystemPrompt = systemPrompt.String
		a.Tools = tools.String
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgent(id string) error {
	if _, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// DeleteAgentsExcept removes agents of a crew whose names are not in keep.
// Used when syncing configured crews into the store.
func (s *Store) DeleteAgentsExcept(crewID string, keep []string) error {
	agents, err := s.ListAgents(crewID)
	if err != nil {
		return err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}
	for _, a := range agents {
		if !keepSet[a.Name] {
			if err := s.DeleteAgent(a.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
