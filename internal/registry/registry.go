// Package registry syncs configured crews into the store and builds the
// agent rosters that supervisor runs execute against.
package registry

import (
	"fmt"

	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/mcp"
	"github.com/crewdhq/crewd/internal/store"
	"github.com/crewdhq/crewd/internal/supervisor"
)

type Registry struct {
	store   *store.Store
	crews   []config.CrewDefinition
	resolve func(name string) (string, error)
}

func New(s *store.Store, crews []config.CrewDefinition) *Registry {
	return &Registry{
		store: s,
		crews: crews,
	}
}

// UseVault installs a secret: reference resolver. Tool configs carrying
// secret references are resolved whenever a run profile is built, so a
// missing secret surfaces before any model call.
func (r *Registry) UseVault(resolve func(name string) (string, error)) {
	r.resolve = resolve
}

// Crew and agent ids derive from names so Sync is idempotent across
// restarts and config edits.
func crewID(crewName string) string {
	return crewName
}

func agentID(crewName, agentName string) string {
	return crewName + "/" + agentName
}

// Sync upserts configured crews and agents into the store and removes rows
// the config no longer declares. Conversations of removed crews are kept.
func (r *Registry) Sync() error {
	configured := make(map[string]bool, len(r.crews))

	for _, crew := range r.crews {
		id := crewID(crew.Name)
		configured[id] = true

		if err := r.store.SaveCrew(&store.Crew{
			ID:          id,
			Name:        crew.Name,
			Description: crew.Description,
		}); err != nil {
			return fmt.Errorf("sync crew %s: %w", crew.Name, err)
		}

		names := make([]string, 0, len(crew.Agents))
		for _, agent := range crew.Agents {
			names = append(names, agent.Name)

			tools, err := mcp.MarshalTools(agent.Tools)
			if err != nil {
				return fmt.Errorf("crew %s agent %s: %w", crew.Name, agent.Name, err)
			}

			if err := r.store.SaveAgent(&store.Agent{
				ID:           agentID(crew.Name, agent.Name),
				CrewID:       id,
				Name:         agent.Name,
				Role:         agent.Role,
				Model:        agent.Model,
				Temperature:  agent.Temperature,
				SystemPrompt: agent.SystemPrompt,
				IsSupervisor: agent.Supervisor,
				Tools:        tools,
			}); err != nil {
				return fmt.Errorf("sync agent %s/%s: %w", crew.Name, agent.Name, err)
			}
		}

		if err := r.store.DeleteAgentsExcept(id, names); err != nil {
			return fmt.Errorf("prune agents of %s: %w", crew.Name, err)
		}
	}

	existing, err := r.store.ListCrews()
	if err != nil {
		return fmt.Errorf("list crews: %w", err)
	}
	for _, crew := range existing {
		if !configured[crew.ID] {
			if err := r.store.DeleteCrew(crew.ID); err != nil {
				return fmt.Errorf("prune crew %s: %w", crew.Name, err)
			}
		}
	}

	return nil
}

// RunProfile is the roster a supervisor run needs: the supervisor agent's
// own settings and the worker specs available for plan steps.
type RunProfile struct {
	Supervisor store.Agent
	Workers    []supervisor.AgentSpec
}

// Profile loads the run profile for a crew from the store.
func (r *Registry) Profile(crewID string) (*RunProfile, error) {
	agents, err := r.store.ListAgents(crewID)
	if err != nil {
		return nil, fmt.Errorf("list crew agents: %w", err)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("crew %s has no agents", crewID)
	}

	profile := &RunProfile{}
	found := false
	for _, a := range agents {
		if a.IsSupervisor {
			profile.Supervisor = a
			found = true
			continue
		}
		spec, err := r.workerSpec(a)
		if err != nil {
			return nil, err
		}
		profile.Workers = append(profile.Workers, spec)
	}
	if !found {
		return nil, fmt.Errorf("crew %s has no supervisor agent", crewID)
	}
	return profile, nil
}

func (r *Registry) workerSpec(a store.Agent) (supervisor.AgentSpec, error) {
	tools, err := mcp.ParseTools(a.Tools)
	if err != nil {
		return supervisor.AgentSpec{}, fmt.Errorf("agent %s tools: %w", a.Name, err)
	}
	if r.resolve != nil {
		if err := mcp.ResolveSecretRefs(tools, r.resolve); err != nil {
			return supervisor.AgentSpec{}, fmt.Errorf("agent %s: %w", a.Name, err)
		}
	}
	return supervisor.AgentSpec{
		Name:         a.Name,
		Role:         a.Role,
		Persona:      a.SystemPrompt,
		Capabilities: mcp.CapabilitySummary(tools),
		Model:        a.Model,
		Temperature:  a.Temperature,
	}, nil
}
