package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crewdhq/crewd/internal/mcp"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	NATS       NATSConfig       `yaml:"nats"`
	Store      StoreConfig      `yaml:"store"`
	Web        WebConfig        `yaml:"web"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Vault      VaultConfig      `yaml:"vault"`
	Crews      []CrewDefinition `yaml:"crews"`
}

// ProviderConfig configures one model provider in the gateway.
type ProviderConfig struct {
	Kind        string  `yaml:"kind"` // "openai", "openrouter" or "anthropic"
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type LLMConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Default    string                    `yaml:"default"`
	MaxRetries int                       `yaml:"max_retries"`
}

type SupervisorConfig struct {
	// HistoryTurns is how many prior conversation turns are replayed
	// into supervisor calls.
	HistoryTurns int `yaml:"history_turns"`
	// AgentContextTurns caps the per-agent history replayed into task calls.
	AgentContextTurns int `yaml:"agent_context_turns"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

// CrewDefinition declares a crew and its agents in configuration. Crews are
// synced into the store at startup.
type CrewDefinition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Agents      []AgentDefinition `yaml:"agents"`
}

type AgentDefinition struct {
	Name         string     `yaml:"name"`
	Role         string     `yaml:"role"`
	Model        string     `yaml:"model"`
	Temperature  float32    `yaml:"temperature"`
	SystemPrompt string     `yaml:"system_prompt"`
	Supervisor   bool       `yaml:"supervisor"`
	Tools        []mcp.Tool `yaml:"tools"`
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			MaxRetries: 3,
		},
		Supervisor: SupervisorConfig{
			HistoryTurns:      10,
			AgentContextTurns: 5,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/crewd.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CREWD_CONFIG")
	if path == "" {
		path = "config/crewd.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		applyProviderKey(cfg, "openai", v)
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		applyProviderKey(cfg, "openrouter", v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		applyProviderKey(cfg, "anthropic", v)
	}
	if v := os.Getenv("CREWD_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("CREWD_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("CREWD_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("CREWD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CREWD_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
}

// applyProviderKey fills in an API key for providers of the matching kind
// that did not get one from the config file.
func applyProviderKey(cfg *Config, kind, key string) {
	for name, p := range cfg.LLM.Providers {
		pKind := p.Kind
		if pKind == "" {
			pKind = "openai"
		}
		if pKind == kind && p.APIKey == "" {
			p.APIKey = key
			cfg.LLM.Providers[name] = p
		}
	}
}

func validate(cfg *Config) error {
	for _, crew := range cfg.Crews {
		if crew.Name == "" {
			return fmt.Errorf("crew with empty name")
		}
		supervisors := 0
		names := make(map[string]bool, len(crew.Agents))
		for _, agent := range crew.Agents {
			if agent.Name == "" {
				return fmt.Errorf("crew %q: agent with empty name", crew.Name)
			}
			if names[agent.Name] {
				return fmt.Errorf("crew %q: duplicate agent %q", crew.Name, agent.Name)
			}
			names[agent.Name] = true
			if agent.Supervisor {
				supervisors++
			}
			if err := mcp.Validate(agent.Tools); err != nil {
				return fmt.Errorf("crew %q agent %q: %w", crew.Name, agent.Name, err)
			}
		}
		if supervisors != 1 {
			return fmt.Errorf("crew %q: exactly one supervisor agent required, got %d", crew.Name, supervisors)
		}
	}
	return nil
}
