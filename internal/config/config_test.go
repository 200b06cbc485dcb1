package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crewd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREWD_CONFIG", path)
}

const validConfig = `
llm:
  default: openrouter
  providers:
    openrouter:
      kind: openrouter
      api_key: test-key
      base_url: https://openrouter.ai/api/v1
      model: google/gemini-2.5-flash
      temperature: 0.2
store:
  path: /tmp/test.db
crews:
  - name: research
    description: research crew
    agents:
      - name: lead
        supervisor: true
        role: coordinates the crew
      - name: researcher
        role: finds facts
        model: anthropic/claude-sonnet-4
        temperature: 0.7
`

func TestLoadValidConfig(t *testing.T) {
	writeConfig(t, validConfig)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p, ok := cfg.LLM.Providers["openrouter"]
	if !ok {
		t.Fatal("openrouter provider missing")
	}
	if p.Model != "google/gemini-2.5-flash" || p.APIKey != "test-key" {
		t.Errorf("unexpected provider: %+v", p)
	}
	if cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if len(cfg.Crews) != 1 || len(cfg.Crews[0].Agents) != 2 {
		t.Fatalf("unexpected crews: %+v", cfg.Crews)
	}
	if !cfg.Crews[0].Agents[0].Supervisor {
		t.Error("lead should be supervisor")
	}

	// Defaults still apply to unset sections.
	if cfg.Web.Port != 8080 {
		t.Errorf("web port = %d, want default 8080", cfg.Web.Port)
	}
	if cfg.Supervisor.HistoryTurns != 10 {
		t.Errorf("history turns = %d, want default 10", cfg.Supervisor.HistoryTurns)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CREWD_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "data/crewd.db" {
		t.Errorf("store path = %q, want default", cfg.Store.Path)
	}
	if cfg.Scheduler.PollInterval.Seconds() != 30 {
		t.Errorf("poll interval = %v", cfg.Scheduler.PollInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	writeConfig(t, validConfig)
	t.Setenv("CREWD_WEB_PASSWORD", "hunter2")
	t.Setenv("CREWD_STORE_PATH", "/tmp/override.db")
	t.Setenv("CREWD_VAULT_PASSPHRASE", "open sesame")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Web.Auth != "hunter2" {
		t.Errorf("web auth = %q", cfg.Web.Auth)
	}
	if cfg.Store.Path != "/tmp/override.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Vault.Passphrase != "open sesame" {
		t.Errorf("vault passphrase = %q", cfg.Vault.Passphrase)
	}
}

func TestProviderKeyFromEnv(t *testing.T) {
	writeConfig(t, `
llm:
  default: main
  providers:
    main:
      kind: anthropic
      model: claude-sonnet-4
`)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Providers["main"].APIKey != "sk-ant-test" {
		t.Errorf("api key = %q", cfg.LLM.Providers["main"].APIKey)
	}
}

func TestValidateRejectsBadCrews(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no supervisor", `
crews:
  - name: research
    agents:
      - name: researcher
`},
		{"two supervisors", `
crews:
  - name: research
    agents:
      - name: a
        supervisor: true
      - name: b
        supervisor: true
`},
		{"duplicate agent", `
crews:
  - name: research
    agents:
      - name: a
        supervisor: true
      - name: a
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writeConfig(t, tc.yaml)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExpandEnvInConfig(t *testing.T) {
	t.Setenv("TEST_DB_DIR", "/var/lib/crewd")
	writeConfig(t, `
store:
  path: ${TEST_DB_DIR}/crewd.db
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/var/lib/crewd/crewd.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
}
