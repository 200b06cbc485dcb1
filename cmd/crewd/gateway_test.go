package main

import (
	"path/filepath"
	"testing"

	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/store"
	"github.com/crewdhq/crewd/internal/vault"
)

func newTestKeeper(t *testing.T) *vault.Keeper {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	keeper, err := vault.NewKeeper("test-passphrase", s)
	if err != nil {
		t.Fatalf("create keeper: %v", err)
	}
	return keeper
}

func TestBuildGatewayResolvesSecretKeys(t *testing.T) {
	keeper := newTestKeeper(t)
	if err := keeper.Set("openrouter-key", "", "sk-or-v1-abc123"); err != nil {
		t.Fatal(err)
	}

	cfg := config.LLMConfig{
		Providers: map[string]config.ProviderConfig{
			"openrouter": {
				Kind:    "openrouter",
				APIKey:  "secret:openrouter-key",
				BaseURL: "https://openrouter.ai/api/v1",
				Model:   "meta-llama/llama-3-8b",
			},
		},
		Default: "openrouter",
	}

	gw, err := buildGateway(cfg, keeper)
	if err != nil {
		t.Fatalf("buildGateway: %v", err)
	}
	if gw == nil {
		t.Fatal("expected a gateway client")
	}

	// An unknown secret must fail construction.
	cfg.Providers["openrouter"] = config.ProviderConfig{
		Kind:   "openrouter",
		APIKey: "secret:no-such-key",
	}
	if _, err := buildGateway(cfg, keeper); err == nil {
		t.Error("expected error for unknown secret")
	}
}

func TestBuildGatewaySecretKeyWithoutVault(t *testing.T) {
	cfg := config.LLMConfig{
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "secret:openai-key"},
		},
		Default: "openai",
	}
	if _, err := buildGateway(cfg, nil); err == nil {
		t.Error("expected error when vault is not configured")
	}

	// Plain keys still work without a vault.
	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk-plain"}
	if _, err := buildGateway(cfg, nil); err != nil {
		t.Fatalf("buildGateway with plain key: %v", err)
	}
}
