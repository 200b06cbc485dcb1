package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crewdhq/crewd/internal/chat"
	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/llm"
	"github.com/crewdhq/crewd/internal/natsbus"
	"github.com/crewdhq/crewd/internal/registry"
	"github.com/crewdhq/crewd/internal/scheduler"
	"github.com/crewdhq/crewd/internal/store"
	"github.com/crewdhq/crewd/internal/vault"
	"github.com/crewdhq/crewd/internal/web"
)

var version = "dev"

func main() {
	// Optional .env for API keys and the vault passphrase.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("crewd %s\n", version)
	case "gateway":
		err = runGateway()
	case "backup":
		err = runBackup(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	case "secret":
		err = runSecret(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: crewd <command>

Commands:
  gateway    Start the crewd service
  backup     Archive the data directory to a tar.zst file
  restore    Restore a data directory from a backup archive
  secret     Manage vault secrets
  version    Print version
`)
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting crewd", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	busClient, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer busClient.Close()

	// Vault first: provider keys and tool configs may carry secret: refs.
	var keeper *vault.Keeper
	if cfg.Vault.Passphrase != "" {
		keeper, err = vault.NewKeeper(cfg.Vault.Passphrase, db)
		if err != nil {
			return fmt.Errorf("init vault: %w", err)
		}
	} else {
		slog.Warn("vault passphrase not set, secrets disabled")
	}

	// Crew registry
	reg := registry.New(db, cfg.Crews)
	if keeper != nil {
		reg.UseVault(keeper.Resolve)
	}
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync crew registry: %w", err)
	}
	slog.Info("crews synced", "count", len(cfg.Crews))

	// Model gateway
	gateway, err := buildGateway(cfg.LLM, keeper)
	if err != nil {
		return fmt.Errorf("init model gateway: %w", err)
	}

	// Chat service
	chatSvc := chat.New(db, gateway, reg, busClient, cfg.Supervisor, slog.Default())

	// Scheduler
	sched := scheduler.New(db, chatSvc, busClient, cfg.Scheduler)
	go sched.Start(ctx)

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, chatSvc, keeper, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	// Give in-flight runs a moment to persist their failed placeholders.
	time.Sleep(200 * time.Millisecond)
	return nil
}

// buildGateway assembles the provider registry and wraps it with retries.
// API keys of the form secret:<name> are resolved through the vault.
func buildGateway(cfg config.LLMConfig, keeper *vault.Keeper) (llm.Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no model providers configured")
	}

	settings := make(map[string]llm.ProviderSettings, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		apiKey := pc.APIKey
		if secretName, ok := strings.CutPrefix(apiKey, "secret:"); ok {
			if keeper == nil {
				return nil, fmt.Errorf("provider %s: api key references secret %q but the vault is not configured", name, secretName)
			}
			resolved, err := keeper.Resolve(secretName)
			if err != nil {
				return nil, fmt.Errorf("provider %s api key: %w", name, err)
			}
			apiKey = resolved
		}
		settings[name] = llm.ProviderSettings{
			Kind:        pc.Kind,
			APIKey:      apiKey,
			BaseURL:     pc.BaseURL,
			Model:       pc.Model,
			Temperature: pc.Temperature,
			MaxTokens:   pc.MaxTokens,
		}
	}

	reg, err := llm.NewRegistry(settings, cfg.Default)
	if err != nil {
		return nil, err
	}

	policy := llm.DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	return llm.WithRetry(reg, policy), nil
}
