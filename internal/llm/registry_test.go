package llm

import (
	"context"
	"testing"
)

type recordingClient struct {
	lastModel string
}

func (r *recordingClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	r.lastModel = opts.Model
	return Completion{Content: "done"}, nil
}

func (r *recordingClient) Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment {
	r.lastModel = opts.Model
	ch := make(chan Fragment, 1)
	ch <- Fragment{Final: true}
	close(ch)
	return ch
}

func TestRegistryRoutesByPrefix(t *testing.T) {
	main := &recordingClient{}
	claude := &recordingClient{}
	reg := &Registry{
		providers:   map[string]Client{"openrouter": main, "anthropic": claude},
		defaultName: "openrouter",
	}

	if _, err := reg.Complete(context.Background(), nil, Options{Model: "anthropic/claude-sonnet-4"}); err != nil {
		t.Fatal(err)
	}
	if claude.lastModel != "claude-sonnet-4" {
		t.Errorf("anthropic model = %q, want prefix stripped", claude.lastModel)
	}

	// Unknown prefixes stay opaque and go to the default provider.
	if _, err := reg.Complete(context.Background(), nil, Options{Model: "google/gemini-2.5-flash"}); err != nil {
		t.Fatal(err)
	}
	if main.lastModel != "google/gemini-2.5-flash" {
		t.Errorf("default model = %q, want untouched id", main.lastModel)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	if _, err := NewRegistry(nil, ""); err == nil {
		t.Error("expected error for empty provider set")
	}

	settings := map[string]ProviderSettings{
		"openrouter": {APIKey: "k", Model: "google/gemini-2.5-flash"},
	}
	if _, err := NewRegistry(settings, "missing"); err == nil {
		t.Error("expected error for unknown default provider")
	}

	// Single provider becomes the default implicitly.
	reg, err := NewRegistry(settings, "")
	if err != nil {
		t.Fatal(err)
	}
	if reg.defaultName != "openrouter" {
		t.Errorf("defaultName = %q, want openrouter", reg.defaultName)
	}
}

func TestNewProviderRejectsMissingKey(t *testing.T) {
	if _, err := NewProvider(ProviderSettings{Kind: "openai"}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewProvider(ProviderSettings{Kind: "carrier-pigeon", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
