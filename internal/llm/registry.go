package llm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderSettings configures one named provider in the gateway registry.
type ProviderSettings struct {
	Kind        string // "openai" or "anthropic"; empty means openai-compatible
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewProvider builds a client for a single provider.
func NewProvider(s ProviderSettings) (Client, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api key is required", s.Kind)
	}
	switch s.Kind {
	case "", "openai", "openrouter":
		return NewOpenAIClient(s.APIKey, s.Model, s.BaseURL, s.Temperature, s.MaxTokens), nil
	case "anthropic":
		return NewAnthropicClient(s.APIKey, s.Model, s.Temperature, s.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", s.Kind)
	}
}

// Registry routes calls to named providers by model id prefix. A model id of
// the form "name/rest" is sent to provider "name" with the prefix stripped,
// when such a provider exists; everything else goes to the default provider
// untouched. Model ids stay opaque otherwise.
type Registry struct {
	providers   map[string]Client
	defaultName string
}

func NewRegistry(settings map[string]ProviderSettings, defaultName string) (*Registry, error) {
	if len(settings) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if defaultName == "" && len(settings) == 1 {
		for name := range settings {
			defaultName = name
		}
	}
	if _, ok := settings[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q not configured", defaultName)
	}

	providers := make(map[string]Client, len(settings))
	for name, s := range settings {
		client, err := NewProvider(s)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		providers[name] = client
	}

	return &Registry{providers: providers, defaultName: defaultName}, nil
}

func (r *Registry) resolve(opts Options) (Client, Options) {
	if name, rest, ok := strings.Cut(opts.Model, "/"); ok {
		if client, found := r.providers[name]; found {
			opts.Model = rest
			return client, opts
		}
	}
	return r.providers[r.defaultName], opts
}

func (r *Registry) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	client, opts := r.resolve(opts)
	return client.Complete(ctx, messages, opts)
}

func (r *Registry) Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment {
	client, opts := r.resolve(opts)
	return client.Stream(ctx, messages, opts)
}
