package mcp

import (
	"fmt"
	"strings"
	"testing"
)

func sampleTools() []Tool {
	return []Tool{
		{
			Name:        "web_search",
			Description: "search the web",
			Server:      ServerConfig{Type: "http", URL: "https://mcp.example.com"},
		},
		{
			Name:   "filesystem",
			Server: ServerConfig{Type: "stdio", Command: "mcp-fs"},
		},
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(sampleTools()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	bad := []struct {
		name  string
		tools []Tool
	}{
		{"missing name", []Tool{{Server: ServerConfig{Type: "http", URL: "u"}}}},
		{"bad name", []Tool{{Name: "no spaces!", Server: ServerConfig{Type: "http", URL: "u"}}}},
		{"bad type", []Tool{{Name: "t", Server: ServerConfig{Type: "carrier-pigeon"}}}},
		{"stdio without command", []Tool{{Name: "t", Server: ServerConfig{Type: "stdio"}}}},
		{"http without url", []Tool{{Name: "t", Server: ServerConfig{Type: "http"}}}},
		{"duplicate", []Tool{
			{Name: "t", Server: ServerConfig{Type: "http", URL: "u"}},
			{Name: "t", Server: ServerConfig{Type: "http", URL: "u"}},
		}},
	}
	for _, tc := range bad {
		if err := Validate(tc.tools); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParseAndMarshalRoundTrip(t *testing.T) {
	data, err := MarshalTools(sampleTools())
	if err != nil {
		t.Fatal(err)
	}
	tools, err := ParseTools(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 || tools[0].Name != "web_search" {
		t.Errorf("unexpected tools: %+v", tools)
	}

	empty, err := ParseTools("")
	if err != nil || empty != nil {
		t.Errorf("ParseTools(\"\") = %v, %v", empty, err)
	}
}

func TestResolveSecretRefs(t *testing.T) {
	tools := []Tool{{
		Name: "api",
		Server: ServerConfig{
			Type:    "http",
			URL:     "https://mcp.example.com",
			Headers: map[string]string{"Authorization": "secret:api-token", "Accept": "application/json"},
			Env:     map[string]string{"TOKEN": "secret:api-token"},
		},
	}}

	err := ResolveSecretRefs(tools, func(name string) (string, error) {
		if name != "api-token" {
			return "", fmt.Errorf("unknown secret %s", name)
		}
		return "tok-123", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if tools[0].Server.Headers["Authorization"] != "tok-123" {
		t.Errorf("header not resolved: %v", tools[0].Server.Headers)
	}
	if tools[0].Server.Headers["Accept"] != "application/json" {
		t.Errorf("plain header should be untouched")
	}
	if tools[0].Server.Env["TOKEN"] != "tok-123" {
		t.Errorf("env not resolved: %v", tools[0].Server.Env)
	}

	tools[0].Server.Headers["Authorization"] = "secret:missing"
	if err := ResolveSecretRefs(tools, func(string) (string, error) {
		return "", fmt.Errorf("not found")
	}); err == nil {
		t.Error("expected error for unresolvable secret")
	}
}

func TestCapabilitySummary(t *testing.T) {
	if got := CapabilitySummary(nil); got != "" {
		t.Errorf("empty tools should produce empty summary, got %q", got)
	}

	summary := CapabilitySummary(sampleTools())
	if !strings.Contains(summary, "web_search: search the web") {
		t.Errorf("summary missing described tool: %q", summary)
	}
	if !strings.Contains(summary, "- filesystem") {
		t.Errorf("summary missing bare tool: %q", summary)
	}
}
