// Package mcp holds MCP tool descriptors attached to agents. Descriptors are
// validated for shape and surfaced into agent personas as capability
// listings; tool execution itself happens outside this process.
package mcp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ServerConfig locates the MCP server a tool lives on (stdio or http).
type ServerConfig struct {
	Type    string            `json:"type" yaml:"type"`
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Tool is one MCP tool descriptor.
type Tool struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Server      ServerConfig `json:"server" yaml:"server"`
}

var (
	validServerTypes = map[string]bool{"stdio": true, "http": true}
	toolNameRegexp   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
)

// Validate checks a tool list for shape errors.
func Validate(tools []Tool) error {
	seen := make(map[string]bool, len(tools))
	for i, tool := range tools {
		if tool.Name == "" {
			return fmt.Errorf("tool[%d]: name is required", i)
		}
		if !toolNameRegexp.MatchString(tool.Name) {
			return fmt.Errorf("tool %q: name must be alphanumeric with hyphens/underscores", tool.Name)
		}
		if seen[tool.Name] {
			return fmt.Errorf("tool %q: duplicate name", tool.Name)
		}
		seen[tool.Name] = true

		srv := tool.Server
		if !validServerTypes[srv.Type] {
			return fmt.Errorf("tool %q: invalid server type %q (must be stdio or http)", tool.Name, srv.Type)
		}
		if srv.Type == "stdio" && srv.Command == "" {
			return fmt.Errorf("tool %q: stdio server requires command", tool.Name)
		}
		if srv.Type == "http" && srv.URL == "" {
			return fmt.Errorf("tool %q: http server requires url", tool.Name)
		}
	}
	return nil
}

// ParseTools parses a JSON tool list as stored on an agent row.
func ParseTools(data string) ([]Tool, error) {
	if data == "" || data == "[]" || data == "null" {
		return nil, nil
	}
	var tools []Tool
	if err := json.Unmarshal([]byte(data), &tools); err != nil {
		return nil, fmt.Errorf("parse tools: %w", err)
	}
	return tools, nil
}

// MarshalTools serializes a tool list for storage.
func MarshalTools(tools []Tool) (string, error) {
	if len(tools) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tools)
	if err != nil {
		return "", fmt.Errorf("marshal tools: %w", err)
	}
	return string(data), nil
}

// ResolveSecretRefs replaces secret:name values in server env and headers
// using the provided resolver.
func ResolveSecretRefs(tools []Tool, resolve func(name string) (string, error)) error {
	for i := range tools {
		srv := &tools[i].Server
		for k, v := range srv.Env {
			if secretName, ok := strings.CutPrefix(v, "secret:"); ok {
				val, err := resolve(secretName)
				if err != nil {
					return fmt.Errorf("tool %q env %q: %w", tools[i].Name, k, err)
				}
				srv.Env[k] = val
			}
		}
		for k, v := range srv.Headers {
			if secretName, ok := strings.CutPrefix(v, "secret:"); ok {
				val, err := resolve(secretName)
				if err != nil {
					return fmt.Errorf("tool %q header %q: %w", tools[i].Name, k, err)
				}
				srv.Headers[k] = val
			}
		}
	}
	return nil
}

// CapabilitySummary renders a tool list as a persona section. Returns an
// empty string when the agent has no tools.
func CapabilitySummary(tools []Tool) string {
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("You have access to the following tools:\n")
	for _, tool := range tools {
		if tool.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", tool.Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
