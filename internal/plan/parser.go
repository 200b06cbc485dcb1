// Package plan parses work plans out of model output.
package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Plan is a goal broken into ordered steps, each addressed to one agent.
type Plan struct {
	Goal  string `json:"goal"`
	Steps []Step `json:"steps"`
}

// Step is one unit of work for a named agent.
type Step struct {
	Number int    `json:"step"`
	Agent  string `json:"agent"`
	Task   string `json:"task"`
}

// UnmarshalJSON accepts both "agent" and "agent_name" for the agent field,
// since models alternate between the two.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw struct {
		Number    int    `json:"step"`
		Agent     string `json:"agent"`
		AgentName string `json:"agent_name"`
		Task      string `json:"task"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Number = raw.Number
	s.Agent = raw.Agent
	if s.Agent == "" {
		s.Agent = raw.AgentName
	}
	s.Task = raw.Task
	return nil
}

// ParseError reports why model output could not be turned into a plan.
// Callers fall back to answering directly when they see one.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse plan: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse plan: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var fenceRegexp = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)\\n\\s*```")

// Parse extracts a plan from raw model output. The JSON may arrive bare,
// inside a fenced code block, or surrounded by prose.
func Parse(raw string) (*Plan, error) {
	jsonText := strings.TrimSpace(raw)
	if matches := fenceRegexp.FindStringSubmatch(raw); len(matches) > 1 {
		jsonText = strings.TrimSpace(matches[1])
	}

	var p Plan
	if err := json.Unmarshal([]byte(jsonText), &p); err != nil {
		// The object may be surrounded by prose; scan for it.
		extracted, ok := firstJSONObject(jsonText)
		if !ok {
			return nil, &ParseError{Reason: "no JSON object found in output", Err: err}
		}
		if err := json.Unmarshal([]byte(extracted), &p); err != nil {
			return nil, &ParseError{Reason: "invalid JSON", Err: err}
		}
	}

	if len(p.Steps) == 0 {
		return nil, &ParseError{Reason: "plan has no steps"}
	}
	for i, step := range p.Steps {
		if step.Agent == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("step %d has no agent", i+1)}
		}
		if step.Task == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("step %d has no task", i+1)}
		}
		if step.Number == 0 {
			p.Steps[i].Number = i + 1
		}
	}

	return &p, nil
}

// Validate checks every step against the set of known agent names.
func Validate(p *Plan, agents map[string]bool) error {
	for _, step := range p.Steps {
		if !agents[step.Agent] {
			return fmt.Errorf("step %d references unknown agent %q", step.Number, step.Agent)
		}
	}
	return nil
}

// firstJSONObject scans text for the first balanced JSON object.
func firstJSONObject(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil {
			return text[start : start+int(dec.InputOffset())], true
		}
	}
	return "", false
}
