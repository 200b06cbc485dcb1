package plan

import (
	"errors"
	"testing"
)

func TestParseBareJSON(t *testing.T) {
	raw := `{"goal": "compare databases", "steps": [
		{"step": 1, "agent": "researcher", "task": "gather benchmarks"},
		{"step": 2, "agent": "writer", "task": "summarize findings"}
	]}`

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Goal != "compare databases" {
		t.Errorf("goal = %q", p.Goal)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(p.Steps))
	}
	if p.Steps[1].Agent != "writer" || p.Steps[1].Number != 2 {
		t.Errorf("unexpected step 2: %+v", p.Steps[1])
	}
}

func TestParseFencedBlock(t *testing.T) {
	raw := "Here is the plan:\n```json\n" +
		`{"goal": "g", "steps": [{"step": 1, "agent": "a", "task": "t"}]}` +
		"\n```\nLet me know if you need changes."

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Steps[0].Agent != "a" {
		t.Errorf("agent = %q", p.Steps[0].Agent)
	}
}

func TestParseBareFence(t *testing.T) {
	raw := "```\n" +
		`{"goal": "g", "steps": [{"step": 1, "agent": "a", "task": "t"}]}` +
		"\n```"

	if _, err := Parse(raw); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestParseEmbeddedObject(t *testing.T) {
	raw := `Sure! The plan is {"goal": "g", "steps": [{"step": 1, "agent": "a", "task": "t"}]} as requested.`

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Goal != "g" {
		t.Errorf("goal = %q", p.Goal)
	}
}

func TestParseAgentNameKey(t *testing.T) {
	raw := `{"goal": "g", "steps": [{"step": 1, "agent_name": "researcher", "task": "t"}]}`

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Steps[0].Agent != "researcher" {
		t.Errorf("agent = %q, want researcher", p.Steps[0].Agent)
	}
}

func TestParseFillsMissingStepNumbers(t *testing.T) {
	raw := `{"goal": "g", "steps": [
		{"agent": "a", "task": "first"},
		{"agent": "b", "task": "second"}
	]}`

	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Steps[0].Number != 1 || p.Steps[1].Number != 2 {
		t.Errorf("numbers = %d, %d", p.Steps[0].Number, p.Steps[1].Number)
	}
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"prose only", "I cannot produce a plan for that."},
		{"invalid json", "```json\n{\"goal\": \"g\", \"steps\": [}\n```"},
		{"no steps", `{"goal": "g", "steps": []}`},
		{"missing agent", `{"goal": "g", "steps": [{"step": 1, "task": "t"}]}`},
		{"missing task", `{"goal": "g", "steps": [{"step": 1, "agent": "a"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected ParseError, got %T", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	p := &Plan{
		Goal: "g",
		Steps: []Step{
			{Number: 1, Agent: "researcher", Task: "t"},
			{Number: 2, Agent: "ghost", Task: "t"},
		},
	}
	known := map[string]bool{"researcher": true, "writer": true}

	if err := Validate(p, known); err == nil {
		t.Fatal("expected error for unknown agent")
	}

	p.Steps[1].Agent = "writer"
	if err := Validate(p, known); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
