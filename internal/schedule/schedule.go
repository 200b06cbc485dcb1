// Package schedule parses and evaluates scheduled prompt triggers. A
// schedule is stored as JSON with a kind of cron, interval or once;
// Normalize also accepts the shorthand forms users type into the API.
package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

type Schedule struct {
	Kind  string    `json:"kind"`            // "cron", "interval", "once"
	Expr  string    `json:"expr,omitempty"`  // cron expression (kind=cron)
	Every string    `json:"every,omitempty"` // Go duration (kind=interval)
	At    time.Time `json:"at,omitempty"`    // fire time (kind=once)
}

func Parse(raw string) (*Schedule, error) {
	var s Schedule
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schedule) validate() error {
	switch s.Kind {
	case "cron":
		if !gronx.New().IsValid(s.Expr) {
			return fmt.Errorf("invalid cron expression: %s", s.Expr)
		}
	case "interval":
		d, err := time.ParseDuration(s.Every)
		if err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("interval must be positive")
		}
	case "once":
		if s.At.IsZero() {
			return fmt.Errorf("once schedule requires a fire time")
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}
	return nil
}

// NextRun computes the next fire time after now. A nil result means the
// schedule will never fire again.
func (s *Schedule) NextRun(now time.Time) *time.Time {
	switch s.Kind {
	case "cron":
		next, err := gronx.NextTickAfter(s.Expr, now, false)
		if err != nil {
			return nil
		}
		return &next
	case "interval":
		d, err := time.ParseDuration(s.Every)
		if err != nil {
			return nil
		}
		next := now.Add(d)
		return &next
	case "once":
		if s.At.After(now) {
			at := s.At
			return &at
		}
		return nil
	default:
		return nil
	}
}

// NextRunFrom is NextRun over the stored JSON form.
func NextRunFrom(raw string, now time.Time) *time.Time {
	s, err := Parse(raw)
	if err != nil {
		return nil
	}
	return s.NextRun(now)
}

// Describe renders a schedule for listings.
func Describe(raw string) string {
	s, err := Parse(raw)
	if err != nil {
		return raw
	}
	switch s.Kind {
	case "cron":
		return "cron " + s.Expr
	case "interval":
		return "every " + s.Every
	case "once":
		return "once at " + s.At.Format(time.RFC3339)
	default:
		return raw
	}
}

// Normalize turns user input into the stored JSON form. Accepted inputs:
// the JSON form itself, a bare cron expression, "interval:<duration>" and
// "once:<RFC3339>".
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("schedule is empty")
	}

	var s Schedule
	switch {
	case strings.HasPrefix(raw, "{"):
		parsed, err := Parse(raw)
		if err != nil {
			return "", err
		}
		s = *parsed
	case strings.HasPrefix(raw, "interval:"):
		s = Schedule{Kind: "interval", Every: strings.TrimPrefix(raw, "interval:")}
	case strings.HasPrefix(raw, "once:"):
		at, err := time.Parse(time.RFC3339, strings.TrimPrefix(raw, "once:"))
		if err != nil {
			return "", fmt.Errorf("invalid once schedule: %w", err)
		}
		s = Schedule{Kind: "once", At: at}
	default:
		s = Schedule{Kind: "cron", Expr: raw}
	}

	if err := s.validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
