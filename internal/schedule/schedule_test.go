package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeBareCron(t *testing.T) {
	got, err := Normalize("*/5 * * * *")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s, err := Parse(got)
	if err != nil {
		t.Fatalf("parse normalized: %v", err)
	}
	if s.Kind != "cron" || s.Expr != "*/5 * * * *" {
		t.Errorf("unexpected schedule: %+v", s)
	}
}

func TestNormalizeShorthands(t *testing.T) {
	got, err := Normalize("interval:90m")
	if err != nil {
		t.Fatalf("interval: %v", err)
	}
	s, _ := Parse(got)
	if s.Kind != "interval" || s.Every != "90m" {
		t.Errorf("unexpected interval schedule: %+v", s)
	}

	got, err = Normalize("once:2030-01-02T15:04:05Z")
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	s, _ = Parse(got)
	if s.Kind != "once" || s.At.Year() != 2030 {
		t.Errorf("unexpected once schedule: %+v", s)
	}
}

func TestNormalizePassesThroughJSON(t *testing.T) {
	raw := `{"kind":"interval","every":"1h"}`
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.Contains(got, `"interval"`) {
		t.Errorf("unexpected normalized form: %s", got)
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	bad := []string{
		"",
		"not a cron",
		"interval:-5m",
		"interval:soon",
		"once:tomorrow",
		`{"kind":"weekly"}`,
		`{"kind":"cron","expr":"61 * * * *"}`,
	}
	for _, raw := range bad {
		if _, err := Normalize(raw); err == nil {
			t.Errorf("Normalize(%q) should fail", raw)
		}
	}
}

func TestNextRunInterval(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s := &Schedule{Kind: "interval", Every: "30m"}
	next := s.NextRun(now)
	if next == nil || !next.Equal(now.Add(30*time.Minute)) {
		t.Errorf("unexpected next run: %v", next)
	}
}

func TestNextRunCron(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 7, 0, 0, time.UTC)
	s := &Schedule{Kind: "cron", Expr: "0 * * * *"}
	next := s.NextRun(now)
	if next == nil {
		t.Fatal("expected next run")
	}
	if next.Minute() != 0 || !next.After(now) {
		t.Errorf("unexpected next run: %v", next)
	}
}

func TestNextRunOnce(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	s := &Schedule{Kind: "once", At: future}
	next := s.NextRun(now)
	if next == nil || !next.Equal(future) {
		t.Errorf("unexpected next run: %v", next)
	}

	// A fire time in the past never fires again.
	past := &Schedule{Kind: "once", At: now.Add(-time.Hour)}
	if past.NextRun(now) != nil {
		t.Error("past once schedule should not fire")
	}
}

func TestNextRunFromJSON(t *testing.T) {
	raw, err := Normalize("interval:1h")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	next := NextRunFrom(raw, now)
	if next == nil || next.Sub(now) != time.Hour {
		t.Errorf("unexpected next run: %v", next)
	}

	if NextRunFrom("garbage", now) != nil {
		t.Error("unparseable schedule should yield nil")
	}
}

func TestDescribe(t *testing.T) {
	raw, _ := Normalize("interval:1h")
	if got := Describe(raw); got != "every 1h" {
		t.Errorf("unexpected description: %q", got)
	}
	raw, _ = Normalize("0 9 * * 1")
	if got := Describe(raw); got != "cron 0 9 * * 1" {
		t.Errorf("unexpected description: %q", got)
	}
	if got := Describe("garbage"); got != "garbage" {
		t.Errorf("unparseable input should pass through: %q", got)
	}
}
