package scheduler

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crewdhq/crewd/internal/chat"
	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/llm"
	"github.com/crewdhq/crewd/internal/registry"
	"github.com/crewdhq/crewd/internal/schedule"
	"github.com/crewdhq/crewd/internal/store"
)

type fakeGateway struct{}

func (fakeGateway) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (llm.Completion, error) {
	if len(msgs) > 0 && strings.Contains(msgs[0].Content, "responsible for analyzing") {
		return llm.Completion{Content: "ACTION: ANSWER_DIRECTLY"}, nil
	}
	return llm.Completion{Content: "scheduled run output"}, nil
}

func (g fakeGateway) Stream(ctx context.Context, msgs []llm.Message, opts llm.Options) <-chan llm.Fragment {
	ch := make(chan llm.Fragment, 2)
	completion, _ := g.Complete(ctx, msgs, opts)
	ch <- llm.Fragment{Content: completion.Content}
	ch <- llm.Fragment{Final: true}
	close(ch)
	return ch
}

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store, string) {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	crews := []config.CrewDefinition{{
		Name: "ops",
		Agents: []config.AgentDefinition{
			{Name: "lead", Supervisor: true},
		},
	}}
	reg := registry.New(s, crews)
	if err := reg.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	svc := chat.New(s, fakeGateway{}, reg, nil, config.SupervisorConfig{HistoryTurns: 10}, nil)
	sched := New(s, svc, nil, config.SchedulerConfig{PollInterval: time.Minute})

	crew, _ := s.GetCrewByName("ops")
	return sched, s, crew.ID
}

func savePrompt(t *testing.T, s *store.Store, crewID, raw string) *store.ScheduledPrompt {
	t.Helper()
	normalized, err := schedule.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	due := time.Now().Add(-time.Minute).UTC()
	p := &store.ScheduledPrompt{
		ID:        "prompt-1",
		CrewID:    crewID,
		Name:      "digest",
		Schedule:  normalized,
		Prompt:    "Summarize the day",
		Status:    "active",
		NextRunAt: &due,
	}
	if err := s.SavePrompt(p); err != nil {
		t.Fatalf("save prompt: %v", err)
	}
	return p
}

func TestPollExecutesDuePrompt(t *testing.T) {
	sched, s, crewID := newTestScheduler(t)
	savePrompt(t, s, crewID, "interval:1h")

	sched.poll(context.Background())

	got, err := s.GetPrompt("prompt-1")
	if err != nil || got == nil {
		t.Fatalf("get prompt: %+v, %v", got, err)
	}
	if got.LastStatus != "success" {
		t.Errorf("expected success, got %q (%s)", got.LastStatus, got.LastError)
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(time.Now()) {
		t.Errorf("expected future next run, got %v", got.NextRunAt)
	}
	if got.Status != "active" {
		t.Errorf("recurring prompt should stay active, got %q", got.Status)
	}

	convs, err := s.ListConversations(crewID)
	if err != nil || len(convs) != 1 {
		t.Fatalf("expected one conversation, got %d (%v)", len(convs), err)
	}
	msgs, _ := s.ListMessages(convs[0].ID)
	if len(msgs) != 2 || msgs[1].Content != "scheduled run output" {
		t.Errorf("unexpected conversation messages: %+v", msgs)
	}
}

func TestOneOffPromptCompletes(t *testing.T) {
	sched, s, crewID := newTestScheduler(t)

	// Fire time already behind us once the prompt runs, so there is no
	// next run and the prompt must be marked completed.
	at := time.Now().Add(time.Second).UTC()
	raw, err := json.Marshal(schedule.Schedule{Kind: "once", At: at})
	if err != nil {
		t.Fatal(err)
	}
	p := savePrompt(t, s, crewID, string(raw))
	due := time.Now().Add(-time.Minute).UTC()
	p.NextRunAt = &due
	if err := s.SavePrompt(p); err != nil {
		t.Fatal(err)
	}

	time.Sleep(1100 * time.Millisecond)
	sched.poll(context.Background())

	got, _ := s.GetPrompt("prompt-1")
	if got.Status != "completed" {
		t.Errorf("expected completed, got %q", got.Status)
	}
	if got.NextRunAt != nil {
		t.Errorf("expected no next run, got %v", got.NextRunAt)
	}
}

func TestExecuteRecordsFailure(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	savePrompt(t, s, "no-such-crew", "interval:1h")

	sched.poll(context.Background())

	got, _ := s.GetPrompt("prompt-1")
	if got.LastStatus != "error" || got.LastError == "" {
		t.Errorf("expected recorded failure, got %+v", got)
	}
}
