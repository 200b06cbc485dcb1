// Package scheduler polls for due scheduled prompts and runs each one as a
// fresh conversation with its crew.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/crewdhq/crewd/internal/chat"
	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/natsbus"
	"github.com/crewdhq/crewd/internal/schedule"
	"github.com/crewdhq/crewd/internal/store"
)

type Scheduler struct {
	store        *store.Store
	chat         *chat.Service
	bus          *natsbus.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func New(s *store.Store, chatSvc *chat.Service, bus *natsbus.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:        s,
		chat:         chatSvc,
		bus:          bus,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdatePollInterval changes the poll cadence and signals the run loop to
// reset its ticker.
func (s *Scheduler) UpdatePollInterval(pollInterval time.Duration) {
	s.pollInterval = pollInterval
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			slog.Info("scheduler poll interval reloaded", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	prompts, err := s.store.GetDuePrompts(time.Now())
	if err != nil {
		slog.Error("failed to get due prompts", "error", err)
		return
	}

	for _, prompt := range prompts {
		s.execute(ctx, prompt)
	}
}

func (s *Scheduler) execute(ctx context.Context, prompt store.ScheduledPrompt) {
	slog.Info("executing scheduled prompt", "id", prompt.ID, "name", prompt.Name, "crew", prompt.CrewID)

	lastStatus := "success"
	lastError := ""

	conv, err := s.chat.NewConversation(prompt.CrewID)
	if err == nil {
		_, err = s.chat.Send(ctx, conv.ID, prompt.Prompt)
	}
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("scheduled prompt failed", "id", prompt.ID, "error", err)
	}

	nextRun := schedule.NextRunFrom(prompt.Schedule, time.Now())

	if err := s.store.UpdatePromptRun(prompt.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("failed to update prompt run", "id", prompt.ID, "error", err)
	}

	s.publishExecuted(prompt, lastStatus)

	// One-off prompts with no next run are done.
	if nextRun == nil {
		slog.Info("no next run, marking prompt completed", "id", prompt.ID, "name", prompt.Name)
		if err := s.store.UpdatePromptStatus(prompt.ID, "completed"); err != nil {
			slog.Error("failed to complete prompt", "id", prompt.ID, "error", err)
		}
	}
}

func (s *Scheduler) publishExecuted(prompt store.ScheduledPrompt, status string) {
	if s.bus == nil {
		return
	}
	env := natsbus.EventEnvelope{
		CrewID:      prompt.CrewID,
		Type:        "prompt_executed",
		Description: prompt.Name,
		Details: map[string]any{
			"id":     prompt.ID,
			"status": status,
		},
	}
	if err := s.bus.PublishEvent(natsbus.TopicEventPromptRun, env); err != nil {
		slog.Warn("publish prompt event failed", "id", prompt.ID, "error", err)
	}
}
