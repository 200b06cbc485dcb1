// Package chat runs user turns through the supervisor state machine and
// persists the conversation: messages, activity logs and streamed output.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/llm"
	"github.com/crewdhq/crewd/internal/natsbus"
	"github.com/crewdhq/crewd/internal/registry"
	"github.com/crewdhq/crewd/internal/store"
	"github.com/crewdhq/crewd/internal/supervisor"
)

const maxTitleLen = 60

type Service struct {
	store   *store.Store
	gateway llm.Client
	reg     *registry.Registry
	bus     *natsbus.Client
	cfg     config.SupervisorConfig
	log     *slog.Logger
}

// New builds the chat service. bus may be nil; events are then only
// persisted to the activity log.
func New(s *store.Store, gateway llm.Client, reg *registry.Registry, bus *natsbus.Client, cfg config.SupervisorConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		gateway: gateway,
		reg:     reg,
		bus:     bus,
		cfg:     cfg,
		log:     logger,
	}
}

// NewConversation creates a conversation for a crew.
func (s *Service) NewConversation(crewID string) (*store.Conversation, error) {
	crew, err := s.store.GetCrew(crewID)
	if err != nil {
		return nil, err
	}
	if crew == nil {
		return nil, fmt.Errorf("crew %s not found", crewID)
	}
	conv := &store.Conversation{
		ID:     uuid.NewString(),
		CrewID: crewID,
		Active: true,
	}
	if err := s.store.SaveConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Send runs one user turn to completion and returns the assistant message.
func (s *Service) Send(ctx context.Context, conversationID, text string) (*store.Message, error) {
	return s.send(ctx, conversationID, text, nil)
}

// SendStream behaves like Send but forwards output fragments to sink as the
// visible turn is generated. sink is called from the supervisor goroutine.
func (s *Service) SendStream(ctx context.Context, conversationID, text string, sink func(llm.Fragment)) (*store.Message, error) {
	return s.send(ctx, conversationID, text, sink)
}

func (s *Service) send(ctx context.Context, conversationID, text string, sink func(llm.Fragment)) (*store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message is empty")
	}

	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s not found", conversationID)
	}

	profile, err := s.reg.Profile(conv.CrewID)
	if err != nil {
		return nil, fmt.Errorf("load crew: %w", err)
	}

	history, err := s.history(conv.ID)
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           "user",
		Content:        text,
	}
	if err := s.store.SaveMessage(userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	if err := s.store.SetConversationTitle(conv.ID, titleFrom(text)); err != nil {
		s.log.Warn("set conversation title failed", "conversation", conv.ID, "error", err)
	}

	assistant := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           "assistant",
		AgentName:      profile.Supervisor.Name,
		Status:         store.MessageStatusProcessing,
	}
	if err := s.store.SaveMessage(assistant); err != nil {
		return nil, fmt.Errorf("save assistant placeholder: %w", err)
	}

	run, err := supervisor.New(supervisor.Config{
		Gateway:           s.gateway,
		Agents:            profile.Workers,
		History:           history,
		Emitter:           s.emitter(conv),
		Model:             profile.Supervisor.Model,
		Temperature:       profile.Supervisor.Temperature,
		AgentContextTurns: s.cfg.AgentContextTurns,
		OnFragment:        s.fragmentSink(conv, sink),
		MessageID:         assistant.ID,
		Logger:            s.log.With("conversation", conv.ID),
	}, text)
	if err != nil {
		s.failMessage(assistant, err)
		return nil, fmt.Errorf("start run: %w", err)
	}

	output, runErr := run.Execute(ctx)

	meta := runMetadata(run)
	if runErr != nil {
		if err := s.store.UpdateMessageStatus(assistant.ID, store.MessageStatusFailed, output, meta); err != nil {
			s.log.Error("persist failed message", "message", assistant.ID, "error", err)
		}
		assistant.Status = store.MessageStatusFailed
		assistant.Content = output
		assistant.Metadata = meta
		return assistant, runErr
	}

	if err := s.store.UpdateMessageStatus(assistant.ID, store.MessageStatusCompleted, output, meta); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	if err := s.store.TouchConversation(conv.ID); err != nil {
		s.log.Warn("touch conversation failed", "conversation", conv.ID, "error", err)
	}
	assistant.Status = store.MessageStatusCompleted
	assistant.Content = output
	assistant.Metadata = meta

	s.publishEvent(conv, supervisor.Event{
		Type:        supervisor.EventStatusChange,
		Agent:       profile.Supervisor.Name,
		Description: "Turn completed",
		Details:     map[string]any{"message_id": assistant.ID, "degraded": run.Degraded()},
	})

	return assistant, nil
}

// history maps recent completed messages into gateway turns, oldest first.
func (s *Service) history(conversationID string) ([]llm.Message, error) {
	limit := s.cfg.HistoryTurns
	if limit <= 0 {
		limit = 10
	}
	recent, err := s.store.GetRecentMessages(conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		switch m.Role {
		case "user":
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case "assistant":
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return msgs, nil
}

// emitter persists run events to the activity log and fans them out on the
// bus for live observers.
func (s *Service) emitter(conv *store.Conversation) supervisor.Emitter {
	return supervisor.EmitterFunc(func(e supervisor.Event) {
		details := ""
		if len(e.Details) > 0 {
			if data, err := json.Marshal(e.Details); err == nil {
				details = string(data)
			}
		}
		if err := s.store.AppendActivity(&store.ActivityLog{
			ConversationID: conv.ID,
			Type:           string(e.Type),
			AgentName:      e.Agent,
			Description:    e.Description,
			Details:        details,
		}); err != nil {
			s.log.Error("append activity failed", "conversation", conv.ID, "error", err)
		}
		s.publishEvent(conv, e)
	})
}

func (s *Service) publishEvent(conv *store.Conversation, e supervisor.Event) {
	if s.bus == nil {
		return
	}
	env := natsbus.EventEnvelope{
		ConversationID: conv.ID,
		CrewID:         conv.CrewID,
		Type:           string(e.Type),
		Agent:          e.Agent,
		Description:    e.Description,
		Details:        e.Details,
	}
	if err := s.bus.PublishEvent(natsbus.TopicConversationEvents(conv.ID), env); err != nil {
		s.log.Warn("publish event failed", "conversation", conv.ID, "error", err)
	}
}

// fragmentSink forwards visible-turn fragments to the caller's sink and the
// bus. Returns nil when neither consumer exists so runs skip streaming.
func (s *Service) fragmentSink(conv *store.Conversation, sink func(llm.Fragment)) func(llm.Fragment) {
	if sink == nil && s.bus == nil {
		return nil
	}
	topic := natsbus.TopicConversationFragments(conv.ID)
	return func(f llm.Fragment) {
		if sink != nil {
			sink(f)
		}
		if s.bus != nil {
			if err := s.bus.PublishJSON(topic, f); err != nil {
				s.log.Warn("publish fragment failed", "conversation", conv.ID, "error", err)
			}
		}
	}
}

func (s *Service) failMessage(m *store.Message, cause error) {
	meta, _ := json.Marshal(map[string]any{"error": cause.Error()})
	if err := s.store.UpdateMessageStatus(m.ID, store.MessageStatusFailed, "", string(meta)); err != nil {
		s.log.Error("persist failed message", "message", m.ID, "error", err)
	}
}

func runMetadata(run *supervisor.Run) string {
	meta := map[string]any{
		"degraded": run.Degraded(),
	}
	switch run.Action() {
	case supervisor.ActionAnswerDirectly:
		meta["action"] = "answer_directly"
	case supervisor.ActionCreatePlan:
		meta["action"] = "create_plan"
	}
	if p := run.Plan(); p != nil {
		meta["plan_steps"] = len(p.Steps)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}

func titleFrom(text string) string {
	title := strings.TrimSpace(text)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen] + "..."
	}
	return title
}
