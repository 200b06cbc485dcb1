package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/crewdhq/crewd/internal/llm"
	"github.com/crewdhq/crewd/internal/schedule"
	"github.com/crewdhq/crewd/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Crews and their agents (synced from config)
	mux.HandleFunc("GET /api/crews", s.listCrews)
	mux.HandleFunc("GET /api/crews/{id}", s.getCrew)
	mux.HandleFunc("GET /api/crews/{id}/agents", s.listCrewAgents)
	mux.HandleFunc("GET /api/crews/{id}/conversations", s.listConversations)
	mux.HandleFunc("POST /api/crews/{id}/conversations", s.createConversation)

	// Conversations
	mux.HandleFunc("GET /api/conversations/{id}", s.getConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.deleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.listMessages)
	mux.HandleFunc("GET /api/conversations/{id}/activity", s.listActivity)
	mux.HandleFunc("POST /api/conversations/{id}/chat", s.postChat)
	mux.HandleFunc("POST /api/conversations/{id}/chat/stream", s.postChatStream)

	// Scheduled prompts
	mux.HandleFunc("GET /api/prompts", s.listPrompts)
	mux.HandleFunc("POST /api/prompts", s.createPrompt)
	mux.HandleFunc("PUT /api/prompts/{id}", s.updatePrompt)
	mux.HandleFunc("DELETE /api/prompts/{id}", s.deletePrompt)

	// Secrets
	s.registerSecretsAPI(mux)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listCrews(w http.ResponseWriter, r *http.Request) {
	crews, err := s.store.ListCrews()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if crews == nil {
		crews = []store.Crew{}
	}
	jsonResponse(w, crews)
}

func (s *Server) getCrew(w http.ResponseWriter, r *http.Request) {
	crew, err := s.store.GetCrew(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if crew == nil {
		jsonError(w, "crew not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, crew)
}

func (s *Server) listCrewAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if agents == nil {
		agents = []store.Agent{}
	}
	jsonResponse(w, agents)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	jsonResponse(w, convs)
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.NewConversation(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonResponse(w, conv)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conv == nil {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, conv)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConversation(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.ListMessages(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	jsonResponse(w, msgs)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.ListActivity(r.PathValue("id"), 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []store.ActivityLog{}
	}
	jsonResponse(w, logs)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := s.chat.Send(r.Context(), r.PathValue("id"), body.Message)
	if err != nil {
		if msg != nil {
			// The turn failed but a failed message was persisted.
			jsonResponse(w, msg)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonResponse(w, msg)
}

// postChatStream runs a turn and streams visible output as server-sent
// events: one data frame per fragment, then a final [DONE] frame.
func (s *Server) postChatStream(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	msg, err := s.chat.SendStream(r.Context(), r.PathValue("id"), body.Message, func(f llm.Fragment) {
		writeFrame(f)
	})
	if err != nil {
		writeFrame(map[string]string{"error": err.Error()})
	} else {
		writeFrame(map[string]any{"message": msg})
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

type promptRequest struct {
	CrewID   string `json:"crew_id"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Prompt   string `json:"prompt"`
	Status   string `json:"status"`
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.ListPrompts(r.URL.Query().Get("crew_id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, map[string]any{
			"id":          p.ID,
			"crew_id":     p.CrewID,
			"name":        p.Name,
			"schedule":    p.Schedule,
			"description": schedule.Describe(p.Schedule),
			"prompt":      p.Prompt,
			"status":      p.Status,
			"next_run_at": p.NextRunAt,
			"last_run_at": p.LastRunAt,
			"last_status": p.LastStatus,
			"last_error":  p.LastError,
		})
	}
	jsonResponse(w, out)
}

func (s *Server) createPrompt(w http.ResponseWriter, r *http.Request) {
	var body promptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.CrewID == "" || body.Name == "" || body.Prompt == "" {
		jsonError(w, "crew_id, name and prompt are required", http.StatusBadRequest)
		return
	}

	crew, err := s.store.GetCrew(body.CrewID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if crew == nil {
		jsonError(w, "crew not found", http.StatusNotFound)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := &store.ScheduledPrompt{
		ID:        uuid.NewString(),
		CrewID:    body.CrewID,
		Name:      body.Name,
		Schedule:  normalized,
		Prompt:    body.Prompt,
		Status:    "active",
		NextRunAt: schedule.NextRunFrom(normalized, time.Now()),
	}
	if err := s.store.SavePrompt(p); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, p)
}

func (s *Server) updatePrompt(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPrompt(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if p == nil {
		jsonError(w, "prompt not found", http.StatusNotFound)
		return
	}

	var body promptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != "" {
		p.Name = body.Name
	}
	if body.Prompt != "" {
		p.Prompt = body.Prompt
	}
	if body.Status != "" {
		p.Status = body.Status
	}
	if body.Schedule != "" {
		normalized, err := schedule.Normalize(body.Schedule)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.Schedule = normalized
		p.NextRunAt = schedule.NextRunFrom(normalized, time.Now())
	}

	if err := s.store.SavePrompt(p); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, p)
}

func (s *Server) deletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePrompt(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	crews, _ := s.store.ListCrews()

	status := map[string]any{
		"version":    s.version,
		"uptime":     formatUptime(time.Since(s.startedAt)),
		"crews":      len(crews),
		"goroutines": runtime.NumGoroutine(),
	}
	if s.bus != nil {
		status["nats_url"] = s.bus.ClientURL()
	}
	jsonResponse(w, status)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
