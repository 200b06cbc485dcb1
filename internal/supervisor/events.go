package supervisor

// EventType labels an activity emitted while a run progresses.
type EventType string

const (
	EventPlanCreated   EventType = "plan_creation"
	EventTaskAssigned  EventType = "task_assignment"
	EventTaskCompleted EventType = "task_completion"
	EventAgentMessage  EventType = "agent_message"
	EventStatusChange  EventType = "status_change"
	EventError         EventType = "error"
)

// Event describes one observable activity of a run. Persistence and
// broadcasting are the emitter's concern, not the state machine's.
type Event struct {
	Type        EventType      `json:"type"`
	Agent       string         `json:"agent,omitempty"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
}

// Emitter receives activity events as they happen.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) {
	f(e)
}
