// Package llm provides a provider-agnostic gateway for chat model calls.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn sent to or received from a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options control a single gateway call. Zero values fall back to the
// provider's configured defaults.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Usage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Completion is the result of a blocking gateway call.
type Completion struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Fragment is one chunk of a streamed completion. The fragment with
// Final set is authoritative: no content follows it, and Err (if any)
// describes why the stream ended early.
type Fragment struct {
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Err       error  `json:"-"`
	Final     bool   `json:"final,omitempty"`
}

// Client is the model gateway. Implementations wrap one provider SDK.
type Client interface {
	// Complete performs a blocking chat call and returns the full completion.
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)

	// Stream performs a chat call and delivers the completion incrementally.
	// The returned channel is closed after a Final fragment has been sent.
	Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment
}
