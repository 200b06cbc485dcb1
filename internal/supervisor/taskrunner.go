package supervisor

import (
	"context"

	"github.com/crewdhq/crewd/internal/llm"
)

type taskResult struct {
	step  int
	agent string
	task  string
	text  string
	err   error
}

// runTask executes one plan step against the gateway. It runs in its own
// goroutine and reports back through the run's result channel; if the run is
// cancelled first, the result is dropped so partial work never surfaces.
func (r *Run) runTask(ctx context.Context, step int, spec AgentSpec, history []llm.Message, task string) {
	if turns := r.cfg.AgentContextTurns; len(history) > turns {
		history = history[len(history)-turns:]
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: agentSystemPrompt(spec)})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: task})

	opts := llm.Options{
		Model:       spec.Model,
		Temperature: spec.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
	if opts.Model == "" {
		opts.Model = r.cfg.Model
	}

	completion, err := r.cfg.Gateway.Complete(ctx, msgs, opts)

	select {
	case r.resultCh <- taskResult{step: step, agent: spec.Name, task: task, text: completion.Content, err: err}:
	case <-ctx.Done():
	}
}
