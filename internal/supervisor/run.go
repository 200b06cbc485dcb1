// Package supervisor implements the crew orchestration state machine: a
// supervisor model analyzes the user's input, either answers directly or
// plans work across specialized agents, tracks the agents as they execute,
// and combines their results into one visible reply.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/crewdhq/crewd/internal/llm"
	"github.com/crewdhq/crewd/internal/plan"
)

type AgentStatus string

const (
	StatusIdle     AgentStatus = "idle"
	StatusWorking  AgentStatus = "working"
	StatusComplete AgentStatus = "complete"
	StatusError    AgentStatus = "error"
)

// Action is the supervisor's decision after analyzing the input.
type Action int

const (
	ActionUndecided Action = iota
	ActionAnswerDirectly
	ActionCreatePlan
)

// ErrUnknownAgent marks a plan step addressed to an agent outside the crew.
// It is a configuration failure: the run terminates before any assignment.
var ErrUnknownAgent = errors.New("plan references unknown agent")

// AgentSpec describes one crew member available to the supervisor.
type AgentSpec struct {
	Name         string
	Role         string
	Persona      string // system prompt; a default persona is used when empty
	Capabilities string // optional tool listing appended to the persona
	Model        string
	Temperature  float32
}

type phase int

const (
	phaseAnalyze phase = iota
	phaseAnswer
	phasePlan
	phaseAssign
	phaseCheck
	phaseCombine
	phaseDone
)

const defaultAgentContextTurns = 5

// Config wires a run to its gateway, crew and observers.
type Config struct {
	Gateway llm.Client
	Agents  []AgentSpec
	History []llm.Message // prior conversation turns, oldest first
	Emitter Emitter

	// Model and Temperature are used for the supervisor's own calls
	// (analyze, plan, answer, combine). Agents use their own specs.
	Model       string
	Temperature float32
	MaxTokens   int

	// AgentContextTurns caps how much of an agent's own history is
	// replayed into each task call.
	AgentContextTurns int

	// OnFragment, when set, streams the visible turn (direct answer or
	// combined result) as it is generated. MessageID is stamped onto
	// every fragment.
	OnFragment func(llm.Fragment)
	MessageID  string

	Logger *slog.Logger
}

type agentState struct {
	spec    AgentSpec
	status  AgentStatus
	history []llm.Message
}

type agentResult struct {
	Agent    string
	Task     string
	Response string
}

// Run is one execution of the supervisor state machine over a single user
// input. It is not safe for concurrent use; drive it from one goroutine.
type Run struct {
	cfg   Config
	log   *slog.Logger
	input string

	phase    phase
	action   Action
	planNote string

	plan        *plan.Plan
	agents      map[string]*agentState
	dispatched  []bool
	done        []bool
	stepResults []*agentResult
	resultCh    chan taskResult
	pending     int

	transitions int
	output      string
	degraded    bool
	err         error
}

func New(cfg Config, input string) (*Run, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("input is empty")
	}
	if cfg.AgentContextTurns <= 0 {
		cfg.AgentContextTurns = defaultAgentContextTurns
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	agents := make(map[string]*agentState, len(cfg.Agents))
	for _, spec := range cfg.Agents {
		if spec.Name == "" {
			return nil, fmt.Errorf("agent with empty name")
		}
		if _, dup := agents[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate agent %q", spec.Name)
		}
		agents[spec.Name] = &agentState{spec: spec, status: StatusIdle}
	}

	return &Run{
		cfg:      cfg,
		log:      cfg.Logger,
		input:    input,
		phase:    phaseAnalyze,
		agents:   agents,
		resultCh: make(chan taskResult),
	}, nil
}

func (r *Run) Terminal() bool   { return r.phase == phaseDone }
func (r *Run) Output() string   { return r.output }
func (r *Run) Degraded() bool   { return r.degraded }
func (r *Run) Err() error       { return r.err }
func (r *Run) Action() Action   { return r.action }
func (r *Run) Plan() *plan.Plan { return r.plan }

// AgentStatuses reports the current status of every agent by name.
func (r *Run) AgentStatuses() map[string]AgentStatus {
	statuses := make(map[string]AgentStatus, len(r.agents))
	for name, st := range r.agents {
		statuses[name] = st.status
	}
	return statuses
}

// transitionLimit bounds the total number of transitions a run may take:
// analyze and plan, one assign/check pair per step, a final assignment scan
// and the combine call.
func (r *Run) transitionLimit() int {
	if r.plan == nil {
		return 4
	}
	return 4 + 2*len(r.plan.Steps)
}

// Execute drives the run to a terminal state and returns the visible output.
func (r *Run) Execute(ctx context.Context) (string, error) {
	for !r.Terminal() {
		if err := ctx.Err(); err != nil {
			r.fail(fmt.Errorf("run cancelled: %w", err))
			break
		}
		if r.transitions >= r.transitionLimit() {
			r.log.Error("run exceeded transition limit", "limit", r.transitionLimit())
			r.err = fmt.Errorf("run exceeded %d transitions", r.transitionLimit())
			r.output = apologyMessage
			r.degraded = true
			r.phase = phaseDone
			break
		}
		r.transitions++
		if err := r.Step(ctx); err != nil {
			break
		}
	}
	return r.output, r.err
}

// Step performs exactly one state transition. A non-nil error means the run
// hit a fatal condition and is now terminal.
func (r *Run) Step(ctx context.Context) error {
	switch r.phase {
	case phaseAnalyze:
		return r.stepAnalyze(ctx)
	case phasePlan:
		return r.stepPlan(ctx)
	case phaseAnswer:
		return r.stepAnswer(ctx)
	case phaseAssign:
		return r.stepAssign(ctx)
	case phaseCheck:
		return r.stepCheck(ctx)
	case phaseCombine:
		return r.stepCombine(ctx)
	default:
		return nil
	}
}

func (r *Run) stepAnalyze(ctx context.Context) error {
	// Without agents there is nothing to plan for.
	if len(r.agents) == 0 {
		r.action = ActionAnswerDirectly
		r.phase = phaseAnswer
		return nil
	}

	msgs := make([]llm.Message, 0, len(r.cfg.History)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: analyzeSystemPrompt})
	msgs = append(msgs, r.cfg.History...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: r.input})

	completion, err := r.cfg.Gateway.Complete(ctx, msgs, r.supervisorOpts())
	if err != nil {
		// Degrade to a direct answer; if the gateway stays down the
		// answer step produces the apology turn.
		r.log.Warn("analyze call failed, answering directly", "error", err)
		r.action = ActionAnswerDirectly
		r.phase = phaseAnswer
		return nil
	}

	if strings.Contains(strings.ToUpper(completion.Content), answerMarker) {
		r.action = ActionAnswerDirectly
		r.phase = phaseAnswer
	} else {
		r.action = ActionCreatePlan
		r.phase = phasePlan
	}
	return nil
}

func (r *Run) stepPlan(ctx context.Context) error {
	names := make([]string, 0, len(r.cfg.Agents))
	for _, spec := range r.cfg.Agents {
		names = append(names, spec.Name)
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: planSystemPrompt(names)},
		{Role: llm.RoleUser, Content: r.input},
	}

	completion, err := r.cfg.Gateway.Complete(ctx, msgs, r.supervisorOpts())
	if err != nil {
		r.log.Warn("plan call failed, answering directly", "error", err)
		r.action = ActionAnswerDirectly
		r.phase = phaseAnswer
		return nil
	}

	p, err := plan.Parse(completion.Content)
	if err != nil {
		r.log.Warn("plan did not parse, answering directly", "error", err)
		r.planNote = fmt.Sprintf("Failed to create a valid plan: %v", err)
		r.emit(Event{Type: EventError, Description: r.planNote})
		r.action = ActionAnswerDirectly
		r.phase = phaseAnswer
		return nil
	}

	known := make(map[string]bool, len(r.agents))
	for name := range r.agents {
		known[name] = true
	}
	if err := plan.Validate(p, known); err != nil {
		fatal := fmt.Errorf("%w: %v", ErrUnknownAgent, err)
		r.emit(Event{Type: EventError, Description: fatal.Error()})
		r.fail(fatal)
		return fatal
	}

	r.plan = p
	r.dispatched = make([]bool, len(p.Steps))
	r.done = make([]bool, len(p.Steps))
	r.stepResults = make([]*agentResult, len(p.Steps))
	r.emit(Event{
		Type:        EventPlanCreated,
		Description: fmt.Sprintf("Plan created with %d steps to achieve: %s", len(p.Steps), p.Goal),
		Details:     map[string]any{"goal": p.Goal, "steps": len(p.Steps)},
	})
	r.phase = phaseAssign
	return nil
}

func (r *Run) stepAnswer(ctx context.Context) error {
	msgs := make([]llm.Message, 0, len(r.cfg.History)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: directAnswerSystemPrompt})
	msgs = append(msgs, r.cfg.History...)
	if r.planNote != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: r.planNote})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: r.input})

	// Streaming consumers get the note as the first fragment so the live
	// view matches the stored message.
	if r.planNote != "" && r.cfg.OnFragment != nil {
		r.cfg.OnFragment(llm.Fragment{MessageID: r.cfg.MessageID, Content: r.planNote + "\n\n"})
	}

	answer, err := r.visibleCompletion(ctx, msgs)
	switch {
	case err != nil && answer != "":
		// Stream broke midway; keep what the user already saw.
		r.log.Warn("direct answer degraded", "error", err)
		r.output = answer
		r.degraded = true
	case err != nil:
		r.log.Error("direct answer failed", "error", err)
		r.emit(Event{Type: EventError, Description: fmt.Sprintf("Direct answer failed: %v", err)})
		r.output = apologyMessage
		r.degraded = true
	default:
		r.output = answer
	}

	if r.planNote != "" {
		r.output = r.planNote + "\n\n" + r.output
		r.degraded = true
	}

	r.emit(Event{Type: EventAgentMessage, Description: "Answered directly"})
	r.phase = phaseDone
	return nil
}

func (r *Run) stepAssign(ctx context.Context) error {
	for i, step := range r.plan.Steps {
		if r.dispatched[i] {
			continue
		}
		// One task at a time per agent; a later step for a busy agent
		// waits until the earlier one resolves.
		if r.agents[step.Agent].status == StatusWorking {
			continue
		}
		r.dispatch(ctx, i, step)
	}

	if r.pending == 0 && r.allDone() {
		r.phase = phaseCombine
		return nil
	}
	r.phase = phaseCheck
	return nil
}

func (r *Run) dispatch(ctx context.Context, index int, step plan.Step) {
	st := r.agents[step.Agent]
	r.dispatched[index] = true
	st.status = StatusWorking
	r.pending++

	r.emit(Event{
		Type:        EventTaskAssigned,
		Agent:       step.Agent,
		Description: fmt.Sprintf("Assigned task to %s: %s", step.Agent, truncate(step.Task, 120)),
		Details:     map[string]any{"step": step.Number, "task": step.Task},
	})

	// Snapshot the history: the goroutine must not share the slice the
	// state machine keeps appending to.
	go r.runTask(ctx, index, st.spec, slices.Clone(st.history), step.Task)
}

func (r *Run) stepCheck(ctx context.Context) error {
	if r.pending == 0 {
		r.phase = phaseAssign
		return nil
	}

	select {
	case <-ctx.Done():
		// In-flight task output is discarded, never surfaced partially.
		err := fmt.Errorf("run cancelled: %w", ctx.Err())
		r.fail(err)
		return err
	case res := <-r.resultCh:
		r.pending--
		r.done[res.step] = true
		st := r.agents[res.agent]
		st.history = append(st.history, llm.Message{Role: llm.RoleUser, Content: res.task})

		if res.err != nil {
			st.status = StatusError
			st.history = append(st.history, llm.Message{Role: llm.RoleAssistant, Content: "Error: " + res.err.Error()})
			r.degraded = true
			r.emit(Event{
				Type:        EventError,
				Agent:       res.agent,
				Description: fmt.Sprintf("%s encountered an error: %v", res.agent, res.err),
				Details:     map[string]any{"step": r.plan.Steps[res.step].Number},
			})
		} else {
			st.status = StatusComplete
			st.history = append(st.history, llm.Message{Role: llm.RoleAssistant, Content: res.text})
			r.stepResults[res.step] = &agentResult{Agent: res.agent, Task: res.task, Response: res.text}
			r.emit(Event{
				Type:        EventTaskCompleted,
				Agent:       res.agent,
				Description: fmt.Sprintf("%s completed task: %s", res.agent, truncate(res.task, 30)),
				Details:     map[string]any{"step": r.plan.Steps[res.step].Number},
			})
		}
	}

	r.phase = phaseAssign
	return nil
}

func (r *Run) stepCombine(ctx context.Context) error {
	// Results follow plan order so the synthesis prompt is deterministic.
	var results []agentResult
	for _, res := range r.stepResults {
		if res != nil {
			results = append(results, *res)
		}
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: combineSystemPrompt},
		{Role: llm.RoleUser, Content: combineUserPrompt(r.input, r.plan.Goal, results)},
	}

	combined, err := r.visibleCompletion(ctx, msgs)
	switch {
	case err != nil && combined != "":
		r.log.Warn("combine degraded", "error", err)
		r.output = combined
		r.degraded = true
	case err != nil:
		r.log.Error("combine failed", "error", err)
		r.emit(Event{Type: EventError, Description: fmt.Sprintf("Error combining results: %v", err)})
		r.output = fmt.Sprintf("Error combining results: %v", err)
		r.degraded = true
	default:
		r.output = combined
	}

	r.emit(Event{
		Type:        EventStatusChange,
		Description: fmt.Sprintf("Combined results from %d completed tasks", len(results)),
	})
	r.phase = phaseDone
	return nil
}

func (r *Run) allDone() bool {
	for _, d := range r.done {
		if !d {
			return false
		}
	}
	return true
}

func (r *Run) fail(err error) {
	r.err = err
	r.degraded = true
	r.phase = phaseDone
}

func (r *Run) emit(e Event) {
	if r.cfg.Emitter != nil {
		r.cfg.Emitter.Emit(e)
	}
}

func (r *Run) supervisorOpts() llm.Options {
	return llm.Options{
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
}

// visibleCompletion produces a user-visible turn, streaming fragments to the
// configured sink when one is present.
func (r *Run) visibleCompletion(ctx context.Context, msgs []llm.Message) (string, error) {
	if r.cfg.OnFragment == nil {
		completion, err := r.cfg.Gateway.Complete(ctx, msgs, r.supervisorOpts())
		return completion.Content, err
	}

	var b strings.Builder
	for fragment := range r.cfg.Gateway.Stream(ctx, msgs, r.supervisorOpts()) {
		if fragment.Content != "" {
			b.WriteString(fragment.Content)
			r.cfg.OnFragment(llm.Fragment{MessageID: r.cfg.MessageID, Content: fragment.Content})
		}
		if fragment.Err != nil {
			return b.String(), fragment.Err
		}
		if fragment.Final {
			break
		}
	}
	return b.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
