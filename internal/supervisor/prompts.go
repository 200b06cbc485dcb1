package supervisor

import (
	"fmt"
	"strings"
)

const answerMarker = "ACTION: ANSWER_DIRECTLY"

const analyzeSystemPrompt = `You are a Supervisor AI responsible for analyzing user inputs and deciding how to respond.

Based on the user's input, decide if:
1. You can answer directly (for simple questions, greetings, etc.) - respond with ACTION: ANSWER_DIRECTLY
2. You need to create a plan involving multiple agents - respond with ACTION: CREATE_PLAN

Only output your decision without explanation.`

const directAnswerSystemPrompt = `You are a helpful AI assistant. Answer the user's question directly and concisely.
If you don't know the answer, say so rather than making something up.`

const combineSystemPrompt = `You are a Supervisor AI that combines results from multiple agents into a coherent response.
Review the original user request and the outputs from each agent, then create a comprehensive response that answers the user's query.
Your response should be well-structured, concise, and directly address what the user asked.`

// apologyMessage is the visible turn produced when the gateway stays down.
const apologyMessage = "I apologize, but I encountered an issue processing your request. Please try again later."

func planSystemPrompt(agentNames []string) string {
	return fmt.Sprintf(`You are a planning AI that creates execution plans for a team of specialized agents.

Available agents: %s

Based on the user's request, create a step-by-step plan where each step is assigned to a specific agent.
Return the plan as a JSON object with the following structure:
`+"```json"+`
{
    "goal": "The overall goal to achieve",
    "steps": [
        {
            "step": 1,
            "agent": "<agent_name>",
            "task": "<detailed task description>"
        }
    ]
}
`+"```"+`

ONLY return the JSON, no explanation or other text.`, strings.Join(agentNames, ", "))
}

func agentSystemPrompt(spec AgentSpec) string {
	var b strings.Builder
	if spec.Persona != "" {
		b.WriteString(spec.Persona)
	} else {
		fmt.Fprintf(&b, "You are %s, an AI agent. Complete the assigned task to the best of your abilities.", spec.Name)
	}
	if spec.Role != "" {
		fmt.Fprintf(&b, "\n\nYour role: %s", spec.Role)
	}
	if spec.Capabilities != "" {
		fmt.Fprintf(&b, "\n\n%s", spec.Capabilities)
	}
	return b.String()
}

func combineUserPrompt(input, goal string, results []agentResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original user request: %s\n\n", input)

	if goal == "" {
		goal = "No specific goal"
	}
	fmt.Fprintf(&b, "Plan goal: %s\n\n", goal)

	b.WriteString("Agent results:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "Agent %s:\n%s\n\n", r.Agent, r.Response)
	}

	b.WriteString("Based on these results, provide a comprehensive response to the user's original request.")
	return b.String()
}
