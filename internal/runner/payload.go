package runner

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// VanillaAgent is the agent name reported for runs without instructions.
const VanillaAgent = "codex"

const guidanceTemplate = `You ARE the %s agent executing a task. You are NOT a dispatcher.

CRITICAL CONSTRAINTS:
- Do NOT spawn subagents or call subspace
- Do NOT delegate to other agents
- Execute the task directly using your own capabilities
- If the task is outside your expertise, say so and stop

Your role: Follow the instructions below and complete the user's task directly.
`

// Guidance returns the block prepended to every agent's instructions.
func Guidance(agentName string) string {
	return fmt.Sprintf(guidanceTemplate, agentName)
}

// Payload is the JSON object written to the child's stdin.
type Payload struct {
	Instructions string   `json:"instructions,omitempty"`
	Task         string   `json:"task"`
	Metadata     Metadata `json:"metadata"`
}

// Metadata identifies the run.
type Metadata struct {
	AgentName string `json:"agentName"`
	StartedAt string `json:"startedAt"`
	RunID     string `json:"runId"`
}

// BuildPayload assembles the payload for req. Vanilla requests carry no
// instructions.
func BuildPayload(req Request, now time.Time) Payload {
	p := Payload{
		Task: req.Task,
		Metadata: Metadata{
			AgentName: req.AgentName(),
			StartedAt: now.UTC().Format(time.RFC3339),
			RunID:     ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		},
	}
	if !req.Vanilla() {
		p.Instructions = Guidance(req.AgentName()) + "\n---\n\n" + req.Record.Body
	}
	return p
}
