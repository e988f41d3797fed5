package cli_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func decodeLines(lines []string) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		var m map[string]any
		ExpectWithOffset(1, json.Unmarshal([]byte(line), &m)).To(Succeed(), line)
		out = append(out, m)
	}
	return out
}

var _ = Describe("Running agents", func() {
	var codex string

	BeforeEach(func() {
		codex = ws.FakeCodex()
		ws.CodexCredentials()
		ws.ProjectAgent("reviewer", "Reviews diffs", "Review every change carefully.")
	})

	Describe("subagent run", func() {
		It("prints the agent's final message", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "reviewer", "check main.go")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(strings.TrimSpace(res.Stdout)).To(Equal("reviewer did: check main.go"))
		})

		It("sends instructions, task and metadata on stdin", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "reviewer", "check main.go")
			Expect(res.Code).To(Equal(0), res.Stderr)

			data, err := os.ReadFile(filepath.Join(ws.SandboxDir(), "last-payload.json"))
			Expect(err).NotTo(HaveOccurred())

			var payload map[string]any
			Expect(json.Unmarshal(data, &payload)).To(Succeed())
			Expect(payload["task"]).To(Equal("check main.go"))
			Expect(payload["instructions"]).To(ContainSubstring("Review every change carefully."))
			Expect(payload["instructions"]).To(ContainSubstring("Do NOT spawn subagents"))
			meta := payload["metadata"].(map[string]any)
			Expect(meta["agentName"]).To(Equal("reviewer"))
			Expect(meta["startedAt"]).NotTo(BeEmpty())

			args, err := os.ReadFile(filepath.Join(ws.SandboxDir(), "last-args"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(args)).To(Equal("exec --sandbox workspace-write --json"))
		})

		It("stages credentials into the sandbox", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "reviewer", "x")
			Expect(res.Code).To(Equal(0), res.Stderr)

			info, err := os.Stat(filepath.Join(ws.SandboxDir(), "auth.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0600)))
			Expect(filepath.Join(ws.SandboxDir(), "config.toml")).To(BeARegularFile())
		})

		It("runs plain codex without an agent", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "summarise")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(strings.TrimSpace(res.Stdout)).To(Equal("codex did: summarise"))

			data, err := os.ReadFile(filepath.Join(ws.SandboxDir(), "last-payload.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).NotTo(ContainSubstring(`"instructions"`))
		})

		It("streams raw events followed by a completion event", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "reviewer", "stream", "-o", "jsonl")
			Expect(res.Code).To(Equal(0), res.Stderr)

			events := decodeLines(res.Lines())
			Expect(events).To(HaveLen(4))
			Expect(events[0]["type"]).To(Equal("thread.started"))
			Expect(events[1]["type"]).To(Equal("item.completed"))
			last := events[3]
			Expect(last["type"]).To(Equal("complete"))
			Expect(last["agent"]).To(Equal("reviewer"))
			Expect(last["returncode"]).To(BeNumerically("==", 0))
			Expect(last).To(HaveKey("elapsed"))
		})

		It("propagates the child's exit code", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "reviewer", "exit:3")
			Expect(res.Code).To(Equal(3))
		})

		It("exits 2 when the task times out", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "reviewer", "sleep:5", "--timeout", "1")
			Expect(res.Code).To(Equal(2))
			Expect(res.Stderr).To(ContainSubstring("timeout"))
		})

		It("exits 6 for an unknown agent without spawning codex", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "run", "ghost", "task")
			Expect(res.Code).To(Equal(6))
			Expect(filepath.Join(ws.SandboxDir(), "last-payload.json")).NotTo(BeAnExistingFile())
		})

		It("reports a missing binary as an error", func() {
			res := ws.Run("--codex-bin", filepath.Join(ws.Root, "nope"), "subagent", "run", "reviewer", "task")
			Expect(res.Code).To(Equal(1))
		})
	})

	Describe("subagent parallel", func() {
		BeforeEach(func() {
			ws.ProjectAgent("planner", "Plans work", "Plan first.")
		})

		It("tags every event with its task id", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "parallel", "-o", "jsonl",
				"reviewer:one", "planner:two", "reviewer:three")
			Expect(res.Code).To(Equal(0), res.Stderr)

			events := decodeLines(res.Lines())
			perTask := map[string][]string{}
			for _, e := range events {
				id := e["agent_id"].(string)
				inner := e["event"].(map[string]any)
				perTask[id] = append(perTask[id], inner["type"].(string))
			}
			Expect(perTask).To(HaveKey("reviewer-0"))
			Expect(perTask).To(HaveKey("planner-1"))
			Expect(perTask).To(HaveKey("reviewer-2"))
			for id, types := range perTask {
				Expect(types[0]).To(Equal("thread.started"), id)
				Expect(types[len(types)-1]).To(Equal("complete"), id)
			}
		})

		It("prints a block per task and a summary in text mode", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "parallel", "reviewer:alpha", "planner:beta")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(res.Stdout).To(ContainSubstring("[reviewer-0]"))
			Expect(res.Stdout).To(ContainSubstring("reviewer did: alpha"))
			Expect(res.Stdout).To(ContainSubstring("[planner-1]"))
			Expect(res.Stdout).To(ContainSubstring("planner did: beta"))
			Expect(res.Stderr).To(ContainSubstring("All complete."))
		})

		It("keeps going when one agent is unknown", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "parallel", "-o", "json", "reviewer:fine", "ghost:lost")
			Expect(res.Code).To(Equal(1))

			var doc struct {
				Results []map[string]any `json:"results"`
				Failed  bool             `json:"failed"`
			}
			Expect(json.Unmarshal([]byte(res.Stdout), &doc)).To(Succeed())
			Expect(doc.Failed).To(BeTrue())
			Expect(doc.Results).To(HaveLen(2))

			byID := map[string]map[string]any{}
			for _, r := range doc.Results {
				byID[r["agent_id"].(string)] = r
			}
			Expect(byID["reviewer-0"]["output"]).To(Equal("reviewer did: fine"))
			Expect(byID["ghost-1"]["error_kind"]).To(Equal("not_found"))
		})

		It("rejects a malformed pair before running anything", func() {
			res := ws.Run("--codex-bin", codex, "subagent", "parallel", "reviewer:ok", "no-colon")
			Expect(res.Code).To(Equal(5))
			Expect(filepath.Join(ws.SandboxDir(), "last-payload.json")).NotTo(BeAnExistingFile())
		})
	})
})
