package cli_test

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resource discovery", func() {
	Describe("subagent list", func() {
		It("lists agents from every source with project agents first", func() {
			ws.ProjectAgent("reviewer", "Reviews diffs", "Review carefully.")
			ws.UserAgent("reviewer", "Shadowed copy", "Ignored.")
			ws.UserAgent("planner", "Plans work", "Plan it.")

			res := ws.Run("subagent", "list", "-o", "json")
			Expect(res.Code).To(Equal(0), res.Stderr)

			var list []map[string]any
			Expect(json.Unmarshal([]byte(res.Stdout), &list)).To(Succeed())
			Expect(list).To(HaveLen(2))

			byName := map[string]map[string]any{}
			for _, item := range list {
				byName[item["name"].(string)] = item
			}
			Expect(byName).To(HaveKey("reviewer"))
			Expect(byName["reviewer"]["description"]).To(Equal("Reviews diffs"))
			Expect(byName["reviewer"]["source_type"]).To(Equal("project"))
			Expect(byName["planner"]["source_type"]).To(Equal("user"))
		})

		It("reports an empty catalogue on stderr", func() {
			res := ws.Run("agent", "ls")
			Expect(res.Code).To(Equal(0))
			Expect(res.Stdout).To(BeEmpty())
			Expect(res.Stderr).To(ContainSubstring("No agents found"))
		})

		It("restricts discovery to --agents-dir", func() {
			ws.ProjectAgent("reviewer", "Reviews diffs", "Review.")
			ws.WriteFile("custom/solo.md", "---\ndescription: Only one\n---\nSolo.")

			res := ws.Run("subagent", "list", "--agents-dir", filepath.Join(ws.Root, "custom"))
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(res.Stdout).To(ContainSubstring("solo"))
			Expect(res.Stdout).NotTo(ContainSubstring("reviewer"))
		})

		It("resolves a relative --agents-dir against --workdir", func() {
			ws.ProjectAgent("reviewer", "Reviews diffs", "Review.")
			ws.WriteFile("project/custom/solo.md", "---\ndescription: Only one\n---\nSolo.")

			res := ws.Run("subagent", "list", "-o", "json", "--agents-dir", "custom")
			Expect(res.Code).To(Equal(0), res.Stderr)

			var list []map[string]any
			Expect(json.Unmarshal([]byte(res.Stdout), &list)).To(Succeed())
			Expect(list).To(HaveLen(1))
			Expect(list[0]["name"]).To(Equal("solo"))
			Expect(list[0]["path"]).To(Equal(filepath.Join(ws.Project, "custom", "solo.md")))
		})
	})

	Describe("subagent show", func() {
		It("prints front-matter and instructions", func() {
			ws.ProjectAgent("reviewer", "Reviews diffs", "Review carefully.\nThen summarise.")

			res := ws.Run("subagent", "show", "reviewer")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(res.Stdout).To(ContainSubstring("Reviews diffs"))
			Expect(res.Stdout).To(ContainSubstring("Review carefully."))
			Expect(res.Stdout).To(ContainSubstring("Then summarise."))
		})

		It("exits 6 for an unknown agent", func() {
			res := ws.Run("subagent", "show", "ghost")
			Expect(res.Code).To(Equal(6))
			Expect(res.Stderr).To(ContainSubstring("ghost"))
		})

		It("exits 5 for an invalid name", func() {
			res := ws.Run("subagent", "show", "../escape")
			Expect(res.Code).To(Equal(5))
		})
	})

	Describe("command get", func() {
		BeforeEach(func() {
			ws.ProjectCommand("deploy", "Deploy a service", "Deploy $1 to $2. Args: $@. Missing: $3.")
			ws.ProjectCommand("git/commit", "Commit staged work", "Write a commit message.")
		})

		It("interpolates positional arguments", func() {
			res := ws.Run("command", "get", "/deploy", "backend", "production")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(res.Stdout).To(ContainSubstring("Deploy backend to production. Args: backend production. Missing: $3."))
		})

		It("treats flag-like arguments after the name as prompt arguments", func() {
			res := ws.Run("command", "get", "/deploy", "--force", "staging")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(res.Stdout).To(ContainSubstring("Deploy --force to staging."))
		})

		It("resolves namespaced commands and emits json", func() {
			res := ws.Run("command", "get", "-o", "json", "/git:commit")
			Expect(res.Code).To(Equal(0), res.Stderr)

			var doc map[string]any
			Expect(json.Unmarshal([]byte(res.Stdout), &doc)).To(Succeed())
			Expect(doc["command"]).To(Equal("/git:commit"))
			Expect(doc["prompt"]).To(ContainSubstring("Write a commit message."))
			Expect(doc["args"]).To(BeEmpty())
		})

		It("lists commands with a leading slash", func() {
			res := ws.Run("command", "list")
			Expect(res.Code).To(Equal(0), res.Stderr)
			Expect(res.Stdout).To(ContainSubstring("/deploy"))
			Expect(res.Stdout).To(ContainSubstring("/git:commit"))
		})

		It("exits 6 for an unknown command", func() {
			res := ws.Run("command", "get", "/missing")
			Expect(res.Code).To(Equal(6))
		})

		It("rejects an unsupported output format", func() {
			res := ws.Run("command", "list", "-o", "jsonl")
			Expect(res.Code).To(Equal(5))
		})
	})

	Describe("setup", func() {
		It("installs the integration section once", func() {
			codex := ws.FakeCodex()
			agentsFile := filepath.Join(ws.Home, ".codex", "AGENTS.md")

			first := ws.Run("--codex-bin", codex, "setup")
			Expect(first.Code).To(Equal(0), first.Stderr)
			Expect(first.Stdout).To(ContainSubstring("installed to"))

			data, err := os.ReadFile(agentsFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("## Subspace Agent Tools"))

			second := ws.Run("--codex-bin", codex, "setup")
			Expect(second.Code).To(Equal(0), second.Stderr)
			Expect(second.Stdout).To(ContainSubstring("already installed"))

			again, err := os.ReadFile(agentsFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(data))
		})

		It("installs but exits 1 when codex is missing", func() {
			res := ws.Run("--codex-bin", filepath.Join(ws.Root, "bin", "missing-codex"), "setup")
			Expect(res.Code).To(Equal(1))
			Expect(res.Stderr).To(ContainSubstring("not found in PATH"))
			Expect(res.Stdout).To(ContainSubstring("install the codex CLI"))
			Expect(filepath.Join(ws.Home, ".codex", "AGENTS.md")).To(BeARegularFile())
		})
	})
})
