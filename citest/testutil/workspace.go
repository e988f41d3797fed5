// Package testutil provides fixtures for the CLI test suites: an isolated
// project and home directory, resource files and a scripted stand-in for the
// codex binary.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/subspace-cli/subspace/cmd/subspace/commands"
)

// Workspace is a throwaway project and home directory.
type Workspace struct {
	Root    string
	Project string
	Home    string

	restore []func()
}

// NewWorkspace creates a workspace under root and points HOME and the
// subspace environment at it. Call Close to restore the environment.
func NewWorkspace(root string) (*Workspace, error) {
	w := &Workspace{
		Root:    root,
		Project: filepath.Join(root, "project"),
		Home:    filepath.Join(root, "home"),
	}
	for _, dir := range []string{w.Project, w.Home} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	w.setenv("HOME", w.Home)
	w.setenv("XDG_CONFIG_HOME", filepath.Join(w.Home, ".config"))
	for _, key := range []string{"CODEX_HOME", "SUBSPACE_CONFIG", "SUBSPACE_CODEX_BIN", "SUBSPACE_TIMEOUT", "SUBSPACE_LOG_LEVEL"} {
		w.unsetenv(key)
	}
	return w, nil
}

func (w *Workspace) setenv(key, value string) {
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	w.restore = append(w.restore, func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func (w *Workspace) unsetenv(key string) {
	old, had := os.LookupEnv(key)
	os.Unsetenv(key)
	w.restore = append(w.restore, func() {
		if had {
			os.Setenv(key, old)
		}
	})
}

// Close restores the environment.
func (w *Workspace) Close() {
	for i := len(w.restore) - 1; i >= 0; i-- {
		w.restore[i]()
	}
	w.restore = nil
}

// WriteFile writes content to a path relative to the workspace root.
func (w *Workspace) WriteFile(rel, content string) string {
	path := filepath.Join(w.Root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		panic(err)
	}
	return path
}

// ProjectAgent writes <project>/.claude/agents/<name>.md.
func (w *Workspace) ProjectAgent(name, description, body string) string {
	return w.WriteFile(filepath.Join("project", ".claude", "agents", name+".md"), resourceFile(description, body))
}

// UserAgent writes ~/.codex/agents/<name>.md.
func (w *Workspace) UserAgent(name, description, body string) string {
	return w.WriteFile(filepath.Join("home", ".codex", "agents", name+".md"), resourceFile(description, body))
}

// ProjectCommand writes <project>/.claude/commands/<name>.md. A name of the
// form "ns/name" creates a namespaced command.
func (w *Workspace) ProjectCommand(name, description, body string) string {
	return w.WriteFile(filepath.Join("project", ".claude", "commands", name+".md"), resourceFile(description, body))
}

// CodexCredentials writes config.toml and auth.json into ~/.codex.
func (w *Workspace) CodexCredentials() {
	w.WriteFile(filepath.Join("home", ".codex", "config.toml"), "model = \"o3\"\n")
	w.WriteFile(filepath.Join("home", ".codex", "auth.json"), `{"OPENAI_API_KEY":"sk-test"}`)
}

// SandboxDir is the default staging directory of the project.
func (w *Workspace) SandboxDir() string {
	return filepath.Join(w.Project, ".subspace", "codex-subagent")
}

func resourceFile(description, body string) string {
	if description == "" {
		return body
	}
	return fmt.Sprintf("---\ndescription: %s\n---\n%s", description, body)
}

// FakeCodexScript is a codex stand-in. It saves its stdin payload and
// environment into CODEX_HOME, then replies with one agent message per
// payload. A task containing "sleep:<seconds>" sleeps first; "exit:<code>"
// sets the exit status.
const FakeCodexScript = `#!/bin/sh
payload=$(cat)
printf '%s' "$payload" > "$CODEX_HOME/last-payload.json"
printf '%s' "$*" > "$CODEX_HOME/last-args"
task=$(printf '%s' "$payload" | sed -n 's/.*"task":"\([^"]*\)".*/\1/p')
agent=$(printf '%s' "$payload" | sed -n 's/.*"agentName":"\([^"]*\)".*/\1/p')
echo '{"type":"thread.started","thread_id":"fake"}'
case "$task" in
  *sleep:*) sleep "$(printf '%s' "$task" | sed -n 's/.*sleep:\([0-9.]*\).*/\1/p')" ;;
esac
echo '{"type":"item.completed","item":{"type":"agent_message","text":"'"$agent"' did: '"$task"'"}}'
echo '{"type":"turn.completed"}'
case "$task" in
  *exit:*) exit "$(printf '%s' "$task" | sed -n 's/.*exit:\([0-9]*\).*/\1/p')" ;;
esac
exit 0
`

// FakeCodex writes FakeCodexScript into the workspace and returns its path.
func (w *Workspace) FakeCodex() string {
	path := filepath.Join(w.Root, "bin", "codex")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(FakeCodexScript), 0755); err != nil {
		panic(err)
	}
	return path
}

// Result is the outcome of one CLI invocation.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// Lines splits stdout into non-empty lines.
func (r Result) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Run invokes the CLI in-process with the project as working directory.
func (w *Workspace) Run(args ...string) Result {
	var stdout, stderr bytes.Buffer
	full := append([]string{"--workdir", w.Project}, args...)
	code := commands.Execute(context.Background(), full, &stdout, &stderr)
	return Result{Code: code, Stdout: stdout.String(), Stderr: stderr.String()}
}
