// Package runner spawns the external codex process for one request, feeds it
// a JSON payload and collects or streams its JSONL output.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/subspace-cli/subspace/internal/config"
	"github.com/subspace-cli/subspace/internal/logging"
)

const (
	// CodexHomeEnv points the child at its sandbox home.
	CodexHomeEnv = "CODEX_HOME"

	// waitDelay bounds how long Wait lingers on pipes held open by
	// grandchildren after the child itself is gone.
	waitDelay = 2 * time.Second

	maxStderr = 64 * 1024
)

// Engine runs the codex binary.
type Engine struct {
	// Binary is the executable, resolved through PATH.
	Binary string
	// Args follow the binary on every invocation.
	Args []string
	// ExtraEnv is appended to the child environment.
	ExtraEnv []string
}

// NewEngine creates an Engine from configuration.
func NewEngine(cfg *config.Config, extraEnv []string) *Engine {
	bin := cfg.CodexBin
	if bin == "" {
		bin = config.DefaultCodexBin
	}
	mode := cfg.SandboxMode
	if mode == "" {
		mode = config.DefaultSandboxMode
	}
	return &Engine{
		Binary:   bin,
		Args:     []string{"exec", "--sandbox", mode, "--json"},
		ExtraEnv: extraEnv,
	}
}

// Run executes req. With a nil onEvent the run is in text mode: assistant
// messages are collected into Result.Output. Otherwise every stdout line is
// passed to onEvent as it arrives.
//
// Ordinary failures (spawn errors, timeouts, non-zero exits) are reported in
// the Result. Only an invalid request returns an error.
func (e *Engine) Run(ctx context.Context, req Request, onEvent func(json.RawMessage)) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = req.AgentName()
	}
	result := &Result{ID: id, Agent: req.AgentName()}

	payload, err := json.Marshal(BuildPayload(req, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.Binary, e.Args...)
	cmd.Env = childEnv(os.Environ(), req.SandboxRoot, e.ExtraEnv)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the whole group so helpers spawned by the child die too.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	var lines [][]byte
	stdout := &lineWriter{emit: func(line []byte) {
		if onEvent != nil {
			onEvent(Event(line))
			return
		}
		lines = append(lines, line)
	}}
	stderr := &tailBuffer{max: maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logging.Debug().
		Str("agent", result.Agent).
		Str("cmd", quoteArgv(append([]string{e.Binary}, e.Args...))).
		Str("codex_home", req.SandboxRoot).
		Int("payload_bytes", len(payload)).
		Msg("spawning")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.Elapsed = time.Since(start)
		result.Failure = &Failure{Kind: FailureSpawn, Message: fmt.Sprintf("failed to start %s: %v", e.Binary, err)}
		return result, nil
	}

	waitErr := cmd.Wait()
	stdout.Flush()
	result.Elapsed = time.Since(start)
	result.Stderr = stderr.String()

	if result.Stderr != "" {
		logging.Debug().Str("agent", result.Agent).Str("stderr", result.Stderr).Msg("child stderr")
	}

	if waitErr != nil && runCtx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			result.Failure = &Failure{Kind: FailureCanceled, Message: "canceled"}
		} else {
			result.Failure = &Failure{Kind: FailureTimeout, Message: fmt.Sprintf("timeout after %s", req.Timeout)}
		}
		logging.Debug().Str("agent", result.Agent).Str("kind", string(result.Failure.Kind)).Dur("elapsed", result.Elapsed).Msg("killed")
		return result, nil
	}

	result.ExitCode = intPtr(exitCode(cmd.ProcessState, waitErr))
	if onEvent == nil {
		result.Output = ExtractMessages(lines)
	}

	logging.Debug().Str("agent", result.Agent).Int("exit_code", *result.ExitCode).Dur("elapsed", result.Elapsed).Msg("completed")
	return result, nil
}

// exitCode derives a shell-style exit code. Signals map to 128+n.
func exitCode(state *os.ProcessState, waitErr error) int {
	if state == nil {
		if waitErr != nil {
			return 1
		}
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// childEnv returns base with CODEX_HOME replaced and extra appended.
func childEnv(base []string, codexHome string, extra []string) []string {
	env := make([]string, 0, len(base)+len(extra)+1)
	for _, kv := range base {
		if name, value, ok := strings.Cut(kv, "="); ok && name == CodexHomeEnv {
			logging.Debug().Str("previous", value).Msg("overriding existing CODEX_HOME")
			continue
		}
		env = append(env, kv)
	}
	env = append(env, extra...)
	return append(env, CodexHomeEnv+"="+codexHome)
}

func quoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
