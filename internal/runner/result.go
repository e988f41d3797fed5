package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/subspace-cli/subspace/internal/resource"
)

// FailureKind classifies why a task produced no exit code.
type FailureKind string

const (
	FailureNotFound  FailureKind = "not_found"
	FailureReadError FailureKind = "read_error"
	FailureSpawn     FailureKind = "spawn_error"
	FailureTimeout   FailureKind = "timeout"
	FailureCanceled  FailureKind = "canceled"
	FailureInvalid   FailureKind = "invalid_request"
)

// Failure is a terminal per-task error. It is data, not a Go error: a batch
// keeps running when one of its tasks fails.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string { return f.Message }

// FailureFromError maps a resolution error onto a Failure.
func FailureFromError(err error) *Failure {
	if errors.Is(err, resource.ErrNotFound) {
		return &Failure{Kind: FailureNotFound, Message: err.Error()}
	}
	return &Failure{Kind: FailureReadError, Message: err.Error()}
}

// Request describes one execution.
type Request struct {
	// ID tags streamed events. Defaults to Name.
	ID string
	// Name is the resource name. Empty means vanilla mode.
	Name string
	// Record holds the loaded agent. Nil means vanilla mode.
	Record *resource.Record
	// Task is the user's task text.
	Task string
	// Timeout bounds the subprocess lifetime.
	Timeout time.Duration
	// SandboxRoot is exported to the child as CODEX_HOME.
	SandboxRoot string
}

// Vanilla reports whether the request carries no agent instructions.
func (r Request) Vanilla() bool { return r.Record == nil }

// AgentName is the name reported in metadata and results.
func (r Request) AgentName() string {
	if r.Vanilla() || r.Name == "" {
		return VanillaAgent
	}
	return r.Name
}

func (r Request) validate() error {
	switch {
	case r.Task == "":
		return fmt.Errorf("invalid request: empty task")
	case r.Timeout <= 0:
		return fmt.Errorf("invalid request: timeout must be positive, got %s", r.Timeout)
	case r.SandboxRoot == "":
		return fmt.Errorf("invalid request: empty sandbox root")
	}
	return nil
}

// Result is the terminal outcome of one execution. Exactly one of ExitCode
// and Failure is set.
type Result struct {
	ID       string        `json:"id"`
	Agent    string        `json:"agent"`
	ExitCode *int          `json:"returncode"`
	Elapsed  time.Duration `json:"-"`
	Output   string        `json:"output"`
	Stderr   string        `json:"stderr,omitempty"`
	Failure  *Failure      `json:"error"`
}

// Failed reports whether the task failed to run or exited non-zero.
func (r *Result) Failed() bool {
	return r.Failure != nil || (r.ExitCode != nil && *r.ExitCode != 0)
}

// ElapsedSeconds is Elapsed as fractional seconds.
func (r *Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// CompletionEvent builds the trailer emitted after a single streamed run.
// Vanilla runs report a null agent.
func CompletionEvent(req Request, result *Result) map[string]any {
	var agent any
	if !req.Vanilla() {
		agent = req.AgentName()
	}
	var code any
	if result.ExitCode != nil {
		code = *result.ExitCode
	}
	return map[string]any{
		"type":       "complete",
		"agent":      agent,
		"elapsed":    result.ElapsedSeconds(),
		"returncode": code,
	}
}

func intPtr(v int) *int { return &v }
