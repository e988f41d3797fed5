// Package output renders results, listings and resource details as text,
// JSON or JSONL.
package output

import (
	"errors"
	"fmt"

	"github.com/subspace-cli/subspace/internal/parallel"
	"github.com/subspace-cli/subspace/internal/resource"
	"github.com/subspace-cli/subspace/internal/runner"
)

// Format defines the output format.
type Format string

const (
	// FormatText is human-readable output.
	FormatText Format = "text"
	// FormatJSON is a single JSON document written at the end.
	FormatJSON Format = "json"
	// FormatJSONL is streaming JSONL events.
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a format name. allowJSONL is false for commands that
// have nothing to stream.
func ParseFormat(s string, allowJSONL bool) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON:
		return f, nil
	case FormatJSONL:
		if allowJSONL {
			return f, nil
		}
	}
	if allowJSONL {
		return "", fmt.Errorf("invalid output format %q: must be text, json or jsonl", s)
	}
	return "", fmt.Errorf("invalid output format %q: must be text or json", s)
}

// ExitCode defines process exit codes.
type ExitCode int

const (
	// ExitSuccess indicates successful completion.
	ExitSuccess ExitCode = 0
	// ExitError indicates a general error or a failed task.
	ExitError ExitCode = 1
	// ExitTimeout indicates the subprocess was killed on timeout.
	ExitTimeout ExitCode = 2
	// ExitInvalidInput indicates a bad name, pair or flag.
	ExitInvalidInput ExitCode = 5
	// ExitNotFound indicates the named resource does not exist.
	ExitNotFound ExitCode = 6
)

// ExitCodeFor maps an error to an exit code.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}

	var invalid *resource.InvalidNameError
	var malformed *parallel.MalformedPairError
	var failure *runner.Failure
	switch {
	case errors.As(err, &invalid), errors.As(err, &malformed):
		return ExitInvalidInput
	case errors.Is(err, resource.ErrNotFound):
		return ExitNotFound
	case errors.As(err, &failure):
		switch failure.Kind {
		case runner.FailureTimeout:
			return ExitTimeout
		case runner.FailureNotFound:
			return ExitNotFound
		}
	}
	return ExitError
}

// RunExitCode is the exit code of a single run: the child's own code when it
// ran, otherwise the failure's code.
func RunExitCode(r *runner.Result) ExitCode {
	if r.Failure != nil {
		return ExitCodeFor(r.Failure)
	}
	if r.ExitCode != nil {
		return ExitCode(*r.ExitCode)
	}
	return ExitSuccess
}

// resultJSON is the JSON form of a runner.Result.
type resultJSON struct {
	ID         string  `json:"agent_id"`
	Agent      string  `json:"agent_name"`
	ReturnCode *int    `json:"returncode"`
	Elapsed    float64 `json:"elapsed"`
	Output     string  `json:"output"`
	Stderr     string  `json:"stderr,omitempty"`
	Error      *string `json:"error"`
	ErrorKind  string  `json:"error_kind,omitempty"`
}

func toResultJSON(r *runner.Result) resultJSON {
	out := resultJSON{
		ID:         r.ID,
		Agent:      r.Agent,
		ReturnCode: r.ExitCode,
		Elapsed:    r.ElapsedSeconds(),
		Output:     r.Output,
		Stderr:     r.Stderr,
	}
	if r.Failure != nil {
		msg := r.Failure.Message
		out.Error = &msg
		out.ErrorKind = string(r.Failure.Kind)
	}
	return out
}

// summaryJSON is the JSON form of a parallel.Summary.
type summaryJSON struct {
	Results        []resultJSON `json:"results"`
	WallTime       float64      `json:"wall_time"`
	TotalAgentTime float64      `json:"total_agent_time"`
	Failed         bool         `json:"failed"`
}

// resourceJSON is one entry of a listing.
type resourceJSON struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Source      string `json:"source"`
	SourceType  string `json:"source_type"`
	Description string `json:"description"`
}

// detailsJSON is the JSON form of `show`.
type detailsJSON struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Source      string            `json:"source"`
	SourceType  string            `json:"source_type"`
	FrontMatter map[string]string `json:"frontmatter"`
	Body        string            `json:"body"`
}

// promptJSON is the JSON form of `command get`.
type promptJSON struct {
	Command string   `json:"command"`
	Path    string   `json:"path"`
	Source  string   `json:"source"`
	Args    []string `json:"args"`
	Prompt  string   `json:"prompt"`
}
