// Package parallel fans a batch of agent tasks out to concurrent codex
// processes and gathers every result. A failing task never cancels its
// siblings.
package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/subspace-cli/subspace/internal/event"
	"github.com/subspace-cli/subspace/internal/logging"
	"github.com/subspace-cli/subspace/internal/resource"
	"github.com/subspace-cli/subspace/internal/runner"
)

// Executor runs one request.
type Executor interface {
	Run(ctx context.Context, req runner.Request, onEvent func(json.RawMessage)) (*runner.Result, error)
}

// Task is one entry of a batch.
type Task struct {
	Name   string
	Task   string
	Record *resource.Record
	// Err is a resolution failure. The task is reported without spawning.
	Err error
}

// ID returns the task identity at position index.
func ID(name string, index int) string {
	return fmt.Sprintf("%s-%d", name, index)
}

// Options configures RunMany.
type Options struct {
	Timeout     time.Duration
	SandboxRoot string

	// OnEvent receives tagged events as they arrive. Nil disables streaming
	// and runs every task in text mode.
	OnEvent event.Handler

	// OnResult is called once per task as it finishes. Calls are serialised.
	OnResult func(*runner.Result)
}

// Summary aggregates a finished batch.
type Summary struct {
	// Results are in input order.
	Results []*runner.Result
	// Wall is the time from first launch to last completion.
	Wall time.Duration
	// TotalAgent is the sum of per-task elapsed times.
	TotalAgent time.Duration
}

// Failed reports whether any task failed or exited non-zero.
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Orchestrator runs batches.
type Orchestrator struct {
	exec Executor
}

// New creates an Orchestrator.
func New(exec Executor) *Orchestrator {
	return &Orchestrator{exec: exec}
}

// RunMany starts every task concurrently and waits for all of them.
func (o *Orchestrator) RunMany(ctx context.Context, tasks []Task, opts Options) (*Summary, error) {
	var bus *event.Bus
	if opts.OnEvent != nil {
		var err error
		bus, err = event.NewBus(opts.OnEvent)
		if err != nil {
			return nil, fmt.Errorf("start event bus: %w", err)
		}
		defer bus.Close()
	}

	logging.Debug().Int("tasks", len(tasks)).Bool("stream", bus != nil).Msg("running batch")

	results := make([]*runner.Result, len(tasks))
	var resultMu sync.Mutex
	var g errgroup.Group

	start := time.Now()
	for i, task := range tasks {
		id := ID(task.Name, i)
		g.Go(func() error {
			result := o.runOne(ctx, id, task, opts, bus)

			resultMu.Lock()
			defer resultMu.Unlock()
			results[i] = result
			if bus != nil {
				publish(bus, id, task.Name, completeEvent(result))
			}
			if opts.OnResult != nil {
				opts.OnResult(result)
			}
			// Failures are results; the group never short-circuits.
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Results: results, Wall: time.Since(start)}
	for _, r := range results {
		summary.TotalAgent += r.Elapsed
	}
	logging.Debug().Dur("wall", summary.Wall).Dur("total_agent", summary.TotalAgent).Msg("batch complete")
	return summary, nil
}

func (o *Orchestrator) runOne(ctx context.Context, id string, task Task, opts Options, bus *event.Bus) *runner.Result {
	log := logging.With().Str("agent_id", id).Logger()
	if task.Err != nil {
		log.Debug().Err(task.Err).Msg("not started")
		return &runner.Result{ID: id, Agent: task.Name, Failure: runner.FailureFromError(task.Err)}
	}

	var onEvent func(json.RawMessage)
	if bus != nil {
		onEvent = func(raw json.RawMessage) {
			if err := bus.Publish(event.Tagged{AgentID: id, AgentName: task.Name, Event: raw}); err != nil {
				log.Warn().Err(err).Msg("dropping event")
			}
		}
	}

	req := runner.Request{
		ID:          id,
		Name:        task.Name,
		Record:      task.Record,
		Task:        task.Task,
		Timeout:     opts.Timeout,
		SandboxRoot: opts.SandboxRoot,
	}
	result, err := o.exec.Run(ctx, req, onEvent)
	if err != nil {
		return &runner.Result{ID: id, Agent: task.Name, Failure: &runner.Failure{Kind: runner.FailureInvalid, Message: err.Error()}}
	}
	result.ID = id
	return result
}

// completeEvent is the synthetic event published when a task ends.
func completeEvent(r *runner.Result) map[string]any {
	var code, errMsg any
	if r.ExitCode != nil {
		code = *r.ExitCode
	}
	if r.Failure != nil {
		errMsg = r.Failure.Message
	}
	return map[string]any{
		"type":       "complete",
		"output":     r.Output,
		"elapsed":    r.ElapsedSeconds(),
		"returncode": code,
		"error":      errMsg,
	}
}

func publish(bus *event.Bus, id, name string, v any) {
	if err := bus.PublishEvent(id, name, v); err != nil {
		logging.Warn().Err(err).Str("agent_id", id).Msg("dropping event")
	}
}
