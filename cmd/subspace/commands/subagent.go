package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/subspace-cli/subspace/internal/output"
	"github.com/subspace-cli/subspace/internal/parallel"
	"github.com/subspace-cli/subspace/internal/resource"
	"github.com/subspace-cli/subspace/internal/runner"
)

type subagentFlags struct {
	output    string
	timeout   int
	agentsDir string
}

func (f *subagentFlags) register(cmd *cobra.Command, formats string) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "Output format: "+formats)
	cmd.Flags().StringVar(&f.agentsDir, "agents-dir", "", "Only discover agents in this directory")
}

func newSubagentCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subagent",
		Aliases: []string{"agent"},
		Short:   "Run and inspect agents",
	}
	cmd.AddCommand(newSubagentRunCommand(a))
	cmd.AddCommand(newSubagentParallelCommand(a))
	cmd.AddCommand(newSubagentListCommand(a))
	cmd.AddCommand(newSubagentShowCommand(a))
	return cmd
}

func newSubagentRunCommand(a *app) *cobra.Command {
	f := &subagentFlags{}
	cmd := &cobra.Command{
		Use:   "run [agent] <task>",
		Short: "Run one agent, or plain codex when no agent is given",
		Example: `  subspace subagent run tdd-agent "Write tests for the auth module"
  subspace subagent run "Summarise the README"
  subspace subagent run coder "Add a --dry-run flag" -o jsonl | jq -r .type`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, true)
			if err != nil {
				return err
			}

			req := runner.Request{Task: args[len(args)-1], Timeout: a.timeout(f.timeout)}
			if len(args) == 2 {
				record, err := a.findRecord(resource.KindAgent, args[0], f.agentsDir)
				if err != nil {
					return err
				}
				req.Name, req.Record = record.Name, record
			}

			sandboxRoot, engine, err := a.prepare()
			if err != nil {
				return err
			}
			req.SandboxRoot = sandboxRoot

			p := newPrinter(cmd, format)
			var onEvent func(json.RawMessage)
			if format == output.FormatJSONL {
				onEvent = p.Event
			}

			result, err := engine.Run(cmd.Context(), req, onEvent)
			if err != nil {
				return &ExitError{Code: output.ExitInvalidInput, Err: err}
			}
			p.RunResult(req, result)
			return exitWith(output.RunExitCode(result))
		},
	}
	f.register(cmd, "text, json, jsonl")
	cmd.Flags().IntVarP(&f.timeout, "timeout", "t", 0, "Per-task timeout in seconds (default from config, 600)")
	return cmd
}

func newSubagentParallelCommand(a *app) *cobra.Command {
	f := &subagentFlags{}
	cmd := &cobra.Command{
		Use:   "parallel <agent:task>...",
		Short: "Run several agents concurrently",
		Example: `  subspace subagent parallel coder:"Implement the profile page" tdd-agent:"Write profile tests"
  subspace subagent parallel -o jsonl a:"one" b:"two" | jq -c '{agent_id, type: .event.type}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, true)
			if err != nil {
				return err
			}

			type pair struct{ name, task string }
			pairs := make([]pair, len(args))
			for i, arg := range args {
				name, task, err := parallel.ParsePair(arg)
				if err != nil {
					return err
				}
				pairs[i] = pair{name, task}
			}

			r, sources := a.resolver(resource.KindAgent, f.agentsDir)
			tasks := make([]parallel.Task, len(pairs))
			for i, p := range pairs {
				record, err := r.Find(p.name, sources)
				tasks[i] = parallel.Task{Name: p.name, Task: p.task, Record: record, Err: err}
			}

			sandboxRoot, engine, err := a.prepare()
			if err != nil {
				return err
			}

			p := newPrinter(cmd, format)
			opts := parallel.Options{
				Timeout:     a.timeout(f.timeout),
				SandboxRoot: sandboxRoot,
				OnResult:    p.TaskResult,
			}
			if format == output.FormatJSONL {
				opts.OnEvent = p.Tagged
			}

			summary, err := parallel.New(engine).RunMany(cmd.Context(), tasks, opts)
			if err != nil {
				return err
			}
			p.Summary(summary)

			if summary.Failed() {
				return exitWith(output.ExitError)
			}
			return nil
		},
	}
	f.register(cmd, "text, json, jsonl")
	cmd.Flags().IntVarP(&f.timeout, "timeout", "t", 0, "Per-task timeout in seconds (default from config, 600)")
	return cmd
}

func newSubagentListCommand(a *app) *cobra.Command {
	f := &subagentFlags{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available agents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, false)
			if err != nil {
				return err
			}
			r, sources := a.resolver(resource.KindAgent, f.agentsDir)
			records, err := r.ListAll(sources)
			if err != nil {
				return err
			}
			newPrinter(cmd, format).Resources(resource.KindAgent, records)
			return nil
		},
	}
	f.register(cmd, "text, json")
	return cmd
}

func newSubagentShowCommand(a *app) *cobra.Command {
	f := &subagentFlags{}
	cmd := &cobra.Command{
		Use:   "show <agent>",
		Short: "Show an agent's source, front-matter and instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, false)
			if err != nil {
				return err
			}
			record, err := a.findRecord(resource.KindAgent, args[0], f.agentsDir)
			if err != nil {
				return err
			}
			newPrinter(cmd, format).Details(resource.KindAgent, record)
			return nil
		},
	}
	f.register(cmd, "text, json")
	return cmd
}

// findRecord validates, resolves and loads one resource.
func (a *app) findRecord(kind resource.Kind, name, override string) (*resource.Record, error) {
	clean, err := resource.ValidateName(kind, name)
	if err != nil {
		return nil, err
	}
	r, sources := a.resolver(kind, override)
	return r.Find(clean, sources)
}
