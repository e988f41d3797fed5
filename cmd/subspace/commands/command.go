package commands

import (
	"github.com/spf13/cobra"

	"github.com/subspace-cli/subspace/internal/resource"
)

type commandFlags struct {
	output      string
	commandsDir string
}

func (f *commandFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "Output format: text, json")
	cmd.Flags().StringVar(&f.commandsDir, "commands-dir", "", "Only discover commands in this directory")
}

func newCommandCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command",
		Short: "Retrieve and inspect slash commands",
		Long: `Slash commands are markdown prompts. "command get" prints the prompt with
$1, $2, ... replaced by positional arguments and $@ by all of them, ready for
an agent to execute. Commands in a subdirectory are addressed as /dir:name.`,
	}
	cmd.AddCommand(newCommandGetCommand(a))
	cmd.AddCommand(newCommandListCommand(a))
	cmd.AddCommand(newCommandShowCommand(a))
	return cmd
}

func newCommandGetCommand(a *app) *cobra.Command {
	f := &commandFlags{}
	cmd := &cobra.Command{
		Use:   "get </name> [args...]",
		Short: "Print a command's prompt with arguments interpolated",
		Example: `  subspace command get /deploy backend production
  subspace command get -o json /git:commit`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, false)
			if err != nil {
				return err
			}
			record, err := a.findRecord(resource.KindCommand, args[0], f.commandsDir)
			if err != nil {
				return err
			}
			prompt := resource.Interpolate(record.Prompt(), args[1:])
			newPrinter(cmd, format).Prompt(record, args[1:], prompt)
			return nil
		},
	}
	f.register(cmd)
	// Everything after the command name is a prompt argument, even "--x".
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newCommandListCommand(a *app) *cobra.Command {
	f := &commandFlags{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available commands",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, false)
			if err != nil {
				return err
			}
			r, sources := a.resolver(resource.KindCommand, f.commandsDir)
			records, err := r.ListAll(sources)
			if err != nil {
				return err
			}
			newPrinter(cmd, format).Resources(resource.KindCommand, records)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newCommandShowCommand(a *app) *cobra.Command {
	f := &commandFlags{}
	cmd := &cobra.Command{
		Use:   "show </name>",
		Short: "Show a command's source, front-matter and prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(f.output, false)
			if err != nil {
				return err
			}
			record, err := a.findRecord(resource.KindCommand, args[0], f.commandsDir)
			if err != nil {
				return err
			}
			newPrinter(cmd, format).Details(resource.KindCommand, record)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
