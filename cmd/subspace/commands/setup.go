package commands

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/subspace-cli/subspace/internal/config"
	"github.com/subspace-cli/subspace/internal/integration"
	"github.com/subspace-cli/subspace/internal/logging"
	"github.com/subspace-cli/subspace/internal/output"
)

func newSetupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Install subspace instructions into the codex AGENTS.md",
		Long: `Append a section describing subspace to ~/.codex/AGENTS.md (or
$CODEX_HOME/AGENTS.md) so codex recognises @agent-<name> and /command
references. Running setup again is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			_, lookErr := exec.LookPath(a.cfg.CodexBin)
			if lookErr != nil {
				fmt.Fprintf(errOut, "Warning: %q not found in PATH\n", a.cfg.CodexBin)
				fmt.Fprintln(errOut, "Install it from: https://github.com/openai/codex")
				fmt.Fprintln(errOut)
			}

			path := config.GetPaths().AgentsFile()
			installed, err := integration.Install(path)
			if err != nil {
				return err
			}
			if !installed {
				fmt.Fprintf(out, "Subspace integration already installed in %s\n", path)
				fmt.Fprintf(out, "To reinstall, first remove the %q section.\n", integration.Marker)
				return nil
			}

			logging.Info().Str("path", path).Msg("integration installed")
			fmt.Fprintf(out, "Subspace integration installed to %s\n\n", path)
			fmt.Fprintln(out, "Try these commands:")
			fmt.Fprintln(out, "  subspace subagent list            # See available agents")
			fmt.Fprintln(out, "  subspace subagent show tdd-agent  # Show agent details")
			if lookErr != nil {
				fmt.Fprintln(out, "\nNote: install the codex CLI to use 'subspace subagent run'")
				return exitWith(output.ExitError)
			}
			return nil
		},
	}
}
