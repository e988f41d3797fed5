// Package commands provides the CLI commands for subspace.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/subspace-cli/subspace/internal/config"
	"github.com/subspace-cli/subspace/internal/logging"
	"github.com/subspace-cli/subspace/internal/output"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// app holds global flags and state loaded before every subcommand.
type app struct {
	debug    bool
	logLevel string
	codexBin string
	workDir  string

	cfg *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "subspace",
		Short: "Run codex subagents and slash commands",
		Long: `subspace dispatches named agents and slash-command prompts to the codex CLI,
singly or in parallel, and streams back structured events.

Agents are markdown files discovered from .claude/agents and .codex/agents in
the project and home directory, and from installed Claude plugins. Commands are
discovered from .claude/commands and .codex/prompts.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Verbose diagnostics on stderr")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	root.PersistentFlags().StringVar(&a.codexBin, "codex-bin", "", "Path to the codex binary")
	root.PersistentFlags().StringVarP(&a.workDir, "workdir", "C", "", "Working directory (default: current directory)")

	root.SetVersionTemplate(fmt.Sprintf("subspace %s (%s)\n", Version, BuildTime))

	root.AddCommand(newSetupCommand(a))
	root.AddCommand(newSubagentCommand(a))
	root.AddCommand(newCommandCommand(a))
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return int(output.ExitSuccess)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.Err)
		}
		return int(exitErr.Code)
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return int(output.ExitCodeFor(err))
}

func (a *app) setup(cmd *cobra.Command) error {
	workDir, err := GetWorkDir(a.workDir)
	if err != nil {
		return err
	}
	a.workDir = workDir

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if a.codexBin != "" {
		cfg.CodexBin = a.codexBin
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	}
	if a.debug {
		logCfg = logging.DebugConfig()
	}
	logCfg.Output = cmd.ErrOrStderr()
	logging.Init(logCfg)

	logging.Debug().Str("workdir", workDir).Str("codex_bin", cfg.CodexBin).Int("timeout", cfg.Timeout).Msg("configuration loaded")
	return nil
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(config.ExpandHome(dir))
	}
	return os.Getwd()
}

// ExitError carries an exit code out of a RunE. A nil Err means the failure
// has already been reported.
type ExitError struct {
	Code output.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitWith returns nil for ExitSuccess so cobra reports success.
func exitWith(code output.ExitCode) error {
	if code == output.ExitSuccess {
		return nil
	}
	return &ExitError{Code: code}
}
