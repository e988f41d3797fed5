package commands

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/subspace-cli/subspace/internal/config"
	"github.com/subspace-cli/subspace/internal/logging"
	"github.com/subspace-cli/subspace/internal/output"
	"github.com/subspace-cli/subspace/internal/resource"
	"github.com/subspace-cli/subspace/internal/runner"
	"github.com/subspace-cli/subspace/internal/sandbox"
)

// resolver returns a resolver for kind and the sources it should consult.
func (a *app) resolver(kind resource.Kind, override string) (*resource.Resolver, []resource.Source) {
	if override != "" {
		override = config.ExpandHome(override)
		if !filepath.IsAbs(override) {
			override = filepath.Join(a.workDir, override)
		}
	}

	r := resource.NewResolver(kind)
	sources := r.Sources(resource.Options{
		ProjectRoot: a.workDir,
		Home:        config.HomeDir(),
		Override:    override,
	})
	for _, s := range sources {
		logging.Debug().Str("kind", string(kind)).Str("source", s.Name).Str("dir", s.Dir).Int("priority", s.Priority).Msg("source")
	}
	return r, sources
}

// timeout returns the flag value in seconds, or the configured default.
func (a *app) timeout(seconds int) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return a.cfg.TimeoutDuration()
}

// prepare stages credentials once and builds the engine shared by every
// task of this invocation.
func (a *app) prepare() (string, *runner.Engine, error) {
	root := a.cfg.SandboxRoot(a.workDir)
	copied, err := sandbox.NewSyncer().Stage(config.GetPaths().CodexHome(), root)
	if err != nil {
		return "", nil, err
	}
	logging.Debug().Strs("files", copied).Str("codex_home", root).Msg("credentials staged")

	extra, err := a.cfg.ChildEnv(a.workDir)
	if err != nil {
		return "", nil, err
	}
	return root, runner.NewEngine(a.cfg, extra), nil
}

func parseFormat(s string, allowJSONL bool) (output.Format, error) {
	f, err := output.ParseFormat(s, allowJSONL)
	if err != nil {
		return "", &ExitError{Code: output.ExitInvalidInput, Err: err}
	}
	return f, nil
}

func newPrinter(cmd *cobra.Command, format output.Format) *output.Printer {
	return output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
}
