package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"

	"github.com/subspace-cli/subspace/internal/logging"
)

// Kind distinguishes agents from slash commands.
type Kind string

const (
	KindAgent   Kind = "agent"
	KindCommand Kind = "command"
)

// Tier is the precedence class of a source.
type Tier string

const (
	TierProject  Tier = "project"
	TierUser     Tier = "user"
	TierPlugin   Tier = "plugin"
	TierOverride Tier = "override"
)

// Source is one candidate directory for resolving resource names.
// Lower Priority wins.
type Source struct {
	Name     string `json:"name"`
	Dir      string `json:"path"`
	Tier     Tier   `json:"type"`
	Priority int    `json:"priority"`
}

// Options controls source construction.
type Options struct {
	// ProjectRoot is the directory searched for project-level sources.
	ProjectRoot string
	// Home is the user's home directory.
	Home string
	// Override, when non-empty, replaces every other source.
	Override string
}

// Plugin is one entry of the installed-plugins manifest.
type Plugin struct {
	Name string
	Path string
}

// PluginManifestPath returns the installed-plugins manifest location under home.
func PluginManifestPath(home string) string {
	return filepath.Join(home, ".claude", "plugins", "installed_plugins.json")
}

// Sources returns the ordered source list for the resolver's kind.
// Directories that do not exist are dropped.
func (r *Resolver) Sources(opts Options) []Source {
	if opts.Override != "" {
		return []Source{{
			Name:     "override",
			Dir:      expandHome(opts.Override, opts.Home),
			Tier:     TierOverride,
			Priority: 0,
		}}
	}

	type candidate struct {
		name string
		dir  string
		tier Tier
	}

	var candidates []candidate
	switch r.kind {
	case KindAgent:
		candidates = []candidate{
			{"claude_project", filepath.Join(opts.ProjectRoot, ".claude", "agents"), TierProject},
			{"codex_project", filepath.Join(opts.ProjectRoot, ".codex", "agents"), TierProject},
			{"claude_user", filepath.Join(opts.Home, ".claude", "agents"), TierUser},
			{"codex_user", filepath.Join(opts.Home, ".codex", "agents"), TierUser},
		}
		for _, plugin := range r.LoadPlugins(opts.Home) {
			candidates = append(candidates, candidate{
				name: "plugin:" + plugin.Name,
				dir:  filepath.Join(plugin.Path, "agents"),
				tier: TierPlugin,
			})
		}
	case KindCommand:
		candidates = []candidate{
			{"claude_project", filepath.Join(opts.ProjectRoot, ".claude", "commands"), TierProject},
			{"codex_project", filepath.Join(opts.ProjectRoot, ".codex", "prompts"), TierProject},
			{"claude_user", filepath.Join(opts.Home, ".claude", "commands"), TierUser},
			{"codex_user", filepath.Join(opts.Home, ".codex", "prompts"), TierUser},
		}
	}

	sources := make([]Source, 0, len(candidates))
	for _, c := range candidates {
		if ok, _ := afero.IsDir(r.fs, c.dir); !ok {
			continue
		}
		logging.Debug().Str("kind", string(r.kind)).Str("source", c.name).Str("dir", c.dir).Msg("found source")
		sources = append(sources, Source{
			Name:     c.name,
			Dir:      c.dir,
			Tier:     c.tier,
			Priority: len(sources),
		})
	}
	return sources
}

type pluginInstall struct {
	InstallPath string `json:"installPath"`
}

// LoadPlugins reads the installed-plugins manifest under home. Entries are
// returned in file order; the first installation of each plugin is used.
// A missing or malformed manifest yields no plugins.
func (r *Resolver) LoadPlugins(home string) []Plugin {
	path := PluginManifestPath(home)
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil
	}

	plugins, err := parsePluginManifest(jsonc.ToJSON(data))
	if err != nil {
		logging.Debug().Err(err).Str("path", path).Msg("failed to parse plugins file")
		return nil
	}
	return plugins
}

// parsePluginManifest walks the "plugins" object with a token decoder so that
// manifest order survives.
func parsePluginManifest(data []byte) ([]Plugin, error) {
	var top struct {
		Plugins json.RawMessage `json:"plugins"`
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	if len(top.Plugins) == 0 || string(top.Plugins) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(top.Plugins))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("plugins: expected object, got %v", tok)
	}

	var plugins []Plugin
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var installs []pluginInstall
		if err := dec.Decode(&installs); err != nil {
			return nil, fmt.Errorf("plugins[%s]: %w", key, err)
		}
		if len(installs) == 0 || installs[0].InstallPath == "" {
			continue
		}

		name, _, _ := strings.Cut(key, "@")
		plugins = append(plugins, Plugin{Name: name, Path: installs[0].InstallPath})
	}
	return plugins, nil
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
