// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Paths contains the standard paths subspace reads from.
type Paths struct {
	Config string // ~/.config/subspace
	Home   string // $HOME
}

// GetPaths returns the standard paths for subspace.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "subspace"),
		Home:   HomeDir(),
	}
}

// CodexHome returns the user's codex configuration directory. CODEX_HOME is
// honoured the same way the codex binary honours it.
func (p *Paths) CodexHome() string {
	if dir := os.Getenv("CODEX_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(p.Home, ".codex")
}

// AgentsFile returns the codex global instructions file patched by setup.
func (p *Paths) AgentsFile() string {
	return filepath.Join(p.CodexHome(), "AGENTS.md")
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return os.Getenv("HOME")
}

// ExpandHome expands a leading ~/ in path.
func ExpandHome(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(HomeDir(), ".config")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "subspace.json")
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".subspace", "subspace.json")
}
