package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Defaults applied before any file is read.
const (
	DefaultCodexBin    = "codex"
	DefaultSandboxMode = "workspace-write"
	DefaultTimeout     = 600
	DefaultSandboxDir  = ".subspace/codex-subagent"
)

// Config is the merged subspace configuration.
type Config struct {
	// CodexBin is the external assistant binary.
	CodexBin string `json:"codexBin,omitempty"`
	// SandboxMode is passed to `codex exec --sandbox`.
	SandboxMode string `json:"sandboxMode,omitempty"`
	// Timeout is the per-task timeout in seconds.
	Timeout int `json:"timeout,omitempty"`
	// SandboxDir is the staging directory, relative to the working directory
	// unless absolute.
	SandboxDir string `json:"sandboxDir,omitempty"`
	// EnvFile is a dotenv file whose variables are added to the child
	// process environment.
	EnvFile string `json:"envFile,omitempty"`
	// LogLevel is the minimum log level (DEBUG, INFO, WARN, ERROR).
	LogLevel string `json:"logLevel,omitempty"`
}

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		CodexBin:    DefaultCodexBin,
		SandboxMode: DefaultSandboxMode,
		Timeout:     DefaultTimeout,
		SandboxDir:  DefaultSandboxDir,
	}
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/subspace/)
// 2. Project config (.subspace/)
// 3. SUBSPACE_CONFIG file
// 4. Environment variables
func Load(directory string) (*Config, error) {
	config := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path string) error {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return nil
		}
		if err := loadConfigFile(path, config); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("config %s: %w", path, err)
		}
		loaded[absPath] = true
		return nil
	}

	globalDir := GetPaths().Config
	candidates := []string{
		filepath.Join(globalDir, "subspace.json"),
		filepath.Join(globalDir, "subspace.jsonc"),
	}
	if directory != "" {
		projectDir := filepath.Join(directory, ".subspace")
		candidates = append(candidates,
			filepath.Join(projectDir, "subspace.json"),
			filepath.Join(projectDir, "subspace.jsonc"),
		)
	}
	if configPath := os.Getenv("SUBSPACE_CONFIG"); configPath != "" {
		candidates = append(candidates, ExpandHome(configPath))
	}

	for _, path := range candidates {
		if err := loadOnce(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments and trailing commas.
	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *Config) {
	if source.CodexBin != "" {
		target.CodexBin = source.CodexBin
	}
	if source.SandboxMode != "" {
		target.SandboxMode = source.SandboxMode
	}
	if source.Timeout > 0 {
		target.Timeout = source.Timeout
	}
	if source.SandboxDir != "" {
		target.SandboxDir = source.SandboxDir
	}
	if source.EnvFile != "" {
		target.EnvFile = source.EnvFile
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	if bin := os.Getenv("SUBSPACE_CODEX_BIN"); bin != "" {
		config.CodexBin = bin
	}
	if timeout := os.Getenv("SUBSPACE_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			config.Timeout = secs
		}
	}
	if level := os.Getenv("SUBSPACE_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

// TimeoutDuration returns the configured timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// SandboxRoot resolves SandboxDir against the working directory.
func (c *Config) SandboxRoot(workDir string) string {
	dir := ExpandHome(c.SandboxDir)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workDir, dir)
}

// ChildEnv reads EnvFile and returns its variables as KEY=VALUE pairs.
// A missing EnvFile setting yields no variables.
func (c *Config) ChildEnv(workDir string) ([]string, error) {
	if c.EnvFile == "" {
		return nil, nil
	}
	path := ExpandHome(c.EnvFile)
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env, nil
}
