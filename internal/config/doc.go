// Package config provides configuration loading, merging, and path management for subspace.
//
// # Configuration Loading
//
// Load merges configuration from multiple sources in priority order:
//
//  1. Global config (~/.config/subspace/subspace.json[c], XDG compatible)
//  2. Project config (.subspace/subspace.json[c])
//  3. SUBSPACE_CONFIG file
//  4. Environment variables (SUBSPACE_CODEX_BIN, SUBSPACE_TIMEOUT, SUBSPACE_LOG_LEVEL)
//
// Files may be JSONC; comments and trailing commas are stripped with
// tidwall/jsonc. String values may contain {env:VAR} placeholders.
//
// Example:
//
//	{
//	  // pinned binary for this repository
//	  "codexBin": "{env:HOME}/.local/bin/codex",
//	  "timeout": 900,
//	  "envFile": ".subspace/codex.env"
//	}
//
// Command-line flags take precedence over everything loaded here; the
// command layer applies them after Load returns.
//
// # Child Environment
//
// EnvFile names a dotenv file (read with joho/godotenv) whose variables are
// appended to the environment of every spawned codex process.
package config
