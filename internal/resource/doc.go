// Package resource discovers, resolves and loads agent and slash-command
// definitions.
//
// # Sources
//
// A Source is one candidate directory plus its precedence. Sources are built
// fresh on every call and consulted in increasing Priority order:
//
// Agents:
//
//  1. <project>/.claude/agents
//  2. <project>/.codex/agents
//  3. ~/.claude/agents
//  4. ~/.codex/agents
//  5. <plugin>/agents for each entry of ~/.claude/plugins/installed_plugins.json
//
// Commands:
//
//  1. <project>/.claude/commands
//  2. <project>/.codex/prompts
//  3. ~/.claude/commands
//  4. ~/.codex/prompts
//
// Missing directories are dropped. An explicit override directory replaces
// the whole list.
//
// # Resolution
//
// The first source containing a name wins. ListAll applies the same rule per
// name, so a project agent silently shadows a user agent of the same name.
// Commands support one level of namespacing: "git:commit" resolves to
// <source>/git/commit.md.
//
// # File Format
//
// Resource files are markdown with optional front-matter:
//
//	---
//	description: Writes failing tests first
//	model: o3
//	---
//	You are a TDD specialist...
//
// Front-matter values are flattened to strings. Headers that are not valid
// YAML fall back to a line-based "key: value" parser, so a description with
// an unquoted colon still loads.
package resource
