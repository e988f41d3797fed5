// Package integration installs the subspace usage section into the codex
// AGENTS.md file so the assistant knows how to call subspace.
package integration

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/subspace-cli/subspace/internal/logging"
)

// Marker is the heading whose presence means the section is installed.
const Marker = "## Subspace Agent Tools"

//go:embed agents_section.md
var section string

// Install appends the section to the file at path unless it already contains
// Marker. It reports whether anything was written.
func Install(path string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.Contains(string(existing), Marker) {
		logging.Debug().Str("path", path).Msg("integration already installed")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	text := section
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		text = "\n" + text
	}
	if _, err := f.WriteString(text); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
