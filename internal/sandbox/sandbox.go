// Package sandbox stages the user's codex credentials into an isolated home
// directory for spawned subagents.
//
// Only a fixed set of files is copied, and only when they are regular files:
// a symlink planted in the source directory is never followed, so the spawned
// process cannot be tricked into reading or writing outside its sandbox.
package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/subspace-cli/subspace/internal/logging"
)

// WellKnownFiles are the files staged from the codex home.
var WellKnownFiles = []string{
	"config.toml", // model settings, preferences
	"auth.json",   // API credentials from `codex login`
}

// DefaultLockTimeout bounds how long Stage waits for a concurrent stager.
const DefaultLockTimeout = 10 * time.Second

// Syncer copies credential files between directories.
type Syncer struct {
	fs          afero.Fs
	lockTimeout time.Duration
}

// NewSyncer returns a Syncer over the OS filesystem.
func NewSyncer() *Syncer {
	return NewSyncerFs(afero.NewOsFs())
}

// NewSyncerFs returns a Syncer over fs. The cross-process staging lock is an
// flock and is only taken when fs is backed by the OS filesystem.
func NewSyncerFs(fs afero.Fs) *Syncer {
	return &Syncer{fs: fs, lockTimeout: DefaultLockTimeout}
}

// Stage copies the well-known files found directly under sourceHome into
// destRoot and returns the names copied. Missing files are skipped, symlinks
// are skipped with a warning, and per-file copy failures are logged and
// skipped. A stale copy whose source is gone or unsafe is removed so the
// destination always mirrors what is safe to take from the source.
func (s *Syncer) Stage(sourceHome, destRoot string) ([]string, error) {
	if err := s.fs.MkdirAll(destRoot, 0700); err != nil {
		return nil, fmt.Errorf("create sandbox %s: %w", destRoot, err)
	}

	if _, onDisk := s.fs.(*afero.OsFs); onDisk {
		lock := NewFileLock(filepath.Clean(destRoot))
		if err := lock.LockWithin(s.lockTimeout); err != nil {
			return nil, fmt.Errorf("lock sandbox %s: %w", destRoot, err)
		}
		defer lock.Unlock()
	}

	var copied []string
	for _, name := range WellKnownFiles {
		src := filepath.Join(sourceHome, name)
		dst := filepath.Join(destRoot, name)

		ok, err := s.copyIfSafe(src, dst)
		if err != nil {
			logging.Warn().Err(err).Str("file", src).Msg("failed to stage file")
			continue
		}
		if !ok {
			s.removeStale(dst)
			continue
		}
		logging.Debug().Str("file", name).Str("sandbox", destRoot).Msg("synced")
		copied = append(copied, name)
	}

	s.describeConfig(filepath.Join(destRoot, "config.toml"), copied)
	return copied, nil
}

// lstat reports file info without following a final symlink.
func (s *Syncer) lstat(path string) (os.FileInfo, error) {
	if lstater, ok := s.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		return info, err
	}
	return s.fs.Stat(path)
}

// copyIfSafe copies src to dst when src is a regular file. It reports false
// without error when src is missing, a symlink, or not a regular file.
func (s *Syncer) copyIfSafe(src, dst string) (bool, error) {
	info, err := s.lstat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		logging.Warn().Str("file", src).Msg("skipping symlink")
		return false, nil
	}
	if !info.Mode().IsRegular() {
		logging.Debug().Str("file", src).Msg("skipping non-regular file")
		return false, nil
	}

	if err := s.copyFile(src, dst, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// copyFile writes a temp file next to dst, then renames it into place.
func (s *Syncer) copyFile(src, dst string, perm os.FileMode) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmpPath := dst + ".tmp"
	out, err := s.fs.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	if err := s.fs.Chmod(tmpPath, perm); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	if err := s.fs.Rename(tmpPath, dst); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Syncer) removeStale(dst string) {
	if _, err := s.lstat(dst); err != nil {
		return
	}
	if err := s.fs.Remove(dst); err != nil {
		logging.Warn().Err(err).Str("file", dst).Msg("failed to remove stale sandbox file")
		return
	}
	logging.Debug().Str("file", dst).Msg("removed stale sandbox file")
}

// describeConfig logs the model of a staged config.toml. Decode problems are
// reported but never fail staging; codex itself is the authority.
func (s *Syncer) describeConfig(path string, copied []string) {
	staged := false
	for _, name := range copied {
		if name == "config.toml" {
			staged = true
		}
	}
	if !staged {
		return
	}

	var cfg struct {
		Model    string `toml:"model"`
		Provider string `toml:"model_provider"`
	}
	f, err := s.fs.Open(path)
	if err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("staged config.toml unreadable")
		return
	}
	defer f.Close()
	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("staged config.toml does not parse")
		return
	}
	logging.Debug().Str("model", cfg.Model).Str("provider", cfg.Provider).Msg("staged codex config")
}
