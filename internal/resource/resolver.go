package resource

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/subspace-cli/subspace/internal/logging"
)

// maxSuggestionDistance bounds the edit distance for "did you mean" hints.
const maxSuggestionDistance = 3

// Resolver discovers and loads resources of one kind. It holds no state
// besides the filesystem it reads; every call reflects the filesystem at
// call time.
type Resolver struct {
	kind Kind
	fs   afero.Fs
}

// NewResolver creates a resolver over the OS filesystem.
func NewResolver(kind Kind) *Resolver {
	return NewResolverFs(kind, afero.NewOsFs())
}

// NewResolverFs creates a resolver over the given filesystem.
func NewResolverFs(kind Kind, fs afero.Fs) *Resolver {
	return &Resolver{kind: kind, fs: fs}
}

// relPath maps a validated name onto its file path relative to a source.
func (r *Resolver) relPath(name string) string {
	if r.kind == KindCommand {
		if ns, base, ok := strings.Cut(name, ":"); ok {
			return filepath.Join(ns, base+".md")
		}
	}
	return name + ".md"
}

// Resolve finds the file for name, consulting sources in priority order.
// The first source containing the file wins.
func (r *Resolver) Resolve(name string, sources []Source) (string, Source, error) {
	clean, err := ValidateName(r.kind, name)
	if err != nil {
		return "", Source{}, err
	}

	rel := r.relPath(clean)
	for _, source := range sortedSources(sources) {
		candidate := filepath.Join(source.Dir, rel)
		info, err := r.fs.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			logging.Debug().Str("kind", string(r.kind)).Str("name", clean).Str("path", candidate).Msg("resolved")
			return candidate, source, nil
		}
	}

	logging.Debug().Str("kind", string(r.kind)).Str("name", clean).Msg("not found in any source")
	return "", Source{}, &NotFoundError{
		Kind:        r.kind,
		Name:        clean,
		Suggestions: r.suggest(clean, sources),
	}
}

// Find resolves name and loads the resulting record.
func (r *Resolver) Find(name string, sources []Source) (*Record, error) {
	p, source, err := r.Resolve(name, sources)
	if err != nil {
		return nil, err
	}
	return r.Load(p, source)
}

// entry is one eligible file discovered under a source.
type entry struct {
	name string
	path string
}

// entries enumerates eligible files of a single source, sorted by name.
func (r *Resolver) entries(source Source) []entry {
	if ok, _ := afero.IsDir(r.fs, source.Dir); !ok {
		return nil
	}

	pattern := "*.md"
	if r.kind == KindCommand {
		pattern = "{*.md,*/*.md}"
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(r.fs, source.Dir))
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		logging.Debug().Err(err).Str("dir", source.Dir).Msg("failed to enumerate source")
		return nil
	}

	var out []entry
	for _, match := range matches {
		name := strings.TrimSuffix(match, ".md")
		if dir, base := path.Split(name); dir != "" {
			name = strings.TrimSuffix(dir, "/") + ":" + base
		}
		// Skip files that could never be requested by name.
		if _, err := ValidateName(r.kind, name); err != nil {
			continue
		}
		out = append(out, entry{name: name, path: filepath.Join(source.Dir, filepath.FromSlash(match))})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ListAll returns one record per distinct name across all sources. When
// several sources provide the same name, the highest-priority source wins
// and the others are ignored.
func (r *Resolver) ListAll(sources []Source) ([]*Record, error) {
	seen := make(map[string]bool)
	var records []*Record

	for _, source := range sortedSources(sources) {
		for _, e := range r.entries(source) {
			if seen[e.name] {
				continue
			}
			seen[e.name] = true

			record, err := r.Load(e.path, source)
			if err != nil {
				logging.Warn().Err(err).Str("path", e.path).Msg("skipping unreadable resource")
				continue
			}
			records = append(records, record)
		}
	}
	return records, nil
}

// suggest returns names within a small edit distance of name.
func (r *Resolver) suggest(name string, sources []Source) []string {
	seen := make(map[string]bool)
	var suggestions []string
	for _, source := range sortedSources(sources) {
		for _, e := range r.entries(source) {
			if seen[e.name] {
				continue
			}
			seen[e.name] = true
			if levenshtein.ComputeDistance(name, e.name) <= maxSuggestionDistance {
				suggestions = append(suggestions, e.name)
			}
		}
	}
	return suggestions
}

func sortedSources(sources []Source) []Source {
	sorted := make([]Source, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return sorted
}
