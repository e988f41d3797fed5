package resource

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// frontMatterDelimiter opens and closes the front-matter block.
const frontMatterDelimiter = "---"

// Record is a loaded agent or command definition.
type Record struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Source      Source            `json:"-"`
	FrontMatter map[string]string `json:"frontmatter"`
	Body        string            `json:"body"`
}

// Description returns the front-matter description, if any.
func (r *Record) Description() string {
	return r.FrontMatter["description"]
}

// Prompt returns the body with surrounding whitespace removed.
func (r *Record) Prompt() string {
	return strings.TrimSpace(r.Body)
}

// Load reads a resource file and splits it into front-matter and body.
// Malformed front-matter is treated as absent; only read failures are errors.
func (r *Resolver) Load(path string, source Source) (*Record, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	frontMatter, body := ParseFrontMatter(string(data))
	return &Record{
		Name:        r.nameFor(path, source),
		Path:        path,
		Source:      source,
		FrontMatter: frontMatter,
		Body:        body,
	}, nil
}

// nameFor derives the record name from its path. Commands one directory
// below the source root get a "namespace:name" identifier.
func (r *Resolver) nameFor(path string, source Source) string {
	base := strings.TrimSuffix(filepath.Base(path), ".md")
	if r.kind != KindCommand {
		return base
	}
	rel, err := filepath.Rel(source.Dir, path)
	if err != nil {
		return base
	}
	if dir := filepath.Dir(rel); dir != "." && !strings.Contains(dir, string(filepath.Separator)) {
		return dir + ":" + base
	}
	return base
}

// ParseFrontMatter splits content into a flat key/value header and body.
// Without an opening delimiter on the first line, or without a matching
// closing delimiter, the whole content is body.
func ParseFrontMatter(content string) (map[string]string, string) {
	frontMatter := make(map[string]string)

	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelimiter {
		return frontMatter, content
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelimiter {
			closing = i
			break
		}
	}
	if closing < 0 {
		return frontMatter, content
	}

	header := strings.Join(lines[1:closing], "\n")
	if !decodeYAMLHeader(header, frontMatter) {
		decodeFlatHeader(header, frontMatter)
	}

	rest := lines[closing+1:]
	for len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
		rest = rest[1:]
	}
	return frontMatter, strings.Join(rest, "\n")
}

// decodeYAMLHeader decodes header as a YAML mapping into flat strings.
// Scalars keep their source text: numbers, nulls and booleans are not
// normalised, and a plain value that YAML would cut at " #" keeps the rest
// of its line. It reports false when the header is not a valid YAML mapping,
// which happens often with unquoted colons in descriptions.
func decodeYAMLHeader(header string, out map[string]string) bool {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(header), &doc); err != nil {
		return false
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return true
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return false
	}

	lines := headerLines(header)
	mapping := doc.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i].Value, mapping.Content[i+1]
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		text := flatten(value)
		if raw, ok := lines[key]; ok && value.Kind == yaml.ScalarNode && value.Style == 0 &&
			raw != text && strings.HasPrefix(raw, text) {
			text = raw
		}
		out[key] = text
	}
	return true
}

func flatten(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value
	case yaml.AliasNode:
		if n.Alias != nil {
			return flatten(n.Alias)
		}
		return n.Value
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, ", ")
	default:
		data, err := yaml.Marshal(n)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
}

// headerLines maps each "key: value" line to its value, split on the first
// colon and trimmed. Later lines win.
func headerLines(header string) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	return values
}

// decodeFlatHeader parses "key: value" lines, splitting on the first colon.
func decodeFlatHeader(header string, out map[string]string) {
	for key, value := range headerLines(header) {
		out[key] = strings.Trim(value, `"'`)
	}
}

var argToken = regexp.MustCompile(`\$(@|[0-9]+)`)

// Interpolate substitutes positional arguments into a command body.
// $1, $2, ... take the matching argument and $@ takes all arguments joined
// by a single space. Tokens with no matching argument are left as written,
// and with no arguments at all the body is returned untouched.
func Interpolate(body string, args []string) string {
	if len(args) == 0 {
		return body
	}
	return argToken.ReplaceAllStringFunc(body, func(token string) string {
		ref := token[1:]
		if ref == "@" {
			return strings.Join(args, " ")
		}
		n, err := strconv.Atoi(ref)
		if err != nil || n < 1 || n > len(args) {
			return token
		}
		return args[n-1]
	})
}
