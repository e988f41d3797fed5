package resource

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontMatter(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		frontMatter map[string]string
		body        string
	}{
		{
			name:        "simple",
			content:     "---\ndescription: Run tests\nmodel: o3\n---\nRun tests for $1",
			frontMatter: map[string]string{"description": "Run tests", "model": "o3"},
			body:        "Run tests for $1",
		},
		{
			name:        "no front-matter",
			content:     "Just a prompt\n---\nwith a rule",
			frontMatter: map[string]string{},
			body:        "Just a prompt\n---\nwith a rule",
		},
		{
			name:        "unterminated",
			content:     "---\ndescription: never closed\nBody",
			frontMatter: map[string]string{},
			body:        "---\ndescription: never closed\nBody",
		},
		{
			name:        "leading blank lines trimmed",
			content:     "---\nname: coder\n---\n\n\nBody line\n",
			frontMatter: map[string]string{"name": "coder"},
			body:        "Body line\n",
		},
		{
			name:        "unquoted colon falls back to flat parser",
			content:     "---\ndescription: Use when: the user asks for tests\ncolor: \"green\"\n---\nBody",
			frontMatter: map[string]string{"description": "Use when: the user asks for tests", "color": "green"},
			body:        "Body",
		},
		{
			name:        "yaml lists flattened",
			content:     "---\ntools: [Read, Grep]\nsubtask: true\n---\nBody",
			frontMatter: map[string]string{"tools": "Read, Grep", "subtask": "true"},
			body:        "Body",
		},
		{
			name:        "hash inside a plain value is kept",
			content:     "---\ndescription: Triage issue #42 quickly\n---\nBody",
			frontMatter: map[string]string{"description": "Triage issue #42 quickly"},
			body:        "Body",
		},
		{
			name:        "numbers keep their source text",
			content:     "---\nversion: 1.10\nmask: 0x1F\n---\nBody",
			frontMatter: map[string]string{"version": "1.10", "mask": "0x1F"},
			body:        "Body",
		},
		{
			name:        "null marker kept literally",
			content:     "---\ndescription: ~\n---\nBody",
			frontMatter: map[string]string{"description": "~"},
			body:        "Body",
		},
		{
			name:        "quoted value unquoted",
			content:     "---\ndescription: 'Review #7: auth'\n---\nBody",
			frontMatter: map[string]string{"description": "Review #7: auth"},
			body:        "Body",
		},
		{
			name:        "delimiter with trailing spaces",
			content:     "---  \ndescription: padded\n---   \nBody",
			frontMatter: map[string]string{"description": "padded"},
			body:        "Body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body := ParseFrontMatter(tt.content)
			assert.Equal(t, tt.frontMatter, fm)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/agents/coder.md", "---\ndescription: X\n---\nB")

	r := NewResolverFs(KindAgent, fs)
	record, err := r.Load("/agents/coder.md", Source{Name: "override", Dir: "/agents", Tier: TierOverride})
	require.NoError(t, err)

	assert.Equal(t, "coder", record.Name)
	assert.Equal(t, "X", record.Description())
	assert.Equal(t, "B", record.Body)
	assert.Equal(t, "/agents/coder.md", record.Path)
}

func TestLoad_DescriptionVerbatim(t *testing.T) {
	for _, desc := range []string{"Triage issue #42 quickly", "1.10", "0x1F", "~", "yes", "Use when: asked"} {
		t.Run(desc, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, "/agents/coder.md", "---\ndescription: "+desc+"\n---\nB")

			record, err := NewResolverFs(KindAgent, fs).Load("/agents/coder.md", Source{Dir: "/agents"})
			require.NoError(t, err)
			assert.Equal(t, desc, record.Description())
		})
	}
}

func TestLoad_ReadError(t *testing.T) {
	r := NewResolverFs(KindAgent, afero.NewMemMapFs())
	_, err := r.Load("/agents/missing.md", Source{Dir: "/agents"})

	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "/agents/missing.md", readErr.Path)
}

func TestLoad_CommandNamespaceName(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/cmds/git/commit.md", "Commit staged changes")

	r := NewResolverFs(KindCommand, fs)
	record, err := r.Load("/cmds/git/commit.md", Source{Dir: "/cmds"})
	require.NoError(t, err)
	assert.Equal(t, "git:commit", record.Name)
}

func TestRecord_Prompt(t *testing.T) {
	record := &Record{Body: "\n  Deploy now  \n\n"}
	assert.Equal(t, "Deploy now", record.Prompt())
}

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name string
		body string
		args []string
		want string
	}{
		{"positional", "Deploy $1 to $2", []string{"backend", "staging"}, "Deploy backend to staging"},
		{"no args leaves tokens", "Deploy $1 to $2", nil, "Deploy $1 to $2"},
		{"fewer args than tokens", "Deploy $1 to $2", []string{"backend"}, "Deploy backend to $2"},
		{"all args", "Run: $@", []string{"a", "b", "c"}, "Run: a b c"},
		{"repeated token", "$1 and $1", []string{"x"}, "x and x"},
		{"double digit", "$10 $1", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, "j a"},
		{"no rescan of inserted text", "$1 $2", []string{"$2", "two"}, "$2 two"},
		{"dollar without digits", "cost $ and $x", []string{"a"}, "cost $ and $x"},
		{"zero is not positional", "$0", []string{"a"}, "$0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.body, tt.args))
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []struct {
		kind Kind
		in   string
		want string
	}{
		{KindAgent, "tdd-agent", "tdd-agent"},
		{KindAgent, "Coder_2", "Coder_2"},
		{KindCommand, "/quick_tasks", "quick_tasks"},
		{KindCommand, "deploy", "deploy"},
		{KindCommand, "/git:commit", "git:commit"},
	}
	for _, tt := range valid {
		got, err := ValidateName(tt.kind, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	invalid := []struct {
		kind Kind
		in   string
	}{
		{KindAgent, ""},
		{KindAgent, "../../etc/passwd"},
		{KindAgent, "agent with spaces"},
		{KindAgent, "-dangerous"},
		{KindAgent, "/coder"},
		{KindAgent, "git:commit"},
		{KindCommand, "/"},
		{KindCommand, "//x"},
		{KindCommand, "a:b:c"},
		{KindCommand, "git:-rf"},
		{KindCommand, ":commit"},
	}
	for _, tt := range invalid {
		_, err := ValidateName(tt.kind, tt.in)
		var invalidErr *InvalidNameError
		assert.True(t, errors.As(err, &invalidErr), "%s %q should be rejected", tt.kind, tt.in)
	}
}
