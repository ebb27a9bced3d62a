package tool_searchfiles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/src/agent"
)

func execute(t *testing.T, fs afero.Fs, args map[string]any) SearchFilesOutput {
	t.Helper()
	tool, err := Tool(fs)
	require.NoError(t, err)
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	resp, err := tool.Execute(context.Background(), &agent.ToolCall{ID: "call-1", Name: Name, Arguments: raw})
	require.NoError(t, err)
	require.False(t, resp.IsError, "unexpected tool error: %s", resp.Content)
	var out SearchFilesOutput
	require.NoError(t, json.Unmarshal(resp.Content, &out))
	return out
}

func seedTree(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range []string{
		"/repo/main.go",
		"/repo/util.go",
		"/repo/README.md",
		"/repo/src/app/handler.ts",
		"/repo/src/app/deep/widget.ts",
		"/repo/src/notes.txt",
	} {
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0644))
	}
	return fs
}

func TestSearchFiles_BaseNameGlob(t *testing.T) {
	fs := seedTree(t)

	out := execute(t, fs, map[string]any{"pattern": "*.go", "path": "/repo"})
	assert.Equal(t, 2, out.Count)
	assert.ElementsMatch(t, []string{"/repo/main.go", "/repo/util.go"}, out.Files)
}

func TestSearchFiles_DoubleStarMatchesAnyDepth(t *testing.T) {
	fs := seedTree(t)

	out := execute(t, fs, map[string]any{"pattern": "**/*.ts", "path": "/repo"})
	assert.ElementsMatch(t, []string{"/repo/src/app/handler.ts", "/repo/src/app/deep/widget.ts"}, out.Files)
}

func TestSearchFiles_PrefixedDoubleStar(t *testing.T) {
	fs := seedTree(t)

	out := execute(t, fs, map[string]any{"pattern": "src/**/*.ts", "path": "/repo"})
	assert.ElementsMatch(t, []string{"/repo/src/app/handler.ts", "/repo/src/app/deep/widget.ts"}, out.Files)
}

func TestSearchFiles_MaxResultsTruncates(t *testing.T) {
	fs := seedTree(t)

	out := execute(t, fs, map[string]any{"pattern": "*", "path": "/repo", "max_results": 2})
	assert.Equal(t, 2, out.Count)
	assert.True(t, out.Truncated)
}

func TestSearchFiles_NoMatches(t *testing.T) {
	fs := seedTree(t)

	out := execute(t, fs, map[string]any{"pattern": "*.rs", "path": "/repo"})
	assert.Zero(t, out.Count)
	assert.False(t, out.Truncated)
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		base    string
		want    bool
	}{
		{"*.go", "main.go", "main.go", true},
		{"*.go", "src/main.go", "main.go", true},
		{"src/*.go", "src/main.go", "main.go", true},
		{"src/*.go", "src/deep/main.go", "main.go", false},
		{"**/*.go", "src/deep/main.go", "main.go", true},
		{"src/**/*.go", "src/deep/main.go", "main.go", true},
		{"src/**/*.go", "other/deep/main.go", "main.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchGlob(tt.pattern, tt.rel, tt.base), "pattern=%s rel=%s", tt.pattern, tt.rel)
	}
}
