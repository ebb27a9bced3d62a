package tool_webfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/src/agent"
)

func execute(t *testing.T, client Doer, args map[string]any) (*agent.ToolResponse, error) {
	t.Helper()
	tool, err := ToolWithClient(client)
	require.NoError(t, err)
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return tool.Execute(context.Background(), &agent.ToolCall{ID: "call-1", Name: Name, Arguments: raw})
}

func TestWebFetch_MarkdownFromHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><h1>Title</h1><p>Some <strong>bold</strong> text.</p></body></html>"))
	}))
	defer srv.Close()

	resp, err := execute(t, srv.Client(), map[string]any{"url": srv.URL, "format": "markdown"})
	require.NoError(t, err)
	require.False(t, resp.IsError)

	var out WebFetchOutput
	require.NoError(t, json.Unmarshal(resp.Content, &out))
	assert.Contains(t, out.Content, "# Title")
	assert.Contains(t, out.Content, "**bold**")
	assert.Equal(t, http.StatusOK, out.StatusCode)
}

func TestWebFetch_TextStripsMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><script>var x=1;</script></head><body><p>visible</p></body></html>"))
	}))
	defer srv.Close()

	resp, err := execute(t, srv.Client(), map[string]any{"url": srv.URL, "format": "text"})
	require.NoError(t, err)

	var out WebFetchOutput
	require.NoError(t, json.Unmarshal(resp.Content, &out))
	assert.Equal(t, "visible", out.Content)
}

func TestWebFetch_JSONWrappedInCodeBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := execute(t, srv.Client(), map[string]any{"url": srv.URL, "format": "markdown"})
	require.NoError(t, err)

	var out WebFetchOutput
	require.NoError(t, json.Unmarshal(resp.Content, &out))
	assert.Equal(t, "```json\n{\"ok\":true}\n```", out.Content)
}

func TestWebFetch_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := execute(t, srv.Client(), map[string]any{"url": srv.URL, "format": "text"})
	require.Error(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, string(resp.Content), "404")
}

func TestWebFetch_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"bad scheme", map[string]any{"url": "ftp://host/file", "format": "text"}, "http"},
		{"bad format", map[string]any{"url": "http://example.com", "format": "pdf"}, "format"},
		{"missing url", map[string]any{"format": "text"}, "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := execute(t, http.DefaultClient, tt.args)
			require.True(t, resp.IsError)
			assert.Contains(t, string(resp.Content), tt.want)
		})
	}
}

func TestWebFetch_CancellationPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	tool, err := ToolWithClient(srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw, _ := json.Marshal(map[string]any{"url": srv.URL, "format": "text"})
	resp, err := tool.Execute(ctx, &agent.ToolCall{ID: "call-1", Name: Name, Arguments: raw})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, resp.IsError)
}
