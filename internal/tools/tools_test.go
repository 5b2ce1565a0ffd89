package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-concierge/internal/providers/llm"
)

type fakeTool struct {
	name string
}

func (f *fakeTool) Name() string              { return f.name }
func (f *fakeTool) Declaration() llm.ToolDecl { return llm.ToolDecl{Name: f.name} }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "ok", nil
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "b"})
	r.Register(&fakeTool{name: "a"})
	r.Register(&fakeTool{name: "c"})

	decls := r.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "b", decls[0].Name)
	assert.Equal(t, "a", decls[1].Name)
	assert.Equal(t, "c", decls[2].Name)
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "a"})

	tool, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", tool.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func newSerperServer(t *testing.T, wantPath string, response map[string]any) (*httptest.Server, *SerperClient) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["q"])
		assert.Equal(t, "de", payload["gl"])
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	client := &SerperClient{APIKey: "test-key", BaseURL: srv.URL, Region: "de", HTTPClient: srv.Client()}
	return srv, client
}

func TestWebSearchTool(t *testing.T) {
	_, client := newSerperServer(t, "/search", map[string]any{
		"organic": []any{
			map[string]any{"title": "PyCon DE 2025", "link": "https://pycon.de"},
		},
	})
	tool := &WebSearchTool{Client: client}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "PyCon DE 2025"})
	require.NoError(t, err)
	assert.Contains(t, out, "PyCon DE 2025")
	assert.Contains(t, out, "pycon.de")
}

func TestWebSearchToolEmptyResults(t *testing.T) {
	_, client := newSerperServer(t, "/search", map[string]any{"organic": []any{}})
	tool := &WebSearchTool{Client: client}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "nothing"})
	require.NoError(t, err)
	assert.Contains(t, out, "message")
}

func TestWebSearchToolMissingQuery(t *testing.T) {
	tool := &WebSearchTool{Client: &SerperClient{APIKey: "k"}}
	_, err := tool.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestPlacesSearchTool(t *testing.T) {
	_, client := newSerperServer(t, "/places", map[string]any{
		"places": []any{
			map[string]any{"title": "Curry 36", "rating": 4.4},
		},
	})
	tool := &PlacesSearchTool{Client: client}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "lunch near bcc Berlin"})
	require.NoError(t, err)
	assert.Contains(t, out, "Curry 36")
}

func TestSerperErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	client := &SerperClient{APIKey: "bad", BaseURL: srv.URL, HTTPClient: srv.Client()}

	_, err := (&WebSearchTool{Client: client}).Execute(context.Background(), map[string]any{"query": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
