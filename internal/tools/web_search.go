package tools

import (
	"context"
	"fmt"

	"github.com/example/conference-concierge/internal/providers/llm"
)

// WebSearchTool searches the web through Serper's search endpoint.
type WebSearchTool struct {
	Client *SerperClient
}

func (t *WebSearchTool) Name() string { return "google_web_search" }

func (t *WebSearchTool) Declaration() llm.ToolDecl {
	return llm.ToolDecl{
		Name:        t.Name(),
		Description: "Searches for information on the web. Returns organic results with title, url and snippet.",
		Parameters: &llm.Schema{
			Type: "object",
			Properties: map[string]*llm.Schema{
				"query": {Type: "string", Description: "Search query for information on the web."},
			},
			Required: []string{"query"},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query")
	if query == "" {
		return "", fmt.Errorf("missing query")
	}
	resp, err := t.Client.post(ctx, "/search", query)
	if err != nil {
		return "", err
	}
	return section(resp, "organic", "No organic results returned.")
}
