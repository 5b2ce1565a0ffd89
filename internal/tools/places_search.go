package tools

import (
	"context"
	"fmt"

	"github.com/example/conference-concierge/internal/providers/llm"
)

// PlacesSearchTool finds places, venues, or restaurants through Serper's
// places endpoint.
type PlacesSearchTool struct {
	Client *SerperClient
}

func (t *PlacesSearchTool) Name() string { return "google_places_search" }

func (t *PlacesSearchTool) Declaration() llm.ToolDecl {
	return llm.ToolDecl{
		Name:        t.Name(),
		Description: "Finds places, venues, or restaurants. Returns name, address, rating and review count.",
		Parameters: &llm.Schema{
			Type: "object",
			Properties: map[string]*llm.Schema{
				"query": {Type: "string", Description: "Search query for places, venues, or restaurants, optionally with a location hint."},
			},
			Required: []string{"query"},
		},
	}
}

func (t *PlacesSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query")
	if query == "" {
		return "", fmt.Errorf("missing query")
	}
	resp, err := t.Client.post(ctx, "/places", query)
	if err != nil {
		return "", err
	}
	return section(resp, "places", "No places returned.")
}
