package tools

import (
	"context"
	"fmt"

	"github.com/example/conference-concierge/internal/providers/llm"
	"github.com/example/conference-concierge/internal/rag"
)

// RAGSearchTool searches the session's indexed schedule semantically.
type RAGSearchTool struct {
	Index *rag.Index
}

func (t *RAGSearchTool) Name() string { return "rag_search" }

func (t *RAGSearchTool) Declaration() llm.ToolDecl {
	return llm.ToolDecl{
		Name: t.Name(),
		Description: "Semantic search over the user's uploaded conference schedule. " +
			"Use this to find talks/sessions by topic, track, or keyword. " +
			"Returns matching sessions with title, room, time, and excerpt.",
		Parameters: &llm.Schema{
			Type: "object",
			Properties: map[string]*llm.Schema{
				"query": {Type: "string", Description: "Search query (e.g. 'RAG', 'machine learning', 'keynote') to find relevant sessions in the schedule."},
			},
			Required: []string{"query"},
		},
	}
}

func (t *RAGSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	sessionID := stringArg(args, SessionIDArg)
	if sessionID == "" {
		return "", fmt.Errorf("no session context")
	}
	query := stringArg(args, "query")
	if query == "" {
		return "", fmt.Errorf("missing query")
	}
	return t.Index.Search(ctx, sessionID, query)
}
