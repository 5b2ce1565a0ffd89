package tools

import (
	"context"
	"fmt"

	"github.com/example/conference-concierge/internal/providers/llm"
	"github.com/example/conference-concierge/internal/rag"
)

// ScheduleOverviewTool returns the full schedule overview for the session's
// uploaded conference.
type ScheduleOverviewTool struct {
	Index *rag.Index
}

func (t *ScheduleOverviewTool) Name() string { return "get_schedule_overview" }

func (t *ScheduleOverviewTool) Declaration() llm.ToolDecl {
	return llm.ToolDecl{
		Name: t.Name(),
		Description: "Retrieve the full schedule overview for the user's uploaded conference. " +
			"Returns a compact list of all sessions (title, time, room, track) so you can see the whole program at a glance. " +
			"Call this when you need the full schedule structure; use rag_search for topic-specific sessions.",
	}
}

func (t *ScheduleOverviewTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	sessionID := stringArg(args, SessionIDArg)
	if sessionID == "" {
		return "", fmt.Errorf("no session context")
	}
	return t.Index.Overview(sessionID), nil
}
