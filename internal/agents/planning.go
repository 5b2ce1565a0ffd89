package agents

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/providers/llm"
)

// ErrPlanningEmpty signals that planning produced no tasks for the query.
var ErrPlanningEmpty = errors.New("planning produced an empty task list")

var planningSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]*llm.Schema{
		"plan_description": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Ordered list of single-purpose task descriptions",
		},
	},
	Required: []string{"plan_description"},
}

type planDescription struct {
	PlanDescription []string `json:"plan_description"`
}

// PlanningAgent turns a planning query into an ordered list of task
// descriptions.
type PlanningAgent struct {
	Client llm.Client
	Logger *zap.Logger
}

func NewPlanningAgent(client llm.Client, logger *zap.Logger) *PlanningAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanningAgent{Client: client, Logger: logger}
}

func (a *PlanningAgent) Run(ctx context.Context, query string) ([]string, error) {
	var out planDescription
	if err := a.Client.GenerateJSON(ctx, planningPrompt, "User: "+query, planningSchema, &out); err != nil {
		return nil, fmt.Errorf("planning decision: %w", err)
	}
	if len(out.PlanDescription) == 0 {
		return nil, ErrPlanningEmpty
	}
	a.Logger.Info("plan produced", zap.Int("tasks", len(out.PlanDescription)))
	return out.PlanDescription, nil
}
