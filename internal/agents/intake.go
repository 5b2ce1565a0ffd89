// Package agents holds the staged agents of the orchestration pipeline:
// intake, planning, execution and synthesis.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/models"
	"github.com/example/conference-concierge/internal/providers/llm"
)

// DefaultClarificationMessage stands in when a clarify decision arrives
// without a user message; every clarify outcome shows exactly one question.
const DefaultClarificationMessage = "Could you tell me which conference you'd like to attend (name, year, location) and what topics or session types interest you?"

var intakeSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]*llm.Schema{
		"action": {
			Type:        "string",
			Enum:        []string{models.IntakeActionClarify, models.IntakeActionPlan},
			Description: "clarify when necessary details are missing, plan when the request is complete",
		},
		"necessary_details_required": {
			Type:  "array",
			Items: &llm.Schema{Type: "string"},
		},
		"optional_details": {
			Type:  "array",
			Items: &llm.Schema{Type: "string"},
		},
		"user_message": {Type: "string"},
		"summary":      {Type: "string"},
	},
	Required: []string{"action"},
}

// IntakeAgent decides whether the conversation carries enough detail to plan,
// or whether the user must be asked for more.
type IntakeAgent struct {
	Client llm.Client
	Logger *zap.Logger
}

func NewIntakeAgent(client llm.Client, logger *zap.Logger) *IntakeAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeAgent{Client: client, Logger: logger}
}

// Run classifies the conversation and applies the outcome to state: a clarify
// decision records the detail gaps and appends the clarification question to
// the history, a plan decision promotes the summary to the query to plan.
func (a *IntakeAgent) Run(ctx context.Context, state *models.ConversationState) (*models.IntakeDecision, error) {
	var decision models.IntakeDecision
	if err := a.Client.GenerateJSON(ctx, intakePrompt, renderHistory(state.InteractionHistory), intakeSchema, &decision); err != nil {
		return nil, fmt.Errorf("intake decision: %w", err)
	}

	switch decision.Action {
	case models.IntakeActionClarify:
		if strings.TrimSpace(decision.UserMessage) == "" {
			decision.UserMessage = DefaultClarificationMessage
		}
		state.NecessaryDetailsRequired = decision.NecessaryDetailsRequired
		state.OptionalDetails = decision.OptionalDetails
		state.AppendMessage(models.RoleAssistant, decision.UserMessage)
		a.Logger.Info("intake requests clarification",
			zap.String("conversation_id", state.ConversationID),
			zap.Strings("necessary", decision.NecessaryDetailsRequired),
		)
	case models.IntakeActionPlan:
		state.NecessaryDetailsRequired = nil
		state.OptionalDetails = nil
		state.QueryToPlan = decision.Summary
		a.Logger.Info("intake ready to plan", zap.String("conversation_id", state.ConversationID))
	default:
		return nil, fmt.Errorf("intake returned unknown action %q", decision.Action)
	}
	return &decision, nil
}

// renderHistory flattens the interaction history into the transcript form the
// intake prompt expects.
func renderHistory(history []models.Message) string {
	var b strings.Builder
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			b.WriteString("User: ")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
