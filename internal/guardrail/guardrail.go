// Package guardrail applies a structured safety check to a single message
// before it is trusted (user input) or shown (assistant output).
package guardrail

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/models"
	"github.com/example/conference-concierge/internal/providers/llm"
)

const (
	// InputRejectMessage replaces the step outcome when user input is rejected.
	InputRejectMessage = "Please keep your message on the topic of conference schedule planning."
	// OutputRejectMessage replaces an assistant reply that fails the check.
	OutputRejectMessage = "I can't provide that. How can I help with your conference schedule?"

	classifierPrompt = "You classify messages for a conference schedule planning assistant. " +
		"Allow (YES): anything on-topic (schedule, talks, planning), greetings, small talk, thanks, or harmless conversation openers. " +
		"Reject (NO) only: harmful or abusive content, or messages that are clearly off-topic and cannot lead to schedule help. " +
		"When in doubt, say YES. " +
		"Reply with a JSON object with: allowed: bool, message: str."

	maxClassifiedLen = 2000
)

var verdictSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]*llm.Schema{
		"allowed": {Type: "boolean", Description: "Whether the message is allowed."},
		"message": {Type: "string", Description: "The message to show the user if not allowed."},
	},
	Required: []string{"allowed", "message"},
}

type verdictResponse struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
}

// Filter is a stateless safety check on single messages.
type Filter struct {
	client llm.Client
	logger *zap.Logger
}

func New(client llm.Client, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{client: client, logger: logger}
}

// CheckInput classifies a user message. Empty input is rejected outright;
// classifier transport errors fail open so an outage never blocks the user.
func (f *Filter) CheckInput(ctx context.Context, message string) models.GuardrailVerdict {
	if strings.TrimSpace(message) == "" {
		return models.GuardrailVerdict{Allowed: false, SafeReply: InputRejectMessage}
	}
	return f.classify(ctx, "Message: "+clip(message), InputRejectMessage)
}

// CheckOutput classifies an assistant reply before it is shown. An empty
// reply passes; the caller decides what to show instead.
func (f *Filter) CheckOutput(ctx context.Context, reply string) models.GuardrailVerdict {
	if strings.TrimSpace(reply) == "" {
		return models.GuardrailVerdict{Allowed: true}
	}
	return f.classify(ctx, "Reply: "+clip(reply), OutputRejectMessage)
}

func (f *Filter) classify(ctx context.Context, content, fallbackReject string) models.GuardrailVerdict {
	var resp verdictResponse
	if err := f.client.GenerateJSON(ctx, classifierPrompt, content, verdictSchema, &resp); err != nil {
		f.logger.Warn("guardrail classifier failed, allowing message", zap.Error(err))
		return models.GuardrailVerdict{Allowed: true}
	}
	if resp.Allowed {
		return models.GuardrailVerdict{Allowed: true}
	}
	reply := strings.TrimSpace(resp.Message)
	if reply == "" {
		reply = fallbackReject
	}
	return models.GuardrailVerdict{Allowed: false, SafeReply: reply}
}

func clip(s string) string {
	if len(s) > maxClassifiedLen {
		return s[:maxClassifiedLen]
	}
	return s
}
