// Package llm abstracts the decision-making capability behind a small
// client interface: free-text generation, schema-constrained structured
// output, tool-calling turns, and embeddings.
package llm

import (
	"context"
	"errors"

	"github.com/example/conference-concierge/internal/models"
)

// ErrUnavailable marks transport-level failures of the decision capability.
// Callers treat it as fatal for the current step.
var ErrUnavailable = errors.New("decision capability unavailable")

// Schema is a provider-neutral subset of JSON schema, enough for the
// structured decisions and tool argument declarations this system uses.
type Schema struct {
	Type        string // "object", "array", "string", "integer", "number", "boolean"
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
	Enum        []string
}

// ToolDecl declares one callable tool to the model.
type ToolDecl struct {
	Name        string
	Description string
	Parameters  *Schema // nil declares a tool without arguments
}

// ToolCall is a single function invocation issued by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Action is the outcome of one tool-calling turn: free text, tool calls,
// or both.
type Action struct {
	Text      string
	ToolCalls []ToolCall
}

// Client is the minimal interface the stages depend on. Any provider
// implementation should satisfy this.
type Client interface {
	// Generate produces free text from a system prompt and user content.
	Generate(ctx context.Context, system, user string) (string, error)

	// GenerateJSON produces structured output constrained by schema and
	// decodes it into out.
	GenerateJSON(ctx context.Context, system, user string, schema *Schema, out any) error

	// NextAction runs one turn of the tool-calling loop: the prior
	// execution history plus the declared tool set go in, the model's next
	// action comes out.
	NextAction(ctx context.Context, system, user string, history []models.ExecutionEntry, tools []ToolDecl) (*Action, error)

	// Embed returns the embedding vector for a text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
