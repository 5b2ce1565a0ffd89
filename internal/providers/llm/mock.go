package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/example/conference-concierge/internal/models"
)

// MockClient is used in tests and keyless development. Each behavior can be
// scripted via a func field; unset fields fall back to deterministic
// defaults driven by the requested schema.
type MockClient struct {
	GenerateFunc     func(ctx context.Context, system, user string) (string, error)
	GenerateJSONFunc func(ctx context.Context, system, user string, schema *Schema, out any) error
	NextActionFunc   func(ctx context.Context, system, user string, history []models.ExecutionEntry, tools []ToolDecl) (*Action, error)
	EmbedFunc        func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockClient) Generate(ctx context.Context, system, user string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, user)
	}
	return "Draft schedule based on gathered results:\n" + truncate(user, 400), nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, system, user string, schema *Schema, out any) error {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, system, user, schema, out)
	}
	raw, err := defaultJSONFor(schema)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// defaultJSONFor picks a canned answer by inspecting the schema shape so the
// mock stays decoupled from caller-side output structs.
func defaultJSONFor(schema *Schema) (string, error) {
	if schema == nil || schema.Properties == nil {
		return "", fmt.Errorf("mock: no default for nil schema")
	}
	if _, ok := schema.Properties["allowed"]; ok {
		return `{"allowed": true, "message": ""}`, nil
	}
	if _, ok := schema.Properties["action"]; ok {
		return `{"action": "clarify",
			"necessary_details_required": ["conference name, year and location"],
			"optional_details": ["food preferences"],
			"user_message": "Which conference would you like to attend, and what topics interest you?"}`, nil
	}
	if _, ok := schema.Properties["plan_description"]; ok {
		return `{"plan_description": ["Retrieve the full schedule overview", "Build a personal schedule from the gathered information"]}`, nil
	}
	if _, ok := schema.Properties["results"]; ok {
		return `{"results": []}`, nil
	}
	return "", fmt.Errorf("mock: no default for schema")
}

func (m *MockClient) NextAction(ctx context.Context, system, user string, history []models.ExecutionEntry, tools []ToolDecl) (*Action, error) {
	if m.NextActionFunc != nil {
		return m.NextActionFunc(ctx, system, user, history, tools)
	}
	// default: complete the task immediately
	return &Action{ToolCalls: []ToolCall{{
		ID:   "call-1",
		Name: "submit_task_result",
		Args: map[string]any{"result": "mock result for: " + truncate(user, 200)},
	}}}, nil
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return PseudoEmbedding(text, 16), nil
}

// PseudoEmbedding maps text to a stable unit-free vector. Word-level hashing
// keeps texts sharing words closer than unrelated ones, which is enough for
// exercising the vector store without a real embedder.
func PseudoEmbedding(text string, dim int) []float32 {
	v := make([]float32, dim)
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	for i := range v {
		v[i] = float32((seed>>(i%24))&0xff) / 255.0
	}
	// mix in per-word buckets
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		hw := fnv.New32a()
		_, _ = hw.Write(word)
		v[int(hw.Sum32())%dim] += 1
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' {
			flush()
			continue
		}
		word = append(word, c|0x20)
	}
	flush()
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
