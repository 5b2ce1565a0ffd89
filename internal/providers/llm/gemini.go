package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/example/conference-concierge/internal/models"
)

// GeminiClient implements Client on the Gemini SDK.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGemini dials the Gemini API. model drives generation and tool calling,
// embeddingModel drives Embed.
func NewGemini(ctx context.Context, apiKey, model, embeddingModel string) (*GeminiClient, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &GeminiClient{client: c, model: model, embeddingModel: embeddingModel}, nil
}

// WithModel returns a client sharing the same connection but generating with
// a different model (e.g. a lighter guardrail classifier).
func (g *GeminiClient) WithModel(model string) *GeminiClient {
	return &GeminiClient{client: g.client, model: model, embeddingModel: g.embeddingModel}
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error { return g.client.Close() }

func (g *GeminiClient) generativeModel(system string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return m
}

func (g *GeminiClient) Generate(ctx context.Context, system, user string) (string, error) {
	m := g.generativeModel(system)
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return txt, nil
}

func (g *GeminiClient) GenerateJSON(ctx context.Context, system, user string, schema *Schema, out any) error {
	m := g.generativeModel(system)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = toGenaiSchema(schema)
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	raw := normalizeJSONText(firstText(resp))
	if raw == "" {
		return fmt.Errorf("%w: empty structured response", ErrUnavailable)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding structured response: %w (raw=%.200q)", err, raw)
	}
	return nil
}

func (g *GeminiClient) NextAction(ctx context.Context, system, user string, history []models.ExecutionEntry, tools []ToolDecl) (*Action, error) {
	m := g.generativeModel(system)
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		m.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := []*genai.Content{{Role: "user", Parts: []genai.Part{genai.Text(user)}}}
	for _, e := range history {
		contents = append(contents, entryToContent(e))
	}
	if len(contents) < 2 {
		// nothing beyond the seed user turn; single-shot call
		resp, err := m.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return responseToAction(resp), nil
	}

	cs := m.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return responseToAction(resp), nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrUnavailable)
	}
	return res.Embedding.Values, nil
}

func entryToContent(e models.ExecutionEntry) *genai.Content {
	switch e.Role {
	case "tool":
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.FunctionResponse{
			Name:     e.ToolName,
			Response: map[string]any{"content": e.Content},
		}}}
	default: // assistant
		var parts []genai.Part
		if e.Content != "" {
			parts = append(parts, genai.Text(e.Content))
		}
		if e.ToolCall != nil {
			parts = append(parts, genai.FunctionCall{Name: e.ToolCall.Name, Args: e.ToolCall.Args})
		}
		if len(parts) == 0 {
			parts = append(parts, genai.Text(""))
		}
		return &genai.Content{Role: "model", Parts: parts}
	}
}

func responseToAction(resp *genai.GenerateContentResponse) *Action {
	act := &Action{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return act
	}
	i := 0
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			act.Text += string(p)
		case genai.FunctionCall:
			i++
			act.ToolCalls = append(act.ToolCalls, ToolCall{
				ID:   fmt.Sprintf("call-%d", i),
				Name: p.Name,
				Args: p.Args,
			})
		}
	}
	return act
}

func firstText(r *genai.GenerateContentResponse) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeUnspecified
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenaiSchema(v)
		}
	}
	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}
	return out
}

// normalizeJSONText strips code fences some models wrap around JSON output.
func normalizeJSONText(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		if idx := strings.IndexByte(t, '\n'); idx != -1 {
			t = t[idx+1:]
		}
		if j := strings.LastIndex(t, "```"); j != -1 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	return t
}
