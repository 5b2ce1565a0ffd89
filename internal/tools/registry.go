// Package tools holds the closed set of capabilities the executor can
// dispatch to. Every tool declares its argument schema; unknown names or bad
// arguments are recoverable failures recorded into the task history, never
// a crash.
package tools

import (
	"context"

	"github.com/example/conference-concierge/internal/providers/llm"
)

// SessionIDArg is injected into every dispatch by the executor with the
// conversation's session id. It is never declared to the model.
const SessionIDArg = "session_id"

type Tool interface {
	Name() string
	Declaration() llm.ToolDecl
	// Execute runs the tool. The returned string is the tool result fed
	// back to the model; a non-nil error is recorded as a failed call.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

type Registry struct {
	names []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.names = append(r.names, t.Name())
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Declarations returns the tool declarations in registration order.
func (r *Registry) Declarations() []llm.ToolDecl {
	out := make([]llm.ToolDecl, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.tools[n].Declaration())
	}
	return out
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
