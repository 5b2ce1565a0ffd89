package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. Immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCallRecord captures a single tool invocation issued by the model.
type ToolCallRecord struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ExecutionEntry is one entry of a task's execution history: either an
// assistant turn (free text and/or a tool call) or a tool result.
type ExecutionEntry struct {
	Role       string          `json:"role"` // "assistant" | "tool"
	Content    string          `json:"content,omitempty"`
	ToolCall   *ToolCallRecord `json:"tool_call,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

// Task is a single-purpose unit of work produced by planning. The id is the
// position in the plan; status transitions are owned by the execution stage.
type Task struct {
	ID               int              `json:"id"`
	Description      string           `json:"description"`
	Status           Status           `json:"status"`
	Result           string           `json:"result"`
	ExecutionHistory []ExecutionEntry `json:"execution_history,omitempty"`
}

// Plan is an ordered task list. Insertion order is execution order.
type Plan []*Task

func (p Plan) Pending() []*Task    { return p.withStatus(StatusPending) }
func (p Plan) InProgress() []*Task { return p.withStatus(StatusInProgress) }
func (p Plan) Completed() []*Task  { return p.withStatus(StatusCompleted) }
func (p Plan) Failed() []*Task     { return p.withStatus(StatusFailed) }

func (p Plan) withStatus(s Status) []*Task {
	var out []*Task
	for _, t := range p {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}

// Terminal reports whether every task of the plan reached a terminal status.
// An empty plan is not terminal: nothing has executed yet.
func (p Plan) Terminal() bool {
	if len(p) == 0 {
		return false
	}
	for _, t := range p {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// ConversationState is the single mutable record threaded through every
// stage of a step. Callers hold exactly one handle per conversation.
type ConversationState struct {
	ConversationID string `json:"conversation_id"`

	InteractionHistory []Message `json:"interaction_history"`

	// QueryToPlan empty routes the step into intake; once set it stays set
	// for the lifetime of the current plan.
	QueryToPlan string `json:"query_to_plan"`
	Plan        Plan   `json:"plan"`

	SynthesizedSchedule string `json:"synthesized_schedule"`

	NecessaryDetailsRequired []string `json:"necessary_details_required,omitempty"`
	OptionalDetails          []string `json:"optional_details,omitempty"`
}

func NewConversationState(conversationID string) *ConversationState {
	return &ConversationState{ConversationID: conversationID}
}

// Clone returns a structurally independent deep copy. Checkpoints snapshot
// through here so later mutation never alters recorded history.
func (s *ConversationState) Clone() *ConversationState {
	out := &ConversationState{
		ConversationID:      s.ConversationID,
		QueryToPlan:         s.QueryToPlan,
		SynthesizedSchedule: s.SynthesizedSchedule,
	}
	out.InteractionHistory = append([]Message(nil), s.InteractionHistory...)
	out.NecessaryDetailsRequired = append([]string(nil), s.NecessaryDetailsRequired...)
	out.OptionalDetails = append([]string(nil), s.OptionalDetails...)
	for _, t := range s.Plan {
		ct := &Task{ID: t.ID, Description: t.Description, Status: t.Status, Result: t.Result}
		for _, e := range t.ExecutionHistory {
			ce := e
			if e.ToolCall != nil {
				args := make(map[string]any, len(e.ToolCall.Args))
				// args come from JSON decoding; a marshal round-trip is the
				// simplest faithful deep copy for nested values
				if len(e.ToolCall.Args) > 0 {
					b, err := json.Marshal(e.ToolCall.Args)
					if err == nil {
						_ = json.Unmarshal(b, &args)
					}
				}
				ce.ToolCall = &ToolCallRecord{ID: e.ToolCall.ID, Name: e.ToolCall.Name, Args: args}
			}
			ct.ExecutionHistory = append(ct.ExecutionHistory, ce)
		}
		out.Plan = append(out.Plan, ct)
	}
	return out
}

// AppendMessage appends one immutable message to the interaction history.
func (s *ConversationState) AppendMessage(role Role, content string) {
	s.InteractionHistory = append(s.InteractionHistory, Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
}

// Checkpoint is an immutable snapshot of conversation state recorded after a
// stage transition or an executor inner iteration.
type Checkpoint struct {
	StepIndex int                `json:"step_index"`
	State     *ConversationState `json:"state"`
	Stage     string             `json:"stage,omitempty"` // empty for user input
	Metadata  map[string]any     `json:"metadata,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// GuardrailVerdict is the outcome of a safety check on a single message.
// Consumed synchronously; never persisted beyond the step.
type GuardrailVerdict struct {
	Allowed   bool   `json:"allowed"`
	SafeReply string `json:"safe_reply,omitempty"`
}

// IntakeDecision is the structured clarify-vs-plan outcome of the intake stage.
type IntakeDecision struct {
	Action                   string   `json:"action"` // "clarify" | "plan"
	NecessaryDetailsRequired []string `json:"necessary_details_required,omitempty"`
	OptionalDetails          []string `json:"optional_details,omitempty"`
	UserMessage              string   `json:"user_message,omitempty"`
	Summary                  string   `json:"summary,omitempty"`
}

const (
	IntakeActionClarify = "clarify"
	IntakeActionPlan    = "plan"
)
