package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskTransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"pending to in_progress", StatusPending, StatusInProgress, true},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"in_progress to failed", StatusInProgress, StatusFailed, true},
		{"pending to completed skips", StatusPending, StatusCompleted, false},
		{"pending to failed skips", StatusPending, StatusFailed, false},
		{"completed reopened", StatusCompleted, StatusInProgress, false},
		{"failed reopened", StatusFailed, StatusPending, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{ID: 1, Status: tt.from}
			err := task.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, task.Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.from, task.Status)
			}
		})
	}
}

func TestTaskTransitionUnknownStatus(t *testing.T) {
	task := &Task{Status: StatusPending}
	require.Error(t, task.Transition(Status("done")))
	assert.Equal(t, StatusPending, task.Status)
}

func TestPlanTerminal(t *testing.T) {
	assert.False(t, Plan{}.Terminal(), "empty plan has executed nothing")

	plan := Plan{
		{ID: 0, Status: StatusCompleted},
		{ID: 1, Status: StatusInProgress},
	}
	assert.False(t, plan.Terminal())

	plan[1].Status = StatusFailed
	assert.True(t, plan.Terminal())
}

func TestPlanStatusFilters(t *testing.T) {
	plan := Plan{
		{ID: 0, Status: StatusCompleted},
		{ID: 1, Status: StatusFailed},
		{ID: 2, Status: StatusPending},
		{ID: 3, Status: StatusCompleted},
	}
	assert.Len(t, plan.Completed(), 2)
	assert.Len(t, plan.Failed(), 1)
	assert.Len(t, plan.Pending(), 1)
	assert.Empty(t, plan.InProgress())
}

func TestCloneIsDeep(t *testing.T) {
	state := NewConversationState("conv-1")
	state.AppendMessage(RoleUser, "hello")
	state.QueryToPlan = "plan ConfX"
	state.SynthesizedSchedule = "v1"
	state.NecessaryDetailsRequired = []string{"conference name"}
	state.Plan = Plan{{
		ID:          0,
		Description: "find talks",
		Status:      StatusInProgress,
		ExecutionHistory: []ExecutionEntry{
			{Role: "assistant", ToolCall: &ToolCallRecord{ID: "c1", Name: "rag_search", Args: map[string]any{"query": "ml", "nested": map[string]any{"k": "v"}}}},
			{Role: "tool", Content: "result", ToolCallID: "c1", ToolName: "rag_search"},
		},
	}}

	clone := state.Clone()
	require.Equal(t, state, clone)

	// mutate the original everywhere a shallow copy would leak
	state.InteractionHistory[0].Content = "changed"
	state.NecessaryDetailsRequired[0] = "changed"
	state.Plan[0].Status = StatusCompleted
	state.Plan[0].ExecutionHistory[0].ToolCall.Args["query"] = "changed"
	state.Plan[0].ExecutionHistory[0].ToolCall.Args["nested"].(map[string]any)["k"] = "changed"

	assert.Equal(t, "hello", clone.InteractionHistory[0].Content)
	assert.Equal(t, "conference name", clone.NecessaryDetailsRequired[0])
	assert.Equal(t, StatusInProgress, clone.Plan[0].Status)
	assert.Equal(t, "ml", clone.Plan[0].ExecutionHistory[0].ToolCall.Args["query"])
	assert.Equal(t, "v", clone.Plan[0].ExecutionHistory[0].ToolCall.Args["nested"].(map[string]any)["k"])
}

func TestAppendMessageSetsTimestamp(t *testing.T) {
	state := NewConversationState("conv-1")
	state.AppendMessage(RoleAssistant, "hi")
	require.Len(t, state.InteractionHistory, 1)
	assert.Equal(t, RoleAssistant, state.InteractionHistory[0].Role)
	assert.False(t, state.InteractionHistory[0].Timestamp.IsZero())
}
