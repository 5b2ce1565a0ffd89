package agents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-concierge/internal/providers/llm"
)

func TestPlanningReturnsTaskList(t *testing.T) {
	client := &llm.MockClient{
		GenerateJSONFunc: func(ctx context.Context, system, user string, schema *llm.Schema, out any) error {
			assert.Contains(t, user, "User: ")
			return json.Unmarshal([]byte(`{"plan_description": [
				"Check the uploaded schedule for the conference program.",
				"Find talks related to machine learning.",
				"Build a personal schedule for the user."
			]}`), out)
		},
	}
	agent := NewPlanningAgent(client, nil)

	tasks, err := agent.Run(context.Background(), "PyCon DE 2025 in Berlin, ML talks")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "Find talks related to machine learning.", tasks[1])
}

func TestPlanningEmptyListIsSentinelError(t *testing.T) {
	client := &llm.MockClient{
		GenerateJSONFunc: func(ctx context.Context, system, user string, schema *llm.Schema, out any) error {
			return json.Unmarshal([]byte(`{"plan_description": []}`), out)
		},
	}
	agent := NewPlanningAgent(client, nil)

	_, err := agent.Run(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlanningEmpty))
}

func TestPlanningTransportErrorIsNotPlanningEmpty(t *testing.T) {
	client := &llm.MockClient{
		GenerateJSONFunc: func(ctx context.Context, system, user string, schema *llm.Schema, out any) error {
			return llm.ErrUnavailable
		},
	}
	agent := NewPlanningAgent(client, nil)

	_, err := agent.Run(context.Background(), "anything")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPlanningEmpty))
	assert.True(t, errors.Is(err, llm.ErrUnavailable))
}
