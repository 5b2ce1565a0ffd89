// Package orchestrator drives a conversation through the staged pipeline:
// input guardrail, intake, planning, sequential task execution, synthesis
// and output guardrail, checkpointing the state after every transition.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/agents"
	"github.com/example/conference-concierge/internal/guardrail"
	"github.com/example/conference-concierge/internal/models"
	"github.com/example/conference-concierge/internal/session"
)

// Stage names recorded on checkpoints. The empty stage marks raw user input.
const (
	StageUserInput = ""
	StageIntake    = "intake"
	StagePlanning  = "planning"
	StageExecution = "execution"
	StageFinalize  = "finalize"
)

// PlanningFailedMessage is shown when planning yields no tasks.
const PlanningFailedMessage = "I couldn't turn that into an actionable plan. Could you rephrase what you'd like me to do?"

// ErrUnknownConversation is returned for operations on a conversation id the
// store has never seen.
var ErrUnknownConversation = errors.New("unknown conversation")

// StepResult is the user-visible outcome of one orchestration step.
type StepResult struct {
	Reply    string `json:"reply"`
	Stage    string `json:"stage"`
	Rejected bool   `json:"rejected,omitempty"`
}

// conversation is the in-memory handle for one conversation. The mutex gives
// each conversation exactly one step at a time.
type conversation struct {
	mu          sync.Mutex
	state       *models.ConversationState
	checkpoints []models.Checkpoint
}

type Orchestrator struct {
	Intake    *agents.IntakeAgent
	Planning  *agents.PlanningAgent
	Executor  *agents.ExecutorAgent
	Guardrail *guardrail.Filter
	Store     *session.Store
	Logger    *zap.Logger
	Hub       *Hub

	mu    sync.Mutex
	convs map[string]*conversation
}

func New(intake *agents.IntakeAgent, planning *agents.PlanningAgent, executor *agents.ExecutorAgent, filter *guardrail.Filter, store *session.Store, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Intake:    intake,
		Planning:  planning,
		Executor:  executor,
		Guardrail: filter,
		Store:     store,
		Logger:    logger,
		Hub:       NewHub(),
		convs:     map[string]*conversation{},
	}
}

// conversation returns the handle for a known session, loading persisted
// state on first touch.
func (o *Orchestrator) conversation(conversationID string) (*conversation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.convs[conversationID]; ok {
		return c, nil
	}
	if !o.Store.Exists(conversationID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
	}
	c := &conversation{state: models.NewConversationState(conversationID)}
	cps, err := o.Store.LoadCheckpoints(conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoints: %w", err)
	}
	if len(cps) > 0 {
		c.checkpoints = cps
		c.state = cps[len(cps)-1].State.Clone()
	}
	o.convs[conversationID] = c
	return c, nil
}

// checkpoint appends a deep-copy snapshot, persists the log and publishes a
// progress event. Must be called with the conversation lock held.
func (o *Orchestrator) checkpoint(c *conversation, stage string, meta map[string]any) {
	cp := models.Checkpoint{
		StepIndex: len(c.checkpoints),
		State:     c.state.Clone(),
		Stage:     stage,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
	c.checkpoints = append(c.checkpoints, cp)

	id := c.state.ConversationID
	if err := o.Store.SaveCheckpoints(id, c.checkpoints); err != nil {
		o.Logger.Error("persisting checkpoints failed", zap.String("conversation_id", id), zap.Error(err))
	}
	if err := o.Store.SaveHistory(id, c.state.InteractionHistory); err != nil {
		o.Logger.Error("persisting history failed", zap.String("conversation_id", id), zap.Error(err))
	}
	if err := o.Store.SavePlan(id, c.state.Plan); err != nil {
		o.Logger.Error("persisting plan failed", zap.String("conversation_id", id), zap.Error(err))
	}
	o.Hub.Publish(id, Event{Event: "checkpoint", ConversationID: id, Payload: map[string]any{
		"step_index": cp.StepIndex,
		"stage":      stage,
		"metadata":   meta,
	}})
}

// Step runs one full orchestration step for a user message. Errors are fatal
// for the step only; recorded state stays valid and a later step may retry.
func (o *Orchestrator) Step(ctx context.Context, conversationID, userMessage string) (*StepResult, error) {
	c, err := o.conversation(conversationID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	log := o.Logger.With(zap.String("conversation_id", conversationID))

	// input guardrail: a rejected message leaves no trace downstream
	if verdict := o.Guardrail.CheckInput(ctx, userMessage); !verdict.Allowed {
		log.Info("input rejected by guardrail")
		return &StepResult{Reply: verdict.SafeReply, Stage: StageUserInput, Rejected: true}, nil
	}

	// a fresh request over a finished plan starts a new planning cycle;
	// the synthesized schedule and the history carry over
	if c.state.Plan.Terminal() {
		c.state.QueryToPlan = ""
		c.state.Plan = nil
		c.state.NecessaryDetailsRequired = nil
		c.state.OptionalDetails = nil
	}

	c.state.AppendMessage(models.RoleUser, userMessage)
	o.checkpoint(c, StageUserInput, nil)

	// intake gate: no planning query yet means the conversation is still
	// being qualified
	if c.state.QueryToPlan == "" {
		decision, err := o.Intake.Run(ctx, c.state)
		if err != nil {
			return nil, err
		}
		o.checkpoint(c, StageIntake, map[string]any{"action": decision.Action})
		if decision.Action == models.IntakeActionClarify {
			return &StepResult{Reply: decision.UserMessage, Stage: StageIntake}, nil
		}
		if c.state.QueryToPlan == "" {
			// intake chose to plan but produced no summary; nothing to do
			log.Warn("intake produced empty planning summary")
			return &StepResult{Stage: StageIntake}, nil
		}
	}

	if len(c.state.Plan) == 0 {
		descriptions, err := o.Planning.Run(ctx, c.state.QueryToPlan)
		if err != nil {
			if errors.Is(err, agents.ErrPlanningEmpty) {
				c.state.AppendMessage(models.RoleAssistant, PlanningFailedMessage)
				o.checkpoint(c, StagePlanning, map[string]any{"outcome": "empty"})
				return &StepResult{Reply: PlanningFailedMessage, Stage: StagePlanning}, nil
			}
			return nil, err
		}
		for i, desc := range descriptions {
			c.state.Plan = append(c.state.Plan, &models.Task{ID: i, Description: desc, Status: models.StatusPending})
		}
		o.checkpoint(c, StagePlanning, map[string]any{"tasks": len(descriptions)})
	}

	// sequential execution: a failed task never blocks the ones after it.
	// Tasks left in_progress by a step that died mid-execution are picked
	// up again before anything after them runs.
	for _, task := range c.state.Plan {
		if task.Status.Terminal() {
			continue
		}
		taskCheckpoint := func(meta map[string]any) { o.checkpoint(c, StageExecution, meta) }
		if err := o.Executor.RunTask(ctx, c.state, task, taskCheckpoint); err != nil {
			return nil, err
		}
	}

	reply := o.finalReply(c.state)
	if verdict := o.Guardrail.CheckOutput(ctx, reply); !verdict.Allowed {
		reply = verdict.SafeReply
	}
	c.state.AppendMessage(models.RoleAssistant, reply)
	o.checkpoint(c, StageFinalize, map[string]any{
		"completed": len(c.state.Plan.Completed()),
		"failed":    len(c.state.Plan.Failed()),
	})
	return &StepResult{Reply: reply, Stage: StageFinalize}, nil
}

// finalReply is the synthesized schedule when one exists, otherwise a digest
// of what the tasks produced.
func (o *Orchestrator) finalReply(state *models.ConversationState) string {
	if strings.TrimSpace(state.SynthesizedSchedule) != "" {
		return state.SynthesizedSchedule
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I worked through %d task(s): %d completed, %d failed.\n",
		len(state.Plan), len(state.Plan.Completed()), len(state.Plan.Failed()))
	for _, t := range state.Plan {
		if t.Status == models.StatusCompleted && strings.TrimSpace(t.Result) != "" {
			fmt.Fprintf(&b, "\n%s\n%s\n", t.Description, t.Result)
		}
	}
	return strings.TrimSpace(b.String())
}

// Checkpoints returns a copy of the conversation's checkpoint log.
func (o *Orchestrator) Checkpoints(conversationID string) ([]models.Checkpoint, error) {
	c, err := o.conversation(conversationID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Checkpoint(nil), c.checkpoints...), nil
}

// StateAt reconstructs the conversation state as of a recorded step index.
func (o *Orchestrator) StateAt(conversationID string, stepIndex int) (*models.ConversationState, error) {
	c, err := o.conversation(conversationID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if stepIndex < 0 || stepIndex >= len(c.checkpoints) {
		return nil, fmt.Errorf("step index %d out of range (have %d checkpoints)", stepIndex, len(c.checkpoints))
	}
	return c.checkpoints[stepIndex].State.Clone(), nil
}

// Resume rewinds a conversation to a recorded checkpoint. The log is
// truncated past that point so later steps build on the restored state.
func (o *Orchestrator) Resume(conversationID string, stepIndex int) (*models.ConversationState, error) {
	c, err := o.conversation(conversationID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if stepIndex < 0 || stepIndex >= len(c.checkpoints) {
		return nil, fmt.Errorf("step index %d out of range (have %d checkpoints)", stepIndex, len(c.checkpoints))
	}
	c.state = c.checkpoints[stepIndex].State.Clone()
	c.checkpoints = c.checkpoints[:stepIndex+1]

	if err := o.Store.SaveCheckpoints(conversationID, c.checkpoints); err != nil {
		return nil, fmt.Errorf("persisting truncated checkpoints: %w", err)
	}
	if err := o.Store.SaveHistory(conversationID, c.state.InteractionHistory); err != nil {
		return nil, fmt.Errorf("persisting history: %w", err)
	}
	if err := o.Store.SavePlan(conversationID, c.state.Plan); err != nil {
		return nil, fmt.Errorf("persisting plan: %w", err)
	}
	o.Logger.Info("conversation resumed",
		zap.String("conversation_id", conversationID),
		zap.Int("step_index", stepIndex),
	)
	return c.state.Clone(), nil
}

// State returns a copy of the current conversation state.
func (o *Orchestrator) State(conversationID string) (*models.ConversationState, error) {
	c, err := o.conversation(conversationID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone(), nil
}

// Forget drops the in-memory handle, e.g. after a session delete.
func (o *Orchestrator) Forget(conversationID string) {
	o.mu.Lock()
	delete(o.convs, conversationID)
	o.mu.Unlock()
}
