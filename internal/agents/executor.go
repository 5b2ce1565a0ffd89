package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/models"
	"github.com/example/conference-concierge/internal/providers/llm"
	"github.com/example/conference-concierge/internal/tools"
)

const (
	// SubmitTaskResultTool is the only call that completes a task.
	SubmitTaskResultTool = "submit_task_result"
	// GenerateScheduleTool refines the synthesized schedule. It never ends
	// the task; the model still has to submit a result afterwards.
	GenerateScheduleTool = "generate_schedule"

	// DefaultMaxTaskTurns bounds the tool loop of a single task.
	DefaultMaxTaskTurns = 20
)

// ErrCallTimeout marks a decision call that exceeded the configured timeout.
// Fatal for the step, unlike tool timeouts which are recorded and skipped.
var ErrCallTimeout = errors.New("decision call timed out")

var submitTaskResultDecl = llm.ToolDecl{
	Name: SubmitTaskResultTool,
	Description: "Submit the final result of the CURRENT task and finish it. " +
		"Call this exactly once, when the current task is done. The result is the only artifact passed on.",
	Parameters: &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"result": {Type: "string", Description: "The complete result of the current task, with all relevant detail."},
		},
		Required: []string{"result"},
	},
}

var generateScheduleDecl = llm.ToolDecl{
	Name: GenerateScheduleTool,
	Description: "Generate or refine the personal conference schedule from all information gathered so far. " +
		"Returns the updated schedule. Does not finish the task; call submit_task_result afterwards.",
}

// ExecutorAgent runs one task at a time through a bounded tool loop. It is
// the only component that moves task status.
type ExecutorAgent struct {
	Client       llm.Client
	Registry     *tools.Registry
	Logger       *zap.Logger
	MaxTaskTurns int
	CallTimeout  time.Duration
}

func NewExecutorAgent(client llm.Client, registry *tools.Registry, logger *zap.Logger, maxTaskTurns int, callTimeout time.Duration) *ExecutorAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTaskTurns <= 0 {
		maxTaskTurns = DefaultMaxTaskTurns
	}
	return &ExecutorAgent{
		Client:       client,
		Registry:     registry,
		Logger:       logger,
		MaxTaskTurns: maxTaskTurns,
		CallTimeout:  callTimeout,
	}
}

func (a *ExecutorAgent) declarations() []llm.ToolDecl {
	decls := a.Registry.Declarations()
	decls = append(decls, generateScheduleDecl, submitTaskResultDecl)
	return decls
}

// RunTask drives a single task to a terminal status. A task still
// in_progress from a step that died mid-execution is picked up where its
// recorded history left off, so no task is ever abandoned. The checkpoint
// callback fires after every inner iteration so each tool exchange is
// recoverable. A non-nil error is fatal for the whole step; task-level
// failures are absorbed into the task's status instead.
func (a *ExecutorAgent) RunTask(ctx context.Context, state *models.ConversationState, task *models.Task, checkpoint func(meta map[string]any)) error {
	event := "task_resumed"
	if task.Status != models.StatusInProgress {
		if err := task.Transition(models.StatusInProgress); err != nil {
			return err
		}
		event = "task_started"
	}
	checkpoint(map[string]any{"task_id": task.ID, "event": event})

	log := a.Logger.With(
		zap.String("conversation_id", state.ConversationID),
		zap.Int("task_id", task.ID),
	)
	log.Info("task running", zap.String("event", event), zap.String("description", task.Description))

	for turn := 1; turn <= a.MaxTaskTurns; turn++ {
		action, err := a.nextAction(ctx, state, task)
		if err != nil {
			return err
		}

		if action.Text != "" {
			task.ExecutionHistory = append(task.ExecutionHistory, models.ExecutionEntry{
				Role:    "assistant",
				Content: action.Text,
			})
		}

		if len(action.ToolCalls) == 0 {
			// no call means no progress signal; nudge via history and retry
			task.ExecutionHistory = append(task.ExecutionHistory, models.ExecutionEntry{
				Role:    "assistant",
				Content: "(no tool call issued; call submit_task_result when the task is done)",
			})
			checkpoint(map[string]any{"task_id": task.ID, "turn": turn, "event": "no_tool_call"})
			continue
		}

		done := false
		for _, call := range action.ToolCalls {
			finished, err := a.handleCall(ctx, state, task, call)
			if err != nil {
				return err
			}
			if finished {
				done = true
				break
			}
		}
		checkpoint(map[string]any{"task_id": task.ID, "turn": turn, "event": "turn_completed"})
		if done {
			log.Info("task completed", zap.Int("turns", turn))
			return nil
		}
	}

	// turn budget exhausted: the task fails, the step goes on
	task.Result = fmt.Sprintf("Task failed: no result was submitted within %d turns.", a.MaxTaskTurns)
	if err := task.Transition(models.StatusFailed); err != nil {
		return err
	}
	log.Warn("task failed, turn budget exhausted", zap.Int("max_turns", a.MaxTaskTurns))
	checkpoint(map[string]any{"task_id": task.ID, "event": "turn_budget_exhausted"})
	return nil
}

// nextAction asks the model for the next move of the current task. Transport
// failures and timeouts here are fatal for the step.
func (a *ExecutorAgent) nextAction(ctx context.Context, state *models.ConversationState, task *models.Task) (*llm.Action, error) {
	callCtx := ctx
	if a.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
	}
	action, err := a.Client.NextAction(callCtx, executorPrompt, taskContext(state, task), task.ExecutionHistory, a.declarations())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrCallTimeout, err)
		}
		return nil, fmt.Errorf("executor decision: %w", err)
	}
	return action, nil
}

// handleCall executes one tool call and records the exchange. It returns
// true when the call completed the task.
func (a *ExecutorAgent) handleCall(ctx context.Context, state *models.ConversationState, task *models.Task, call llm.ToolCall) (bool, error) {
	task.ExecutionHistory = append(task.ExecutionHistory, models.ExecutionEntry{
		Role:     "assistant",
		ToolCall: &models.ToolCallRecord{ID: call.ID, Name: call.Name, Args: call.Args},
	})

	record := func(content string, isErr bool) {
		task.ExecutionHistory = append(task.ExecutionHistory, models.ExecutionEntry{
			Role:       "tool",
			Content:    content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			IsError:    isErr,
		})
	}

	switch call.Name {
	case SubmitTaskResultTool:
		result, _ := call.Args["result"].(string)
		if strings.TrimSpace(result) == "" {
			record("submit_task_result requires a non-empty result.", true)
			return false, nil
		}
		task.Result = result
		if err := task.Transition(models.StatusCompleted); err != nil {
			return false, err
		}
		record("Task result accepted.", false)
		return true, nil

	case GenerateScheduleTool:
		schedule, err := a.synthesize(ctx, state, task)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return false, fmt.Errorf("%w: %v", ErrCallTimeout, err)
			}
			if errors.Is(err, llm.ErrUnavailable) {
				return false, err
			}
			record("generate_schedule failed: "+err.Error(), true)
			return false, nil
		}
		state.SynthesizedSchedule = schedule
		record("Schedule updated:\n"+schedule, false)
		return false, nil

	default:
		tool, ok := a.Registry.Get(call.Name)
		if !ok {
			record(fmt.Sprintf("unknown tool %q", call.Name), true)
			return false, nil
		}
		out, err := a.executeTool(ctx, state, tool, call.Args)
		if err != nil {
			a.Logger.Warn("tool call failed",
				zap.String("tool", call.Name),
				zap.Error(err),
			)
			record("tool error: "+err.Error(), true)
			return false, nil
		}
		record(out, false)
		return false, nil
	}
}

func (a *ExecutorAgent) executeTool(ctx context.Context, state *models.ConversationState, tool tools.Tool, args map[string]any) (string, error) {
	callCtx := ctx
	if a.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
	}
	withSession := make(map[string]any, len(args)+1)
	for k, v := range args {
		withSession[k] = v
	}
	withSession[tools.SessionIDArg] = state.ConversationID
	return tool.Execute(callCtx, withSession)
}

// synthesize rebuilds the personal schedule from every completed result, the
// current schedule and the in-flight task's history.
func (a *ExecutorAgent) synthesize(ctx context.Context, state *models.ConversationState, task *models.Task) (string, error) {
	callCtx := ctx
	if a.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
	}
	var b strings.Builder
	b.WriteString("Completed task results:\n")
	for _, t := range state.Plan.Completed() {
		fmt.Fprintf(&b, "- Task %d: %s\n  Result: %s\n", t.ID, t.Description, t.Result)
	}
	b.WriteString("\nPreviously synthesized schedule:\n")
	b.WriteString(orNone(state.SynthesizedSchedule))
	b.WriteString("\n\nCurrent task execution history:\n")
	b.WriteString(orNone(renderExecutionHistory(task.ExecutionHistory)))
	return a.Client.Generate(callCtx, synthesizerPrompt, b.String())
}

// taskContext is the per-turn user content of the executor: the task itself
// plus everything already gathered.
func taskContext(state *models.ConversationState, task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\n", task.Description)
	b.WriteString("\nPrevious tasks and results:\n")
	var listed bool
	for _, t := range state.Plan {
		if t.ID == task.ID {
			break
		}
		fmt.Fprintf(&b, "- Task %d (%s): %s\n  Result: %s\n", t.ID, t.Status, t.Description, orNone(t.Result))
		listed = true
	}
	if !listed {
		b.WriteString("(none)\n")
	}
	b.WriteString("\nGenerated schedule so far:\n")
	b.WriteString(orNone(state.SynthesizedSchedule))
	return b.String()
}

func renderExecutionHistory(entries []models.ExecutionEntry) string {
	var b strings.Builder
	for _, e := range entries {
		switch {
		case e.ToolCall != nil:
			fmt.Fprintf(&b, "assistant called %s\n", e.ToolCall.Name)
		case e.Role == "tool":
			fmt.Fprintf(&b, "%s returned: %s\n", e.ToolName, e.Content)
		case e.Content != "":
			fmt.Fprintf(&b, "assistant: %s\n", e.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
