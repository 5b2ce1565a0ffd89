package models

import "fmt"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// Task status transitions: pending → in_progress → completed|failed.
// No skipping and no reopening of terminal tasks.
var validTaskTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInProgress: true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

func (s Status) Terminal() bool { return terminalStatuses[s] }

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Transition moves the task to next, enforcing the transition table.
func (t *Task) Transition(next Status) error {
	if !next.Valid() {
		return fmt.Errorf("unknown status %q", next)
	}
	if !validTaskTransitions[t.Status][next] {
		return fmt.Errorf("invalid task transition %s -> %s (task %d)", t.Status, next, t.ID)
	}
	t.Status = next
	return nil
}
