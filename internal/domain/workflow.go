package domain

import (
	"encoding/json"
	"time"
)

// Workflow actions.
const (
	ActionReminder  = "reminder"
	ActionDecompose = "decompose"
	ActionSchedule  = "schedule"
	ActionCleanup   = "cleanup"
)

// Workflow run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSleeping  = "sleeping"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// WorkflowRun is a durable multi-step background job. Each step's result is
// checkpointed before the next step runs, so a crash mid-run resumes from
// the last completed step rather than from the start.
type WorkflowRun struct {
	ID          string                     `json:"id"`
	UserID      string                     `json:"userId"`
	TaskID      string                     `json:"taskId,omitempty"`
	Action      string                     `json:"action"`
	DueDate     *time.Time                 `json:"dueDate,omitempty"`
	TaskTitle   string                     `json:"taskTitle,omitempty"`
	Status      string                     `json:"status"`
	WakeAt      *time.Time                 `json:"wakeAt,omitempty"`
	StepResults map[string]json.RawMessage `json:"stepResults,omitempty"`
	Error       string                     `json:"error,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

// StepDone reports whether a named step has a checkpointed result.
func (r *WorkflowRun) StepDone(step string) bool {
	_, ok := r.StepResults[step]
	return ok
}
