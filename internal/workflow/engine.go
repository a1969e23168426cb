// Package workflow runs durable, retryable multi-step background jobs.
//
// Every step's result is checkpointed to the store before the next step
// executes, so a crash resumes from the last completed step. Steps that
// perform side effects re-read live state first, which keeps re-execution
// after a restart idempotent. Sleeping is durable: a parked run holds a
// wake_at in the store and the worker picks it up, no goroutine is held.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/store"
)

// Step names. Checkpoints are keyed by these, so they are part of the
// persisted format.
const (
	StepVerify          = "verify"
	StepComputeDeadline = "compute_deadline"
	StepRecheck         = "recheck"
	StepSend            = "send"
	StepCleanup         = "cleanup"
)

// ReminderLead is how far ahead of a task's due date the reminder fires.
const ReminderLead = 24 * time.Hour

// RetentionWindow is how long completed tasks are kept before the cleanup
// sweep removes them.
const RetentionWindow = 30 * 24 * time.Hour

// maxStepAttempts bounds per-step retries of transient failures.
const maxStepAttempts = 3

// Fatal workflow error codes (carried in the run's error column).
const (
	FatalTaskMissing   = "task_missing"
	FatalNoDueDate     = "no_due_date"
	FatalUnknownAction = "unknown_action"
)

// Tasks is the live task state the engine consults before side effects.
type Tasks interface {
	Get(userID, taskID string) (domain.Task, error)
	DeleteCompletedBefore(userID string, cutoff time.Time) (int, error)
	UserIDs() ([]string, error)
}

// Conversation is the durable conversation log reminders are written into.
type Conversation interface {
	Append(userID string, msg domain.Message) (domain.Message, error)
}

// Outcome summarizes one Execute call on a run.
type Outcome struct {
	RunID          string `json:"runId"`
	Status         string `json:"status"`
	Code           string `json:"code,omitempty"`
	ReminderSent   bool   `json:"reminderSent"`
	Deleted        int    `json:"deleted,omitempty"`
	NotImplemented bool   `json:"notImplemented,omitempty"`
}

// Engine executes workflow runs against the durable store.
type Engine struct {
	runs      *store.WorkflowStore
	tasks     Tasks
	conv      Conversation
	log       *logging.Logger
	now       func() time.Time
	retention time.Duration
}

// NewEngine creates a workflow engine with the default retention window.
func NewEngine(runs *store.WorkflowStore, tasks Tasks, conv Conversation, log *logging.Logger) *Engine {
	return &Engine{
		runs:      runs,
		tasks:     tasks,
		conv:      conv,
		log:       log.Sub("workflow"),
		now:       time.Now,
		retention: RetentionWindow,
	}
}

// SetRetention overrides how long completed tasks are kept before the
// cleanup sweep removes them. Non-positive values are ignored.
func (e *Engine) SetRetention(d time.Duration) {
	if d > 0 {
		e.retention = d
	}
}

// Enqueue persists a new pending run.
func (e *Engine) Enqueue(run domain.WorkflowRun) (domain.WorkflowRun, error) {
	created, err := e.runs.Create(run)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	e.log.Info().
		Str("runId", created.ID).
		Str("action", created.Action).
		Str("userId", created.UserID).
		Str("taskId", created.TaskID).
		Msg("workflow run enqueued")
	return created, nil
}

// ShouldSchedule reports whether a freshly saved task warrants a reminder
// run: it needs a due date more than the reminder lead out.
func ShouldSchedule(task domain.Task, now time.Time) bool {
	return task.DueDate != nil && task.DueDate.After(now.Add(ReminderLead))
}

// ReminderRun builds the reminder run params for a task snapshot.
func ReminderRun(task domain.Task) domain.WorkflowRun {
	return domain.WorkflowRun{
		UserID:    task.UserID,
		TaskID:    task.ID,
		Action:    domain.ActionReminder,
		DueDate:   task.DueDate,
		TaskTitle: task.Title,
	}
}

// Execute advances a run as far as it can go: to completion, to a durable
// sleep, or to a terminal failure. It is safe to call again on the same run;
// completed steps are replayed from their checkpoints, never re-executed.
func (e *Engine) Execute(ctx context.Context, runID string) (*Outcome, error) {
	run, err := e.runs.Get(runID)
	if err != nil {
		return nil, err
	}
	if run.Status == domain.RunCompleted || run.Status == domain.RunFailed {
		return &Outcome{RunID: run.ID, Status: run.Status, Code: run.Error}, nil
	}

	if err := e.runs.SetStatus(run.ID, domain.RunRunning, ""); err != nil {
		return nil, err
	}

	switch run.Action {
	case domain.ActionReminder:
		return e.runReminder(ctx, &run)
	case domain.ActionCleanup:
		return e.runCleanup(ctx, &run)
	case domain.ActionDecompose, domain.ActionSchedule:
		// Reserved extension points: recognized, not failures.
		if err := e.runs.SetStatus(run.ID, domain.RunCompleted, ""); err != nil {
			return nil, err
		}
		e.log.Info().Str("runId", run.ID).Str("action", run.Action).Msg("action not implemented, completing without effect")
		return &Outcome{RunID: run.ID, Status: domain.RunCompleted, NotImplemented: true}, nil
	default:
		if err := e.runs.SetStatus(run.ID, domain.RunFailed, FatalUnknownAction); err != nil {
			return nil, err
		}
		e.log.Warn().Str("runId", run.ID).Str("action", run.Action).Msg("unknown workflow action")
		return &Outcome{RunID: run.ID, Status: domain.RunFailed, Code: FatalUnknownAction}, nil
	}
}

// fatalError marks a step failure that must not be retried and ends the run.
type fatalError struct {
	code string
	err  error
}

func (f *fatalError) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %v", f.code, f.err)
	}
	return f.code
}

func (f *fatalError) Unwrap() error { return f.err }

func fatal(code string) error { return &fatalError{code: code} }

// step replays a checkpointed result for name, or executes fn with retry and
// checkpoints its result before returning. Transient failures are retried
// with linear backoff; fatal failures abort immediately.
func step[T any](ctx context.Context, e *Engine, run *domain.WorkflowRun, name string, fn func(context.Context) (T, error)) (T, error) {
	var result T

	if raw, ok := run.StepResults[name]; ok {
		if err := json.Unmarshal(raw, &result); err != nil {
			return result, fmt.Errorf("replaying step %s: %w", name, err)
		}
		e.log.Debug().Str("runId", run.ID).Str("step", name).Msg("step replayed from checkpoint")
		return result, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxStepAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			if err := e.runs.SaveStepResult(run.ID, name, out); err != nil {
				return result, fmt.Errorf("checkpointing step %s: %w", name, err)
			}
			if run.StepResults == nil {
				run.StepResults = map[string]json.RawMessage{}
			}
			raw, _ := json.Marshal(out)
			run.StepResults[name] = raw
			return out, nil
		}

		var fe *fatalError
		if errors.As(err, &fe) {
			return result, err
		}
		lastErr = err

		e.log.Warn().Err(err).
			Str("runId", run.ID).
			Str("step", name).
			Int("attempt", attempt+1).
			Msg("step failed, will retry")

		if attempt < maxStepAttempts-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt+1)):
			}
		}
	}
	return result, lastErr
}

// fail marks the run failed with a stable code.
func (e *Engine) fail(run *domain.WorkflowRun, err error) (*Outcome, error) {
	code := domain.CodeBackend
	var fe *fatalError
	if errors.As(err, &fe) {
		code = fe.code
	}

	if serr := e.runs.SetStatus(run.ID, domain.RunFailed, code); serr != nil {
		return nil, serr
	}
	e.log.Error().Err(err).Str("runId", run.ID).Str("code", code).Msg("workflow run failed")
	return &Outcome{RunID: run.ID, Status: domain.RunFailed, Code: code}, nil
}
