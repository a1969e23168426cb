package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/minder/internal/domain"
)

// verifyResult is the checkpoint of the verify step.
type verifyResult struct {
	Exists bool `json:"exists"`
}

// deadlineResult is the checkpoint of the compute_deadline step.
type deadlineResult struct {
	RemindAt      time.Time `json:"remindAt"`
	ShouldSendNow bool      `json:"shouldSendNow"`
}

// recheckResult is the checkpoint of the recheck step.
type recheckResult struct {
	Send   bool   `json:"send"`
	Reason string `json:"reason,omitempty"`
}

// sendResult is the checkpoint of the send step.
type sendResult struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"messageId,omitempty"`
}

// runReminder drives a reminder run: verify the task, compute the reminder
// instant, park until it arrives, then re-read the task and notify only if
// it is still open.
func (e *Engine) runReminder(ctx context.Context, run *domain.WorkflowRun) (*Outcome, error) {
	_, err := step(ctx, e, run, StepVerify, func(ctx context.Context) (verifyResult, error) {
		_, err := e.tasks.Get(run.UserID, run.TaskID)
		if err != nil {
			if domain.CodeOf(err) == domain.CodeNotFound {
				return verifyResult{}, &fatalError{code: FatalTaskMissing, err: err}
			}
			return verifyResult{}, err
		}
		return verifyResult{Exists: true}, nil
	})
	if err != nil {
		return e.fail(run, err)
	}

	deadline, err := step(ctx, e, run, StepComputeDeadline, func(ctx context.Context) (deadlineResult, error) {
		if run.DueDate == nil {
			return deadlineResult{}, fatal(FatalNoDueDate)
		}
		remindAt := run.DueDate.Add(-ReminderLead)
		return deadlineResult{
			RemindAt:      remindAt,
			ShouldSendNow: !remindAt.After(e.now()),
		}, nil
	})
	if err != nil {
		return e.fail(run, err)
	}

	// The sleep decision compares the checkpointed instant against the
	// current clock, so a woken run falls through instead of re-parking.
	if deadline.RemindAt.After(e.now()) {
		if err := e.runs.Sleep(run.ID, deadline.RemindAt); err != nil {
			return nil, err
		}
		e.log.Info().
			Str("runId", run.ID).
			Time("wakeAt", deadline.RemindAt).
			Msg("reminder parked until wake time")
		return &Outcome{RunID: run.ID, Status: domain.RunSleeping}, nil
	}

	recheck, err := step(ctx, e, run, StepRecheck, func(ctx context.Context) (recheckResult, error) {
		task, err := e.tasks.Get(run.UserID, run.TaskID)
		if err != nil {
			if domain.CodeOf(err) == domain.CodeNotFound {
				return recheckResult{Send: false, Reason: "task_gone"}, nil
			}
			return recheckResult{}, err
		}
		if task.Completed {
			return recheckResult{Send: false, Reason: "completed"}, nil
		}
		return recheckResult{Send: true}, nil
	})
	if err != nil {
		return e.fail(run, err)
	}

	sent, err := step(ctx, e, run, StepSend, func(ctx context.Context) (sendResult, error) {
		if !recheck.Send {
			return sendResult{Sent: false}, nil
		}
		msg, err := e.conv.Append(run.UserID, domain.Message{
			Role:    domain.RoleSystem,
			Content: reminderText(run),
			Metadata: map[string]string{
				"tag":    "reminder",
				"taskId": run.TaskID,
			},
		})
		if err != nil {
			return sendResult{}, err
		}
		return sendResult{Sent: true, MessageID: msg.ID}, nil
	})
	if err != nil {
		return e.fail(run, err)
	}

	if err := e.runs.SetStatus(run.ID, domain.RunCompleted, ""); err != nil {
		return nil, err
	}
	e.log.Info().
		Str("runId", run.ID).
		Bool("reminderSent", sent.Sent).
		Str("reason", recheck.Reason).
		Msg("reminder run completed")
	return &Outcome{RunID: run.ID, Status: domain.RunCompleted, ReminderSent: sent.Sent}, nil
}

// reminderText renders the system message delivered to the user's
// conversation when a reminder fires.
func reminderText(run *domain.WorkflowRun) string {
	if run.DueDate != nil {
		return fmt.Sprintf("Reminder: %q is due %s.", run.TaskTitle, run.DueDate.Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	return fmt.Sprintf("Reminder: %q is due soon.", run.TaskTitle)
}
