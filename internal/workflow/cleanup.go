package workflow

import (
	"context"

	"github.com/soyeahso/minder/internal/domain"
)

// cleanupResult is the checkpoint of the cleanup step.
type cleanupResult struct {
	Deleted int `json:"deleted"`
}

// runCleanup removes the user's completed tasks older than the retention
// window. One step, so a replayed run reports the original count instead of
// deleting twice.
func (e *Engine) runCleanup(ctx context.Context, run *domain.WorkflowRun) (*Outcome, error) {
	res, err := step(ctx, e, run, StepCleanup, func(ctx context.Context) (cleanupResult, error) {
		cutoff := e.now().Add(-e.retention)
		deleted, err := e.tasks.DeleteCompletedBefore(run.UserID, cutoff)
		if err != nil {
			return cleanupResult{}, err
		}
		return cleanupResult{Deleted: deleted}, nil
	})
	if err != nil {
		return e.fail(run, err)
	}

	if err := e.runs.SetStatus(run.ID, domain.RunCompleted, ""); err != nil {
		return nil, err
	}
	e.log.Info().
		Str("runId", run.ID).
		Str("userId", run.UserID).
		Int("deleted", res.Deleted).
		Msg("cleanup run completed")
	return &Outcome{RunID: run.ID, Status: domain.RunCompleted, Deleted: res.Deleted}, nil
}

// CleanupRun builds a cleanup run for one user.
func CleanupRun(userID string) domain.WorkflowRun {
	return domain.WorkflowRun{
		UserID: userID,
		Action: domain.ActionCleanup,
	}
}
