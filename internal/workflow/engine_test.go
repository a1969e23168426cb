package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/store"
)

type fixture struct {
	engine *Engine
	runs   *store.WorkflowStore
	tasks  *store.TaskStore
	msgs   *store.MessageStore
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		runs:  store.NewWorkflowStore(db),
		tasks: store.NewTaskStore(db),
		msgs:  store.NewMessageStore(db),
		now:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(f.runs, f.tasks, f.msgs, log)
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) createTask(t *testing.T, due time.Time) domain.Task {
	t.Helper()
	task, err := f.tasks.Create(domain.Task{
		UserID:  "alice",
		Title:   "file the report",
		DueDate: &due,
	})
	require.NoError(t, err)
	return task
}

func (f *fixture) enqueueReminder(t *testing.T, task domain.Task) domain.WorkflowRun {
	t.Helper()
	run, err := f.engine.Enqueue(ReminderRun(task))
	require.NoError(t, err)
	return run
}

func TestReminder_FarFutureParksUntilLeadTime(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(48 * time.Hour)
	task := f.createTask(t, due)
	run := f.enqueueReminder(t, task)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSleeping, outcome.Status)
	assert.False(t, outcome.ReminderSent)

	stored, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WakeAt)
	assert.True(t, stored.WakeAt.Equal(due.Add(-24*time.Hour)))

	var deadline deadlineResult
	require.NoError(t, json.Unmarshal(stored.StepResults[StepComputeDeadline], &deadline))
	assert.False(t, deadline.ShouldSendNow)
	assert.True(t, deadline.RemindAt.Equal(due.Add(-24*time.Hour)))
}

func TestReminder_DueSoonSendsImmediately(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, f.now.Add(time.Hour))
	run := f.enqueueReminder(t, task)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.True(t, outcome.ReminderSent)

	stored, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	var deadline deadlineResult
	require.NoError(t, json.Unmarshal(stored.StepResults[StepComputeDeadline], &deadline))
	assert.True(t, deadline.ShouldSendNow)

	history, err := f.msgs.History("alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, "file the report")
	assert.Equal(t, "reminder", history[0].Metadata["tag"])
	assert.Equal(t, task.ID, history[0].Metadata["taskId"])
}

func TestReminder_CompletedTaskSuppressesSend(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, f.now.Add(time.Hour))
	run := f.enqueueReminder(t, task)

	_, err := f.tasks.Complete("alice", task.ID)
	require.NoError(t, err)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.False(t, outcome.ReminderSent)

	count, err := f.msgs.Count("alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReminder_DeletedTaskSuppressesSend(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(48 * time.Hour)
	task := f.createTask(t, due)
	run := f.enqueueReminder(t, task)

	// Park it first so verify already checkpointed the task as present.
	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RunSleeping, outcome.Status)

	require.NoError(t, f.tasks.Delete("alice", task.ID))
	f.now = due.Add(-time.Hour)

	outcome, err = f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.False(t, outcome.ReminderSent)
}

func TestReminder_MissingTaskIsFatal(t *testing.T) {
	f := newFixture(t)
	run, err := f.engine.Enqueue(domain.WorkflowRun{
		UserID: "alice",
		TaskID: "no-such-task",
		Action: domain.ActionReminder,
	})
	require.NoError(t, err)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, outcome.Status)
	assert.Equal(t, FatalTaskMissing, outcome.Code)

	stored, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, FatalTaskMissing, stored.Error)
}

func TestReminder_NoDueDateIsFatal(t *testing.T) {
	f := newFixture(t)
	task, err := f.tasks.Create(domain.Task{UserID: "alice", Title: "undated"})
	require.NoError(t, err)
	run := f.enqueueReminder(t, task)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, outcome.Status)
	assert.Equal(t, FatalNoDueDate, outcome.Code)
}

func TestReminder_WakesAndSendsAfterSleep(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(48 * time.Hour)
	task := f.createTask(t, due)
	run := f.enqueueReminder(t, task)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RunSleeping, outcome.Status)

	// Move past the wake time, as the worker's due scan would.
	f.now = due.Add(-23 * time.Hour)
	outcome, err = f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.True(t, outcome.ReminderSent)

	count, err := f.msgs.Count("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReminder_ResumeSkipsCheckpointedSend(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, f.now.Add(time.Hour))
	run := f.enqueueReminder(t, task)

	// A crash after the send checkpoint but before the final status write
	// leaves the run in running state with all steps done.
	require.NoError(t, f.runs.SaveStepResult(run.ID, StepVerify, verifyResult{Exists: true}))
	require.NoError(t, f.runs.SaveStepResult(run.ID, StepComputeDeadline, deadlineResult{
		RemindAt:      f.now.Add(-23 * time.Hour),
		ShouldSendNow: true,
	}))
	require.NoError(t, f.runs.SaveStepResult(run.ID, StepRecheck, recheckResult{Send: true}))
	require.NoError(t, f.runs.SaveStepResult(run.ID, StepSend, sendResult{Sent: true, MessageID: "m-prior"}))
	require.NoError(t, f.runs.SetStatus(run.ID, domain.RunRunning, ""))

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.True(t, outcome.ReminderSent)

	// Every step replayed from its checkpoint, so no second message.
	count, err := f.msgs.Count("alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExecute_CompletedRunIsNoop(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, f.now.Add(time.Hour))
	run := f.enqueueReminder(t, task)

	_, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)

	count, err := f.msgs.Count("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCleanup_DeletesOldCompletedTasks(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(time.Hour)
	old := f.createTask(t, due)
	fresh, err := f.tasks.Create(domain.Task{UserID: "alice", Title: "still open"})
	require.NoError(t, err)
	_, err = f.tasks.Complete("alice", old.ID)
	require.NoError(t, err)

	run, err := f.engine.Enqueue(CleanupRun("alice"))
	require.NoError(t, err)

	// Jump the clock past the retention window.
	f.now = time.Now().Add(RetentionWindow + 24*time.Hour)
	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.Equal(t, 1, outcome.Deleted)

	remaining, err := f.tasks.List("alice")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestCleanup_RetentionOverride(t *testing.T) {
	f := newFixture(t)
	f.engine.SetRetention(48 * time.Hour)

	task := f.createTask(t, f.now.Add(time.Hour))
	_, err := f.tasks.Complete("alice", task.ID)
	require.NoError(t, err)

	run, err := f.engine.Enqueue(CleanupRun("alice"))
	require.NoError(t, err)

	// Three days on: past the shortened window, well inside the default one.
	f.now = time.Now().Add(72 * time.Hour)
	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, outcome.Status)
	assert.Equal(t, 1, outcome.Deleted)
}

func TestExecute_UnknownActionFails(t *testing.T) {
	f := newFixture(t)
	run, err := f.engine.Enqueue(domain.WorkflowRun{UserID: "alice", Action: "launch_rocket"})
	require.NoError(t, err)

	outcome, err := f.engine.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, outcome.Status)
	assert.Equal(t, FatalUnknownAction, outcome.Code)
}

func TestExecute_ReservedActionsCompleteWithoutEffect(t *testing.T) {
	f := newFixture(t)
	for _, action := range []string{domain.ActionDecompose, domain.ActionSchedule} {
		run, err := f.engine.Enqueue(domain.WorkflowRun{UserID: "alice", Action: action})
		require.NoError(t, err)

		outcome, err := f.engine.Execute(context.Background(), run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, outcome.Status)
		assert.True(t, outcome.NotImplemented)
	}

	count, err := f.msgs.Count("alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestShouldSchedule(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	far := now.Add(48 * time.Hour)
	near := now.Add(time.Hour)

	assert.True(t, ShouldSchedule(domain.Task{DueDate: &far}, now))
	assert.False(t, ShouldSchedule(domain.Task{DueDate: &near}, now))
	assert.False(t, ShouldSchedule(domain.Task{}, now))
}

func TestWorker_RunDueExecutesWokenRuns(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(48 * time.Hour)
	task := f.createTask(t, due)
	run := f.enqueueReminder(t, task)
	worker := NewWorker(f.engine, f.runs, f.tasks, logging.New(nil, "silent"))

	// First scan picks up the pending run and parks it.
	assert.Equal(t, 1, worker.RunDue(context.Background()))
	stored, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSleeping, stored.Status)

	// Still sleeping, so the next scan leaves it alone.
	assert.Equal(t, 0, worker.RunDue(context.Background()))

	f.now = due.Add(-time.Hour)
	assert.Equal(t, 1, worker.RunDue(context.Background()))
	stored, err = f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, stored.Status)
}

func TestWorker_ConcurrentScansSendOneReminder(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, f.now.Add(time.Hour))
	run := f.enqueueReminder(t, task)
	worker := NewWorker(f.engine, f.runs, f.tasks, logging.New(nil, "silent"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.RunDue(context.Background())
		}()
	}
	wg.Wait()

	stored, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, stored.Status)

	count, err := f.msgs.Count("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorker_EnqueueCleanupsPerUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Create(domain.Task{UserID: "alice", Title: "a"})
	require.NoError(t, err)
	_, err = f.tasks.Create(domain.Task{UserID: "bob", Title: "b"})
	require.NoError(t, err)
	worker := NewWorker(f.engine, f.runs, f.tasks, logging.New(nil, "silent"))

	assert.Equal(t, 2, worker.EnqueueCleanups())

	for _, user := range []string{"alice", "bob"} {
		runs, err := f.runs.ListByUser(user)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, domain.ActionCleanup, runs[0].Action)
		assert.Equal(t, domain.RunPending, runs[0].Status)
	}
}
