package workflow

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/store"
)

// Cron expressions for the worker's two jobs.
const (
	dueScanSchedule = "* * * * *"
	cleanupSchedule = "0 4 * * *"
)

// Worker polls the store for due runs and drives them through the engine.
// Because sleeping runs hold no goroutine, the minutely scan is the only
// thing that moves parked work forward.
type Worker struct {
	engine *Engine
	runs   *store.WorkflowStore
	tasks  Tasks
	log    *logging.Logger
	scanMu sync.Mutex
}

// NewWorker creates a worker over the engine's store.
func NewWorker(engine *Engine, runs *store.WorkflowStore, tasks Tasks, log *logging.Logger) *Worker {
	return &Worker{
		engine: engine,
		runs:   runs,
		tasks:  tasks,
		log:    log.Sub("worker"),
	}
}

// Start runs the cron scheduler until ctx is cancelled. It performs one due
// scan immediately on startup so runs that came due while the process was
// down are not delayed a full minute.
func (w *Worker) Start(ctx context.Context) error {
	w.RunDue(ctx)

	c := cron.New()
	if _, err := c.AddFunc(dueScanSchedule, func() { w.RunDue(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(cleanupSchedule, func() { w.EnqueueCleanups() }); err != nil {
		return err
	}
	c.Start()
	w.log.Info().Msg("workflow worker started")

	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("workflow worker stopped")
	return ctx.Err()
}

// RunDue executes every run whose wake time has arrived and returns how many
// it touched. Failures are logged and skipped so one broken run cannot stall
// the rest of the queue. Scans are mutually exclusive: a scan outlasting the
// tick interval delays the next one rather than overlapping it, since the
// due query also returns in-flight runs whose steps have not checkpointed.
func (w *Worker) RunDue(ctx context.Context) int {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	due, err := w.runs.Due(w.engine.now())
	if err != nil {
		w.log.Error().Err(err).Msg("due scan failed")
		return 0
	}

	executed := 0
	for _, run := range due {
		if ctx.Err() != nil {
			return executed
		}
		outcome, err := w.engine.Execute(ctx, run.ID)
		if err != nil {
			w.log.Error().Err(err).Str("runId", run.ID).Msg("run execution failed")
			continue
		}
		executed++
		w.log.Debug().
			Str("runId", outcome.RunID).
			Str("status", outcome.Status).
			Msg("run advanced")
	}
	return executed
}

// EnqueueCleanups schedules a retention sweep for every known user and
// returns how many runs it enqueued.
func (w *Worker) EnqueueCleanups() int {
	users, err := w.tasks.UserIDs()
	if err != nil {
		w.log.Error().Err(err).Msg("listing users for cleanup failed")
		return 0
	}

	enqueued := 0
	for _, userID := range users {
		if _, err := w.engine.Enqueue(CleanupRun(userID)); err != nil {
			w.log.Error().Err(err).Str("userId", userID).Msg("enqueueing cleanup failed")
			continue
		}
		enqueued++
	}
	return enqueued
}
