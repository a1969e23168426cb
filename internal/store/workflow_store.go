package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/minder/internal/domain"
)

// WorkflowStore persists workflow runs and their per-step checkpoints.
type WorkflowStore struct {
	db *DB
}

// NewWorkflowStore creates a workflow store using the given database.
func NewWorkflowStore(db *DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// Create inserts a new pending run.
func (s *WorkflowStore) Create(run domain.WorkflowRun) (domain.WorkflowRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = domain.RunPending
	}
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now

	steps, err := json.Marshal(orEmpty(run.StepResults))
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("encoding step results: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO workflow_runs
		   (id, user_id, task_id, action, due_date, task_title, status, wake_at, step_results, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.TaskID, run.Action,
		nullTime(run.DueDate), run.TaskTitle, run.Status, nullTime(run.WakeAt),
		string(steps), run.Error,
		now.UTC().Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("creating workflow run: %w", err)
	}
	return run, nil
}

// Get returns a run by id.
func (s *WorkflowStore) Get(runID string) (domain.WorkflowRun, error) {
	row := s.db.sql.QueryRow(
		`SELECT id, user_id, task_id, action, due_date, task_title, status, wake_at, step_results, error, created_at, updated_at
		 FROM workflow_runs WHERE id = ?`, runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkflowRun{}, domain.ErrNotFound("workflow run")
	}
	return run, err
}

// SaveStepResult checkpoints a completed step's result. The checkpoint is
// durable before the next step executes.
func (s *WorkflowStore) SaveStepResult(runID, step string, result any) error {
	run, err := s.Get(runID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding step result: %w", err)
	}

	results := orEmpty(run.StepResults)
	results[step] = data
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding step results: %w", err)
	}

	_, err = s.db.sql.Exec(
		`UPDATE workflow_runs SET step_results = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("saving step result: %w", err)
	}
	return nil
}

// SetStatus transitions a run's status and error string.
func (s *WorkflowStore) SetStatus(runID, status, errMsg string) error {
	_, err := s.db.sql.Exec(
		`UPDATE workflow_runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("setting run status: %w", err)
	}
	return nil
}

// Sleep parks a run until wakeAt.
func (s *WorkflowStore) Sleep(runID string, wakeAt time.Time) error {
	_, err := s.db.sql.Exec(
		`UPDATE workflow_runs SET status = ?, wake_at = ?, updated_at = ? WHERE id = ?`,
		domain.RunSleeping, wakeAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("parking run: %w", err)
	}
	return nil
}

// Due returns runs ready to execute at the given instant: pending runs, and
// sleeping runs whose wake time has passed. Runs interrupted mid-execution
// (status running) are also returned so a restart resumes them.
func (s *WorkflowStore) Due(now time.Time) ([]domain.WorkflowRun, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, user_id, task_id, action, due_date, task_title, status, wake_at, step_results, error, created_at, updated_at
		 FROM workflow_runs
		 WHERE status = ? OR status = ?
		    OR (status = ? AND wake_at <= ?)
		 ORDER BY created_at ASC`,
		domain.RunPending, domain.RunRunning,
		domain.RunSleeping, now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("querying due runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListByUser returns all runs for a user, newest first.
func (s *WorkflowStore) ListByUser(userID string) ([]domain.WorkflowRun, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, user_id, task_id, action, due_date, task_title, status, wake_at, step_results, error, created_at, updated_at
		 FROM workflow_runs WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	var dueDate, wakeAt sql.NullString
	var steps, createdAt, updatedAt string

	err := row.Scan(
		&run.ID, &run.UserID, &run.TaskID, &run.Action,
		&dueDate, &run.TaskTitle, &run.Status, &wakeAt,
		&steps, &run.Error, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.WorkflowRun{}, err
	}

	if dueDate.Valid {
		if t, err := time.Parse(time.RFC3339Nano, dueDate.String); err == nil {
			run.DueDate = &t
		}
	}
	if wakeAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, wakeAt.String); err == nil {
			run.WakeAt = &t
		}
	}
	_ = json.Unmarshal([]byte(steps), &run.StepResults)
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return run, nil
}

func orEmpty(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return map[string]json.RawMessage{}
	}
	return m
}
