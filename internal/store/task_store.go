package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/minder/internal/domain"
)

// TaskStore persists user tasks.
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a task store using the given database.
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

// Create inserts a new task. A zero ID, priority, or creation time is
// filled in.
func (s *TaskStore) Create(task domain.Task) (domain.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO tasks (id, user_id, title, description, due_date, completed, priority, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Title, task.Description,
		nullTime(task.DueDate), boolInt(task.Completed), task.Priority,
		task.CreatedAt.UTC().Format(time.RFC3339Nano), nullTime(task.CompletedAt),
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

// Get returns a task by id, scoped to the owning user.
func (s *TaskStore) Get(userID, taskID string) (domain.Task, error) {
	row := s.db.sql.QueryRow(
		`SELECT id, user_id, title, description, due_date, completed, priority, created_at, completed_at
		 FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrNotFound("task")
	}
	return task, err
}

// List returns all of a user's tasks, newest first.
func (s *TaskStore) List(userID string) ([]domain.Task, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, user_id, title, description, due_date, completed, priority, created_at, completed_at
		 FROM tasks WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update applies the non-nil fields of upd to a task.
func (s *TaskStore) Update(userID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	task, err := s.Get(userID, taskID)
	if err != nil {
		return domain.Task{}, err
	}

	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.DueDate != nil {
		task.DueDate = upd.DueDate
	}
	if upd.Priority != nil {
		task.Priority = *upd.Priority
	}

	_, err = s.db.sql.Exec(
		`UPDATE tasks SET title = ?, description = ?, due_date = ?, priority = ?
		 WHERE id = ? AND user_id = ?`,
		task.Title, task.Description, nullTime(task.DueDate), task.Priority,
		taskID, userID,
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("updating task: %w", err)
	}
	return task, nil
}

// Complete marks a task done, stamping completed_at. Completing an already
// completed task is a no-op that returns the current row.
func (s *TaskStore) Complete(userID, taskID string) (domain.Task, error) {
	task, err := s.Get(userID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.Completed {
		return task, nil
	}

	now := time.Now()
	_, err = s.db.sql.Exec(
		`UPDATE tasks SET completed = 1, completed_at = ? WHERE id = ? AND user_id = ?`,
		now.UTC().Format(time.RFC3339Nano), taskID, userID,
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("completing task: %w", err)
	}
	task.Completed = true
	task.CompletedAt = &now
	return task, nil
}

// Delete removes a task.
func (s *TaskStore) Delete(userID, taskID string) error {
	res, err := s.db.sql.Exec(
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("task")
	}
	return nil
}

// DeleteCompletedBefore removes a user's completed tasks whose completion
// time is older than cutoff, returning the number deleted.
func (s *TaskStore) DeleteCompletedBefore(userID string, cutoff time.Time) (int, error) {
	res, err := s.db.sql.Exec(
		`DELETE FROM tasks WHERE user_id = ? AND completed = 1 AND completed_at < ?`,
		userID, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting completed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UserIDs returns the distinct users that own at least one task.
func (s *TaskStore) UserIDs() ([]string, error) {
	rows, err := s.db.sql.Query(`SELECT DISTINCT user_id FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("listing task owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var task domain.Task
	var dueDate, completedAt sql.NullString
	var completed int
	var createdAt string

	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&dueDate, &completed, &task.Priority, &createdAt, &completedAt,
	)
	if err != nil {
		return domain.Task{}, err
	}

	task.Completed = completed != 0
	task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if dueDate.Valid {
		if t, err := time.Parse(time.RFC3339Nano, dueDate.String); err == nil {
			task.DueDate = &t
		}
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			task.CompletedAt = &t
		}
	}
	return task, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
