package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

type TaskStore struct {
	db DB
}

func NewTaskStore(db DB) *TaskStore {
	if db == nil {
		return nil
	}
	return &TaskStore{db: db}
}

// Create resolves the parent list under lock, lets build construct the task
// against the locked parent, and inserts it in the same transaction.
func (s *TaskStore) Create(ctx context.Context, ownerID, listID string, build repo.TaskBuild) (domain.Task, error) {
	if s == nil || s.db == nil {
		return domain.Task{}, fmt.Errorf("task store not initialized")
	}
	ownerID = strings.TrimSpace(ownerID)
	listID = strings.TrimSpace(listID)
	if ownerID == "" {
		return domain.Task{}, fmt.Errorf("owner id is required")
	}
	if listID == "" {
		return domain.Task{}, fmt.Errorf("list id is required")
	}
	if build == nil {
		return domain.Task{}, fmt.Errorf("task build is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	parent, err := lockList(ctx, tx, ownerID, listID)
	if err != nil {
		return domain.Task{}, err
	}

	task, err := build(parent)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.Validate(); err != nil {
		return domain.Task{}, err
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO tasks (
			task_id,
			list_id,
			title,
			description,
			status,
			priority,
			due_date,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		strings.TrimSpace(task.ID),
		strings.TrimSpace(task.ListID),
		strings.TrimSpace(task.Title),
		strings.TrimSpace(task.Description),
		string(task.Status),
		string(task.Priority),
		nullTime(task.DueDate),
		normalizeTime(task.CreatedAt),
		normalizeTime(task.UpdatedAt),
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

func (s *TaskStore) Get(ctx context.Context, listID, id string) (domain.Task, error) {
	if s == nil || s.db == nil {
		return domain.Task{}, fmt.Errorf("task store not initialized")
	}
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return domain.Task{}, fmt.Errorf("list id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, fmt.Errorf("task id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT task_id, list_id, title, description, status, priority, due_date, created_at, updated_at
		 FROM tasks
		 WHERE list_id = $1 AND task_id = $2`,
		listID,
		id,
	)
	return scanTask(row)
}

// List returns the list's tasks with soft-deleted rows filtered out.
func (s *TaskStore) List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("task store not initialized")
	}
	if strings.TrimSpace(filter.ListID) == "" {
		return nil, fmt.Errorf("list id is required")
	}
	args := []any{strings.TrimSpace(filter.ListID), string(domain.TaskStatusDeleted)}
	query := `SELECT task_id, list_id, title, description, status, priority, due_date, created_at, updated_at
		 FROM tasks
		 WHERE list_id = $1 AND status <> $2
		 ORDER BY created_at DESC, task_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Mutate locks the parent list first and runs parentCheck before the task row
// is even looked up, so parent-state failures win over task-level ones. The
// task write happens under both locks.
func (s *TaskStore) Mutate(ctx context.Context, ownerID, listID, id string, parentCheck func(domain.List) error, fn repo.TaskMutation) (domain.Task, error) {
	if s == nil || s.db == nil {
		return domain.Task{}, fmt.Errorf("task store not initialized")
	}
	ownerID = strings.TrimSpace(ownerID)
	listID = strings.TrimSpace(listID)
	id = strings.TrimSpace(id)
	if ownerID == "" {
		return domain.Task{}, fmt.Errorf("owner id is required")
	}
	if listID == "" {
		return domain.Task{}, fmt.Errorf("list id is required")
	}
	if id == "" {
		return domain.Task{}, fmt.Errorf("task id is required")
	}
	if fn == nil {
		return domain.Task{}, fmt.Errorf("mutation is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	parent, err := lockList(ctx, tx, ownerID, listID)
	if err != nil {
		return domain.Task{}, err
	}
	if parentCheck != nil {
		if err := parentCheck(parent); err != nil {
			return domain.Task{}, err
		}
	}

	row := tx.QueryRowContext(
		ctx,
		`SELECT task_id, list_id, title, description, status, priority, due_date, created_at, updated_at
		 FROM tasks
		 WHERE list_id = $1 AND task_id = $2
		 FOR UPDATE`,
		listID,
		id,
	)
	task, err := scanTask(row)
	if err != nil {
		return domain.Task{}, err
	}

	write, err := fn(&task)
	if err != nil {
		return domain.Task{}, err
	}
	if !write {
		return task, nil
	}

	if err := task.Validate(); err != nil {
		return domain.Task{}, err
	}
	row = tx.QueryRowContext(
		ctx,
		`UPDATE tasks
		 SET title = $3, description = $4, status = $5, priority = $6, due_date = $7, updated_at = now()
		 WHERE list_id = $1 AND task_id = $2
		 RETURNING updated_at`,
		listID,
		id,
		strings.TrimSpace(task.Title),
		strings.TrimSpace(task.Description),
		string(task.Status),
		string(task.Priority),
		nullTime(task.DueDate),
	)
	if err := row.Scan(&task.UpdatedAt); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

func lockList(ctx context.Context, tx *sql.Tx, ownerID, listID string) (domain.List, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT list_id, owner_id, title, description, status, created_at, updated_at
		 FROM lists
		 WHERE owner_id = $1 AND list_id = $2
		 FOR UPDATE`,
		ownerID,
		listID,
	)
	return scanList(row)
}

func scanTask(row rowScanner) (domain.Task, error) {
	var task domain.Task
	var status, priority string
	var due sql.NullTime
	if err := row.Scan(&task.ID, &task.ListID, &task.Title, &task.Description, &status, &priority, &due, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return domain.Task{}, handleNotFound(err)
	}
	task.Status = domain.TaskStatus(status)
	task.Priority = domain.TaskPriority(priority)
	task.DueDate = timePtr(due)
	return task, nil
}

func scanTaskRows(rows *sql.Rows) (domain.Task, error) {
	task, err := scanTask(rows)
	if err != nil {
		return domain.Task{}, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}
