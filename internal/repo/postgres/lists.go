package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

type ListStore struct {
	db DB
}

func NewListStore(db DB) *ListStore {
	if db == nil {
		return nil
	}
	return &ListStore{db: db}
}

func (s *ListStore) Create(ctx context.Context, list domain.List) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("list store not initialized")
	}
	if err := list.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO lists (
			list_id,
			owner_id,
			title,
			description,
			status,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		strings.TrimSpace(list.ID),
		strings.TrimSpace(list.OwnerID),
		strings.TrimSpace(list.Title),
		strings.TrimSpace(list.Description),
		string(list.Status),
		normalizeTime(list.CreatedAt),
		normalizeTime(list.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

func (s *ListStore) Get(ctx context.Context, ownerID, id string) (domain.List, error) {
	if s == nil || s.db == nil {
		return domain.List{}, fmt.Errorf("list store not initialized")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.List{}, fmt.Errorf("owner id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.List{}, fmt.Errorf("list id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT list_id, owner_id, title, description, status, created_at, updated_at
		 FROM lists
		 WHERE owner_id = $1 AND list_id = $2`,
		ownerID,
		id,
	)
	return scanList(row)
}

// List returns the owner's lists with soft-deleted rows filtered out.
func (s *ListStore) List(ctx context.Context, filter repo.ListFilter) ([]domain.List, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("list store not initialized")
	}
	if strings.TrimSpace(filter.OwnerID) == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	args := []any{strings.TrimSpace(filter.OwnerID), string(domain.ListStatusDeleted)}
	query := `SELECT list_id, owner_id, title, description, status, created_at, updated_at
		 FROM lists
		 WHERE owner_id = $1 AND status <> $2
		 ORDER BY created_at DESC, list_id`
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
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	lists := make([]domain.List, 0)
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	return lists, nil
}

// Mutate locks the list row, loads its live child tasks, runs fn, and writes
// the result in the same transaction. The precondition check and the status
// write are one atomic unit.
func (s *ListStore) Mutate(ctx context.Context, ownerID, id string, fn repo.ListMutation) (domain.List, error) {
	if s == nil || s.db == nil {
		return domain.List{}, fmt.Errorf("list store not initialized")
	}
	ownerID = strings.TrimSpace(ownerID)
	id = strings.TrimSpace(id)
	if ownerID == "" {
		return domain.List{}, fmt.Errorf("owner id is required")
	}
	if id == "" {
		return domain.List{}, fmt.Errorf("list id is required")
	}
	if fn == nil {
		return domain.List{}, fmt.Errorf("mutation is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.List{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(
		ctx,
		`SELECT list_id, owner_id, title, description, status, created_at, updated_at
		 FROM lists
		 WHERE owner_id = $1 AND list_id = $2
		 FOR UPDATE`,
		ownerID,
		id,
	)
	list, err := scanList(row)
	if err != nil {
		return domain.List{}, err
	}

	tasks, err := loadLiveTasks(ctx, tx, list.ID)
	if err != nil {
		return domain.List{}, err
	}

	write, err := fn(&list, tasks)
	if err != nil {
		return domain.List{}, err
	}
	if !write {
		return list, nil
	}

	if err := list.Validate(); err != nil {
		return domain.List{}, err
	}
	row = tx.QueryRowContext(
		ctx,
		`UPDATE lists
		 SET title = $3, description = $4, status = $5, updated_at = now()
		 WHERE owner_id = $1 AND list_id = $2
		 RETURNING updated_at`,
		ownerID,
		id,
		strings.TrimSpace(list.Title),
		strings.TrimSpace(list.Description),
		string(list.Status),
	)
	if err := row.Scan(&list.UpdatedAt); err != nil {
		return domain.List{}, fmt.Errorf("update list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.List{}, fmt.Errorf("commit: %w", err)
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(row rowScanner) (domain.List, error) {
	var list domain.List
	var status string
	if err := row.Scan(&list.ID, &list.OwnerID, &list.Title, &list.Description, &status, &list.CreatedAt, &list.UpdatedAt); err != nil {
		return domain.List{}, handleNotFound(err)
	}
	parsed, ok := domain.ParseListStatus(status)
	if !ok {
		return domain.List{}, fmt.Errorf("list %s: unknown status %q", list.ID, status)
	}
	list.Status = parsed
	return list, nil
}

func loadLiveTasks(ctx context.Context, q DBQuerier, listID string) ([]domain.Task, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT task_id, list_id, title, description, status, priority, due_date, created_at, updated_at
		 FROM tasks
		 WHERE list_id = $1 AND status <> $2`,
		listID,
		string(domain.TaskStatusDeleted),
	)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
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
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tasks, nil
}

// DBQuerier is the read-only subset shared by *sql.DB and *sql.Tx.
type DBQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
