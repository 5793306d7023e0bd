package repo

import (
	"context"
	"errors"

	"github.com/taskfolio/taskfolio-go/internal/domain"
)

// ErrNotFound is returned for records that are absent or invisible to the
// caller. Stores scope every read by owner, so a foreign-owned record is
// indistinguishable from a missing one.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned on unique-key violations (client registration).
var ErrAlreadyExists = errors.New("already exists")

type ListFilter struct {
	OwnerID string
	Limit   int
	Offset  int
}

type TaskFilter struct {
	ListID string
	Limit  int
	Offset int
}

// ListMutation runs inside the store transaction with the list row locked.
// tasks holds the list's live (non-deleted) children. Returning false skips
// the write, leaving the record untouched.
type ListMutation func(list *domain.List, tasks []domain.Task) (bool, error)

// TaskMutation runs inside the store transaction with the parent list and the
// task row locked. Returning false skips the write.
type TaskMutation func(task *domain.Task) (bool, error)

// TaskBuild constructs a new task while the parent row lock is held.
type TaskBuild func(parent domain.List) (domain.Task, error)

// ListRepository is the store adapter for lists. Mutate executes its callback
// and the resulting write as one atomic unit against the list aggregate.
type ListRepository interface {
	Create(ctx context.Context, list domain.List) error
	Get(ctx context.Context, ownerID, id string) (domain.List, error)
	List(ctx context.Context, filter ListFilter) ([]domain.List, error)
	Mutate(ctx context.Context, ownerID, id string, fn ListMutation) (domain.List, error)
}

// TaskRepository is the store adapter for tasks. Create and Mutate resolve the
// parent list under lock first; parentCheck runs before the task itself is
// looked up, so parent-state failures take precedence over task-level ones.
type TaskRepository interface {
	Create(ctx context.Context, ownerID, listID string, build TaskBuild) (domain.Task, error)
	Get(ctx context.Context, listID, id string) (domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Mutate(ctx context.Context, ownerID, listID, id string, parentCheck func(domain.List) error, fn TaskMutation) (domain.Task, error)
}

// ClientRepository manages registered API clients.
type ClientRepository interface {
	Create(ctx context.Context, client domain.APIClient) error
	Get(ctx context.Context, id string) (domain.APIClient, error)
}

// AuditEventAppender ensures append-only audit writes.
type AuditEventAppender interface {
	Append(ctx context.Context, event domain.AuditEvent) (int64, error)
}
