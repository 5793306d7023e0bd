package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

type fakeListRepo struct {
	lists map[string]domain.List
}

func (f *fakeListRepo) Create(ctx context.Context, list domain.List) error {
	f.lists[list.ID] = list
	return nil
}

func (f *fakeListRepo) Get(ctx context.Context, ownerID, id string) (domain.List, error) {
	list, ok := f.lists[id]
	if !ok || list.OwnerID != ownerID {
		return domain.List{}, repo.ErrNotFound
	}
	return list, nil
}

func (f *fakeListRepo) List(ctx context.Context, filter repo.ListFilter) ([]domain.List, error) {
	return nil, nil
}

func (f *fakeListRepo) Mutate(ctx context.Context, ownerID, id string, fn repo.ListMutation) (domain.List, error) {
	list, ok := f.lists[id]
	if !ok || list.OwnerID != ownerID {
		return domain.List{}, repo.ErrNotFound
	}
	write, err := fn(&list, nil)
	if err != nil {
		return domain.List{}, err
	}
	if write {
		f.lists[id] = list
	}
	return list, nil
}

type fakeTaskRepo struct {
	parent *fakeListRepo
	tasks  map[string]domain.Task
}

func (f *fakeTaskRepo) Create(ctx context.Context, ownerID, listID string, build repo.TaskBuild) (domain.Task, error) {
	parent, err := f.parent.Get(ctx, ownerID, listID)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := build(parent)
	if err != nil {
		return domain.Task{}, err
	}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Get(ctx context.Context, listID, id string) (domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok || task.ListID != listID {
		return domain.Task{}, repo.ErrNotFound
	}
	return task, nil
}

func (f *fakeTaskRepo) List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, error) {
	out := make([]domain.Task, 0)
	for _, task := range f.tasks {
		if task.ListID != filter.ListID || task.Status == domain.TaskStatusDeleted {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (f *fakeTaskRepo) Mutate(ctx context.Context, ownerID, listID, id string, parentCheck func(domain.List) error, fn repo.TaskMutation) (domain.Task, error) {
	parent, err := f.parent.Get(ctx, ownerID, listID)
	if err != nil {
		return domain.Task{}, err
	}
	if parentCheck != nil {
		if err := parentCheck(parent); err != nil {
			return domain.Task{}, err
		}
	}
	task, ok := f.tasks[id]
	if !ok || task.ListID != listID {
		return domain.Task{}, repo.ErrNotFound
	}
	write, err := fn(&task)
	if err != nil {
		return domain.Task{}, err
	}
	if write {
		task.UpdatedAt = time.Now().UTC()
		f.tasks[id] = task
	}
	return task, nil
}

type fakeAuditAppender struct {
	events []domain.AuditEvent
}

func (f *fakeAuditAppender) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

type failingAuditAppender struct{}

func (failingAuditAppender) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	return 0, errors.New("audit store down")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(parentStatus domain.ListStatus) (*fakeListRepo, *fakeTaskRepo, *fakeAuditAppender, *Service) {
	now := time.Now().UTC()
	lists := &fakeListRepo{lists: map[string]domain.List{
		"l1": {ID: "l1", OwnerID: "alice", Title: "groceries", Status: parentStatus, CreatedAt: now, UpdatedAt: now},
	}}
	tasks := &fakeTaskRepo{parent: lists, tasks: map[string]domain.Task{}}
	appender := &fakeAuditAppender{}
	return lists, tasks, appender, New(testLogger(), lists, tasks, appender)
}

func seedTask(tasks *fakeTaskRepo, id string, status domain.TaskStatus) {
	now := time.Now().UTC()
	tasks.tasks[id] = domain.Task{
		ID:        id,
		ListID:    "l1",
		Title:     "milk",
		Status:    status,
		Priority:  domain.TaskPriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	_, _, appender, svc := newFixture(domain.ListStatusActive)

	task, err := svc.Create(context.Background(), "alice", "l1", CreateInput{Title: "milk"}, AuditInfo{Actor: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != domain.TaskStatusNew {
		t.Fatalf("expected New status, got %s", task.Status)
	}
	if task.Priority != domain.TaskPriorityMedium {
		t.Fatalf("expected Medium priority, got %s", task.Priority)
	}
	if len(appender.events) != 1 || appender.events[0].Action != "task.created" {
		t.Fatalf("expected task.created audit event")
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	_, _, _, svc := newFixture(domain.ListStatusActive)

	_, err := svc.Create(context.Background(), "alice", "l1", CreateInput{Title: " "}, AuditInfo{Actor: "alice"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Code != "title_required" {
		t.Fatalf("expected title_required, got %v", err)
	}
}

func TestCreateTaskDeferredParentConflict(t *testing.T) {
	_, _, _, svc := newFixture(domain.ListStatusDeferred)

	_, err := svc.Create(context.Background(), "alice", "l1", CreateInput{Title: "milk"}, AuditInfo{Actor: "alice"})
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) || cerr.Code != "list_deferred" {
		t.Fatalf("expected list_deferred conflict, got %v", err)
	}
}

func TestCreateTaskDeletedParentConflict(t *testing.T) {
	_, _, _, svc := newFixture(domain.ListStatusDeleted)

	_, err := svc.Create(context.Background(), "alice", "l1", CreateInput{Title: "milk"}, AuditInfo{Actor: "alice"})
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) || cerr.Code != "list_deleted" {
		t.Fatalf("expected list_deleted conflict, got %v", err)
	}
}

func TestCreateTaskMissingParentNotFound(t *testing.T) {
	_, _, _, svc := newFixture(domain.ListStatusActive)

	_, err := svc.Create(context.Background(), "alice", "nope", CreateInput{Title: "milk"}, AuditInfo{Actor: "alice"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateTaskForeignParentNotFound(t *testing.T) {
	_, _, _, svc := newFixture(domain.ListStatusActive)

	_, err := svc.Create(context.Background(), "bob", "l1", CreateInput{Title: "milk"}, AuditInfo{Actor: "bob"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}

func TestUpdateTaskStatusRevertRejected(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusInProgress)

	status := domain.TaskStatusNew
	_, err := svc.Update(context.Background(), "alice", "l1", "t1", UpdateInput{Status: &status}, AuditInfo{Actor: "alice"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Code != "status_revert" {
		t.Fatalf("expected status_revert, got %v", err)
	}
}

func TestUpdateTaskInDeferredParentConflict(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusDeferred)
	seedTask(tasks, "t1", domain.TaskStatusNew)

	status := domain.TaskStatusCompleted
	_, err := svc.Update(context.Background(), "alice", "l1", "t1", UpdateInput{Status: &status}, AuditInfo{Actor: "alice"})
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) || cerr.Code != "list_deferred" {
		t.Fatalf("expected list_deferred conflict, got %v", err)
	}
}

func TestUpdateDeferredTaskNotFound(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusDeferred)

	status := domain.TaskStatusCompleted
	_, err := svc.Update(context.Background(), "alice", "l1", "t1", UpdateInput{Status: &status}, AuditInfo{Actor: "alice"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for deferred task, got %v", err)
	}
}

func TestUpdateTaskAppliesFields(t *testing.T) {
	_, tasks, appender, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusNew)

	status := domain.TaskStatusInProgress
	priority := domain.TaskPriorityHigh
	updated, err := svc.Update(context.Background(), "alice", "l1", "t1", UpdateInput{Status: &status, Priority: &priority}, AuditInfo{Actor: "alice"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.TaskStatusInProgress || updated.Priority != domain.TaskPriorityHigh {
		t.Fatalf("fields not applied: %+v", updated)
	}
	if len(appender.events) != 1 || appender.events[0].Action != "task.updated" {
		t.Fatalf("expected task.updated audit event")
	}
}

func TestDeferTaskIdempotent(t *testing.T) {
	_, tasks, appender, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusDeferred)

	if err := svc.Defer(context.Background(), "alice", "l1", "t1", AuditInfo{Actor: "alice"}); err != nil {
		t.Fatalf("repeat defer must succeed: %v", err)
	}
	if len(appender.events) != 0 {
		t.Fatalf("no-op defer must not emit audit events")
	}
}

func TestDeferTaskDeferredParentConflict(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusDeferred)
	seedTask(tasks, "t1", domain.TaskStatusNew)

	err := svc.Defer(context.Background(), "alice", "l1", "t1", AuditInfo{Actor: "alice"})
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) || cerr.Code != "list_deferred" {
		t.Fatalf("expected list_deferred conflict, got %v", err)
	}
}

func TestDeferDeletedTaskNotFound(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusDeleted)

	err := svc.Defer(context.Background(), "alice", "l1", "t1", AuditInfo{Actor: "alice"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteTaskBypassesDeferredParent(t *testing.T) {
	_, tasks, appender, svc := newFixture(domain.ListStatusDeferred)
	seedTask(tasks, "t1", domain.TaskStatusNew)

	if err := svc.Delete(context.Background(), "alice", "l1", "t1", AuditInfo{Actor: "alice"}); err != nil {
		t.Fatalf("delete under deferred parent must succeed: %v", err)
	}
	if tasks.tasks["t1"].Status != domain.TaskStatusDeleted {
		t.Fatalf("expected deleted status")
	}
	if len(appender.events) != 1 || appender.events[0].Action != "task.deleted" {
		t.Fatalf("expected task.deleted audit event")
	}
}

func TestDeleteTaskDeletedParentNotFound(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusDeleted)
	seedTask(tasks, "t1", domain.TaskStatusNew)

	err := svc.Delete(context.Background(), "alice", "l1", "t1", AuditInfo{Actor: "alice"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for deleted parent, got %v", err)
	}
}

func TestDeleteTaskIdempotent(t *testing.T) {
	_, tasks, appender, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusDeleted)

	if err := svc.Delete(context.Background(), "alice", "l1", "t1", AuditInfo{Actor: "alice"}); err != nil {
		t.Fatalf("repeat delete must succeed: %v", err)
	}
	if len(appender.events) != 0 {
		t.Fatalf("no-op delete must not emit audit events")
	}
}

func TestGetDeletedTaskNotFound(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusDeleted)

	_, err := svc.Get(context.Background(), "alice", "l1", "t1")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetTaskInDeletedParentNotFound(t *testing.T) {
	_, tasks, _, svc := newFixture(domain.ListStatusDeleted)
	seedTask(tasks, "t1", domain.TaskStatusNew)

	_, err := svc.Get(context.Background(), "alice", "l1", "t1")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateTaskSurvivesAuditFailure(t *testing.T) {
	lists, tasks, _, _ := newFixture(domain.ListStatusActive)
	svc := New(testLogger(), lists, tasks, failingAuditAppender{})

	task, err := svc.Create(context.Background(), "alice", "l1", CreateInput{Title: "milk"}, AuditInfo{Actor: "alice"})
	if err != nil {
		t.Fatalf("create must succeed when the audit trail is down: %v", err)
	}
	if len(tasks.tasks) != 1 {
		t.Fatalf("expected exactly one stored task, got %d", len(tasks.tasks))
	}
	if tasks.tasks[task.ID].Status != domain.TaskStatusNew {
		t.Fatalf("stored task must be new")
	}
}

func TestUpdateTaskSurvivesAuditFailure(t *testing.T) {
	lists, tasks, _, _ := newFixture(domain.ListStatusActive)
	seedTask(tasks, "t1", domain.TaskStatusNew)
	svc := New(testLogger(), lists, tasks, failingAuditAppender{})

	status := domain.TaskStatusCompleted
	updated, err := svc.Update(context.Background(), "alice", "l1", "t1", UpdateInput{Status: &status}, AuditInfo{Actor: "alice"})
	if err != nil {
		t.Fatalf("update must succeed when the audit trail is down: %v", err)
	}
	if updated.Status != domain.TaskStatusCompleted || tasks.tasks["t1"].Status != domain.TaskStatusCompleted {
		t.Fatalf("transition must persist despite the audit failure")
	}
}
