// Package tasks implements the task lifecycle engine. Every mutation resolves
// the parent list first and is gated on its state, so a deferred or deleted
// list locks the tasks beneath it.
package tasks

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/guard"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

type Service struct {
	logger *slog.Logger
	lists  repo.ListRepository
	tasks  repo.TaskRepository
	audit  repo.AuditEventAppender
}

// AuditInfo carries request attribution for audit records.
type AuditInfo struct {
	Actor     string
	RequestID string
	UserAgent string
	IP        net.IP
	Service   string
}

func New(logger *slog.Logger, lists repo.ListRepository, tasks repo.TaskRepository, audit repo.AuditEventAppender) *Service {
	if lists == nil || tasks == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, lists: lists, tasks: tasks, audit: audit}
}

type CreateInput struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

type UpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	DueDate     *time.Time
	ClearDue    bool
}

func (s *Service) Create(ctx context.Context, ownerID, listID string, in CreateInput, info AuditInfo) (domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, domain.NewValidationError("title_required", "task title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.Valid() {
		return domain.Task{}, domain.NewValidationError("invalid_priority", "unknown task priority")
	}

	task, err := s.tasks.Create(ctx, ownerID, listID, func(parent domain.List) (domain.Task, error) {
		if err := guard.RequireParentUnlocked(parent); err != nil {
			return domain.Task{}, err
		}
		now := time.Now().UTC()
		t := domain.Task{
			ID:          uuid.NewString(),
			ListID:      parent.ID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Status:      domain.TaskStatusNew,
			Priority:    priority,
			DueDate:     in.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := t.Validate(); err != nil {
			return domain.Task{}, err
		}
		return t, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	s.appendAudit(ctx, info, "task.created", task, domain.Metadata{
		"title": task.Title,
	})
	return task, nil
}

func (s *Service) Get(ctx context.Context, ownerID, listID, id string) (domain.Task, error) {
	if err := s.requireReadableList(ctx, ownerID, listID); err != nil {
		return domain.Task{}, err
	}
	task, err := s.tasks.Get(ctx, listID, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := guard.RequireTaskReadable(task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, ownerID, listID string, page guard.Page) ([]domain.Task, error) {
	if err := s.requireReadableList(ctx, ownerID, listID); err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, repo.TaskFilter{
		ListID: listID,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func (s *Service) Update(ctx context.Context, ownerID, listID, id string, in UpdateInput, info AuditInfo) (domain.Task, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return domain.Task{}, domain.NewValidationError("title_required", "task title must not be empty")
	}
	if in.Status != nil {
		if err := domain.CheckTaskStatusChange(*in.Status); err != nil {
			return domain.Task{}, err
		}
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return domain.Task{}, domain.NewValidationError("invalid_priority", "unknown task priority")
	}

	updated, err := s.tasks.Mutate(ctx, ownerID, listID, id, guard.RequireParentUnlocked, func(task *domain.Task) (bool, error) {
		if err := guard.RequireTaskMutable(*task); err != nil {
			return false, err
		}
		if in.Title != nil {
			task.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			task.Description = strings.TrimSpace(*in.Description)
		}
		if in.Status != nil {
			task.Status = *in.Status
		}
		if in.Priority != nil {
			task.Priority = *in.Priority
		}
		if in.ClearDue {
			task.DueDate = nil
		} else if in.DueDate != nil {
			task.DueDate = in.DueDate
		}
		return true, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	s.appendAudit(ctx, info, "task.updated", updated, domain.Metadata{
		"status": string(updated.Status),
	})
	return updated, nil
}

// Defer transitions the task to Deferred. An already-deferred task is a
// successful no-op; the parent lock still applies.
func (s *Service) Defer(ctx context.Context, ownerID, listID, id string, info AuditInfo) error {
	var transitioned bool
	task, err := s.tasks.Mutate(ctx, ownerID, listID, id, guard.RequireParentUnlocked, func(task *domain.Task) (bool, error) {
		if task.Status == domain.TaskStatusDeleted {
			return false, repo.ErrNotFound
		}
		if task.Status == domain.TaskStatusDeferred {
			return false, nil
		}
		task.Status = domain.TaskStatusDeferred
		transitioned = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.appendAudit(ctx, info, "task.deferred", task, nil)
	}
	return nil
}

// Delete soft-deletes the task. A deferred parent does not block deletion;
// a deleted parent still hides the whole aggregate.
func (s *Service) Delete(ctx context.Context, ownerID, listID, id string, info AuditInfo) error {
	var transitioned bool
	task, err := s.tasks.Mutate(ctx, ownerID, listID, id, guard.RequireListReadable, func(task *domain.Task) (bool, error) {
		if task.Status == domain.TaskStatusDeleted {
			return false, nil
		}
		task.Status = domain.TaskStatusDeleted
		transitioned = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.appendAudit(ctx, info, "task.deleted", task, nil)
	}
	return nil
}

func (s *Service) requireReadableList(ctx context.Context, ownerID, listID string) error {
	parent, err := s.lists.Get(ctx, ownerID, listID)
	if err != nil {
		return err
	}
	return guard.RequireListReadable(parent)
}

// appendAudit records the event best-effort. The store write has already
// committed by the time this runs, so a trail failure must not turn a
// completed transition into a caller-visible error.
func (s *Service) appendAudit(ctx context.Context, info AuditInfo, action string, task domain.Task, payload domain.Metadata) {
	if s.audit == nil {
		return
	}
	if payload == nil {
		payload = domain.Metadata{}
	}
	payload["service"] = info.Service
	payload["list_id"] = task.ListID
	actor := strings.TrimSpace(info.Actor)
	if actor == "" {
		actor = "unknown"
	}
	_, err := s.audit.Append(ctx, domain.AuditEvent{
		OccurredAt:   time.Now().UTC(),
		Actor:        actor,
		Action:       action,
		ResourceType: "task",
		ResourceID:   task.ID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Payload:      payload,
	})
	if err != nil {
		s.logger.Warn("audit append failed",
			"action", action,
			"task_id", task.ID,
			"list_id", task.ListID,
			"request_id", info.RequestID,
			"error", err)
	}
}
