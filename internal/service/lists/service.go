// Package lists implements the list lifecycle engine: creation, field
// updates, and the defer/delete transitions gated on child-task state.
package lists

import (
	"context"
	"fmt"
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

func New(logger *slog.Logger, lists repo.ListRepository, audit repo.AuditEventAppender) *Service {
	if lists == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, lists: lists, audit: audit}
}

type CreateInput struct {
	Title       string
	Description string
}

type UpdateInput struct {
	Title       *string
	Description *string
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput, info AuditInfo) (domain.List, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.List{}, domain.NewValidationError("title_required", "list title is required")
	}

	now := time.Now().UTC()
	list := domain.List{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      domain.ListStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := list.Validate(); err != nil {
		return domain.List{}, err
	}
	if err := s.lists.Create(ctx, list); err != nil {
		return domain.List{}, fmt.Errorf("create list: %w", err)
	}
	s.appendAudit(ctx, info, "list.created", list.ID, domain.Metadata{
		"title": list.Title,
	})
	return list, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (domain.List, error) {
	list, err := s.lists.Get(ctx, ownerID, id)
	if err != nil {
		return domain.List{}, err
	}
	if err := guard.RequireListReadable(list); err != nil {
		return domain.List{}, err
	}
	return list, nil
}

func (s *Service) List(ctx context.Context, ownerID string, page guard.Page) ([]domain.List, error) {
	return s.lists.List(ctx, repo.ListFilter{
		OwnerID: ownerID,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput, info AuditInfo) (domain.List, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return domain.List{}, domain.NewValidationError("title_required", "list title must not be empty")
	}

	updated, err := s.lists.Mutate(ctx, ownerID, id, func(list *domain.List, tasks []domain.Task) (bool, error) {
		if err := guard.RequireListMutable(*list); err != nil {
			return false, err
		}
		if in.Title != nil {
			list.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			list.Description = strings.TrimSpace(*in.Description)
		}
		return true, nil
	})
	if err != nil {
		return domain.List{}, err
	}
	s.appendAudit(ctx, info, "list.updated", updated.ID, domain.Metadata{
		"title": updated.Title,
	})
	return updated, nil
}

// Defer transitions the list to Deferred. The child-task precondition is
// evaluated under the same lock as the write; an already-deferred list is a
// successful no-op and skips the check entirely.
func (s *Service) Defer(ctx context.Context, ownerID, id string, info AuditInfo) error {
	var transitioned bool
	_, err := s.lists.Mutate(ctx, ownerID, id, func(list *domain.List, tasks []domain.Task) (bool, error) {
		if list.Status == domain.ListStatusDeferred {
			return false, nil
		}
		if !domain.CanTransitionList(list.Status, domain.ListStatusDeferred) {
			return false, repo.ErrNotFound
		}
		if err := domain.CheckListDefer(tasks); err != nil {
			return false, err
		}
		list.Status = domain.ListStatusDeferred
		transitioned = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.appendAudit(ctx, info, "list.deferred", id, nil)
	}
	return nil
}

// Delete soft-deletes the list. Unlike Update and Defer it is callable on
// deferred and already-deleted lists; the latter is a no-op.
func (s *Service) Delete(ctx context.Context, ownerID, id string, info AuditInfo) error {
	var transitioned bool
	_, err := s.lists.Mutate(ctx, ownerID, id, func(list *domain.List, tasks []domain.Task) (bool, error) {
		if list.Status == domain.ListStatusDeleted {
			return false, nil
		}
		if !domain.CanTransitionList(list.Status, domain.ListStatusDeleted) {
			return false, repo.ErrNotFound
		}
		if err := domain.CheckListDelete(tasks); err != nil {
			return false, err
		}
		list.Status = domain.ListStatusDeleted
		transitioned = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.appendAudit(ctx, info, "list.deleted", id, nil)
	}
	return nil
}

// appendAudit records the event best-effort. The store write has already
// committed by the time this runs, so a trail failure must not turn a
// completed transition into a caller-visible error.
func (s *Service) appendAudit(ctx context.Context, info AuditInfo, action, listID string, payload domain.Metadata) {
	if s.audit == nil {
		return
	}
	if payload == nil {
		payload = domain.Metadata{}
	}
	payload["service"] = info.Service
	actor := strings.TrimSpace(info.Actor)
	if actor == "" {
		actor = "unknown"
	}
	_, err := s.audit.Append(ctx, domain.AuditEvent{
		OccurredAt:   time.Now().UTC(),
		Actor:        actor,
		Action:       action,
		ResourceType: "list",
		ResourceID:   listID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Payload:      payload,
	})
	if err != nil {
		s.logger.Warn("audit append failed",
			"action", action,
			"list_id", listID,
			"request_id", info.RequestID,
			"error", err)
	}
}
