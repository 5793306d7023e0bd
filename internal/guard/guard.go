// Package guard holds the policy shared by both lifecycle engines: pagination
// normalization and the rule that foreign-owned or hidden-status records read
// as absent, so resource existence never leaks across tenants.
package guard

import (
	"strconv"
	"strings"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Limit  int
	Offset int
}

// NormalizePage applies the collection defaults: limit 20, capped at 100
// (values above the cap are clamped, not rejected), offset 0. Negative values
// are a caller error.
func NormalizePage(limit, offset int) (Page, error) {
	if limit < 0 {
		return Page{}, domain.NewValidationError("invalid_limit", "limit must not be negative")
	}
	if offset < 0 {
		return Page{}, domain.NewValidationError("invalid_offset", "offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Limit: limit, Offset: offset}, nil
}

// PageFromQuery parses raw limit/offset query values and normalizes them.
// Absent values take the defaults; non-numeric values are a caller error.
func PageFromQuery(limitRaw, offsetRaw string) (Page, error) {
	limit, err := parsePageValue(limitRaw, "invalid_limit", "limit must be an integer")
	if err != nil {
		return Page{}, err
	}
	offset, err := parsePageValue(offsetRaw, "invalid_offset", "offset must be an integer")
	if err != nil {
		return Page{}, err
	}
	return NormalizePage(limit, offset)
}

func parsePageValue(raw, code, message string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(code, message)
	}
	return v, nil
}

// RequireListReadable hides soft-deleted lists from all read paths.
func RequireListReadable(list domain.List) error {
	if list.Status == domain.ListStatusDeleted {
		return repo.ErrNotFound
	}
	return nil
}

// RequireListMutable hides deleted lists and makes deferred lists immutable
// to field updates: both read as absent.
func RequireListMutable(list domain.List) error {
	if list.Status == domain.ListStatusDeleted || list.Status == domain.ListStatusDeferred {
		return repo.ErrNotFound
	}
	return nil
}

// RequireParentUnlocked gates task mutations on the parent list's state.
// A deferred or deleted parent blocks writes into it.
func RequireParentUnlocked(list domain.List) error {
	switch list.Status {
	case domain.ListStatusDeferred:
		return domain.NewConflictError("list_deferred", "parent list is deferred")
	case domain.ListStatusDeleted:
		return domain.NewConflictError("list_deleted", "parent list is deleted")
	default:
		return nil
	}
}

// RequireTaskReadable hides soft-deleted tasks from read paths.
func RequireTaskReadable(task domain.Task) error {
	if task.Status == domain.TaskStatusDeleted {
		return repo.ErrNotFound
	}
	return nil
}

// RequireTaskMutable makes deferred and deleted tasks immutable to updates.
func RequireTaskMutable(task domain.Task) error {
	if task.Status == domain.TaskStatusDeleted || task.Status == domain.TaskStatusDeferred {
		return repo.ErrNotFound
	}
	return nil
}
