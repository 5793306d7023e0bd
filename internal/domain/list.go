package domain

import (
	"errors"
	"strings"
	"time"
)

type ListStatus string

const (
	ListStatusActive   ListStatus = "Active"
	ListStatusDeferred ListStatus = "Deferred"
	ListStatusDeleted  ListStatus = "Deleted"
)

func (s ListStatus) Valid() bool {
	switch s {
	case ListStatusActive, ListStatusDeferred, ListStatusDeleted:
		return true
	default:
		return false
	}
}

func ParseListStatus(raw string) (ListStatus, bool) {
	s := ListStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// List is an owner-scoped collection of tasks. Deletion is a status write;
// rows are never removed.
type List struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      ListStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (l List) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("list id is required")
	}
	if strings.TrimSpace(l.OwnerID) == "" {
		return errors.New("list owner id is required")
	}
	if strings.TrimSpace(l.Title) == "" {
		return errors.New("list title is required")
	}
	if !l.Status.Valid() {
		return errors.New("list status is invalid")
	}
	return nil
}
