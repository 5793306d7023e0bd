package domain

import (
	"errors"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "New"
	TaskStatusInProgress TaskStatus = "In-Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusDeferred   TaskStatus = "Deferred"
	TaskStatusDeleted    TaskStatus = "Deleted"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusCompleted, TaskStatusDeferred, TaskStatusDeleted:
		return true
	default:
		return false
	}
}

func ParseTaskStatus(raw string) (TaskStatus, bool) {
	s := TaskStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

func ParseTaskPriority(raw string) (TaskPriority, bool) {
	p := TaskPriority(strings.TrimSpace(raw))
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// Task belongs to exactly one list. Its effective owner is the parent list's
// owner; tasks carry no owner column of their own.
type Task struct {
	ID          string
	ListID      string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("task id is required")
	}
	if strings.TrimSpace(t.ListID) == "" {
		return errors.New("task list id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task title is required")
	}
	if !t.Status.Valid() {
		return errors.New("task status is invalid")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return errors.New("task priority is invalid")
	}
	return nil
}
