package domain

import (
	"errors"
	"testing"
)

func TestCanTransitionList(t *testing.T) {
	cases := []struct {
		from, to ListStatus
		want     bool
	}{
		{ListStatusActive, ListStatusDeferred, true},
		{ListStatusActive, ListStatusDeleted, true},
		{ListStatusDeferred, ListStatusDeleted, true},
		{ListStatusDeferred, ListStatusActive, false},
		{ListStatusDeleted, ListStatusActive, false},
		{ListStatusDeleted, ListStatusDeferred, false},
		{ListStatusActive, ListStatusActive, true},
		{ListStatusDeleted, ListStatusDeleted, true},
		{ListStatusActive, ListStatus("bogus"), false},
	}
	for _, tc := range cases {
		if got := CanTransitionList(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionList(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCheckListDefer(t *testing.T) {
	if err := CheckListDefer([]Task{{Status: TaskStatusNew}, {Status: TaskStatusCompleted}}); err != nil {
		t.Fatalf("defer with no in-progress tasks: %v", err)
	}

	err := CheckListDefer([]Task{{Status: TaskStatusInProgress}})
	var cerr *ConflictError
	if !errors.As(err, &cerr) || cerr.Code != "tasks_in_progress" {
		t.Fatalf("expected tasks_in_progress, got %v", err)
	}
}

func TestCheckListDelete(t *testing.T) {
	if err := CheckListDelete([]Task{{Status: TaskStatusCompleted}, {Status: TaskStatusDeferred}, {Status: TaskStatusDeleted}}); err != nil {
		t.Fatalf("delete with only settled tasks: %v", err)
	}

	for _, status := range []TaskStatus{TaskStatusNew, TaskStatusInProgress} {
		err := CheckListDelete([]Task{{Status: status}})
		var cerr *ConflictError
		if !errors.As(err, &cerr) || cerr.Code != "tasks_active" {
			t.Fatalf("delete with %s task: expected tasks_active, got %v", status, err)
		}
	}
}

func TestCheckTaskStatusChange(t *testing.T) {
	for _, status := range []TaskStatus{TaskStatusInProgress, TaskStatusCompleted, TaskStatusDeferred, TaskStatusDeleted} {
		if err := CheckTaskStatusChange(status); err != nil {
			t.Fatalf("status %s must be settable: %v", status, err)
		}
	}

	err := CheckTaskStatusChange(TaskStatusNew)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != "status_revert" {
		t.Fatalf("expected status_revert, got %v", err)
	}

	err = CheckTaskStatusChange(TaskStatus("bogus"))
	if !errors.As(err, &verr) || verr.Code != "invalid_status" {
		t.Fatalf("expected invalid_status, got %v", err)
	}
}

func TestParseTaskStatus(t *testing.T) {
	if s, ok := ParseTaskStatus(" In-Progress "); !ok || s != TaskStatusInProgress {
		t.Fatalf("parse In-Progress: %v %v", s, ok)
	}
	if _, ok := ParseTaskStatus("in-progress"); ok {
		t.Fatalf("status parsing must be case sensitive")
	}
}
