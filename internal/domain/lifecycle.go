package domain

var listTransitions = map[ListStatus][]ListStatus{
	ListStatusActive:   {ListStatusDeferred, ListStatusDeleted},
	ListStatusDeferred: {ListStatusDeleted},
	ListStatusDeleted:  {},
}

// CanTransitionList returns true when a list status transition is allowed.
// A transition into the current state is always allowed as an idempotent no-op.
func CanTransitionList(from, to ListStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range listTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckListDefer evaluates the defer precondition over the list's live child
// tasks: a list with work in progress cannot be deferred.
func CheckListDefer(tasks []Task) error {
	for _, t := range tasks {
		if t.Status == TaskStatusInProgress {
			return NewConflictError("tasks_in_progress", "cannot defer a list with tasks in progress")
		}
	}
	return nil
}

// CheckListDelete evaluates the delete precondition: every live child task
// must be Completed or Deferred before the list can be deleted.
func CheckListDelete(tasks []Task) error {
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusCompleted, TaskStatusDeferred, TaskStatusDeleted:
		default:
			return NewConflictError("tasks_active", "cannot delete a list with active tasks")
		}
	}
	return nil
}

// CheckTaskStatusChange validates a requested task status write. New is an
// initial-only state: it is assigned at creation and never re-settable.
func CheckTaskStatusChange(to TaskStatus) error {
	if !to.Valid() {
		return NewValidationError("invalid_status", "unknown task status")
	}
	if to == TaskStatusNew {
		return NewValidationError("status_revert", "task status cannot revert to New")
	}
	return nil
}
