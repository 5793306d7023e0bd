package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/guard"
	tasksvc "github.com/taskfolio/taskfolio-go/internal/service/tasks"
)

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// ClearDueDate exists because a JSON null due_date is indistinguishable from
// an absent field once decoded into a pointer.
type updateTaskRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       *string    `json:"status,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

func (api *taskfolioAPI) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	if listID == "" {
		api.writeError(w, r, http.StatusBadRequest, "list_id_required")
		return
	}

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	var priority domain.TaskPriority
	if strings.TrimSpace(req.Priority) != "" {
		parsed, ok := domain.ParseTaskPriority(req.Priority)
		if !ok {
			api.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_priority", "unknown task priority")
			return
		}
		priority = parsed
	}

	task, err := api.tasks.Create(r.Context(), identity.Subject, listID, tasksvc.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		DueDate:     req.DueDate,
	}, buildTaskAuditInfo(r, identity))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/lists/"+listID+"/tasks/"+task.ID)
	api.writeJSON(w, http.StatusCreated, taskFromDomain(task))
}

func (api *taskfolioAPI) handleListTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	if listID == "" {
		api.writeError(w, r, http.StatusBadRequest, "list_id_required")
		return
	}

	page, err := guard.PageFromQuery(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	tasks, err := api.tasks.List(r.Context(), identity.Subject, listID, page)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	items := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskFromDomain(t))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (api *taskfolioAPI) handleGetTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	taskID := strings.TrimSpace(r.PathValue("task_id"))
	if listID == "" || taskID == "" {
		api.writeError(w, r, http.StatusBadRequest, "task_id_required")
		return
	}

	task, err := api.tasks.Get(r.Context(), identity.Subject, listID, taskID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, taskFromDomain(task))
}

func (api *taskfolioAPI) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	taskID := strings.TrimSpace(r.PathValue("task_id"))
	if listID == "" || taskID == "" {
		api.writeError(w, r, http.StatusBadRequest, "task_id_required")
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	in := tasksvc.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDueDate,
	}
	if req.Status != nil {
		status, ok := domain.ParseTaskStatus(*req.Status)
		if !ok {
			api.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_status", "unknown task status")
			return
		}
		in.Status = &status
	}
	if req.Priority != nil {
		priority, ok := domain.ParseTaskPriority(*req.Priority)
		if !ok {
			api.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_priority", "unknown task priority")
			return
		}
		in.Priority = &priority
	}

	task, err := api.tasks.Update(r.Context(), identity.Subject, listID, taskID, in, buildTaskAuditInfo(r, identity))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, taskFromDomain(task))
}

func (api *taskfolioAPI) handleDeferTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	taskID := strings.TrimSpace(r.PathValue("task_id"))
	if listID == "" || taskID == "" {
		api.writeError(w, r, http.StatusBadRequest, "task_id_required")
		return
	}

	if err := api.tasks.Defer(r.Context(), identity.Subject, listID, taskID, buildTaskAuditInfo(r, identity)); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *taskfolioAPI) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	taskID := strings.TrimSpace(r.PathValue("task_id"))
	if listID == "" || taskID == "" {
		api.writeError(w, r, http.StatusBadRequest, "task_id_required")
		return
	}

	if err := api.tasks.Delete(r.Context(), identity.Subject, listID, taskID, buildTaskAuditInfo(r, identity)); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
