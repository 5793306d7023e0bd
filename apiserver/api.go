package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/platform/auth"
	"github.com/taskfolio/taskfolio-go/internal/repo"
	listsvc "github.com/taskfolio/taskfolio-go/internal/service/lists"
	tasksvc "github.com/taskfolio/taskfolio-go/internal/service/tasks"
)

type taskfolioAPI struct {
	logger  *slog.Logger
	lists   *listsvc.Service
	tasks   *tasksvc.Service
	clients repo.ClientRepository
	authCfg auth.Config
	openapi []byte
}

func newTaskfolioAPI(logger *slog.Logger, lists *listsvc.Service, tasks *tasksvc.Service, clients repo.ClientRepository, authCfg auth.Config) *taskfolioAPI {
	return &taskfolioAPI{
		logger:  logger,
		lists:   lists,
		tasks:   tasks,
		clients: clients,
		authCfg: authCfg,
	}
}

func (api *taskfolioAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/lists", api.handleCreateList)
	mux.HandleFunc("GET /v1/lists", api.handleListLists)
	mux.HandleFunc("GET /v1/lists/{list_id}", api.handleGetList)
	mux.HandleFunc("PATCH /v1/lists/{list_id}", api.handleUpdateList)
	mux.HandleFunc("POST /v1/lists/{list_id}/defer", api.handleDeferList)
	mux.HandleFunc("DELETE /v1/lists/{list_id}", api.handleDeleteList)

	mux.HandleFunc("POST /v1/lists/{list_id}/tasks", api.handleCreateTask)
	mux.HandleFunc("GET /v1/lists/{list_id}/tasks", api.handleListTasks)
	mux.HandleFunc("GET /v1/lists/{list_id}/tasks/{task_id}", api.handleGetTask)
	mux.HandleFunc("PATCH /v1/lists/{list_id}/tasks/{task_id}", api.handleUpdateTask)
	mux.HandleFunc("POST /v1/lists/{list_id}/tasks/{task_id}/defer", api.handleDeferTask)
	mux.HandleFunc("DELETE /v1/lists/{list_id}/tasks/{task_id}", api.handleDeleteTask)

	mux.HandleFunc("POST /v1/auth/token", api.handleIssueToken)
	mux.HandleFunc("POST /v1/auth/clients", api.handleRegisterClient)

	mux.HandleFunc("GET /openapi.json", api.handleOpenAPI)
}

type listResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func listFromDomain(l domain.List) listResponse {
	return listResponse{
		ID:          l.ID,
		UserID:      l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func taskFromDomain(t domain.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ListID:      t.ListID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// requireOwner resolves the authenticated caller; the subject doubles as the
// owner id for every list and task read.
func (api *taskfolioAPI) requireOwner(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

// writeDomainError maps service errors onto the wire: absent or hidden
// resources are 404, validation failures 400, precondition failures 409.
func (api *taskfolioAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var cerr *domain.ConflictError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.As(err, &verr):
		api.writeErrorMessage(w, r, http.StatusBadRequest, verr.Code, verr.Message)
	case errors.As(err, &cerr):
		api.writeErrorMessage(w, r, http.StatusConflict, cerr.Code, cerr.Message)
	default:
		api.logger.Error("request failed", "request_id", r.Header.Get("X-Request-Id"), "error", err.Error())
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func buildAuditInfo(r *http.Request, identity auth.Identity) listsvc.AuditInfo {
	return listsvc.AuditInfo{
		Actor:     strings.TrimSpace(identity.Subject),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Service:   serviceName,
	}
}

func buildTaskAuditInfo(r *http.Request, identity auth.Identity) tasksvc.AuditInfo {
	info := buildAuditInfo(r, identity)
	return tasksvc.AuditInfo{
		Actor:     info.Actor,
		RequestID: info.RequestID,
		IP:        info.IP,
		UserAgent: info.UserAgent,
		Service:   info.Service,
	}
}

func (api *taskfolioAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *taskfolioAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *taskfolioAPI) writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"message":    message,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
