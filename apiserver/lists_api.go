package main

import (
	"net/http"
	"strings"

	"github.com/taskfolio/taskfolio-go/internal/guard"
	listsvc "github.com/taskfolio/taskfolio-go/internal/service/lists"
)

type createListRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type updateListRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (api *taskfolioAPI) handleCreateList(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}

	var req createListRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	list, err := api.lists.Create(r.Context(), identity.Subject, listsvc.CreateInput{
		Title:       req.Title,
		Description: req.Description,
	}, buildAuditInfo(r, identity))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/lists/"+list.ID)
	api.writeJSON(w, http.StatusCreated, listFromDomain(list))
}

func (api *taskfolioAPI) handleListLists(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}

	page, err := guard.PageFromQuery(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	lists, err := api.lists.List(r.Context(), identity.Subject, page)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	items := make([]listResponse, 0, len(lists))
	for _, l := range lists {
		items = append(items, listFromDomain(l))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (api *taskfolioAPI) handleGetList(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	if listID == "" {
		api.writeError(w, r, http.StatusBadRequest, "list_id_required")
		return
	}

	list, err := api.lists.Get(r.Context(), identity.Subject, listID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, listFromDomain(list))
}

func (api *taskfolioAPI) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	if listID == "" {
		api.writeError(w, r, http.StatusBadRequest, "list_id_required")
		return
	}

	var req updateListRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	list, err := api.lists.Update(r.Context(), identity.Subject, listID, listsvc.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	}, buildAuditInfo(r, identity))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, listFromDomain(list))
}

func (api *taskfolioAPI) handleDeferList(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	if listID == "" {
		api.writeError(w, r, http.StatusBadRequest, "list_id_required")
		return
	}

	if err := api.lists.Defer(r.Context(), identity.Subject, listID, buildAuditInfo(r, identity)); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *taskfolioAPI) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireOwner(w, r)
	if !ok {
		return
	}
	listID := strings.TrimSpace(r.PathValue("list_id"))
	if listID == "" {
		api.writeError(w, r, http.StatusBadRequest, "list_id_required")
		return
	}

	if err := api.lists.Delete(r.Context(), identity.Subject, listID, buildAuditInfo(r, identity)); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
