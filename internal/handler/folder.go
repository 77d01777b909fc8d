package handler

import (
	"log/slog"
	"net/http"

	svc "canvasdesk/internal/domain/services/workspace"
	"canvasdesk/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	sessions SessionProvider
	logger   *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(sessions SessionProvider, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// CreateFolder creates a folder at the end of the folder list
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req svc.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := s.Workspace.CreateFolder(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// UpdateFolder renames a folder
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req svc.UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := s.Workspace.UpdateFolder(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder deletes an empty folder
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	if err := s.Workspace.DeleteFolder(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderCanvases sets the order of every canvas in a folder
// POST /api/folders/{id}/reorder
func (h *FolderHandler) ReorderCanvases(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req svc.ReorderCanvasesRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Workspace.ReorderCanvases(r.Context(), id, req.OrderedIDs); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, s.Workspace.Snapshot())
}
