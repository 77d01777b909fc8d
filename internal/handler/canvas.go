package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	models "canvasdesk/internal/domain/models/workspace"
	svc "canvasdesk/internal/domain/services/workspace"
	"canvasdesk/internal/httputil"
)

// CanvasIDHeader names the canvas that current content belongs to.
const CanvasIDHeader = "X-Canvas-ID"

// CanvasHandler handles canvas HTTP requests
type CanvasHandler struct {
	sessions SessionProvider
	logger   *slog.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(sessions SessionProvider, logger *slog.Logger) *CanvasHandler {
	return &CanvasHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// CreateCanvas creates a blank canvas
// POST /api/canvases
func (h *CanvasHandler) CreateCanvas(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req svc.CreateCanvasRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	canvas, err := s.Workspace.CreateCanvas(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, canvas)
}

// updateCanvasBody is the PATCH body; "thumbnail": null clears the thumbnail.
type updateCanvasBody struct {
	Title     *string                 `json:"title"`
	Content   *models.Content         `json:"content"`
	Thumbnail httputil.OptionalString `json:"thumbnail"`
}

// UpdateCanvas changes a canvas's title, content or thumbnail
// PATCH /api/canvases/{id}
func (h *CanvasHandler) UpdateCanvas(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Canvas ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var body updateCanvasBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := svc.UpdateCanvasRequest{
		Title:     body.Title,
		Content:   body.Content,
		Thumbnail: body.Thumbnail.Patch(),
	}

	canvas, err := s.Workspace.UpdateCanvas(r.Context(), id, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, canvas)
}

// DeleteCanvas deletes a canvas. Deleting the current canvas moves the
// pointer to a sibling.
// DELETE /api/canvases/{id}
func (h *CanvasHandler) DeleteCanvas(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Canvas ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	if err := s.Workspace.DeleteCanvas(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SwitchCanvas makes a canvas current, flushing the previous one first
// POST /api/canvases/{id}/switch
func (h *CanvasHandler) SwitchCanvas(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Canvas ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	if err := s.Workspace.SwitchCurrent(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, s.Workspace.Snapshot())
}

// MoveCanvas moves a canvas into another folder
// POST /api/canvases/{id}/move
func (h *CanvasHandler) MoveCanvas(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Canvas ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req svc.MoveCanvasRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FolderID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "folder_id is required")
		return
	}

	if err := s.Workspace.MoveCanvasToFolder(r.Context(), id, req.FolderID); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, s.Workspace.Snapshot())
}

// PreloadCanvas loads a canvas's content into memory without switching
// POST /api/canvases/{id}/preload
func (h *CanvasHandler) PreloadCanvas(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Canvas ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	if err := s.Workspace.Preload(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnloadCanvas drops a canvas's content from memory
// POST /api/canvases/{id}/unload
func (h *CanvasHandler) UnloadCanvas(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Canvas ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	if err := s.Workspace.Unload(id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCurrentContent returns the scene the editor shows
// GET /api/canvases/current/content
func (h *CanvasHandler) GetCurrentContent(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	id, content, err := s.Workspace.CurrentContent()
	if err != nil {
		handleError(w, err)
		return
	}

	w.Header().Set(CanvasIDHeader, id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// PutCurrentContent records an edit made in the editor. The X-Canvas-ID
// header names the canvas the edit was made on, as returned by
// GetCurrentContent; an edit for a canvas that is no longer shown gets 409.
// The content is persisted on the next flush or switch.
// PUT /api/canvases/current/content
func (h *CanvasHandler) PutCurrentContent(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	canvasID := r.Header.Get(CanvasIDHeader)
	if canvasID == "" {
		httputil.RespondError(w, http.StatusBadRequest, CanvasIDHeader+" header is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, "canvas content too large")
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	content := models.Content(body)
	if err := s.Validator.Validate(content); err != nil {
		handleError(w, err)
		return
	}

	if err := s.Workspace.PushContent(canvasID, content); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FlushCurrent persists unsaved edits of the current canvas
// POST /api/canvases/current/flush
func (h *CanvasHandler) FlushCurrent(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	if err := s.Workspace.FlushCurrent(r.Context()); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{
		"dirty": s.Workspace.Dirty(),
	})
}
