package handler

import (
	"log/slog"
	"net/http"

	"canvasdesk/internal/httputil"
	"canvasdesk/internal/service/dragdrop"
)

// DragHandler forwards pointer-drag gestures to the session's reconciler
type DragHandler struct {
	sessions SessionProvider
	logger   *slog.Logger
}

// NewDragHandler creates a new drag handler
func NewDragHandler(sessions SessionProvider, logger *slog.Logger) *DragHandler {
	return &DragHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type dragStartRequest struct {
	CanvasID string `json:"canvas_id"`
}

type dragOverRequest struct {
	Candidates []dragdrop.Candidate `json:"candidates"`
}

// dragEndRequest carries the final drop candidate; a missing target aborts.
type dragEndRequest struct {
	Target *dragdrop.Candidate `json:"target"`
}

type folderOpenRequest struct {
	Open bool `json:"open"`
	// Auto marks a UI heuristic rather than a user click
	Auto bool `json:"auto,omitempty"`
}

// GetState returns the drag state
// GET /api/drag
func (h *DragHandler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, s.Reconciler.State())
}

// Start begins a drag and makes the dragged canvas current
// POST /api/drag/start
func (h *DragHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req dragStartRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CanvasID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "canvas_id is required")
		return
	}

	if err := s.Reconciler.DragStart(r.Context(), req.CanvasID); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, s.Reconciler.State())
}

// Over updates the drop target from the elements under the pointer
// POST /api/drag/over
func (h *DragHandler) Over(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req dragOverRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.Reconciler.DragOver(req.Candidates)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

// End drops the dragged canvas or aborts the drag
// POST /api/drag/end
func (h *DragHandler) End(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req dragEndRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.Reconciler.DragEnd(r.Context(), req.Target)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// SetFolderOpen records a folder being opened or closed in the tree
// PUT /api/drag/folders/{id}
func (h *DragHandler) SetFolderOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	var req folderOpenRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Auto && !req.Open {
		if !s.Reconciler.AutoCloseFolder(id) {
			h.logger.Debug("auto-close suppressed", "folder_id", id)
		}
	} else {
		s.Reconciler.SetFolderOpen(id, req.Open)
	}

	httputil.RespondJSON(w, http.StatusOK, s.Reconciler.State())
}
