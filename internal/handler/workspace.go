package handler

import (
	"log/slog"
	"net/http"

	"canvasdesk/internal/httputil"
	"canvasdesk/internal/service/workspace"
)

// WorkspaceHandler serves the workspace snapshot and health check
type WorkspaceHandler struct {
	sessions SessionProvider
	logger   *slog.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(sessions SessionProvider, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// GetSnapshot returns the caller's folders, canvas metadata and current pointer
// GET /api/workspace
func (h *WorkspaceHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	snap := s.Workspace.Snapshot()
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// cacheEntryResponse describes one canvas whose content is held in memory
type cacheEntryResponse struct {
	workspace.CacheEntry
	Bytes   int  `json:"bytes"`
	Current bool `json:"current"`
}

// GetCache lists canvases with resident content, most recently used first
// GET /api/workspace/cache
func (h *WorkspaceHandler) GetCache(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}

	current := s.Workspace.Snapshot().CurrentCanvasID
	entries := s.Workspace.CacheEntries()
	resp := make([]cacheEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, cacheEntryResponse{
			CacheEntry: e,
			Bytes:      len(e.Content),
			Current:    e.CanvasID == current,
		})
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HealthCheck reports the server is up
// GET /health
func (h *WorkspaceHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
