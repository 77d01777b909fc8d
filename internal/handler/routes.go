package handler

import (
	"log/slog"
	"net/http"
)

// RegisterRoutes wires every workspace endpoint onto mux (Go 1.22+ patterns).
func RegisterRoutes(mux *http.ServeMux, sessions SessionProvider, originPatterns []string, logger *slog.Logger) {
	workspaceHandler := NewWorkspaceHandler(sessions, logger)
	eventsHandler := NewEventsHandler(sessions, originPatterns, logger)
	canvasHandler := NewCanvasHandler(sessions, logger)
	folderHandler := NewFolderHandler(sessions, logger)
	dragHandler := NewDragHandler(sessions, logger)

	// Health check
	mux.HandleFunc("GET /health", workspaceHandler.HealthCheck)

	// Workspace
	mux.HandleFunc("GET /api/workspace", workspaceHandler.GetSnapshot)
	mux.HandleFunc("GET /api/workspace/cache", workspaceHandler.GetCache)
	mux.HandleFunc("GET /api/workspace/events", eventsHandler.Stream)

	// Current canvas content
	mux.HandleFunc("GET /api/canvases/current/content", canvasHandler.GetCurrentContent)
	mux.HandleFunc("PUT /api/canvases/current/content", canvasHandler.PutCurrentContent)
	mux.HandleFunc("POST /api/canvases/current/flush", canvasHandler.FlushCurrent)

	// Canvas routes
	mux.HandleFunc("POST /api/canvases", canvasHandler.CreateCanvas)
	mux.HandleFunc("PATCH /api/canvases/{id}", canvasHandler.UpdateCanvas)
	mux.HandleFunc("DELETE /api/canvases/{id}", canvasHandler.DeleteCanvas)
	mux.HandleFunc("POST /api/canvases/{id}/switch", canvasHandler.SwitchCanvas)
	mux.HandleFunc("POST /api/canvases/{id}/move", canvasHandler.MoveCanvas)
	mux.HandleFunc("POST /api/canvases/{id}/preload", canvasHandler.PreloadCanvas)
	mux.HandleFunc("POST /api/canvases/{id}/unload", canvasHandler.UnloadCanvas)

	// Folder routes
	mux.HandleFunc("POST /api/folders", folderHandler.CreateFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", folderHandler.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.DeleteFolder)
	mux.HandleFunc("POST /api/folders/{id}/reorder", folderHandler.ReorderCanvases)

	// Drag and drop
	mux.HandleFunc("GET /api/drag", dragHandler.GetState)
	mux.HandleFunc("POST /api/drag/start", dragHandler.Start)
	mux.HandleFunc("POST /api/drag/over", dragHandler.Over)
	mux.HandleFunc("POST /api/drag/end", dragHandler.End)
	mux.HandleFunc("PUT /api/drag/folders/{id}", dragHandler.SetFolderOpen)
}
