package workspace

import (
	"canvasdesk/internal/domain/models/workspace"
)

// CreateCanvasRequest represents a canvas creation request
type CreateCanvasRequest struct {
	Title       string  `json:"title"`
	FolderID    *string `json:"folder_id,omitempty"` // nil = root folder
	AtBeginning bool    `json:"at_beginning,omitempty"`
}

// UpdateCanvasRequest represents a partial canvas update
type UpdateCanvasRequest struct {
	Title     *string            `json:"title,omitempty"`
	Content   *workspace.Content `json:"content,omitempty"`
	Thumbnail *string            `json:"thumbnail,omitempty"`
}

// Patch converts the request to a store patch.
func (r UpdateCanvasRequest) Patch() workspace.CanvasPatch {
	return workspace.CanvasPatch{Title: r.Title, Content: r.Content, Thumbnail: r.Thumbnail}
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// UpdateFolderRequest represents a folder rename
type UpdateFolderRequest struct {
	Name string `json:"name"`
}

// MoveCanvasRequest moves a canvas into another folder
type MoveCanvasRequest struct {
	FolderID string `json:"folder_id"`
}

// ReorderCanvasesRequest is the full new sibling order of one folder
type ReorderCanvasesRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}
