package workspace

import (
	"context"

	"canvasdesk/internal/domain/models/workspace"
)

// Store is the persistence contract shared by the Remote and Local backends.
// Implementations return *domain.BackendUnavailableError for network,
// connection and schema failures so callers can fall back.
type Store interface {
	// Kind names the backend in logs ("remote", "local", "fallback").
	Kind() string

	// ListFolders lists the owner's user folders (root excluded) in sort order
	ListFolders(ctx context.Context, ownerID string) ([]workspace.Folder, error)

	// ListCanvases lists canvas metadata (no content), optionally limited to
	// one folder, in sibling order
	ListCanvases(ctx context.Context, ownerID string, folderID *string) ([]workspace.Canvas, error)

	// GetCanvas retrieves a canvas including its content
	GetCanvas(ctx context.Context, ownerID, id string) (*workspace.Canvas, error)

	// CreateFolder creates a folder; ID, SortOrder and timestamps must be set
	CreateFolder(ctx context.Context, folder *workspace.Folder) error

	// UpdateFolder renames or reorders a folder
	UpdateFolder(ctx context.Context, folder *workspace.Folder) error

	// DeleteFolder reassigns the folder's canvases to the root folder and
	// then deletes it. Nothing is deleted if reassignment fails.
	DeleteFolder(ctx context.Context, ownerID, id string) error

	// CreateCanvas creates a canvas; ID, FolderID, SortOrder and timestamps must be set
	CreateCanvas(ctx context.Context, canvas *workspace.Canvas) error

	// UpdateCanvas applies a partial update and returns the stored canvas
	UpdateCanvas(ctx context.Context, ownerID, id string, patch workspace.CanvasPatch) (*workspace.Canvas, error)

	// DeleteCanvas deletes a canvas and its content
	DeleteCanvas(ctx context.Context, ownerID, id string) error

	// MoveCanvas reassigns a canvas to another folder
	MoveCanvas(ctx context.Context, ownerID, id, targetFolderID string) error

	// ReorderCanvases assigns sort orders 1..n following orderedIDs
	ReorderCanvases(ctx context.Context, ownerID string, orderedIDs []string) error

	// NextSortOrder returns a sort order before the first (atBeginning) or
	// after the last sibling in folderID; 1 when the folder is empty
	NextSortOrder(ctx context.Context, ownerID, folderID string, atBeginning bool) (int, error)

	// GetOrCreateRootFolder returns the owner's root folder, creating it on first access
	GetOrCreateRootFolder(ctx context.Context, ownerID string) (*workspace.Folder, error)
}
