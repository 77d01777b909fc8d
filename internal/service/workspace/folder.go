package workspace

import (
	"context"
	"fmt"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
	svc "canvasdesk/internal/domain/services/workspace"
)

// CreateFolder creates an empty folder after the existing ones.
func (w *Workspace) CreateFolder(ctx context.Context, req *svc.CreateFolderRequest) (*models.Folder, error) {
	name, err := normalizeFolderName(req.Name)
	if err != nil {
		return nil, err
	}

	var orders []int
	w.read(func(s *state) {
		for _, f := range s.snapshot.Folders {
			orders = append(orders, f.SortOrder)
		}
	})

	now := w.now()
	folder := &models.Folder{
		ID:        allocator.NewID(),
		OwnerID:   w.ownerID,
		Name:      name,
		SortOrder: allocator.NextSortOrder(orders, false),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.store.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	w.syncDegraded(ctx)

	w.update(func(s *state) {
		s.snapshot.Folders = append(s.snapshot.Folders, *folder)
		models.SortFolders(s.snapshot.Folders)
	})

	w.logger.Info("folder created", "folder_id", folder.ID, "name", folder.Name)
	return folder, nil
}

// UpdateFolder renames a folder. The root folder cannot be renamed.
func (w *Workspace) UpdateFolder(ctx context.Context, id string, req *svc.UpdateFolderRequest) (*models.Folder, error) {
	name, err := normalizeFolderName(req.Name)
	if err != nil {
		return nil, err
	}

	var folder models.Folder
	var found, isRoot bool
	w.read(func(s *state) {
		isRoot = id == s.snapshot.RootFolderID
		if i := indexOfFolder(s.snapshot.Folders, id); i >= 0 {
			folder = s.snapshot.Folders[i]
			found = true
		}
	})
	if isRoot {
		return nil, &domain.InvariantViolationError{Message: "the top level cannot be renamed"}
	}
	if !found {
		return nil, domain.NewNotFound("folder", id)
	}

	folder.Name = name
	folder.UpdatedAt = w.now()
	if err := w.store.UpdateFolder(ctx, &folder); err != nil {
		return nil, fmt.Errorf("update folder: %w", err)
	}
	w.syncDegraded(ctx)

	w.update(func(s *state) {
		if i := indexOfFolder(s.snapshot.Folders, id); i >= 0 {
			s.snapshot.Folders[i] = folder
		}
	})
	return &folder, nil
}

// DeleteFolder deletes an empty folder. Non-empty folders are rejected before
// any backend call.
func (w *Workspace) DeleteFolder(ctx context.Context, id string) error {
	var found, isRoot, empty bool
	w.read(func(s *state) {
		isRoot = id == s.snapshot.RootFolderID
		found = indexOfFolder(s.snapshot.Folders, id) >= 0
		empty = len(models.Siblings(s.snapshot.Canvases, id)) == 0
	})
	switch {
	case isRoot:
		return &domain.InvariantViolationError{Message: "the top level cannot be deleted"}
	case !found:
		return domain.NewNotFound("folder", id)
	case !empty:
		return &domain.InvariantViolationError{Message: "only empty folders can be deleted"}
	}

	if err := w.store.DeleteFolder(ctx, w.ownerID, id); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	w.syncDegraded(ctx)

	w.update(func(s *state) {
		if i := indexOfFolder(s.snapshot.Folders, id); i >= 0 {
			s.snapshot.Folders = append(s.snapshot.Folders[:i], s.snapshot.Folders[i+1:]...)
		}
		// A canvas moved in while the delete was in flight was reassigned
		// to the root folder by the backend.
		for i := range s.snapshot.Canvases {
			if s.snapshot.Canvases[i].FolderID == id {
				s.snapshot.Canvases[i].FolderID = s.snapshot.RootFolderID
			}
		}
	})

	w.logger.Info("folder deleted", "folder_id", id)
	return nil
}
