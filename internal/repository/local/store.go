// Package local implements the on-device workspace backend on Badger.
//
// Layout:
//
//	workspace/<owner>  list of {metadata, hasUnsavedChanges, saveStatus}
//	folders/<owner>    list of folders, root included (isRoot)
//	content/<canvas>   {content, timestamp, schemaVersion}
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/config"
	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
	repo "canvasdesk/internal/domain/repositories/workspace"
)

// RootFolderName is the stored name of every owner's root folder.
const RootFolderName = "root"

// Store implements the workspace Store on a Badger database.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time

	// Badger rejects concurrent read-modify-write of one key with
	// ErrConflict; writes are serialized instead.
	mu sync.Mutex
}

var _ repo.Store = (*Store)(nil)

// Open opens the Badger database at path, or an in-memory one when path is empty.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already opened database.
func New(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Kind() string { return "local" }

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(fn)
}

// ListFolders lists user folders, root excluded.
func (s *Store) ListFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	var out []models.Folder
	err := s.db.View(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, ownerID)
		if err != nil {
			return err
		}
		for _, f := range folders {
			if !f.IsRoot {
				out = append(out, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	models.SortFolders(out)
	return out, nil
}

// ListCanvases lists canvas metadata, optionally limited to one folder.
func (s *Store) ListCanvases(ctx context.Context, ownerID string, folderID *string) ([]models.Canvas, error) {
	var out []models.Canvas
	err := s.db.View(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if folderID != nil && e.Metadata.FolderID != *folderID {
				continue
			}
			out = append(out, e.Metadata.Metadata())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	models.SortCanvases(out)
	return out, nil
}

// GetCanvas returns a canvas with its content.
func (s *Store) GetCanvas(ctx context.Context, ownerID, id string) (*models.Canvas, error) {
	var canvas models.Canvas
	err := s.db.View(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		i := findEntry(entries, id)
		if i < 0 {
			return domain.NewNotFound("canvas", id)
		}
		canvas = entries[i].Metadata

		var rec contentRecord
		found, err := readJSON(txn, contentKey(id), &rec)
		if err != nil {
			return err
		}
		if found {
			canvas.Content = rec.Content
		} else {
			canvas.Content = models.BlankContent()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &canvas, nil
}

func (s *Store) CreateFolder(ctx context.Context, folder *models.Folder) error {
	return s.update(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, folder.OwnerID)
		if err != nil {
			return err
		}
		if findFolder(folders, folder.ID) >= 0 {
			return &domain.ValidationError{Message: fmt.Sprintf("folder %s already exists", folder.ID)}
		}
		folders = append(folders, *folder)
		return writeJSON(txn, foldersKey(folder.OwnerID), folders)
	})
}

func (s *Store) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	return s.update(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, folder.OwnerID)
		if err != nil {
			return err
		}
		i := findFolder(folders, folder.ID)
		if i < 0 || folders[i].IsRoot {
			return domain.NewNotFound("folder", folder.ID)
		}
		folders[i].Name = folder.Name
		folders[i].SortOrder = folder.SortOrder
		folders[i].UpdatedAt = folder.UpdatedAt
		return writeJSON(txn, foldersKey(folder.OwnerID), folders)
	})
}

// DeleteFolder moves the folder's canvases to root and deletes the folder in
// one transaction.
func (s *Store) DeleteFolder(ctx context.Context, ownerID, id string) error {
	return s.update(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, ownerID)
		if err != nil {
			return err
		}
		i := findFolder(folders, id)
		if i < 0 {
			return domain.NewNotFound("folder", id)
		}
		if folders[i].IsRoot {
			return &domain.InvariantViolationError{Message: "the root folder cannot be deleted"}
		}

		folders, root := s.ensureRoot(folders, ownerID)
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		now := s.now()
		for j := range entries {
			if entries[j].Metadata.FolderID == id {
				entries[j].Metadata.FolderID = root.ID
				entries[j].Metadata.UpdatedAt = now
			}
		}
		if err := writeJSON(txn, workspaceKey(ownerID), entries); err != nil {
			return err
		}

		i = findFolder(folders, id)
		folders = append(folders[:i], folders[i+1:]...)
		return writeJSON(txn, foldersKey(ownerID), folders)
	})
}

// CreateCanvas rejects a FolderID that names no folder of the owner, like
// the Remote foreign key does.
func (s *Store) CreateCanvas(ctx context.Context, canvas *models.Canvas) error {
	return s.update(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, canvas.OwnerID)
		if err != nil {
			return err
		}
		if findFolder(folders, canvas.FolderID) < 0 {
			return domain.NewNotFound("folder", canvas.FolderID)
		}
		entries, err := loadEntries(txn, canvas.OwnerID)
		if err != nil {
			return err
		}
		if findEntry(entries, canvas.ID) >= 0 {
			return &domain.ValidationError{Message: fmt.Sprintf("canvas %s already exists", canvas.ID)}
		}

		content := canvas.Content
		if len(content) == 0 {
			content = models.BlankContent()
		}
		entries = append(entries, entry{
			Metadata:   canvas.Metadata(),
			SaveStatus: models.SaveStatusSaved,
		})
		if err := writeJSON(txn, workspaceKey(canvas.OwnerID), entries); err != nil {
			return err
		}
		return s.writeContent(txn, canvas.ID, content)
	})
}

func (s *Store) UpdateCanvas(ctx context.Context, ownerID, id string, patch models.CanvasPatch) (*models.Canvas, error) {
	var updated models.Canvas
	err := s.update(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		i := findEntry(entries, id)
		if i < 0 {
			return domain.NewNotFound("canvas", id)
		}

		canvas := entries[i].Metadata
		patch.Apply(&canvas, s.now())
		entries[i].Metadata = canvas.Metadata()
		entries[i].HasUnsavedChanges = false
		entries[i].SaveStatus = models.SaveStatusSaved
		if err := writeJSON(txn, workspaceKey(ownerID), entries); err != nil {
			return err
		}

		if patch.Content != nil {
			if err := s.writeContent(txn, id, canvas.Content); err != nil {
				return err
			}
		} else {
			var rec contentRecord
			if _, err := readJSON(txn, contentKey(id), &rec); err != nil {
				return err
			}
			canvas.Content = rec.Content
		}
		updated = canvas
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteCanvas(ctx context.Context, ownerID, id string) error {
	return s.update(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		i := findEntry(entries, id)
		if i < 0 {
			return domain.NewNotFound("canvas", id)
		}
		entries = append(entries[:i], entries[i+1:]...)
		if err := writeJSON(txn, workspaceKey(ownerID), entries); err != nil {
			return err
		}
		return txn.Delete(contentKey(id))
	})
}

func (s *Store) MoveCanvas(ctx context.Context, ownerID, id, targetFolderID string) error {
	return s.update(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, ownerID)
		if err != nil {
			return err
		}
		if findFolder(folders, targetFolderID) < 0 {
			return domain.NewNotFound("folder", targetFolderID)
		}
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		i := findEntry(entries, id)
		if i < 0 {
			return domain.NewNotFound("canvas", id)
		}
		entries[i].Metadata.FolderID = targetFolderID
		entries[i].Metadata.UpdatedAt = s.now()
		return writeJSON(txn, workspaceKey(ownerID), entries)
	})
}

// ReorderCanvases assigns 1..n in the given order. Unknown ids fail the
// whole batch.
func (s *Store) ReorderCanvases(ctx context.Context, ownerID string, orderedIDs []string) error {
	return s.update(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		now := s.now()
		for id, order := range allocator.Renumber(orderedIDs) {
			i := findEntry(entries, id)
			if i < 0 {
				return domain.NewNotFound("canvas", id)
			}
			entries[i].Metadata.SortOrder = order
			entries[i].Metadata.UpdatedAt = now
		}
		return writeJSON(txn, workspaceKey(ownerID), entries)
	})
}

func (s *Store) NextSortOrder(ctx context.Context, ownerID, folderID string, atBeginning bool) (int, error) {
	var orders []int
	err := s.db.View(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Metadata.FolderID == folderID {
				orders = append(orders, e.Metadata.SortOrder)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("next sort order: %w", err)
	}
	return allocator.NextSortOrder(orders, atBeginning), nil
}

func (s *Store) GetOrCreateRootFolder(ctx context.Context, ownerID string) (*models.Folder, error) {
	var root models.Folder
	err := s.update(func(txn *badger.Txn) error {
		folders, err := loadFolders(txn, ownerID)
		if err != nil {
			return err
		}
		if i := findRoot(folders); i >= 0 {
			root = folders[i]
			return nil
		}
		folders, root = s.ensureRoot(folders, ownerID)
		s.logger.Debug("created local root folder", "owner_id", ownerID, "folder_id", root.ID)
		return writeJSON(txn, foldersKey(ownerID), folders)
	})
	if err != nil {
		return nil, fmt.Errorf("get or create root folder: %w", err)
	}
	return &root, nil
}

// SetSaveStatus records the save state of a canvas without touching its
// metadata or content.
func (s *Store) SetSaveStatus(ctx context.Context, ownerID, id string, status models.SaveStatus, unsaved bool) error {
	return s.update(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		i := findEntry(entries, id)
		if i < 0 {
			return domain.NewNotFound("canvas", id)
		}
		entries[i].SaveStatus = status
		entries[i].HasUnsavedChanges = unsaved
		return writeJSON(txn, workspaceKey(ownerID), entries)
	})
}

// SaveStatus returns the recorded save state of a canvas.
func (s *Store) SaveStatus(ctx context.Context, ownerID, id string) (models.SaveStatus, bool, error) {
	var status models.SaveStatus
	var unsaved bool
	err := s.db.View(func(txn *badger.Txn) error {
		entries, err := loadEntries(txn, ownerID)
		if err != nil {
			return err
		}
		i := findEntry(entries, id)
		if i < 0 {
			return domain.NewNotFound("canvas", id)
		}
		status = entries[i].SaveStatus
		unsaved = entries[i].HasUnsavedChanges
		return nil
	})
	return status, unsaved, err
}

// ensureRoot returns folders with a root folder present, creating one if needed.
func (s *Store) ensureRoot(folders []models.Folder, ownerID string) ([]models.Folder, models.Folder) {
	if i := findRoot(folders); i >= 0 {
		return folders, folders[i]
	}
	now := s.now()
	root := models.Folder{
		ID:        allocator.NewID(),
		OwnerID:   ownerID,
		Name:      RootFolderName,
		IsRoot:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return append(folders, root), root
}

func (s *Store) writeContent(txn *badger.Txn, id string, content models.Content) error {
	return writeJSON(txn, contentKey(id), contentRecord{
		Content:       content,
		Timestamp:     s.now().UnixMilli(),
		SchemaVersion: config.ContentSchemaVersion,
	})
}
