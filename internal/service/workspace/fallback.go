package workspace

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"canvasdesk/internal/config"
	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
	repo "canvasdesk/internal/domain/repositories/workspace"
)

// saveStatusRecorder is implemented by backends that track per-canvas save
// state on this device.
type saveStatusRecorder interface {
	SetSaveStatus(ctx context.Context, ownerID, id string, status models.SaveStatus, unsaved bool) error
}

// FallbackStore routes each call to Remote first and retries it on Local
// when Remote is unavailable. A call is never applied to both backends.
//
// Each backend has its own root folder. A root folder id learned from one
// backend is mapped to the other backend's root when a call carrying it is
// served there, so canvases never reference a folder the serving backend
// does not have.
//
// With a nil remote (anonymous owner) every call goes to Local.
type FallbackStore struct {
	remote    repo.Store
	local     repo.Store
	policy    config.DivergencePolicy
	validator *ContentValidator
	logger    *slog.Logger

	degraded atomic.Bool

	mu    sync.Mutex
	roots map[string]rootIDs // by owner
}

// rootIDs are the root folder ids of one owner on each backend.
type rootIDs struct {
	remote string
	local  string
}

var _ repo.Store = (*FallbackStore)(nil)

// NewFallbackStore creates a store for one session. remote may be nil.
func NewFallbackStore(remote, local repo.Store, policy config.DivergencePolicy, validator *ContentValidator, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = MustContentValidator()
	}
	return &FallbackStore{
		remote:    remote,
		local:     local,
		policy:    policy,
		validator: validator,
		logger:    logger,
		roots:     make(map[string]rootIDs),
	}
}

func (s *FallbackStore) Kind() string { return "fallback" }

// Degraded reports whether Remote has failed during this session.
func (s *FallbackStore) Degraded() bool {
	return s.degraded.Load()
}

// RemoteCapable reports whether this session has a Remote backend at all.
func (s *FallbackStore) RemoteCapable() bool {
	return s.remote != nil
}

// route runs fn on Remote, falling back to Local on BackendUnavailable.
func route[T any](ctx context.Context, s *FallbackStore, op string, fn func(repo.Store) (T, error)) (T, error) {
	if s.remote == nil || (s.policy == config.DivergenceSticky && s.degraded.Load()) {
		return fn(s.local)
	}

	v, err := fn(s.remote)
	if err == nil || !domain.IsBackendUnavailable(err) {
		return v, err
	}

	if !s.degraded.Swap(true) {
		s.logger.Warn("remote backend unavailable, using local store",
			"op", op,
			"policy", s.policy,
			"error", err,
		)
	} else {
		s.logger.Debug("remote backend still unavailable", "op", op, "error", err)
	}
	return fn(s.local)
}

// recordRoot remembers id as ownerID's root folder on b.
func (s *FallbackStore) recordRoot(b repo.Store, ownerID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.roots[ownerID]
	if b == s.remote {
		r.remote = id
	} else {
		r.local = id
	}
	s.roots[ownerID] = r
}

// rootOn returns ownerID's root folder id on b, resolving it once.
func (s *FallbackStore) rootOn(ctx context.Context, b repo.Store, ownerID string) (string, error) {
	s.mu.Lock()
	r := s.roots[ownerID]
	s.mu.Unlock()

	id := r.local
	if b == s.remote {
		id = r.remote
	}
	if id != "" {
		return id, nil
	}
	root, err := b.GetOrCreateRootFolder(ctx, ownerID)
	if err != nil {
		return "", err
	}
	s.recordRoot(b, ownerID, root.ID)
	return root.ID, nil
}

// folderOn maps folderID onto b: the other backend's root becomes b's root,
// any other id is returned unchanged.
func (s *FallbackStore) folderOn(ctx context.Context, b repo.Store, ownerID, folderID string) (string, error) {
	if s.remote == nil || folderID == "" {
		return folderID, nil
	}
	s.mu.Lock()
	r := s.roots[ownerID]
	s.mu.Unlock()

	other := r.remote
	if b == s.remote {
		other = r.local
	}
	if folderID != other {
		return folderID, nil
	}
	mapped, err := s.rootOn(ctx, b, ownerID)
	if err != nil {
		return "", err
	}
	if mapped != folderID {
		s.logger.Debug("mapped root folder across backends", "owner_id", ownerID, "from", folderID, "to", mapped)
	}
	return mapped, nil
}

// exec is route for calls without a result value.
func exec(ctx context.Context, s *FallbackStore, op string, fn func(repo.Store) error) error {
	_, err := route(ctx, s, op, func(b repo.Store) (struct{}, error) {
		return struct{}{}, fn(b)
	})
	return err
}

func (s *FallbackStore) ListFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	return route(ctx, s, "list folders", func(b repo.Store) ([]models.Folder, error) {
		return b.ListFolders(ctx, ownerID)
	})
}

func (s *FallbackStore) ListCanvases(ctx context.Context, ownerID string, folderID *string) ([]models.Canvas, error) {
	return route(ctx, s, "list canvases", func(b repo.Store) ([]models.Canvas, error) {
		if folderID == nil {
			return b.ListCanvases(ctx, ownerID, nil)
		}
		folder, err := s.folderOn(ctx, b, ownerID, *folderID)
		if err != nil {
			return nil, err
		}
		return b.ListCanvases(ctx, ownerID, &folder)
	})
}

// GetCanvas validates the returned content before handing it out.
func (s *FallbackStore) GetCanvas(ctx context.Context, ownerID, id string) (*models.Canvas, error) {
	canvas, err := route(ctx, s, "get canvas", func(b repo.Store) (*models.Canvas, error) {
		return b.GetCanvas(ctx, ownerID, id)
	})
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(canvas.Content); err != nil {
		s.logger.Warn("stored canvas content rejected", "canvas_id", id, "error", err)
		return nil, err
	}
	return canvas, nil
}

func (s *FallbackStore) CreateFolder(ctx context.Context, folder *models.Folder) error {
	return exec(ctx, s, "create folder", func(b repo.Store) error {
		return b.CreateFolder(ctx, folder)
	})
}

func (s *FallbackStore) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	return exec(ctx, s, "update folder", func(b repo.Store) error {
		return b.UpdateFolder(ctx, folder)
	})
}

func (s *FallbackStore) DeleteFolder(ctx context.Context, ownerID, id string) error {
	return exec(ctx, s, "delete folder", func(b repo.Store) error {
		return b.DeleteFolder(ctx, ownerID, id)
	})
}

func (s *FallbackStore) CreateCanvas(ctx context.Context, canvas *models.Canvas) error {
	return exec(ctx, s, "create canvas", func(b repo.Store) error {
		folder, err := s.folderOn(ctx, b, canvas.OwnerID, canvas.FolderID)
		if err != nil {
			return err
		}
		if folder == canvas.FolderID {
			return b.CreateCanvas(ctx, canvas)
		}
		mapped := *canvas
		mapped.FolderID = folder
		return b.CreateCanvas(ctx, &mapped)
	})
}

func (s *FallbackStore) UpdateCanvas(ctx context.Context, ownerID, id string, patch models.CanvasPatch) (*models.Canvas, error) {
	if patch.Content != nil {
		if err := s.validator.Validate(*patch.Content); err != nil {
			return nil, err
		}
	}
	return route(ctx, s, "update canvas", func(b repo.Store) (*models.Canvas, error) {
		return b.UpdateCanvas(ctx, ownerID, id, patch)
	})
}

func (s *FallbackStore) DeleteCanvas(ctx context.Context, ownerID, id string) error {
	return exec(ctx, s, "delete canvas", func(b repo.Store) error {
		return b.DeleteCanvas(ctx, ownerID, id)
	})
}

func (s *FallbackStore) MoveCanvas(ctx context.Context, ownerID, id, targetFolderID string) error {
	return exec(ctx, s, "move canvas", func(b repo.Store) error {
		folder, err := s.folderOn(ctx, b, ownerID, targetFolderID)
		if err != nil {
			return err
		}
		return b.MoveCanvas(ctx, ownerID, id, folder)
	})
}

func (s *FallbackStore) ReorderCanvases(ctx context.Context, ownerID string, orderedIDs []string) error {
	return exec(ctx, s, "reorder canvases", func(b repo.Store) error {
		return b.ReorderCanvases(ctx, ownerID, orderedIDs)
	})
}

func (s *FallbackStore) NextSortOrder(ctx context.Context, ownerID, folderID string, atBeginning bool) (int, error) {
	return route(ctx, s, "next sort order", func(b repo.Store) (int, error) {
		folder, err := s.folderOn(ctx, b, ownerID, folderID)
		if err != nil {
			return 0, err
		}
		return b.NextSortOrder(ctx, ownerID, folder, atBeginning)
	})
}

func (s *FallbackStore) GetOrCreateRootFolder(ctx context.Context, ownerID string) (*models.Folder, error) {
	return route(ctx, s, "get root folder", func(b repo.Store) (*models.Folder, error) {
		root, err := b.GetOrCreateRootFolder(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		s.recordRoot(b, ownerID, root.ID)
		return root, nil
	})
}

// SetSaveStatus records save state on the Local backend only. Canvases that
// live only on Remote have no local record; that is not an error.
func (s *FallbackStore) SetSaveStatus(ctx context.Context, ownerID, id string, status models.SaveStatus, unsaved bool) error {
	rec, ok := s.local.(saveStatusRecorder)
	if !ok {
		return nil
	}
	err := rec.SetSaveStatus(ctx, ownerID, id, status, unsaved)
	if err != nil && domain.IsNotFound(err) {
		return nil
	}
	return err
}
