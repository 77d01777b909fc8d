// Package workspace holds the in-memory authority over one owner's canvases:
// which canvas is current, where each canvas lives, which contents are
// resident, and how changes reach the persistence backends.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/config"
	models "canvasdesk/internal/domain/models/workspace"
	repo "canvasdesk/internal/domain/repositories/workspace"
	svc "canvasdesk/internal/domain/services/workspace"
)

// degradedReporter is implemented by stores that can fall back (FallbackStore).
type degradedReporter interface {
	Degraded() bool
}

// state is everything guarded by Workspace.mu.
type state struct {
	snapshot models.Snapshot
	cache    *ContentCache

	// dirty is set when the editing surface reports edits to the current
	// canvas that have not been flushed yet.
	dirty bool

	// deleting is the deletion-in-progress gate. deleteGen identifies the
	// deletion that opened it so an older settle timer cannot close a newer gate.
	deleting  bool
	deleteGen uint64

	// switchSeq increases on every switch; a switch whose sequence is no
	// longer the latest when its load completes is stale.
	switchSeq uint64

	// shownID is the canvas whose content the editing surface holds. It lags
	// CurrentCanvasID while a switch is loading.
	shownID string

	maintainer Maintainer
}

// Workspace is the authoritative in-memory view of one owner's workspace.
// All state changes go through update; the lock is never held across a
// backend call.
type Workspace struct {
	ownerID string
	store   repo.Store
	surface svc.EditingSurface
	cfg     config.WorkspaceConfig
	logger  *slog.Logger
	broker  *Broker
	now     func() time.Time

	mu    sync.Mutex
	state state

	// surfaceMu orders scene replacements against pushed edits. It is taken
	// before mu, never after.
	surfaceMu sync.Mutex

	unsubscribeSurface func()
}

// New creates a workspace for ownerID. surface may be nil, in which case
// content is only moved between the cache and the store.
func New(ownerID string, store repo.Store, surface svc.EditingSurface, cfg config.WorkspaceConfig, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workspace{
		ownerID: ownerID,
		store:   store,
		surface: surface,
		cfg:     cfg,
		logger:  logger.With("owner_id", ownerID),
		broker:  NewBroker(),
		now:     time.Now,
		state: state{
			snapshot: models.Snapshot{OwnerID: ownerID},
			cache:    NewContentCache(cfg.MaxLoadedCanvases),
		},
	}
	if surface != nil {
		w.unsubscribeSurface = surface.OnContentChanged(w.contentChanged)
	}
	return w
}

// OwnerID returns the owner this workspace belongs to.
func (w *Workspace) OwnerID() string { return w.ownerID }

// Snapshot returns a copy of the current state.
func (w *Workspace) Snapshot() models.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Subscribe streams workspace events until the returned func is called.
func (w *Workspace) Subscribe() (<-chan Event, func()) {
	return w.broker.Subscribe()
}

// CacheEntries lists canvases with resident content, most recent first.
func (w *Workspace) CacheEntries() []CacheEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.cache.Entries()
}

// Close detaches from the editing surface and ends all subscriptions.
func (w *Workspace) Close() {
	if w.unsubscribeSurface != nil {
		w.unsubscribeSurface()
	}
	w.broker.Close()
}

func (w *Workspace) snapshotLocked() models.Snapshot {
	w.state.snapshot.LoadedCanvasIDs = w.state.cache.IDs()
	return w.state.snapshot.Clone()
}

// update applies fn under the lock and publishes the resulting snapshot.
func (w *Workspace) update(fn func(s *state)) models.Snapshot {
	w.mu.Lock()
	fn(&w.state)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.broker.Publish(Event{Type: EventSnapshot, Snapshot: &snap})
	return snap
}

// read runs fn under the lock without publishing.
func (w *Workspace) read(fn func(s *state)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.state)
}

// syncDegraded copies the store's degraded flag into the snapshot. When the
// flag is newly set it re-resolves the root folder through the store, which
// now serves calls from Local, and returns that root. Otherwise it returns nil.
func (w *Workspace) syncDegraded(ctx context.Context) *models.Folder {
	dr, ok := w.store.(degradedReporter)
	if !ok || !dr.Degraded() {
		return nil
	}
	var changed bool
	w.read(func(s *state) {
		if !s.snapshot.Degraded {
			s.snapshot.Degraded = true
			changed = true
		}
	})
	if !changed {
		return nil
	}

	root, err := w.store.GetOrCreateRootFolder(ctx, w.ownerID)
	if err != nil {
		w.logger.Warn("failed to resolve root folder after fallback", "error", err)
		root = nil
	}
	snap := w.update(func(s *state) {})
	w.broker.Publish(Event{Type: EventDegraded, Snapshot: &snap, Message: "remote backend unavailable; changes are stored on this device"})
	return root
}

// Load queries the backend for the owner's folders and canvases, picks a
// current canvas and runs the invariant maintainer.
func (w *Workspace) Load(ctx context.Context) error {
	w.update(func(s *state) {
		s.snapshot.Loading = true
	})

	root, err := w.store.GetOrCreateRootFolder(ctx, w.ownerID)
	if err != nil {
		w.loadFailed(err)
		return fmt.Errorf("load workspace: %w", err)
	}

	var folders []models.Folder
	var canvases []models.Canvas
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		folders, err = w.store.ListFolders(gctx, w.ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		canvases, err = w.store.ListCanvases(gctx, w.ownerID, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		w.loadFailed(err)
		return fmt.Errorf("load workspace: %w", err)
	}
	// Lists served by Local reference the local root
	if localRoot := w.syncDegraded(ctx); localRoot != nil {
		root = localRoot
	}

	models.SortFolders(folders)
	models.SortCanvases(canvases)

	var pick string
	w.update(func(s *state) {
		s.snapshot.RootFolderID = root.ID
		s.snapshot.Folders = folders
		s.snapshot.Canvases = canvases
		s.snapshot.Loading = false
		s.snapshot.Loaded = true
		s.snapshot.LastError = ""

		current := s.snapshot.CurrentCanvasID
		if _, ok := s.snapshot.Canvas(current); !ok {
			s.snapshot.CurrentCanvasID = ""
			pick = firstCanvas(canvases, root.ID)
		}
	})

	w.logger.Info("workspace loaded",
		"folders", len(folders),
		"canvases", len(canvases),
		"root_folder_id", root.ID,
	)

	if pick != "" {
		if err := w.SwitchCurrent(ctx, pick); err != nil {
			w.logger.Warn("failed to open initial canvas", "canvas_id", pick, "error", err)
			w.update(func(s *state) { s.snapshot.LastError = err.Error() })
		}
	}

	w.maintain(ctx)
	return nil
}

func (w *Workspace) loadFailed(err error) {
	w.logger.Error("failed to load workspace", "error", err)
	w.update(func(s *state) {
		s.snapshot.Loading = false
		s.snapshot.LastError = err.Error()
	})
}

// firstCanvas prefers the first top-level canvas, then the first anywhere.
func firstCanvas(canvases []models.Canvas, rootID string) string {
	if siblings := models.SiblingIDs(canvases, rootID); len(siblings) > 0 {
		return siblings[0]
	}
	if len(canvases) > 0 {
		return canvases[0].ID
	}
	return ""
}

// maintain creates a default canvas when the loaded workspace is empty.
func (w *Workspace) maintain(ctx context.Context) {
	var create bool
	w.read(func(s *state) {
		create = s.maintainer.ShouldCreate(len(s.snapshot.Canvases), s.snapshot.Loaded, s.deleting)
	})
	if !create {
		return
	}

	canvas, err := w.newCanvas(ctx, w.cfg.DefaultCanvasTitle, "", false)
	if err != nil {
		w.logger.Error("failed to create default canvas", "error", err)
		w.update(func(s *state) {
			s.maintainer.Reset()
			s.snapshot.LastError = err.Error()
		})
		return
	}

	w.update(func(s *state) {
		s.snapshot.Canvases = append(s.snapshot.Canvases, canvas.Metadata())
		models.SortCanvases(s.snapshot.Canvases)
		s.maintainer.Observe(len(s.snapshot.Canvases))
	})
	w.logger.Info("created default canvas for empty workspace", "canvas_id", canvas.ID)

	if err := w.SwitchCurrent(ctx, canvas.ID); err != nil {
		w.logger.Warn("failed to open default canvas", "canvas_id", canvas.ID, "error", err)
	}
}

// newCanvas allocates and persists a canvas without touching the state.
// An empty folderID means the root folder.
func (w *Workspace) newCanvas(ctx context.Context, title, folderID string, atBeginning bool) (*models.Canvas, error) {
	if folderID == "" {
		rootID, err := w.rootFolderID(ctx)
		if err != nil {
			return nil, err
		}
		folderID = rootID
	}

	order, err := w.store.NextSortOrder(ctx, w.ownerID, folderID, atBeginning)
	if err != nil {
		return nil, fmt.Errorf("allocate sort order: %w", err)
	}

	now := w.now()
	canvas := &models.Canvas{
		ID:        allocator.NewID(),
		OwnerID:   w.ownerID,
		FolderID:  folderID,
		Title:     title,
		SortOrder: order,
		Content:   models.BlankContent(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.store.CreateCanvas(ctx, canvas); err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	w.syncDegraded(ctx)
	return canvas, nil
}

// rootFolderID returns the root folder id, resolving it on first use.
func (w *Workspace) rootFolderID(ctx context.Context) (string, error) {
	var rootID string
	w.read(func(s *state) { rootID = s.snapshot.RootFolderID })
	if rootID != "" {
		return rootID, nil
	}

	root, err := w.store.GetOrCreateRootFolder(ctx, w.ownerID)
	if err != nil {
		return "", fmt.Errorf("resolve root folder: %w", err)
	}
	w.update(func(s *state) { s.snapshot.RootFolderID = root.ID })
	return root.ID, nil
}

// updateIf is update for changes that may turn out to be no-ops: nothing is
// published when fn returns false.
func (w *Workspace) updateIf(fn func(s *state) bool) bool {
	w.mu.Lock()
	changed := fn(&w.state)
	var snap models.Snapshot
	if changed {
		snap = w.snapshotLocked()
	}
	w.mu.Unlock()

	if changed {
		w.broker.Publish(Event{Type: EventSnapshot, Snapshot: &snap})
	}
	return changed
}

func indexOfCanvas(canvases []models.Canvas, id string) int {
	for i := range canvases {
		if canvases[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfFolder(folders []models.Folder, id string) int {
	for i := range folders {
		if folders[i].ID == id {
			return i
		}
	}
	return -1
}
