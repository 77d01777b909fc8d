package workspace

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"canvasdesk/internal/config"
	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
	repo "canvasdesk/internal/domain/repositories/workspace"
	svc "canvasdesk/internal/domain/services/workspace"
	"canvasdesk/internal/editor"
	"canvasdesk/internal/repository/local"
)

const testOwner = "owner-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.WorkspaceConfig {
	cfg := config.DefaultWorkspaceConfig()
	cfg.MaxLoadedCanvases = 2
	cfg.DeleteSettleDelay = 0
	return cfg
}

func newLocalStore(t *testing.T) *local.Store {
	t.Helper()
	s, err := local.Open("", discardLogger())
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// recordingStore wraps a Store, counting calls and failing the ones listed
// in failures (keyed by method name). With down set every call fails as
// unavailable.
type recordingStore struct {
	inner repo.Store

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
	down     bool
	held     map[string]*heldLoad
}

// heldLoad parks GetCanvas for one canvas until release is closed.
type heldLoad struct {
	entered chan struct{}
	release chan struct{}
}

func newRecordingStore(inner repo.Store) *recordingStore {
	return &recordingStore{
		inner:    inner,
		calls:    make(map[string]int),
		failures: make(map[string]error),
		held:     make(map[string]*heldLoad),
	}
}

// holdGet makes the next GetCanvas of id block until the returned load is
// released.
func (s *recordingStore) holdGet(id string) *heldLoad {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &heldLoad{entered: make(chan struct{}), release: make(chan struct{})}
	s.held[id] = h
	return h
}

func (s *recordingStore) fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *recordingStore) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *recordingStore) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *recordingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *recordingStore) enter(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.down {
		return &domain.BackendUnavailableError{Backend: "remote", Op: method, Err: io.ErrUnexpectedEOF}
	}
	return s.failures[method]
}

func (s *recordingStore) Kind() string { return "recording" }

func (s *recordingStore) ListFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	if err := s.enter("ListFolders"); err != nil {
		return nil, err
	}
	return s.inner.ListFolders(ctx, ownerID)
}

func (s *recordingStore) ListCanvases(ctx context.Context, ownerID string, folderID *string) ([]models.Canvas, error) {
	if err := s.enter("ListCanvases"); err != nil {
		return nil, err
	}
	return s.inner.ListCanvases(ctx, ownerID, folderID)
}

func (s *recordingStore) GetCanvas(ctx context.Context, ownerID, id string) (*models.Canvas, error) {
	if err := s.enter("GetCanvas"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	h := s.held[id]
	delete(s.held, id)
	s.mu.Unlock()
	if h != nil {
		close(h.entered)
		<-h.release
	}
	return s.inner.GetCanvas(ctx, ownerID, id)
}

func (s *recordingStore) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.enter("CreateFolder"); err != nil {
		return err
	}
	return s.inner.CreateFolder(ctx, folder)
}

func (s *recordingStore) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.enter("UpdateFolder"); err != nil {
		return err
	}
	return s.inner.UpdateFolder(ctx, folder)
}

func (s *recordingStore) DeleteFolder(ctx context.Context, ownerID, id string) error {
	if err := s.enter("DeleteFolder"); err != nil {
		return err
	}
	return s.inner.DeleteFolder(ctx, ownerID, id)
}

func (s *recordingStore) CreateCanvas(ctx context.Context, canvas *models.Canvas) error {
	if err := s.enter("CreateCanvas"); err != nil {
		return err
	}
	return s.inner.CreateCanvas(ctx, canvas)
}

func (s *recordingStore) UpdateCanvas(ctx context.Context, ownerID, id string, patch models.CanvasPatch) (*models.Canvas, error) {
	if err := s.enter("UpdateCanvas"); err != nil {
		return nil, err
	}
	return s.inner.UpdateCanvas(ctx, ownerID, id, patch)
}

func (s *recordingStore) DeleteCanvas(ctx context.Context, ownerID, id string) error {
	if err := s.enter("DeleteCanvas"); err != nil {
		return err
	}
	return s.inner.DeleteCanvas(ctx, ownerID, id)
}

func (s *recordingStore) MoveCanvas(ctx context.Context, ownerID, id, targetFolderID string) error {
	if err := s.enter("MoveCanvas"); err != nil {
		return err
	}
	return s.inner.MoveCanvas(ctx, ownerID, id, targetFolderID)
}

func (s *recordingStore) ReorderCanvases(ctx context.Context, ownerID string, orderedIDs []string) error {
	if err := s.enter("ReorderCanvases"); err != nil {
		return err
	}
	return s.inner.ReorderCanvases(ctx, ownerID, orderedIDs)
}

func (s *recordingStore) NextSortOrder(ctx context.Context, ownerID, folderID string, atBeginning bool) (int, error) {
	if err := s.enter("NextSortOrder"); err != nil {
		return 0, err
	}
	return s.inner.NextSortOrder(ctx, ownerID, folderID, atBeginning)
}

func (s *recordingStore) GetOrCreateRootFolder(ctx context.Context, ownerID string) (*models.Folder, error) {
	if err := s.enter("GetOrCreateRootFolder"); err != nil {
		return nil, err
	}
	return s.inner.GetOrCreateRootFolder(ctx, ownerID)
}

type fixture struct {
	ws      *Workspace
	store   *recordingStore
	surface *editor.MemorySurface
}

// newLoadedWorkspace returns a loaded workspace over an in-memory local
// store. It holds exactly one default canvas.
func newLoadedWorkspace(t *testing.T) fixture {
	t.Helper()
	store := newRecordingStore(newLocalStore(t))
	surface := editor.NewMemorySurface()
	ws := New(testOwner, store, surface, testConfig(), discardLogger())
	t.Cleanup(ws.Close)

	if err := ws.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return fixture{ws: ws, store: store, surface: surface}
}

func (f fixture) createCanvas(t *testing.T, title string) models.Canvas {
	t.Helper()
	c, err := f.ws.CreateCanvas(context.Background(), &svc.CreateCanvasRequest{Title: title})
	if err != nil {
		t.Fatalf("CreateCanvas(%q) error = %v", title, err)
	}
	return *c
}

func (f fixture) current(t *testing.T) string {
	t.Helper()
	return f.ws.Snapshot().CurrentCanvasID
}
