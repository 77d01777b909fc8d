// Package seed fills a backend with a sample workspace for development.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"canvasdesk/internal/allocator"
	models "canvasdesk/internal/domain/models/workspace"
	repo "canvasdesk/internal/domain/repositories/workspace"
)

// WorkspaceSeeder writes sample folders and canvases through a Store, so the
// same data can be seeded into either backend.
type WorkspaceSeeder struct {
	store  repo.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewWorkspaceSeeder creates a new workspace seeder
func NewWorkspaceSeeder(store repo.Store, logger *slog.Logger) *WorkspaceSeeder {
	return &WorkspaceSeeder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

type sampleCanvas struct {
	title   string
	folder  string // empty = top level
	content models.Content
}

var sampleFolders = []string{"Warmups", "Figures"}

func sampleCanvases() []sampleCanvas {
	return []sampleCanvas{
		{title: "Welcome", content: models.Content(`{"elements":[` +
			`{"id":"welcome-frame","type":"rectangle","x":80,"y":80,"width":480,"height":240},` +
			`{"id":"welcome-text","type":"text","x":120,"y":160,"text":"Drag canvases between folders to organise them"}` +
			`],"appState":{"viewBackgroundColor":"#ffffff"}}`)},
		{title: "Scratch"},
		{title: "Gesture drills", folder: "Warmups", content: models.Content(`{"elements":[` +
			`{"id":"stroke-1","type":"freedraw","x":40,"y":40,"points":[[0,0],[30,12],[64,40]]}` +
			`],"appState":{}}`)},
		{title: "Perspective boxes", folder: "Warmups"},
		{title: "Hands", folder: "Figures"},
	}
}

// SeedWorkspace creates the sample workspace for ownerID. An owner that
// already has canvases is left alone.
func (s *WorkspaceSeeder) SeedWorkspace(ctx context.Context, ownerID string) error {
	existing, err := s.store.ListCanvases(ctx, ownerID, nil)
	if err != nil {
		return fmt.Errorf("list canvases: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("owner already has canvases, skipping seed", "owner_id", ownerID, "count", len(existing))
		return nil
	}

	root, err := s.store.GetOrCreateRootFolder(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("root folder: %w", err)
	}

	folderIDs := map[string]string{"": root.ID}
	for i, name := range sampleFolders {
		now := s.now()
		folder := &models.Folder{
			ID:        allocator.NewID(),
			OwnerID:   ownerID,
			Name:      name,
			SortOrder: i + 1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateFolder(ctx, folder); err != nil {
			return fmt.Errorf("create folder %q: %w", name, err)
		}
		folderIDs[name] = folder.ID
	}

	for _, sample := range sampleCanvases() {
		folderID := folderIDs[sample.folder]
		order, err := s.store.NextSortOrder(ctx, ownerID, folderID, false)
		if err != nil {
			return fmt.Errorf("sort order for %q: %w", sample.title, err)
		}

		content := sample.content
		if content == nil {
			content = models.BlankContent()
		}
		now := s.now()
		canvas := &models.Canvas{
			ID:        allocator.NewID(),
			OwnerID:   ownerID,
			FolderID:  folderID,
			Title:     sample.title,
			SortOrder: order,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateCanvas(ctx, canvas); err != nil {
			return fmt.Errorf("create canvas %q: %w", sample.title, err)
		}
		s.logger.Info("seeded canvas", "owner_id", ownerID, "canvas_id", canvas.ID, "title", canvas.Title)
	}
	return nil
}

// ClearWorkspace deletes every canvas and user folder of ownerID. The root
// folder stays.
func (s *WorkspaceSeeder) ClearWorkspace(ctx context.Context, ownerID string) error {
	canvases, err := s.store.ListCanvases(ctx, ownerID, nil)
	if err != nil {
		return fmt.Errorf("list canvases: %w", err)
	}
	for _, c := range canvases {
		if err := s.store.DeleteCanvas(ctx, ownerID, c.ID); err != nil {
			return fmt.Errorf("delete canvas %s: %w", c.ID, err)
		}
	}

	folders, err := s.store.ListFolders(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	for _, f := range folders {
		if err := s.store.DeleteFolder(ctx, ownerID, f.ID); err != nil {
			return fmt.Errorf("delete folder %s: %w", f.ID, err)
		}
	}

	s.logger.Info("cleared workspace", "owner_id", ownerID, "canvases", len(canvases), "folders", len(folders))
	return nil
}
