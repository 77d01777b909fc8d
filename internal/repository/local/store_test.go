package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
)

const owner = "owner-1"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedCanvas(t *testing.T, s *Store, id, folderID string, order int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.CreateCanvas(context.Background(), &models.Canvas{
		ID:        id,
		OwnerID:   owner,
		FolderID:  folderID,
		Title:     id,
		SortOrder: order,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestRootFolderIsCreatedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	second, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.IsRoot)

	folders, err := s.ListFolders(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, folders, "root folder must not be listed")
}

func TestCreateCanvasStoresBlankContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)

	seedCanvas(t, s, "c1", root.ID, 1)

	got, err := s.GetCanvas(ctx, owner, "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"elements":[],"appState":{}}`, string(got.Content))

	list, err := s.ListCanvases(ctx, owner, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Content, "list results carry metadata only")
}

func TestCreateCanvasRejectsUnknownFolder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)

	now := time.Now()
	err = s.CreateCanvas(ctx, &models.Canvas{
		ID: "c1", OwnerID: owner, FolderID: "elsewhere", Title: "c1", SortOrder: 1,
		CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.ListCanvases(ctx, owner, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateCanvasContentAndTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	seedCanvas(t, s, "c1", root.ID, 1)

	title := "Renamed"
	content := models.Content(`{"elements":[{"id":"a"}],"appState":{}}`)
	updated, err := s.UpdateCanvas(ctx, owner, "c1", models.CanvasPatch{Title: &title, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.JSONEq(t, string(content), string(updated.Content))

	// Title-only patch keeps the stored content
	title = "Again"
	updated, err = s.UpdateCanvas(ctx, owner, "c1", models.CanvasPatch{Title: &title})
	require.NoError(t, err)
	assert.JSONEq(t, string(content), string(updated.Content))

	_, err = s.UpdateCanvas(ctx, owner, "missing", models.CanvasPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteFolderReassignsCanvasesToRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.CreateFolder(ctx, &models.Folder{ID: "f1", OwnerID: owner, Name: "Sketches", SortOrder: 1, CreatedAt: now, UpdatedAt: now}))
	seedCanvas(t, s, "c1", "f1", 1)
	seedCanvas(t, s, "c2", "f1", 2)
	seedCanvas(t, s, "c3", root.ID, 1)

	require.NoError(t, s.DeleteFolder(ctx, owner, "f1"))

	folders, err := s.ListFolders(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, folders)

	list, err := s.ListCanvases(ctx, owner, &root.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestDeleteRootFolderIsRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)

	err = s.DeleteFolder(ctx, owner, root.ID)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestMoveCanvas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, s.CreateFolder(ctx, &models.Folder{ID: "f1", OwnerID: owner, Name: "A", CreatedAt: now, UpdatedAt: now}))
	seedCanvas(t, s, "c1", root.ID, 1)

	require.NoError(t, s.MoveCanvas(ctx, owner, "c1", "f1"))
	got, err := s.GetCanvas(ctx, owner, "c1")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.FolderID)

	err = s.MoveCanvas(ctx, owner, "c1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReorderAndNextSortOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	seedCanvas(t, s, "a", root.ID, 1)
	seedCanvas(t, s, "b", root.ID, 2)
	seedCanvas(t, s, "c", root.ID, 3)

	require.NoError(t, s.ReorderCanvases(ctx, owner, []string{"c", "a", "b"}))

	list, err := s.ListCanvases(ctx, owner, &root.ID)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	next, err := s.NextSortOrder(ctx, owner, root.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 4, next)

	first, err := s.NextSortOrder(ctx, owner, root.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 0, first)

	empty, err := s.NextSortOrder(ctx, owner, "other", true)
	require.NoError(t, err)
	assert.Equal(t, 1, empty)

	err = s.ReorderCanvases(ctx, owner, []string{"a", "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCanvasRemovesContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	seedCanvas(t, s, "c1", root.ID, 1)

	require.NoError(t, s.DeleteCanvas(ctx, owner, "c1"))
	_, err = s.GetCanvas(ctx, owner, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCanvas(ctx, owner, "c1"), domain.ErrNotFound)
}

func TestSaveStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	seedCanvas(t, s, "c1", root.ID, 1)

	status, unsaved, err := s.SaveStatus(ctx, owner, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.SaveStatusSaved, status)
	assert.False(t, unsaved)

	require.NoError(t, s.SetSaveStatus(ctx, owner, "c1", models.SaveStatusPending, true))
	status, unsaved, err = s.SaveStatus(ctx, owner, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.SaveStatusPending, status)
	assert.True(t, unsaved)
}

func TestOwnersAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := s.GetOrCreateRootFolder(ctx, owner)
	require.NoError(t, err)
	seedCanvas(t, s, "c1", root.ID, 1)

	list, err := s.ListCanvases(ctx, "someone-else", nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.GetCanvas(ctx, "someone-else", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
