package workspace

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
	svc "canvasdesk/internal/domain/services/workspace"
)

// CreateCanvas creates a blank canvas at the beginning or end of a folder.
// A nil or empty FolderID means the root folder; an empty title gets the
// configured default.
func (w *Workspace) CreateCanvas(ctx context.Context, req *svc.CreateCanvasRequest) (*models.Canvas, error) {
	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = w.cfg.DefaultCanvasTitle
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	folderID := ""
	if req.FolderID != nil && *req.FolderID != "" {
		var ok bool
		w.read(func(s *state) { _, ok = s.snapshot.Folder(*req.FolderID) })
		if !ok {
			return nil, domain.NewNotFound("folder", *req.FolderID)
		}
		folderID = *req.FolderID
	}

	canvas, err := w.newCanvas(ctx, title, folderID, req.AtBeginning)
	if err != nil {
		return nil, err
	}

	meta := canvas.Metadata()
	w.update(func(s *state) {
		s.snapshot.Canvases = append(s.snapshot.Canvases, meta)
		models.SortCanvases(s.snapshot.Canvases)
		s.maintainer.Observe(len(s.snapshot.Canvases))
	})

	w.logger.Info("canvas created",
		"canvas_id", meta.ID,
		"folder_id", meta.FolderID,
		"sort_order", meta.SortOrder,
	)
	return &meta, nil
}

// UpdateCanvas applies a title, content or thumbnail change. A content change
// to the current canvas is pushed to the editing surface.
func (w *Workspace) UpdateCanvas(ctx context.Context, id string, req svc.UpdateCanvasRequest) (*models.Canvas, error) {
	patch := req.Patch()
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}

	var existing models.Canvas
	var ok bool
	w.read(func(s *state) { existing, ok = s.snapshot.Canvas(id) })
	if !ok {
		return nil, domain.NewNotFound("canvas", id)
	}
	if patch.IsEmpty() {
		return &existing, nil
	}

	updated, err := w.store.UpdateCanvas(ctx, w.ownerID, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update canvas: %w", err)
	}
	w.syncDegraded(ctx)

	var replace bool
	w.update(func(s *state) {
		if i := indexOfCanvas(s.snapshot.Canvases, id); i >= 0 {
			s.snapshot.Canvases[i] = updated.Metadata()
		}
		if patch.Content != nil {
			s.cache.Set(id, *patch.Content)
			if s.snapshot.CurrentCanvasID == id {
				s.dirty = false
				replace = true
			}
		}
	})
	if replace && w.surface != nil {
		w.surfaceMu.Lock()
		w.surface.ReplaceContent(patch.Content.Clone())
		w.surfaceMu.Unlock()
	}

	meta := updated.Metadata()
	return &meta, nil
}

// DeleteCanvas deletes a canvas. When it was current, a replacement is chosen
// before observers see the change: the first remaining sibling, else the
// first remaining canvas, else a new default canvas.
func (w *Workspace) DeleteCanvas(ctx context.Context, id string) error {
	var folderID string
	var ok bool
	w.read(func(s *state) {
		var c models.Canvas
		c, ok = s.snapshot.Canvas(id)
		folderID = c.FolderID
	})
	if !ok {
		return domain.NewNotFound("canvas", id)
	}

	gen := w.openDeletionGate()
	if err := w.store.DeleteCanvas(ctx, w.ownerID, id); err != nil {
		w.settleDeletion(gen)
		return fmt.Errorf("delete canvas: %w", err)
	}
	w.syncDegraded(ctx)

	var remaining int
	w.read(func(s *state) { remaining = len(s.snapshot.Canvases) - 1 })

	var replacement *models.Canvas
	if remaining <= 0 {
		var err error
		replacement, err = w.newCanvas(ctx, w.cfg.DefaultCanvasTitle, "", false)
		if err != nil {
			// The gate stays closed until settled; the maintainer retries then.
			w.logger.Error("failed to create replacement canvas", "error", err)
		}
	}

	var next string
	w.update(func(s *state) {
		if i := indexOfCanvas(s.snapshot.Canvases, id); i >= 0 {
			s.snapshot.Canvases = append(s.snapshot.Canvases[:i], s.snapshot.Canvases[i+1:]...)
		}
		s.cache.Remove(id)
		if replacement != nil {
			s.snapshot.Canvases = append(s.snapshot.Canvases, replacement.Metadata())
			models.SortCanvases(s.snapshot.Canvases)
		}
		s.maintainer.Observe(len(s.snapshot.Canvases))

		if s.snapshot.CurrentCanvasID == id || s.snapshot.CurrentCanvasID == "" {
			s.dirty = false
			s.switchSeq++
			next = pickReplacement(s.snapshot.Canvases, folderID)
			s.snapshot.CurrentCanvasID = next
		}
	})

	w.logger.Info("canvas deleted", "canvas_id", id, "new_current_id", next)

	if next != "" {
		if err := w.showCurrent(ctx, next); err != nil {
			w.logger.Warn("failed to open replacement canvas", "canvas_id", next, "error", err)
		}
	}
	w.settleDeletion(gen)
	return nil
}

func pickReplacement(canvases []models.Canvas, folderID string) string {
	if siblings := models.SiblingIDs(canvases, folderID); len(siblings) > 0 {
		return siblings[0]
	}
	if len(canvases) > 0 {
		return canvases[0].ID
	}
	return ""
}

// openDeletionGate suppresses the maintainer while a deletion picks its
// replacement. It returns the gate's generation.
func (w *Workspace) openDeletionGate() uint64 {
	var gen uint64
	w.read(func(s *state) {
		s.deleting = true
		s.deleteGen++
		gen = s.deleteGen
	})
	return gen
}

// settleDeletion closes the gate opened as gen after the settle delay, then
// lets the maintainer run.
func (w *Workspace) settleDeletion(gen uint64) {
	finish := func() {
		var closed bool
		w.read(func(s *state) {
			if s.deleting && s.deleteGen == gen {
				s.deleting = false
				closed = true
			}
		})
		if closed {
			w.maintain(context.Background())
		}
	}
	if w.cfg.DeleteSettleDelay <= 0 {
		finish()
		return
	}
	time.AfterFunc(w.cfg.DeleteSettleDelay, finish)
}

// DeletionInProgress reports whether the deletion gate is open.
func (w *Workspace) DeletionInProgress() bool {
	var deleting bool
	w.read(func(s *state) { deleting = s.deleting })
	return deleting
}

// MoveCanvasToFolder moves a canvas into another folder. The move is applied
// to the state first and reverted if the backend rejects it. An empty
// folderID means the root folder.
func (w *Workspace) MoveCanvasToFolder(ctx context.Context, id, folderID string) error {
	if folderID == "" {
		rootID, err := w.rootFolderID(ctx)
		if err != nil {
			return err
		}
		folderID = rootID
	}

	var prev string
	var prevUpdatedAt, movedAt time.Time
	var verr error
	changed := w.updateIf(func(s *state) bool {
		i := indexOfCanvas(s.snapshot.Canvases, id)
		if i < 0 {
			verr = domain.NewNotFound("canvas", id)
			return false
		}
		if _, ok := s.snapshot.Folder(folderID); !ok {
			verr = domain.NewNotFound("folder", folderID)
			return false
		}
		prev = s.snapshot.Canvases[i].FolderID
		if prev == folderID {
			return false
		}
		prevUpdatedAt = s.snapshot.Canvases[i].UpdatedAt
		movedAt = w.now()
		s.snapshot.Canvases[i].FolderID = folderID
		s.snapshot.Canvases[i].UpdatedAt = movedAt
		return true
	})
	if verr != nil {
		return verr
	}
	if !changed {
		return nil
	}

	if err := w.store.MoveCanvas(ctx, w.ownerID, id, folderID); err != nil {
		w.updateIf(func(s *state) bool {
			i := indexOfCanvas(s.snapshot.Canvases, id)
			if i < 0 || s.snapshot.Canvases[i].FolderID != folderID {
				return false
			}
			s.snapshot.Canvases[i].FolderID = prev
			if s.snapshot.Canvases[i].UpdatedAt.Equal(movedAt) {
				s.snapshot.Canvases[i].UpdatedAt = prevUpdatedAt
			}
			return true
		})
		w.logger.Warn("move rolled back", "canvas_id", id, "folder_id", folderID, "error", err)
		w.broker.Publish(Event{Type: EventRolledBack, CanvasID: id, Message: "move could not be saved"})
		return &domain.OptimisticConflictError{Op: "move", CanvasID: id, Err: err}
	}
	w.syncDegraded(ctx)

	w.logger.Info("canvas moved", "canvas_id", id, "from_folder_id", prev, "to_folder_id", folderID)
	return nil
}

// ReorderCanvases sets the sibling order of one folder. orderedIDs must list
// every canvas in the folder exactly once. The new order is applied first
// and reverted if the backend rejects it.
func (w *Workspace) ReorderCanvases(ctx context.Context, folderID string, orderedIDs []string) error {
	if folderID == "" {
		rootID, err := w.rootFolderID(ctx)
		if err != nil {
			return err
		}
		folderID = rootID
	}

	var prev map[string]int
	var verr error
	changed := w.updateIf(func(s *state) bool {
		if _, ok := s.snapshot.Folder(folderID); !ok {
			verr = domain.NewNotFound("folder", folderID)
			return false
		}
		siblings := models.SiblingIDs(s.snapshot.Canvases, folderID)
		if !samePermutation(siblings, orderedIDs) {
			verr = &domain.ValidationError{Message: "ordered ids must list every canvas in the folder exactly once"}
			return false
		}
		if slices.Equal(siblings, orderedIDs) {
			return false
		}

		prev = make(map[string]int, len(siblings))
		now := w.now()
		orders := allocator.Renumber(orderedIDs)
		for i := range s.snapshot.Canvases {
			c := &s.snapshot.Canvases[i]
			if order, ok := orders[c.ID]; ok {
				prev[c.ID] = c.SortOrder
				c.SortOrder = order
				c.UpdatedAt = now
			}
		}
		models.SortCanvases(s.snapshot.Canvases)
		return true
	})
	if verr != nil {
		return verr
	}
	if !changed {
		return nil
	}

	if err := w.store.ReorderCanvases(ctx, w.ownerID, orderedIDs); err != nil {
		w.update(func(s *state) {
			for i := range s.snapshot.Canvases {
				c := &s.snapshot.Canvases[i]
				if order, ok := prev[c.ID]; ok {
					c.SortOrder = order
				}
			}
			models.SortCanvases(s.snapshot.Canvases)
		})
		w.logger.Warn("reorder rolled back", "folder_id", folderID, "error", err)
		w.broker.Publish(Event{Type: EventRolledBack, Message: "reorder could not be saved"})
		return &domain.OptimisticConflictError{Op: "reorder", Err: err}
	}
	w.syncDegraded(ctx)

	w.logger.Debug("canvases reordered", "folder_id", folderID, "count", len(orderedIDs))
	return nil
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
