package workspace

import (
	"context"
	"errors"
	"fmt"

	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
)

// SwitchCurrent makes id the current canvas. Switching to the canvas that is
// already current and loaded does nothing. Otherwise it
//  1. flushes unsaved edits of the outgoing canvas,
//  2. moves the pointer,
//  3. loads the incoming content and hands it to the editing surface.
//
// If loading fails the pointer reverts. If another switch started meanwhile,
// the result is discarded and ErrStale is returned.
func (w *Workspace) SwitchCurrent(ctx context.Context, id string) error {
	var prev string
	var exists, noop bool
	w.read(func(s *state) {
		_, exists = s.snapshot.Canvas(id)
		prev = s.snapshot.CurrentCanvasID
		noop = prev == id && s.cache.Has(id)
	})
	if !exists {
		return domain.NewNotFound("canvas", id)
	}
	if noop {
		return nil
	}

	if prev != "" && prev != id {
		if err := w.flush(ctx, prev); err != nil {
			return fmt.Errorf("save canvas %s before switching: %w", prev, err)
		}
	}

	var seq uint64
	w.update(func(s *state) {
		s.switchSeq++
		seq = s.switchSeq
		s.snapshot.CurrentCanvasID = id
		s.dirty = false
	})

	if err := w.loadInto(ctx, id, seq); err != nil {
		if errors.Is(err, domain.ErrStale) {
			w.logger.Debug("discarded stale switch", "canvas_id", id)
			return err
		}
		w.updateIf(func(s *state) bool {
			if s.switchSeq != seq {
				return false
			}
			s.snapshot.CurrentCanvasID = prev
			s.snapshot.LastError = err.Error()
			return true
		})
		w.logger.Warn("switch reverted", "canvas_id", id, "previous_id", prev, "error", err)
		return fmt.Errorf("load canvas %s: %w", id, err)
	}

	w.logger.Debug("switched canvas", "canvas_id", id, "previous_id", prev)
	return nil
}

// showCurrent loads content for a pointer that was already moved (after a
// deletion picked a replacement).
func (w *Workspace) showCurrent(ctx context.Context, id string) error {
	var seq uint64
	w.read(func(s *state) { seq = s.switchSeq })
	return w.loadInto(ctx, id, seq)
}

// loadInto fetches id's content, caches it and replaces the editor scene,
// unless a newer switch superseded seq.
func (w *Workspace) loadInto(ctx context.Context, id string, seq uint64) error {
	content, err := w.loadContent(ctx, id)
	if err != nil {
		return err
	}

	w.surfaceMu.Lock()
	var stale bool
	var evicted []string
	w.update(func(s *state) {
		if s.switchSeq != seq || s.snapshot.CurrentCanvasID != id {
			stale = true
			return
		}
		s.cache.Put(id, content)
		evicted = s.cache.Evict(id)
		s.dirty = false
		s.shownID = id
	})
	if !stale && w.surface != nil {
		w.surface.ReplaceContent(content.Clone())
	}
	w.surfaceMu.Unlock()

	if stale {
		return domain.ErrStale
	}
	w.publishEvicted(evicted)
	return nil
}

// loadContent returns id's content from the cache or the store.
func (w *Workspace) loadContent(ctx context.Context, id string) (models.Content, error) {
	var content models.Content
	var cached bool
	w.read(func(s *state) { content, cached = s.cache.Get(id) })
	if cached {
		return content, nil
	}

	canvas, err := w.store.GetCanvas(ctx, w.ownerID, id)
	if err != nil {
		return nil, err
	}
	w.syncDegraded(ctx)
	return canvas.Content, nil
}

// FlushCurrent persists unsaved edits of the current canvas.
func (w *Workspace) FlushCurrent(ctx context.Context) error {
	var current string
	w.read(func(s *state) { current = s.snapshot.CurrentCanvasID })
	if current == "" {
		return nil
	}
	return w.flush(ctx, current)
}

// flush writes the editor's content for id when it is dirty and differs from
// what was last persisted.
func (w *Workspace) flush(ctx context.Context, id string) error {
	if w.surface == nil {
		return nil
	}

	var dirty bool
	var persisted models.Content
	w.read(func(s *state) {
		dirty = s.dirty && s.snapshot.CurrentCanvasID == id
		persisted, _ = s.cache.Peek(id)
	})
	if !dirty {
		return nil
	}

	content := w.surface.CurrentContent()
	if content.Equal(persisted) {
		w.read(func(s *state) { s.dirty = false })
		return nil
	}

	w.recordSaveStatus(ctx, id, models.SaveStatusPending, true)
	updated, err := w.store.UpdateCanvas(ctx, w.ownerID, id, models.CanvasPatch{Content: &content})
	if err != nil {
		w.recordSaveStatus(ctx, id, models.SaveStatusError, true)
		w.logger.Error("failed to flush canvas content", "canvas_id", id, "error", err)
		return err
	}
	w.syncDegraded(ctx)

	latest := w.surface.CurrentContent()
	w.update(func(s *state) {
		if i := indexOfCanvas(s.snapshot.Canvases, id); i >= 0 {
			s.snapshot.Canvases[i] = updated.Metadata()
		}
		s.cache.Set(id, content)
		// Edits made while the write was in flight stay dirty
		if s.snapshot.CurrentCanvasID == id && latest.Equal(content) {
			s.dirty = false
		}
	})
	w.logger.Debug("flushed canvas content", "canvas_id", id, "bytes", len(content))
	return nil
}

// contentChanged is the editing surface callback.
func (w *Workspace) contentChanged(models.Content) {
	var current string
	var becameDirty bool
	w.read(func(s *state) {
		current = s.snapshot.CurrentCanvasID
		if current != "" && !s.dirty {
			s.dirty = true
			becameDirty = true
		}
	})
	if becameDirty {
		w.recordSaveStatus(context.Background(), current, models.SaveStatusPending, true)
	}
}

// Dirty reports whether the current canvas has unflushed edits.
func (w *Workspace) Dirty() bool {
	var dirty bool
	w.read(func(s *state) { dirty = s.dirty })
	return dirty
}

// CurrentContent returns the content the editor shows and the canvas it
// belongs to. While a switch is loading that is still the outgoing canvas.
func (w *Workspace) CurrentContent() (string, models.Content, error) {
	w.surfaceMu.Lock()
	defer w.surfaceMu.Unlock()

	var current, shown string
	var cached models.Content
	w.read(func(s *state) {
		current = s.snapshot.CurrentCanvasID
		shown = s.shownID
		cached, _ = s.cache.Peek(current)
	})
	if current == "" {
		return "", nil, domain.NewNotFound("canvas", "current")
	}
	if w.surface != nil && shown != "" {
		return shown, w.surface.CurrentContent(), nil
	}
	return current, cached, nil
}

// PushContent records an edit the editor made to canvasID. The edit is
// discarded with ErrStale unless canvasID is current and is the canvas the
// surface shows.
func (w *Workspace) PushContent(canvasID string, content models.Content) error {
	if w.surface == nil {
		return &domain.InvariantViolationError{Message: "workspace has no editing surface"}
	}

	w.surfaceMu.Lock()
	defer w.surfaceMu.Unlock()

	var current, shown string
	w.read(func(s *state) {
		current = s.snapshot.CurrentCanvasID
		shown = s.shownID
	})
	if canvasID == "" || canvasID != current || canvasID != shown {
		w.logger.Debug("discarded edit for a canvas that is not shown",
			"canvas_id", canvasID,
			"current_id", current,
			"shown_id", shown,
		)
		return domain.ErrStale
	}

	w.surface.SetContent(content)
	return nil
}

func (w *Workspace) recordSaveStatus(ctx context.Context, id string, status models.SaveStatus, unsaved bool) {
	rec, ok := w.store.(saveStatusRecorder)
	if !ok {
		return
	}
	if err := rec.SetSaveStatus(ctx, w.ownerID, id, status, unsaved); err != nil {
		w.logger.Debug("failed to record save status", "canvas_id", id, "status", status, "error", err)
	}
}

// Preload makes id's content resident without switching to it, evicting the
// least recently used non-current canvas when the cache overflows.
func (w *Workspace) Preload(ctx context.Context, id string) error {
	var exists, resident bool
	w.read(func(s *state) {
		_, exists = s.snapshot.Canvas(id)
		if exists {
			_, resident = s.cache.Get(id)
		}
	})
	if !exists {
		return domain.NewNotFound("canvas", id)
	}
	if resident {
		return nil
	}

	canvas, err := w.store.GetCanvas(ctx, w.ownerID, id)
	if err != nil {
		return fmt.Errorf("preload canvas: %w", err)
	}
	w.syncDegraded(ctx)

	var evicted []string
	w.update(func(s *state) {
		if indexOfCanvas(s.snapshot.Canvases, id) < 0 {
			return
		}
		s.cache.Put(id, canvas.Content)
		evicted = s.cache.Evict(s.snapshot.CurrentCanvasID)
	})
	w.publishEvicted(evicted)
	return nil
}

// Unload drops id's content from memory. Unloading the current canvas is
// refused with a warning and no error.
func (w *Workspace) Unload(id string) error {
	var exists, isCurrent, removed bool
	w.updateIf(func(s *state) bool {
		_, exists = s.snapshot.Canvas(id)
		isCurrent = s.snapshot.CurrentCanvasID == id
		if !exists || isCurrent {
			return false
		}
		removed = s.cache.Remove(id)
		return removed
	})
	if !exists {
		return domain.NewNotFound("canvas", id)
	}
	if isCurrent {
		w.logger.Warn("refusing to unload the current canvas", "canvas_id", id)
		return nil
	}
	if removed {
		w.broker.Publish(Event{Type: EventEvicted, CanvasID: id})
	}
	return nil
}

func (w *Workspace) publishEvicted(ids []string) {
	for _, id := range ids {
		w.logger.Debug("evicted canvas content", "canvas_id", id)
		w.broker.Publish(Event{Type: EventEvicted, CanvasID: id})
	}
}
