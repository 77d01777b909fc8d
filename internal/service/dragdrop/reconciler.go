// Package dragdrop turns pointer-drag gestures over the canvas tree into
// move and reorder operations on a workspace.
package dragdrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"canvasdesk/internal/config"
	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
)

// Workspace is the part of the workspace state the reconciler drives.
type Workspace interface {
	Snapshot() models.Snapshot
	SwitchCurrent(ctx context.Context, id string) error
	MoveCanvasToFolder(ctx context.Context, id, folderID string) error
	ReorderCanvases(ctx context.Context, folderID string, orderedIDs []string) error
}

// Phase is the reconciler's state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDragging  Phase = "dragging"
	PhaseResolving Phase = "resolving"
)

// State is what the UI renders while dragging.
type State struct {
	Phase          Phase       `json:"phase"`
	ActiveCanvasID string      `json:"active_canvas_id,omitempty"`
	Target         *DropTarget `json:"target,omitempty"`
	Highlight      []string    `json:"highlight"`
	OpenFolders    []string    `json:"open_folders"`
	// AutoSuppressed is set during the guard interval after a drop. Folder
	// auto-open and auto-close are skipped while it holds.
	AutoSuppressed bool `json:"auto_suppressed"`
}

// Result reports how a drag ended.
type Result struct {
	Intent  Intent `json:"intent"`
	Aborted bool   `json:"aborted"`
}

type stopper interface {
	Stop() bool
}

// Reconciler is the drag-and-drop state machine for one workspace:
// Idle → Dragging → Resolving → Idle.
type Reconciler struct {
	ws     Workspace
	dwell  time.Duration
	settle time.Duration
	logger *slog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	phase      Phase
	active     string
	target     *DropTarget
	open       map[string]bool
	dwellTimer stopper
	dwellGen   uint64
	guardUntil time.Time
}

// NewReconciler creates an idle reconciler.
func NewReconciler(ws Workspace, cfg config.WorkspaceConfig, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		ws:     ws,
		dwell:  cfg.AutoOpenDwell,
		settle: cfg.DragSettleDelay,
		logger: logger,
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		phase: PhaseIdle,
		open:  make(map[string]bool),
	}
}

// State returns the current drag state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Reconciler) stateLocked() State {
	st := State{
		Phase:          r.phase,
		ActiveCanvasID: r.active,
		Highlight:      []string{},
		OpenFolders:    []string{},
		AutoSuppressed: r.suppressedLocked(),
	}
	if r.target != nil {
		t := *r.target
		st.Target = &t
		st.Highlight = append(st.Highlight, t.FolderID)
		if t.CanvasID != "" {
			st.Highlight = append(st.Highlight, t.CanvasID)
		}
	}
	for id, isOpen := range r.open {
		if isOpen {
			st.OpenFolders = append(st.OpenFolders, id)
		}
	}
	sort.Strings(st.OpenFolders)
	return st
}

func (r *Reconciler) suppressedLocked() bool {
	return r.now().Before(r.guardUntil)
}

// SetFolderOpen records that the user opened or closed a folder.
func (r *Reconciler) SetFolderOpen(folderID string, open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[folderID] = open
}

// AutoCloseFolder closes a folder on behalf of a UI heuristic. It reports
// false while the post-drop guard interval holds.
func (r *Reconciler) AutoCloseFolder(folderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseIdle || r.suppressedLocked() {
		return false
	}
	r.open[folderID] = false
	return true
}

// DragStart begins dragging canvasID and makes it the current canvas.
func (r *Reconciler) DragStart(ctx context.Context, canvasID string) error {
	snap := r.ws.Snapshot()
	if _, ok := snap.Canvas(canvasID); !ok {
		return domain.NewNotFound("canvas", canvasID)
	}

	r.mu.Lock()
	if r.phase != PhaseIdle {
		r.mu.Unlock()
		return &domain.InvariantViolationError{Message: "a drag is already in progress"}
	}
	r.phase = PhaseDragging
	r.active = canvasID
	r.target = nil
	r.mu.Unlock()

	r.logger.Debug("drag started", "canvas_id", canvasID)

	if err := r.ws.SwitchCurrent(ctx, canvasID); err != nil && !errors.Is(err, domain.ErrStale) {
		r.reset()
		return fmt.Errorf("select dragged canvas: %w", err)
	}
	return nil
}

// DragOver recomputes the drop target from the candidates under the pointer.
// Nothing is persisted.
func (r *Reconciler) DragOver(candidates []Candidate) (State, error) {
	snap := r.ws.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseDragging {
		return r.stateLocked(), &domain.InvariantViolationError{Message: "no drag in progress"}
	}

	var next *DropTarget
	if t, ok := resolve(&snap, r.active, candidates); ok {
		next = &t
	}
	if !sameTarget(r.target, next) {
		r.cancelDwellLocked()
		r.target = next
		r.armDwellLocked(&snap)
	}
	return r.stateLocked(), nil
}

// armDwellLocked starts the auto-open timer when the target is a closed folder.
func (r *Reconciler) armDwellLocked(snap *models.Snapshot) {
	t := r.target
	if t == nil || t.CanvasID != "" || t.FolderID == snap.RootFolderID {
		return
	}
	if r.open[t.FolderID] || r.suppressedLocked() {
		return
	}

	r.dwellGen++
	gen := r.dwellGen
	folderID := t.FolderID
	r.dwellTimer = r.afterFunc(r.dwell, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.dwellGen != gen || r.phase != PhaseDragging || r.target == nil || r.target.FolderID != folderID || r.target.CanvasID != "" {
			return
		}
		r.open[folderID] = true
		r.dwellTimer = nil
		r.logger.Debug("auto-opened folder", "folder_id", folderID)
	})
}

func (r *Reconciler) cancelDwellLocked() {
	r.dwellGen++
	if r.dwellTimer != nil {
		r.dwellTimer.Stop()
		r.dwellTimer = nil
	}
}

// DragEnd drops onto final, or aborts when final is nil. A move or reorder
// is applied optimistically by the workspace and rolled back there if the
// backend rejects it. The reconciler is idle again when DragEnd returns.
func (r *Reconciler) DragEnd(ctx context.Context, final *Candidate) (Result, error) {
	snap := r.ws.Snapshot()

	r.mu.Lock()
	if r.phase != PhaseDragging {
		r.mu.Unlock()
		return Result{}, &domain.InvariantViolationError{Message: "no drag in progress"}
	}
	r.cancelDwellLocked()
	r.phase = PhaseResolving
	dragged := r.active
	r.mu.Unlock()

	defer r.finish()

	if final == nil {
		r.logger.Debug("drag aborted", "canvas_id", dragged)
		return Result{Intent: Intent{Kind: IntentNone, CanvasID: dragged}, Aborted: true}, nil
	}
	target, ok := resolve(&snap, dragged, []Candidate{*final})
	if !ok {
		r.logger.Debug("drag dropped outside any target", "canvas_id", dragged)
		return Result{Intent: Intent{Kind: IntentNone, CanvasID: dragged}, Aborted: true}, nil
	}

	intent := plan(&snap, dragged, target)
	var err error
	switch intent.Kind {
	case IntentMove:
		err = r.ws.MoveCanvasToFolder(ctx, dragged, intent.FolderID)
	case IntentReorder:
		err = r.ws.ReorderCanvases(ctx, intent.FolderID, intent.OrderedIDs)
	}
	if err != nil {
		r.logger.Warn("drop rejected", "canvas_id", dragged, "intent", intent.Kind, "error", err)
		return Result{Intent: intent}, err
	}

	r.logger.Debug("drag resolved", "canvas_id", dragged, "intent", intent.Kind, "folder_id", intent.FolderID)
	return Result{Intent: intent}, nil
}

// finish returns to Idle and starts the guard interval.
func (r *Reconciler) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = PhaseIdle
	r.active = ""
	r.target = nil
	r.guardUntil = r.now().Add(r.settle)
}

// reset returns to Idle without a guard interval.
func (r *Reconciler) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelDwellLocked()
	r.phase = PhaseIdle
	r.active = ""
	r.target = nil
}

func sameTarget(a, b *DropTarget) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
