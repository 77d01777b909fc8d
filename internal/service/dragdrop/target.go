package dragdrop

import (
	"slices"

	models "canvasdesk/internal/domain/models/workspace"
)

// TargetKind says what a drag gesture is hovering.
type TargetKind string

const (
	TargetCanvas TargetKind = "canvas"
	TargetFolder TargetKind = "folder"
	TargetRoot   TargetKind = "root" // the top-level drop zone
)

// Candidate is one element under the pointer, as reported by the UI.
// Candidates are listed innermost first.
type Candidate struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// DropTarget is a resolved drop location. CanvasID is set when dropping onto
// another canvas.
type DropTarget struct {
	FolderID string `json:"folder_id"`
	CanvasID string `json:"canvas_id,omitempty"`
}

// resolve turns the first usable candidate into a drop target.
func resolve(snap *models.Snapshot, dragged string, candidates []Candidate) (DropTarget, bool) {
	for _, c := range candidates {
		switch c.Kind {
		case TargetCanvas:
			if c.ID == dragged {
				continue
			}
			if canvas, ok := snap.Canvas(c.ID); ok {
				return DropTarget{FolderID: canvas.FolderID, CanvasID: canvas.ID}, true
			}
		case TargetFolder:
			if _, ok := snap.Folder(c.ID); ok {
				return DropTarget{FolderID: c.ID}, true
			}
		case TargetRoot:
			if snap.RootFolderID != "" {
				return DropTarget{FolderID: snap.RootFolderID}, true
			}
		}
	}
	return DropTarget{}, false
}

// IntentKind is what a drop does.
type IntentKind string

const (
	IntentNone    IntentKind = "none"
	IntentMove    IntentKind = "move"
	IntentReorder IntentKind = "reorder"
)

// Intent is the workspace change a drop resolves to.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	CanvasID   string     `json:"canvas_id"`
	FolderID   string     `json:"folder_id,omitempty"`
	OrderedIDs []string   `json:"ordered_ids,omitempty"`
}

// plan decides between a move and a reorder for dropping dragged on target.
func plan(snap *models.Snapshot, dragged string, target DropTarget) Intent {
	canvas, ok := snap.Canvas(dragged)
	if !ok {
		return Intent{Kind: IntentNone, CanvasID: dragged}
	}
	if target.FolderID != canvas.FolderID {
		return Intent{Kind: IntentMove, CanvasID: dragged, FolderID: target.FolderID}
	}
	if target.CanvasID == "" || target.CanvasID == dragged {
		return Intent{Kind: IntentNone, CanvasID: dragged}
	}

	siblings := models.SiblingIDs(snap.Canvases, canvas.FolderID)
	ordered := splice(siblings, dragged, target.CanvasID)
	if slices.Equal(ordered, siblings) {
		return Intent{Kind: IntentNone, CanvasID: dragged}
	}
	return Intent{Kind: IntentReorder, CanvasID: dragged, FolderID: canvas.FolderID, OrderedIDs: ordered}
}

// splice moves dragged to the index target held before the move: before
// target when moving up, after it when moving down. Other ids keep their
// relative order.
func splice(ids []string, dragged, target string) []string {
	from := slices.Index(ids, dragged)
	to := slices.Index(ids, target)
	if from < 0 || to < 0 || from == to {
		return slices.Clone(ids)
	}
	out := slices.Delete(slices.Clone(ids), from, from+1)
	return slices.Insert(out, to, dragged)
}
