package workspace

import (
	"canvasdesk/internal/domain/models/workspace"
)

// EditingSurface is the drawing editor the workspace feeds. The workspace
// never interprets content; it only moves it between the surface and storage.
type EditingSurface interface {
	// CurrentContent returns what the editor is showing right now
	CurrentContent() workspace.Content

	// ReplaceContent swaps the editor's scene, called on every successful switch
	ReplaceContent(content workspace.Content)

	// SetContent records a user edit and notifies OnContentChanged listeners
	SetContent(content workspace.Content)

	// OnContentChanged registers fn for user edits. The returned func unsubscribes.
	OnContentChanged(fn func(workspace.Content)) (unsubscribe func())
}
