// Package editor provides an in-memory stand-in for the drawing editor.
// The HTTP surface keeps one per session: clients push their scene with
// SetContent and the workspace swaps scenes with ReplaceContent.
package editor

import (
	"sync"

	models "canvasdesk/internal/domain/models/workspace"
	svc "canvasdesk/internal/domain/services/workspace"
)

// MemorySurface holds the scene currently shown to the user.
type MemorySurface struct {
	mu        sync.Mutex
	content   models.Content
	listeners map[int]func(models.Content)
	nextID    int
	replaced  int
}

var _ svc.EditingSurface = (*MemorySurface)(nil)

// NewMemorySurface creates a surface showing a blank scene.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		content:   models.BlankContent(),
		listeners: make(map[int]func(models.Content)),
	}
}

func (s *MemorySurface) CurrentContent() models.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content.Clone()
}

// ReplaceContent swaps the scene. Listeners are not notified: a replacement
// is not a user edit.
func (s *MemorySurface) ReplaceContent(content models.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content.Clone()
	s.replaced++
}

// SetContent records a user edit and notifies listeners.
func (s *MemorySurface) SetContent(content models.Content) {
	s.mu.Lock()
	s.content = content.Clone()
	fns := make([]func(models.Content), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Listeners call back into CurrentContent
	for _, fn := range fns {
		fn(content.Clone())
	}
}

func (s *MemorySurface) OnContentChanged(fn func(models.Content)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// Replacements counts ReplaceContent calls.
func (s *MemorySurface) Replacements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced
}
