package workspace

import (
	"time"
)

// Canvas is one diagram document. FolderID always resolves to the owner's
// root folder or a user folder; it is never empty once persisted.
type Canvas struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	FolderID  string    `json:"folder_id" db:"folder_id"`
	Title     string    `json:"title" db:"title"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	Content   Content   `json:"content,omitempty" db:"content"` // Empty in list results (metadata only)
	Thumbnail *string   `json:"thumbnail,omitempty" db:"thumbnail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Metadata returns a copy of the canvas without its content payload.
func (c Canvas) Metadata() Canvas {
	c.Content = nil
	return c
}

// CanvasPatch is a partial update. Nil fields are left unchanged.
type CanvasPatch struct {
	Title     *string  `json:"title,omitempty"`
	Content   *Content `json:"content,omitempty"`
	Thumbnail *string  `json:"thumbnail,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CanvasPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Thumbnail == nil
}

// Apply writes the patch onto c and bumps UpdatedAt.
func (p CanvasPatch) Apply(c *Canvas, now time.Time) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Content != nil {
		c.Content = p.Content.Clone()
	}
	if p.Thumbnail != nil {
		thumb := *p.Thumbnail
		c.Thumbnail = &thumb
	}
	c.UpdatedAt = now
}

// SaveStatus records how the last write of a canvas went on this device.
type SaveStatus string

const (
	SaveStatusSaved   SaveStatus = "saved"
	SaveStatusPending SaveStatus = "pending"
	SaveStatusError   SaveStatus = "error"
)
