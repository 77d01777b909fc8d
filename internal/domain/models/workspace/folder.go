package workspace

import (
	"time"
)

// Folder groups canvases. Every owner has exactly one root folder (IsRoot)
// which holds "top level" canvases and is never listed to the UI.
type Folder struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	IsRoot    bool      `json:"is_root,omitempty" db:"is_root"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
