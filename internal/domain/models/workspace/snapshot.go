package workspace

// Snapshot is an immutable view of one owner's workspace.
type Snapshot struct {
	OwnerID         string   `json:"owner_id"`
	RootFolderID    string   `json:"root_folder_id"`
	Folders         []Folder `json:"folders"`  // user folders, root excluded
	Canvases        []Canvas `json:"canvases"` // metadata only
	CurrentCanvasID string   `json:"current_canvas_id"`
	LoadedCanvasIDs []string `json:"loaded_canvas_ids"` // content resident in memory
	Loading         bool     `json:"loading"`
	Loaded          bool     `json:"loaded"`   // backend queried successfully at least once
	Degraded        bool     `json:"degraded"` // Remote unreachable, Local authoritative
	LastError       string   `json:"last_error,omitempty"`
}

// Canvas returns the canvas with the given id.
func (s *Snapshot) Canvas(id string) (Canvas, bool) {
	for _, c := range s.Canvases {
		if c.ID == id {
			return c, true
		}
	}
	return Canvas{}, false
}

// Folder returns the folder with the given id, including the root folder.
func (s *Snapshot) Folder(id string) (Folder, bool) {
	if id != "" && id == s.RootFolderID {
		return Folder{ID: id, OwnerID: s.OwnerID, IsRoot: true}, true
	}
	for _, f := range s.Folders {
		if f.ID == id {
			return f, true
		}
	}
	return Folder{}, false
}

// Clone returns a deep copy safe to hand to observers.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Folders = append([]Folder(nil), s.Folders...)
	out.Canvases = make([]Canvas, len(s.Canvases))
	for i, c := range s.Canvases {
		c.Content = c.Content.Clone()
		if c.Thumbnail != nil {
			thumb := *c.Thumbnail
			c.Thumbnail = &thumb
		}
		out.Canvases[i] = c
	}
	out.LoadedCanvasIDs = append([]string(nil), s.LoadedCanvasIDs...)
	return out
}
