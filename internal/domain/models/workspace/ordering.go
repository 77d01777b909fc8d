package workspace

import (
	"sort"
)

// SortCanvases orders canvases by sort order, breaking ties by newest
// CreatedAt first and then by ID so the order is total.
func SortCanvases(canvases []Canvas) {
	sort.SliceStable(canvases, func(i, j int) bool {
		return canvasLess(canvases[i], canvases[j])
	})
}

func canvasLess(a, b Canvas) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortFolders orders folders by sort order, then by name.
func SortFolders(folders []Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if folders[i].SortOrder != folders[j].SortOrder {
			return folders[i].SortOrder < folders[j].SortOrder
		}
		return folders[i].Name < folders[j].Name
	})
}

// Siblings returns the canvases in folderID in sibling order.
func Siblings(canvases []Canvas, folderID string) []Canvas {
	var out []Canvas
	for _, c := range canvases {
		if c.FolderID == folderID {
			out = append(out, c)
		}
	}
	SortCanvases(out)
	return out
}

// SiblingIDs returns the IDs of the canvases in folderID in sibling order.
func SiblingIDs(canvases []Canvas, folderID string) []string {
	siblings := Siblings(canvases, folderID)
	ids := make([]string, len(siblings))
	for i, c := range siblings {
		ids[i] = c.ID
	}
	return ids
}
