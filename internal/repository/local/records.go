package local

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	models "canvasdesk/internal/domain/models/workspace"
)

const (
	workspacePrefix = "workspace/"
	foldersPrefix   = "folders/"
	contentPrefix   = "content/"
)

// entry is one element of the per-owner workspace record.
type entry struct {
	Metadata          models.Canvas     `json:"metadata"`
	HasUnsavedChanges bool              `json:"hasUnsavedChanges"`
	SaveStatus        models.SaveStatus `json:"saveStatus"`
}

// contentRecord is stored per canvas id, separate from the metadata list.
type contentRecord struct {
	Content       models.Content `json:"content"`
	Timestamp     int64          `json:"timestamp"` // unix millis of the last write
	SchemaVersion int            `json:"schemaVersion"`
}

func workspaceKey(ownerID string) []byte { return []byte(workspacePrefix + ownerID) }
func foldersKey(ownerID string) []byte   { return []byte(foldersPrefix + ownerID) }
func contentKey(canvasID string) []byte  { return []byte(contentPrefix + canvasID) }

// readJSON decodes the value at key into dst. Missing keys leave dst untouched
// and report found=false.
func readJSON(txn *badger.Txn, key []byte, dst any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func writeJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func loadEntries(txn *badger.Txn, ownerID string) ([]entry, error) {
	var entries []entry
	if _, err := readJSON(txn, workspaceKey(ownerID), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func loadFolders(txn *badger.Txn, ownerID string) ([]models.Folder, error) {
	var folders []models.Folder
	if _, err := readJSON(txn, foldersKey(ownerID), &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func findEntry(entries []entry, id string) int {
	for i := range entries {
		if entries[i].Metadata.ID == id {
			return i
		}
	}
	return -1
}

func findFolder(folders []models.Folder, id string) int {
	for i := range folders {
		if folders[i].ID == id {
			return i
		}
	}
	return -1
}

func findRoot(folders []models.Folder) int {
	for i := range folders {
		if folders[i].IsRoot {
			return i
		}
	}
	return -1
}
