package postgres

import (
	"context"
	"fmt"

	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
)

const folderColumns = `id, owner_id, name, sort_order, is_root, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.OwnerID,
		&folder.Name,
		&folder.SortOrder,
		&folder.IsRoot,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	return folder, err
}

// ListFolders lists the owner's user folders
func (s *Store) ListFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = $1 AND NOT is_root
		ORDER BY sort_order ASC, name ASC
	`, folderColumns, s.tables.Folders)

	rows, err := s.db(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, wrapErr("list folders", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, wrapErr("scan folder", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate folders", err)
	}
	return folders, nil
}

// CreateFolder creates a user folder
func (s *Store) CreateFolder(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, name, sort_order, is_root, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
		RETURNING created_at, updated_at
	`, s.tables.Folders)

	err := s.db(ctx).QueryRow(ctx, query,
		folder.ID,
		folder.OwnerID,
		folder.Name,
		folder.SortOrder,
		folder.CreatedAt,
		folder.UpdatedAt,
	).Scan(&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ValidationError{Message: fmt.Sprintf("folder %s already exists", folder.ID)}
		}
		return wrapErr("create folder", err)
	}
	return nil
}

// UpdateFolder renames or reorders a user folder
func (s *Store) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, sort_order = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5 AND NOT is_root
	`, s.tables.Folders)

	result, err := s.db(ctx).Exec(ctx, query,
		folder.Name,
		folder.SortOrder,
		folder.UpdatedAt,
		folder.ID,
		folder.OwnerID,
	)
	if err != nil {
		return wrapErr("update folder", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("folder", folder.ID)
	}
	return nil
}

// DeleteFolder moves the folder's canvases to the root folder and deletes
// the folder, in one transaction.
func (s *Store) DeleteFolder(ctx context.Context, ownerID, id string) error {
	return s.tx.ExecTx(ctx, func(ctx context.Context) error {
		var isRoot bool
		query := fmt.Sprintf(`SELECT is_root FROM %s WHERE id = $1 AND owner_id = $2 FOR UPDATE`, s.tables.Folders)
		if err := s.db(ctx).QueryRow(ctx, query, id, ownerID).Scan(&isRoot); err != nil {
			if IsPgNoRowsError(err) {
				return domain.NewNotFound("folder", id)
			}
			return wrapErr("lock folder", err)
		}
		if isRoot {
			return &domain.InvariantViolationError{Message: "the root folder cannot be deleted"}
		}

		root, err := s.GetOrCreateRootFolder(ctx, ownerID)
		if err != nil {
			return err
		}

		reassign := fmt.Sprintf(`
			UPDATE %s
			SET folder_id = $1, updated_at = $2
			WHERE folder_id = $3 AND owner_id = $4
		`, s.tables.Canvases)
		result, err := s.db(ctx).Exec(ctx, reassign, root.ID, s.now(), id, ownerID)
		if err != nil {
			return wrapErr("reassign canvases", err)
		}
		s.logger.Debug("reassigned canvases to root folder",
			"folder_id", id,
			"count", result.RowsAffected(),
		)

		del := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, s.tables.Folders)
		if _, err := s.db(ctx).Exec(ctx, del, id, ownerID); err != nil {
			return wrapErr("delete folder", err)
		}
		return nil
	})
}

// GetOrCreateRootFolder resolves the root folder through the server-side
// function so concurrent first accesses agree on one root.
func (s *Store) GetOrCreateRootFolder(ctx context.Context, ownerID string) (*models.Folder, error) {
	var rootID string
	ensure := fmt.Sprintf(`SELECT %s($1)::text`, s.tables.EnsureRootFolder)
	if err := s.db(ctx).QueryRow(ctx, ensure, ownerID).Scan(&rootID); err != nil {
		return nil, wrapErr("ensure root folder", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, s.tables.Folders)
	folder, err := scanFolder(s.db(ctx).QueryRow(ctx, query, rootID))
	if err != nil {
		return nil, wrapErr("get root folder", err)
	}
	return &folder, nil
}

// folderExists reports whether id is one of the owner's folders, root included
func (s *Store) folderExists(ctx context.Context, ownerID, id string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id::text = $1 AND owner_id = $2)`, s.tables.Folders)
	if err := s.db(ctx).QueryRow(ctx, query, id, ownerID).Scan(&exists); err != nil {
		return false, wrapErr("check folder", err)
	}
	return exists, nil
}
