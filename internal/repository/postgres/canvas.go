package postgres

import (
	"context"
	"fmt"

	"canvasdesk/internal/domain"
	models "canvasdesk/internal/domain/models/workspace"
)

const canvasMetadataColumns = `id, owner_id, folder_id, title, sort_order, thumbnail, created_at, updated_at`

func scanCanvasMetadata(row rowScanner, extra ...any) (models.Canvas, error) {
	var canvas models.Canvas
	dest := []any{
		&canvas.ID,
		&canvas.OwnerID,
		&canvas.FolderID,
		&canvas.Title,
		&canvas.SortOrder,
		&canvas.Thumbnail,
		&canvas.CreatedAt,
		&canvas.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return canvas, err
}

// ListCanvases lists canvas metadata in sibling order
func (s *Store) ListCanvases(ctx context.Context, ownerID string, folderID *string) ([]models.Canvas, error) {
	args := []any{ownerID}
	filter := ""
	if folderID != nil {
		filter = "AND folder_id::text = $2"
		args = append(args, *folderID)
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = $1 %s
		ORDER BY sort_order ASC, created_at DESC, id ASC
	`, canvasMetadataColumns, s.tables.Canvases, filter)

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list canvases", err)
	}
	defer rows.Close()

	var canvases []models.Canvas
	for rows.Next() {
		canvas, err := scanCanvasMetadata(rows)
		if err != nil {
			return nil, wrapErr("scan canvas", err)
		}
		canvases = append(canvases, canvas)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate canvases", err)
	}
	return canvases, nil
}

// GetCanvas retrieves a canvas including its content
func (s *Store) GetCanvas(ctx context.Context, ownerID, id string) (*models.Canvas, error) {
	query := fmt.Sprintf(`
		SELECT %s, content
		FROM %s
		WHERE id::text = $1 AND owner_id = $2
	`, canvasMetadataColumns, s.tables.Canvases)

	var content []byte
	canvas, err := scanCanvasMetadata(s.db(ctx).QueryRow(ctx, query, id, ownerID), &content)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("canvas", id)
		}
		return nil, wrapErr("get canvas", err)
	}
	canvas.Content = models.Content(content)
	return &canvas, nil
}

// CreateCanvas inserts a canvas. Missing content is stored as a blank scene.
func (s *Store) CreateCanvas(ctx context.Context, canvas *models.Canvas) error {
	content := canvas.Content
	if len(content) == 0 {
		content = models.BlankContent()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, folder_id, title, sort_order, content, thumbnail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.tables.Canvases)

	_, err := s.db(ctx).Exec(ctx, query,
		canvas.ID,
		canvas.OwnerID,
		canvas.FolderID,
		canvas.Title,
		canvas.SortOrder,
		string(content),
		canvas.Thumbnail,
		canvas.CreatedAt,
		canvas.UpdatedAt,
	)
	if err != nil {
		switch {
		case IsPgDuplicateError(err):
			return &domain.ValidationError{Message: fmt.Sprintf("canvas %s already exists", canvas.ID)}
		case IsPgForeignKeyError(err):
			return domain.NewNotFound("folder", canvas.FolderID)
		}
		return wrapErr("create canvas", err)
	}
	return nil
}

// UpdateCanvas applies a partial update; nil patch fields keep their column
func (s *Store) UpdateCanvas(ctx context.Context, ownerID, id string, patch models.CanvasPatch) (*models.Canvas, error) {
	var content *string
	if patch.Content != nil {
		c := string(*patch.Content)
		content = &c
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = COALESCE($3, title),
			content = COALESCE($4::jsonb, content),
			thumbnail = COALESCE($5, thumbnail),
			updated_at = $6
		WHERE id::text = $1 AND owner_id = $2
		RETURNING %s, content
	`, s.tables.Canvases, canvasMetadataColumns)

	var stored []byte
	canvas, err := scanCanvasMetadata(
		s.db(ctx).QueryRow(ctx, query, id, ownerID, patch.Title, content, patch.Thumbnail, s.now()),
		&stored,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("canvas", id)
		}
		return nil, wrapErr("update canvas", err)
	}
	canvas.Content = models.Content(stored)
	return &canvas, nil
}

// DeleteCanvas deletes a canvas
func (s *Store) DeleteCanvas(ctx context.Context, ownerID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id::text = $1 AND owner_id = $2`, s.tables.Canvases)

	result, err := s.db(ctx).Exec(ctx, query, id, ownerID)
	if err != nil {
		return wrapErr("delete canvas", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("canvas", id)
	}
	return nil
}

// MoveCanvas reassigns a canvas to another of the owner's folders
func (s *Store) MoveCanvas(ctx context.Context, ownerID, id, targetFolderID string) error {
	return s.tx.ExecTx(ctx, func(ctx context.Context) error {
		exists, err := s.folderExists(ctx, ownerID, targetFolderID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewNotFound("folder", targetFolderID)
		}

		query := fmt.Sprintf(`
			UPDATE %s
			SET folder_id = $1, updated_at = $2
			WHERE id::text = $3 AND owner_id = $4
		`, s.tables.Canvases)
		result, err := s.db(ctx).Exec(ctx, query, targetFolderID, s.now(), id, ownerID)
		if err != nil {
			return wrapErr("move canvas", err)
		}
		if result.RowsAffected() == 0 {
			return domain.NewNotFound("canvas", id)
		}
		return nil
	})
}

// ReorderCanvases assigns sort orders 1..n in a single statement. If any id
// is unknown the transaction is rolled back and nothing changes.
func (s *Store) ReorderCanvases(ctx context.Context, ownerID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return nil
	}
	return s.tx.ExecTx(ctx, func(ctx context.Context) error {
		query := fmt.Sprintf(`
			UPDATE %s AS c
			SET sort_order = o.ord, updated_at = $3
			FROM unnest($2::text[]) WITH ORDINALITY AS o(id, ord)
			WHERE c.id::text = o.id AND c.owner_id = $1
		`, s.tables.Canvases)

		result, err := s.db(ctx).Exec(ctx, query, ownerID, orderedIDs, s.now())
		if err != nil {
			return wrapErr("reorder canvases", err)
		}
		if int(result.RowsAffected()) != len(orderedIDs) {
			return domain.NewNotFound("canvas", fmt.Sprintf("in reorder batch (%d of %d matched)", result.RowsAffected(), len(orderedIDs)))
		}
		return nil
	})
}

// NextSortOrder asks the server-side function for the next sibling order
func (s *Store) NextSortOrder(ctx context.Context, ownerID, folderID string, atBeginning bool) (int, error) {
	query := fmt.Sprintf(`SELECT %s($1, $2::uuid, $3)`, s.tables.NextSortOrder)

	var order int
	if err := s.db(ctx).QueryRow(ctx, query, ownerID, folderID, atBeginning).Scan(&order); err != nil {
		return 0, wrapErr("next sort order", err)
	}
	return order, nil
}
