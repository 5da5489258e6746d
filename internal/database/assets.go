package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"folio/internal/apperr"
	"folio/internal/transform"
)

// tagSeparator joins tag names in GROUP_CONCAT; names never contain it.
const tagSeparator = "\x1f"

const assetColumns = `i.id, i.file_path, i.thumbnail_path, i.original_name, i.source_path, i.folder_id,
	i.width, i.height, i.size, i.rotation, i.flip_h, i.crop_data,
	i.created_at, i.updated_at, i.deleted_at,
	COALESCE((SELECT GROUP_CONCAT(t.name, char(31)) FROM image_tags it JOIN tags t ON t.id = it.tag_id WHERE it.image_id = i.id), ''),
	CASE WHEN f.deleted_at IS NOT NULL THEN 1 ELSE 0 END`

const assetFrom = ` FROM images i LEFT JOIN folders f ON f.id = i.folder_id`

func scanAsset(scan func(...any) error) (*Asset, error) {
	var a Asset
	var folder, crop sql.NullString
	var created, updated int64
	var deleted sql.NullInt64
	var tags string
	err := scan(&a.ID, &a.FilePath, &a.ThumbnailPath, &a.OriginalName, &a.SourcePath, &folder,
		&a.Width, &a.Height, &a.Size, &a.Edits.Rotation, &a.Edits.FlipH, &crop,
		&created, &updated, &deleted, &tags, &a.Orphaned)
	if err != nil {
		return nil, err
	}
	if folder.Valid {
		a.FolderID = &folder.String
	}
	if crop.Valid && crop.String != "" {
		var r transform.Rect
		if err := json.Unmarshal([]byte(crop.String), &r); err != nil {
			return nil, fmt.Errorf("image %s: corrupt crop_data: %w", a.ID, err)
		}
		a.Edits.Crop = &r
	}
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	a.DeletedAt = nullTime(deleted)
	a.Tags = splitTags(tags)
	// Orphaned only describes live assets.
	a.Orphaned = a.Orphaned && a.DeletedAt == nil
	return &a, nil
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	tags := strings.Split(s, tagSeparator)
	sort.Slice(tags, func(i, j int) bool { return strings.ToLower(tags[i]) < strings.ToLower(tags[j]) })
	return tags
}

func encodeCrop(r *transform.Rect) (any, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// InsertAsset adds a new image row. The asset's folder, if any, must be
// live. Zero timestamps are filled from the catalog clock.
func (d *Database) InsertAsset(ctx context.Context, a *Asset) error {
	const op = "insert asset"
	done := observeQuery("insert_asset")

	crop, err := encodeCrop(a.Edits.Crop)
	if err != nil {
		done(err)
		return apperr.Wrap(apperr.Internal, op, err, "encode crop")
	}

	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if a.FolderID != nil {
			if err := liveFolder(ctx, tx, op, *a.FolderID); err != nil {
				return err
			}
		}

		now := d.now()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, file_path, thumbnail_path, original_name, source_path, folder_id,
				width, height, size, rotation, flip_h, crop_data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.FilePath, a.ThumbnailPath, a.OriginalName, a.SourcePath, a.FolderID,
			a.Width, a.Height, a.Size, transform.NormalizeRotation(a.Edits.Rotation), a.Edits.FlipH, crop,
			a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano())
		return err
	})
	done(err)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return err
}

// GetAsset returns an image whether or not it is in the trash.
func (d *Database) GetAsset(ctx context.Context, id string) (*Asset, error) {
	done := observeQuery("get_asset")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	a, err := getAsset(ctx, d.db, id)
	done(err)
	return a, err
}

func getAsset(ctx context.Context, q querier, id string) (*Asset, error) {
	row := q.QueryRowContext(ctx, "SELECT "+assetColumns+assetFrom+" WHERE i.id = ?", id)
	a, err := scanAsset(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "get asset", "image %s not found", id)
	}
	if err != nil {
		return nil, storageErr("get asset", err)
	}
	return a, nil
}

// IsPurged reports whether id belonged to an image that was hard-deleted.
func (d *Database) IsPurged(ctx context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var purged bool
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM purged_images WHERE id = ?", id).Scan(&purged)
	if err != nil {
		return false, storageErr("check purged", err)
	}
	return purged, nil
}

// UpdateAssetEdits stores a new edit state for a live image and bumps its
// updated_at. Rotation, mirror and crop change together or not at all.
func (d *Database) UpdateAssetEdits(ctx context.Context, id string, edits transform.Edits) error {
	const op = "update edits"
	done := observeQuery("update_asset_edits")

	crop, err := encodeCrop(edits.Crop)
	if err != nil {
		done(err)
		return apperr.Wrap(apperr.Internal, op, err, "encode crop")
	}

	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if err := liveAsset(ctx, tx, op, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE images SET rotation = ?, flip_h = ?, crop_data = ?, updated_at = ?
			WHERE id = ?
		`, transform.NormalizeRotation(edits.Rotation), edits.FlipH, crop, d.timestamp(), id)
		return err
	})
	done(err)
	return err
}

// MoveAsset puts a live image into folderID, or the root when nil.
func (d *Database) MoveAsset(ctx context.Context, id string, folderID *string) error {
	const op = "move asset"
	done := observeQuery("move_asset")

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		if err := liveAsset(ctx, tx, op, id); err != nil {
			return err
		}
		if folderID != nil {
			if err := liveFolder(ctx, tx, op, *folderID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, "UPDATE images SET folder_id = ?, updated_at = ? WHERE id = ?",
			folderID, d.timestamp(), id)
		return err
	})
	done(err)
	return err
}

func liveAsset(ctx context.Context, q querier, op, id string) error {
	var deleted sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT deleted_at FROM images WHERE id = ?", id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		var purged bool
		if perr := q.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM purged_images WHERE id = ?", id).Scan(&purged); perr == nil && purged {
			return apperr.New(apperr.InvalidOperation, op, "image %s was permanently deleted", id)
		}
		return apperr.New(apperr.NotFound, op, "image %s not found", id)
	}
	if err != nil {
		return err
	}
	if deleted.Valid {
		return apperr.New(apperr.InvalidOperation, op, "image %s is in the trash", id)
	}
	return nil
}

// SoftDeleteAsset moves an image to the trash.
func (d *Database) SoftDeleteAsset(ctx context.Context, id string) error {
	done := observeQuery("soft_delete_asset")
	err := d.setDeleted(ctx, "images", "image", "soft delete image", id, true)
	done(err)
	return err
}

// RestoreAsset takes an image out of the trash. Its folder reference is
// left as it is even if that folder is itself in the trash.
func (d *Database) RestoreAsset(ctx context.Context, id string) error {
	done := observeQuery("restore_asset")
	err := d.setDeleted(ctx, "images", "image", "restore image", id, false)
	done(err)
	return err
}

// HardDeleteAsset removes a trashed image row with its tags and note, and
// records the id as purged. A live image is InvalidOperation.
func (d *Database) HardDeleteAsset(ctx context.Context, id string) error {
	const op = "hard delete image"
	done := observeQuery("hard_delete_asset")

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := hardDeleteAssets(ctx, tx, []string{id}, d.timestamp())
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM images WHERE id = ?", id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.InvalidOperation, op, "image %s is not in the trash", id)
		}
		return apperr.New(apperr.NotFound, op, "image %s not found", id)
	})
	done(err)
	return err
}

// hardDeleteAssets only removes rows that are still in the trash.
func hardDeleteAssets(ctx context.Context, tx *sql.Tx, ids []string, now int64) (int, error) {
	deleted := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, "DELETE FROM images WHERE id = ? AND deleted_at IS NOT NULL", id)
		if err != nil {
			return deleted, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		if n == 0 {
			continue
		}
		deleted++
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO purged_images (id, purged_at) VALUES (?, ?)", id, now); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// ListAssets returns live images matching filter, newest first.
func (d *Database) ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, error) {
	var where []string
	var args []any

	where = append(where, "i.deleted_at IS NULL")
	switch {
	case filter.FolderID != nil:
		where = append(where, "i.folder_id = ?")
		args = append(args, *filter.FolderID)
	case filter.RootOnly:
		where = append(where, "i.folder_id IS NULL")
	}

	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		where = append(where, `(i.original_name LIKE ? ESCAPE '\'
			OR i.file_path LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM notes n WHERE n.image_id = i.id AND n.markdown LIKE ? ESCAPE '\'))`)
		args = append(args, pattern, pattern, pattern)
	}

	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM image_tags it JOIN tags t ON t.id = it.tag_id
			WHERE it.image_id = i.id AND t.name = ? COLLATE NOCASE)`)
		args = append(args, tag)
	}

	query := "SELECT " + assetColumns + assetFrom +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY i.created_at DESC, i.id"
	return d.queryAssets(ctx, "list_assets", query, args...)
}

// AllAssets returns every image row, trashed ones included, oldest first.
func (d *Database) AllAssets(ctx context.Context) ([]Asset, error) {
	return d.queryAssets(ctx, "all_assets",
		"SELECT "+assetColumns+assetFrom+" ORDER BY i.created_at, i.id")
}

// ListTrashedAssets returns images in the trash, most recently deleted first.
func (d *Database) ListTrashedAssets(ctx context.Context) ([]Asset, error) {
	return d.queryAssets(ctx, "list_trashed_assets",
		"SELECT "+assetColumns+assetFrom+" WHERE i.deleted_at IS NOT NULL ORDER BY i.deleted_at DESC, i.id")
}

func (d *Database) queryAssets(ctx context.Context, operation, query string, args ...any) ([]Asset, error) {
	done := observeQuery(operation)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, storageErr(operation, err)
	}
	defer func() { _ = rows.Close() }()

	assets := []Asset{}
	for rows.Next() {
		a, err := scanAsset(rows.Scan)
		if err != nil {
			done(err)
			return nil, storageErr(operation, err)
		}
		assets = append(assets, *a)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, storageErr(operation, err)
	}
	return assets, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
