package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"folio/internal/metrics"
)

const trashQuery = `
	SELECT 'image' AS type, id, original_name AS name, deleted_at, thumbnail_path
	FROM images WHERE deleted_at IS NOT NULL %s
	UNION ALL
	SELECT 'folder' AS type, id, name, deleted_at, ''
	FROM folders WHERE deleted_at IS NOT NULL %s
	ORDER BY deleted_at DESC, id`

// ListTrash returns every trashed image and folder, most recently deleted
// first.
func (d *Database) ListTrash(ctx context.Context) ([]TrashEntry, error) {
	return d.queryTrash(ctx, "list_trash", "")
}

// TrashedBefore returns trash entries deleted before cutoff.
func (d *Database) TrashedBefore(ctx context.Context, cutoff time.Time) ([]TrashEntry, error) {
	return d.queryTrash(ctx, "trashed_before", "AND deleted_at < ?", cutoff.UnixNano(), cutoff.UnixNano())
}

func (d *Database) queryTrash(ctx context.Context, operation, cond string, args ...any) ([]TrashEntry, error) {
	done := observeQuery(operation)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, sprintfTrash(cond), args...)
	if err != nil {
		done(err)
		return nil, storageErr(operation, err)
	}
	defer func() { _ = rows.Close() }()

	entries := []TrashEntry{}
	for rows.Next() {
		var e TrashEntry
		var deleted int64
		if err := rows.Scan(&e.Type, &e.ID, &e.Name, &deleted, &e.ThumbnailPath); err != nil {
			done(err)
			return nil, storageErr(operation, err)
		}
		e.DeletedAt = fromNanos(deleted)
		entries = append(entries, e)
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, storageErr(operation, err)
	}
	return entries, nil
}

// sprintfTrash applies the same condition to both halves of the union.
func sprintfTrash(cond string) string {
	return fmt.Sprintf(trashQuery, cond, cond)
}

// BulkHardDelete removes the given trashed images and folders in a single
// transaction. Ids that are not in the trash are ignored. Folders are
// removed children first; a folder still referenced by anything outside
// the deleted set is kept and reported.
func (d *Database) BulkHardDelete(ctx context.Context, assetIDs, folderIDs []string) (BulkDeleteResult, error) {
	done := observeQuery("bulk_hard_delete")

	var result BulkDeleteResult
	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		trashed, err := filterTrashed(ctx, tx, "images", assetIDs)
		if err != nil {
			return err
		}
		n, err := hardDeleteAssets(ctx, tx, trashed, d.timestamp())
		if err != nil {
			return err
		}
		result.AssetsDeleted = n

		pending, err := filterTrashed(ctx, tx, "folders", folderIDs)
		if err != nil {
			return err
		}

		// Each pass removes folders that became empty in the previous one.
		for len(pending) > 0 {
			var kept []string
			for _, id := range pending {
				res, err := tx.ExecContext(ctx, `
					DELETE FROM folders WHERE id = ?
					AND NOT EXISTS (SELECT 1 FROM images WHERE folder_id = ?)
					AND NOT EXISTS (SELECT 1 FROM folders c WHERE c.parent_id = ?)
				`, id, id, id)
				if err != nil {
					return err
				}
				if n, _ := res.RowsAffected(); n > 0 {
					result.FoldersDeleted++
				} else {
					kept = append(kept, id)
				}
			}
			if len(kept) == len(pending) {
				result.KeptFolders = kept
				break
			}
			pending = kept
		}
		return nil
	})
	done(err)
	if err != nil {
		return BulkDeleteResult{}, err
	}

	if total := result.AssetsDeleted + result.FoldersDeleted; total > 0 {
		metrics.DBRowsAffected.WithLabelValues("bulk_hard_delete").Observe(float64(total))
	}
	return result, nil
}

func filterTrashed(ctx context.Context, tx *sql.Tx, table string, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		var trashed bool
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) > 0 FROM "+table+" WHERE id = ? AND deleted_at IS NOT NULL", id).Scan(&trashed)
		if err != nil {
			return nil, err
		}
		if trashed {
			out = append(out, id)
		}
	}
	return out, nil
}
