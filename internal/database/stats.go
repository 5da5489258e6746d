package database

import (
	"context"

	"folio/internal/metrics"
)

// LibraryStats counts live and trashed rows.
func (d *Database) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	done := observeQuery("library_stats")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s metrics.Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM images WHERE deleted_at IS NULL),
			(SELECT COUNT(*) FROM images WHERE deleted_at IS NOT NULL),
			(SELECT COUNT(*) FROM folders WHERE deleted_at IS NULL),
			(SELECT COUNT(*) FROM folders WHERE deleted_at IS NOT NULL),
			(SELECT COUNT(*) FROM tags)
	`).Scan(&s.LiveAssets, &s.TrashedAssets, &s.LiveFolders, &s.TrashedFolders, &s.Tags)
	done(err)
	if err != nil {
		return metrics.Stats{}, storageErr("library stats", err)
	}
	return s, nil
}
