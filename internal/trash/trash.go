package trash

import (
	"context"
	"fmt"
	"time"

	"folio/internal/apperr"
	"folio/internal/assets"
	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Coordinator runs trash operations against the catalog and the store.
type Coordinator struct {
	db    *database.Database
	store *assets.Store
}

// New creates a Coordinator.
func New(db *database.Database, store *assets.Store) *Coordinator {
	return &Coordinator{db: db, store: store}
}

// Failure is one item a batch could not remove.
type Failure struct {
	Type    database.ItemType `json:"type"`
	ID      string            `json:"id"`
	Kind    apperr.Kind       `json:"errorKind"`
	Message string            `json:"message"`
}

// Summary reports a batch removal.
type Summary struct {
	Total    int       `json:"total"`
	Removed  int       `json:"removed"`
	Failures []Failure `json:"failures"`
}

// String renders the summary shown to the user.
func (s Summary) String() string {
	return fmt.Sprintf("%d of %d items removed", s.Removed, s.Total)
}

// List returns the trash, most recently deleted first.
func (c *Coordinator) List(ctx context.Context) ([]database.TrashEntry, error) {
	return c.db.ListTrash(ctx)
}

// Restore takes an item out of the trash. A restored image keeps its folder
// reference even when that folder is still in the trash.
func (c *Coordinator) Restore(ctx context.Context, itemType database.ItemType, id string) error {
	var err error
	switch itemType {
	case database.ItemImage:
		err = c.store.Restore(ctx, id)
	case database.ItemFolder:
		err = c.db.RestoreFolder(ctx, id)
	default:
		return apperr.New(apperr.InvalidOperation, "restore", "unknown item type %q", itemType)
	}
	if err == nil {
		logging.Info("Restored %s %s from trash", itemType, id)
	}
	return err
}

// PermanentlyDelete removes an item that is in the trash. For an image the
// files go first, then the row, under the image's lock. Folders are only
// removed once nothing references them.
func (c *Coordinator) PermanentlyDelete(ctx context.Context, itemType database.ItemType, id string) error {
	const op = "permanently delete"

	var err error
	switch itemType {
	case database.ItemImage:
		err = c.store.Purge(ctx, id)
	case database.ItemFolder:
		err = c.deleteFolder(ctx, op, id)
	default:
		return apperr.New(apperr.InvalidOperation, op, "unknown item type %q", itemType)
	}

	if err != nil {
		if !apperr.Is(err, apperr.NotFound) && !apperr.Is(err, apperr.InvalidOperation) {
			metrics.TrashPurgeFailuresTotal.WithLabelValues(string(itemType)).Inc()
		}
		return err
	}
	metrics.TrashPurgedTotal.WithLabelValues(string(itemType)).Inc()
	logging.Info("Permanently deleted %s %s", itemType, id)
	return nil
}

func (c *Coordinator) deleteFolder(ctx context.Context, op, id string) error {
	f, err := c.db.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if f.DeletedAt == nil {
		return apperr.New(apperr.InvalidOperation, op, "folder %s is not in the trash", id)
	}
	return c.db.HardDeleteFolder(ctx, id)
}

// EmptyTrash permanently removes everything in the trash. Each image is
// purged on its own, files and row together; folders nothing live still
// references are then removed in one transaction. An image restored after
// the trash was listed is reported as a failure and left alone.
func (c *Coordinator) EmptyTrash(ctx context.Context) (Summary, error) {
	entries, err := c.db.ListTrash(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary, err := c.remove(ctx, entries)
	if err == nil {
		logging.Info("Empty trash: %s", summary)
	}
	return summary, err
}

// PurgeOlderThan permanently removes trash entries deleted before cutoff.
func (c *Coordinator) PurgeOlderThan(ctx context.Context, cutoff time.Time) (Summary, error) {
	entries, err := c.db.TrashedBefore(ctx, cutoff)
	if err != nil {
		return Summary{}, err
	}
	summary, err := c.remove(ctx, entries)
	if err == nil && summary.Total > 0 {
		logging.Info("Trash older than %s: %s", cutoff.Format(time.RFC3339), summary)
	}
	return summary, err
}

func (c *Coordinator) remove(ctx context.Context, entries []database.TrashEntry) (Summary, error) {
	summary := Summary{Total: len(entries), Failures: []Failure{}}
	if len(entries) == 0 {
		return summary, nil
	}

	var images, folders []string
	for _, e := range entries {
		if e.Type == database.ItemImage {
			images = append(images, e.ID)
		} else {
			folders = append(folders, e.ID)
		}
	}

	// Rows go with their files so a concurrent restore never revives an
	// image whose files were removed.
	purgeErrs := make([]error, len(images))
	var g errgroup.Group
	g.SetLimit(c.store.Workers())
	for i, id := range images {
		g.Go(func() error {
			purgeErrs[i] = c.store.Purge(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	purged := 0
	for i, id := range images {
		if err := purgeErrs[i]; err != nil {
			summary.Failures = append(summary.Failures, failure(database.ItemImage, id, err))
			continue
		}
		purged++
	}

	res, err := c.db.BulkHardDelete(ctx, nil, folders)
	if err != nil {
		return Summary{}, err
	}
	for _, id := range res.KeptFolders {
		summary.Failures = append(summary.Failures, failure(database.ItemFolder, id,
			apperr.New(apperr.InvalidOperation, "empty trash", "folder still contains items")))
	}

	summary.Removed = purged + res.FoldersDeleted
	metrics.TrashPurgedTotal.WithLabelValues(string(database.ItemImage)).Add(float64(purged))
	metrics.TrashPurgedTotal.WithLabelValues(string(database.ItemFolder)).Add(float64(res.FoldersDeleted))
	return summary, nil
}

func failure(itemType database.ItemType, id string, err error) Failure {
	metrics.TrashPurgeFailuresTotal.WithLabelValues(string(itemType)).Inc()
	logging.Warn("Could not remove %s %s from trash: %v", itemType, id, err)
	return Failure{Type: itemType, ID: id, Kind: apperr.KindOf(err), Message: err.Error()}
}
