package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/filesystem"
	"folio/internal/logging"
	"folio/internal/media"
	"folio/internal/metrics"
	"folio/internal/transform"
	"folio/internal/workers"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WallpaperSetter applies an image file as the desktop background.
type WallpaperSetter interface {
	Set(path string) error
}

// Config configures a Store.
type Config struct {
	OriginalsDir  string
	ThumbnailsDir string
	// Workers bounds batch operations. Zero picks a value from the CPU count.
	Workers int
	// Wallpaper may be nil, in which case SetWallpaper only records the
	// choice.
	Wallpaper WallpaperSetter
	// Throttle, when set, is waited on before each item of a batch.
	Throttle Throttle
}

// Throttle holds back batch work, for instance under memory pressure.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Store manages the files behind catalog rows.
type Store struct {
	db           *database.Database
	thumbs       *media.ThumbnailGenerator
	originalsDir string
	workers      int
	wallpaper    WallpaperSetter
	throttle     Throttle
	locks        *keyLock
}

// New creates a Store and makes sure its directories exist.
func New(db *database.Database, cfg Config) (*Store, error) {
	for _, dir := range []string{cfg.OriginalsDir, cfg.ThumbnailsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperr.Wrap(apperr.StorageFailure, "create asset store", err, dir)
		}
	}

	n := cfg.Workers
	if n <= 0 {
		n = workers.ForMixed(8)
	}

	return &Store{
		db:           db,
		thumbs:       media.NewThumbnailGenerator(cfg.ThumbnailsDir),
		originalsDir: cfg.OriginalsDir,
		workers:      n,
		wallpaper:    cfg.Wallpaper,
		throttle:     cfg.Throttle,
		locks:        newKeyLock(),
	}, nil
}

// Workers returns the parallelism bound used for batch operations.
func (s *Store) Workers() int {
	return s.workers
}

// OriginalPath is where the canonical copy of id is kept.
func (s *Store) OriginalPath(id, ext string) string {
	return filepath.Join(s.originalsDir, id+strings.ToLower(ext))
}

// ThumbnailPath is where the thumbnail of id is kept.
func (s *Store) ThumbnailPath(id string) string {
	return s.thumbs.PathFor(id)
}

// Ingest copies the image at src into the store under a new id, renders its
// first thumbnail and inserts the catalog row, in that order. A failing step
// undoes the steps before it, so a row never points at missing files. The
// user's file is never modified.
func (s *Store) Ingest(ctx context.Context, src string, folderID *string) (*database.Asset, error) {
	const op = "ingest"
	start := time.Now()

	asset, err := s.ingest(ctx, src, folderID)
	record(op, start, err)
	if err != nil {
		logging.Warn("Ingest of %s failed: %v", src, err)
		return nil, err
	}
	logging.Info("Ingested %s as %s (%dx%d)", src, asset.ID, asset.Width, asset.Height)
	return asset, nil
}

func (s *Store) ingest(ctx context.Context, src string, folderID *string) (*database.Asset, error) {
	const op = "ingest"

	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, op, err, src)
	}
	info, err := checkReadable(abs)
	if err != nil {
		return nil, err
	}
	if !media.IsImagePath(abs) {
		return nil, apperr.New(apperr.InvalidOperation, op, "%s is not a supported image type", filepath.Base(abs))
	}

	id := uuid.NewString()
	unlock := s.locks.Lock(id)
	defer unlock()

	asset := &database.Asset{
		ID:            id,
		FilePath:      s.OriginalPath(id, filepath.Ext(abs)),
		ThumbnailPath: s.thumbs.PathFor(id),
		OriginalName:  filepath.Base(abs),
		SourcePath:    abs,
		FolderID:      folderID,
		Size:          info.Size(),
	}

	err = runSteps(op,
		step{
			name: "copy original",
			do: func() error {
				if err := filesystem.CopyFile(abs, asset.FilePath); err != nil {
					return apperr.Wrap(apperr.StorageFailure, op, err, "copy original")
				}
				return nil
			},
			undo: func() error { return filesystem.Remove(asset.FilePath) },
		},
		step{
			name: "render thumbnail",
			do: func() error {
				thumb, err := s.generate("ingest", func() (media.Thumbnail, error) {
					return s.thumbs.Generate(id, asset.FilePath, transform.Edits{})
				})
				if err != nil {
					return err
				}
				asset.Width, asset.Height = thumb.SourceWidth, thumb.SourceHeight
				return nil
			},
			undo: func() error { return filesystem.Remove(asset.ThumbnailPath) },
		},
		step{
			name: "insert catalog row",
			do:   func() error { return s.db.InsertAsset(ctx, asset) },
		},
	)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// checkReadable reports NotFound unless path is a regular file that can be
// opened.
func checkReadable(path string) (os.FileInfo, error) {
	const op = "ingest"

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.NotFound, op, "source file %s does not exist", path)
		}
		return nil, apperr.Wrap(apperr.NotFound, op, err, "source file is not accessible")
	}
	if info.IsDir() {
		return nil, apperr.New(apperr.NotFound, op, "source %s is a directory", path)
	}

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, op, err, "source file is not readable")
	}
	_ = f.Close()
	return info, nil
}

// IngestResult is the outcome for one path of IngestMany.
type IngestResult struct {
	Path  string
	Asset *database.Asset
	Err   error
}

// IngestMany ingests paths concurrently. Every path gets a result; one
// failure does not stop the others. Results keep the order of paths.
func (s *Store) IngestMany(ctx context.Context, paths []string, folderID *string) []IngestResult {
	results := make([]IngestResult, len(paths))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := s.wait(ctx); err != nil {
				results[i] = IngestResult{Path: p, Err: err}
				return nil
			}
			a, err := s.Ingest(ctx, p, folderID)
			results[i] = IngestResult{Path: p, Asset: a, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logging.Info("Batch ingest: %d of %d files imported", len(paths)-failed, len(paths))
	return results
}

// ApplyEdit folds ops into the asset's persisted edit state, rewrites the
// thumbnail from the canonical original and then commits the new state.
// ops are interpreted against the image as currently rendered. Calls for
// the same id are queued.
func (s *Store) ApplyEdit(ctx context.Context, id string, ops []transform.Op) (*database.Asset, error) {
	return s.applyEditLocked(ctx, id, nil, ops)
}

// ApplyEditFrom is ApplyEdit for callers that computed ops against a known
// edit state. If the persisted state is no longer base the edit is
// rejected with Conflict and nothing is written.
func (s *Store) ApplyEditFrom(ctx context.Context, id string, base transform.Edits, ops []transform.Op) (*database.Asset, error) {
	return s.applyEditLocked(ctx, id, &base, ops)
}

func (s *Store) applyEditLocked(ctx context.Context, id string, base *transform.Edits, ops []transform.Op) (*database.Asset, error) {
	const op = "apply_edit"
	start := time.Now()

	unlock := s.locks.Lock(id)
	defer unlock()

	asset, err := s.applyEdit(ctx, id, base, ops)
	record(op, start, err)
	if err != nil {
		logging.Warn("Edit of %s failed: %v", id, err)
		return nil, err
	}
	logging.Debug("Edited %s: %v -> rotation=%d flipH=%v crop=%v",
		id, ops, asset.Edits.Rotation, asset.Edits.FlipH, asset.Edits.Crop)
	return asset, nil
}

func (s *Store) applyEdit(ctx context.Context, id string, base *transform.Edits, ops []transform.Op) (*database.Asset, error) {
	if err := transform.Validate(ops); err != nil {
		return nil, err
	}

	asset, err := s.editableAsset(ctx, "apply edit", id)
	if err != nil {
		return nil, err
	}
	if base != nil && !asset.Edits.Equal(*base) {
		return nil, apperr.New(apperr.Conflict, "apply edit",
			"image %s was edited since this edit started", id)
	}

	src, err := media.LoadOriginal(asset.FilePath)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()

	next, err := transform.Fold(asset.Edits, b.Dx(), b.Dy(), ops)
	if err != nil {
		return nil, err
	}

	// The thumbnail is durable before the metadata that describes it.
	if _, err := s.generate("edit", func() (media.Thumbnail, error) {
		return s.thumbs.GenerateFrom(id, src, next)
	}); err != nil {
		return nil, err
	}
	if err := s.db.UpdateAssetEdits(ctx, id, next); err != nil {
		return nil, err
	}

	return s.db.GetAsset(ctx, id)
}

// editableAsset returns a live asset, or InvalidOperation when the id is in
// the trash or was purged.
func (s *Store) editableAsset(ctx context.Context, op, id string) (*database.Asset, error) {
	asset, err := s.db.GetAsset(ctx, id)
	if apperr.Is(err, apperr.NotFound) {
		purged, perr := s.db.IsPurged(ctx, id)
		if perr != nil {
			return nil, perr
		}
		if purged {
			return nil, apperr.New(apperr.InvalidOperation, op, "image %s was permanently deleted", id)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if asset.InTrash() {
		return nil, apperr.New(apperr.InvalidOperation, op, "image %s is in the trash", id)
	}
	return asset, nil
}

// Purge permanently removes a trashed image: the canonical original and
// the thumbnail first, then the catalog row. The image's lock is held
// throughout, so a Restore of id either lands before the purge, which then
// refuses with InvalidOperation, or after it and finds nothing. Files that
// are already gone are skipped; if a file cannot be removed the row stays.
func (s *Store) Purge(ctx context.Context, id string) error {
	const op = "purge"
	start := time.Now()

	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.purge(ctx, id)
	record(op, start, err)
	return err
}

func (s *Store) purge(ctx context.Context, id string) error {
	asset, err := s.db.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if !asset.InTrash() {
		return apperr.New(apperr.InvalidOperation, "purge", "image %s is not in the trash", id)
	}
	if err := purgeFiles(asset); err != nil {
		return err
	}
	return s.db.HardDeleteAsset(ctx, id)
}

// Restore takes a trashed image out of the trash. It waits for any edit or
// purge of id in progress.
func (s *Store) Restore(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.db.RestoreAsset(ctx, id)
}

func purgeFiles(a *database.Asset) error {
	var errs []error
	for _, path := range []string{a.FilePath, a.ThumbnailPath} {
		if path == "" {
			continue
		}
		if !filesystem.Exists(path) {
			logging.Warn("Purge %s: %s already missing", a.ID, path)
			continue
		}
		if err := filesystem.Remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperr.Wrap(apperr.StorageFailure, "purge", errors.Join(errs...), "remove files of "+a.ID)
	}
	logging.Debug("Purged files of %s", a.ID)
	return nil
}

// Regenerate rewrites the thumbnail of id from its original and persisted
// edit state.
func (s *Store) Regenerate(ctx context.Context, id string) error {
	const op = "regenerate"
	start := time.Now()

	unlock := s.locks.Lock(id)
	defer unlock()

	asset, err := s.db.GetAsset(ctx, id)
	if err == nil {
		_, err = s.generate("regenerate", func() (media.Thumbnail, error) {
			return s.thumbs.Generate(id, asset.FilePath, asset.Edits)
		})
	}
	record(op, start, err)
	return err
}

// wait blocks on the throttle, if any.
func (s *Store) wait(ctx context.Context) error {
	err := ctx.Err()
	if s.throttle != nil {
		err = s.throttle.Wait(ctx)
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "batch", err, "batch cancelled")
	}
	return nil
}

// RegenerateReport summarizes RegenerateAll.
type RegenerateReport struct {
	Total       int
	Regenerated int
	Failed      map[string]error
}

// RegenerateAll rewrites every thumbnail, trashed assets included.
func (s *Store) RegenerateAll(ctx context.Context) (RegenerateReport, error) {
	all, err := s.db.AllAssets(ctx)
	if err != nil {
		return RegenerateReport{}, err
	}

	errs := make([]error, len(all))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range all {
		g.Go(func() error {
			if errs[i] = s.wait(ctx); errs[i] == nil {
				errs[i] = s.Regenerate(ctx, all[i].ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := RegenerateReport{Total: len(all), Failed: map[string]error{}}
	for i, err := range errs {
		if err != nil {
			report.Failed[all[i].ID] = err
			continue
		}
		report.Regenerated++
	}
	logging.Info("Regenerated %d of %d thumbnails", report.Regenerated, report.Total)
	return report, nil
}

// Problem lists the files missing for one asset.
type Problem struct {
	AssetID string
	Missing []string
}

// Verify reports every asset whose original or thumbnail is missing.
func (s *Store) Verify(ctx context.Context) ([]Problem, error) {
	all, err := s.db.AllAssets(ctx)
	if err != nil {
		return nil, err
	}

	problems := []Problem{}
	for _, a := range all {
		var missing []string
		for _, path := range []string{a.FilePath, a.ThumbnailPath} {
			if !filesystem.Exists(path) {
				missing = append(missing, path)
			}
		}
		if len(missing) > 0 {
			problems = append(problems, Problem{AssetID: a.ID, Missing: missing})
		}
	}
	return problems, nil
}

// SetWallpaper records id as the wallpaper and hands its original to the
// platform setter in the background. A failing setter is only logged.
func (s *Store) SetWallpaper(ctx context.Context, id string) error {
	asset, err := s.editableAsset(ctx, "set wallpaper", id)
	if err != nil {
		return err
	}
	if err := s.db.SetSetting(ctx, database.SettingWallpaperAssetID, id); err != nil {
		return err
	}

	if s.wallpaper == nil {
		logging.Debug("No wallpaper setter configured, recorded %s only", id)
		return nil
	}
	setter := s.wallpaper
	go func() {
		if err := setter.Set(asset.FilePath); err != nil {
			logging.Warn("Setting wallpaper to %s failed: %v", asset.FilePath, err)
			return
		}
		logging.Info("Wallpaper set to %s", asset.OriginalName)
	}()
	return nil
}

func (s *Store) generate(reason string, fn func() (media.Thumbnail, error)) (media.Thumbnail, error) {
	start := time.Now()
	thumb, err := fn()
	metrics.ThumbnailGenerationsTotal.WithLabelValues(reason, metrics.Status(err)).Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(reason).Observe(time.Since(start).Seconds())
	return thumb, err
}

func record(operation string, start time.Time, err error) {
	metrics.AssetOperationsTotal.WithLabelValues(operation, metrics.Status(err)).Inc()
	metrics.AssetOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
