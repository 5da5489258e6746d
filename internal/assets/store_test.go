package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/media"
	"folio/internal/transform"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// writeSplitPNG writes a w×h PNG whose left half is red and right half blue.
func writeSplitPNG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := red
			if x >= w/2 {
				c = blue
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testEnv struct {
	store *Store
	db    *database.Database
	dir   string
}

func newTestStore(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(context.Background(), filepath.Join(dir, "folio.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(db, Config{
		OriginalsDir:  filepath.Join(dir, "images", "original"),
		ThumbnailsDir: filepath.Join(dir, "images", "thumbnails"),
		Workers:       4,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return testEnv{store: s, db: db, dir: dir}
}

func (e testEnv) source(t *testing.T, name string, w, h int) (string, []byte) {
	t.Helper()
	path := filepath.Join(e.dir, name)
	return path, writeSplitPNG(t, path, w, h)
}

func decodeThumb(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	return img
}

func isReddish(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return r > 0xc000 && b < 0x4000
}

func isBluish(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return b > 0xc000 && r < 0x4000
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestIngestEditTrashRestoreScenario(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 40, 20)

	a, err := env.store.Ingest(ctx, src, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	row, err := env.db.GetAsset(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.FolderID != nil || row.Edits.Rotation != 0 || row.Edits.Crop != nil {
		t.Errorf("new row = %+v, want root folder and no edits", row)
	}
	if row.Width != 40 || row.Height != 20 {
		t.Errorf("dimensions = %dx%d, want 40x20", row.Width, row.Height)
	}
	if _, err := os.Stat(row.ThumbnailPath); err != nil {
		t.Errorf("thumbnail missing: %v", err)
	}

	edited, err := env.store.ApplyEdit(ctx, a.ID, []transform.Op{transform.Rotate{Degrees: 90}})
	if err != nil {
		t.Fatalf("ApplyEdit() error = %v", err)
	}
	if edited.Edits.Rotation != 90 {
		t.Errorf("rotation = %d, want 90", edited.Edits.Rotation)
	}

	thumb := decodeThumb(t, edited.ThumbnailPath)
	if b := thumb.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Fatalf("rotated thumbnail = %dx%d, want 20x40", b.Dx(), b.Dy())
	}
	// Clockwise: the red left half ends up on top.
	if !isReddish(thumb.At(10, 5)) || !isBluish(thumb.At(10, 35)) {
		t.Errorf("thumbnail not rotated clockwise: top=%v bottom=%v", thumb.At(10, 5), thumb.At(10, 35))
	}

	if err := env.db.SoftDeleteAsset(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	trash, _ := env.db.ListTrash(ctx)
	if len(trash) != 1 || trash[0].ID != a.ID {
		t.Errorf("ListTrash() = %+v, want only %s", trash, a.ID)
	}

	if err := env.db.RestoreAsset(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	trash, _ = env.db.ListTrash(ctx)
	if len(trash) != 0 {
		t.Errorf("ListTrash() after restore = %+v", trash)
	}
	live, _ := env.db.ListAssets(ctx, database.AssetFilter{})
	if len(live) != 1 || live[0].ID != a.ID {
		t.Errorf("ListAssets() = %+v, want %s", live, a.ID)
	}
}

func TestIngestCopiesWithoutTouchingSource(t *testing.T) {
	env := newTestStore(t)
	src, data := env.source(t, "Photo.PNG", 8, 8)

	a, err := env.store.Ingest(context.Background(), src, nil)
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Ext(a.FilePath) != ".png" {
		t.Errorf("canonical path %s should keep a lower-case extension", a.FilePath)
	}
	if a.OriginalName != "Photo.PNG" || a.SourcePath != src {
		t.Errorf("name/source = %q, %q", a.OriginalName, a.SourcePath)
	}
	if a.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", a.Size, len(data))
	}

	copied, _ := os.ReadFile(a.FilePath)
	if !bytes.Equal(copied, data) {
		t.Error("canonical copy differs from the source")
	}
	still, _ := os.ReadFile(src)
	if !bytes.Equal(still, data) {
		t.Error("source file was modified")
	}
}

func TestIngestErrors(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()

	if _, err := env.store.Ingest(ctx, filepath.Join(env.dir, "missing.png"), nil); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing source: %v, want NotFound", err)
	}
	if _, err := env.store.Ingest(ctx, env.dir, nil); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("directory source: %v, want NotFound", err)
	}

	txt := filepath.Join(env.dir, "notes.txt")
	_ = os.WriteFile(txt, []byte("hi"), 0644)
	if _, err := env.store.Ingest(ctx, txt, nil); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("text file: %v, want InvalidOperation", err)
	}
}

func TestIngestRollsBackWhenThumbnailFails(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()

	bad := filepath.Join(env.dir, "broken.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := env.store.Ingest(ctx, bad, nil)
	if !apperr.Is(err, apperr.SourceUnavailable) {
		t.Fatalf("Ingest() error = %v, want SourceUnavailable", err)
	}

	if n := dirEntries(t, env.store.originalsDir); n != 0 {
		t.Errorf("%d file(s) left in originals", n)
	}
	if n := dirEntries(t, env.store.thumbs.Dir()); n != 0 {
		t.Errorf("%d file(s) left in thumbnails", n)
	}
	all, _ := env.db.AllAssets(ctx)
	if len(all) != 0 {
		t.Errorf("catalog rows = %d, want 0", len(all))
	}
}

func TestIngestRollsBackWhenInsertFails(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 8, 8)

	missing := "no-such-folder"
	if _, err := env.store.Ingest(ctx, src, &missing); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("Ingest() error = %v, want NotFound", err)
	}

	if n := dirEntries(t, env.store.originalsDir); n != 0 {
		t.Errorf("%d file(s) left in originals", n)
	}
	if n := dirEntries(t, env.store.thumbs.Dir()); n != 0 {
		t.Errorf("%d file(s) left in thumbnails", n)
	}
}

func TestIngestMany(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()

	var paths []string
	for _, name := range []string{"1.png", "gone.png", "2.png", "3.png"} {
		if name == "gone.png" {
			paths = append(paths, filepath.Join(env.dir, name))
			continue
		}
		p, _ := env.source(t, name, 6, 4)
		paths = append(paths, p)
	}

	results := env.store.IngestMany(ctx, paths, nil)
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d path = %s, want %s", i, r.Path, paths[i])
		}
		if (i == 1) != (r.Err != nil) {
			t.Errorf("result %d error = %v", i, r.Err)
		}
	}

	all, _ := env.db.AllAssets(ctx)
	if len(all) != 3 {
		t.Errorf("catalog rows = %d, want 3", len(all))
	}
}

func TestApplyEditIsIdempotent(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 30, 20)
	a, err := env.store.Ingest(ctx, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	ops := []transform.Op{
		transform.FlipV{},
		transform.Rotate{Degrees: -90},
		transform.Crop{Rect: transform.Rect{X: 2, Y: 3, Width: 10, Height: 12}},
	}

	first, err := env.store.ApplyEdit(ctx, a.ID, ops)
	if err != nil {
		t.Fatal(err)
	}
	thumb1, _ := os.ReadFile(first.ThumbnailPath)

	if err := env.db.UpdateAssetEdits(ctx, a.ID, transform.Edits{}); err != nil {
		t.Fatal(err)
	}
	second, err := env.store.ApplyEdit(ctx, a.ID, ops)
	if err != nil {
		t.Fatal(err)
	}
	thumb2, _ := os.ReadFile(second.ThumbnailPath)

	if !bytes.Equal(thumb1, thumb2) {
		t.Error("same edits from the same state produced different thumbnails")
	}
	if first.Edits.Rotation != second.Edits.Rotation || first.Edits.FlipH != second.Edits.FlipH ||
		*first.Edits.Crop != *second.Edits.Crop {
		t.Errorf("edit states differ: %+v vs %+v", first.Edits, second.Edits)
	}
}

func TestApplyEditFromRejectsStaleBase(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 30, 20)
	a, err := env.store.Ingest(ctx, src, nil)
	if err != nil {
		t.Fatal(err)
	}
	base := a.Edits

	crop := []transform.Op{transform.Crop{Rect: transform.Rect{X: 0, Y: 0, Width: 30, Height: 10}}}
	if _, err := env.store.ApplyEditFrom(ctx, a.ID, base, crop); err != nil {
		t.Fatalf("ApplyEditFrom() error = %v", err)
	}
	before, _ := env.db.GetAsset(ctx, a.ID)

	// The second caller computed its crop against the uncropped image.
	tall := []transform.Op{transform.Crop{Rect: transform.Rect{X: 0, Y: 0, Width: 10, Height: 20}}}
	if _, err := env.store.ApplyEditFrom(ctx, a.ID, base, tall); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("ApplyEditFrom(stale) error = %v, want Conflict", err)
	}
	after, _ := env.db.GetAsset(ctx, a.ID)
	if !after.Edits.Equal(before.Edits) {
		t.Errorf("rejected edit changed state: %+v -> %+v", before.Edits, after.Edits)
	}

	if _, err := env.store.ApplyEditFrom(ctx, a.ID, after.Edits, []transform.Op{transform.FlipH{}}); err != nil {
		t.Errorf("ApplyEditFrom(current) error = %v", err)
	}
}

func TestApplyEditIsNonDestructive(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, data := env.source(t, "a.png", 32, 24)
	a, err := env.store.Ingest(ctx, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	edits := [][]transform.Op{
		{transform.Rotate{Degrees: 90}},
		{transform.Crop{Rect: transform.Rect{X: 4, Y: 4, Width: 16, Height: 20}}},
		{transform.FlipH{}, transform.Rotate{Degrees: 180}},
	}
	var last *database.Asset
	for _, ops := range edits {
		if last, err = env.store.ApplyEdit(ctx, a.ID, ops); err != nil {
			t.Fatalf("ApplyEdit(%v) error = %v", ops, err)
		}
	}

	original, _ := os.ReadFile(last.FilePath)
	if !bytes.Equal(original, data) {
		t.Fatal("canonical original changed after edits")
	}

	src2, err := media.LoadOriginal(last.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	rendered, err := media.Render(src2, last.Edits)
	if err != nil {
		t.Fatal(err)
	}
	var want bytes.Buffer
	if err := media.Encode(&want, rendered); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(last.ThumbnailPath)
	if !bytes.Equal(got, want.Bytes()) {
		t.Error("thumbnail cannot be regenerated from original and stored edits")
	}
}

func TestApplyEditSerializesSameAsset(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 20, 10)
	a, err := env.store.Ingest(ctx, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.store.ApplyEdit(ctx, a.ID, []transform.Op{transform.Rotate{Degrees: 90}})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
	}
	got, _ := env.db.GetAsset(ctx, a.ID)
	if got.Edits.Rotation != 90 {
		t.Errorf("rotation after %d queued turns = %d, want 90", n, got.Edits.Rotation)
	}
}

func TestApplyEditErrors(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 10, 10)
	a, err := env.store.Ingest(ctx, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ops  []transform.Op
		want apperr.Kind
	}{
		{"zero crop", []transform.Op{transform.Crop{Rect: transform.Rect{Width: 0, Height: 5}}}, apperr.InvalidOperation},
		{"crop outside", []transform.Op{transform.Crop{Rect: transform.Rect{X: 5, Width: 10, Height: 5}}}, apperr.InvalidOperation},
		{"odd rotation", []transform.Op{transform.Rotate{Degrees: 45}}, apperr.InvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := os.ReadFile(a.ThumbnailPath)
			_, err := env.store.ApplyEdit(ctx, a.ID, tt.ops)
			if got := apperr.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (%v)", got, tt.want, err)
			}
			after, _ := os.ReadFile(a.ThumbnailPath)
			if !bytes.Equal(before, after) {
				t.Error("rejected edit rewrote the thumbnail")
			}
		})
	}

	rotate := []transform.Op{transform.Rotate{Degrees: 90}}
	if _, err := env.store.ApplyEdit(ctx, "nope", rotate); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("unknown id: %v", err)
	}

	_ = env.db.SoftDeleteAsset(ctx, a.ID)
	if _, err := env.store.ApplyEdit(ctx, a.ID, rotate); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("trashed asset: %v", err)
	}

	_ = env.db.HardDeleteAsset(ctx, a.ID)
	if _, err := env.store.ApplyEdit(ctx, a.ID, rotate); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("purged asset: %v", err)
	}
}

func TestApplyEditMissingOriginal(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 10, 10)
	a, _ := env.store.Ingest(ctx, src, nil)

	_ = os.Remove(a.FilePath)
	_, err := env.store.ApplyEdit(ctx, a.ID, []transform.Op{transform.FlipH{}})
	if !apperr.Is(err, apperr.SourceUnavailable) {
		t.Errorf("ApplyEdit() error = %v, want SourceUnavailable", err)
	}
	row, _ := env.db.GetAsset(ctx, a.ID)
	if row.Edits.FlipH {
		t.Error("metadata committed although the thumbnail was not written")
	}
}

func TestPurge(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 10, 10)
	a, _ := env.store.Ingest(ctx, src, nil)

	if err := env.store.Purge(ctx, a.ID); !apperr.Is(err, apperr.InvalidOperation) {
		t.Fatalf("Purge(live) error = %v, want InvalidOperation", err)
	}
	if _, err := os.Stat(a.FilePath); err != nil {
		t.Fatalf("live original removed: %v", err)
	}

	if err := env.db.SoftDeleteAsset(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.store.Purge(ctx, a.ID); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	for _, p := range []string{a.FilePath, a.ThumbnailPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}
	if purged, _ := env.db.IsPurged(ctx, a.ID); !purged {
		t.Error("row not recorded as purged")
	}

	if err := env.store.Purge(ctx, a.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second Purge() = %v, want NotFound", err)
	}
	if err := env.store.Restore(ctx, a.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Restore() after purge = %v, want NotFound", err)
	}
}

func TestPurgeSkipsMissingFiles(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	src, _ := env.source(t, "a.png", 10, 10)
	a, _ := env.store.Ingest(ctx, src, nil)
	_ = env.db.SoftDeleteAsset(ctx, a.ID)
	_ = os.Remove(a.ThumbnailPath)

	if err := env.store.Purge(ctx, a.ID); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if _, err := env.db.GetAsset(ctx, a.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("row still present: %v", err)
	}
}

// Restores and purges of one image serialize: whichever runs first wins and
// the image never ends up live without its files.
func TestPurgeAndRestoreSerialize(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		src, _ := env.source(t, "a.png", 10, 10)
		a, err := env.store.Ingest(ctx, src, nil)
		if err != nil {
			t.Fatal(err)
		}
		_ = env.db.SoftDeleteAsset(ctx, a.ID)

		var wg sync.WaitGroup
		var purgeErr, restoreErr error
		wg.Add(2)
		go func() { defer wg.Done(); purgeErr = env.store.Purge(ctx, a.ID) }()
		go func() { defer wg.Done(); restoreErr = env.store.Restore(ctx, a.ID) }()
		wg.Wait()

		row, err := env.db.GetAsset(ctx, a.ID)
		switch {
		case purgeErr == nil:
			if !apperr.Is(err, apperr.NotFound) || !apperr.Is(restoreErr, apperr.NotFound) {
				t.Fatalf("purge won but row = %v, %v; restore = %v", row, err, restoreErr)
			}
		case restoreErr == nil:
			if err != nil || row.InTrash() || !apperr.Is(purgeErr, apperr.InvalidOperation) {
				t.Fatalf("restore won but row = %v, %v; purge = %v", row, err, purgeErr)
			}
			if _, err := os.Stat(row.FilePath); err != nil {
				t.Fatalf("restored image lost its original: %v", err)
			}
		default:
			t.Fatalf("both failed: purge %v, restore %v", purgeErr, restoreErr)
		}
	}
}

func TestRegenerateAllAndVerify(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a.png", "b.png"} {
		src, _ := env.source(t, name, 12, 8)
		a, err := env.store.Ingest(ctx, src, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, a.ID)
	}
	_ = os.Remove(env.store.ThumbnailPath(ids[0]))

	problems, err := env.store.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 1 || problems[0].AssetID != ids[0] {
		t.Errorf("Verify() = %+v, want missing thumbnail of %s", problems, ids[0])
	}

	report, err := env.store.RegenerateAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 2 || report.Regenerated != 2 || len(report.Failed) != 0 {
		t.Errorf("RegenerateAll() = %+v", report)
	}

	problems, _ = env.store.Verify(ctx)
	if len(problems) != 0 {
		t.Errorf("Verify() after regen = %+v", problems)
	}
}

type fakeWallpaper struct {
	paths chan string
}

func (f *fakeWallpaper) Set(path string) error {
	f.paths <- path
	return nil
}

func TestSetWallpaper(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	wp := &fakeWallpaper{paths: make(chan string, 1)}
	env.store.wallpaper = wp

	src, _ := env.source(t, "a.png", 10, 10)
	a, _ := env.store.Ingest(ctx, src, nil)

	if err := env.store.SetWallpaper(ctx, a.ID); err != nil {
		t.Fatalf("SetWallpaper() error = %v", err)
	}
	select {
	case p := <-wp.paths:
		if p != a.FilePath {
			t.Errorf("wallpaper path = %s, want %s", p, a.FilePath)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wallpaper setter was not called")
	}

	v, ok, _ := env.db.GetSetting(ctx, database.SettingWallpaperAssetID)
	if !ok || v != a.ID {
		t.Errorf("wallpaper setting = %q, %v", v, ok)
	}

	if err := env.store.SetWallpaper(ctx, "nope"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

type countingThrottle struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingThrottle) Wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func TestBatchesWaitOnThrottle(t *testing.T) {
	env := newTestStore(t)
	ctx := context.Background()
	throttle := &countingThrottle{}
	env.store.throttle = throttle

	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		p, _ := env.source(t, name, 6, 4)
		paths = append(paths, p)
	}

	for _, r := range env.store.IngestMany(ctx, paths, nil) {
		if r.Err != nil {
			t.Fatalf("ingest %s: %v", r.Path, r.Err)
		}
	}
	if throttle.calls != 3 {
		t.Errorf("throttle waited %d times during ingest, want 3", throttle.calls)
	}

	throttle.err = context.Canceled
	report, err := env.store.RegenerateAll(ctx)
	if err != nil {
		t.Fatalf("RegenerateAll() error = %v", err)
	}
	if report.Regenerated != 0 || len(report.Failed) != 3 {
		t.Errorf("report = %+v, want every item held back", report)
	}
}
