package database

import (
	"context"
	"reflect"
	"testing"

	"folio/internal/apperr"
	"folio/internal/transform"
)

func mustAsset(t *testing.T, db *Database, id string, folder *string) *Asset {
	t.Helper()
	a := &Asset{
		ID:            id,
		FilePath:      "/data/images/original/" + id + ".png",
		ThumbnailPath: "/data/thumbnails/" + id + "_thumb.jpg",
		OriginalName:  id + ".png",
		SourcePath:    "/home/me/Pictures/" + id + ".png",
		FolderID:      folder,
		Width:         640,
		Height:        480,
		Size:          1234,
	}
	if err := db.InsertAsset(context.Background(), a); err != nil {
		t.Fatalf("InsertAsset(%s) error = %v", id, err)
	}
	return a
}

func TestInsertAndGetAsset(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustAsset(t, db, "a1", nil)
	got, err := db.GetAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAsset() error = %v", err)
	}

	if got.FolderID != nil {
		t.Errorf("FolderID = %v, want nil", got.FolderID)
	}
	if !got.Edits.IsIdentity() || got.Edits.Crop != nil {
		t.Errorf("Edits = %+v, want identity", got.Edits)
	}
	if got.Width != 640 || got.Height != 480 || got.Size != 1234 {
		t.Errorf("dimensions = %dx%d size %d", got.Width, got.Height, got.Size)
	}
	if got.OriginalName != "a1.png" || got.SourcePath != "/home/me/Pictures/a1.png" {
		t.Errorf("names = %q %q", got.OriginalName, got.SourcePath)
	}
	if got.DeletedAt != nil || got.InTrash() {
		t.Error("new asset should not be in the trash")
	}
	if len(got.Tags) != 0 {
		t.Errorf("Tags = %v", got.Tags)
	}

	if _, err := db.GetAsset(ctx, "nope"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("GetAsset(missing) error = %v", err)
	}
}

func TestInsertAssetFolderChecks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.InsertAsset(ctx, &Asset{ID: "x", FilePath: "p", ThumbnailPath: "t", OriginalName: "x", FolderID: strPtr("missing")})
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing folder: %v", err)
	}

	f := mustFolder(t, db, "F", nil)
	if err := db.SoftDeleteFolder(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	err = db.InsertAsset(ctx, &Asset{ID: "y", FilePath: "p", ThumbnailPath: "t", OriginalName: "y", FolderID: &f.ID})
	if !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("trashed folder: %v", err)
	}
}

func TestUpdateAssetEdits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	before := mustAsset(t, db, "a1", nil)

	edits := transform.Edits{Rotation: 90, FlipH: true, Crop: &transform.Rect{X: 10, Y: 20, Width: 100, Height: 50}}
	if err := db.UpdateAssetEdits(ctx, "a1", edits); err != nil {
		t.Fatalf("UpdateAssetEdits() error = %v", err)
	}

	got, _ := db.GetAsset(ctx, "a1")
	if !reflect.DeepEqual(got.Edits, edits) {
		t.Errorf("Edits = %+v, want %+v", got.Edits, edits)
	}
	if !got.UpdatedAt.After(before.UpdatedAt) {
		t.Error("UpdatedAt should advance")
	}

	if err := db.UpdateAssetEdits(ctx, "a1", transform.Edits{Rotation: 450}); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetAsset(ctx, "a1")
	if got.Edits.Rotation != 90 || got.Edits.Crop != nil || got.Edits.FlipH {
		t.Errorf("Edits = %+v, want rotation 90 only", got.Edits)
	}
}

func TestUpdateAssetEditsStateErrors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	mustAsset(t, db, "trashed", nil)
	mustAsset(t, db, "purged", nil)
	if err := db.SoftDeleteAsset(ctx, "trashed"); err != nil {
		t.Fatal(err)
	}
	if err := db.SoftDeleteAsset(ctx, "purged"); err != nil {
		t.Fatal(err)
	}
	if err := db.HardDeleteAsset(ctx, "purged"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id   string
		want apperr.Kind
	}{
		{"trashed", apperr.InvalidOperation},
		{"purged", apperr.InvalidOperation},
		{"unknown", apperr.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := db.UpdateAssetEdits(ctx, tt.id, transform.Edits{Rotation: 90})
			if !apperr.Is(err, tt.want) {
				t.Errorf("UpdateAssetEdits(%s) error = %v, want %s", tt.id, err, tt.want)
			}
		})
	}
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := mustFolder(t, db, "F", nil)
	mustAsset(t, db, "a1", &f.ID)
	if err := db.UpdateAssetEdits(ctx, "a1", transform.Edits{Rotation: 180}); err != nil {
		t.Fatal(err)
	}
	if err := db.AddTag(ctx, "a1", "beach"); err != nil {
		t.Fatal(err)
	}
	before, _ := db.GetAsset(ctx, "a1")

	if err := db.SoftDeleteAsset(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	trashed, _ := db.GetAsset(ctx, "a1")
	if trashed.DeletedAt == nil {
		t.Fatal("DeletedAt not set")
	}

	if err := db.RestoreAsset(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	after, _ := db.GetAsset(ctx, "a1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("restored row differs:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestRestoreAssetKeepsTrashedFolder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := mustFolder(t, db, "F", nil)
	mustAsset(t, db, "a1", &f.ID)

	if err := db.SoftDeleteAsset(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SoftDeleteFolder(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.RestoreAsset(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	a, _ := db.GetAsset(ctx, "a1")
	if a.FolderID == nil || *a.FolderID != f.ID {
		t.Errorf("FolderID = %v, want %s", a.FolderID, f.ID)
	}
	if !a.Orphaned {
		t.Error("asset restored into a trashed folder should be orphaned")
	}
}

func TestHardDeleteAsset(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	mustAsset(t, db, "a1", nil)
	if err := db.AddTag(ctx, "a1", "x"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetNote(ctx, "a1", "hello"); err != nil {
		t.Fatal(err)
	}

	if err := db.HardDeleteAsset(ctx, "a1"); !apperr.Is(err, apperr.InvalidOperation) {
		t.Fatalf("HardDeleteAsset(live) error = %v, want InvalidOperation", err)
	}
	if _, err := db.GetAsset(ctx, "a1"); err != nil {
		t.Fatalf("live row removed: %v", err)
	}

	if err := db.SoftDeleteAsset(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := db.HardDeleteAsset(ctx, "a1"); err != nil {
		t.Fatalf("HardDeleteAsset() error = %v", err)
	}
	if _, err := db.GetAsset(ctx, "a1"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("row still present: %v", err)
	}
	purged, err := db.IsPurged(ctx, "a1")
	if err != nil || !purged {
		t.Errorf("IsPurged() = %v, %v", purged, err)
	}
	if err := db.HardDeleteAsset(ctx, "a1"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second HardDeleteAsset() error = %v, want NotFound", err)
	}

	var notes int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&notes); err != nil {
		t.Fatal(err)
	}
	if notes != 0 {
		t.Error("note should be removed with its image")
	}
}

func TestMoveAsset(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := mustFolder(t, db, "F", nil)
	mustAsset(t, db, "a1", nil)

	if err := db.MoveAsset(ctx, "a1", &f.ID); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAsset(ctx, "a1")
	if a.FolderID == nil || *a.FolderID != f.ID {
		t.Errorf("FolderID = %v", a.FolderID)
	}

	if err := db.MoveAsset(ctx, "a1", nil); err != nil {
		t.Fatal(err)
	}
	a, _ = db.GetAsset(ctx, "a1")
	if a.FolderID != nil {
		t.Errorf("FolderID = %v, want root", a.FolderID)
	}

	if err := db.MoveAsset(ctx, "a1", strPtr("missing")); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("move into missing folder: %v", err)
	}
}

func TestListAssets(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := mustFolder(t, db, "F", nil)
	mustAsset(t, db, "root1", nil)
	mustAsset(t, db, "inF", &f.ID)
	mustAsset(t, db, "root2", nil)
	mustAsset(t, db, "gone", nil)
	if err := db.SoftDeleteAsset(ctx, "gone"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter AssetFilter
		want   []string
	}{
		{"all live, newest first", AssetFilter{}, []string{"root2", "inF", "root1"}},
		{"one folder", AssetFilter{FolderID: &f.ID}, []string{"inF"}},
		{"root only", AssetFilter{RootOnly: true}, []string{"root2", "root1"}},
		{"search by name", AssetFilter{Search: "ROOT"}, []string{"root2", "root1"}},
		{"search misses", AssetFilter{Search: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets, err := db.ListAssets(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if got := ids(assets); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListAssets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListAssetsSearchesNotesAndEscapesWildcards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	mustAsset(t, db, "a1", nil)
	mustAsset(t, db, "a2", nil)
	if err := db.SetNote(ctx, "a1", "Sunset over the 100% lake"); err != nil {
		t.Fatal(err)
	}

	assets, _ := db.ListAssets(ctx, AssetFilter{Search: "sunset"})
	if got := ids(assets); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("note search = %v", got)
	}

	assets, _ = db.ListAssets(ctx, AssetFilter{Search: "100%"})
	if got := ids(assets); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("literal %% search = %v", got)
	}

	assets, _ = db.ListAssets(ctx, AssetFilter{Search: "%"})
	if got := ids(assets); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("bare %% should match literally, got %v", got)
	}
}

func TestAllAssetsIncludesTrash(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	mustAsset(t, db, "a1", nil)
	mustAsset(t, db, "a2", nil)
	if err := db.SoftDeleteAsset(ctx, "a2"); err != nil {
		t.Fatal(err)
	}

	all, err := db.AllAssets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(all); !reflect.DeepEqual(got, []string{"a1", "a2"}) {
		t.Errorf("AllAssets() = %v", got)
	}
}

func ids(assets []Asset) []string {
	out := []string{}
	for _, a := range assets {
		out = append(out, a.ID)
	}
	return out
}
