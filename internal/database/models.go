package database

import (
	"time"

	"folio/internal/transform"
)

// ItemType distinguishes trash entries.
type ItemType string

const (
	ItemImage  ItemType = "image"
	ItemFolder ItemType = "folder"
)

// ParseItemType accepts "image"/"asset" and "folder".
func ParseItemType(s string) (ItemType, bool) {
	switch s {
	case "image", "images", "asset", "assets":
		return ItemImage, true
	case "folder", "folders":
		return ItemFolder, true
	}
	return "", false
}

// Folder is a node of the folder forest.
type Folder struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentID  *string    `json:"parentId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	// ItemCount is the number of live images directly inside the folder.
	ItemCount int `json:"itemCount"`
}

// Asset is an image record.
type Asset struct {
	ID            string          `json:"id"`
	FilePath      string          `json:"filePath"`
	ThumbnailPath string          `json:"thumbnailPath"`
	OriginalName  string          `json:"originalName"`
	SourcePath    string          `json:"sourcePath,omitempty"`
	FolderID      *string         `json:"folderId"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	Size          int64           `json:"size"`
	Edits         transform.Edits `json:"edits"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     *time.Time      `json:"deletedAt,omitempty"`
	Tags          []string        `json:"tags"`
	// Orphaned is set when the asset is live but its folder is in the trash.
	Orphaned bool `json:"orphaned,omitempty"`
}

// InTrash reports whether the asset has been soft-deleted.
func (a *Asset) InTrash() bool {
	return a.DeletedAt != nil
}

// AssetFilter selects assets for ListAssets.
type AssetFilter struct {
	// FolderID restricts the listing to one folder. Nil lists every folder
	// unless RootOnly is set.
	FolderID *string
	RootOnly bool
	// Search matches the original name, canonical path and note text.
	Search string
	// Tag restricts to assets carrying the tag (case-insensitive).
	Tag string
}

// TrashEntry is a soft-deleted image or folder.
type TrashEntry struct {
	Type          ItemType  `json:"type"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DeletedAt     time.Time `json:"deletedAt"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
}

// Tag is a tag with the number of images carrying it.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// BulkDeleteResult reports what BulkHardDelete removed.
type BulkDeleteResult struct {
	AssetsDeleted  int `json:"assetsDeleted"`
	FoldersDeleted int `json:"foldersDeleted"`
	// KeptFolders are trashed folders that still contain images or folders
	// outside the deleted set.
	KeptFolders []string `json:"keptFolders,omitempty"`
}
