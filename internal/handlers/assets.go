package handlers

import (
	"net/http"
	"os"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/filesystem"
	"folio/internal/transform"
)

// IngestRequest imports files from the local disk.
type IngestRequest struct {
	Path     string   `json:"path,omitempty"`
	Paths    []string `json:"paths,omitempty"`
	FolderID *string  `json:"folderId,omitempty"`
}

// IngestItem is one entry of a batch ingest response.
type IngestItem struct {
	Path      string          `json:"path"`
	OK        bool            `json:"ok"`
	Asset     *database.Asset `json:"asset,omitempty"`
	ErrorKind apperr.Kind     `json:"errorKind,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// EditRequest carries operations relative to the image as currently shown.
type EditRequest struct {
	Operations []transform.OpSpec `json:"operations"`
}

// MoveRequest moves an image; a nil or empty folderId means the root.
type MoveRequest struct {
	FolderID *string `json:"folderId"`
}

// maxBatch bounds the number of paths accepted by one batch ingest.
const maxBatch = 500

// ListAssets returns live images. Query parameters: folder (id, or "root"),
// search and tag.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.AssetFilter{
		Search: q.Get("search"),
		Tag:    q.Get("tag"),
	}
	switch folder := q.Get("folder"); folder {
	case "":
	case "root":
		filter.RootOnly = true
	default:
		filter.FolderID = &folder
	}
	list, err := h.db.ListAssets(r.Context(), filter)
	respond(w, list, err)
}

// GetAsset returns one image, trashed or not.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.db.GetAsset(r.Context(), pathID(r))
	respond(w, asset, err)
}

// IngestAsset copies one file into the library.
func (h *Handlers) IngestAsset(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Path == "" {
		respondErr(w, apperr.New(apperr.InvalidOperation, "ingest", "path is required"))
		return
	}
	asset, err := h.store.Ingest(r.Context(), req.Path, optionalID(req.FolderID))
	respond(w, asset, err)
}

// IngestBatch copies several files into the library. The request succeeds
// as a whole; each item carries its own outcome.
func (h *Handlers) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if len(req.Paths) == 0 {
		respondErr(w, apperr.New(apperr.InvalidOperation, "batch ingest", "paths array is required"))
		return
	}
	if len(req.Paths) > maxBatch {
		respondErr(w, apperr.New(apperr.InvalidOperation, "batch ingest", "at most %d paths per request", maxBatch))
		return
	}

	results := h.store.IngestMany(r.Context(), req.Paths, optionalID(req.FolderID))
	items := make([]IngestItem, len(results))
	for i, res := range results {
		env := apperr.ResultOf(res.Asset, res.Err)
		items[i] = IngestItem{
			Path:      res.Path,
			OK:        env.OK,
			Asset:     res.Asset,
			ErrorKind: env.ErrorKind,
			Message:   env.Message,
		}
	}
	respond(w, items, nil)
}

// ApplyEdit applies rotate/flip/crop operations to an image.
func (h *Handlers) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	ops, err := transform.ParseOps(req.Operations)
	if err != nil {
		respondErr(w, err)
		return
	}
	asset, err := h.store.ApplyEdit(r.Context(), pathID(r), ops)
	respond(w, asset, err)
}

// MoveAsset moves a live image to another folder.
func (h *Handlers) MoveAsset(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	id := pathID(r)
	if err := h.db.MoveAsset(r.Context(), id, optionalID(req.FolderID)); err != nil {
		respondErr(w, err)
		return
	}
	asset, err := h.db.GetAsset(r.Context(), id)
	respond(w, asset, err)
}

// DeleteAsset moves an image to the trash.
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.db.SoftDeleteAsset(r.Context(), pathID(r)))
}

// RegenerateThumbnail rebuilds an image's thumbnail from its original.
func (h *Handlers) RegenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.store.Regenerate(r.Context(), pathID(r)))
}

// SetWallpaper makes an image the desktop wallpaper.
func (h *Handlers) SetWallpaper(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.store.SetWallpaper(r.Context(), pathID(r)))
}

// GetThumbnail serves an image's thumbnail.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	asset, err := h.db.GetAsset(r.Context(), pathID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	serveFile(w, r, asset.ThumbnailPath)
}

// GetOriginal serves an image's canonical original.
func (h *Handlers) GetOriginal(w http.ResponseWriter, r *http.Request) {
	asset, err := h.db.GetAsset(r.Context(), pathID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	serveFile(w, r, asset.FilePath)
}

func serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		kind := apperr.StorageFailure
		if os.IsNotExist(err) {
			kind = apperr.NotFound
		}
		respondErr(w, apperr.Wrap(kind, "serve file", err, "file is not available"))
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		respondErr(w, apperr.Wrap(apperr.StorageFailure, "serve file", err, "file is not available"))
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
