package handlers

import (
	"net/http"

	"folio/internal/database"
)

// FolderRequest creates or renames a folder.
type FolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId,omitempty"`
}

// ListFolders returns live folders.
func (h *Handlers) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.db.ListFolders(r.Context())
	respond(w, folders, err)
}

// GetFolder returns one folder, trashed or not.
func (h *Handlers) GetFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.db.GetFolder(r.Context(), pathID(r))
	respond(w, folder, err)
}

// CreateFolder creates a folder under parentId, or at the root.
func (h *Handlers) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	folder, err := h.db.CreateFolder(r.Context(), req.Name, optionalID(req.ParentID))
	respond(w, folder, err)
}

// RenameFolder changes a folder's name.
func (h *Handlers) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	id := pathID(r)
	if err := h.db.RenameFolder(r.Context(), id, req.Name); err != nil {
		respondErr(w, err)
		return
	}
	folder, err := h.db.GetFolder(r.Context(), id)
	respond(w, folder, err)
}

// DeleteFolder moves a folder to the trash. Its contents are left alone.
func (h *Handlers) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.db.SoftDeleteFolder(r.Context(), pathID(r)))
}

// ListFolderAssets returns the live images directly inside a folder. The
// id "root" lists images without a folder.
func (h *Handlers) ListFolderAssets(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	filter := database.AssetFilter{RootOnly: id == "root"}
	if id != "root" {
		if _, err := h.db.GetFolder(r.Context(), id); err != nil {
			respondErr(w, err)
			return
		}
		filter.FolderID = &id
	}
	list, err := h.db.ListAssets(r.Context(), filter)
	respond(w, list, err)
}
