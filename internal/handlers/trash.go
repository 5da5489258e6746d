package handlers

import (
	"net/http"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/trash"

	"github.com/gorilla/mux"
)

// ListTrash returns trashed images and folders, most recently deleted first.
func (h *Handlers) ListTrash(w http.ResponseWriter, r *http.Request) {
	entries, err := h.trash.List(r.Context())
	respond(w, entries, err)
}

// RestoreTrashItem takes an item out of the trash.
func (h *Handlers) RestoreTrashItem(w http.ResponseWriter, r *http.Request) {
	itemType, ok := trashType(w, r)
	if !ok {
		return
	}
	respondOK(w, h.trash.Restore(r.Context(), itemType, pathID(r)))
}

// DeleteTrashItem permanently deletes one trashed item.
func (h *Handlers) DeleteTrashItem(w http.ResponseWriter, r *http.Request) {
	itemType, ok := trashType(w, r)
	if !ok {
		return
	}
	respondOK(w, h.trash.PermanentlyDelete(r.Context(), itemType, pathID(r)))
}

// EmptySummary is the value returned by EmptyTrash.
type EmptySummary struct {
	trash.Summary
	Message string `json:"message"`
}

// EmptyTrash permanently deletes everything in the trash and reports how
// many items were removed.
func (h *Handlers) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	summary, err := h.trash.EmptyTrash(r.Context())
	respond(w, EmptySummary{Summary: summary, Message: summary.String()}, err)
}

func trashType(w http.ResponseWriter, r *http.Request) (database.ItemType, bool) {
	raw := mux.Vars(r)["type"]
	itemType, ok := database.ParseItemType(raw)
	if !ok {
		respondErr(w, apperr.New(apperr.InvalidOperation, "trash", "unknown item type %q", raw))
	}
	return itemType, ok
}
