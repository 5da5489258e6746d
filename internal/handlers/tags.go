package handlers

import (
	"net/http"

	"folio/internal/apperr"
	"folio/internal/database"

	"github.com/gorilla/mux"
)

// TagRequest adds a tag to an image.
type TagRequest struct {
	Tag string `json:"tag"`
}

// NoteRequest replaces an image's note.
type NoteRequest struct {
	Markdown string `json:"markdown"`
}

// Note is the value returned for an image's note.
type Note struct {
	AssetID  string `json:"assetId"`
	Markdown string `json:"markdown"`
}

// ListTags returns every tag with its image count.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.ListTags(r.Context())
	if tags == nil && err == nil {
		tags = []database.Tag{}
	}
	respond(w, tags, err)
}

// AddTag tags an image, creating the tag when needed.
func (h *Handlers) AddTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	id := pathID(r)
	if err := h.db.AddTag(r.Context(), id, req.Tag); err != nil {
		respondErr(w, err)
		return
	}
	asset, err := h.db.GetAsset(r.Context(), id)
	respond(w, asset, err)
}

// RemoveTag removes a tag from an image.
func (h *Handlers) RemoveTag(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]
	if tag == "" {
		respondErr(w, apperr.New(apperr.InvalidOperation, "remove tag", "tag is required"))
		return
	}
	id := pathID(r)
	if err := h.db.RemoveTag(r.Context(), id, tag); err != nil {
		respondErr(w, err)
		return
	}
	asset, err := h.db.GetAsset(r.Context(), id)
	respond(w, asset, err)
}

// GetNote returns an image's note; an image without one has an empty note.
func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	md, err := h.db.GetNote(r.Context(), id)
	respond(w, Note{AssetID: id, Markdown: md}, err)
}

// SetNote replaces an image's note.
func (h *Handlers) SetNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	id := pathID(r)
	err := h.db.SetNote(r.Context(), id, req.Markdown)
	respond(w, Note{AssetID: id, Markdown: req.Markdown}, err)
}
