package handlers

import (
	"net/http"

	"folio/internal/apperr"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds the health, version and API routes to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Folders
	api.HandleFunc("/folders", h.ListFolders).Methods(http.MethodGet)
	api.HandleFunc("/folders", h.CreateFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id}", h.GetFolder).Methods(http.MethodGet)
	api.HandleFunc("/folders/{id}", h.RenameFolder).Methods(http.MethodPut)
	api.HandleFunc("/folders/{id}", h.DeleteFolder).Methods(http.MethodDelete)
	api.HandleFunc("/folders/{id}/assets", h.ListFolderAssets).Methods(http.MethodGet)

	// Assets
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets", h.IngestAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets/batch", h.IngestBatch).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", h.DeleteAsset).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{id}/edits", h.ApplyEdit).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}/folder", h.MoveAsset).Methods(http.MethodPut)
	api.HandleFunc("/assets/{id}/regenerate", h.RegenerateThumbnail).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}/wallpaper", h.SetWallpaper).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}/thumbnail", h.GetThumbnail).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/assets/{id}/original", h.GetOriginal).Methods(http.MethodGet, http.MethodHead)

	// Tags and notes
	api.HandleFunc("/tags", h.ListTags).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/tags", h.AddTag).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}/tags/{tag}", h.RemoveTag).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{id}/note", h.GetNote).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/note", h.SetNote).Methods(http.MethodPut)

	// Trash
	api.HandleFunc("/trash", h.ListTrash).Methods(http.MethodGet)
	api.HandleFunc("/trash", h.EmptyTrash).Methods(http.MethodDelete)
	api.HandleFunc("/trash/{type}/{id}/restore", h.RestoreTrashItem).Methods(http.MethodPost)
	api.HandleFunc("/trash/{type}/{id}", h.DeleteTrashItem).Methods(http.MethodDelete)

	// Settings
	api.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.UpdateSettings).Methods(http.MethodPut)

	// Editor sessions
	api.HandleFunc("/assets/{id}/sessions", h.OpenSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.CloseSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/actions", h.SessionTransition).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/save", h.SaveSession).Methods(http.MethodPost)

	api.NotFoundHandler = http.HandlerFunc(h.notFound)
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request) {
	respondErr(w, apperr.New(apperr.NotFound, "route", "no route for %s %s", r.Method, r.URL.Path))
}
