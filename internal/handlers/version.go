package handlers

import (
	"net/http"

	"folio/internal/startup"
)

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	respond(w, startup.GetBuildInfo(), nil)
}
