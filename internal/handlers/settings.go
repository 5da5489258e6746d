package handlers

import (
	"net/http"
	"strconv"

	"folio/internal/apperr"
	"folio/internal/database"
)

// GetSettings returns every stored setting.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.db.GetSettings(r.Context())
	respond(w, settings, err)
}

// UpdateSettings upserts the posted settings in one transaction.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if v, ok := req[database.SettingTrashRetentionDays]; ok {
		if days, err := strconv.Atoi(v); err != nil || days < 0 || days > database.MaxTrashRetentionDays {
			respondErr(w, apperr.New(apperr.InvalidOperation, "update settings",
				"%s must be between 0 and %d days", database.SettingTrashRetentionDays, database.MaxTrashRetentionDays))
			return
		}
	}
	if err := h.db.UpdateSettings(r.Context(), req); err != nil {
		respondErr(w, err)
		return
	}
	settings, err := h.db.GetSettings(r.Context())
	respond(w, settings, err)
}
