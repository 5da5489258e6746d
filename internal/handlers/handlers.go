package handlers

import (
	"time"

	"folio/internal/assets"
	"folio/internal/database"
	"folio/internal/editor"
	"folio/internal/trash"
)

// Handlers serves the local API.
type Handlers struct {
	db        *database.Database
	store     *assets.Store
	trash     *trash.Coordinator
	editors   *editor.Registry
	startTime time.Time
}

// New wires the handlers to the library services.
func New(db *database.Database, store *assets.Store, tc *trash.Coordinator, editors *editor.Registry) *Handlers {
	return &Handlers{
		db:        db,
		store:     store,
		trash:     tc,
		editors:   editors,
		startTime: time.Now(),
	}
}
