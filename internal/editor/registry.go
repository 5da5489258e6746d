package editor

import (
	"context"
	"sync"
	"time"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/metrics"

	"github.com/google/uuid"
)

type entry struct {
	mu      sync.Mutex
	session *Session
	saving  bool
	touched time.Time
}

// Registry keeps the sessions opened through the local API, keyed by a
// session id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry), now: time.Now}
}

// Open starts a session on asset and returns its id.
func (r *Registry) Open(asset *database.Asset) (string, *Session) {
	id := uuid.NewString()
	s := NewSession(asset)

	r.mu.Lock()
	r.sessions[id] = &entry{session: s, touched: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.EditorSessionsOpen.Set(float64(n))
	logging.Debug("Editor session %s opened on %s", id, asset.ID)
	return id, s
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "editor session", "session %s not found", id)
	}
	return e, nil
}

// Do runs fn with exclusive access to a session. Sessions being saved
// reject changes with Conflict.
func (r *Registry) Do(id string, fn func(*Session) error) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return apperr.New(apperr.Conflict, "editor session", "session %s is being saved", id)
	}
	e.touched = r.now()
	return fn(e.session)
}

// Save persists a session. On success the session is closed; on failure it
// stays open unchanged. Saving a session that is already being saved is a
// Conflict.
func (r *Registry) Save(ctx context.Context, id string, applier Applier) (*database.Asset, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return nil, apperr.New(apperr.Conflict, "save session", "session %s is already being saved", id)
	}
	e.saving = true
	e.mu.Unlock()

	asset, err := e.session.Save(ctx, applier)

	e.mu.Lock()
	e.saving = false
	e.touched = r.now()
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	r.Close(id)
	return asset, nil
}

// Close discards a session. Unknown ids are ignored.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.EditorSessionsOpen.Set(float64(n))
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune closes sessions untouched for longer than maxIdle and returns how
// many were closed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	pruned := 0
	for id, e := range r.sessions {
		e.mu.Lock()
		stale := !e.saving && e.touched.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(r.sessions, id)
			pruned++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.EditorSessionsOpen.Set(float64(n))
	if pruned > 0 {
		logging.Info("Closed %d idle editor session(s)", pruned)
	}
	return pruned
}
